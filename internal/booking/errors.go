package booking

import "fmt"

// Kind classifies booking rejections so the API layer can map each one to a
// status code and a user-facing field.
type Kind string

const (
	KindValidation Kind = "validation"      // malformed input, rejected before touching the store
	KindClosed     Kind = "closed"          // provider not open for the full requested span
	KindBlackout   Kind = "blackout"        // requested span intersects a blackout period
	KindConflict   Kind = "conflict"        // overlaps an existing appointment, including lost races
	KindNotFound   Kind = "not_found"       // unknown provider, service or client
	KindTransient  Kind = "transient_store" // commit timeout or lock contention; retry with backoff
)

// Error carries the rejection kind plus the field it maps to. Two Errors
// match under errors.Is when their kinds are equal, so handlers can branch on
// the exported sentinels below.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrClosed     = &Error{Kind: KindClosed, Message: "provider is closed for the requested time"}
	ErrBlackout   = &Error{Kind: KindBlackout, Message: "requested time falls in a blackout period"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "requested time overlaps an existing appointment"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrTransient  = &Error{Kind: KindTransient, Message: "store busy, try again"}
)

func newError(kind Kind, field, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
