package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is a transient candidate booking interval. Slots are never persisted;
// they are advisory and re-validated by the conflict guard at commit time.
type Slot struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	Start      time.Time
	End        time.Time
}

// Request describes one availability query. From/To bound the searched range;
// days are walked in UTC.
type Request struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	Duration   time.Duration
	From       time.Time
	To         time.Time
}

// CalendarReader is the read-only store surface the generator needs.
type CalendarReader interface {
	// WorkingWindows returns the provider's open windows materialized onto the
	// given day, in ascending order. An empty result means closed that day.
	WorkingWindows(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Interval, error)
	// BusyIntervals returns active appointments overlapping [from, to), each
	// end already extended by its service's after-buffer.
	BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Interval, error)
	// BlackoutIntervals returns blackout periods overlapping [from, to).
	BlackoutIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Interval, error)
}

// Generator produces candidate slots by subtracting busy and blackout
// intervals from working hours. Output is a pure function of store state at
// generation time.
type Generator struct {
	store       CalendarReader
	granularity time.Duration
	cache       *SlotCache // may be nil
}

func NewGenerator(store CalendarReader, granularity time.Duration, cache *SlotCache) *Generator {
	if granularity <= 0 {
		granularity = 15 * time.Minute
	}
	return &Generator{
		store:       store,
		granularity: granularity,
		cache:       cache,
	}
}

// Slots walks each UTC day touched by [req.From, req.To) and emits candidate
// slots in ascending start order. Slots are clipped to the requested range:
// a slot is included only if it lies entirely within it.
func (g *Generator) Slots(ctx context.Context, req Request) ([]Slot, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %s", req.Duration)
	}
	if !req.To.After(req.From) {
		return nil, nil
	}

	var out []Slot
	first := req.From.UTC().Truncate(24 * time.Hour)
	for day := first; day.Before(req.To); day = day.AddDate(0, 0, 1) {
		daySlots, err := g.daySlots(ctx, req, day)
		if err != nil {
			return nil, err
		}
		for _, s := range daySlots {
			if s.Start.Before(req.From) || s.End.After(req.To) {
				continue
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *Generator) daySlots(ctx context.Context, req Request, day time.Time) ([]Slot, error) {
	if g.cache != nil {
		if slots, ok := g.cache.Get(req.ProviderID, req.ServiceID, req.Duration, day); ok {
			return slots, nil
		}
	}

	windows, err := g.store.WorkingWindows(ctx, req.ProviderID, day)
	if err != nil {
		return nil, fmt.Errorf("load working windows: %w", err)
	}
	// Closed that day: not an error, just nothing to offer.
	if len(windows) == 0 {
		return nil, nil
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	busy, err := g.store.BusyIntervals(ctx, req.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}
	blackouts, err := g.store.BlackoutIntervals(ctx, req.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}

	merged := Merge(append(busy, blackouts...))

	var slots []Slot
	for _, window := range windows {
		for _, gap := range Subtract(window, merged) {
			slots = appendGapSlots(slots, req, gap, g.granularity)
		}
	}

	if g.cache != nil {
		g.cache.Add(req.ProviderID, req.ServiceID, req.Duration, day, slots)
	}
	return slots, nil
}

// appendGapSlots emits slots every step from the gap start while a full
// service duration still fits. A gap exactly equal to the duration yields
// exactly one slot.
func appendGapSlots(slots []Slot, req Request, gap Interval, step time.Duration) []Slot {
	for t := gap.Start; !t.Add(req.Duration).After(gap.End); t = t.Add(step) {
		slots = append(slots, Slot{
			ProviderID: req.ProviderID,
			ServiceID:  req.ServiceID,
			Start:      t,
			End:        t.Add(req.Duration),
		})
	}
	return slots
}
