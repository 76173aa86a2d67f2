package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps uses the half-open intersection test: [a,b) overlaps [c,d)
// iff a < d && c < b.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Merge sorts the given intervals by start and collapses overlapping or
// touching ones into a minimal disjoint set. Empty or inverted intervals are
// dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	valid := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End.After(iv.Start) {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract returns the free gaps left in window after removing busy. busy must
// already be merged (disjoint, sorted by start); gaps of zero length are not
// emitted.
func Subtract(window Interval, busy []Interval) []Interval {
	if !window.End.After(window.Start) {
		return nil
	}

	var gaps []Interval
	cursor := window.Start
	for _, b := range busy {
		if !b.Start.Before(window.End) {
			break
		}
		if !b.End.After(cursor) {
			continue
		}
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(window.End) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}
