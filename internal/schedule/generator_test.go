package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeCalendar struct {
	windows   []Interval
	busy      []Interval
	blackouts []Interval

	windowCalls int
}

func (f *fakeCalendar) WorkingWindows(_ context.Context, _ uuid.UUID, day time.Time) ([]Interval, error) {
	f.windowCalls++
	var out []Interval
	for _, w := range f.windows {
		if !w.Start.Before(day) && w.Start.Before(day.AddDate(0, 0, 1)) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, _ uuid.UUID, from, to time.Time) ([]Interval, error) {
	return clip(f.busy, from, to), nil
}

func (f *fakeCalendar) BlackoutIntervals(_ context.Context, _ uuid.UUID, from, to time.Time) ([]Interval, error) {
	return clip(f.blackouts, from, to), nil
}

func clip(ivs []Interval, from, to time.Time) []Interval {
	var out []Interval
	for _, b := range ivs {
		if b.Start.Before(to) && from.Before(b.End) {
			out = append(out, b)
		}
	}
	return out
}

func newRequest(duration time.Duration) Request {
	return Request{
		ProviderID: uuid.New(),
		ServiceID:  uuid.New(),
		Duration:   duration,
		From:       testDay,
		To:         testDay.AddDate(0, 0, 1),
	}
}

func starts(slots []Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func TestGenerator_OpenDayNoBookings(t *testing.T) {
	// Open 09:00-17:00, 60 min service, 15 min granularity: starts every
	// quarter hour from 09:00 through 16:00, the last slot ending exactly at
	// closing time.
	store := &fakeCalendar{windows: []Interval{iv(9, 0, 17, 0)}}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}

	if len(slots) != 29 {
		t.Fatalf("expected 29 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(9, 0)) {
		t.Fatalf("first slot starts %s, want 09:00", slots[0].Start.Format("15:04"))
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(at(16, 0)) || !last.End.Equal(at(17, 0)) {
		t.Fatalf("last slot [%s, %s), want [16:00, 17:00)",
			last.Start.Format("15:04"), last.End.Format("15:04"))
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != time.Hour {
			t.Fatalf("slot [%s, %s) is not exactly one hour",
				s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
}

func TestGenerator_ExistingBookingRemovesOverlappingStarts(t *testing.T) {
	store := &fakeCalendar{
		windows: []Interval{iv(9, 0, 17, 0)},
		busy:    []Interval{iv(10, 0, 10, 45)}, // buffer 0
	}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}

	have := map[time.Time]bool{}
	for _, s := range starts(slots) {
		have[s] = true
	}

	if !have[at(9, 0)] {
		t.Error("slot starting 09:00 (ending at the booking start) must survive")
	}
	for _, m := range []int{15, 30, 45} {
		if have[at(9, m)] {
			t.Errorf("slot starting 09:%02d overlaps the booking and must be removed", m)
		}
	}
	if have[at(10, 0)] || have[at(10, 15)] || have[at(10, 30)] {
		t.Error("slots starting inside or across the booking must be removed")
	}
	if !have[at(10, 45)] {
		t.Error("discretization restarts at the gap start 10:45")
	}
}

func TestGenerator_BufferedBusyBlocksAdjacency(t *testing.T) {
	// The store reports busy ends already extended by the booked service's
	// after-buffer: a 10:00-10:45 booking with a 15 min buffer occupies
	// 10:00-11:00.
	store := &fakeCalendar{
		windows: []Interval{iv(9, 0, 17, 0)},
		busy:    []Interval{iv(10, 0, 11, 0)},
	}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	for _, s := range slots {
		if s.Start.After(at(9, 0)) && s.Start.Before(at(11, 0)) {
			t.Fatalf("slot starting %s intrudes on the buffered booking", s.Start.Format("15:04"))
		}
	}
}

func TestGenerator_ClosedDay(t *testing.T) {
	gen := NewGenerator(&fakeCalendar{}, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("closed day is not an error, got: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("closed day must yield no slots, got %d", len(slots))
	}
}

func TestGenerator_BlackoutOnlyDay(t *testing.T) {
	store := &fakeCalendar{
		windows:   []Interval{iv(9, 0, 17, 0)},
		blackouts: []Interval{iv(0, 0, 24, 0)},
	}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("fully blacked-out day must yield no slots, got %d", len(slots))
	}
}

func TestGenerator_GapExactlyDuration(t *testing.T) {
	store := &fakeCalendar{
		windows: []Interval{iv(9, 0, 17, 0)},
		busy:    []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)}, // leaves exactly 12:00-13:00
	}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("gap equal to duration must yield exactly one slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(12, 0)) || !slots[0].End.Equal(at(13, 0)) {
		t.Fatalf("got slot [%s, %s), want [12:00, 13:00)",
			slots[0].Start.Format("15:04"), slots[0].End.Format("15:04"))
	}
}

func TestGenerator_GapShorterThanDuration(t *testing.T) {
	store := &fakeCalendar{
		windows: []Interval{iv(9, 0, 17, 0)},
		busy:    []Interval{iv(9, 0, 12, 0), iv(12, 45, 17, 0)}, // 45 min gap
	}
	gen := NewGenerator(store, 15*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(time.Hour))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("gap shorter than duration must yield no slots, got %d", len(slots))
	}
}

func TestGenerator_SlotsAreDisjointAndInsideWorkingHours(t *testing.T) {
	store := &fakeCalendar{
		windows:   []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)},
		busy:      []Interval{iv(10, 0, 10, 30), iv(14, 15, 15, 0)},
		blackouts: []Interval{iv(16, 0, 16, 30)},
	}
	gen := NewGenerator(store, 30*time.Minute, nil)

	slots, err := gen.Slots(context.Background(), newRequest(30*time.Minute))
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected some slots")
	}

	occupied := append(append([]Interval{}, store.busy...), store.blackouts...)
	for i, s := range slots {
		slot := Interval{Start: s.Start, End: s.End}
		if i > 0 && slots[i-1].End.After(s.Start) {
			t.Fatalf("slots %d and %d overlap", i-1, i)
		}
		inWindow := false
		for _, w := range store.windows {
			if !s.Start.Before(w.Start) && !s.End.After(w.End) {
				inWindow = true
			}
		}
		if !inWindow {
			t.Fatalf("slot [%s, %s) lies outside working hours",
				s.Start.Format("15:04"), s.End.Format("15:04"))
		}
		for _, b := range occupied {
			if slot.Overlaps(b) {
				t.Fatalf("slot [%s, %s) overlaps busy interval [%s, %s)",
					s.Start.Format("15:04"), s.End.Format("15:04"),
					b.Start.Format("15:04"), b.End.Format("15:04"))
			}
		}
	}
}

func TestGenerator_Idempotent(t *testing.T) {
	store := &fakeCalendar{
		windows: []Interval{iv(9, 0, 17, 0)},
		busy:    []Interval{iv(11, 0, 11, 30)},
	}
	gen := NewGenerator(store, 15*time.Minute, nil)
	req := newRequest(45 * time.Minute)

	first, err := gen.Slots(context.Background(), req)
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	second, err := gen.Slots(context.Background(), req)
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestGenerator_CacheHitAndInvalidate(t *testing.T) {
	store := &fakeCalendar{windows: []Interval{iv(9, 0, 17, 0)}}
	cache, err := NewSlotCache(16)
	if err != nil {
		t.Fatalf("NewSlotCache: %v", err)
	}
	gen := NewGenerator(store, 15*time.Minute, cache)
	req := newRequest(time.Hour)

	if _, err := gen.Slots(context.Background(), req); err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if _, err := gen.Slots(context.Background(), req); err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if store.windowCalls != 1 {
		t.Fatalf("second run must be served from cache, store hit %d times", store.windowCalls)
	}

	cache.Invalidate(req.ProviderID)
	if _, err := gen.Slots(context.Background(), req); err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	if store.windowCalls != 2 {
		t.Fatalf("invalidation must force regeneration, store hit %d times", store.windowCalls)
	}
}

func TestGenerator_RangeClipsSlots(t *testing.T) {
	store := &fakeCalendar{windows: []Interval{iv(9, 0, 17, 0)}}
	gen := NewGenerator(store, 15*time.Minute, nil)

	req := newRequest(time.Hour)
	req.From = at(10, 0)
	req.To = at(12, 0)

	slots, err := gen.Slots(context.Background(), req)
	if err != nil {
		t.Fatalf("Slots() error: %v", err)
	}
	for _, s := range slots {
		if s.Start.Before(req.From) || s.End.After(req.To) {
			t.Fatalf("slot [%s, %s) escapes the requested range",
				s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
	if len(slots) == 0 {
		t.Fatal("expected slots inside the clipped range")
	}
}
