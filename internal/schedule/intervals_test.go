package schedule

import (
	"testing"
	"time"
)

var testDay = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func iv(startHour, startMin, endHour, endMin int) Interval {
	return Interval{Start: at(startHour, startMin), End: at(endHour, endMin)}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "disjoint stay disjoint",
			in:   []Interval{iv(13, 0, 14, 0), iv(9, 0, 10, 0)},
			want: []Interval{iv(9, 0, 10, 0), iv(13, 0, 14, 0)},
		},
		{
			name: "overlapping collapse",
			in:   []Interval{iv(9, 0, 11, 0), iv(10, 30, 12, 0)},
			want: []Interval{iv(9, 0, 12, 0)},
		},
		{
			name: "touching collapse",
			in:   []Interval{iv(9, 0, 10, 0), iv(10, 0, 11, 0)},
			want: []Interval{iv(9, 0, 11, 0)},
		},
		{
			name: "contained is absorbed",
			in:   []Interval{iv(9, 0, 12, 0), iv(10, 0, 11, 0)},
			want: []Interval{iv(9, 0, 12, 0)},
		},
		{
			name: "inverted and empty dropped",
			in:   []Interval{iv(11, 0, 10, 0), iv(9, 0, 9, 0), iv(13, 0, 14, 0)},
			want: []Interval{iv(13, 0, 14, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in)
			assertIntervals(t, got, tt.want)
		})
	}
}

func TestSubtract(t *testing.T) {
	window := iv(9, 0, 17, 0)

	tests := []struct {
		name string
		busy []Interval
		want []Interval
	}{
		{
			name: "no busy keeps whole window",
			busy: nil,
			want: []Interval{window},
		},
		{
			name: "middle split",
			busy: []Interval{iv(12, 0, 13, 0)},
			want: []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)},
		},
		{
			name: "busy covering window start",
			busy: []Interval{iv(8, 0, 10, 0)},
			want: []Interval{iv(10, 0, 17, 0)},
		},
		{
			name: "busy covering window end",
			busy: []Interval{iv(16, 0, 18, 0)},
			want: []Interval{iv(9, 0, 16, 0)},
		},
		{
			name: "busy covering everything",
			busy: []Interval{iv(8, 0, 18, 0)},
			want: nil,
		},
		{
			name: "busy entirely outside",
			busy: []Interval{iv(6, 0, 7, 0), iv(18, 0, 19, 0)},
			want: []Interval{window},
		},
		{
			name: "multiple gaps",
			busy: []Interval{iv(10, 0, 10, 45), iv(14, 0, 15, 30)},
			want: []Interval{iv(9, 0, 10, 0), iv(10, 45, 14, 0), iv(15, 30, 17, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(window, tt.busy)
			assertIntervals(t, got, tt.want)
		})
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	a := iv(9, 0, 10, 0)

	if a.Overlaps(iv(10, 0, 11, 0)) {
		t.Fatal("back-to-back intervals must not overlap")
	}
	if !a.Overlaps(iv(9, 59, 11, 0)) {
		t.Fatal("one-minute intersection must overlap")
	}
	if a.Overlaps(iv(8, 0, 9, 0)) {
		t.Fatal("interval ending at start must not overlap")
	}
}

func assertIntervals(t *testing.T, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: got [%s, %s), want [%s, %s)",
				i,
				got[i].Start.Format("15:04"), got[i].End.Format("15:04"),
				want[i].Start.Format("15:04"), want[i].End.Format("15:04"))
		}
	}
}
