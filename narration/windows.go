package narration

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidWindowing = errors.New("invalid windowing")

// Window is a contiguous, possibly overlapping slice of the event timeline.
type Window struct {
	Index int
	// Start and End are the bounds of the slicing interval [Start, Start+size).
	Start float64
	End   float64
	// Events are the events whose time falls inside the interval.
	Events []UnifiedEvent
}

// Span returns the time range actually covered by the window's events:
// the earliest event time and the latest event end.
func (w Window) Span() (start, end float64) {
	if len(w.Events) == 0 {
		return w.Start, w.Start
	}
	start = w.Events[0].Time
	end = w.Events[0].end()
	for _, e := range w.Events[1:] {
		if e.Time < start {
			start = e.Time
		}
		if v := e.end(); v > end {
			end = v
		}
	}
	return start, end
}

// SlidingWindows slices events into windows of size seconds that advance by
// size-overlap. Empty windows are dropped and indexes are assigned to the
// remaining windows in order. The event at the latest timestamp is always
// covered, including when it sits exactly on a window boundary.
func SlidingWindows(events []UnifiedEvent, size, overlap float64) ([]Window, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("%w: window size %.3f must be > 0", ErrInvalidWindowing, size)
	}
	if !(overlap >= 0 && overlap < size) {
		return nil, fmt.Errorf("%w: window overlap %.3f must be in [0, %.3f)", ErrInvalidWindowing, overlap, size)
	}
	if len(events) == 0 {
		return nil, nil
	}

	maxTime := events[0].Time
	for _, e := range events[1:] {
		if e.Time > maxTime {
			maxTime = e.Time
		}
	}

	if math.IsNaN(maxTime) || math.IsInf(maxTime, 0) {
		return nil, fmt.Errorf("%w: event time %v is not finite", ErrInvalidWindowing, maxTime)
	}

	step := size - overlap
	var out []Window
	coveredMax := false
	for k := 0; ; k++ {
		start := float64(k) * step
		if start > maxTime || (start == maxTime && coveredMax) {
			break
		}
		end := start + size
		var in []UnifiedEvent
		for _, e := range events {
			if e.Time >= start && e.Time < end {
				in = append(in, e)
			}
		}
		if maxTime >= start && maxTime < end {
			coveredMax = true
		}
		if len(in) == 0 {
			continue
		}
		out = append(out, Window{Index: len(out), Start: start, End: end, Events: in})
	}
	return out, nil
}
