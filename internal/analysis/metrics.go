// Package analysis implements the interval-based queue-depth and idle-time
// analysis over one captured trace: per-event self time, a unified
// queue-depth timeline across host and device events, idle-time attribution
// and the optimization-candidate ranking heuristic.
//
// One Evaluation processes one immutable trace snapshot to completion on a
// single goroutine. Independent traces can be evaluated in parallel with no
// shared state.
package analysis

import (
	"cmp"
	"slices"
)

// Interval is a half-open time range [Start, End) in nanoseconds, tagged
// with the device queue depth active during it. Start <= End.
type Interval struct {
	Start      int64
	End        int64
	QueueDepth int32
}

// EventMetrics holds the derived metrics for one host event.
type EventMetrics struct {
	DurationNs int64
	SelfTimeNs int64
	IdleTimeNs int64
	QueueDepth int32
}

// FractionIdleTime returns the share of the event's duration that overlapped
// device idle intervals. Zero-duration events report 0 rather than dividing
// by zero.
func (m *EventMetrics) FractionIdleTime() float64 {
	if m.DurationNs == 0 {
		return 0
	}
	return float64(m.IdleTimeNs) / float64(m.DurationNs)
}

// EventKey identifies a host event by its stable ID. It is comparable and
// cheap to hash regardless of the shape of the underlying event record, so
// it serves as the map key for all per-event state.
type EventKey struct {
	ID int64
}

// overlapWithIntervals computes how much of the span [startNs, endNs)
// overlaps the given intervals. It operates on a private sorted copy:
// whenever two consecutive intervals overlap, the earlier one's end is
// clipped down to the later one's start so that no region is counted twice.
// The caller's slice is never modified, so repeated calls are side-effect
// free.
func overlapWithIntervals(startNs, endNs int64, intervals []Interval) int64 {
	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int {
		return cmp.Compare(a.Start, b.Start)
	})

	var total int64
	for i := range sorted {
		end := sorted[i].End
		if i+1 < len(sorted) && end > sorted[i+1].Start {
			end = sorted[i+1].Start
		}
		overlapStart := max(startNs, sorted[i].Start)
		overlapEnd := min(endNs, end)
		if overlapStart < overlapEnd {
			total += overlapEnd - overlapStart
		}
	}
	return total
}
