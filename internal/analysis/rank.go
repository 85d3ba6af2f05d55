package analysis

import (
	"cmp"
	"math"
	"slices"
)

// Candidate pairs a ranked host event with its metrics and heuristic score.
type Candidate struct {
	Key     EventKey
	Score   float64
	Metrics *EventMetrics
}

// RankedCandidates returns every host event judged worth optimizing, best
// first. The heuristic has two stages: find the drain patterns where the
// device queue filled up and then emptied, and score the events overlapping
// those windows by how much idle time and self time they carry relative to
// each other.
//
// An empty result means no event matched a drain pattern; that is a normal
// outcome, not an error.
func (ev *Evaluation) RankedCandidates() []Candidate {
	decrease := ev.drainIntervals()

	var candidates []Candidate
	for _, e := range ev.events {
		if overlapWithIntervals(e.StartNs, e.EndNs, decrease) > 0 {
			key := EventKey{ID: e.ID}
			candidates = append(candidates, Candidate{
				Key:     key,
				Metrics: ev.Metrics[key],
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	idleTimes := make([]float64, len(candidates))
	selfTimes := make([]float64, len(candidates))
	for i, c := range candidates {
		idleTimes[i] = float64(c.Metrics.IdleTimeNs)
		selfTimes[i] = float64(c.Metrics.SelfTimeNs)
	}
	idleScores := standardScores(idleTimes)
	selfScores := standardScores(selfTimes)
	for i := range candidates {
		candidates[i].Score = idleScores[i] + selfScores[i]
	}

	// Descending by score, tied scores by event ID, so repeated runs over
	// the same trace return the same order.
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return cmp.Compare(a.Key.ID, b.Key.ID)
	})
	return candidates
}

// RankEvents returns up to length ranked candidates, best first.
// length <= 0 yields an empty result.
func (ev *Evaluation) RankEvents(length int) []Candidate {
	ranked := ev.RankedCandidates()
	if length < 0 {
		length = 0
	}
	if length < len(ranked) {
		ranked = ranked[:length]
	}
	return ranked
}

// drainIntervals scans the queue-depth timeline latest-first for windows
// where the depth rises from <= 1 past the threshold and falls back to
// <= 1: the backlog built up and then drained, so the events feeding the
// device during the fall are the ones that let it run dry. Each matched
// window spans from the peak's timestamp back to the window start's
// timestamp, and the scan jumps past a matched window so nested windows are
// not reported twice.
func (ev *Evaluation) drainIntervals() []Interval {
	reversed := slices.Clone(ev.queueDepth)
	slices.Reverse(reversed)

	var decrease []Interval
	for i := 0; i < len(reversed)-1; i++ {
		if reversed[i].QueueDepth > 1 {
			continue
		}
		for j := i + 1; j < len(reversed); j++ {
			if reversed[j].QueueDepth > 1 {
				continue
			}
			peak := argmaxDepth(reversed, i+1, j)
			if peak < 0 {
				continue
			}
			if reversed[peak].QueueDepth-reversed[i].QueueDepth > ev.opts.DrainThreshold {
				decrease = append(decrease, Interval{
					Start: reversed[peak].Start,
					End:   reversed[i].Start,
				})
				i = j
				break
			}
		}
	}
	return decrease
}

// argmaxDepth returns the index of the deepest interval in [start, end),
// or -1 when the range is empty.
func argmaxDepth(intervals []Interval, start, end int) int {
	best := -1
	for i := start; i < end && i < len(intervals); i++ {
		if best < 0 || intervals[i].QueueDepth > intervals[best].QueueDepth {
			best = i
		}
	}
	return best
}

// standardScores returns the z-score of every value: distance from the mean
// in standard deviations, computed over the given values only. A set with
// zero variance (or a single value) has no defined standard score; it
// contributes 0 rather than NaN so the other ranking term still decides.
func standardScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	if len(values) < 2 {
		return scores
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)-1))
	if std == 0 {
		return scores
	}

	for i, v := range values {
		scores[i] = (v - mean) / std
	}
	return scores
}
