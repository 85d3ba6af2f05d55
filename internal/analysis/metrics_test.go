package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlapClipsDoubleCountedRegions(t *testing.T) {
	// [0,100) and [50,150) share [50,100); the overlap pass must clip the
	// first interval down to [0,50) so the shared region counts once.
	intervals := []Interval{
		{Start: 0, End: 100},
		{Start: 50, End: 150},
	}

	assert.Equal(t, int64(150), overlapWithIntervals(0, 150, intervals))
	assert.Equal(t, int64(50), overlapWithIntervals(50, 100, intervals))
	assert.Equal(t, int64(100), overlapWithIntervals(0, 100, intervals))
}

func TestOverlapClippingIsIdempotent(t *testing.T) {
	raw := []Interval{
		{Start: 0, End: 100},
		{Start: 50, End: 150},
		{Start: 150, End: 200},
	}
	clipped := []Interval{
		{Start: 0, End: 50},
		{Start: 50, End: 150},
		{Start: 150, End: 200},
	}

	// An already-clipped list yields the same overlap as the raw one.
	assert.Equal(t,
		overlapWithIntervals(0, 200, raw),
		overlapWithIntervals(0, 200, clipped))

	// The pass works on a private copy; the caller's slice is untouched.
	assert.Equal(t, int64(100), raw[0].End)
}

func TestOverlapUnsortedInput(t *testing.T) {
	intervals := []Interval{
		{Start: 80, End: 90},
		{Start: 10, End: 20},
	}
	assert.Equal(t, int64(20), overlapWithIntervals(0, 100, intervals))
	assert.Equal(t, int64(5), overlapWithIntervals(15, 85, intervals))
}

func TestOverlapOutsideSpan(t *testing.T) {
	intervals := []Interval{{Start: 10, End: 20}}
	assert.Equal(t, int64(0), overlapWithIntervals(30, 40, intervals))
	assert.Equal(t, int64(0), overlapWithIntervals(0, 10, intervals))
	assert.Equal(t, int64(0), overlapWithIntervals(0, 100, nil))
}

func TestFractionIdleTime(t *testing.T) {
	m := &EventMetrics{DurationNs: 200, IdleTimeNs: 50}
	assert.InDelta(t, 0.25, m.FractionIdleTime(), 1e-9)

	zero := &EventMetrics{DurationNs: 0, IdleTimeNs: 0}
	assert.Equal(t, 0.0, zero.FractionIdleTime(), "zero duration reports 0, not NaN")
}
