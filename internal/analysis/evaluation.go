package analysis

import (
	"cmp"
	"slices"

	"github.com/phuslu/log"

	"traceidle/internal/logger"
	"traceidle/internal/trace"
)

// DefaultDrainThreshold is how far the queue depth must rise above a drain
// window's starting depth before the window counts as a drain pattern. The
// value is a domain heuristic carried over from the profiler this analysis
// derives from; override it through Options if a workload needs a different
// sensitivity.
const DefaultDrainThreshold = 3

// Options configures one evaluation run.
type Options struct {
	// Classifier splits device events into launches and kernels.
	// Defaults to NewCUDAClassifier.
	Classifier Classifier

	// DrainThreshold overrides DefaultDrainThreshold when > 0.
	DrainThreshold int32
}

// Evaluation holds the derived metrics for one trace. Build it with
// NewEvaluation; all fields are computed once and read-only afterwards.
type Evaluation struct {
	trc  *trace.Trace
	opts Options
	log  log.Logger

	// Metrics maps each host event's identity to its derived metrics.
	Metrics map[EventKey]*EventMetrics

	// events is every host event in the forest, sorted by start time.
	events []*trace.HostEvent
	byKey  map[EventKey]*trace.HostEvent

	// queueDepth is the canonical queue-depth timeline over the span of
	// device activity, in start order. Never mutated after construction;
	// overlap computations work on private copies.
	queueDepth []Interval

	// idleIntervals are the derived zero-depth ranges, including the two
	// boundary intervals when device activity exists.
	idleIntervals []Interval
}

// timelineEntry is the tagged union over host and device events used by the
// merged timeline. Exactly one of the two fields is set; both comparison and
// the sweep read time only through span().
type timelineEntry struct {
	host   *trace.HostEvent
	device *trace.DeviceEvent
}

func (e timelineEntry) span() (startNs, endNs int64, ok bool) {
	switch {
	case e.device != nil:
		return e.device.StartNs(), e.device.EndNs(), true
	case e.host != nil:
		return e.host.StartNs, e.host.EndNs, true
	}
	return 0, 0, false
}

// NewEvaluation runs the full analysis over one trace: self time for every
// host event, the unified queue-depth timeline, and idle-time attribution.
// It fails with *CorruptTraceError or *UnknownEventKindError on malformed
// input; there are no partial results.
func NewEvaluation(trc *trace.Trace, opts Options) (*Evaluation, error) {
	if opts.Classifier == nil {
		opts.Classifier = NewCUDAClassifier()
	}
	if opts.DrainThreshold <= 0 {
		opts.DrainThreshold = DefaultDrainThreshold
	}

	ev := &Evaluation{
		trc:     trc,
		opts:    opts,
		log:     logger.NewLoggerCtx("analysis"),
		Metrics: make(map[EventKey]*EventMetrics),
		byKey:   make(map[EventKey]*trace.HostEvent),
	}

	if err := ev.computeSelfTime(); err != nil {
		return nil, err
	}
	// Start order with an ID tie-break: start-tied events must land in the
	// same slot on every run, since the idle-time boundaries anchor on the
	// first and last entries of this slice.
	slices.SortFunc(ev.events, func(a, b *trace.HostEvent) int {
		if c := cmp.Compare(a.StartNs, b.StartNs); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if err := ev.computeQueueDepth(); err != nil {
		return nil, err
	}
	ev.computeIdleTime()

	ev.log.Debug().
		Int("host_events", len(ev.events)).
		Int("queue_depth_intervals", len(ev.queueDepth)).
		Int("idle_intervals", len(ev.idleIntervals)).
		Msg("Evaluation complete")
	return ev, nil
}

// computeSelfTime walks the host-event forest iteratively (an explicit
// stack keeps deep call trees from hitting recursion limits) and records
// each event's duration and exclusive time: its own duration minus the
// durations of its direct children.
func (ev *Evaluation) computeSelfTime() error {
	stack := append([]*trace.HostEvent(nil), ev.trc.HostRoots...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		selfTime := cur.DurationNs()
		for _, child := range cur.Children {
			selfTime -= child.DurationNs()
			stack = append(stack, child)
		}

		key := EventKey{ID: cur.ID}
		if _, exists := ev.Metrics[key]; exists {
			return &CorruptTraceError{ID: cur.ID, Name: cur.Name}
		}
		ev.Metrics[key] = &EventMetrics{
			DurationNs: cur.DurationNs(),
			SelfTimeNs: selfTime,
		}
		ev.byKey[key] = cur
		ev.events = append(ev.events, cur)
	}
	return nil
}

// computeQueueDepth merges launches, kernels and host events into one
// timeline and sweeps it, tracking how many kernels have been dispatched
// but have not started executing. Device entries emit queue-depth
// intervals; host entries are annotated with the depth active at their
// start.
func (ev *Evaluation) computeQueueDepth() error {
	launches, kernels := ev.classifyDeviceEvents()

	// One-to-one launch-to-kernel correlation. The cursor only moves
	// forward, so each kernel is consumed at most once and total matching
	// work stays linear in the common monotonic-correlation case.
	spawned := make(map[*trace.DeviceEvent]int, len(launches))
	cursor := 0
	for _, launch := range launches {
		for j := cursor; j < len(kernels); j++ {
			if kernels[j].Correlation == launch.Correlation {
				spawned[launch] = j
				cursor = j + 1
				break
			}
		}
	}

	entries := make([]timelineEntry, 0, len(launches)+len(kernels)+len(ev.events))
	for _, e := range launches {
		entries = append(entries, timelineEntry{device: e})
	}
	for _, e := range kernels {
		entries = append(entries, timelineEntry{device: e})
	}
	for _, e := range ev.events {
		entries = append(entries, timelineEntry{host: e})
	}
	for i, e := range entries {
		if _, _, ok := e.span(); !ok {
			return &UnknownEventKindError{Index: i}
		}
	}
	slices.SortStableFunc(entries, func(a, b timelineEntry) int {
		aStart, _, _ := a.span()
		bStart, _, _ := b.span()
		return cmp.Compare(aStart, bStart)
	})

	currentKernelIndex := 0
	spawnedKernelIndex := -1
	for _, entry := range entries {
		start, end, _ := entry.span()

		if entry.device != nil {
			if idx, ok := spawned[entry.device]; ok {
				spawnedKernelIndex = idx
			}
		}
		for currentKernelIndex < len(kernels) &&
			kernels[currentKernelIndex].StartNs() <= start {
			currentKernelIndex++
		}
		depth := int32(spawnedKernelIndex - currentKernelIndex + 1)

		if entry.device != nil {
			ev.queueDepth = append(ev.queueDepth, Interval{
				Start:      start,
				End:        end,
				QueueDepth: depth,
			})
		} else {
			ev.Metrics[EventKey{ID: entry.host.ID}].QueueDepth = depth
		}
	}
	return nil
}

func (ev *Evaluation) classifyDeviceEvents() (launches, kernels []*trace.DeviceEvent) {
	for _, e := range ev.trc.DeviceEvents {
		if ev.opts.Classifier.IsLaunch(e) {
			launches = append(launches, e)
		}
		if ev.opts.Classifier.IsKernel(e) {
			kernels = append(kernels, e)
		}
	}
	byStart := func(a, b *trace.DeviceEvent) int {
		return cmp.Compare(a.StartUs, b.StartUs)
	}
	slices.SortStableFunc(launches, byStart)
	slices.SortStableFunc(kernels, byStart)
	return launches, kernels
}

// computeIdleTime derives the idle intervals (queue depth zero) from the
// queue-depth timeline and attributes to every host event the portion of
// its duration that overlapped them. The ranges before the first and after
// the last device activity are idle by definition and always included.
func (ev *Evaluation) computeIdleTime() {
	if len(ev.queueDepth) > 0 && len(ev.events) > 0 {
		ev.idleIntervals = append(ev.idleIntervals,
			Interval{
				Start: ev.events[0].StartNs,
				End:   ev.queueDepth[0].Start,
			},
			Interval{
				Start: ev.queueDepth[len(ev.queueDepth)-1].End,
				End:   ev.events[len(ev.events)-1].EndNs,
			},
		)
	}

	// A falling edge (depth > 0 to depth == 0) opens an idle interval at the
	// boundary between the two timeline intervals; the next rising edge
	// closes it at the rising interval's start. An interval still open when
	// device activity ends is closed at the last interval's end, where the
	// trailing boundary interval takes over.
	idle := false
	var idleStart int64
	for i, point := range ev.queueDepth {
		if point.QueueDepth == 0 && !idle {
			if i > 0 {
				idleStart = min(ev.queueDepth[i-1].End, point.Start)
			} else {
				idleStart = point.End
			}
			idle = true
		}
		if point.QueueDepth > 0 && idle {
			ev.idleIntervals = append(ev.idleIntervals, Interval{
				Start: idleStart,
				End:   point.Start,
			})
			idle = false
		}
	}
	if idle {
		ev.idleIntervals = append(ev.idleIntervals, Interval{
			Start: idleStart,
			End:   ev.queueDepth[len(ev.queueDepth)-1].End,
		})
	}

	for _, e := range ev.events {
		ev.Metrics[EventKey{ID: e.ID}].IdleTimeNs =
			overlapWithIntervals(e.StartNs, e.EndNs, ev.idleIntervals)
	}
}

// Event returns the host event behind a key.
func (ev *Evaluation) Event(key EventKey) *trace.HostEvent {
	return ev.byKey[key]
}

// Metric returns the metrics record for a key, or nil when unknown.
func (ev *Evaluation) Metric(key EventKey) *EventMetrics {
	return ev.Metrics[key]
}

// QueueDepthList returns a copy of the queue-depth timeline in start order.
func (ev *Evaluation) QueueDepthList() []Interval {
	return slices.Clone(ev.queueDepth)
}

// IdleIntervals returns a copy of the derived idle intervals.
func (ev *Evaluation) IdleIntervals() []Interval {
	return slices.Clone(ev.idleIntervals)
}

// TotalIdleTimeNs sums the idle intervals after overlap clipping, bounded by
// the span of host activity.
func (ev *Evaluation) TotalIdleTimeNs() int64 {
	if len(ev.events) == 0 {
		return 0
	}
	first := ev.events[0].StartNs
	last := ev.events[len(ev.events)-1].EndNs
	return overlapWithIntervals(first, last, ev.idleIntervals)
}

// MaxQueueDepth returns the highest depth seen on the timeline.
func (ev *Evaluation) MaxQueueDepth() int32 {
	var depthMax int32
	for _, iv := range ev.queueDepth {
		depthMax = max(depthMax, iv.QueueDepth)
	}
	return depthMax
}

// HostEventCount returns the number of host events analyzed.
func (ev *Evaluation) HostEventCount() int {
	return len(ev.events)
}
