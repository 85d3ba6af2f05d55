// Package trace models a captured execution trace: a forest of host-side
// operation events plus a flat list of device-side (accelerator) events.
// The analysis engine treats these records as read-only input.
package trace

// HostEvent is a CPU-side operation record. Host events form a forest:
// a child's time range is fully contained within its parent's.
type HostEvent struct {
	// ID is the event's stable identity within one trace. The analysis
	// engine keys its metrics on this value, so it must be unique.
	ID   int64
	Name string

	// Timestamps in nanoseconds since the trace origin.
	StartNs int64
	EndNs   int64

	Parent   *HostEvent
	Children []*HostEvent
}

// DurationNs returns the event's wall duration in nanoseconds.
func (e *HostEvent) DurationNs() int64 {
	return e.EndNs - e.StartNs
}

// DeviceEvent is a device-side record: either a host-issued launch request
// or the accelerator work it spawned. Device events are recorded at
// microsecond resolution by the capture layer.
type DeviceEvent struct {
	Name string

	// Timestamps in microseconds since the trace origin.
	StartUs int64
	DurUs   int64

	// DeviceType tags where the event executed ("cuda" for kernel work,
	// "cpu" for runtime calls issued from the host).
	DeviceType string

	// Correlation links a launch event to the kernel it spawned.
	// Zero means no correlation was recorded.
	Correlation int64
}

// StartNs returns the event start normalized to nanoseconds.
func (e *DeviceEvent) StartNs() int64 {
	return e.StartUs * 1000
}

// EndNs returns the event end normalized to nanoseconds.
func (e *DeviceEvent) EndNs() int64 {
	return (e.StartUs + e.DurUs) * 1000
}

// Trace is one immutable captured snapshot: the host-event forest and the
// flat device-event list. A Trace with no events is valid.
type Trace struct {
	HostRoots    []*HostEvent
	DeviceEvents []*DeviceEvent
}

// HostEventCount returns the number of host events in the forest.
func (t *Trace) HostEventCount() int {
	count := 0
	stack := append([]*HostEvent(nil), t.HostRoots...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, cur.Children...)
	}
	return count
}
