package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/phuslu/log"

	"traceidle/internal/logger"
)

// Loader reads chrome trace-event JSON files as exported by the
// Kineto/PyTorch profiler and reconstructs the host-event forest and the
// device-event list from them.
//
// Only complete events (ph == "X") participate in the analysis; metadata,
// flow and counter phases are skipped. Chrome timestamps are microseconds;
// host events are converted to nanoseconds at load time, device events keep
// the capture resolution and are normalized by their accessors.
type Loader struct {
	log log.Logger

	nextID int64
}

// chromeFile is the top-level trace-event JSON container.
type chromeFile struct {
	TraceEvents     []chromeEvent `json:"traceEvents"`
	DisplayTimeUnit string        `json:"displayTimeUnit"`
}

// chromeEvent is one entry of the traceEvents array. Timestamps are kept as
// json.Number: epoch-scale microsecond values exceed float64's integer range
// once converted to nanoseconds.
type chromeEvent struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat"`
	Phase     string         `json:"ph"`
	Timestamp json.Number    `json:"ts"`
	Duration  json.Number    `json:"dur"`
	ProcessID int64          `json:"pid"`
	ThreadID  int64          `json:"tid"`
	Args      map[string]any `json:"args,omitempty"`
}

// Categories emitted by Kineto for host-side operations.
var hostCategories = map[string]bool{
	"cpu_op":          true,
	"user_annotation": true,
	"python_function": true,
}

// Categories emitted by Kineto for device-side records. The device type
// distinguishes runtime calls issued from the host ("cpu") from work that
// executed on the accelerator ("cuda").
var deviceCategories = map[string]string{
	"cuda_runtime": "cpu",
	"cuda_driver":  "cpu",
	"kernel":       "cuda",
	"gpu_memcpy":   "cuda",
	"gpu_memset":   "cuda",
}

// NewLoader creates a trace loader.
func NewLoader() *Loader {
	return &Loader{
		log: logger.NewLoggerCtx("trace-loader"),
	}
}

// Load reads and parses one trace file.
func Load(path string) (*Trace, error) {
	return NewLoader().Load(path)
}

// Load reads and parses one trace file.
func (l *Loader) Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	t, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes chrome trace-event JSON and builds the trace model.
func (l *Loader) Parse(data []byte) (*Trace, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var file chromeFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode trace events: %w", err)
	}

	var hosts []*HostEvent
	hostThreads := make(map[[2]int64][]*HostEvent)
	var devices []*DeviceEvent

	for _, raw := range file.TraceEvents {
		if raw.Phase != "X" {
			continue
		}
		switch {
		case hostCategories[raw.Category]:
			startNs := microToNanos(raw.Timestamp)
			ev := &HostEvent{
				ID:      l.nextEventID(),
				Name:    raw.Name,
				StartNs: startNs,
				EndNs:   startNs + microToNanos(raw.Duration),
			}
			key := [2]int64{raw.ProcessID, raw.ThreadID}
			hostThreads[key] = append(hostThreads[key], ev)
			hosts = append(hosts, ev)
		default:
			devType, ok := deviceCategories[raw.Category]
			if !ok {
				continue
			}
			devices = append(devices, &DeviceEvent{
				Name:        raw.Name,
				StartUs:     microInt(raw.Timestamp),
				DurUs:       microInt(raw.Duration),
				DeviceType:  devType,
				Correlation: argInt(raw.Args, "correlation", "External id"),
			})
		}
	}

	t := &Trace{DeviceEvents: devices}
	for _, events := range hostThreads {
		t.HostRoots = append(t.HostRoots, buildForest(events)...)
	}
	// IDs break start-time ties so root order never depends on the thread
	// map's iteration order.
	sort.Slice(t.HostRoots, func(i, j int) bool {
		if t.HostRoots[i].StartNs != t.HostRoots[j].StartNs {
			return t.HostRoots[i].StartNs < t.HostRoots[j].StartNs
		}
		return t.HostRoots[i].ID < t.HostRoots[j].ID
	})

	l.log.Debug().
		Int("host_events", len(hosts)).
		Int("device_events", len(devices)).
		Msg("Parsed trace")
	return t, nil
}

func (l *Loader) nextEventID() int64 {
	l.nextID++
	return l.nextID
}

// buildForest nests one thread's complete events by time containment.
// Events are processed in start order (ties broken by the longer event
// first, so an enclosing span precedes the spans it contains); a stack of
// currently-open events tracks the ancestor chain.
func buildForest(events []*HostEvent) []*HostEvent {
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartNs != events[j].StartNs {
			return events[i].StartNs < events[j].StartNs
		}
		return events[i].EndNs > events[j].EndNs
	})

	var roots []*HostEvent
	var open []*HostEvent
	for _, ev := range events {
		for len(open) > 0 && open[len(open)-1].EndNs <= ev.StartNs {
			open = open[:len(open)-1]
		}
		if len(open) > 0 {
			parent := open[len(open)-1]
			ev.Parent = parent
			parent.Children = append(parent.Children, ev)
		} else {
			roots = append(roots, ev)
		}
		open = append(open, ev)
	}
	return roots
}

// microToNanos converts a microsecond json.Number to nanoseconds. Integral
// values stay on the int64 path; only fractional timestamps go through
// float64.
func microToNanos(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i * 1000
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 1000))
}

// microInt converts a microsecond json.Number to whole microseconds.
func microInt(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return int64(math.Round(f))
}

// argInt extracts the first integer-valued argument among the given keys.
// The number-preserving decoder yields args values as json.Number.
func argInt(args map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if v, ok := args[key].(json.Number); ok {
			if n, err := v.Int64(); err == nil {
				return n
			}
		}
	}
	return 0
}
