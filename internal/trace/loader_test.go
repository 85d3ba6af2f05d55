package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `{
  "displayTimeUnit": "ms",
  "traceEvents": [
    {"name": "forward", "cat": "cpu_op", "ph": "X", "ts": 0, "dur": 100, "pid": 1, "tid": 1},
    {"name": "aten::linear", "cat": "cpu_op", "ph": "X", "ts": 10, "dur": 30, "pid": 1, "tid": 1},
    {"name": "aten::relu", "cat": "cpu_op", "ph": "X", "ts": 50, "dur": 20, "pid": 1, "tid": 1},
    {"name": "loader", "cat": "cpu_op", "ph": "X", "ts": 5, "dur": 10, "pid": 1, "tid": 2},
    {"name": "cudaLaunchKernel", "cat": "cuda_runtime", "ph": "X", "ts": 12, "dur": 3, "pid": 1, "tid": 1, "args": {"correlation": 42}},
    {"name": "gemm_kernel", "cat": "kernel", "ph": "X", "ts": 40, "dur": 15, "pid": 0, "tid": 7, "args": {"correlation": 42}},
    {"name": "Memcpy HtoD", "cat": "gpu_memcpy", "ph": "X", "ts": 60, "dur": 5, "pid": 0, "tid": 7, "args": {"External id": 43}},
    {"name": "process_name", "ph": "M", "pid": 1, "args": {"name": "python"}},
    {"name": "counter", "cat": "cpu_op", "ph": "C", "ts": 0, "pid": 1, "tid": 1}
  ]
}`

func TestParseBuildsHostForest(t *testing.T) {
	trc, err := NewLoader().Parse([]byte(sampleTrace))
	require.NoError(t, err)

	// Thread 1 nests linear and relu under forward; thread 2 has its own root.
	require.Equal(t, 2, len(trc.HostRoots))
	require.Equal(t, 4, trc.HostEventCount())

	var forward *HostEvent
	for _, root := range trc.HostRoots {
		if root.Name == "forward" {
			forward = root
		}
	}
	require.NotNil(t, forward)
	require.Len(t, forward.Children, 2)
	assert.Equal(t, "aten::linear", forward.Children[0].Name)
	assert.Equal(t, "aten::relu", forward.Children[1].Name)
	assert.Same(t, forward, forward.Children[0].Parent)

	// Microsecond timestamps are converted to nanoseconds.
	assert.Equal(t, int64(0), forward.StartNs)
	assert.Equal(t, int64(100_000), forward.EndNs)
	assert.Equal(t, int64(10_000), forward.Children[0].StartNs)
}

func TestParseAssignsUniqueIDs(t *testing.T) {
	trc, err := NewLoader().Parse([]byte(sampleTrace))
	require.NoError(t, err)

	seen := make(map[int64]bool)
	stack := append([]*HostEvent(nil), trc.HostRoots...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		assert.False(t, seen[cur.ID], "duplicate id %d", cur.ID)
		seen[cur.ID] = true
		stack = append(stack, cur.Children...)
	}
}

func TestParseDeviceEvents(t *testing.T) {
	trc, err := NewLoader().Parse([]byte(sampleTrace))
	require.NoError(t, err)

	require.Len(t, trc.DeviceEvents, 3)

	byName := make(map[string]*DeviceEvent)
	for _, ev := range trc.DeviceEvents {
		byName[ev.Name] = ev
	}

	launch := byName["cudaLaunchKernel"]
	require.NotNil(t, launch)
	assert.Equal(t, "cpu", launch.DeviceType)
	assert.Equal(t, int64(42), launch.Correlation)
	assert.Equal(t, int64(12_000), launch.StartNs())
	assert.Equal(t, int64(15_000), launch.EndNs())

	kern := byName["gemm_kernel"]
	require.NotNil(t, kern)
	assert.Equal(t, "cuda", kern.DeviceType)
	assert.Equal(t, int64(42), kern.Correlation)

	memcpy := byName["Memcpy HtoD"]
	require.NotNil(t, memcpy)
	assert.Equal(t, int64(43), memcpy.Correlation, "External id is an accepted correlation key")
}

func TestParseStartTiedRoots(t *testing.T) {
	// Two threads whose roots start at the same timestamp. Root order must
	// not depend on thread-map iteration order, so repeated parses of the
	// same bytes agree.
	tied := `{
	  "traceEvents": [
	    {"name": "worker_a", "cat": "cpu_op", "ph": "X", "ts": 0, "dur": 50, "pid": 1, "tid": 1},
	    {"name": "worker_b", "cat": "cpu_op", "ph": "X", "ts": 0, "dur": 80, "pid": 1, "tid": 2}
	  ]
	}`

	for i := 0; i < 50; i++ {
		trc, err := NewLoader().Parse([]byte(tied))
		require.NoError(t, err)
		require.Len(t, trc.HostRoots, 2)
		assert.Equal(t, "worker_a", trc.HostRoots[0].Name, "iteration %d", i)
		assert.Equal(t, "worker_b", trc.HostRoots[1].Name, "iteration %d", i)
	}
}

func TestParseEpochScaleTimestamps(t *testing.T) {
	// Epoch-scale microsecond timestamps exceed float64's integer range once
	// converted to nanoseconds; the integral path must keep them exact.
	epoch := `{
	  "traceEvents": [
	    {"name": "forward", "cat": "cpu_op", "ph": "X", "ts": 1700000000000123, "dur": 5, "pid": 1, "tid": 1}
	  ]
	}`

	trc, err := NewLoader().Parse([]byte(epoch))
	require.NoError(t, err)
	require.Len(t, trc.HostRoots, 1)
	assert.Equal(t, int64(1_700_000_000_000_123_000), trc.HostRoots[0].StartNs)
	assert.Equal(t, int64(1_700_000_000_000_128_000), trc.HostRoots[0].EndNs)
}

func TestParseSkipsNonCompleteEvents(t *testing.T) {
	trc, err := NewLoader().Parse([]byte(sampleTrace))
	require.NoError(t, err)

	for _, root := range trc.HostRoots {
		assert.NotEqual(t, "counter", root.Name)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := NewLoader().Parse([]byte("{not json"))
	require.Error(t, err)
}

func TestParseEmptyTrace(t *testing.T) {
	trc, err := NewLoader().Parse([]byte(`{"traceEvents": []}`))
	require.NoError(t, err)
	assert.Empty(t, trc.HostRoots)
	assert.Empty(t, trc.DeviceEvents)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0644))

	trc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, trc.HostEventCount())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
