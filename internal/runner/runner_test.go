package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceidle/internal/config"
)

const validTrace = `{
  "traceEvents": [
    {"name": "forward", "cat": "cpu_op", "ph": "X", "ts": 0, "dur": 30, "pid": 1, "tid": 1},
    {"name": "cudaLaunchKernel", "cat": "cuda_runtime", "ph": "X", "ts": 0, "dur": 10, "pid": 1, "tid": 1, "args": {"correlation": 1}},
    {"name": "gemm_kernel", "cat": "kernel", "ph": "X", "ts": 20, "dur": 10, "pid": 0, "tid": 7, "args": {"correlation": 1}}
  ]
}`

func writeTraces(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("trace%d.json", i))
		require.NoError(t, os.WriteFile(path, []byte(validTrace), 0644))
		paths = append(paths, path)
	}
	return paths
}

func TestRunCollectsResults(t *testing.T) {
	paths := writeTraces(t, 5)

	r := New(config.DefaultConfig())
	require.NoError(t, r.Run(context.Background(), paths))

	for _, path := range paths {
		res, ok := r.Result(path)
		require.True(t, ok, "missing result for %s", path)
		assert.Equal(t, path, res.Path)
		assert.Equal(t, 1, res.Eval.HostEventCount())
		assert.Equal(t, int64(20_000), res.Eval.TotalIdleTimeNs())
	}

	seen := 0
	r.Range(func(path string, res *Result) bool {
		seen++
		return true
	})
	assert.Equal(t, 5, seen)
}

func TestRunFailsOnMissingFile(t *testing.T) {
	paths := writeTraces(t, 1)
	paths = append(paths, filepath.Join(t.TempDir(), "missing.json"))

	r := New(config.DefaultConfig())
	require.Error(t, r.Run(context.Background(), paths))
}

func TestRunFailsOnMalformedTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	r := New(config.DefaultConfig())
	require.Error(t, r.Run(context.Background(), []string{path}))

	_, ok := r.Result(path)
	assert.False(t, ok, "failed traces leave no result")
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(config.DefaultConfig())
	err := r.Run(ctx, writeTraces(t, 3))
	require.ErrorIs(t, err, context.Canceled)
}
