package analysis

import (
	"slices"
	"strings"

	"traceidle/internal/trace"
)

// Classifier decides which device events are launch requests and which are
// the kernels they spawn. The heuristics for this are capture-format
// specific, so callers supply the predicate rather than the engine fixing
// one.
type Classifier interface {
	IsLaunch(e *trace.DeviceEvent) bool
	IsKernel(e *trace.DeviceEvent) bool
}

// NameClassifier classifies device events by name and device type:
// a launch is any event whose name is in LaunchNames; a kernel is any event
// on KernelDeviceType whose lowercased name contains none of the
// KernelExcludes substrings (memory copies and fills share the device type
// but are not kernel executions).
type NameClassifier struct {
	LaunchNames      []string
	KernelDeviceType string
	KernelExcludes   []string
}

// NewCUDAClassifier returns the classifier for CUDA runtime traces:
// launches are cudaLaunchKernel calls, kernels are CUDA-device events whose
// name does not mention memory operations.
func NewCUDAClassifier() *NameClassifier {
	return &NameClassifier{
		LaunchNames:      []string{"cudaLaunchKernel"},
		KernelDeviceType: "cuda",
		KernelExcludes:   []string{"mem"},
	}
}

func (c *NameClassifier) IsLaunch(e *trace.DeviceEvent) bool {
	return slices.Contains(c.LaunchNames, e.Name)
}

func (c *NameClassifier) IsKernel(e *trace.DeviceEvent) bool {
	if e.DeviceType != c.KernelDeviceType {
		return false
	}
	name := strings.ToLower(e.Name)
	for _, excl := range c.KernelExcludes {
		if strings.Contains(name, excl) {
			return false
		}
	}
	return true
}
