package analysis

import "fmt"

// CorruptTraceError reports two distinct host events resolving to the same
// identity. Traces assign unique IDs by construction, so this aborts the
// run rather than silently overwriting metrics.
type CorruptTraceError struct {
	ID   int64
	Name string
}

func (e *CorruptTraceError) Error() string {
	return fmt.Sprintf("corrupt trace: duplicate event id %d (%q)", e.ID, e.Name)
}

// UnknownEventKindError reports a merged-timeline entry that is neither a
// host nor a device event. It indicates a malformed input and aborts the
// run.
type UnknownEventKindError struct {
	Index int
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind in merged timeline at index %d", e.Index)
}
