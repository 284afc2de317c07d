package narration

import "fmt"

// EmptyScriptError is returned when generation ends with no usable entries.
// FailedWindows lists the windows whose oracle call failed, in ascending order.
type EmptyScriptError struct {
	FailedWindows []int
}

func (e *EmptyScriptError) Error() string {
	return fmt.Sprintf("empty narration script (failed_windows=%v)", e.FailedWindows)
}

// WindowError is a failure of a single window. It is recorded in the window cache and
// never aborts a run.
type WindowError struct {
	Index int
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d: %v", e.Index, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }
