// Package errkind defines the typed error taxonomy shared across the
// compiler and executor. Each kind is a small comparable struct so callers
// can match with errors.As, and carries enough context for a useful
// message without forcing a particular wrapping strategy on the caller.
package errkind

import "fmt"

// ShapeMismatch reports that an operator received incompatible input
// shapes.
type ShapeMismatch struct {
	Op       string
	Expected string
	Got      string
}

func (e *ShapeMismatch) Error() string {
	return fmt.Sprintf("%s: shape mismatch: expected %s, got %s", e.Op, e.Expected, e.Got)
}

// ReshapeOnNonContiguous reports an attempted reshape of a non-materialized
// view.
type ReshapeOnNonContiguous struct {
	From []string
	To   []string
}

func (e *ReshapeOnNonContiguous) Error() string {
	return fmt.Sprintf("reshape on non-contiguous view: %v -> %v", e.From, e.To)
}

// UnboundDimension reports that a dynamic dimension variable used during
// execute is absent from the dyn dim map.
type UnboundDimension struct {
	Var byte
}

func (e *UnboundDimension) Error() string {
	return fmt.Sprintf("unbound dynamic dimension %q", string(e.Var))
}

// KernelCompilation reports that a backend rejected generated kernel
// source.
type KernelCompilation struct {
	Kernel string
	Reason string
}

func (e *KernelCompilation) Error() string {
	return fmt.Sprintf("kernel compilation failed for %s: %s", e.Kernel, e.Reason)
}

// DeviceFailure reports that command submission or wait returned an error
// from the device.
type DeviceFailure struct {
	Stage  string
	Reason string
}

func (e *DeviceFailure) Error() string {
	return fmt.Sprintf("device failure during %s: %s", e.Stage, e.Reason)
}

// MissingRetrieval reports that the caller asked for a tensor not marked
// retained.
type MissingRetrieval struct {
	NodeID int64
}

func (e *MissingRetrieval) Error() string {
	return fmt.Sprintf("node %d was not marked for retrieval", e.NodeID)
}
