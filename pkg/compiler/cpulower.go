package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// CPULowering is a no-op device-boundary pass: every CPU backend
// operator already executes host-side, so no CopyToDevice/
// CopyFromDevice nodes are ever needed. It exists so callers can select
// a backend lowering pass uniformly regardless of platform — on a
// non-darwin or non-cgo build, pkg/backend/metal's stub never tags any
// op "metal" either, so the two passes converge to the same no-op.
func CPULowering(g *graph.Graph) {
	DeviceLowering(func(op.Operator) bool { return false }).Compile(g)
}
