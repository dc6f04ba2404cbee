package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// MetalLowering installs device boundary nodes around every operator
// that answers Custom("metal", nil), the pkg/backend/metal kernel
// family's tag for "this op dispatches on the GPU" — mirroring the
// original's custom("metal", ...) query used throughout
// crates/luminal_metal to recognize its own operator set.
func MetalLowering(g *graph.Graph) {
	DeviceLowering(func(o op.Operator) bool {
		_, ok := o.Custom("metal", nil)
		return ok
	}).Compile(g)
}
