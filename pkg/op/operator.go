// Package op defines the operator capability set and the standard
// vocabulary of tensor operators that the graph, pattern matcher, and
// compilers all traffic in. Every concrete operator answers the same
// small interface, mirroring the teacher's single capability-set trait
// generalized from Rust's associated-type dispatch to a Go interface.
package op

import (
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// Input pairs a buffer (backend-specific payload, opaque to the graph) with
// the shape tracker describing how to read it.
type Input struct {
	Data  any
	Shape *shape.Tracker
}

// Operator is the capability set every graph node's payload implements:
// forward execution, output sizing, and a string-keyed query protocol that
// lets compilers probe capabilities without a priori knowledge of the
// concrete type. Keys in the standard vocabulary: "elementwise" (textual
// per-element formula), "non_contiguous" (permissive shape tracking),
// "recompile_shapes" ([]*shape.Tracker payload, rebuild any compiled
// kernel for new shapes), and a backend tag ("metal") returning a shared
// kernel handle for fusion by a higher-level compiler.
type Operator interface {
	// Process executes the operator against host-resident inputs,
	// returning one buffer per output slot.
	Process(inputs []Input) ([]any, error)
	// OutputBufferSizes returns, for each output slot, the element-count
	// expression of the buffer Process will produce.
	OutputBufferSizes(inputShapes []*shape.Tracker) []*symbolic.Expr
	// Custom answers a string-keyed capability query. The second return
	// reports whether the key was recognized at all, distinct from a
	// recognized key whose payload happens to be nil.
	Custom(key string, payload any) (any, bool)
}

// Elementwise is implemented by operators whose Custom("elementwise", nil)
// response is meaningful in typed form, avoiding a second type-assertion
// round trip for callers that already know they're fusing elementwise ops.
type Elementwise interface {
	ElementwiseExpr() string
}

// NonContiguous is implemented by operators that can read through a
// non-contiguous shape tracker without requiring a materializing copy
// first.
type NonContiguous interface {
	AcceptsNonContiguous() bool
}
