package graph

import (
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

// Node wraps an operator payload with graph-local bookkeeping: a stable
// id and an optional display name for diagnostics.
type Node struct {
	id   int64
	Op   op.Operator
	Name string
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return n.id }

// Source identifies one producer feeding an operator's input slot: the
// producing node, the output slot on that node, the shape tracker the
// consumer should read the data through, and which axes of that shape
// tracker are fake (broadcast) axes rather than real data — recorded on
// the edge so pattern matchers can see broadcast structure without
// re-deriving it from the producer (design notes, "fake axes").
type Source struct {
	NodeID int64
	Slot   int
	Shape  *shape.Tracker
	Fakes  []bool
}
