package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/pattern"
	"github.com/ember-project/ember/pkg/shape"
)

// Subtraction rewrites the synthesized pattern (-1) * b + a into Sub(a, b),
// the mirror of how a-b lowers when no native subtraction op is emitted
// upstream. Grounded on original_source's MetalSubtractionCompiler:
// select_const(-1) -> Mul -> Add.
func Subtraction(g *graph.Graph) {
	var negOne, mul, add int64
	sel := pattern.New().
		Check(func(gr *graph.Graph, id int64) bool {
			v, ok := op.ConstValue(gr.GetOp(id))
			return ok && v == -1
		}).
		Ptr(&negOne).
		Edge(pattern.New().Type(pattern.OfType[op.Mul]()).Ptr(&mul).
			Edge(pattern.New().Type(pattern.OfType[op.Add]()).Ptr(&add)))

	m := sel.Search(g)
	for m.NextMatch() {
		// add is the match's terminal node and ordinarily the caller's
		// retrieved result — only negOne/mul guard against a rewrite
		// that would delete something still needed elsewhere, mirroring
		// MatMul2D's check of just its intermediate mul node.
		if g.CheckNoDelete([]int64{negOne, mul}) {
			continue
		}

		aSrc := srcShapeOtherThan(g, add, mul)
		if aSrc == nil {
			continue
		}
		bSrc := srcShapeOtherThan(g, mul, negOne)
		if bSrc == nil {
			continue
		}

		mulOutShape := edgeShape(g, mul, add)
		if mulOutShape == nil || !mulOutShape.IsContiguous() || mulOutShape.IsSliced() || mulOutShape.IsPadded() {
			continue
		}

		sub := g.AddOp(op.Sub{}).
			Input(aSrc.NodeID, aSrc.Slot, aSrc.Shape).
			Input(bSrc.NodeID, bSrc.Slot, bSrc.Shape).
			Finish()
		g.MoveOutgoingEdge(add, sub)
		remap := graph.NewIDRemap()
		g.MoveReferences(remap, add, sub)
		g.MoveReferences(remap, mul, sub)

		g.SafeRemoveNode(negOne, 1)
		g.RemoveNode(mul)
		g.RemoveNode(add)
	}
}

// srcShapeOtherThan returns the Source feeding consumer id that does not
// originate from exclude, or nil if none exists.
func srcShapeOtherThan(g *graph.Graph, id, exclude int64) *graph.Source {
	for _, s := range g.Sources(id) {
		if s.NodeID != exclude {
			cp := s
			return &cp
		}
	}
	return nil
}

// edgeShape returns the shape tracker on the data edge directly
// connecting src to dst, or nil if no such edge exists.
func edgeShape(g *graph.Graph, src, dst int64) *shape.Tracker {
	for _, e := range g.EdgesFrom(src) {
		if e.Dst == dst && !e.Schedule {
			return e.Shape
		}
	}
	return nil
}
