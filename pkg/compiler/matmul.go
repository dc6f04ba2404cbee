package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/pattern"
)

// MatMul2D rewrites the expand->mul->sumreduce(axis 2) pattern over
// [A,C(fake),B] x [A(fake),C,B] operands into a single MatMul2D op.
// Grounded on original_source's MatMul2DCompiler.
func MatMul2D(g *graph.Graph) {
	trueVal, falseVal := true, false
	var mul, sumReduce int64
	sel := pattern.New().Type(pattern.OfType[op.Mul]()).
		Shapes([][]byte{{'A', 'C', 'B'}, {'A', 'C', 'B'}}).
		Fakes([][]*bool{
			{&falseVal, &trueVal, &falseVal},
			{&trueVal, &falseVal, &falseVal},
		}).
		Ptr(&mul).
		Edge(pattern.New().Type(pattern.OfType[op.SumReduce]()).
			Check(func(gr *graph.Graph, id int64) bool {
				sr, _ := gr.GetOp(id).(op.SumReduce)
				return sr.Equals(2)
			}).
			Ptr(&sumReduce))

	m := sel.Search(g)
	for m.NextMatch() {
		if g.CheckNoDelete([]int64{mul}) {
			continue
		}
		srcs := g.Sources(mul)
		aShape := srcs[0].Shape.RemoveDim(1)
		bShape := srcs[1].Shape.RemoveDim(0).Permute([]int{1, 0})

		newOp := g.AddOp(op.MatMul2D{}).
			Input(srcs[0].NodeID, srcs[0].Slot, aShape).
			Input(srcs[1].NodeID, srcs[1].Slot, bShape).
			Finish()

		g.MoveOutgoingEdge(sumReduce, newOp)
		remap := graph.NewIDRemap()
		g.MoveReferences(remap, sumReduce, newOp)
		g.MoveReferences(remap, mul, newOp)

		g.RemoveNode(mul)
		g.RemoveNode(sumReduce)
	}
}

// BatchMatMul2D is MatMul2D generalized over an extra leading batch axis
// D: [D,A,C(fake),B] x [D(fake),A(fake),C,B] -> BatchedMatMul2D. Grounded
// on original_source's BatchMatMul2DCompiler.
func BatchMatMul2D(g *graph.Graph) {
	t, f := true, false
	var mul, sumReduce int64
	sel := pattern.New().Type(pattern.OfType[op.Mul]()).
		Shapes([][]byte{{'D', 'A', 'C', 'B'}, {'D', 'A', 'C', 'B'}}).
		Fakes([][]*bool{
			{&f, &f, &t, &f},
			{&t, &t, &f, &f},
		}).
		Ptr(&mul).
		Edge(pattern.New().Type(pattern.OfType[op.SumReduce]()).
			Check(func(gr *graph.Graph, id int64) bool {
				sr, _ := gr.GetOp(id).(op.SumReduce)
				return sr.Equals(3)
			}).
			Ptr(&sumReduce))

	m := sel.Search(g)
	for m.NextMatch() {
		if g.CheckNoDelete([]int64{mul}) {
			continue
		}
		srcs := g.Sources(mul)
		aShape := srcs[0].Shape.RemoveDim(2)
		// b keeps its D batch axis (op.BatchedMatMul2D indexes bShape[2] for
		// n, so the rewrite must leave three real axes rather than
		// collapsing to the 2D case's two): drop the fake A axis, then
		// swap the remaining C/B axes so the result reads [D,B,C].
		bShape := srcs[1].Shape.RemoveDim(1).Permute([]int{0, 2, 1})

		newOp := g.AddOp(op.BatchedMatMul2D{}).
			Input(srcs[0].NodeID, srcs[0].Slot, aShape).
			Input(srcs[1].NodeID, srcs[1].Slot, bShape).
			Finish()

		g.MoveOutgoingEdge(sumReduce, newOp)
		remap := graph.NewIDRemap()
		g.MoveReferences(remap, sumReduce, newOp)
		g.MoveReferences(remap, mul, newOp)

		g.RemoveNode(mul)
		g.RemoveNode(sumReduce)
	}
}
