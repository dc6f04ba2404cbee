package cpu

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// Install walks g and replaces every reference op.MatMul2D,
// op.BatchedMatMul2D, and op.SumReduce node with its CPU-specialized
// counterpart bound to eng, leaving every other operator (elementwise,
// Gather, the unary chain) as-is since their reference Process
// implementations already are the CPU path. Run after pkg/compiler's
// rewrite passes and CPULowering, mirroring the teacher's pattern of
// keeping MPSEng's override surface narrow (MatMul, Sum) and delegating
// everything else to the embedded StdEng.
func Install(g *graph.Graph, eng *Engine) {
	for _, id := range g.NodeIDs() {
		node := g.GetNode(id)
		switch o := node.Op.(type) {
		case op.MatMul2D:
			node.Op = MatMul2D{Engine: eng}
		case op.BatchedMatMul2D:
			node.Op = BatchedMatMul2D{Engine: eng}
		case op.SumReduce:
			node.Op = SumReduce{Engine: eng, Axis: o.Axis}
		}
	}
}
