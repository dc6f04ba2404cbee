package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/pattern"
)

// Gather rewrites the embedding-lookup idiom ARange -> CopyToDevice ->
// Equal -> Mul -> SumReduce into a single Gather op. Grounded on
// original_source's MetalGatherCompiler; the selector only expresses the
// ARange/CopyToDevice/Equal chain precisely (its Mul/SumReduce "edges"
// in the original are themselves an approximation resolved by direct
// graph inspection), so the Mul and SumReduce consumers are found by
// walking Dests after the chain matches, exactly as the original pass
// re-derives them.
func Gather(g *graph.Graph) {
	var arange, indCopy, equal int64
	sel := pattern.New().Type(pattern.OfType[op.ARange]()).Ptr(&arange).
		Edge(pattern.New().Type(pattern.OfType[op.CopyToDevice]()).Ptr(&indCopy).
			Edge(pattern.New().Type(pattern.OfType[op.Equal]()).Ptr(&equal)))

	m := sel.Search(g)
	for m.NextMatch() {
		mul, ok := findConsumerOfType(g, equal, func(o op.Operator) bool { _, ok := o.(op.Mul); return ok })
		if !ok {
			continue
		}
		sumReduce, ok := findConsumerOfType(g, mul, func(o op.Operator) bool { _, ok := o.(op.SumReduce); return ok })
		if !ok {
			continue
		}
		// sumReduce is the match's terminal node and ordinarily the
		// caller's retrieved result — only the interior nodes guard
		// against a rewrite that would delete something still needed
		// elsewhere, as in Subtraction and Equality.
		if g.CheckNoDelete([]int64{arange, equal, mul}) {
			continue
		}

		weights := srcShapeOtherThan(g, mul, equal)
		if weights == nil {
			continue
		}
		wShape := weights.Shape.Shape()
		if len(wShape) < 3 {
			continue
		}
		embedDim, ok := wShape[2].IsConst()
		if !ok {
			continue
		}

		gather := g.AddOp(op.Gather{EmbedDim: int(embedDim)}).Finish()

		g.MoveIncomingEdge(indCopy, gather)
		g.SafeRemoveNode(equal, 1)
		g.MoveIncomingEdge(mul, gather)
		g.MoveOutgoingEdge(sumReduce, gather)
		remap := graph.NewIDRemap()
		g.MoveReferences(remap, sumReduce, gather)

		g.RemoveNode(sumReduce)
		g.SafeRemoveNode(mul, 0)
		g.SafeRemoveNode(indCopy, 0)
		g.SafeRemoveNode(arange, 0)
	}
}

func findConsumerOfType(g *graph.Graph, id int64, match func(op.Operator) bool) (int64, bool) {
	for _, d := range g.Dests(id) {
		if match(g.GetOp(d)) {
			return d, true
		}
	}
	return 0, false
}
