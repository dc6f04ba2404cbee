package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// UnaryFusion collapses fan-out-1 chains of unary point ops (and chains
// already partially fused) into a single FusedUnary node, evaluated in
// one pass over the buffer instead of one pass per original op. Grounded
// on original_source's UnaryFusionCompiler.
func UnaryFusion(g *graph.Graph) {
	changed := false
	for _, id := range g.NodeIDs() {
		if g.NoDelete[id] {
			continue
		}
		dests := g.Dests(id)
		if len(dests) != 1 {
			continue
		}
		other := dests[0]

		myOp := g.GetOp(id)
		otherOp := g.GetOp(other)
		if myOp == nil || otherOp == nil {
			continue
		}

		replaced := false
		if name, ok := op.UnaryName(myOp); ok {
			if oname, ok2 := op.UnaryName(otherOp); ok2 {
				g.GetNode(id).Op = op.NewFusedUnary(name, oname)
				replaced = true
			} else if fused, ok2 := otherOp.(*op.FusedUnary); ok2 {
				steps := append([]string{name}, fusedNames(fused)...)
				g.GetNode(id).Op = op.NewFusedUnary(steps...)
				replaced = true
			}
		} else if fused, ok := myOp.(*op.FusedUnary); ok {
			if oname, ok2 := op.UnaryName(otherOp); ok2 {
				g.GetNode(id).Op = op.NewFusedUnary(append(fusedNames(fused), oname)...)
				replaced = true
			} else if otherFused, ok2 := otherOp.(*op.FusedUnary); ok2 {
				g.GetNode(id).Op = op.NewFusedUnary(append(fusedNames(fused), fusedNames(otherFused)...)...)
				replaced = true
			}
		}

		if replaced {
			g.MoveOutgoingEdge(other, id)
			remap := graph.NewIDRemap()
			g.MoveReferences(remap, other, id)
			g.RemoveNode(other)
			changed = true
		}
	}
	// A sweep can leave a freshly fused node next to a unary op it already
	// passed; sweep again until nothing more fuses.
	if changed {
		UnaryFusion(g)
	}
}

func fusedNames(f *op.FusedUnary) []string { return f.StepNames() }
