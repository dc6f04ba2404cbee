package compiler

import (
	"sort"

	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/pattern"
)

// Equality rewrites the synthesized two-way less-than pattern
// 1 - ((a<b)+(b<a)) into Equal(a, b). Grounded on original_source's
// MetalEqualCompiler: LessThan1 -> Add -> Sub, following the same
// single-forward-edge chain idiom as Subtraction and MatMul2D; Add's
// other operand (LessThan2) and Sub's other operand (the constant 1)
// are recovered via srcShapeOtherThan since the declarative chain can
// only express one consumer per step. The two LessThan ops are verified
// to share the same (a, b) input pair separately, since the selector
// alone can't express that either.
func Equality(g *graph.Graph) {
	var lt1, add, sub int64
	sel := pattern.New().Type(pattern.OfType[op.LessThan]()).Ptr(&lt1).
		Edge(pattern.New().Type(pattern.OfType[op.Add]()).Ptr(&add).
			Edge(pattern.New().Type(pattern.OfType[op.Sub]()).Ptr(&sub)))

	m := sel.Search(g)
	for m.NextMatch() {
		lt2Src := srcShapeOtherThan(g, add, lt1)
		if lt2Src == nil {
			continue
		}
		lt2 := lt2Src.NodeID
		if _, ok := g.GetOp(lt2).(op.LessThan); !ok {
			continue
		}
		oneSrc := srcShapeOtherThan(g, sub, add)
		if oneSrc == nil {
			continue
		}
		one := oneSrc.NodeID
		if v, ok := op.ConstValue(g.GetOp(one)); !ok || v != 1 {
			continue
		}
		// Only 1 - sum is equality; sum - 1 is not.
		if g.Sources(sub)[0].NodeID != one {
			continue
		}

		lt1In := sortedSourceNodeIDs(g, lt1)
		lt2In := sortedSourceNodeIDs(g, lt2)
		if !sameInts(lt1In, lt2In) {
			continue
		}
		// sub is the match's terminal node and ordinarily the caller's
		// retrieved result — only the interior lt1/lt2/add/one nodes
		// guard against a rewrite that would delete something still
		// needed elsewhere.
		if g.CheckNoDelete([]int64{lt1, lt2, add, one}) {
			continue
		}

		srcs := g.Sources(lt1)
		a, b := srcs[0], srcs[1]

		equal := g.AddOp(op.Equal{}).
			Input(a.NodeID, a.Slot, a.Shape).
			Input(b.NodeID, b.Slot, b.Shape).
			Finish()
		g.MoveOutgoingEdge(sub, equal)
		remap := graph.NewIDRemap()
		g.MoveReferences(remap, sub, equal)
		g.MoveReferences(remap, add, equal)

		g.RemoveNode(sub)
		g.SafeRemoveNode(add, 0)
		g.SafeRemoveNode(one, 0)
		g.SafeRemoveNode(lt2, 0)
		g.SafeRemoveNode(lt1, 0)
		m.ClearCachedResults()
	}
}

func sortedSourceNodeIDs(g *graph.Graph, id int64) []int64 {
	var out []int64
	for _, s := range g.Sources(id) {
		out = append(out, s.NodeID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sameInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
