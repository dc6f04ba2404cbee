package pattern

import (
	"testing"

	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearChainMatchesMulThenSumReduce(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Const(4), shape.Const(4))
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(&op.Function{Name: "b"}).Finish()
	mul := g.AddOp(op.Mul{}).Input(a, 0, st).Input(b, 0, st).Finish()
	sum := g.AddOp(op.SumReduce{Axis: 1}).Input(mul, 0, st).Finish()

	var mulID, sumID int64
	sel := New().Type(OfType[op.Mul]()).Ptr(&mulID).Edge(
		New().Type(OfType[op.SumReduce]()).Ptr(&sumID),
	)

	m := sel.Search(g)
	require.True(t, m.NextMatch())
	assert.Equal(t, mul, mulID)
	assert.Equal(t, sum, sumID)
	assert.False(t, m.NextMatch(), "only one matmul-shaped chain exists")
}

func TestCheckPredicateRejectsWrongAxis(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Const(4), shape.Const(4))
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(&op.Function{Name: "b"}).Finish()
	mul := g.AddOp(op.Mul{}).Input(a, 0, st).Input(b, 0, st).Finish()
	_ = g.AddOp(op.SumReduce{Axis: 0}).Input(mul, 0, st).Finish()

	sel := New().Type(OfType[op.Mul]()).Edge(
		New().Type(OfType[op.SumReduce]()).Check(func(gr *graph.Graph, id int64) bool {
			sr, _ := gr.GetOp(id).(op.SumReduce)
			return sr.Equals(1)
		}),
	)

	m := sel.Search(g)
	assert.False(t, m.NextMatch(), "sum reduce over the wrong axis must not match")
}

func TestBranchingChildrenRequireDistinctConsumers(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Const(4))
	one := g.AddOp(&op.Function{Name: "one"}).Finish()
	lt1 := g.AddOp(op.LessThan{}).Input(one, 0, st).Finish()
	_ = g.AddOp(op.Sub{}).Input(one, 0, st).Input(one, 0, st).Finish()

	var oneID, ltID, subID int64
	sel := New().Ptr(&oneID).
		Edge(New().Type(OfType[op.LessThan]()).Ptr(&ltID)).
		Edge(New().Type(OfType[op.Sub]()).Ptr(&subID))

	m := sel.Search(g)
	require.True(t, m.NextMatch())
	assert.Equal(t, one, oneID)
	assert.Equal(t, lt1, ltID)
	assert.NotZero(t, subID)
}

func TestClearCachedResultsAllowsRematchAfterMutation(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Const(2))
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	_ = g.AddOp(op.Recip{}).Input(a, 0, st).Finish()

	sel := New().Type(OfType[op.Recip]())
	m := sel.Search(g)
	require.True(t, m.NextMatch())
	assert.False(t, m.NextMatch())

	_ = g.AddOp(op.Recip{}).Input(a, 0, st).Finish()
	assert.False(t, m.NextMatch(), "unrefreshed matcher should not see nodes added after its root snapshot")

	m.ClearCachedResults()
	assert.True(t, m.NextMatch(), "a cleared matcher re-scans and finds both Recip nodes")
	assert.True(t, m.NextMatch())
}

func TestShapesConstraintRequiresSharedSymbolicAxis(t *testing.T) {
	g := graph.New()
	aSt := shape.New(shape.Var('A'), shape.Var('B'))
	bSt := shape.New(shape.Var('B'), shape.Var('C'))
	mismatchSt := shape.New(shape.Var('X'), shape.Var('C'))

	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(&op.Function{Name: "b"}).Finish()
	c := g.AddOp(&op.Function{Name: "c"}).Finish()

	good := g.AddOp(op.Mul{}).Input(a, 0, aSt).Input(b, 0, bSt).Finish()
	bad := g.AddOp(op.Mul{}).Input(a, 0, aSt).Input(c, 0, mismatchSt).Finish()

	sel := New().Type(OfType[op.Mul]()).Shapes([][]byte{{'A', 'B'}, {'B', 'C'}})

	assert.True(t, matchChain(g, good, sel, map[*Selector]int64{}))
	assert.False(t, matchChain(g, bad, sel, map[*Selector]int64{}), "mismatched B axis must reject the match")
}
