package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

func constFn(v float64) *op.Function {
	c := v
	return &op.Function{Const: &c}
}

func TestExecuteLinearGraphProducesRetrievedOutput(t *testing.T) {
	g := graph.New()
	scalar := shape.New()

	a := g.AddOp(constFn(2)).Finish()
	b := g.AddOp(constFn(3)).Finish()
	add := g.AddOp(op.Add{}).Input(a, 0, scalar).Input(b, 0, scalar).Finish()
	g.Retrieve(add)

	out, err := Execute(g)
	require.NoError(t, err)

	buf, ok := out[add][0].([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{5}, buf)
}

func TestExecuteResolvesDynamicDimensionBeforeDispatch(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Var('n'))
	g.Dyn.Set('n', 3)

	a := g.AddOp(&op.Function{Get: func() ([]float64, error) { return []float64{1, 2, 3}, nil }}).Finish()
	b := g.AddOp(&op.Function{Get: func() ([]float64, error) { return []float64{10, 20, 30}, nil }}).Finish()
	add := g.AddOp(op.Add{}).Input(a, 0, st).Input(b, 0, st).Finish()
	g.Retrieve(add)

	out, err := Execute(g)
	require.NoError(t, err)

	buf, ok := out[add][0].([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{11, 22, 33}, buf)
}

func TestExecuteFailsOnUnboundDynamicDimension(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Var('n'))

	a := g.AddOp(&op.Function{Get: func() ([]float64, error) { return []float64{1, 2, 3}, nil }}).Finish()
	b := g.AddOp(&op.Function{Get: func() ([]float64, error) { return []float64{1, 2, 3}, nil }}).Finish()
	add := g.AddOp(op.Add{}).Input(a, 0, st).Input(b, 0, st).Finish()
	g.Retrieve(add)

	_, err := Execute(g)
	require.Error(t, err)
	var unbound *errkind.UnboundDimension
	assert.ErrorAs(t, err, &unbound)
	assert.Equal(t, byte('n'), unbound.Var)
}

func TestExecuteDetectsCycle(t *testing.T) {
	g := graph.New()
	a := g.AddOp(constFn(1)).Finish()
	b := g.AddOp(constFn(2)).Finish()
	g.AddScheduleEdge(a, b)
	g.AddScheduleEdge(b, a)

	_, err := Execute(g)
	assert.Error(t, err)
}

func TestExecuteReturnsMissingRetrievalWhenRetrievedNodeNeverRuns(t *testing.T) {
	g := graph.New()
	a := g.AddOp(constFn(1)).Finish()
	g.Retrieve(a)
	// Sever the node from the live node table (RemoveNode also clears its
	// NoDelete/ToRetrieve marks), then restore the retrieval mark,
	// reproducing a dangling retrieval request.
	g.RemoveNode(a)
	g.ToRetrieve[a] = true

	_, err := Execute(g)
	require.Error(t, err)
	var missing *errkind.MissingRetrieval
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, a, missing.NodeID)
}

func TestExecuteReturnsOnlyRetrievedOutputs(t *testing.T) {
	g := graph.New()
	scalar := shape.New()

	a := g.AddOp(constFn(1)).Finish()
	b := g.AddOp(constFn(2)).Finish()
	sum := g.AddOp(op.Add{}).Input(a, 0, scalar).Input(b, 0, scalar).Finish()
	doubled := g.AddOp(op.Add{}).Input(sum, 0, scalar).Input(sum, 0, scalar).Finish()
	g.Retrieve(doubled)

	out, err := Execute(g)
	require.NoError(t, err)

	buf, ok := out[doubled][0].([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{6}, buf)
	_, stillRetrievable := out[sum]
	assert.False(t, stillRetrievable, "sum was never marked for retrieval")
}
