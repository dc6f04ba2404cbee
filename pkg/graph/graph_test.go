package graph

import (
	"testing"

	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/topo"
)

func TestBuilderWiresInputsInSlotOrder(t *testing.T) {
	g := New()
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(&op.Function{Name: "b"}).Finish()
	st := shape.New(shape.Const(4))
	add := g.AddOp(op.Add{}).Input(a, 0, st).Input(b, 0, st).Finish()

	srcs := g.Sources(add)
	require.Len(t, srcs, 2)
	assert.Equal(t, a, srcs[0].NodeID)
	assert.Equal(t, b, srcs[1].NodeID)
}

func TestSafeRemoveNodeRetainsNodeWithConsumers(t *testing.T) {
	g := New()
	st := shape.New(shape.Const(1))
	c := g.AddOp(&op.Function{Name: "c"}).Finish()
	_ = g.AddOp(op.Recip{}).Input(c, 0, st).Finish()
	_ = g.AddOp(op.Sin{}).Input(c, 0, st).Finish()

	g.SafeRemoveNode(c, 0)
	assert.NotNil(t, g.GetNode(c), "node with two remaining consumers must be retained")
}

func TestSafeRemoveNodeDeletesUnreferencedNode(t *testing.T) {
	g := New()
	st := shape.New(shape.Const(1))
	c := g.AddOp(&op.Function{Name: "c"}).Finish()
	consumer := g.AddOp(op.Recip{}).Input(c, 0, st).Finish()

	// simulate a redirect that moved c's only consumer elsewhere
	other := g.AddOp(&op.Function{Name: "other"}).Finish()
	g.MoveIncomingEdge(c, other)
	_ = consumer

	g.SafeRemoveNode(c, 0)
	assert.Nil(t, g.GetNode(c), "node with zero remaining consumers must be removed")
}

func TestCheckNoDelete(t *testing.T) {
	g := New()
	id := g.AddOp(&op.Function{}).Finish()
	assert.False(t, g.CheckNoDelete([]int64{id}))
	g.NoDelete[id] = true
	assert.True(t, g.CheckNoDelete([]int64{id}))
}

func TestTopoSortViaGonumAdapter(t *testing.T) {
	g := New()
	st := shape.New(shape.Const(4))
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(op.Recip{}).Input(a, 0, st).Finish()
	c := g.AddOp(op.Sin{}).Input(b, 0, st).Finish()

	order, err := topo.Sort(g)
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := map[int64]int{}
	for i, n := range order {
		pos[n.ID()] = i
	}
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[b], pos[c])
}

func TestMoveReferencesMigratesRemapAndSets(t *testing.T) {
	g := New()
	old := g.AddOp(&op.Function{}).Finish()
	replacement := g.AddOp(&op.Function{}).Finish()
	g.Retrieve(old)

	remap := NewIDRemap()
	g.MoveReferences(remap, old, replacement)

	assert.True(t, g.ToRetrieve[replacement])
	assert.False(t, g.ToRetrieve[old])
	assert.Equal(t, replacement, remap.Resolve(old))
}

func TestDebugPrintSplicesWithoutChangingConsumerWiring(t *testing.T) {
	g := New()
	st := shape.New(shape.Const(3))
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(op.Recip{}).Input(a, 0, st).Finish()

	var got []float64
	printID := g.DebugPrint(a, "trace-a", func(_ string, data []float64) { got = data })

	srcs := g.Sources(b)
	require.Len(t, srcs, 1)
	assert.Equal(t, printID, srcs[0].NodeID, "b must now read through the spliced print node")

	printSrcs := g.Sources(printID)
	require.Len(t, printSrcs, 1)
	assert.Equal(t, a, printSrcs[0].NodeID)

	out, err := g.GetOp(printID).Process([]op.Input{{Data: []float64{1, 2, 3}, Shape: st}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, out[0])
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestDebugPrintPreservesNoDelete(t *testing.T) {
	g := New()
	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	g.Retrieve(a)

	printID := g.DebugPrint(a, "trace", nil)
	assert.True(t, g.NoDelete[printID])
}
