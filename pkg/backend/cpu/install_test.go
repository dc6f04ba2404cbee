package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

func TestInstallReplacesMatMulAndSumReduceNodes(t *testing.T) {
	g := graph.New()
	st := shape.New(shape.Const(2), shape.Const(3))

	a := g.AddOp(&op.Function{Name: "a"}).Finish()
	b := g.AddOp(&op.Function{Name: "b"}).Finish()
	mm := g.AddOp(op.MatMul2D{}).Input(a, 0, st).Input(b, 0, st).Finish()
	sr := g.AddOp(op.SumReduce{Axis: 1}).Input(mm, 0, st).Finish()

	Install(g, NewEngine())

	_, isCPUMatMul := g.GetOp(mm).(MatMul2D)
	require.True(t, isCPUMatMul, "MatMul2D node must be replaced by cpu.MatMul2D")
	_, isCPUSum := g.GetOp(sr).(SumReduce)
	require.True(t, isCPUSum, "SumReduce node must be replaced by cpu.SumReduce")

	_, stillCPUTagged := g.GetOp(mm).Custom("cpu", nil)
	assert.True(t, stillCPUTagged)
}
