package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

func TestCPUSumReduceLastAxisMatchesReference(t *testing.T) {
	const rows, cols = 3, 4
	buf := make([]float64, rows*cols)
	for i := range buf {
		buf[i] = float64(i) + 1
	}
	st := shape.New(shape.Const(rows), shape.Const(cols))

	want, err := op.SumReduce{Axis: 1}.Process([]op.Input{{Data: buf, Shape: st}})
	require.NoError(t, err)

	kernel := SumReduce{Engine: NewEngine(), Axis: 1}
	got, err := kernel.Process([]op.Input{{Data: buf, Shape: st}})
	require.NoError(t, err)

	wantBuf := want[0].([]float64)
	gotBuf := got[0].([]float64)
	require.Len(t, gotBuf, len(wantBuf))
	for i := range wantBuf {
		assert.InDelta(t, wantBuf[i], gotBuf[i], 1e-9)
	}
}

func TestCPUSumReduceFirstAxisFallsBackToReference(t *testing.T) {
	const rows, cols = 3, 4
	buf := make([]float64, rows*cols)
	for i := range buf {
		buf[i] = float64(i) + 1
	}
	st := shape.New(shape.Const(rows), shape.Const(cols))

	want, err := op.SumReduce{Axis: 0}.Process([]op.Input{{Data: buf, Shape: st}})
	require.NoError(t, err)

	kernel := SumReduce{Engine: NewEngine(), Axis: 0}
	got, err := kernel.Process([]op.Input{{Data: buf, Shape: st}})
	require.NoError(t, err)

	assert.Equal(t, want[0].([]float64), got[0].([]float64))
}
