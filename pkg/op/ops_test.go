package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

func vec(n int) *shape.Tracker { return shape.New(shape.Const(int64(n))) }

func TestAddSubMulDivElementwise(t *testing.T) {
	a := Input{Data: []float64{1, 2, 3}, Shape: vec(3)}
	b := Input{Data: []float64{4, 5, 6}, Shape: vec(3)}

	addOut, err := Add{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 9}, addOut[0])

	subOut, err := Sub{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{-3, -3, -3}, subOut[0])

	mulOut, err := Mul{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 10, 18}, mulOut[0])

	divOut, err := Div{}.Process([]Input{b, a})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 2.5, 2}, divOut[0])
}

func TestLessThanAndEqual(t *testing.T) {
	a := Input{Data: []float64{1, 5, 3}, Shape: vec(3)}
	b := Input{Data: []float64{2, 5, 1}, Shape: vec(3)}

	ltOut, err := LessThan{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, ltOut[0])

	eqOut, err := Equal{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, eqOut[0])
}

func TestUnaryOps(t *testing.T) {
	in := Input{Data: []float64{1, 2, 4}, Shape: vec(3)}

	recip, err := Recip{}.Process([]Input{in})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.5, 0.25}, recip[0].([]float64), 1e-9)

	log2, err := Log2{}.Process([]Input{in})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 2}, log2[0].([]float64), 1e-9)

	exp2, err := Exp2{}.Process([]Input{{Data: []float64{0, 1, 2}, Shape: vec(3)}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 4}, exp2[0].([]float64), 1e-9)
}

func TestFusedUnaryAppliesStepsInOrder(t *testing.T) {
	f := NewFusedUnary("exp2", "log2")
	out, err := f.Process([]Input{{Data: []float64{3}, Shape: vec(1)}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3}, out[0].([]float64), 1e-9)
	assert.Equal(t, []string{"exp2", "log2"}, f.StepNames())
}

func TestUnaryNameRecognizesThePrimitiveFour(t *testing.T) {
	cases := []struct {
		op   Operator
		name string
	}{
		{Recip{}, "recip"},
		{Sin{}, "sin"},
		{Log2{}, "log2"},
		{Exp2{}, "exp2"},
	}
	for _, c := range cases {
		name, ok := UnaryName(c.op)
		assert.True(t, ok)
		assert.Equal(t, c.name, name)
	}
	_, ok := UnaryName(Add{})
	assert.False(t, ok)
}

func TestARangeProducesSequentialRange(t *testing.T) {
	out, err := ARange{N: symbolic.Const(4)}.Process(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, out[0])
}

func TestARangeFailsOnUnboundLength(t *testing.T) {
	_, err := ARange{N: symbolic.Var('n')}.Process(nil)
	var unbound *errkind.UnboundDimension
	assert.ErrorAs(t, err, &unbound)
}

func TestSumReduceLastAxis(t *testing.T) {
	st := shape.New(shape.Const(2), shape.Const(3))
	in := Input{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: st}

	out, err := SumReduce{Axis: 1}.Process([]Input{in})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 15}, out[0])
	assert.True(t, SumReduce{Axis: 1}.Equals(1))
	assert.False(t, SumReduce{Axis: 1}.Equals(0))
}

func TestSumReduceFirstAxis(t *testing.T) {
	st := shape.New(shape.Const(2), shape.Const(3))
	in := Input{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: st}

	out, err := SumReduce{Axis: 0}.Process([]Input{in})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 9}, out[0])
}

func TestFunctionProducesConstantOrCallbackValue(t *testing.T) {
	c := 7.0
	constFn := &Function{Const: &c}
	out, err := constFn.Process(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, out[0])
	v, ok := ConstValue(constFn)
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	called := false
	cbFn := &Function{Get: func() ([]float64, error) { called = true; return []float64{1, 2}, nil }}
	out, err = cbFn.Process(nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []float64{1, 2}, out[0])

	_, ok = ConstValue(cbFn)
	assert.False(t, ok)
}

func TestCopyToFromDeviceAreIdentityPassthroughs(t *testing.T) {
	in := Input{Data: []float64{1, 2, 3}, Shape: vec(3)}

	toOut, err := CopyToDevice{}.Process([]Input{in})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, toOut[0])

	fromOut, err := CopyFromDevice{}.Process([]Input{in})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, fromOut[0])
}

func TestPrintForwardsBufferToSinkAndPassesThrough(t *testing.T) {
	var gotMsg string
	var gotData []float64
	p := Print{Message: "trace", Sink: func(msg string, data []float64) { gotMsg, gotData = msg, data }}

	out, err := p.Process([]Input{{Data: []float64{1, 2}, Shape: vec(2)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out[0])
	assert.Equal(t, "trace", gotMsg)
	assert.Equal(t, []float64{1, 2}, gotData)
}

func TestMatMul2DReferenceComputesStandardProduct(t *testing.T) {
	aShape := shape.New(shape.Const(2), shape.Const(3))
	bShape := shape.New(shape.Const(3), shape.Const(2))
	a := Input{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: aShape}
	b := Input{Data: []float64{7, 8, 9, 10, 11, 12}, Shape: bShape}

	out, err := MatMul2D{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{58, 64, 139, 154}, out[0])
}

func TestMatMul2DRejectsInnerDimensionMismatch(t *testing.T) {
	aShape := shape.New(shape.Const(2), shape.Const(3))
	bShape := shape.New(shape.Const(4), shape.Const(2))
	a := Input{Data: make([]float64, 6), Shape: aShape}
	b := Input{Data: make([]float64, 8), Shape: bShape}

	_, err := MatMul2D{}.Process([]Input{a, b})
	var mismatch *errkind.ShapeMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestBatchedMatMul2DIteratesOverBatchAxis(t *testing.T) {
	aShape := shape.New(shape.Const(2), shape.Const(2), shape.Const(2))
	bShape := shape.New(shape.Const(2), shape.Const(2), shape.Const(2))
	a := Input{Data: []float64{1, 0, 0, 1, 2, 0, 0, 2}, Shape: aShape}
	b := Input{Data: []float64{5, 6, 7, 8, 1, 1, 1, 1}, Shape: bShape}

	out, err := BatchedMatMul2D{}.Process([]Input{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6, 7, 8, 2, 2, 2, 2}, out[0])
}

func TestGatherLooksUpEmbeddingRows(t *testing.T) {
	idx := Input{Data: []float64{2, 0}, Shape: vec(2)}
	weights := Input{Data: []float64{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
	}, Shape: shape.New(shape.Const(3), shape.Const(3))}

	out, err := Gather{EmbedDim: 3}.Process([]Input{idx, weights})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 0, 0, 0}, out[0])
}
