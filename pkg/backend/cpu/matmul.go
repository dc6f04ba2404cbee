package cpu

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/ember-project/ember/pkg/backend"
	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// MatMul2D is the CPU-specialized replacement for op.MatMul2D, installed
// by Install. It stages both operands into row-major []float64 buffers
// (backend.Stage) and dispatches through Engine.MatMul instead of the
// reference implementation's triple loop, mirroring how mps/matmul.go
// wraps tensor.StdEng.MatMul for the teacher's CPU fallback path.
type MatMul2D struct {
	Engine *Engine
}

func (k MatMul2D) Process(in []op.Input) ([]any, error) {
	aShape := in[0].Shape.Shape()
	bShape := in[1].Shape.Shape()
	m, _ := aShape[0].IsConst()
	kk, _ := aShape[1].IsConst()
	k2, _ := bShape[0].IsConst()
	n, _ := bShape[1].IsConst()
	if kk != k2 {
		return nil, &errkind.ShapeMismatch{Op: "cpu.MatMul2D", Expected: fmt.Sprintf("k=%d", kk), Got: fmt.Sprintf("k=%d", k2)}
	}

	aBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.MatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	bBuf, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.MatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}

	aStaged := backend.Stage(aBuf, in[0].Shape)
	bStaged := backend.Stage(bBuf, in[1].Shape)

	da := tensor.New(tensor.WithShape(int(m), int(kk)), tensor.WithBacking(append([]float64(nil), aStaged...)))
	db := tensor.New(tensor.WithShape(int(kk), int(n)), tensor.WithBacking(append([]float64(nil), bStaged...)))
	out := make([]float64, int(m)*int(n))
	dc := tensor.New(tensor.WithShape(int(m), int(n)), tensor.WithBacking(out))

	if err := k.Engine.MatMul(da, db, dc); err != nil {
		return nil, &errkind.DeviceFailure{Stage: "cpu.MatMul2D", Reason: err.Error()}
	}
	return []any{out}, nil
}

func (k MatMul2D) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return op.MatMul2D{}.OutputBufferSizes(in)
}
func (k MatMul2D) Custom(key string, _ any) (any, bool) {
	if key == "cpu" {
		return nil, true
	}
	return nil, false
}

// BatchedMatMul2D is the CPU-specialized replacement for
// op.BatchedMatMul2D: it iterates the leading batch axis and offsets the
// staged source buffers by batch_index * a_batch_stride (resp.
// b_batch_stride) before dispatching each 2D slice through Engine.MatMul,
// exactly the staging scheme spec.md's CPU matmul dispatch contract
// describes, generalized from the teacher's single-matrix MatMul.
type BatchedMatMul2D struct {
	Engine *Engine
}

func (k BatchedMatMul2D) Process(in []op.Input) ([]any, error) {
	aShape := in[0].Shape.Shape()
	bShape := in[1].Shape.Shape()
	d, _ := aShape[0].IsConst()
	m, _ := aShape[1].IsConst()
	kk, _ := aShape[2].IsConst()
	n, _ := bShape[2].IsConst()

	aBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.BatchedMatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	bBuf, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.BatchedMatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}

	aStaged := backend.Stage(aBuf, in[0].Shape)
	bStaged := backend.Stage(bBuf, in[1].Shape)

	aBatchStride := int(m * kk)
	bBatchStride := int(kk * n)
	outBatchStride := int(m * n)
	out := make([]float64, int(d)*outBatchStride)

	for bIdx := int64(0); bIdx < d; bIdx++ {
		aOff := int(bIdx) * aBatchStride
		bOff := int(bIdx) * bBatchStride
		oOff := int(bIdx) * outBatchStride

		da := tensor.New(tensor.WithShape(int(m), int(kk)), tensor.WithBacking(append([]float64(nil), aStaged[aOff:aOff+aBatchStride]...)))
		db := tensor.New(tensor.WithShape(int(kk), int(n)), tensor.WithBacking(append([]float64(nil), bStaged[bOff:bOff+bBatchStride]...)))
		dc := tensor.New(tensor.WithShape(int(m), int(n)), tensor.WithBacking(out[oOff:oOff+outBatchStride]))

		if err := k.Engine.MatMul(da, db, dc); err != nil {
			return nil, &errkind.DeviceFailure{Stage: "cpu.BatchedMatMul2D", Reason: err.Error()}
		}
	}
	return []any{out}, nil
}

func (k BatchedMatMul2D) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return op.BatchedMatMul2D{}.OutputBufferSizes(in)
}
func (k BatchedMatMul2D) Custom(key string, _ any) (any, bool) {
	if key == "cpu" {
		return nil, true
	}
	return nil, false
}
