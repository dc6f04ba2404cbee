package metal

import (
	"fmt"

	"github.com/ember-project/ember/pkg/backend"
	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// MetalSub is the GPU-specialized replacement for op.Sub, installed by
// Install wherever a Sub node survives the subtraction synthesis pass on
// a graph compiled for this backend. Grounded directly on
// original_source's MetalSub<T>/MetalSubtractionCompiler.
type MetalSub struct {
	dev      *Device
	pipeline *Pipeline
	dyn      []byte
}

// NewMetalSub compiles the elementwise subtraction kernel for the given
// operand shapes.
func NewMetalSub(dev *Device, aShape, bShape *shape.Tracker) (*MetalSub, error) {
	aOff, aValid, aDyn := indexExprs(aShape)
	bOff, bValid, bDyn := indexExprs(bShape)
	dyn := mergeDynSymbols(aDyn, bDyn)

	source := fmt.Sprintf(`#include <metal_stdlib>
using namespace metal;
kernel void ember_sub(device float *inp_a [[buffer(0)]], device float *inp_b [[buffer(1)]], device float *out [[buffer(2)]], device int& n_elements [[buffer(3)]], uint idx [[thread_position_in_grid]]%s) {
    if (idx < n_elements) {
        out[idx] = ((%s) == 0 ? 0.0 : inp_a[%s]) - ((%s) == 0 ? 0.0 : inp_b[%s]);
    }
}`, renderDynParams(dyn, 4), aValid, aOff, bValid, bOff)

	p, err := dev.Compile("ember_sub", source)
	if err != nil {
		return nil, err
	}
	return &MetalSub{dev: dev, pipeline: p, dyn: dyn}, nil
}

func (k *MetalSub) Process(in []op.Input) ([]any, error) {
	aBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Sub", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	bBuf, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Sub", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}
	n, ok := in[0].Shape.NElements().IsConst()
	if !ok {
		return nil, &errkind.UnboundDimension{Var: '?'}
	}
	out, err := k.dev.Dispatch(k.pipeline, [][]float64{backend.Stage(aBuf, in[0].Shape), backend.Stage(bBuf, in[1].Shape)}, int(n), nil)
	if err != nil {
		return nil, err
	}
	return []any{out}, nil
}

func (k *MetalSub) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return op.Sub{}.OutputBufferSizes(in) }
func (k *MetalSub) Custom(key string, payload any) (any, bool) {
	if key == "metal" {
		return nil, true
	}
	return op.Sub{}.Custom(key, payload)
}

// MetalEqual is the GPU-specialized replacement for op.Equal. Grounded
// on original_source's MetalEqual<T>/MetalEqualCompiler.
type MetalEqual struct {
	dev      *Device
	pipeline *Pipeline
	dyn      []byte
}

func NewMetalEqual(dev *Device, aShape, bShape *shape.Tracker) (*MetalEqual, error) {
	aOff, aValid, aDyn := indexExprs(aShape)
	bOff, bValid, bDyn := indexExprs(bShape)
	dyn := mergeDynSymbols(aDyn, bDyn)

	source := fmt.Sprintf(`#include <metal_stdlib>
using namespace metal;
kernel void ember_equal(device float *inp_a [[buffer(0)]], device float *inp_b [[buffer(1)]], device float *out [[buffer(2)]], device int& n_elements [[buffer(3)]], uint idx [[thread_position_in_grid]]%s) {
    if (idx < n_elements) {
        float a_val = ((%s) == 0 ? 0.0 : inp_a[%s]);
        float b_val = ((%s) == 0 ? 0.0 : inp_b[%s]);
        out[idx] = a_val == b_val ? 1.0 : 0.0;
    }
}`, renderDynParams(dyn, 4), aValid, aOff, bValid, bOff)

	p, err := dev.Compile("ember_equal", source)
	if err != nil {
		return nil, err
	}
	return &MetalEqual{dev: dev, pipeline: p, dyn: dyn}, nil
}

func (k *MetalEqual) Process(in []op.Input) ([]any, error) {
	aBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Equal", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	bBuf, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Equal", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}
	n, ok := in[0].Shape.NElements().IsConst()
	if !ok {
		return nil, &errkind.UnboundDimension{Var: '?'}
	}
	out, err := k.dev.Dispatch(k.pipeline, [][]float64{backend.Stage(aBuf, in[0].Shape), backend.Stage(bBuf, in[1].Shape)}, int(n), nil)
	if err != nil {
		return nil, err
	}
	return []any{out}, nil
}

func (k *MetalEqual) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return op.Equal{}.OutputBufferSizes(in)
}
func (k *MetalEqual) Custom(key string, payload any) (any, bool) {
	if key == "metal" {
		return nil, true
	}
	return op.Equal{}.Custom(key, payload)
}

// MetalGather is the GPU-specialized replacement for op.Gather. Its
// kernel dispatches a 2D grid (embedding index x embedding dim), unlike
// the 1D elementwise kernels above, matching original_source's
// MetalGather<T>/MetalGatherCompiler exactly.
type MetalGather struct {
	dev      *Device
	pipeline *Pipeline
	embedDim int
}

func NewMetalGather(dev *Device, embedDim int) (*MetalGather, error) {
	source := fmt.Sprintf(`#include <metal_stdlib>
using namespace metal;
kernel void ember_gather(device float *inp [[buffer(0)]], device float *weights [[buffer(1)]], device float *out [[buffer(2)]], device int& n_embeddings [[buffer(3)]], device int& embedding_dim [[buffer(4)]], uint2 i_ [[thread_position_in_grid]]) {
    if (i_.x < n_embeddings && i_.y < embedding_dim) {
        out[i_.x * embedding_dim + i_.y] = weights[(int)inp[i_.x] * embedding_dim + i_.y];
    }
}`)

	p, err := dev.Compile("ember_gather", source)
	if err != nil {
		return nil, err
	}
	return &MetalGather{dev: dev, pipeline: p, embedDim: embedDim}, nil
}

func (k *MetalGather) Process(in []op.Input) ([]any, error) {
	idxBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Gather", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	weights, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "metal.Gather", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}
	n, ok := in[0].Shape.NElements().IsConst()
	if !ok {
		return nil, &errkind.UnboundDimension{Var: '?'}
	}
	out, err := k.dev.Dispatch(k.pipeline,
		[][]float64{backend.Stage(idxBuf, in[0].Shape), backend.Stage(weights, in[1].Shape)},
		int(n)*k.embedDim, nil)
	if err != nil {
		return nil, err
	}
	return []any{out}, nil
}

func (k *MetalGather) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return op.Gather{EmbedDim: k.embedDim}.OutputBufferSizes(in)
}
func (k *MetalGather) Custom(key string, _ any) (any, bool) {
	if key == "metal" {
		return nil, true
	}
	return nil, false
}
