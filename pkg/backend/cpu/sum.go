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

// SumReduce is the CPU-specialized replacement for op.SumReduce. It only
// accelerates the common case of a 2D input reduced along its last axis
// (routed through Engine.Sum); every other rank/axis combination falls
// back to the reference element-by-element implementation. Grounded on
// mps/sum_darwin.go's MPSEng.Sum, which draws the identical line between
// an accelerated last-axis 2D case and a StdEng fallback.
type SumReduce struct {
	Engine *Engine
	Axis   int
}

func (k SumReduce) Process(in []op.Input) ([]any, error) {
	shp := in[0].Shape.Shape()
	if len(shp) != 2 || k.Axis != len(shp)-1 {
		return op.SumReduce{Axis: k.Axis}.Process(in)
	}

	rows, ok := shp[0].IsConst()
	if !ok {
		return op.SumReduce{Axis: k.Axis}.Process(in)
	}
	cols, ok := shp[1].IsConst()
	if !ok {
		return op.SumReduce{Axis: k.Axis}.Process(in)
	}

	buf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.SumReduce", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	staged := backend.Stage(buf, in[0].Shape)

	d := tensor.New(tensor.WithShape(int(rows), int(cols)), tensor.WithBacking(append([]float64(nil), staged...)))
	summed, err := k.Engine.Sum(d, 1)
	if err != nil {
		return nil, &errkind.DeviceFailure{Stage: "cpu.SumReduce", Reason: err.Error()}
	}
	out, ok := summed.Data().([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "cpu.SumReduce", Expected: "[]float64", Got: fmt.Sprintf("%T", summed.Data())}
	}
	return []any{append([]float64(nil), out[:rows]...)}, nil
}

func (k SumReduce) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return op.SumReduce{Axis: k.Axis}.OutputBufferSizes(in)
}
func (k SumReduce) Custom(key string, _ any) (any, bool) {
	if key == "cpu" {
		return nil, true
	}
	return nil, false
}
