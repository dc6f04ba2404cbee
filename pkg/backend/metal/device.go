package metal

import (
	"github.com/ember-project/ember/pkg/emberlog"
	"github.com/ember-project/ember/pkg/errkind"
)

// Pipeline is a compiled kernel, the Go-side handle for what
// original_source calls a ComputePipelineState: a textual kernel Source
// compiled once against a Device and re-dispatched for every matching
// node in the graph.
type Pipeline struct {
	Name   string
	Source string
	handle pipelineHandle
}

// Device owns the Metal device and command queue every Pipeline on it
// dispatches through. NewDevice and its methods are implemented once per
// build-tag variant (device_darwin.go for darwin+cgo, device_other.go
// everywhere else), mirroring the teacher's engine_darwin.go/
// engine_other.go split.
type Device struct {
	handle deviceHandle
}

// NewDevice opens the default system Metal device. On a non-darwin or
// non-cgo build this always fails with errkind.DeviceFailure, so no
// Metal kernel is installed there and MetalLowering finds no
// Metal-tagged op to wrap.
func NewDevice() (*Device, error) {
	return newDevice()
}

// Compile builds a pipeline from source for the named kernel entry
// point.
func (d *Device) Compile(name, source string) (*Pipeline, error) {
	log := emberlog.New("metal")
	h, err := compilePipeline(d.handle, name, source)
	if err != nil {
		log.Error().Str("kernel", name).Err(err).Msg("pipeline build failed")
		return nil, &errkind.KernelCompilation{Kernel: name, Reason: err.Error()}
	}
	log.Debug().Str("kernel", name).Msg("pipeline built")
	return &Pipeline{Name: name, Source: source, handle: h}, nil
}

// Dispatch runs p over inputs (each already staged to row-major
// []float64 by pkg/backend.Stage), producing an outputLen-element result
// buffer. dynInts supplies the concrete value for every dyn-dim symbol
// the kernel source declared a parameter for.
func (d *Device) Dispatch(p *Pipeline, inputs [][]float64, outputLen int, dynInts map[byte]int64) ([]float64, error) {
	out, err := dispatch1D(d.handle, p.handle, inputs, outputLen, dynInts)
	if err != nil {
		return nil, &errkind.DeviceFailure{Stage: "metal.Dispatch:" + p.Name, Reason: err.Error()}
	}
	return out, nil
}
