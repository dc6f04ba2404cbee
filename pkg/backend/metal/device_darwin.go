//go:build darwin && cgo

// device_darwin.go
//
// Darwin-only Device backing: opens the default Metal device and a
// shared command queue, compiles kernel source into
// MTLComputePipelineState objects, and dispatches 1D grids sized to the
// output element count, the same compile-once/dispatch-many shape
// original_source/crates/luminal_metal/src/binary.rs uses around
// compile_function and metal_forward.

package metal

/*
#cgo darwin CFLAGS: -fobjc-arc
#cgo darwin LDFLAGS: -framework Metal -framework MetalPerformanceShaders -framework Foundation
#include "ember_metal.h"
*/
import "C"

import (
	"errors"
	"unsafe"
)

type deviceHandle = unsafe.Pointer
type pipelineHandle = unsafe.Pointer

func newDevice() (*Device, error) {
	h := unsafe.Pointer(C.EmberMetalCreateDevice())
	if h == nil {
		return nil, errors.New("metal: no default device available")
	}
	return &Device{handle: h}, nil
}

func compilePipeline(dev deviceHandle, name, source string) (pipelineHandle, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))

	var status C.int
	h := C.EmberMetalCompile((C.EmberMetalDevice)(dev), cSource, cName, &status)
	if status != 0 || h == nil {
		return nil, errors.New("metal: pipeline compilation failed")
	}
	return unsafe.Pointer(h), nil
}

func dispatch1D(dev deviceHandle, pipeline pipelineHandle, inputs [][]float64, outputLen int, dynInts map[byte]int64) ([]float64, error) {
	out := make([]float64, outputLen)

	cInputs := make([]unsafe.Pointer, len(inputs))
	cSizes := make([]C.int, len(inputs))
	for i, buf := range inputs {
		if len(buf) == 0 {
			cInputs[i] = nil
		} else {
			cInputs[i] = unsafe.Pointer(&buf[0])
		}
		cSizes[i] = C.int(len(buf))
	}
	var outPtr unsafe.Pointer
	if outputLen > 0 {
		outPtr = unsafe.Pointer(&out[0])
	}

	var inputsPtr *unsafe.Pointer
	if len(cInputs) > 0 {
		inputsPtr = &cInputs[0]
	}
	var sizesPtr *C.int
	if len(cSizes) > 0 {
		sizesPtr = &cSizes[0]
	}

	status := C.EmberMetalDispatch1D(
		(C.EmberMetalPipeline)(pipeline),
		(*unsafe.Pointer)(inputsPtr),
		sizesPtr,
		C.int(len(inputs)),
		outPtr,
		C.int(outputLen),
	)
	if status != 0 {
		return nil, errors.New("metal: dispatch failed")
	}
	return out, nil
}
