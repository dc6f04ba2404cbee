//go:build !darwin || !cgo

// device_other.go
//
// Non-darwin (or non-cgo) stub: there is no Metal device to open, so
// NewDevice always fails and every MetalLowering-tagged node that would
// depend on it never gets constructed. Mirrors mps/engine_other.go's
// no-op stance on platforms without the real framework.

package metal

import "errors"

type deviceHandle = struct{}
type pipelineHandle = struct{}

func newDevice() (*Device, error) {
	return nil, errors.New("metal: not available on this platform")
}

func compilePipeline(deviceHandle, string, string) (pipelineHandle, error) {
	return pipelineHandle{}, errors.New("metal: not available on this platform")
}

func dispatch1D(deviceHandle, pipelineHandle, [][]float64, int, map[byte]int64) ([]float64, error) {
	return nil, errors.New("metal: not available on this platform")
}
