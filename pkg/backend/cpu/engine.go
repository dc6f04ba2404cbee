// Package cpu is ember's host backend: it replaces the reference
// op.MatMul2D/op.BatchedMatMul2D/op.SumReduce implementations (which are
// correct but loop element-by-element through the shape tracker) with
// versions that stage operands into gorgonia.org/tensor Dense buffers and
// dispatch to a real engine, the same division of labor the teacher's
// MPSEng draws between its embedded tensor.StdEng and its accelerated
// overrides.
package cpu

import "gorgonia.org/tensor"

// Engine is a tensor.Engine that currently delegates everything to
// tensor.StdEng. It exists as a single place to later swap in a BLAS- or
// SIMD-backed gorgonia.org/tensor engine without touching the
// operator wrappers that hold it.
type Engine struct {
	tensor.StdEng
}

// NewEngine constructs the default CPU engine.
func NewEngine() *Engine {
	return &Engine{StdEng: tensor.StdEng{}}
}

var _ tensor.Engine = (*Engine)(nil)
