// Package compiler implements the rewrite passes that turn a graph of
// primitive operators into one using specialized, fusable, or
// backend-dispatchable operators: subtraction synthesis, equality
// synthesis, gather synthesis, matmul inference, unary fusion, and the
// CPU/Metal backend lowering passes that install device-boundary nodes.
package compiler

import (
	"fmt"

	"github.com/ember-project/ember/pkg/emberlog"
	"github.com/ember-project/ember/pkg/graph"
)

// Pass rewrites g in place.
type Pass interface {
	Compile(g *graph.Graph)
}

// PassFunc adapts a plain function to Pass.
type PassFunc func(g *graph.Graph)

func (f PassFunc) Compile(g *graph.Graph) { f(g) }

// namedPass attaches a diagnostic name to a Pass so Pipeline.Compile can
// log something more useful than a PassFunc's synthesized type name.
type namedPass struct {
	name string
	pass Pass
}

func (n namedPass) Compile(g *graph.Graph) { n.pass.Compile(g) }

// Named wraps p so Pipeline logs name for its entry/exit lines.
func Named(name string, p Pass) Pass { return namedPass{name: name, pass: p} }

func passName(p Pass) string {
	if n, ok := p.(namedPass); ok {
		return n.name
	}
	return fmt.Sprintf("%T", p)
}

// Pipeline runs a fixed sequence of passes in order, mirroring the
// teacher corpus's tuple-of-compilers idiom (`CPUCompiler` in
// original_source is a tuple of compiler structs run in sequence).
type Pipeline struct {
	Passes []Pass
}

// NewPipeline builds a Pipeline from an ordered pass list.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{Passes: passes}
}

// Compile runs every pass over g in order, logging each pass's node-count
// delta so a developer can see which pass fired and how much it matched
// without instrumenting the passes themselves.
func (p *Pipeline) Compile(g *graph.Graph) {
	log := emberlog.New("compiler")
	for _, pass := range p.Passes {
		name := passName(pass)
		before := g.NodeCount()
		pass.Compile(g)
		after := g.NodeCount()
		log.Info().Str("pass", name).Int("nodes_before", before).Int("nodes_after", after).Msg("pass complete")
	}
}

// StandardPasses returns the fixed rewrite sequence shared by both
// backends: the four synthesis passes, then unary fusion, matching the
// teacher's CPUCompiler ordering (matmul inference before the
// elementwise synthesis passes so the leftover Mul/SumReduce pairs
// consumed by matmul never get mistaken for a gather or subtraction
// shape; unary fusion runs last since it only ever shortens fan-out-1
// chains the earlier passes may have produced).
func StandardPasses() []Pass {
	return []Pass{
		Named("matmul2d", PassFunc(MatMul2D)),
		Named("batch_matmul2d", PassFunc(BatchMatMul2D)),
		Named("subtraction", PassFunc(Subtraction)),
		Named("equality", PassFunc(Equality)),
		Named("gather", PassFunc(Gather)),
		Named("unary_fusion", PassFunc(UnaryFusion)),
	}
}
