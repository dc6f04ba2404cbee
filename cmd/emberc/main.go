// emberc builds a small matmul graph, runs it through the standard
// compiler pipeline and the CPU backend, executes it, and prints the
// retrieved result — the "drive the library" command every corpus repo
// ships alongside its packages.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ember-project/ember/pkg/backend/cpu"
	"github.com/ember-project/ember/pkg/compiler"
	"github.com/ember-project/ember/pkg/config"
	"github.com/ember-project/ember/pkg/emberlog"
	"github.com/ember-project/ember/pkg/executor"
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

var (
	configPath = flag.String("config", "", "path to a YAML tuning config (optional)")
	m          = flag.Int("m", 2, "left operand row count")
	k          = flag.Int("k", 3, "shared contraction dimension")
	n          = flag.Int("n", 2, "right operand column count")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fail(err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	log := emberlog.New("emberc")
	log.Info().Str("backend", cfg.Backend).Int("m", *m).Int("k", *k).Int("n", *n).Msg("starting run")

	g, _ := buildMatMulGraph(*m, *k, *n)

	passes := compiler.StandardPasses()
	if !cfg.Fusion {
		passes = passes[:len(passes)-1] // drop the trailing unary fusion pass
	}
	compiler.NewPipeline(passes...).Compile(g)

	// emberc only drives the CPU path: opening a real Metal device
	// requires darwin+cgo and physical hardware neither this binary nor
	// its test suite can assume.
	compiler.CPULowering(g)
	cpu.Install(g, cpu.NewEngine())

	out, err := executor.Execute(g)
	if err != nil {
		fail(err)
	}

	// The matmul rewrite pass replaces the sumreduce node built by
	// buildMatMulGraph with a new MatMul2D node under a new id and
	// migrates retrieval to it, so the result must be looked up by the
	// post-compile retrieval set rather than the pre-compile id.
	retrieved := g.RetrievedIDs()
	if len(retrieved) != 1 {
		fail(fmt.Errorf("emberc: expected exactly one retrieved node, got %d", len(retrieved)))
	}
	buf, ok := out[retrieved[0]][0].([]float64)
	if !ok {
		fail(fmt.Errorf("emberc: unexpected result buffer type %T", out[retrieved[0]][0]))
	}

	fmt.Printf("result (%dx%d):\n", *m, *n)
	for r := 0; r < *m; r++ {
		for c := 0; c < *n; c++ {
			fmt.Printf("%8.2f", buf[r*(*n)+c])
		}
		fmt.Println()
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "emberc:", err)
	os.Exit(1)
}

// buildMatMulGraph constructs the canonical expand->mul->sumreduce(axis
// 2) shape that pkg/compiler.MatMul2D recognizes and rewrites into a
// single op.MatMul2D node. b is generated in [N,K] layout (the transpose
// of the conventional [K,N] operand) since that's the physical layout
// the synthesized MatMul2D node's permuted view expects.
func buildMatMulGraph(m, k, n int) (*graph.Graph, int64) {
	g := graph.New()

	aData := sequential(m * k)
	bConventional := sequential(k * n)
	bData := transpose(bConventional, k, n)

	a := g.AddOp(&op.Function{Get: func() ([]float64, error) { return aData, nil }}).Finish()
	b := g.AddOp(&op.Function{Get: func() ([]float64, error) { return bData, nil }}).Finish()

	mDim, kDim, nDim := shape.Const(int64(m)), shape.Const(int64(k)), shape.Const(int64(n))
	aExp := shape.New(mDim, kDim).Expand(1, nDim)
	bExp := shape.New(nDim, kDim).Expand(0, mDim)
	mulShape := shape.New(mDim, nDim, kDim)

	mul := g.AddOp(op.Mul{}).
		InputFakes(a, 0, aExp, []bool{false, true, false}).
		InputFakes(b, 0, bExp, []bool{true, false, false}).
		Finish()
	sum := g.AddOp(op.SumReduce{Axis: 2}).Input(mul, 0, mulShape).Finish()
	g.Retrieve(sum)
	return g, sum
}

func sequential(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

// transpose reinterprets flat (rows x cols, row-major) as its cols x rows
// transpose, also row-major.
func transpose(flat []float64, rows, cols int) []float64 {
	out := make([]float64, len(flat))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = flat[r*cols+c]
		}
	}
	return out
}
