package op

import (
	"fmt"
	"math"

	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// concreteElementCount resolves st.NElements() assuming every free
// variable has already been substituted by the executor before Process is
// called.
func concreteElementCount(st *shape.Tracker) (int, error) {
	n, ok := st.NElements().IsConst()
	if !ok {
		return 0, &errkind.UnboundDimension{Var: '?'}
	}
	return int(n), nil
}

// readElem fetches logical element i of buf through st, returning 0 for
// invalid (padding) positions per the shape tracker contract.
func readElem(buf []float64, st *shape.Tracker, i int) float64 {
	offExpr, validExpr := st.IndexFor(symbolic.Const(int64(i)))
	valid, _ := validExpr.IsConst()
	if valid == 0 {
		return 0
	}
	off, _ := offExpr.IsConst()
	return buf[off]
}

func materialize(in Input) ([]float64, error) {
	buf, ok := in.Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "materialize", Expected: "[]float64", Got: fmt.Sprintf("%T", in.Data)}
	}
	n, err := concreteElementCount(in.Shape)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = readElem(buf, in.Shape, i)
	}
	return out, nil
}

func elementwiseOutputSizes(inputShapes []*shape.Tracker) []*symbolic.Expr {
	return []*symbolic.Expr{inputShapes[0].NElements()}
}

func nonContiguousCustom(key string, expr string) (any, bool) {
	switch key {
	case "elementwise":
		return expr, true
	case "non_contiguous":
		return true, true
	}
	return nil, false
}

// --- binary elementwise ---

type Add struct{}

func (Add) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return []any{out}, nil
}
func (Add) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return elementwiseOutputSizes(in) }
func (Add) Custom(key string, _ any) (any, bool)                   { return nonContiguousCustom(key, "input0 + input1") }

type Sub struct{}

func (Sub) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return []any{out}, nil
}
func (Sub) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return elementwiseOutputSizes(in) }
func (Sub) Custom(key string, _ any) (any, bool)                   { return nonContiguousCustom(key, "input0 - input1") }

type Mul struct{}

func (Mul) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] * b[i]
	}
	return []any{out}, nil
}
func (Mul) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return elementwiseOutputSizes(in) }
func (Mul) Custom(key string, _ any) (any, bool)                   { return nonContiguousCustom(key, "input0 * input1") }

type Div struct{}

func (Div) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] / b[i]
	}
	return []any{out}, nil
}
func (Div) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return elementwiseOutputSizes(in) }
func (Div) Custom(key string, _ any) (any, bool)                   { return nonContiguousCustom(key, "input0 / input1") }

// LessThan is never a terminal user-visible op after the equality
// synthesis pass fires on the two-way pattern, but remains available as a
// standalone comparison for graphs the pass doesn't match.
type LessThan struct{}

func (LessThan) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		if a[i] < b[i] {
			out[i] = 1
		}
	}
	return []any{out}, nil
}
func (LessThan) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (LessThan) Custom(key string, _ any) (any, bool) {
	return nonContiguousCustom(key, "input0 < input1 ? 1.0 : 0.0")
}

// Equal is the synthesized result of the two-way less-than pattern (see
// pkg/compiler), but is also directly constructible.
type Equal struct{}

func (Equal) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize(in[1])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range out {
		if a[i] == b[i] {
			out[i] = 1
		}
	}
	return []any{out}, nil
}
func (Equal) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr { return elementwiseOutputSizes(in) }
func (Equal) Custom(key string, _ any) (any, bool) {
	return nonContiguousCustom(key, "input0 == input1 ? 1.0 : 0.0")
}

// --- unary elementwise ---

type unaryFn struct {
	name string
	fn   func(float64) float64
	expr string
}

func unaryProcess(f func(float64) float64) func([]Input) ([]any, error) {
	return func(in []Input) ([]any, error) {
		a, err := materialize(in[0])
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(a))
		for i := range out {
			out[i] = f(a[i])
		}
		return []any{out}, nil
	}
}

type Recip struct{}

func (Recip) Process(in []Input) ([]any, error) { return unaryProcess(func(x float64) float64 { return 1 / x })(in) }
func (Recip) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (Recip) Custom(key string, _ any) (any, bool) { return nonContiguousCustom(key, "1.0 / input0") }

type Sin struct{}

func (Sin) Process(in []Input) ([]any, error) { return unaryProcess(math.Sin)(in) }
func (Sin) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (Sin) Custom(key string, _ any) (any, bool) { return nonContiguousCustom(key, "sin(input0)") }

type Log2 struct{}

func (Log2) Process(in []Input) ([]any, error) { return unaryProcess(math.Log2)(in) }
func (Log2) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (Log2) Custom(key string, _ any) (any, bool) { return nonContiguousCustom(key, "log2(input0)") }

type Exp2 struct{}

func (Exp2) Process(in []Input) ([]any, error) { return unaryProcess(math.Exp2)(in) }
func (Exp2) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (Exp2) Custom(key string, _ any) (any, bool) { return nonContiguousCustom(key, "exp2(input0)") }

// FusedUnary carries an ordered list of point functions collapsed from a
// fan-out-1 unary chain by the unary fusion compiler pass. It evaluates
// in one pass over the buffer instead of one pass per original op.
type FusedUnary struct {
	Fns []unaryFn
}

// NewFusedUnaryStep returns the function for one named fusion step. Recognized
// names: "recip", "sin", "log2", "exp2".
func NewFusedUnaryStep(name string) unaryFn {
	switch name {
	case "recip":
		return unaryFn{name: name, fn: func(x float64) float64 { return 1 / x }, expr: "1.0 / %s"}
	case "sin":
		return unaryFn{name: name, fn: math.Sin, expr: "sin(%s)"}
	case "log2":
		return unaryFn{name: name, fn: math.Log2, expr: "log2(%s)"}
	case "exp2":
		return unaryFn{name: name, fn: math.Exp2, expr: "exp2(%s)"}
	default:
		return unaryFn{name: name, fn: func(x float64) float64 { return x }, expr: "%s"}
	}
}

// NewFusedUnary builds a FusedUnary chain from a sequence of recognized
// unary op names, applied in order.
func NewFusedUnary(names ...string) *FusedUnary {
	fns := make([]unaryFn, len(names))
	for i, n := range names {
		fns[i] = NewFusedUnaryStep(n)
	}
	return &FusedUnary{Fns: fns}
}

func (f *FusedUnary) Process(in []Input) ([]any, error) {
	a, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i, v := range a {
		for _, step := range f.Fns {
			v = step.fn(v)
		}
		out[i] = v
	}
	return []any{out}, nil
}
func (f *FusedUnary) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
// StepNames returns the recognized name of each fusion step in order, for
// compiler passes that need to extend an existing fusion chain.
func (f *FusedUnary) StepNames() []string {
	names := make([]string, len(f.Fns))
	for i, step := range f.Fns {
		names[i] = step.name
	}
	return names
}

func (f *FusedUnary) Custom(key string, payload any) (any, bool) {
	switch key {
	case "elementwise":
		expr := "input0"
		for _, step := range f.Fns {
			expr = fmt.Sprintf(step.expr, expr)
		}
		return expr, true
	case "non_contiguous":
		return true, true
	}
	return nil, false
}

// UnaryName reports the fusion step name for one of the four primitive
// unary operators, used by the unary fusion compiler pass to recognize
// fusable chain links.
func UnaryName(o Operator) (string, bool) {
	switch o.(type) {
	case Recip:
		return "recip", true
	case Sin:
		return "sin", true
	case Log2:
		return "log2", true
	case Exp2:
		return "exp2", true
	}
	return "", false
}

// --- reductions & generators ---

// ARange produces [0, 1, ..., n-1] for a given symbolic length.
type ARange struct {
	N *symbolic.Expr
}

func (a ARange) Process(in []Input) ([]any, error) {
	n, ok := a.N.IsConst()
	if !ok {
		return nil, &errkind.UnboundDimension{Var: '?'}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return []any{out}, nil
}
func (a ARange) OutputBufferSizes([]*shape.Tracker) []*symbolic.Expr { return []*symbolic.Expr{a.N} }
func (ARange) Custom(string, any) (any, bool)                        { return nil, false }

// SumReduce sums along Axis, collapsing it to size 1 (then squeezed by
// the caller/compiler as appropriate).
type SumReduce struct{ Axis int }

func (s SumReduce) Process(in []Input) ([]any, error) {
	st := in[0].Shape
	shp := st.Shape()
	n, err := concreteElementCount(st)
	if err != nil {
		return nil, err
	}
	buf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "SumReduce", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	dims := make([]int, len(shp))
	for i, d := range shp {
		v, _ := d.IsConst()
		dims[i] = int(v)
	}
	axisLen := dims[s.Axis]
	outN := n / axisLen
	out := make([]float64, outN)
	coord := make([]int, len(dims))
	for i := 0; i < n; i++ {
		rem := i
		for a := len(dims) - 1; a >= 0; a-- {
			coord[a] = rem % dims[a]
			rem /= dims[a]
		}
		oi := 0
		for a := range dims {
			if a == s.Axis {
				continue
			}
			oi = oi*dims[a] + coord[a]
		}
		out[oi] += readElem(buf, st, i)
	}
	return []any{out}, nil
}
func (s SumReduce) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	shp := in[0].Shape()
	total := symbolic.Const(1)
	for i, d := range shp {
		if i == s.Axis {
			continue
		}
		total = total.Mul(d)
	}
	return []*symbolic.Expr{total}
}
func (SumReduce) Custom(string, any) (any, bool) { return nil, false }

// Equals reports whether s reduces the given axis, used by
// the matmul inference pass's pattern predicate.
func (s SumReduce) Equals(axis int) bool { return s.Axis == axis }

// --- device-boundary & leaf ops ---

// Function is a leaf node: either a caller-supplied input or a constant
// producer. Its value is set externally (graph builder) rather than
// computed from inputs. A non-nil Const marks it as a scalar constant
// node recognized by the subtraction/equality synthesis passes (the
// select_const pattern root).
type Function struct {
	Name  string
	Get   func() ([]float64, error)
	Const *float64
}

func (f *Function) Process([]Input) ([]any, error) {
	if f.Const != nil {
		return []any{[]float64{*f.Const}}, nil
	}
	if f.Get == nil {
		return []any{[]float64{}}, nil
	}
	v, err := f.Get()
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

// ConstValue reports the scalar constant value of o, if o is a *Function
// built as a constant producer.
func ConstValue(o Operator) (float64, bool) {
	if fn, ok := o.(*Function); ok && fn.Const != nil {
		return *fn.Const, true
	}
	return 0, false
}
func (f *Function) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	if len(in) > 0 {
		return []*symbolic.Expr{in[0].NElements()}
	}
	return []*symbolic.Expr{symbolic.Const(0)}
}
func (f *Function) Custom(key string, payload any) (any, bool) {
	if key == "recompile_shapes" {
		return nil, true
	}
	return nil, false
}

// CopyToDevice and CopyFromDevice mark the boundary between the host and
// a backend's device memory space. At the reference/host level they are
// identity passthroughs, and no backend replaces them: on the Metal path
// they stay identity nodes around the device kernels.
type CopyToDevice struct{}

func (CopyToDevice) Process(in []Input) ([]any, error) {
	buf, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	return []any{buf}, nil
}
func (CopyToDevice) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (CopyToDevice) Custom(string, any) (any, bool) { return nil, false }

type CopyFromDevice struct{}

func (CopyFromDevice) Process(in []Input) ([]any, error) {
	buf, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	return []any{buf}, nil
}
func (CopyFromDevice) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (CopyFromDevice) Custom(string, any) (any, bool) { return nil, false }

// Print is a diagnostic identity passthrough that hands its input to
// Sink; it participates in no invariant (SPEC_FULL.md §3).
type Print struct {
	Message string
	Sink    func(msg string, data []float64)
}

func (p Print) Process(in []Input) ([]any, error) {
	buf, err := materialize(in[0])
	if err != nil {
		return nil, err
	}
	if p.Sink != nil {
		p.Sink(p.Message, buf)
	}
	return []any{buf}, nil
}
func (p Print) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return elementwiseOutputSizes(in)
}
func (Print) Custom(string, any) (any, bool) { return nil, false }

// --- matmul & gather (reference implementations; backend packages
// install specialized replacements during compilation) ---

// MatMul2D computes C[m,n] = A[m,k] @ B[k,n] against row-major-logical
// inputs honoring each operand's shape tracker.
type MatMul2D struct{}

func (MatMul2D) Process(in []Input) ([]any, error) {
	aShape := in[0].Shape.Shape()
	bShape := in[1].Shape.Shape()
	m, _ := aShape[0].IsConst()
	k, _ := aShape[1].IsConst()
	k2, _ := bShape[0].IsConst()
	n, _ := bShape[1].IsConst()
	if k != k2 {
		return nil, &errkind.ShapeMismatch{Op: "MatMul2D", Expected: fmt.Sprintf("k=%d", k), Got: fmt.Sprintf("k=%d", k2)}
	}
	aBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "MatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	bBuf, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "MatMul2D", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}
	out := make([]float64, int(m)*int(n))
	for i := int64(0); i < m; i++ {
		for j := int64(0); j < n; j++ {
			var sum float64
			for p := int64(0); p < k; p++ {
				av := readElem(aBuf, in[0].Shape, int(i*k+p))
				bv := readElem(bBuf, in[1].Shape, int(p*n+j))
				sum += av * bv
			}
			out[i*n+j] = sum
		}
	}
	return []any{out}, nil
}
func (MatMul2D) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	a := in[0].Shape()
	b := in[1].Shape()
	return []*symbolic.Expr{a[0].Mul(b[1])}
}
func (MatMul2D) Custom(string, any) (any, bool) { return nil, false }

// BatchedMatMul2D iterates a leading batch axis over MatMul2D, offsetting
// the source pointer by batch_index * a_batch_stride as spec.md §4.5
// describes for the CPU matmul dispatch contract.
type BatchedMatMul2D struct{}

func (BatchedMatMul2D) Process(in []Input) ([]any, error) {
	aShape := in[0].Shape.Shape()
	bShape := in[1].Shape.Shape()
	d, _ := aShape[0].IsConst()
	m, _ := aShape[1].IsConst()
	k, _ := aShape[2].IsConst()
	n, _ := bShape[2].IsConst()
	aBuf, _ := in[0].Data.([]float64)
	bBuf, _ := in[1].Data.([]float64)
	out := make([]float64, int(d)*int(m)*int(n))
	for bIdx := int64(0); bIdx < d; bIdx++ {
		for i := int64(0); i < m; i++ {
			for j := int64(0); j < n; j++ {
				var sum float64
				for p := int64(0); p < k; p++ {
					av := readElem(aBuf, in[0].Shape, int(bIdx*m*k+i*k+p))
					bv := readElem(bBuf, in[1].Shape, int(bIdx*k*n+p*n+j))
					sum += av * bv
				}
				out[bIdx*m*n+i*n+j] = sum
			}
		}
	}
	return []any{out}, nil
}
func (BatchedMatMul2D) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	a := in[0].Shape()
	b := in[1].Shape()
	return []*symbolic.Expr{a[0].Mul(a[1]).Mul(b[2])}
}
func (BatchedMatMul2D) Custom(string, any) (any, bool) { return nil, false }

// Gather synthesizes an embedding lookup: out[i, :] = weights[indices[i], :].
type Gather struct {
	EmbedDim int
}

func (g Gather) Process(in []Input) ([]any, error) {
	idxBuf, ok := in[0].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "Gather", Expected: "[]float64", Got: fmt.Sprintf("%T", in[0].Data)}
	}
	n, err := concreteElementCount(in[0].Shape)
	if err != nil {
		return nil, err
	}
	weights, ok := in[1].Data.([]float64)
	if !ok {
		return nil, &errkind.ShapeMismatch{Op: "Gather", Expected: "[]float64", Got: fmt.Sprintf("%T", in[1].Data)}
	}
	out := make([]float64, n*g.EmbedDim)
	for i := 0; i < n; i++ {
		idx := int(readElem(idxBuf, in[0].Shape, i))
		for j := 0; j < g.EmbedDim; j++ {
			out[i*g.EmbedDim+j] = weights[idx*g.EmbedDim+j]
		}
	}
	return []any{out}, nil
}
func (g Gather) OutputBufferSizes(in []*shape.Tracker) []*symbolic.Expr {
	return []*symbolic.Expr{in[0].NElements().Mul(symbolic.Const(int64(g.EmbedDim)))}
}
func (Gather) Custom(string, any) (any, bool) { return nil, false }
