package shape

import "github.com/ember-project/ember/pkg/symbolic"

// view is one transform in a ShapeTracker's composition stack. Each view
// knows how to derive its output shape from its input shape, and how to
// map an output coordinate back to an input coordinate plus a validity
// predicate (1 = real data, 0 = out-of-range/padding).
type view interface {
	outputShape(in []*symbolic.Expr) []*symbolic.Expr
	mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) (inCoord []*symbolic.Expr, validity *symbolic.Expr)
}

type permuteView struct{ perm []int }

func (v permuteView) outputShape(in []*symbolic.Expr) []*symbolic.Expr {
	out := make([]*symbolic.Expr, len(v.perm))
	for i, p := range v.perm {
		out[i] = in[p]
	}
	return out
}

func (v permuteView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	in := make([]*symbolic.Expr, len(v.perm))
	for i, p := range v.perm {
		in[p] = outCoord[i]
	}
	return in, symbolic.Const(1)
}

type expandView struct {
	axis int
	size *symbolic.Expr
}

func (v expandView) outputShape(in []*symbolic.Expr) []*symbolic.Expr {
	out := make([]*symbolic.Expr, 0, len(in)+1)
	out = append(out, in[:v.axis]...)
	out = append(out, v.size)
	out = append(out, in[v.axis:]...)
	return out
}

func (v expandView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	in := make([]*symbolic.Expr, 0, len(outCoord)-1)
	in = append(in, outCoord[:v.axis]...)
	in = append(in, outCoord[v.axis+1:]...)
	return in, symbolic.Const(1)
}

type reshapeView struct{ newDims []*symbolic.Expr }

func (v reshapeView) outputShape(in []*symbolic.Expr) []*symbolic.Expr { return v.newDims }

func (v reshapeView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	flat := ravel(outCoord, v.newDims)
	return unravel(flat, inShape), symbolic.Const(1)
}

type sliceView struct{ ranges [][2]*symbolic.Expr } // per-axis [lo, hi)

func (v sliceView) outputShape(in []*symbolic.Expr) []*symbolic.Expr {
	out := make([]*symbolic.Expr, len(in))
	for i := range in {
		out[i] = v.ranges[i][1].Sub(v.ranges[i][0])
	}
	return out
}

func (v sliceView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	in := make([]*symbolic.Expr, len(outCoord))
	for i, c := range outCoord {
		in[i] = c.Add(v.ranges[i][0])
	}
	return in, symbolic.Const(1)
}

type padView struct{ pads [][2]*symbolic.Expr } // per-axis [before, after]

func (v padView) outputShape(in []*symbolic.Expr) []*symbolic.Expr {
	out := make([]*symbolic.Expr, len(in))
	for i := range in {
		out[i] = v.pads[i][0].Add(in[i]).Add(v.pads[i][1])
	}
	return out
}

func (v padView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	in := make([]*symbolic.Expr, len(outCoord))
	validity := symbolic.Const(1)
	for i, c := range outCoord {
		before := v.pads[i][0]
		in[i] = c.Sub(before)
		withinLow := c.Ge(before)
		withinHigh := c.Lt(before.Add(inShape[i]))
		validity = validity.Mul(withinLow).Mul(withinHigh)
	}
	return in, validity
}

type removeDimView struct{ axis int }

func (v removeDimView) outputShape(in []*symbolic.Expr) []*symbolic.Expr {
	out := make([]*symbolic.Expr, 0, len(in)-1)
	out = append(out, in[:v.axis]...)
	out = append(out, in[v.axis+1:]...)
	return out
}

func (v removeDimView) mapIndex(outCoord []*symbolic.Expr, inShape []*symbolic.Expr) ([]*symbolic.Expr, *symbolic.Expr) {
	in := make([]*symbolic.Expr, 0, len(outCoord)+1)
	in = append(in, outCoord[:v.axis]...)
	in = append(in, symbolic.Const(0))
	in = append(in, outCoord[v.axis:]...)
	return in, symbolic.Const(1)
}

// rowMajorStrides computes standard row-major strides for dims.
func rowMajorStrides(dims []*symbolic.Expr) []*symbolic.Expr {
	strides := make([]*symbolic.Expr, len(dims))
	acc := symbolic.Const(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = acc
		acc = acc.Mul(dims[i])
	}
	return strides
}

// unravel decomposes a flat row-major index into per-axis coordinates.
func unravel(idx *symbolic.Expr, dims []*symbolic.Expr) []*symbolic.Expr {
	coord := make([]*symbolic.Expr, len(dims))
	remaining := idx
	for i := len(dims) - 1; i >= 0; i-- {
		coord[i] = remaining.Mod(dims[i])
		remaining = remaining.Div(dims[i])
	}
	return coord
}

// ravel composes per-axis coordinates back into a flat row-major index.
func ravel(coord []*symbolic.Expr, dims []*symbolic.Expr) *symbolic.Expr {
	strides := rowMajorStrides(dims)
	flat := symbolic.Const(0)
	for i := range coord {
		flat = flat.Add(coord[i].Mul(strides[i]))
	}
	return flat
}

func dot(coord, strides []*symbolic.Expr) *symbolic.Expr {
	sum := symbolic.Const(0)
	for i := range coord {
		sum = sum.Add(coord[i].Mul(strides[i]))
	}
	return sum
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

func isIdentityPerm(p []int) bool {
	for i, v := range p {
		if i != v {
			return false
		}
	}
	return true
}
