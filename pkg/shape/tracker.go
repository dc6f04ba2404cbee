// Package shape implements the view-composition shape tracker: an ordered
// stack of permute/expand/reshape/slice/pad transforms over a logical
// shape that never copies the underlying storage, plus the index/validity
// expressions a kernel needs to read through it.
package shape

import (
	"fmt"

	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/symbolic"
)

// Dim is a single logical dimension: either a known constant or a
// symbolic dimension variable, expressed uniformly as a symbolic.Expr.
type Dim = *symbolic.Expr

// Const builds a constant Dim.
func Const(n int64) Dim { return symbolic.Const(n) }

// Var builds a symbolic dimension variable Dim.
func Var(name byte) Dim { return symbolic.Var(name) }

// Tracker composes permute/expand/reshape/slice/pad transforms over an
// underlying storage shape without copying data.
type Tracker struct {
	dims  []Dim
	views []view

	sliced   bool
	padded   bool
	permuted bool
}

// New creates a Tracker over a freshly allocated, contiguous logical
// shape dims.
func New(dims ...Dim) *Tracker {
	return &Tracker{dims: append([]Dim(nil), dims...)}
}

// Dims returns the original backing dims (the shape of the underlying
// storage this tracker indexes into).
func (t *Tracker) Dims() []Dim { return append([]Dim(nil), t.dims...) }

// shapeChain returns, for k in [0, len(views)], the public shape after
// applying views[:k].
func (t *Tracker) shapeChain() [][]Dim {
	chain := make([][]Dim, len(t.views)+1)
	chain[0] = t.dims
	cur := t.dims
	for i, v := range t.views {
		cur = v.outputShape(cur)
		chain[i+1] = cur
	}
	return chain
}

// Shape returns the current public (logical) shape.
func (t *Tracker) Shape() []Dim {
	chain := t.shapeChain()
	return chain[len(chain)-1]
}

// Rank returns the number of axes in the current public shape.
func (t *Tracker) Rank() int { return len(t.Shape()) }

// NElements returns the product of the current public dims.
func (t *Tracker) NElements() Dim {
	shape := t.Shape()
	n := symbolic.Const(1)
	for _, d := range shape {
		n = n.Mul(d)
	}
	return n
}

// IsContiguous reports whether the composed index is the identity, i.e.
// no permute (other than identity), slice, or pad has been applied.
func (t *Tracker) IsContiguous() bool {
	return !t.sliced && !t.padded && !t.permuted
}

// IsSliced reports whether any slice view with nonzero trim is present.
func (t *Tracker) IsSliced() bool { return t.sliced }

// IsPadded reports whether any pad view with nonzero amount is present.
func (t *Tracker) IsPadded() bool { return t.padded }

// Clone returns a deep-enough copy that further mutation of either
// tracker does not affect the other's view stack.
func (t *Tracker) Clone() *Tracker {
	c := &Tracker{
		dims:     append([]Dim(nil), t.dims...),
		views:    append([]view(nil), t.views...),
		sliced:   t.sliced,
		padded:   t.padded,
		permuted: t.permuted,
	}
	return c
}

// Permute composes a permutation of the current public axes: axis i of
// the result is axis perm[i] of the input.
func (t *Tracker) Permute(perm []int) *Tracker {
	c := t.Clone()
	c.views = append(c.views, permuteView{perm: append([]int(nil), perm...)})
	if !isIdentityPerm(perm) {
		c.permuted = true
	}
	return c
}

// Expand inserts a fake axis of the given size (stride zero, no storage
// growth) at position axis.
func (t *Tracker) Expand(axis int, size Dim) *Tracker {
	c := t.Clone()
	c.views = append(c.views, expandView{axis: axis, size: size})
	return c
}

// Reshape installs a new logical shape with the same element count. Only
// legal when the current composition is contiguous; returns
// errkind.ReshapeOnNonContiguous otherwise.
func (t *Tracker) Reshape(newDims []Dim) (*Tracker, error) {
	if !t.IsContiguous() {
		return nil, &errkind.ReshapeOnNonContiguous{
			From: dimStrings(t.Shape()),
			To:   dimStrings(newDims),
		}
	}
	c := t.Clone()
	c.views = append(c.views, reshapeView{newDims: append([]Dim(nil), newDims...)})
	return c, nil
}

// Slice restricts each axis to [lo, hi). Requires 0 <= lo <= hi <= axis
// size for every axis; that is the caller's responsibility to establish
// (typically enforced by the graph builder against concrete or bound
// symbolic sizes).
func (t *Tracker) Slice(ranges [][2]Dim) *Tracker {
	c := t.Clone()
	shape := t.Shape()
	rs := append([][2]Dim(nil), ranges...)
	c.views = append(c.views, sliceView{ranges: rs})
	for i, r := range rs {
		if lo, ok := r[0].IsConst(); ok && lo == 0 {
			if hi, ok2 := r[1].IsConst(); ok2 {
				if sz, ok3 := shape[i].IsConst(); ok3 && hi == sz {
					continue
				}
			}
		}
		c.sliced = true
	}
	return c
}

// Pad adds before/after padding to each axis.
func (t *Tracker) Pad(amounts [][2]Dim) *Tracker {
	c := t.Clone()
	ps := append([][2]Dim(nil), amounts...)
	c.views = append(c.views, padView{pads: ps})
	for _, p := range ps {
		if b, ok := p[0].IsConst(); ok && b == 0 {
			if a, ok2 := p[1].IsConst(); ok2 && a == 0 {
				continue
			}
		}
		c.padded = true
	}
	return c
}

// RemoveDim drops a size-1 (or fake) axis entirely, used by the matmul
// compiler to undo an Expand before installing a specialized kernel.
func (t *Tracker) RemoveDim(axis int) *Tracker {
	c := t.Clone()
	c.views = append(c.views, removeDimView{axis: axis})
	return c
}

// IndexFor composes the view stack right-to-left and returns the storage
// offset expression and the 0/1 validity expression for logical index
// idx (itself a symbolic expression — a concrete symbolic.Const for
// invariant checks, or a free loop variable for kernel code generation).
func (t *Tracker) IndexFor(idx Dim) (offset Dim, validity Dim) {
	chain := t.shapeChain()
	finalShape := chain[len(chain)-1]
	coord := unravel(idx, finalShape)
	validity = symbolic.Const(1)
	for k := len(t.views) - 1; k >= 0; k-- {
		inShape := chain[k]
		var v Dim
		coord, v = t.views[k].mapIndex(coord, inShape)
		validity = validity.Mul(v)
	}
	strides := rowMajorStrides(t.dims)
	offset = dot(coord, strides)
	return offset, validity
}

// Resolve substitutes every free dimension variable in dims and every
// view's parameters using env, returning a fully concrete tracker. Used
// immediately before dispatch once the dyn dim map for this execution is
// known.
func (t *Tracker) Resolve(env map[byte]int64) *Tracker {
	c := &Tracker{sliced: t.sliced, padded: t.padded, permuted: t.permuted}
	c.dims = substDims(t.dims, env)
	c.views = make([]view, len(t.views))
	for i, v := range t.views {
		c.views[i] = substView(v, env)
	}
	return c
}

// ResolveGlobalDynDims substitutes every free dimension variable using env
// and flattens the result to a plain []int64 shape, panicking only if env
// leaves a variable unbound (callers use this for logging/debugging once a
// session's dyn dim map is fully known, never on the dispatch path — that
// path goes through Resolve and handles an unbound variable as
// errkind.UnboundDimension instead).
func (t *Tracker) ResolveGlobalDynDims(env map[byte]int64) []int64 {
	resolved := t.Resolve(env)
	out := make([]int64, len(resolved.Shape()))
	for i, d := range resolved.Shape() {
		v, ok := d.IsConst()
		if !ok {
			panic("shape: ResolveGlobalDynDims called with an incomplete dyn dim map")
		}
		out[i] = v
	}
	return out
}

func substDims(dims []Dim, env map[byte]int64) []Dim {
	out := make([]Dim, len(dims))
	for i, d := range dims {
		out[i] = d.Substitute(env)
	}
	return out
}

func substView(v view, env map[byte]int64) view {
	switch x := v.(type) {
	case permuteView:
		return x
	case expandView:
		return expandView{axis: x.axis, size: x.size.Substitute(env)}
	case reshapeView:
		return reshapeView{newDims: substDims(x.newDims, env)}
	case sliceView:
		rs := make([][2]Dim, len(x.ranges))
		for i, r := range x.ranges {
			rs[i] = [2]Dim{r[0].Substitute(env), r[1].Substitute(env)}
		}
		return sliceView{ranges: rs}
	case padView:
		ps := make([][2]Dim, len(x.pads))
		for i, p := range x.pads {
			ps[i] = [2]Dim{p[0].Substitute(env), p[1].Substitute(env)}
		}
		return padView{pads: ps}
	case removeDimView:
		return x
	default:
		return v
	}
}

func dimStrings(dims []Dim) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = fmt.Sprint(d)
	}
	return out
}
