// Package backend holds the row-major staging helper shared by every
// concrete backend (pkg/backend/cpu, pkg/backend/metal). Each backend
// hands a kernel a flat buffer; staging is the step that gets a view's
// logical contents into that flat, row-major form once, up front, instead
// of paying the shape tracker's per-element IndexFor cost inside the
// kernel's hot loop.
//
// Grounded on the teacher's mps/matmul_darwin.go denseToRowMajor2DF32:
// alias the backing slice when the view is already contiguous, otherwise
// walk it once and copy into a fresh buffer.
package backend

import (
	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// Stage returns buf's logical contents as a flat row-major []float64. If
// st is already contiguous, the returned slice aliases buf directly (no
// copy). Otherwise a fresh buffer is allocated and filled by walking st's
// composed index expression one element at a time.
func Stage(buf []float64, st *shape.Tracker) []float64 {
	n, ok := st.NElements().IsConst()
	if !ok {
		return nil
	}
	if st.IsContiguous() {
		if int64(len(buf)) >= n {
			return buf[:n]
		}
	}
	out := make([]float64, n)
	for i := int64(0); i < n; i++ {
		offExpr, validExpr := st.IndexFor(symbolic.Const(i))
		valid, _ := validExpr.IsConst()
		if valid == 0 {
			continue
		}
		off, _ := offExpr.IsConst()
		out[i] = buf[off]
	}
	return out
}
