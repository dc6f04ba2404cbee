// Package metal is ember's GPU backend: it compiles a textual Metal
// kernel per specialized operator (MetalSub, MetalEqual, MetalGather),
// each owning a device pipeline built once at construction, mirroring
// original_source/crates/luminal_metal/src/binary.rs's
// compile_function("mkernel", &code, &device) idiom. None of them
// handles a "recompile_shapes" query, so a pipeline keeps the shapes it
// was built for. Dispatch itself (device_darwin.go) is darwin+cgo only; everything in this file is pure
// string templating shared by both build-tag variants.
package metal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ember-project/ember/pkg/shape"
	"github.com/ember-project/ember/pkg/symbolic"
)

// idxVar is the symbolic name substituted for the kernel's thread index,
// matching the "idx" thread_position_in_grid parameter luminal_metal's
// generated kernels take.
const idxVar = 'i'

// indexExprs renders st's offset/validity expressions for logical
// element i as C-like expression text, and reports any dyn-dim symbols
// (besides the thread index itself) the expressions reference so the
// caller can render matching `device int& name` kernel parameters, the
// same job render_dyn_dim_inputs does in the original.
func indexExprs(st *shape.Tracker) (offsetExpr, validExpr string, dynSymbols []byte) {
	off, valid := st.IndexFor(symbolic.Var(idxVar))
	offsetExpr = off.String()
	validExpr = valid.String()

	seen := map[byte]bool{}
	for _, v := range off.Vars() {
		if v != idxVar {
			seen[v] = true
		}
	}
	for _, v := range valid.Vars() {
		if v != idxVar {
			seen[v] = true
		}
	}
	for v := range seen {
		dynSymbols = append(dynSymbols, v)
	}
	sort.Slice(dynSymbols, func(i, j int) bool { return dynSymbols[i] < dynSymbols[j] })
	return offsetExpr, validExpr, dynSymbols
}

// renderDynParams formats the trailing `, device int& x [[buffer(n)]]`
// parameter list for a kernel's dyn-dim symbols, continuing buffer index
// numbering from firstBuffer.
func renderDynParams(symbols []byte, firstBuffer int) string {
	var b strings.Builder
	for i, s := range symbols {
		fmt.Fprintf(&b, ", device int& %s [[buffer(%d)]]", string(s), firstBuffer+i)
	}
	return b.String()
}

// mergeDynSymbols deduplicates and sorts the union of several dyn-dim
// symbol lists, preserving a single canonical ordering across a kernel's
// operands.
func mergeDynSymbols(lists ...[]byte) []byte {
	seen := map[byte]bool{}
	for _, l := range lists {
		for _, s := range l {
			seen[s] = true
		}
	}
	out := make([]byte, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
