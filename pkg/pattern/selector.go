// Package pattern implements the selector DSL and deterministic matcher
// used by pkg/compiler's rewrite passes to find operator subgraphs: a
// node-type constraint, optional per-input shape/fake-axis constraints, an
// optional predicate on the operator, and child selectors connected via
// data edges.
package pattern

import (
	"sort"

	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/symbolic"
)

// Selector describes one node in a pattern and, via Edge, the consumer
// selectors its matched node must feed.
type Selector struct {
	typeCheck func(op.Operator) bool
	check     func(g *graph.Graph, id int64) bool
	capture   *int64
	next      []*Selector
	shapeAxes [][]byte // one entry per expected input slot; nil = unconstrained
	fakeAxes  [][]*bool
}

// New starts a new, unconstrained selector.
func New() *Selector { return &Selector{} }

// OfType returns a type predicate usable with Selector.Type, matching any
// operator whose concrete type is exactly T.
func OfType[T op.Operator]() func(op.Operator) bool {
	return func(o op.Operator) bool {
		_, ok := o.(T)
		return ok
	}
}

// Type constrains the selector to operators matching fn.
func (s *Selector) Type(fn func(op.Operator) bool) *Selector {
	s.typeCheck = fn
	return s
}

// Check attaches an arbitrary predicate over the candidate node and its
// owning graph — the escape hatch for constraints the declarative shape
// DSL doesn't express (e.g. cross-input fan-out or value checks).
func (s *Selector) Check(fn func(g *graph.Graph, id int64) bool) *Selector {
	s.check = fn
	return s
}

// Ptr binds the matched node id into dst on a successful match.
func (s *Selector) Ptr(dst *int64) *Selector {
	s.capture = dst
	return s
}

// Edge declares that this selector's matched node must have a data edge
// into a node matching next. Calling Edge more than once requires the
// matched node to feed all of the given child selectors (at distinct
// consumers).
func (s *Selector) Edge(next *Selector) *Selector {
	s.next = append(s.next, next)
	return s
}

// Shapes constrains each input slot's shape tracker to the given
// symbolic axis-name pattern: the same letter appearing at different
// positions (same or different input slots) must resolve to dimensions
// the matcher proves Equivalent via pkg/symbolic.
func (s *Selector) Shapes(axes [][]byte) *Selector {
	s.shapeAxes = axes
	return s
}

// Fakes constrains each input slot's fake-axis bitmap; a nil entry for an
// axis means "don't care".
func (s *Selector) Fakes(fakes [][]*bool) *Selector {
	s.fakeAxes = fakes
	return s
}

// Matcher iterates matches of a Selector chain against a Graph in
// deterministic topological (insertion) order.
type Matcher struct {
	g       *graph.Graph
	root    *Selector
	roots   []int64
	idx     int
	matched map[int64]bool
}

// Search builds a Matcher over g rooted at s.
func (s *Selector) Search(g *graph.Graph) *Matcher {
	return &Matcher{g: g, root: s, matched: map[int64]bool{}}
}

// ClearCachedResults forgets which root candidates have already produced
// a match, so a pass that just mutated the graph can retry from the
// beginning without re-matching nodes it has already consumed and
// removed (which simply no longer exist and are skipped automatically).
func (m *Matcher) ClearCachedResults() {
	m.idx = 0
	m.roots = nil
	m.matched = map[int64]bool{}
}

func (m *Matcher) candidateRoots() []int64 {
	ids := m.g.NodeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextMatch advances to the next match, in topological order, skipping
// nodes already consumed by an earlier successful match in this search
// (until ClearCachedResults is called). Returns false once exhausted.
func (m *Matcher) NextMatch() bool {
	if m.roots == nil {
		m.roots = m.candidateRoots()
	}
	for m.idx < len(m.roots) {
		id := m.roots[m.idx]
		m.idx++
		if m.matched[id] {
			continue
		}
		if m.g.GetNode(id) == nil {
			continue
		}
		bindings := map[*Selector]int64{}
		if matchChain(m.g, id, m.root, bindings) {
			for sel, nodeID := range bindings {
				if sel.capture != nil {
					*sel.capture = nodeID
				}
			}
			m.matched[id] = true
			return true
		}
	}
	return false
}

func matchChain(g *graph.Graph, id int64, sel *Selector, bindings map[*Selector]int64) bool {
	node := g.GetNode(id)
	if node == nil {
		return false
	}
	if sel.typeCheck != nil && !sel.typeCheck(node.Op) {
		return false
	}
	if sel.check != nil && !sel.check(g, id) {
		return false
	}
	if sel.shapeAxes != nil && !matchShapes(g, id, sel) {
		return false
	}
	bindings[sel] = id

	if len(sel.next) == 0 {
		return true
	}
	dests := g.Dests(id)
	return assignChildren(g, dests, sel.next, bindings)
}

// assignChildren tries every injective assignment of children selectors
// to distinct consumer node ids (fan-out is always small in practice, so
// brute-force backtracking is fine).
func assignChildren(g *graph.Graph, dests []int64, children []*Selector, bindings map[*Selector]int64) bool {
	if len(children) == 0 {
		return true
	}
	child := children[0]
	rest := children[1:]
	for i, d := range dests {
		trial := map[*Selector]int64{}
		for k, v := range bindings {
			trial[k] = v
		}
		if matchChain(g, d, child, trial) {
			remaining := append(append([]int64{}, dests[:i]...), dests[i+1:]...)
			if assignChildren(g, remaining, rest, trial) {
				for k, v := range trial {
					bindings[k] = v
				}
				return true
			}
		}
	}
	return false
}

func matchShapes(g *graph.Graph, id int64, sel *Selector) bool {
	srcs := g.Sources(id)
	if len(srcs) < len(sel.shapeAxes) {
		return false
	}
	env := map[byte]*symbolic.Expr{}
	for slot, axes := range sel.shapeAxes {
		shp := srcs[slot].Shape.Shape()
		if len(shp) != len(axes) {
			return false
		}
		for axis, letter := range axes {
			d := shp[axis]
			if prev, ok := env[letter]; ok {
				if !prev.Equivalent(d) {
					return false
				}
			} else {
				env[letter] = d
			}
			if sel.fakeAxes != nil && slot < len(sel.fakeAxes) && axis < len(sel.fakeAxes[slot]) {
				want := sel.fakeAxes[slot][axis]
				if want != nil {
					got := false
					if axis < len(srcs[slot].Fakes) {
						got = srcs[slot].Fakes[axis]
					}
					if got != *want {
						return false
					}
				}
			}
		}
	}
	return true
}
