// Package graph implements the directed multigraph of operator nodes:
// typed data edges carrying (output slot, input slot, shape tracker, fake
// axes), schedule edges carrying ordering only, and the auxiliary
// no_delete/to_retrieve sets and dyn dim map described in SPEC_FULL.md §3.
package graph

import (
	"sort"
	"sync"

	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

// Edge is one data or schedule edge. Data edges carry a shape tracker and
// fake-axis bitmap; schedule edges carry neither and only impose
// ordering. Edges with identical (Src,Dst) endpoints are disambiguated by
// DstSlot.
type Edge struct {
	id       int64
	Src, Dst int64
	SrcSlot  int
	DstSlot  int
	Shape    *shape.Tracker
	Fakes    []bool
	Schedule bool
}

func (e *Edge) ID() int64 { return e.id }

// Graph is exclusively owned by one builder/executor session; per
// SPEC_FULL.md §5 no locking is required for the node/edge tables
// themselves during a session, but the id remap table and dyn map guard
// against the logging/inspection goroutines a caller might run alongside
// the single-threaded compile/execute path.
type Graph struct {
	mu         sync.Mutex
	nodes      map[int64]*Node
	order      []int64
	edges      map[int64]*Edge
	nextNodeID int64
	nextEdgeID int64

	NoDelete   map[int64]bool
	ToRetrieve map[int64]bool
	Dyn        *DynMap
}

// New constructs an empty graph with a fresh dynamic dimension map.
func New() *Graph {
	return &Graph{
		nodes:      make(map[int64]*Node),
		edges:      make(map[int64]*Edge),
		NoDelete:   make(map[int64]bool),
		ToRetrieve: make(map[int64]bool),
		Dyn:        NewDynMap(),
	}
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// NodeIDs returns live node ids in insertion order.
func (g *Graph) NodeIDs() []int64 {
	out := make([]int64, 0, len(g.order))
	for _, id := range g.order {
		if _, ok := g.nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// GetNode returns the node for id, or nil if absent.
func (g *Graph) GetNode(id int64) *Node { return g.nodes[id] }

// GetOp returns the operator payload for id, or nil if absent.
func (g *Graph) GetOp(id int64) op.Operator {
	if n := g.nodes[id]; n != nil {
		return n.Op
	}
	return nil
}

// SetNodeName attaches a diagnostic-only display name to id.
func (g *Graph) SetNodeName(id int64, name string) {
	if n := g.nodes[id]; n != nil {
		n.Name = name
	}
}

// DebugPrint splices an op.Print identity node between id and its
// existing consumers, logging id's materialized buffer through sink
// every time the executor reaches it. Pure diagnostics: it carries no
// invariant and is safe to insert or omit without changing a graph's
// result, other than the Print node also being marked no_delete when id
// is (all of id's former consumers now read through it).
func (g *Graph) DebugPrint(id int64, msg string, sink func(msg string, data []float64)) int64 {
	existing := g.EdgesFrom(id)
	var st *shape.Tracker
	var fakes []bool
	if len(existing) > 0 {
		st, fakes = existing[0].Shape, existing[0].Fakes
	} else {
		st = shape.New()
	}

	printID := g.AddOp(op.Print{Message: msg, Sink: sink}).
		InputFakes(id, 0, st, fakes).
		Finish()
	for _, e := range existing {
		e.Src = printID
	}

	if g.NoDelete[id] {
		g.NoDelete[printID] = true
	}
	return printID
}

// Builder fluently attaches inputs to a freshly added node, mirroring the
// teacher corpus's `graph.add_op(...).input(...).finish()` idiom.
type Builder struct {
	g      *Graph
	id     int64
	inputs []pendingInput
}

type pendingInput struct {
	src     int64
	srcSlot int
	slot    int
	shape   *shape.Tracker
	fakes   []bool
}

// AddOp registers a new node carrying operator and returns a Builder to
// attach its inputs.
func (g *Graph) AddOp(operator op.Operator) *Builder {
	g.mu.Lock()
	id := g.nextNodeID
	g.nextNodeID++
	g.mu.Unlock()

	g.nodes[id] = &Node{id: id, Op: operator}
	g.order = append(g.order, id)
	return &Builder{g: g, id: id}
}

// Input attaches a data edge from (src, srcSlot) into the next input slot
// of the node under construction, carrying st and (optionally) a fake-axis
// bitmap.
func (b *Builder) Input(src int64, srcSlot int, st *shape.Tracker) *Builder {
	return b.InputFakes(src, srcSlot, st, nil)
}

// InputFakes is Input with an explicit fake-axis bitmap.
func (b *Builder) InputFakes(src int64, srcSlot int, st *shape.Tracker, fakes []bool) *Builder {
	slot := len(b.inputs)
	b.inputs = append(b.inputs, pendingInput{src: src, srcSlot: srcSlot, slot: slot, shape: st, fakes: fakes})
	return b
}

// Finish commits the node's input edges and returns its id.
func (b *Builder) Finish() int64 {
	for _, in := range b.inputs {
		b.g.addEdge(in.src, b.id, in.srcSlot, in.slot, in.shape, in.fakes, false)
	}
	return b.id
}

func (g *Graph) addEdge(src, dst int64, srcSlot, dstSlot int, st *shape.Tracker, fakes []bool, schedule bool) int64 {
	g.mu.Lock()
	id := g.nextEdgeID
	g.nextEdgeID++
	g.mu.Unlock()
	g.edges[id] = &Edge{id: id, Src: src, Dst: dst, SrcSlot: srcSlot, DstSlot: dstSlot, Shape: st, Fakes: fakes, Schedule: schedule}
	return id
}

// AddScheduleEdge imposes ordering from src to dst without data transfer.
func (g *Graph) AddScheduleEdge(src, dst int64) int64 {
	return g.addEdge(src, dst, 0, 0, nil, nil, true)
}

// AddInputEdge attaches a new data edge directly (used by compilers that
// build replacement nodes outside the Builder fluent path).
func (g *Graph) AddInputEdge(src, dst int64, srcSlot, dstSlot int, st *shape.Tracker, fakes []bool) int64 {
	return g.addEdge(src, dst, srcSlot, dstSlot, st, fakes, false)
}

// EdgesFrom returns all edges whose Src is id.
func (g *Graph) EdgesFrom(id int64) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Src == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// EdgesTo returns all edges whose Dst is id.
func (g *Graph) EdgesTo(id int64) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Dst == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Sources returns the data-edge producers feeding id's inputs, ordered by
// destination slot index — the Go equivalent of the teacher corpus's
// `graph.get_sources(node)`.
func (g *Graph) Sources(id int64) []Source {
	var out []Source
	for _, e := range g.edges {
		if e.Dst == id && !e.Schedule {
			out = append(out, Source{NodeID: e.Src, Slot: e.SrcSlot, Shape: e.Shape, Fakes: e.Fakes})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := g.edgeBetween(out[i], id), g.edgeBetween(out[j], id)
		return ei.DstSlot < ej.DstSlot
	})
	return out
}

func (g *Graph) edgeBetween(s Source, dst int64) *Edge {
	for _, e := range g.edges {
		if e.Src == s.NodeID && e.Dst == dst && e.SrcSlot == s.Slot && !e.Schedule {
			return e
		}
	}
	return &Edge{}
}

// Dests returns the distinct downstream node ids consuming id's outputs
// via data edges.
func (g *Graph) Dests(id int64) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, e := range g.edges {
		if e.Src == id && !e.Schedule && !seen[e.Dst] {
			seen[e.Dst] = true
			out = append(out, e.Dst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MoveOutgoingEdge redirects every edge whose Src is old to originate from
// new instead, preserving slot indices.
func (g *Graph) MoveOutgoingEdge(old, new int64) {
	for _, e := range g.edges {
		if e.Src == old {
			e.Src = new
		}
	}
}

// MoveIncomingEdge redirects every edge whose Dst is old to terminate at
// new instead, preserving slot indices.
func (g *Graph) MoveIncomingEdge(old, new int64) {
	for _, e := range g.edges {
		if e.Dst == old {
			e.Dst = new
		}
	}
}

// RemoveNode unconditionally deletes a node and every edge touching it.
// Callers must already have established the node is dead (e.g. the old
// terminal of a fused replacement); use SafeRemoveNode for the
// remove-if-unreferenced idiom.
func (g *Graph) RemoveNode(id int64) {
	delete(g.nodes, id)
	for eid, e := range g.edges {
		if e.Src == id || e.Dst == id {
			delete(g.edges, eid)
		}
	}
	delete(g.NoDelete, id)
	delete(g.ToRetrieve, id)
}

// SafeRemoveNode implements the resolved open question from SPEC_FULL.md
// §9: remove id only if it now has at most minFanout data-edge consumers;
// otherwise retain it untouched. minFanout is the number of outgoing data
// edges at or below which id is considered unreferenced (ordinarily 0, passed
// explicitly so callers that intentionally leave one edge in place, e.g.
// mid-redirect, can express that).
func (g *Graph) SafeRemoveNode(id int64, minFanout int) {
	if len(g.Dests(id)) <= minFanout {
		g.RemoveNode(id)
	}
}

// CheckNoDelete reports whether any of ids is protected from removal.
func (g *Graph) CheckNoDelete(ids []int64) bool {
	for _, id := range ids {
		if g.NoDelete[id] {
			return true
		}
	}
	return false
}

// MoveReferences migrates no_delete/to_retrieve membership and the id
// remap table when a compiler replaces old with replacement.
func (g *Graph) MoveReferences(remap *IDRemap, old, replacement int64) {
	if g.NoDelete[old] {
		delete(g.NoDelete, old)
		g.NoDelete[replacement] = true
	}
	if g.ToRetrieve[old] {
		delete(g.ToRetrieve, old)
		g.ToRetrieve[replacement] = true
	}
	if remap != nil {
		remap.Set(old, replacement)
	}
}

// Retrieve marks id to survive execution for caller inspection.
func (g *Graph) Retrieve(id int64) {
	g.NoDelete[id] = true
	g.ToRetrieve[id] = true
}

// RetrievedIDs returns the ids currently marked for retrieval, in
// ascending order; an id stays listed even if its node has been removed
// behind the retrieval mark. A rewrite pass that replaces a retrieved node migrates
// its entry to the replacement's (necessarily different) id via
// MoveReferences, so a caller that built a graph before compiling must
// resolve the post-compile retrieval target through this method rather
// than holding on to the id a builder call returned pre-compile.
func (g *Graph) RetrievedIDs() []int64 {
	out := make([]int64, 0, len(g.ToRetrieve))
	for id := range g.ToRetrieve {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DropRetrieved unmarks id; it may now be collected once no data-edge
// consumer remains.
func (g *Graph) DropRetrieved(id int64) {
	delete(g.ToRetrieve, id)
	delete(g.NoDelete, id)
}
