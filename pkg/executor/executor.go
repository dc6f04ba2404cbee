// Package executor runs a compiled graph to completion: topological
// scheduling, per-node dynamic-dimension resolution, and buffer lifetime
// management, mirroring the teacher's synchronous dispatch-then-wait
// idiom (open a command buffer, dispatch, block until complete, move on)
// generalized from a single MPS call into one step per graph node.
package executor

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ember-project/ember/pkg/emberlog"
	"github.com/ember-project/ember/pkg/errkind"
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
	"github.com/ember-project/ember/pkg/shape"
)

// Execute runs every node of g in topological order and returns the
// output buffers of every node marked via Graph.Retrieve. No goroutines
// are spawned; the entire run is a single blocking call, matching
// SPEC_FULL.md's synchronous execution model.
func Execute(g *graph.Graph) (map[int64][]any, error) {
	sorted, err := topo.Sort(g)
	if err != nil {
		return nil, errors.Wrap(err, "executor: graph has a cycle")
	}

	env := g.Dyn.Snapshot()
	refs := make(map[int64]int, len(sorted))
	for _, n := range sorted {
		refs[n.ID()] = dataOutDegree(g, n.ID())
	}

	outputs := make(map[int64][]any, len(sorted))
	retrieved := make(map[int64][]any)
	log := emberlog.New("executor")

	for _, n := range sorted {
		id := n.ID()
		operator := g.GetOp(id)
		if operator == nil {
			continue
		}

		inputs, err := gatherInputs(g, id, outputs, env)
		if err != nil {
			return nil, err
		}

		log.Debug().Int64("node", id).Str("op", fmt.Sprintf("%T", operator)).Msg("dispatch")
		out, err := operator.Process(inputs)
		if err != nil {
			log.Error().Int64("node", id).Err(err).Msg("dispatch failed")
			return nil, errors.Wrapf(err, "executor: node %d", id)
		}
		outputs[id] = out

		if g.ToRetrieve[id] {
			retrieved[id] = out
		}

		releaseConsumedSources(g, id, refs, outputs)
	}

	for id := range g.ToRetrieve {
		if _, ok := retrieved[id]; !ok {
			return nil, &errkind.MissingRetrieval{NodeID: id}
		}
	}

	return retrieved, nil
}

// gatherInputs builds the Process input slice for id in source-slot
// order, resolving each producer's shape tracker against the graph's
// bound dynamic dimensions.
func gatherInputs(g *graph.Graph, id int64, outputs map[int64][]any, env map[byte]int64) ([]op.Input, error) {
	srcs := g.Sources(id)
	inputs := make([]op.Input, len(srcs))
	for i, s := range srcs {
		produced, ok := outputs[s.NodeID]
		if !ok || s.Slot >= len(produced) {
			return nil, fmt.Errorf("executor: node %d references unproduced output (node %d, slot %d)", id, s.NodeID, s.Slot)
		}
		resolved := s.Shape.Resolve(env)
		if _, ok := resolved.NElements().IsConst(); !ok {
			return nil, &errkind.UnboundDimension{Var: firstUnresolved(resolved, env)}
		}
		inputs[i] = op.Input{Data: produced[s.Slot], Shape: resolved}
	}
	return inputs, nil
}

// firstUnresolved returns a dimension variable from st's shape that env
// does not bind, for error reporting. Falls back to '?' if the element
// count is symbolic for some other reason (e.g. an unsimplified product).
func firstUnresolved(st *shape.Tracker, env map[byte]int64) byte {
	for _, d := range st.Shape() {
		for _, v := range d.Vars() {
			if _, ok := env[v]; !ok {
				return v
			}
		}
	}
	return '?'
}

// dataOutDegree counts id's outgoing data edges (schedule edges carry no
// buffer and never hold a reference alive).
func dataOutDegree(g *graph.Graph, id int64) int {
	n := 0
	for _, e := range g.EdgesFrom(id) {
		if !e.Schedule {
			n++
		}
	}
	return n
}

// releaseConsumedSources decrements the reference count of every source
// feeding id and frees buffers that have reached zero remaining
// consumers, unless the graph has marked them NoDelete (typically because
// they are also a retrieval target).
func releaseConsumedSources(g *graph.Graph, id int64, refs map[int64]int, outputs map[int64][]any) {
	for _, s := range g.Sources(id) {
		refs[s.NodeID]--
		if refs[s.NodeID] <= 0 && !g.NoDelete[s.NodeID] {
			delete(outputs, s.NodeID)
		}
	}
}
