package compiler

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// DeviceLowering installs op.CopyToDevice/op.CopyFromDevice boundary
// nodes around every operator isDeviceOp accepts, so a host-resident
// producer or consumer never reads a device-resident buffer directly.
// MetalLowering calls this with a predicate that recognizes
// pkg/backend/metal's Metal-tagged kernels; CPULowering calls it with a
// predicate that accepts no operator, so it inserts nothing. Grounded on original_source's MetalCopyToDevice/
// MetalCopyFromDevice boundary idiom referenced throughout
// crates/luminal_metal/src/binary.rs.
func DeviceLowering(isDeviceOp func(op.Operator) bool) Pass {
	return PassFunc(func(g *graph.Graph) {
		for _, id := range g.NodeIDs() {
			o := g.GetOp(id)
			if o == nil || isCopyNode(o) || !isDeviceOp(o) {
				continue
			}
			insertUpstreamCopies(g, id, isDeviceOp)
			insertDownstreamCopies(g, id, isDeviceOp)
		}
	})
}

func isCopyNode(o op.Operator) bool {
	switch o.(type) {
	case op.CopyToDevice, op.CopyFromDevice:
		return true
	}
	return false
}

func insertUpstreamCopies(g *graph.Graph, id int64, isDeviceOp func(op.Operator) bool) {
	for _, e := range g.EdgesTo(id) {
		if e.Schedule {
			continue
		}
		producer := g.GetOp(e.Src)
		if producer == nil || isCopyNode(producer) || isDeviceOp(producer) {
			continue
		}
		cp := g.AddOp(op.CopyToDevice{}).Input(e.Src, e.SrcSlot, e.Shape).Finish()
		e.Src, e.SrcSlot = cp, 0
	}
}

func insertDownstreamCopies(g *graph.Graph, id int64, isDeviceOp func(op.Operator) bool) {
	for _, e := range g.EdgesFrom(id) {
		if e.Schedule {
			continue
		}
		consumer := g.GetOp(e.Dst)
		if consumer != nil && (isCopyNode(consumer) || isDeviceOp(consumer)) {
			continue
		}
		cp := g.AddOp(op.CopyFromDevice{}).Input(id, e.SrcSlot, e.Shape).Finish()
		e.Src, e.SrcSlot = cp, 0
	}
}
