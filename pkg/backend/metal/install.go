package metal

import (
	"github.com/ember-project/ember/pkg/graph"
	"github.com/ember-project/ember/pkg/op"
)

// Install walks g and replaces every reference op.Sub, op.Equal, and
// op.Gather node with its Metal-specialized counterpart compiled against
// dev, mirroring how original_source's MetalSubtractionCompiler/
// MetalEqualCompiler/MetalGatherCompiler each open one Device/
// CommandQueue pair and hand it to every kernel they install. Run after
// pkg/compiler's rewrite passes and before MetalLowering, so the boundary
// pass sees these nodes answering Custom("metal", nil) and wraps them in
// CopyToDevice/CopyFromDevice.
func Install(g *graph.Graph, dev *Device) error {
	for _, id := range g.NodeIDs() {
		node := g.GetNode(id)
		switch node.Op.(type) {
		case op.Sub:
			srcs := g.Sources(id)
			k, err := NewMetalSub(dev, srcs[0].Shape, srcs[1].Shape)
			if err != nil {
				return err
			}
			node.Op = k
		case op.Equal:
			srcs := g.Sources(id)
			k, err := NewMetalEqual(dev, srcs[0].Shape, srcs[1].Shape)
			if err != nil {
				return err
			}
			node.Op = k
		case op.Gather:
			gOp := node.Op.(op.Gather)
			k, err := NewMetalGather(dev, gOp.EmbedDim)
			if err != nil {
				return err
			}
			node.Op = k
		}
	}
	return nil
}
