package nmpn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Step is one message passing iteration: it implements gnn.GraphOperator.
//
// The edge matrices are fixed for all iterations, and the update weights are shared: the context given to
// Forward must be unchecked, so that the same variables can be reused.
type Step struct {
	// Matrices holds one [units, units] matrix per edge, shaped [numEdges, units, units].
	Matrices *Node

	// Pooling of the messages into the target nodes.
	Pooling gnn.PoolMethod

	// Update of the node states.
	Update UpdateType
}

var _ gnn.GraphOperator = (*Step)(nil)

// Forward implements gnn.GraphOperator. The returned graphs have the node states updated.
func (s *Step) Forward(ctx *context.Context, graphs *gnn.Graphs) *gnn.Graphs {
	units := s.Matrices.Shape().Dim(1)
	messages := gnn.MatMulMessages(s.Matrices, graphs.GatherSource(graphs.Nodes))
	updates := graphs.PoolEdgesToNodes(graphs.MaskEdges(messages), s.Pooling)

	var state *Node
	switch s.Update {
	case UpdateGRU:
		state = gnn.NewGRU(ctx.In("gru"), units).Done(graphs.Nodes, updates)
	case UpdateResidual:
		state = Add(graphs.Nodes, updates)
	default:
		panic(errors.Errorf("invalid update type %s, valid values are %v", s.Update, UpdateTypeValues()))
	}
	return graphs.WithNodes(graphs.MaskNodes(state))
}

// EdgeNetwork computes the per-edge matrices from the edge inputs (features and embedded types): a dense layer to node_dim², followed by
// the edge activation, reshaped to [numEdges, node_dim, node_dim].
func EdgeNetwork(ctx *context.Context, cfg Config, graphs *gnn.Graphs) *Node {
	transform := layers.Dense(ctx.In("edge_network"), edgeInputs(ctx, cfg, graphs), true, cfg.NodeDim*cfg.NodeDim)
	transform = activations.Apply(cfg.EdgeActivation, transform)
	return gnn.EdgeMatrices(transform, cfg.NodeDim, cfg.NodeDim)
}

// MessagePassing runs exactly cfg.Depth sequential iterations of Step over the graphs.
// The node states must already be embedded to cfg.NodeDim, see EmbedNodes.
func MessagePassing(ctx *context.Context, cfg Config, graphs *gnn.Graphs) *gnn.Graphs {
	klog.V(1).Infof("nmpn: building message passing with depth=%d, node_dim=%d, update=%s, pooling=%s, %d nodes and %d edges (padded)",
		cfg.Depth, cfg.NodeDim, cfg.Update, cfg.Pooling, graphs.NumNodes(), graphs.NumEdges())
	step := &Step{
		Matrices: EdgeNetwork(ctx, cfg, graphs),
		Pooling:  cfg.Pooling,
		Update:   cfg.Update,
	}
	stepCtx := ctx.In("step")
	for range cfg.Depth {
		graphs = step.Forward(stepCtx, graphs)
	}
	return graphs
}
