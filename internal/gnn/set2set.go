package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/lstm"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// Set2Set is an attention based readout of the node states of each graph (Vinyals et al., "Order Matters:
// Sequence to sequence for sets", 2015).
//
// For a number of steps, an LSTM produces a query q per graph from the previous readout; each node
// gets an attention weight softmax(<x_i, q>) within its graph, and the readout is the attention weighted pool
// of the node states concatenated with q.
type Set2Set struct {
	ctx      *context.Context
	channels int
	steps    int
	method   PoolMethod
}

// NewSet2Set creates a Set2Set readout for node states with the given number of channels (the node state width).
// Defaults to 3 steps, and pooling with PoolSum.
func NewSet2Set(ctx *context.Context, channels int) *Set2Set {
	return &Set2Set{ctx: ctx, channels: channels, steps: 3, method: PoolSum}
}

// Steps configures the number of attention steps.
func (s *Set2Set) Steps(steps int) *Set2Set {
	s.steps = steps
	return s
}

// PoolingMethod configures how the attention weighted node states are aggregated.
func (s *Set2Set) PoolingMethod(method PoolMethod) *Set2Set {
	s.method = method
	return s
}

// Done applies the readout to values (shaped [numNodes, channels]), returning [graphs.NumGraphs, 2*channels].
func (s *Set2Set) Done(graphs *Graphs, values *Node) *Node {
	if values.Rank() != 2 || values.Shape().Dim(1) != s.channels || values.Shape().Dim(0) != graphs.NumNodes() {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "Set2Set with %d channels got node values shaped %s (%d nodes)",
			s.channels, values.Shape(), graphs.NumNodes()))
	}
	if s.steps <= 0 {
		panic(errors.Errorf("Set2Set requires at least one step, got %d", s.steps))
	}
	// The LSTM is applied once per step, reusing its variables.
	lstmCtx := s.ctx.In("lstm").Checked(false)
	g := values.Graph()
	dtype := values.DType()
	numGraphs, channels := graphs.NumGraphs, s.channels

	qStar := Zeros(g, shapes.Make(dtype, numGraphs, 2*channels))
	hidden := Zeros(g, shapes.Make(dtype, 1, numGraphs, channels)) // [numDirections=1, numGraphs, channels]
	cell := hidden
	for range s.steps {
		x := Reshape(qStar, numGraphs, 1, 2*channels) // Sequence of length 1.
		_, hidden, cell = lstm.New(lstmCtx, x, channels).InitialStates(hidden, cell).Done()
		query := Reshape(hidden, numGraphs, channels)

		// Attention of each node to the query of its graph.
		nodeQuery := Gather(query, ExpandAxes(toInt32(graphs.NodeGraph), -1)) // [numNodes, channels]
		logits := ReduceSum(Mul(values, nodeQuery), 1)
		attention := SegmentSoftmax(logits, graphs.NodeGraph, graphs.NodeMask, numGraphs)
		readout := graphs.PoolNodesToGraphs(Mul(values, ExpandAxes(attention, -1)), s.method)
		qStar = Concatenate([]*Node{query, readout}, 1)
	}
	return qStar
}
