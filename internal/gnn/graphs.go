// Package gnn implements the graph-side (GoMLX) operators of message passing over a packed batch of graphs:
// gathering node states onto edges, pooling edge values back to nodes or graphs (optionally split by relation),
// per-edge matrix messages, and the recurrent cells used to update node states and to read out graphs.
//
// All operators work on the flat, padded layout produced by ragged's Pack* functions: index tensors hold flat node
// rows, and padding tuples point to a dummy node that belongs to a dummy graph. So padding never contributes to
// real rows, and no operator needs to know the per-graph boundaries.
//
// Like the rest of GoMLX, errors while building the graph are reported by panicking.
// Shape errors wrap ragged.ErrShapeMismatch.
package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// Graphs is the graph-side view of a packed batch.
//
// The number of rows of each tensor is the padded size of its axis. Optional fields are nil when not present in
// the batch.
type Graphs struct {
	// NumGraphs is the padded number of graphs, including the dummy graph.
	NumGraphs int

	// Nodes is the current node state, shaped [numNodes, F].
	Nodes *Node

	// NodeGraph holds the graph index of each node, shaped [numNodes] (int32).
	NodeGraph *Node

	// NodeMask and GraphMask tell which nodes and graphs are real (as opposed to padding), shaped [numNodes] and
	// [NumGraphs] (bool).
	NodeMask, GraphMask *Node

	// EdgeIndices shaped [numEdges, 2] (int32) hold the flat node rows of each edge: slot 0 is the target
	// (receiving node) and slot 1 is the source.
	EdgeIndices *Node

	// Edges features, shaped [numEdges, W]. Optional.
	Edges *Node

	// EdgeTypes holds categorical edge (bond) types, shaped [numEdges] (int32). Optional.
	EdgeTypes *Node

	// EdgeMask shaped [numEdges] (bool).
	EdgeMask *Node

	// AngleIndices shaped [numAngles, 3] (int32), with (center i, neighbor j, neighbor k). Optional.
	AngleIndices *Node

	// AngleMask shaped [numAngles] (bool). Optional.
	AngleMask *Node

	// Coordinates of the nodes, shaped [numNodes, 3]. Optional.
	Coordinates *Node

	// AtomicNumbers of the nodes, shaped [numNodes] (int32). Optional.
	AtomicNumbers *Node

	// GraphFeatures shaped [NumGraphs, S]. Optional.
	GraphFeatures *Node
}

// GraphOperator transforms a batch of graphs into another one, with the same partition.
type GraphOperator interface {
	Forward(ctx *context.Context, graphs *Graphs) *Graphs
}

// NumNodes is the padded number of nodes.
func (gs *Graphs) NumNodes() int { return gs.NodeGraph.Shape().Dim(0) }

// NumEdges is the padded number of edges.
func (gs *Graphs) NumEdges() int { return gs.EdgeIndices.Shape().Dim(0) }

// Graph returns the computation graph the tensors belong to.
func (gs *Graphs) Graph() *Graph { return gs.NodeGraph.Graph() }

// WithNodes returns a shallow copy of gs with the node state replaced.
// The new state must have one row per node.
func (gs *Graphs) WithNodes(state *Node) *Graphs {
	if state.Rank() != 2 || state.Shape().Dim(0) != gs.NumNodes() {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "new node state must be shaped [%d, F], got %s",
			gs.NumNodes(), state.Shape()))
	}
	newGS := *gs
	newGS.Nodes = state
	return &newGS
}

// MaskNodes zeroes the rows of values (shaped [numNodes, F]) of padding nodes.
func (gs *Graphs) MaskNodes(values *Node) *Node {
	return maskRows(values, gs.NodeMask)
}

// MaskGraphs zeroes the rows of values (shaped [NumGraphs, F]) of padding graphs.
func (gs *Graphs) MaskGraphs(values *Node) *Node {
	return maskRows(values, gs.GraphMask)
}

// MaskEdges zeroes the rows of values (shaped [numEdges, F]) of padding edges.
func (gs *Graphs) MaskEdges(values *Node) *Node {
	return maskRows(values, gs.EdgeMask)
}

// MaskAngles zeroes the rows of values (shaped [numAngles, F]) of padding angle triples.
func (gs *Graphs) MaskAngles(values *Node) *Node {
	return maskRows(values, gs.AngleMask)
}

func maskRows(values, mask *Node) *Node {
	if mask == nil {
		return values
	}
	mask = BroadcastToDims(ExpandAxes(mask, -1), values.Shape().Dimensions...)
	return Where(mask, values, ZerosLike(values))
}

// checkIndices panics if indices is not an integer tensor shaped [T, arity] (or [T] if arity is 0).
func checkIndices(indices *Node, arity int, name string) {
	if !indices.DType().IsInt() {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "%s must be an integer tensor, got %s", name, indices.Shape()))
	}
	if arity == 0 {
		if indices.Rank() != 1 {
			panic(errors.Wrapf(ragged.ErrShapeMismatch, "%s must be shaped [T], got %s", name, indices.Shape()))
		}
		return
	}
	if indices.Rank() != 2 || indices.Shape().Dim(1) != arity {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "%s must be shaped [T, %d], got %s", name, arity, indices.Shape()))
	}
}

// toInt32 converts indices to int32, the dtype used by the packed batch.
func toInt32(indices *Node) *Node {
	if indices.DType() == dtypes.Int32 {
		return indices
	}
	return ConvertDType(indices, dtypes.Int32)
}
