package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// PoolMethod defines how values are aggregated into a target row.
type PoolMethod int

//go:generate go tool enumer -type=PoolMethod -trimprefix=Pool -transform=snake -values -text -json -yaml pool.go

const (
	// PoolSum adds all values of the target.
	PoolSum PoolMethod = iota

	// PoolMean averages the values of the target. Targets with no values are 0.
	PoolMean
)

// SegmentPool aggregates values (shaped [T, F]) into numTargets rows, according to targets (shaped [T], the
// target row of each value). The result is shaped [numTargets, F].
//
// Targets with no values are 0, for both sum and mean.
// The result doesn't depend on the order of the values.
func SegmentPool(values, targets *Node, numTargets int, method PoolMethod) *Node {
	if values.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "values to pool must be shaped [T, F], got %s", values.Shape()))
	}
	checkIndices(targets, 0, "targets")
	if targets.Shape().Dim(0) != values.Shape().Dim(0) {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "values shaped %s and targets shaped %s have different number of rows",
			values.Shape(), targets.Shape()))
	}
	g := values.Graph()
	dtype := values.DType()
	numValues, featureDim := values.Shape().Dim(0), values.Shape().Dim(1)
	indices := ExpandAxes(toInt32(targets), -1) // [T, 1]

	pooled := Zeros(g, shapes.Make(dtype, numTargets, featureDim))
	pooled = ScatterSum(pooled, indices, values, false, false)
	switch method {
	case PoolSum:
		return pooled
	case PoolMean:
		counts := Zeros(g, shapes.Make(dtype, numTargets, 1))
		counts = ScatterSum(counts, indices, Ones(g, shapes.Make(dtype, numValues, 1)), false, false)
		return Div(pooled, MaxScalar(counts, 1.0))
	default:
		panic(errors.Errorf("invalid pool method %s, valid values are %v", method, PoolMethodValues()))
	}
}

// RelationalPool aggregates values (shaped [T, F]) into numTargets rows, keeping separate channels per relation:
// relations (shaped [T]) holds the relation id of each value, in [0, numRelations).
//
// The result is shaped [numTargets, numRelations*F], where the values of relation r are aggregated into
// columns [r*F, (r+1)*F). For PoolMean, the average is taken over the values of the exact (target, relation)
// pair, and pairs with no values are 0.
func RelationalPool(values, targets, relations *Node, numTargets, numRelations int, method PoolMethod) *Node {
	checkIndices(relations, 0, "relations")
	checkIndices(targets, 0, "targets")
	if relations.Shape().Dim(0) != targets.Shape().Dim(0) {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "relations shaped %s and targets shaped %s have different number of rows",
			relations.Shape(), targets.Shape()))
	}
	if numRelations <= 0 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "numRelations must be > 0, got %d", numRelations))
	}
	combined := Add(MulScalar(toInt32(targets), numRelations), toInt32(relations))
	pooled := SegmentPool(values, combined, numTargets*numRelations, method)
	return Reshape(pooled, numTargets, numRelations*values.Shape().Dim(1))
}

// PoolEdgesToNodes aggregates per-edge values (shaped [numEdges, F]) into their target nodes.
func (gs *Graphs) PoolEdgesToNodes(values *Node, method PoolMethod) *Node {
	return SegmentPool(values, gs.Targets(), gs.NumNodes(), method)
}

// PoolNodesToGraphs aggregates per-node values (shaped [numNodes, F]) into their graphs, shaped [NumGraphs, F].
func (gs *Graphs) PoolNodesToGraphs(values *Node, method PoolMethod) *Node {
	return SegmentPool(values, gs.NodeGraph, gs.NumGraphs, method)
}
