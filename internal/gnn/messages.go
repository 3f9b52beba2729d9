package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// EdgeMatrices reshapes a per-edge transform shaped [E, W] into one matrix per edge, shaped [E, unitsOut, unitsIn].
//
// It panics with ragged.ErrShapeMismatch if W != unitsOut*unitsIn.
func EdgeMatrices(edgeTransform *Node, unitsOut, unitsIn int) *Node {
	if edgeTransform.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "edge transform must be shaped [E, W], got %s", edgeTransform.Shape()))
	}
	width := edgeTransform.Shape().Dim(1)
	if width != unitsOut*unitsIn {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "edge transform width %d doesn't factor into %d x %d matrices",
			width, unitsOut, unitsIn))
	}
	return Reshape(edgeTransform, edgeTransform.Shape().Dim(0), unitsOut, unitsIn)
}

// MatMulMessages multiplies each per-edge matrix (matrices shaped [E, unitsOut, unitsIn]) by the vector of the same
// edge (vectors shaped [E, unitsIn]), returning messages shaped [E, unitsOut].
func MatMulMessages(matrices, vectors *Node) *Node {
	if matrices.Rank() != 3 || vectors.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "matrices must be shaped [E, out, in] and vectors [E, in], got %s and %s",
			matrices.Shape(), vectors.Shape()))
	}
	if matrices.Shape().Dim(0) != vectors.Shape().Dim(0) || matrices.Shape().Dim(2) != vectors.Shape().Dim(1) {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "matrices shaped %s can't multiply vectors shaped %s",
			matrices.Shape(), vectors.Shape()))
	}
	return Einsum("eoi,ei->eo", matrices, vectors)
}
