package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// SegmentSoftmax takes logits shaped [N] and the segment of each logit (segments shaped [N], in
// [0, numSegments)) and returns the softmax of the logits within each segment:
//
//	softmax[i] = exp(logits[i]) / sum_{j: segments[j] = segments[i]} exp(logits[j])
//
// If mask is not nil (bool, shaped [N]), masked out logits are treated as -inf: they get probability 0 and
// don't take part in the normalization.
func SegmentSoftmax(logits, segments, mask *Node, numSegments int) *Node {
	if !logits.DType().IsFloat() || logits.Rank() != 1 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "logits must be a float vector, got %s", logits.Shape()))
	}
	checkIndices(segments, 0, "segments")
	n := logits.Shape().Dim(0)
	if segments.Shape().Dim(0) != n {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "logits shaped %s and segments shaped %s differ",
			logits.Shape(), segments.Shape()))
	}

	g := logits.Graph()
	dtype := logits.DType()
	zero := ScalarZero(g, dtype)
	one := ScalarOne(g, dtype)
	lowest := Const(g, dtype.LowestValue())
	indices := ExpandAxes(toInt32(segments), -1)

	// Subtract the max of each segment: it doesn't change the result, but it avoids overflows and underflows.
	// Empty (or fully masked) segments have a max of -inf, replaced by 0.
	if mask != nil {
		logits = Where(mask, logits, ZerosLike(logits))
	}
	maskedLogits := logits
	if mask != nil {
		maskedLogits = Where(mask, logits, BroadcastToDims(lowest, n))
	}
	normalizingMax := BroadcastToDims(lowest, numSegments)
	normalizingMax = ScatterMax(normalizingMax, indices, maskedLogits, false, false)
	normalizingMax = Where(IsFinite(normalizingMax), normalizingMax, ZerosLike(normalizingMax))
	normalizingMax = StopGradient(Gather(normalizingMax, indices))
	expLogits := Exp(Sub(logits, normalizingMax))
	if mask != nil {
		expLogits = Where(mask, expLogits, zero)
	}

	sumExp := Zeros(g, shapes.Make(dtype, numSegments))
	sumExp = ScatterSum(sumExp, indices, expLogits, false, false)
	sumExp = Where(Equal(sumExp, zero), one, sumExp) // Empty segments: avoid NaN.
	return Div(expLogits, Gather(sumExp, indices))
}
