package ragged

import (
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// PaddedSize returns a padded number of rows for n rows.
// This is important so we don't have too many different versions of the program for every different batch size.
func PaddedSize(n int) int {
	if n == 1 {
		// Always have the option to support 1.
		return n
	}

	// Starts with 8, anything smaller than that, the cost in space is too small, not worth having multiple programs
	// for different padding sizes.
	paddedSize := 8
	for paddedSize < n {
		// Increase 1.5x at a time.
		paddedSize = paddedSize + (paddedSize+1)/2
	}
	return paddedSize
}

// Layout holds the real and padded number of rows of each axis of a packed batch.
//
// Nodes and graphs always have at least one padding row: the first padding node is the "dummy node", and the first
// padding graph is the "dummy graph". Padding tuples point to the dummy node, and padding nodes belong to the dummy
// graph, so pooling padding values never touches a real row.
type Layout struct {
	NumGraphs, NumNodes, NumEdges, NumAngles             int
	PaddedGraphs, PaddedNodes, PaddedEdges, PaddedAngles int
}

// NewLayout returns the padded layout for the batch.
func NewLayout(b *Batch) Layout {
	l := Layout{
		NumGraphs: b.NumGraphs(),
		NumNodes:  b.Nodes().NumRows(),
	}
	if edges := b.EdgeIndices(); edges != nil {
		l.NumEdges = edges.NumTuples()
	}
	if angles := b.AngleIndices(); angles != nil {
		l.NumAngles = angles.NumTuples()
	}
	l.PaddedGraphs = PaddedSize(l.NumGraphs + 1)
	l.PaddedNodes = PaddedSize(l.NumNodes + 1)
	l.PaddedEdges = PaddedSize(l.NumEdges)
	l.PaddedAngles = PaddedSize(l.NumAngles)
	return l
}

// DummyNode is the flat row of the node that absorbs padding tuples.
func (l Layout) DummyNode() int32 { return int32(l.NumNodes) }

// DummyGraph is the index of the graph that absorbs padding nodes.
func (l Layout) DummyGraph() int32 { return int32(l.NumGraphs) }

// PackFloat32 returns a tensor shaped [paddedRows, f.Width] with the field values, padded with zeros.
func PackFloat32(f *Field[float32], paddedRows int) (*tensors.Tensor, error) {
	if paddedRows < f.NumRows() {
		return nil, errors.Wrapf(ErrShapeMismatch, "field %q has %d rows, more than the %d padded rows",
			f.Name, f.NumRows(), paddedRows)
	}
	t := tensors.FromShape(shapes.Make(dtypes.Float32, paddedRows, f.Width))
	tensors.MutableFlatData(t, func(flat []float32) {
		copy(flat, f.Values)
	})
	return t, nil
}

// PackInt32 returns a tensor shaped [paddedRows] (if f.Width is 1) or [paddedRows, f.Width] with the field values,
// padded with padValue.
func PackInt32(f *Field[int32], paddedRows int, padValue int32) (*tensors.Tensor, error) {
	if paddedRows < f.NumRows() {
		return nil, errors.Wrapf(ErrShapeMismatch, "field %q has %d rows, more than the %d padded rows",
			f.Name, f.NumRows(), paddedRows)
	}
	dims := []int{paddedRows}
	if f.Width > 1 {
		dims = append(dims, f.Width)
	}
	t := tensors.FromShape(shapes.Make(dtypes.Int32, dims...))
	tensors.MutableFlatData(t, func(flat []int32) {
		n := copy(flat, f.Values)
		for ii := n; ii < len(flat); ii++ {
			flat[ii] = padValue
		}
	})
	return t, nil
}

// PackTuples returns a tensor shaped [paddedTuples, Arity] with the flat node rows of the resolved tuples.
// Padding tuples point all their slots to dummyNode.
func PackTuples(r *Resolved, paddedTuples int, dummyNode int32) (*tensors.Tensor, error) {
	if paddedTuples < r.NumTuples() {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d tuples, more than the %d padded tuples", r.NumTuples(), paddedTuples)
	}
	t := tensors.FromShape(shapes.Make(dtypes.Int32, paddedTuples, r.Arity))
	tensors.MutableFlatData(t, func(flat []int32) {
		n := copy(flat, r.Rows)
		for ii := n; ii < len(flat); ii++ {
			flat[ii] = dummyNode
		}
	})
	return t, nil
}

// PackInt32Slice returns a tensor shaped [paddedRows] with the values, padded with padValue.
func PackInt32Slice(values []int32, paddedRows int, padValue int32) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Int32, paddedRows))
	tensors.MutableFlatData(t, func(flat []int32) {
		n := copy(flat, values)
		for ii := n; ii < len(flat); ii++ {
			flat[ii] = padValue
		}
	})
	return t
}

// PackRowIDs returns a tensor shaped [paddedRows] with the graph index of each row of the partition.
// Padding rows belong to dummyGraph.
func PackRowIDs(p Partition, paddedRows int, dummyGraph int32) *tensors.Tensor {
	return PackInt32Slice(p.RowIDs(), paddedRows, dummyGraph)
}

// PackMask returns a boolean tensor shaped [paddedRows], true for the first numRows rows.
func PackMask(numRows, paddedRows int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Bool, paddedRows))
	tensors.MutableFlatData(t, func(flat []bool) {
		for ii := range numRows {
			flat[ii] = true
		}
	})
	return t
}

// UnpackFloat32 converts the output tensor shaped [paddedRows, width] (or [paddedRows]) back to a Field with the
// given partition, dropping the padding rows.
func UnpackFloat32(name string, t *tensors.Tensor, p Partition) (*Field[float32], error) {
	shape := t.Shape()
	if shape.DType != dtypes.Float32 || shape.Rank() < 1 || shape.Rank() > 2 {
		return nil, errors.Wrapf(ErrShapeMismatch, "output %q: expected float32 tensor of rank 1 or 2, got %s", name, shape)
	}
	width := 1
	if shape.Rank() == 2 {
		width = shape.Dimensions[1]
	}
	if shape.Dimensions[0] < p.NumRows() {
		return nil, errors.Wrapf(ErrShapeMismatch, "output %q: has %d rows, but partition has %d rows",
			name, shape.Dimensions[0], p.NumRows())
	}
	values := make([]float32, p.NumRows()*width)
	tensors.ConstFlatData(t, func(flat []float32) {
		copy(values, flat)
	})
	return NewField(name, values, width, p)
}
