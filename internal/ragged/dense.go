package ragged

import (
	"github.com/pkg/errors"
)

// Dense is the rectangular, zero-padded form of a Field: shape [NumGraphs, MaxLength, Width].
//
// Mask has NumGraphs*MaxLength entries, and tells which rows are real.
type Dense[T Number] struct {
	Name                        string
	NumGraphs, MaxLength, Width int
	Values                      []T
	Mask                        []bool
}

// ToDense converts the field to its zero-padded form, padded to the length of the largest graph.
func ToDense[T Number](f *Field[T]) *Dense[T] {
	numGraphs, maxLen := f.Partition.NumGraphs(), f.Partition.MaxLength()
	d := &Dense[T]{
		Name:      f.Name,
		NumGraphs: numGraphs,
		MaxLength: maxLen,
		Width:     f.Width,
		Values:    make([]T, numGraphs*maxLen*f.Width),
		Mask:      make([]bool, numGraphs*maxLen),
	}
	for g := range numGraphs {
		copy(d.Values[g*maxLen*f.Width:], f.Graph(g))
		for row := range f.Partition.Length(g) {
			d.Mask[g*maxLen+row] = true
		}
	}
	return d
}

// Lengths returns the number of valid rows of each graph, as given by the mask.
// The valid rows of each graph must be a prefix: a real row after a padding row fails with ErrPartitionMismatch.
func (d *Dense[T]) Lengths() ([]int, error) {
	if len(d.Mask) != d.NumGraphs*d.MaxLength {
		return nil, errors.Wrapf(ErrShapeMismatch, "dense %q: mask has %d entries, expected %d",
			d.Name, len(d.Mask), d.NumGraphs*d.MaxLength)
	}
	lengths := make([]int, d.NumGraphs)
	for g := range d.NumGraphs {
		mask := d.Mask[g*d.MaxLength : (g+1)*d.MaxLength]
		for lengths[g] < d.MaxLength && mask[lengths[g]] {
			lengths[g]++
		}
		for row := lengths[g]; row < d.MaxLength; row++ {
			if mask[row] {
				return nil, errors.Wrapf(ErrPartitionMismatch, "dense %q: graph #%d has a valid row %d after padding",
					d.Name, g, row)
			}
		}
	}
	return lengths, nil
}

// FromDense converts the padded form back to a Field, using the mask to define its partition.
func FromDense[T Number](d *Dense[T]) (*Field[T], error) {
	if len(d.Values) != d.NumGraphs*d.MaxLength*d.Width {
		return nil, errors.Wrapf(ErrShapeMismatch, "dense %q: %d values, expected %d x %d x %d",
			d.Name, len(d.Values), d.NumGraphs, d.MaxLength, d.Width)
	}
	lengths, err := d.Lengths()
	if err != nil {
		return nil, err
	}
	perGraph := make([][]T, d.NumGraphs)
	for g, length := range lengths {
		start := g * d.MaxLength * d.Width
		perGraph[g] = d.Values[start : start+length*d.Width]
	}
	return FieldFromGraphs(d.Name, perGraph, d.Width)
}
