package ragged

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Number is the set of value types a Field can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Field is one named attribute of a batch: Width values per row, rows split among graphs by Partition.
//
// Values are stored flat in row-major order: row i occupies Values[i*Width : (i+1)*Width].
type Field[T Number] struct {
	Name      string
	Values    []T
	Width     int
	Partition Partition
}

// NewField creates a Field and checks that the number of values matches the partition.
// It fails with ErrShapeMismatch if len(values) != partition.NumRows() * width.
func NewField[T Number](name string, values []T, width int, partition Partition) (*Field[T], error) {
	if width <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "field %q: width must be > 0, got %d", name, width)
	}
	if len(values) != partition.NumRows()*width {
		return nil, errors.Wrapf(ErrShapeMismatch, "field %q: %d values don't fit %d rows of width %d",
			name, len(values), partition.NumRows(), width)
	}
	return &Field[T]{Name: name, Values: values, Width: width, Partition: partition}, nil
}

// FieldFromGraphs creates a Field by concatenating the values of each graph.
// Each perGraph[g] must hold a multiple of width values, and the number of rows of the graph is
// len(perGraph[g]) / width.
func FieldFromGraphs[T Number](name string, perGraph [][]T, width int) (*Field[T], error) {
	if width <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "field %q: width must be > 0, got %d", name, width)
	}
	lengths := make([]int, len(perGraph))
	var total int
	for g, values := range perGraph {
		if len(values)%width != 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "field %q: graph #%d has %d values, not a multiple of width %d",
				name, g, len(values), width)
		}
		lengths[g] = len(values) / width
		total += len(values)
	}
	partition, err := NewPartition(lengths)
	if err != nil {
		return nil, errors.WithMessagef(err, "field %q", name)
	}
	flat := make([]T, 0, total)
	for _, values := range perGraph {
		flat = append(flat, values...)
	}
	return &Field[T]{Name: name, Values: flat, Width: width, Partition: partition}, nil
}

// NumRows of the field, across all graphs.
func (f *Field[T]) NumRows() int { return f.Partition.NumRows() }

// Row returns the values of the flat row i. It's a slice of the underlying storage.
func (f *Field[T]) Row(i int) []T {
	return f.Values[i*f.Width : (i+1)*f.Width]
}

// Graph returns the values of graph g: Length(g)*Width values. It's a slice of the underlying storage.
func (f *Field[T]) Graph(g int) []T {
	start, end := f.Partition.Rows(g)
	return f.Values[start*f.Width : end*f.Width]
}

// Clone returns a deep copy of the field.
func (f *Field[T]) Clone() *Field[T] {
	return &Field[T]{Name: f.Name, Values: slices.Clone(f.Values), Width: f.Width, Partition: f.Partition}
}

// Validate checks that the values fit the partition.
func (f *Field[T]) Validate() error {
	if f.Width <= 0 || len(f.Values) != f.NumRows()*f.Width {
		return errors.Wrapf(ErrShapeMismatch, "field %q: %d values don't fit %d rows of width %d",
			f.Name, len(f.Values), f.NumRows(), f.Width)
	}
	return nil
}

// String implements fmt.Stringer.
func (f *Field[T]) String() string {
	return fmt.Sprintf("Field[%T](%q, width=%d, %s)", *new(T), f.Name, f.Width, f.Partition)
}
