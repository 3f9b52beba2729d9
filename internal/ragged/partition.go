// Package ragged implements the host side representation of a batch of graphs of different sizes.
//
// Each field of the batch (node features, edge features, edge indices, coordinates, ...) is stored as one
// flat sequence of rows (an "arena"), and a Partition describing how many rows belong to each graph.
// Fields that share an axis (e.g. all node fields) must share exactly the same Partition.
//
// Tuples of node positions (edges are 2-tuples, angles are 3-tuples) are given relative to their own graph.
// Resolve translates them to flat node rows, and it's the only place where graph boundaries are crossed:
// any position that doesn't fit its own graph is rejected, so operators downstream never mix graphs.
//
// Finally, the Pack* functions convert fields to GoMLX tensors, padded to a few bucketed sizes
// (see PaddedSize), so only a handful of different computation graphs need to be compiled.
package ragged

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// Partition describes how the rows of a flat field are split among the graphs of a batch.
//
// It holds both the length of each graph and the "row splits": the running sum of the lengths, with
// NumGraphs+1 entries, starting at 0 and ending at NumRows.
//
// A Partition is immutable once created.
type Partition struct {
	lengths   []int
	rowSplits []int
}

// NewPartition creates a partition from the lengths of each graph. Lengths must be non-negative.
func NewPartition(lengths []int) (Partition, error) {
	rowSplits := make([]int, len(lengths)+1)
	for ii, length := range lengths {
		if length < 0 {
			return Partition{}, errors.Wrapf(ErrPartitionMismatch, "graph #%d has negative length %d", ii, length)
		}
		rowSplits[ii+1] = rowSplits[ii] + length
	}
	return Partition{lengths: slices.Clone(lengths), rowSplits: rowSplits}, nil
}

// PartitionFromRowSplits creates a partition from its row splits: they must start with 0 and be
// non-decreasing. An empty rowSplits is invalid: a batch with no graphs is represented by []int{0}.
func PartitionFromRowSplits(rowSplits []int) (Partition, error) {
	if len(rowSplits) == 0 || rowSplits[0] != 0 {
		return Partition{}, errors.Wrapf(ErrPartitionMismatch, "row splits must start with 0, got %v", rowSplits)
	}
	lengths := make([]int, len(rowSplits)-1)
	for ii := range lengths {
		lengths[ii] = rowSplits[ii+1] - rowSplits[ii]
		if lengths[ii] < 0 {
			return Partition{}, errors.Wrapf(ErrPartitionMismatch,
				"row splits must be non-decreasing, got %d after %d at position %d", rowSplits[ii+1], rowSplits[ii], ii+1)
		}
	}
	return Partition{lengths: lengths, rowSplits: slices.Clone(rowSplits)}, nil
}

// UniformPartition returns a partition of numGraphs graphs, each with length rows.
// UniformPartition(numGraphs, 1) is the partition of per-graph fields.
func UniformPartition(numGraphs, length int) Partition {
	lengths := make([]int, numGraphs)
	for ii := range lengths {
		lengths[ii] = length
	}
	p, err := NewPartition(lengths)
	if err != nil {
		panic(err)
	}
	return p
}

// NumGraphs in the partition.
func (p Partition) NumGraphs() int { return len(p.lengths) }

// NumRows is the total number of rows, the sum of all lengths.
func (p Partition) NumRows() int {
	if len(p.rowSplits) == 0 {
		return 0
	}
	return p.rowSplits[len(p.rowSplits)-1]
}

// Lengths returns a copy of the per-graph lengths.
func (p Partition) Lengths() []int { return slices.Clone(p.lengths) }

// RowSplits returns a copy of the row splits, with NumGraphs+1 entries.
func (p Partition) RowSplits() []int {
	if len(p.rowSplits) == 0 {
		return []int{0}
	}
	return slices.Clone(p.rowSplits)
}

// Length of graph g.
func (p Partition) Length(g int) int { return p.lengths[g] }

// Offset is the first flat row of graph g.
func (p Partition) Offset(g int) int { return p.rowSplits[g] }

// Rows returns the range [start, end) of the flat rows of graph g.
func (p Partition) Rows(g int) (start, end int) { return p.rowSplits[g], p.rowSplits[g+1] }

// MaxLength is the length of the largest graph, or 0 if there are no graphs.
func (p Partition) MaxLength() int {
	if len(p.lengths) == 0 {
		return 0
	}
	return slices.Max(p.lengths)
}

// RowIDs returns for each flat row the index of the graph it belongs to.
func (p Partition) RowIDs() []int32 {
	ids := make([]int32, p.NumRows())
	for g := range p.lengths {
		start, end := p.Rows(g)
		for row := start; row < end; row++ {
			ids[row] = int32(g)
		}
	}
	return ids
}

// Equal returns whether both partitions have the same lengths.
func (p Partition) Equal(other Partition) bool {
	return slices.Equal(p.lengths, other.lengths)
}

// Concat returns the partition of the batch made by appending other's graphs after p's graphs.
func (p Partition) Concat(other Partition) Partition {
	lengths := make([]int, 0, p.NumGraphs()+other.NumGraphs())
	lengths = append(lengths, p.lengths...)
	lengths = append(lengths, other.lengths...)
	concat, _ := NewPartition(lengths) // Lengths were already validated.
	return concat
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return fmt.Sprintf("Partition(graphs=%d, rows=%d, lengths=%v)", p.NumGraphs(), p.NumRows(), p.lengths)
}

// checkSame returns an ErrPartitionMismatch if p and other differ.
func (p Partition) checkSame(other Partition, what string) error {
	if p.NumGraphs() != other.NumGraphs() {
		return errors.Wrapf(ErrPartitionMismatch, "%s: %d graphs, expected %d", what, other.NumGraphs(), p.NumGraphs())
	}
	for g, length := range p.lengths {
		if other.lengths[g] != length {
			return errors.Wrapf(ErrPartitionMismatch, "%s: graph #%d has %d rows, expected %d",
				what, g, other.lengths[g], length)
		}
	}
	return nil
}
