package ragged

import (
	"github.com/pkg/errors"
)

// Tuples holds k-ary tuples of node positions, per graph: edges are 2-tuples and angle triples are 3-tuples.
//
// Positions are relative to the tuple's own graph: position 0 is the first node of the graph, regardless of where
// the graph is in the batch.
type Tuples struct {
	Name string

	// Arity is the number of positions per tuple, 2 or 3.
	Arity int

	// Positions is the flat list of graph-local positions, Arity per tuple.
	Positions []int32

	// Partition of the tuples among the graphs.
	Partition Partition
}

// NewTuples creates Tuples and checks that the positions fit the partition.
func NewTuples(name string, arity int, positions []int32, partition Partition) (*Tuples, error) {
	if arity != 2 && arity != 3 {
		return nil, errors.Wrapf(ErrShapeMismatch, "tuples %q: only arity 2 and 3 are supported, got %d", name, arity)
	}
	if len(positions) != partition.NumRows()*arity {
		return nil, errors.Wrapf(ErrShapeMismatch, "tuples %q: %d positions don't fit %d tuples of arity %d",
			name, len(positions), partition.NumRows(), arity)
	}
	return &Tuples{Name: name, Arity: arity, Positions: positions, Partition: partition}, nil
}

// TuplesFromGraphs creates Tuples by concatenating the tuples of each graph.
func TuplesFromGraphs[Tuple [2]int32 | [3]int32](name string, perGraph [][]Tuple) (*Tuples, error) {
	var zero Tuple
	arity := len(zero)
	lengths := make([]int, len(perGraph))
	var total int
	for g, graphTuples := range perGraph {
		lengths[g] = len(graphTuples)
		total += len(graphTuples)
	}
	positions := make([]int32, 0, total*arity)
	for _, graphTuples := range perGraph {
		for _, tuple := range graphTuples {
			for slot := range arity {
				positions = append(positions, tuple[slot])
			}
		}
	}
	partition, err := NewPartition(lengths)
	if err != nil {
		return nil, err
	}
	return NewTuples(name, arity, positions, partition)
}

// NumTuples across all graphs.
func (t *Tuples) NumTuples() int { return t.Partition.NumRows() }

// Tuple returns the graph-local positions of tuple i. It's a slice of the underlying storage.
func (t *Tuples) Tuple(i int) []int32 {
	return t.Positions[i*t.Arity : (i+1)*t.Arity]
}

// Resolved are tuples whose positions were translated to flat node rows of the batch.
type Resolved struct {
	Arity int

	// Rows holds the flat node rows, Arity per tuple, in the same order as the original tuples.
	Rows []int32

	// Partition of the tuples, the same as the one of the Tuples resolved.
	Partition Partition

	// Graph holds the index of the graph of each tuple.
	Graph []int32
}

// Resolve translates graph-local tuple positions to flat node rows, by adding the node offset of the tuple's graph.
//
// It fails with ErrPartitionMismatch if tuples and nodes don't have the same number of graphs, and with
// ErrIndexOutOfRange if any position is negative or not smaller than its graph's node count.
// Graphs with no tuples are fine and produce no rows.
func Resolve(tuples *Tuples, nodes Partition) (*Resolved, error) {
	if tuples.Partition.NumGraphs() != nodes.NumGraphs() {
		return nil, errors.Wrapf(ErrPartitionMismatch, "tuples %q have %d graphs, but nodes have %d graphs",
			tuples.Name, tuples.Partition.NumGraphs(), nodes.NumGraphs())
	}
	r := &Resolved{
		Arity:     tuples.Arity,
		Rows:      make([]int32, len(tuples.Positions)),
		Partition: tuples.Partition,
		Graph:     make([]int32, tuples.NumTuples()),
	}
	for g := range nodes.NumGraphs() {
		offset := int32(nodes.Offset(g))
		numNodes := int32(nodes.Length(g))
		start, end := tuples.Partition.Rows(g)
		for tupleIdx := start; tupleIdx < end; tupleIdx++ {
			r.Graph[tupleIdx] = int32(g)
			for slot, pos := range tuples.Tuple(tupleIdx) {
				if pos < 0 || pos >= numNodes {
					return nil, errors.Wrapf(ErrIndexOutOfRange,
						"tuples %q: graph #%d, tuple #%d (%v), slot %d references node %d, but graph has %d nodes",
						tuples.Name, g, tupleIdx-start, tuples.Tuple(tupleIdx), slot, pos, numNodes)
				}
				r.Rows[tupleIdx*tuples.Arity+slot] = offset + pos
			}
		}
	}
	return r, nil
}

// NumTuples resolved.
func (r *Resolved) NumTuples() int { return len(r.Graph) }

// Slot returns the flat node rows referenced by slot j of every tuple.
func (r *Resolved) Slot(j int) []int32 {
	rows := make([]int32, r.NumTuples())
	for i := range rows {
		rows[i] = r.Rows[i*r.Arity+j]
	}
	return rows
}

// Tuple returns the flat node rows of tuple i. It's a slice of the underlying storage.
func (r *Resolved) Tuple(i int) []int32 {
	return r.Rows[i*r.Arity : (i+1)*r.Arity]
}
