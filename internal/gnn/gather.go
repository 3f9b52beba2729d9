package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// Slots of an edge tuple (i, j): messages flow from the source j to the target i.
const (
	SlotTarget = 0
	SlotSource = 1
)

// GatherSlot returns the rows of nodes referenced by the given slot of each tuple.
//
// nodes is shaped [numNodes, F] and indices [T, k], holding flat node rows. The result is shaped [T, F], aligned
// with the tuples.
func GatherSlot(nodes, indices *Node, slot int) *Node {
	if indices.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "indices must be shaped [T, k], got %s", indices.Shape()))
	}
	checkIndices(indices, indices.Shape().Dim(1), "indices")
	if slot < 0 || slot >= indices.Shape().Dim(1) {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "slot %d out of range for tuples shaped %s", slot, indices.Shape()))
	}
	if nodes.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "nodes must be shaped [numNodes, F], got %s", nodes.Shape()))
	}
	slotIndices := Slice(indices, AxisRange(), AxisElem(slot)) // [T, 1]
	return Gather(nodes, toInt32(slotIndices))
}

// GatherNodes returns one [T, F] tensor per slot requested. If no slots are given, all slots of the tuples
// are gathered, in order.
//
// Tuples of arity 2 (edges) and 3 (angles) are supported.
func GatherNodes(nodes, indices *Node, slots ...int) []*Node {
	if indices.Rank() != 2 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "indices must be shaped [T, k], got %s", indices.Shape()))
	}
	arity := indices.Shape().Dim(1)
	if arity != 2 && arity != 3 {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "only tuples of arity 2 or 3 are supported, got %s", indices.Shape()))
	}
	if len(slots) == 0 {
		slots = make([]int, arity)
		for ii := range slots {
			slots[ii] = ii
		}
	}
	gathered := make([]*Node, len(slots))
	for ii, slot := range slots {
		gathered[ii] = GatherSlot(nodes, indices, slot)
	}
	return gathered
}

// GatherSource returns the state of the source node of each edge, shaped [numEdges, F].
func (gs *Graphs) GatherSource(nodes *Node) *Node {
	return GatherSlot(nodes, gs.EdgeIndices, SlotSource)
}

// Targets returns the target node row of each edge, shaped [numEdges] (int32).
func (gs *Graphs) Targets() *Node {
	return Reshape(Slice(toInt32(gs.EdgeIndices), AxisRange(), AxisElem(SlotTarget)), -1)
}
