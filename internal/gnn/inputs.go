package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InputSpec declares which fields of a batch a model consumes. The edge indices and the node/graph bookkeeping
// (graph ids and masks) are always included.
type InputSpec struct {
	// NodeFeatures includes the float32 ragged.NodeFeatures field.
	NodeFeatures bool

	// AtomicNumbers includes the int32 ragged.AtomicNumbers field.
	AtomicNumbers bool

	// EdgeFeatures includes the float32 ragged.EdgeFeatures field.
	EdgeFeatures bool

	// EdgeTypes includes the int32 ragged.EdgeTypes field.
	EdgeTypes bool

	// Angles includes the angle indices.
	Angles bool

	// Coordinates includes the float32 ragged.Coordinates field.
	Coordinates bool

	// GraphFeatures includes the float32 ragged.GraphFeatures field.
	GraphFeatures bool
}

// Packed holds the input tensors of a batch, in the order defined by InputSpec, and the layout used to pad them.
type Packed struct {
	Layout ragged.Layout
	Inputs []*tensors.Tensor
}

// NumInputs returns the number of input tensors produced by Pack for this spec.
func (spec InputSpec) NumInputs() int {
	n := 5 // nodeGraph, nodeMask, graphMask, edgeIndices, edgeMask.
	for _, included := range []bool{spec.NodeFeatures, spec.AtomicNumbers, spec.EdgeFeatures, spec.EdgeTypes,
		spec.Coordinates, spec.GraphFeatures} {
		if included {
			n++
		}
	}
	if spec.Angles {
		n += 2
	}
	return n
}

// Pack converts the batch fields required by the spec to padded tensors.
// It fails if a required field is missing or if its values don't fit the batch.
func (spec InputSpec) Pack(b *ragged.Batch) (*Packed, error) {
	l := ragged.NewLayout(b)
	p := &Packed{Layout: l}
	p.Inputs = append(p.Inputs,
		ragged.PackRowIDs(b.Nodes(), l.PaddedNodes, l.DummyGraph()),
		ragged.PackMask(l.NumNodes, l.PaddedNodes),
		ragged.PackMask(l.NumGraphs, l.PaddedGraphs))

	edges, err := b.ResolveEdges()
	if err != nil {
		return nil, err
	}
	t, err := ragged.PackTuples(edges, l.PaddedEdges, l.DummyNode())
	if err != nil {
		return nil, err
	}
	p.Inputs = append(p.Inputs, t, ragged.PackMask(l.NumEdges, l.PaddedEdges))

	float32Field := func(name string, paddedRows int) error {
		f := b.Float32(name)
		if f == nil {
			return errors.Errorf("batch has no %q field", name)
		}
		t, err := ragged.PackFloat32(f, paddedRows)
		if err != nil {
			return err
		}
		p.Inputs = append(p.Inputs, t)
		return nil
	}
	if spec.NodeFeatures {
		if err := float32Field(ragged.NodeFeatures, l.PaddedNodes); err != nil {
			return nil, err
		}
	}
	int32Field := func(name string, paddedRows int) error {
		f := b.Int32(name)
		if f == nil {
			return errors.Errorf("batch has no %q field", name)
		}
		t, err := ragged.PackInt32(f, paddedRows, 0)
		if err != nil {
			return err
		}
		p.Inputs = append(p.Inputs, t)
		return nil
	}
	if spec.AtomicNumbers {
		if err := int32Field(ragged.AtomicNumbers, l.PaddedNodes); err != nil {
			return nil, err
		}
	}
	if spec.EdgeFeatures {
		if err := float32Field(ragged.EdgeFeatures, l.PaddedEdges); err != nil {
			return nil, err
		}
	}
	if spec.EdgeTypes {
		if err := int32Field(ragged.EdgeTypes, l.PaddedEdges); err != nil {
			return nil, err
		}
	}
	if spec.Angles {
		angles, err := b.ResolveAngles()
		if err != nil {
			return nil, err
		}
		t, err := ragged.PackTuples(angles, l.PaddedAngles, l.DummyNode())
		if err != nil {
			return nil, err
		}
		p.Inputs = append(p.Inputs, t, ragged.PackMask(l.NumAngles, l.PaddedAngles))
	}
	if spec.Coordinates {
		if err := float32Field(ragged.Coordinates, l.PaddedNodes); err != nil {
			return nil, err
		}
	}
	if spec.GraphFeatures {
		if err := float32Field(ragged.GraphFeatures, l.PaddedGraphs); err != nil {
			return nil, err
		}
	}
	klog.V(2).Infof("packed batch: %+v", l)
	return p, nil
}

// Graphs builds the graph-side view of the inputs packed with Pack.
// Extra inputs after the ones of the spec are returned separately.
func (spec InputSpec) Graphs(inputs []*Node) (graphs *Graphs, extra []*Node) {
	if len(inputs) < spec.NumInputs() {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "expected at least %d inputs for %+v, got %d",
			spec.NumInputs(), spec, len(inputs)))
	}
	next := func() *Node {
		n := inputs[0]
		inputs = inputs[1:]
		return n
	}
	graphs = &Graphs{
		NodeGraph: next(),
		NodeMask:  next(),
		GraphMask: next(),
	}
	graphs.NumGraphs = graphs.GraphMask.Shape().Dim(0)
	graphs.EdgeIndices = next()
	graphs.EdgeMask = next()
	checkIndices(graphs.EdgeIndices, 2, "edge indices")
	if spec.NodeFeatures {
		graphs.Nodes = next()
	}
	if spec.AtomicNumbers {
		graphs.AtomicNumbers = next()
	}
	if spec.EdgeFeatures {
		graphs.Edges = next()
	}
	if spec.EdgeTypes {
		graphs.EdgeTypes = next()
	}
	if spec.Angles {
		graphs.AngleIndices = next()
		graphs.AngleMask = next()
		checkIndices(graphs.AngleIndices, 3, "angle indices")
	}
	if spec.Coordinates {
		graphs.Coordinates = next()
	}
	if spec.GraphFeatures {
		graphs.GraphFeatures = next()
	}
	return graphs, inputs
}
