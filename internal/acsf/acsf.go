// Package acsf implements atom-centered symmetry functions (Behler and Parrinello, 2007; Behler, 2011): radial
// and angular descriptors of the neighborhood of each atom, invariant to rotations, translations and
// permutations of atoms of the same element.
//
// The element (and element pair) of each neighbor is resolved on the host, before any graph is built, so that
// atomic numbers without parameters fail with ragged.ErrUnmappedRelation instead of indexing garbage.
//
// Model wraps the featurizer as a model that outputs the per-atom descriptors, or per-graph sums of an atomic
// feed-forward network over them (a high-dimensional neural network potential).
package acsf

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// DefaultEpsilon added to distances before dividing by them.
const DefaultEpsilon = 1e-7

// Hyperparameters of the Model, set in its context.
const (
	// ParamOutputMode is "node" (the descriptors of each atom) or "graph" (the sum of the atomic network
	// outputs of each graph).
	ParamOutputMode = "output_mode"

	// ParamOutputDim is the output dimension of the atomic network, in graph mode.
	ParamOutputDim = "output_dim"
)

// Output modes.
const (
	OutputNode  = "node"
	OutputGraph = "graph"
)

// Model computes symmetry function descriptors for a batch of molecules. The batch must have atomic numbers,
// coordinates, edges (for the radial part) and angle triples (for the angular part).
type Model struct {
	ctx     *context.Context
	radial  *Radial
	angular *Angular
}

// NewModel creates a Model with the given radial and angular configurations. Either one can be nil, but not
// both.
func NewModel(radial *RadialConfig, angular *AngularConfig) (*Model, error) {
	if radial == nil && angular == nil {
		return nil, errors.New("acsf model requires radial or angular symmetry functions configured")
	}
	m := &Model{ctx: context.New()}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		ParamOutputMode: OutputNode,
		ParamOutputDim:  1,

		// Atomic network, used in graph mode.
		activations.ParamActivation:   "tanh",
		fnnLayer.ParamNumHiddenLayers: 2,
		fnnLayer.ParamNumHiddenNodes:  64,
		fnnLayer.ParamResidual:        false,
		fnnLayer.ParamNormalization:   "none",
		regularizers.ParamL2:          0.0,
		regularizers.ParamL1:          0.0,
	})
	m.ctx = m.ctx.Checked(false)
	var err error
	if radial != nil {
		if m.radial, err = NewRadial(m.ctx.In("radial"), *radial); err != nil {
			return nil, err
		}
	}
	if angular != nil {
		if m.angular, err = NewAngular(m.ctx.In("angular"), *angular); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Context used by the model: with both its weights and hyperparameters.
func (m *Model) Context() *context.Context { return m.ctx }

// Radial symmetry functions of the model, or nil.
func (m *Model) Radial() *Radial { return m.radial }

// Angular symmetry functions of the model, or nil.
func (m *Model) Angular() *Angular { return m.angular }

// NumDescriptors is the width of the per-atom descriptors: radial followed by angular.
func (m *Model) NumDescriptors() int {
	var width int
	if m.radial != nil {
		width += m.radial.Width()
	}
	if m.angular != nil {
		width += m.angular.Width()
	}
	return width
}

func (m *Model) inputSpec() gnn.InputSpec {
	return gnn.InputSpec{AtomicNumbers: true, Coordinates: true, Angles: m.angular != nil}
}

func outputMode(ctx *context.Context) (string, error) {
	mode := context.GetParamOr(ctx, ParamOutputMode, OutputNode)
	if mode != OutputNode && mode != OutputGraph {
		return "", errors.Errorf("invalid %s=%q, valid values are %q and %q", ParamOutputMode, mode, OutputNode, OutputGraph)
	}
	return mode, nil
}

// OutputAxis is the axis of the rows of the model output.
func (m *Model) OutputAxis() (ragged.Axis, error) {
	mode, err := outputMode(m.ctx)
	if err != nil {
		return 0, err
	}
	if mode == OutputGraph {
		return ragged.AxisGraphs, nil
	}
	return ragged.AxisNodes, nil
}

// CreateInputs packs the batch and the element relations of its edges and angles into the model inputs.
// It fails with ragged.ErrUnmappedRelation if any element has no parameters.
func (m *Model) CreateInputs(b *ragged.Batch) (*gnn.Packed, error) {
	if _, err := outputMode(m.ctx); err != nil {
		return nil, err
	}
	packed, err := m.inputSpec().Pack(b)
	if err != nil {
		return nil, errors.WithMessage(err, "creating ACSF inputs")
	}
	l := packed.Layout
	if m.radial != nil {
		centers, neighbors, err := m.radial.Relations(b)
		if err != nil {
			return nil, err
		}
		packed.Inputs = append(packed.Inputs,
			ragged.PackInt32Slice(centers, l.PaddedEdges, 0),
			ragged.PackInt32Slice(neighbors, l.PaddedEdges, 0))
	}
	if m.angular != nil {
		centers, pairs, err := m.angular.Relations(b)
		if err != nil {
			return nil, err
		}
		packed.Inputs = append(packed.Inputs,
			ragged.PackInt32Slice(centers, l.PaddedAngles, 0),
			ragged.PackInt32Slice(pairs, l.PaddedAngles, 0))
	}
	return packed, nil
}

// Descriptors builds the per-atom descriptors, shaped [numNodes, NumDescriptors()], for the inputs
// created by CreateInputs.
func (m *Model) Descriptors(inputs []*Node) (*gnn.Graphs, *Node) {
	graphs, extra := m.inputSpec().Graphs(inputs)
	var parts []*Node
	if m.radial != nil {
		parts = append(parts, m.radial.Forward(graphs, extra[0], extra[1]))
		extra = extra[2:]
	}
	if m.angular != nil {
		parts = append(parts, m.angular.Forward(graphs, extra[0], extra[1]))
	}
	if len(parts) == 1 {
		return graphs, parts[0]
	}
	return graphs, Concatenate(parts, 1)
}

// ForwardGraph builds the model graph for the inputs created by CreateInputs.
// It returns the descriptors shaped [paddedNodes, NumDescriptors()] in node mode, or the graph outputs
// shaped [paddedGraphs, outputDim] in graph mode.
func (m *Model) ForwardGraph(ctx *context.Context, inputs []*Node) *Node {
	mode, err := outputMode(ctx)
	if err != nil {
		panic(err)
	}
	graphs, descriptors := m.Descriptors(inputs)
	if mode == OutputNode {
		return descriptors
	}
	outputDim := context.GetParamOr(ctx, ParamOutputDim, 1)
	atomic := fnnLayer.New(ctx.In("atomic_network"), descriptors, outputDim).Done()
	energies := graphs.PoolNodesToGraphs(graphs.MaskNodes(atomic), gnn.PoolSum)
	return graphs.MaskGraphs(energies)
}
