// Package nmpn implements a neural message passing network (Gilmer et al., "Neural Message Passing for Quantum
// Chemistry", 2017) over packed batches of molecular graphs.
//
// Each edge gets a learned node_dim x node_dim matrix computed from its features; at every one of the `depth`
// iterations the state of the source node of each edge is multiplied by the edge matrix, the messages are pooled
// into the target nodes, and the node states are updated with a GRU (or a residual sum). The final node states
// are read out per graph (Set2Set or plain pooling) or per node, followed by a feed-forward head.
//
// All hyperparameters are stored in the model's context, see New for the defaults.
package nmpn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// Hyperparameters of the model, set in the context.
const (
	// ParamDepth is the number of message passing iterations.
	ParamDepth = "depth"

	// ParamNodeDim is the dimension of the node states, and the edge matrices are ParamNodeDim x ParamNodeDim.
	ParamNodeDim = "node_dim"

	// ParamNodeVocab is the size of the embedding table of atomic numbers. Only used if ParamUseAtomicNumbers is set.
	ParamNodeVocab = "node_vocab"

	// ParamUseAtomicNumbers selects atomic numbers (embedded) as node inputs. Otherwise the node features are
	// projected to ParamNodeDim.
	ParamUseAtomicNumbers = "use_atomic_numbers"

	// ParamUseEdgeFeatures selects the edge features as the input of the edge network. Otherwise a constant
	// is used, and all edges share the same matrix.
	ParamUseEdgeFeatures = "use_edge_features"

	// ParamUseEdgeTypes embeds the categorical edge types (bond types) as input of the edge network,
	// concatenated to the edge features if those are also used.
	ParamUseEdgeTypes = "use_edge_types"

	// ParamEdgeVocab is the number of edge types. Only used if ParamUseEdgeTypes is set.
	ParamEdgeVocab = "edge_vocab"

	// ParamEdgeEmbeddingDim is the dimension of the edge types embedding.
	ParamEdgeEmbeddingDim = "edge_embedding_dim"

	// ParamUseGraphState concatenates the graph features to the readout.
	ParamUseGraphState = "use_graph_state"

	// ParamEdgeActivation is the activation applied to the edge network output.
	ParamEdgeActivation = "edge_activation"

	// ParamPooling of the messages into the target nodes: "sum" or "mean".
	ParamPooling = "pooling"

	// ParamUpdate of the node states: "gru" or "residual".
	ParamUpdate = "update"

	// ParamOutputMode is "graph" (one output per graph) or "node" (one output per node).
	ParamOutputMode = "output_mode"

	// ParamUseSet2Set selects the Set2Set readout in graph mode. Otherwise the node states are pooled
	// with ParamPooling.
	ParamUseSet2Set = "use_set2set"

	// ParamSet2SetChannels is the dimension the node states are projected to before the Set2Set readout.
	ParamSet2SetChannels = "set2set_channels"

	// ParamSet2SetSteps is the number of attention steps of the Set2Set readout.
	ParamSet2SetSteps = "set2set_steps"

	// ParamSet2SetPooling is the pooling of the attention weighted node states in the Set2Set readout.
	ParamSet2SetPooling = "set2set_pooling"

	// ParamOutputDim is the dimension of the output of the model.
	ParamOutputDim = "output_dim"
)

// UpdateType defines how node states are updated with the pooled messages.
type UpdateType int

//go:generate go tool enumer -type=UpdateType -trimprefix=Update -transform=snake -values -text -json -yaml nmpn.go

const (
	UpdateGRU UpdateType = iota
	UpdateResidual
)

// OutputMode defines whether the model outputs one value per graph or per node.
type OutputMode int

//go:generate go tool enumer -type=OutputMode -trimprefix=Output -transform=snake -values -text -json -yaml nmpn.go

const (
	OutputGraph OutputMode = iota
	OutputNode
)

// DType used by the model.
const DType = dtypes.Float32

// Config holds the hyperparameters of the model that shape its graph. It's read from the context with
// ConfigFromContext.
type Config struct {
	Depth, NodeDim, NodeVocab int
	UseAtomicNumbers          bool
	UseEdgeFeatures           bool
	UseEdgeTypes              bool
	EdgeVocab                 int
	EdgeEmbeddingDim          int
	UseGraphState             bool
	EdgeActivation            activations.Type
	Pooling                   gnn.PoolMethod
	Update                    UpdateType
	OutputMode                OutputMode
	UseSet2Set                bool
	Set2SetChannels           int
	Set2SetSteps              int
	Set2SetPooling            gnn.PoolMethod
	OutputDim                 int
}

// ConfigFromContext parses and validates the hyperparameters in ctx.
func ConfigFromContext(ctx *context.Context) (cfg Config, err error) {
	cfg.Depth = context.GetParamOr(ctx, ParamDepth, 3)
	cfg.NodeDim = context.GetParamOr(ctx, ParamNodeDim, 128)
	cfg.NodeVocab = context.GetParamOr(ctx, ParamNodeVocab, 95)
	cfg.UseAtomicNumbers = context.GetParamOr(ctx, ParamUseAtomicNumbers, true)
	cfg.UseEdgeFeatures = context.GetParamOr(ctx, ParamUseEdgeFeatures, true)
	cfg.UseEdgeTypes = context.GetParamOr(ctx, ParamUseEdgeTypes, false)
	cfg.EdgeVocab = context.GetParamOr(ctx, ParamEdgeVocab, 5)
	cfg.EdgeEmbeddingDim = context.GetParamOr(ctx, ParamEdgeEmbeddingDim, 64)
	cfg.UseGraphState = context.GetParamOr(ctx, ParamUseGraphState, false)
	cfg.UseSet2Set = context.GetParamOr(ctx, ParamUseSet2Set, true)
	cfg.Set2SetChannels = context.GetParamOr(ctx, ParamSet2SetChannels, 32)
	cfg.Set2SetSteps = context.GetParamOr(ctx, ParamSet2SetSteps, 3)
	cfg.OutputDim = context.GetParamOr(ctx, ParamOutputDim, 1)
	if cfg.Depth < 0 {
		return cfg, errors.Errorf("%s must be >= 0, got %d", ParamDepth, cfg.Depth)
	}
	for _, positive := range []struct {
		name  string
		value int
	}{
		{ParamNodeDim, cfg.NodeDim}, {ParamNodeVocab, cfg.NodeVocab}, {ParamSet2SetChannels, cfg.Set2SetChannels},
		{ParamSet2SetSteps, cfg.Set2SetSteps}, {ParamOutputDim, cfg.OutputDim},
		{ParamEdgeVocab, cfg.EdgeVocab}, {ParamEdgeEmbeddingDim, cfg.EdgeEmbeddingDim},
	} {
		if positive.value <= 0 {
			return cfg, errors.Errorf("%s must be > 0, got %d", positive.name, positive.value)
		}
	}

	name := context.GetParamOr(ctx, ParamEdgeActivation, "selu")
	if name == "" {
		cfg.EdgeActivation = activations.TypeNone
	} else if cfg.EdgeActivation, err = activations.TypeString(name); err != nil {
		return cfg, errors.WithMessagef(err, "parsing %s=%q", ParamEdgeActivation, name)
	}
	name = context.GetParamOr(ctx, ParamPooling, gnn.PoolMean.String())
	if cfg.Pooling, err = gnn.PoolMethodString(name); err != nil {
		return cfg, errors.WithMessagef(err, "parsing %s=%q", ParamPooling, name)
	}
	name = context.GetParamOr(ctx, ParamSet2SetPooling, gnn.PoolSum.String())
	if cfg.Set2SetPooling, err = gnn.PoolMethodString(name); err != nil {
		return cfg, errors.WithMessagef(err, "parsing %s=%q", ParamSet2SetPooling, name)
	}
	name = context.GetParamOr(ctx, ParamUpdate, UpdateGRU.String())
	if cfg.Update, err = UpdateTypeString(name); err != nil {
		return cfg, errors.WithMessagef(err, "parsing %s=%q", ParamUpdate, name)
	}
	name = context.GetParamOr(ctx, ParamOutputMode, OutputGraph.String())
	if cfg.OutputMode, err = OutputModeString(name); err != nil {
		return cfg, errors.WithMessagef(err, "parsing %s=%q", ParamOutputMode, name)
	}
	return cfg, nil
}

// InputSpec returns which fields of a batch the model consumes.
func (cfg Config) InputSpec() gnn.InputSpec {
	return gnn.InputSpec{
		AtomicNumbers: cfg.UseAtomicNumbers,
		NodeFeatures:  !cfg.UseAtomicNumbers,
		EdgeFeatures:  cfg.UseEdgeFeatures,
		EdgeTypes:     cfg.UseEdgeTypes,
		GraphFeatures: cfg.UseGraphState,
	}
}

// OutputAxis is the axis of the rows of the output: graphs or nodes.
func (cfg Config) OutputAxis() ragged.Axis {
	if cfg.OutputMode == OutputNode {
		return ragged.AxisNodes
	}
	return ragged.AxisGraphs
}

// Model is a message passing network, configured by the hyperparameters in its context.
type Model struct {
	ctx *context.Context
}

// New creates a Model with a fresh context, initialized with hyperparameters set to their defaults.
func New() *Model {
	m := &Model{ctx: context.New()}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		ParamDepth:            3,
		ParamNodeDim:          128,
		ParamNodeVocab:        95,
		ParamUseAtomicNumbers: true,
		ParamUseEdgeFeatures:  true,
		ParamUseEdgeTypes:     false,
		ParamEdgeVocab:        5,
		ParamEdgeEmbeddingDim: 64,
		ParamUseGraphState:    false,
		ParamEdgeActivation:   "selu",
		ParamPooling:          gnn.PoolMean.String(),
		ParamUpdate:           UpdateGRU.String(),
		ParamOutputMode:       OutputGraph.String(),
		ParamUseSet2Set:       true,
		ParamSet2SetChannels:  32,
		ParamSet2SetSteps:     3,
		ParamSet2SetPooling:   gnn.PoolSum.String(),
		ParamOutputDim:        1,

		// Readout head.
		activations.ParamActivation:   "selu",
		fnnLayer.ParamNumHiddenLayers: 2,
		fnnLayer.ParamNumHiddenNodes:  25,
		fnnLayer.ParamResidual:        false,
		fnnLayer.ParamNormalization:   "none",
		regularizers.ParamL2:          0.0,
		regularizers.ParamL1:          0.0,
	})
	m.ctx = m.ctx.Checked(false)
	return m
}

// Context used by the model: with both its weights and hyperparameters.
func (m *Model) Context() *context.Context {
	return m.ctx
}

// Config parsed from the model's context.
func (m *Model) Config() (Config, error) {
	return ConfigFromContext(m.ctx)
}

// OutputAxis is the axis of the rows of the model output.
func (m *Model) OutputAxis() (ragged.Axis, error) {
	cfg, err := m.Config()
	if err != nil {
		return 0, err
	}
	return cfg.OutputAxis(), nil
}

// CreateInputs packs the batch into the padded input tensors of the model.
//
// It fails with ragged.ErrIndexOutOfRange if an atomic number or an edge type doesn't fit its embedding table.
func (m *Model) CreateInputs(b *ragged.Batch) (*gnn.Packed, error) {
	cfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	if cfg.UseAtomicNumbers {
		z := b.Int32(ragged.AtomicNumbers)
		if z == nil {
			return nil, errors.Errorf("batch has no %q field, required by %s=true", ragged.AtomicNumbers, ParamUseAtomicNumbers)
		}
		for row, value := range z.Values {
			if value < 0 || int(value) >= cfg.NodeVocab {
				return nil, errors.Wrapf(ragged.ErrIndexOutOfRange, "atomic number %d in row %d doesn't fit %s=%d",
					value, row, ParamNodeVocab, cfg.NodeVocab)
			}
		}
	}
	if cfg.UseEdgeTypes {
		types := b.Int32(ragged.EdgeTypes)
		if types == nil {
			return nil, errors.Errorf("batch has no %q field, required by %s=true", ragged.EdgeTypes, ParamUseEdgeTypes)
		}
		for row, value := range types.Values {
			if value < 0 || int(value) >= cfg.EdgeVocab {
				return nil, errors.Wrapf(ragged.ErrIndexOutOfRange, "edge type %d in row %d doesn't fit %s=%d",
					value, row, ParamEdgeVocab, cfg.EdgeVocab)
			}
		}
	}
	packed, err := cfg.InputSpec().Pack(b)
	if err != nil {
		return nil, errors.WithMessage(err, "creating NMPN inputs")
	}
	return packed, nil
}

// ForwardGraph builds the model graph for the inputs created by CreateInputs.
// It returns [paddedGraphs, outputDim] in graph mode, or [paddedNodes, outputDim] in node mode,
// with the rows of padding zeroed.
func (m *Model) ForwardGraph(ctx *context.Context, inputs []*Node) *Node {
	cfg, err := ConfigFromContext(ctx)
	if err != nil {
		panic(err)
	}
	graphs, _ := cfg.InputSpec().Graphs(inputs)
	graphs = EmbedNodes(ctx, cfg, graphs)
	graphs = MessagePassing(ctx, cfg, graphs)
	return Readout(ctx, cfg, graphs)
}

// EmbedNodes sets the initial node states, shaped [numNodes, node_dim]: from the embedding of the atomic
// numbers, or from a linear projection of the node features.
func EmbedNodes(ctx *context.Context, cfg Config, graphs *gnn.Graphs) *gnn.Graphs {
	var state *Node
	if cfg.UseAtomicNumbers {
		embedded := layers.Embedding(ctx.In("node_embedding"), graphs.AtomicNumbers, DType, cfg.NodeVocab, cfg.NodeDim)
		state = layers.Dense(ctx.In("node_projection"), embedded, true, cfg.NodeDim)
	} else {
		nodes := graphs.Nodes
		if nodes.DType() != DType {
			nodes = ConvertDType(nodes, DType)
		}
		state = layers.Dense(ctx.In("node_projection"), nodes, true, cfg.NodeDim)
	}
	return graphs.WithNodes(graphs.MaskNodes(state))
}

// Readout of the final node states into the model output.
func Readout(ctx *context.Context, cfg Config, graphs *gnn.Graphs) *Node {
	ctx = ctx.In("readout")
	if cfg.OutputMode == OutputNode {
		x := graphs.Nodes
		if cfg.UseGraphState {
			state := Gather(graphs.GraphFeatures, ExpandAxes(graphs.NodeGraph, -1))
			x = Concatenate([]*Node{x, ConvertDType(state, DType)}, 1)
		}
		output := fnnLayer.New(ctx.In("fnn"), x, cfg.OutputDim).Done()
		return graphs.MaskNodes(output)
	}

	var x *Node
	if cfg.UseSet2Set {
		projected := layers.Dense(ctx.In("set2set_projection"), graphs.Nodes, true, cfg.Set2SetChannels)
		x = gnn.NewSet2Set(ctx.In("set2set"), cfg.Set2SetChannels).
			Steps(cfg.Set2SetSteps).
			PoolingMethod(cfg.Set2SetPooling).
			Done(graphs, graphs.MaskNodes(projected))
	} else {
		x = graphs.PoolNodesToGraphs(graphs.Nodes, cfg.Pooling)
	}
	if cfg.UseGraphState {
		x = Concatenate([]*Node{x, ConvertDType(graphs.GraphFeatures, DType)}, 1)
	}
	output := fnnLayer.New(ctx.In("fnn"), x, cfg.OutputDim).Done()
	return graphs.MaskGraphs(output)
}

// edgeInputs returns the input of the edge network, shaped [numEdges, W]: the edge features and the embedded
// edge types, or a constant if neither is used.
func edgeInputs(ctx *context.Context, cfg Config, graphs *gnn.Graphs) *Node {
	var parts []*Node
	if cfg.UseEdgeFeatures {
		edges := graphs.Edges
		if edges.DType() != DType {
			edges = ConvertDType(edges, DType)
		}
		parts = append(parts, edges)
	}
	if cfg.UseEdgeTypes {
		parts = append(parts, layers.Embedding(ctx.In("edge_embedding"), graphs.EdgeTypes, DType, cfg.EdgeVocab, cfg.EdgeEmbeddingDim))
	}
	switch len(parts) {
	case 0:
		return Ones(graphs.Graph(), shapes.Make(DType, graphs.NumEdges(), 1))
	case 1:
		return parts[0]
	}
	return Concatenate(parts, 1)
}
