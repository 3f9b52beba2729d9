package nmpn

import (
	"fmt"
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

// buildMolecules creates a batch with the given atomic numbers and edges, with one feature per edge.
func buildMolecules(t *testing.T, atomicNumbers [][]int32, edges [][][2]int32) *ragged.Batch {
	z, err := ragged.FieldFromGraphs(ragged.AtomicNumbers, atomicNumbers, 1)
	require.NoError(t, err)
	b := ragged.NewBatch(z.Partition)
	require.NoError(t, b.AddInt32(ragged.AxisNodes, z))
	e, err := ragged.TuplesFromGraphs(ragged.EdgeIndices, edges)
	require.NoError(t, err)
	require.NoError(t, b.SetEdgeIndices(e))
	edgeFeatures := make([][]float32, len(edges))
	for g, graphEdges := range edges {
		for ii := range graphEdges {
			edgeFeatures[g] = append(edgeFeatures[g], float32(ii+1))
		}
	}
	f, err := ragged.FieldFromGraphs(ragged.EdgeFeatures, edgeFeatures, 1)
	require.NoError(t, err)
	require.NoError(t, b.AddFloat32(ragged.AxisEdges, f))
	return b
}

func smallModel(t *testing.T, params map[string]any) *Model {
	m := New()
	m.Context().SetParams(map[string]any{
		ParamNodeDim:         4,
		ParamSet2SetChannels: 3,
		ParamSet2SetSteps:    2,
	})
	m.Context().SetParams(params)
	_, err := m.Config()
	require.NoError(t, err)
	return m
}

func exec(m *Model, fn func(ctx *context.Context, inputs []*Node) []*Node, packed *gnn.Packed) []*tensors.Tensor {
	backend := graphtest.BuildTestBackend()
	return context.ExecOnceN(backend, m.Context(), fn,
		generics.SliceMap(packed.Inputs, func(t *tensors.Tensor) any { return t })...)
}

func TestMessagePassingUpdates(t *testing.T) {
	m := smallModel(t, map[string]any{
		ParamDepth:      1,
		ParamUpdate:     UpdateResidual.String(),
		ParamOutputMode: OutputNode.String(),
	})
	b := buildMolecules(t, [][]int32{{6, 1}, {8, 1, 1}}, [][][2]int32{{{0, 1}}, {{0, 1}, {1, 2}}})
	packed, err := m.CreateInputs(b)
	require.NoError(t, err)
	outputs := exec(m, func(ctx *context.Context, inputs []*Node) []*Node {
		cfg, err := ConfigFromContext(ctx)
		if err != nil {
			panic(err)
		}
		graphs, _ := cfg.InputSpec().Graphs(inputs)
		graphs = EmbedNodes(ctx, cfg, graphs)
		before := graphs.Nodes
		graphs = MessagePassing(ctx, cfg, graphs)
		return []*Node{Sub(graphs.Nodes, before), Readout(ctx, cfg, graphs)}
	}, packed)
	updatesT, outputT := outputs[0], outputs[1]
	updatesT.Shape().AssertDims(packed.Layout.PaddedNodes, 4)
	updates := tensors.CopyFlatData[float32](updatesT)
	fmt.Printf("Updates: %v\n", updatesT)

	// Slot 0 is the target: node 0 of each graph and node 1 of the second graph receive messages.
	hasIncoming := []bool{true, false, true, true, false}
	for node, want := range hasIncoming {
		var nonZero bool
		for _, v := range updates[node*4 : (node+1)*4] {
			if v != 0 {
				nonZero = true
			}
		}
		require.Equalf(t, want, nonZero, "node %d: updates=%v", node, updates[node*4:(node+1)*4])
	}

	// Node mode output keeps the node partition.
	out, err := ragged.UnpackFloat32("output", outputT, b.Nodes())
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, out.Partition.Lengths())
	require.Equal(t, 1, out.Width)
}

func TestForwardGraph(t *testing.T) {
	for _, useSet2Set := range []bool{true, false} {
		m := smallModel(t, map[string]any{ParamDepth: 2, ParamUseSet2Set: useSet2Set})
		atomicNumbers := [][]int32{{6, 1, 1, 1, 1}, {8, 1, 1}, {7}}
		edges := [][][2]int32{
			{{0, 1}, {1, 0}, {0, 2}, {2, 0}, {0, 3}, {3, 0}, {0, 4}, {4, 0}},
			{{0, 1}, {1, 0}, {0, 2}, {2, 0}},
			{},
		}
		forward := func(b *ragged.Batch) []float32 {
			packed, err := m.CreateInputs(b)
			require.NoError(t, err)
			outputs := exec(m, func(ctx *context.Context, inputs []*Node) []*Node {
				return []*Node{m.ForwardGraph(ctx, inputs)}
			}, packed)
			outputs[0].Shape().AssertDims(packed.Layout.PaddedGraphs, 1)
			values := tensors.CopyFlatData[float32](outputs[0])
			for _, v := range values[b.NumGraphs():] {
				require.Equal(t, float32(0), v, "padding graphs must be zero")
			}
			return values[:b.NumGraphs()]
		}
		joint := forward(buildMolecules(t, atomicNumbers, edges))
		require.Len(t, joint, 3)
		// Each graph alone gives the same output as in the batch.
		for g := range atomicNumbers {
			alone := forward(buildMolecules(t, atomicNumbers[g:g+1], edges[g:g+1]))
			require.InDeltaf(t, joint[g], alone[0], 1e-4, "graph %d (use_set2set=%v)", g, useSet2Set)
		}
	}
}

func TestConfig(t *testing.T) {
	m := New()
	cfg, err := m.Config()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Depth)
	require.Equal(t, 128, cfg.NodeDim)
	require.Equal(t, UpdateGRU, cfg.Update)
	require.Equal(t, ragged.AxisGraphs, cfg.OutputAxis())
	require.True(t, cfg.InputSpec().AtomicNumbers)

	m.Context().SetParam(ParamUpdate, "lstm")
	_, err = m.Config()
	require.Error(t, err)
	m.Context().SetParam(ParamUpdate, "gru")
	m.Context().SetParam(ParamDepth, -1)
	_, err = m.Config()
	require.Error(t, err)
	m.Context().SetParam(ParamDepth, 0)
	_, err = m.Config()
	require.NoError(t, err)

	// Atomic numbers must fit the embedding table.
	b := buildMolecules(t, [][]int32{{6, 95}}, [][][2]int32{{{0, 1}}})
	_, err = m.CreateInputs(b)
	require.True(t, errors.Is(err, ragged.ErrIndexOutOfRange))
}

// withEdgeTypes adds the given edge types to the batch.
func withEdgeTypes(t *testing.T, b *ragged.Batch, edgeTypes [][]int32) *ragged.Batch {
	f, err := ragged.FieldFromGraphs(ragged.EdgeTypes, edgeTypes, 1)
	require.NoError(t, err)
	require.NoError(t, b.AddInt32(ragged.AxisEdges, f))
	return b
}

func TestEdgeTypes(t *testing.T) {
	m := smallModel(t, map[string]any{
		ParamDepth:            1,
		ParamUseEdgeFeatures:  false,
		ParamUseEdgeTypes:     true,
		ParamEdgeVocab:        3,
		ParamEdgeEmbeddingDim: 2,
	})
	cfg, err := m.Config()
	require.NoError(t, err)
	require.True(t, cfg.InputSpec().EdgeTypes)
	require.False(t, cfg.InputSpec().EdgeFeatures)

	// Three copies of the same molecule: the first two with the same bond types, the last one different.
	atomicNumbers := [][]int32{{6, 8}, {6, 8}, {6, 8}}
	edges := [][][2]int32{{{0, 1}, {1, 0}}, {{0, 1}, {1, 0}}, {{0, 1}, {1, 0}}}
	b := withEdgeTypes(t, buildMolecules(t, atomicNumbers, edges), [][]int32{{1, 1}, {1, 1}, {2, 2}})
	packed, err := m.CreateInputs(b)
	require.NoError(t, err)
	outputs := exec(m, func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{m.ForwardGraph(ctx, inputs)}
	}, packed)
	values := tensors.CopyFlatData[float32](outputs[0])
	require.InDelta(t, values[0], values[1], 1e-5)
	require.NotEqual(t, values[0], values[2])

	// The embedding table was created with edge_vocab rows.
	var found bool
	m.Context().EnumerateVariables(func(v *context.Variable) {
		if v.Scope() == "/edge_embedding" {
			found = true
			require.Equal(t, []int{3, 2}, v.Shape().Dimensions)
		}
	})
	require.True(t, found)

	// Edge types must fit the embedding table, and be present.
	b = withEdgeTypes(t, buildMolecules(t, atomicNumbers[:1], edges[:1]), [][]int32{{0, 3}})
	_, err = m.CreateInputs(b)
	require.True(t, errors.Is(err, ragged.ErrIndexOutOfRange))
	_, err = m.CreateInputs(buildMolecules(t, atomicNumbers[:1], edges[:1]))
	require.Error(t, err)
}
