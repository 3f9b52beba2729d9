package gnn

import (
	"fmt"
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

type graphFn = func(ctx *context.Context, inputs []*Node) []*Node

// execGraph builds and executes fn once, with a new context if ctx is nil.
func execGraph(ctx *context.Context, fn graphFn, inputs ...*tensors.Tensor) []*tensors.Tensor {
	backend := graphtest.BuildTestBackend()
	if ctx == nil {
		ctx = context.New()
	}
	return context.ExecOnceN(backend, ctx, fn, generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })...)
}

// buildBatch with one feature per node and the given edges.
func buildBatch(t *testing.T, nodes [][]float32, edges [][][2]int32) *ragged.Batch {
	f, err := ragged.FieldFromGraphs(ragged.NodeFeatures, nodes, 1)
	require.NoError(t, err)
	b := ragged.NewBatch(f.Partition)
	require.NoError(t, b.AddFloat32(ragged.AxisNodes, f))
	e, err := ragged.TuplesFromGraphs(ragged.EdgeIndices, edges)
	require.NoError(t, err)
	require.NoError(t, b.SetEdgeIndices(e))
	return b
}

// degreesAndSums returns, for each real node, its out-degree (number of edges where it is the source) and the
// sum of the features of the sources of its incoming edges.
func degreesAndSums(t *testing.T, b *ragged.Batch) (degrees, sums []float32) {
	spec := InputSpec{NodeFeatures: true}
	packed, err := spec.Pack(b)
	require.NoError(t, err)
	require.Len(t, packed.Inputs, spec.NumInputs())
	outputs := execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
		gs, extra := spec.Graphs(inputs)
		require.Empty(t, extra)
		sources := Reshape(Slice(gs.EdgeIndices, AxisRange(), AxisElem(SlotSource)), -1)
		ones := ExpandAxes(ConvertDType(gs.EdgeMask, dtypes.Float32), -1)
		degrees := SegmentPool(ones, sources, gs.NumNodes(), PoolSum)
		sums := gs.PoolEdgesToNodes(gs.GatherSource(gs.Nodes), PoolSum)
		return []*Node{gs.MaskNodes(degrees), gs.MaskNodes(sums)}
	}, packed.Inputs...)
	numNodes := packed.Layout.NumNodes
	degrees = tensors.CopyFlatData[float32](outputs[0])[:numNodes]
	sums = tensors.CopyFlatData[float32](outputs[1])[:numNodes]
	return
}

func TestGatherAndPool(t *testing.T) {
	b := buildBatch(t,
		[][]float32{{1, 2}, {3, 4, 5}},
		[][][2]int32{{{0, 1}}, {{0, 1}, {1, 2}, {0, 2}}})
	degrees, sums := degreesAndSums(t, b)
	require.Equal(t, []float32{0, 1, 0, 1, 2}, degrees)
	require.Equal(t, []float32{2, 0, 9, 5, 0}, sums)
}

func TestPoolStableUnderBatching(t *testing.T) {
	nodes := [][]float32{{1, 2}, {3, 4, 5}, {6}, {7, 8, 9, 10}}
	edges := [][][2]int32{{{0, 1}, {1, 0}}, {{2, 0}, {2, 1}}, {}, {{3, 0}, {0, 3}, {1, 2}}}
	jointDegrees, jointSums := degreesAndSums(t, buildBatch(t, nodes, edges))
	var wantDegrees, wantSums []float32
	for ii := range nodes {
		degrees, sums := degreesAndSums(t, buildBatch(t, nodes[ii:ii+1], edges[ii:ii+1]))
		wantDegrees = append(wantDegrees, degrees...)
		wantSums = append(wantSums, sums...)
	}
	require.Equal(t, wantDegrees, jointDegrees)
	require.Equal(t, wantSums, jointSums)
}

func TestSegmentPool(t *testing.T) {
	values := tensors.FromValue([][]float32{{1}, {2}, {3}})
	targets := tensors.FromValue([]int32{0, 0, 2})
	for _, method := range PoolMethodValues() {
		outputs := execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
			return []*Node{SegmentPool(inputs[0], inputs[1], 3, method)}
		}, values, targets)
		got := tensors.CopyFlatData[float32](outputs[0])
		fmt.Printf("SegmentPool(%s): %v\n", method, got)
		switch method {
		case PoolSum:
			require.Equal(t, []float32{3, 0, 3}, got)
		case PoolMean:
			// Target 1 has no values: its mean is 0, not NaN.
			require.Equal(t, []float32{1.5, 0, 3}, got)
		}
	}
}

func TestRelationalPool(t *testing.T) {
	values := tensors.FromValue([][]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}})
	targets := tensors.FromValue([]int32{0, 0, 1, 0})
	relations := tensors.FromValue([]int32{1, 1, 0, 0})
	outputs := execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{RelationalPool(inputs[0], inputs[1], inputs[2], 2, 2, PoolMean)}
	}, values, targets, relations)
	outputs[0].Shape().AssertDims(2, 4)
	require.Equal(t, []float32{
		7, 8, 2, 3,
		5, 6, 0, 0,
	}, tensors.CopyFlatData[float32](outputs[0]))
}

func TestEdgeMatrices(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	err := exceptions.TryCatch[error](func() {
		g := NewGraph(backend, "TestEdgeMatrices")
		transform := Parameter(g, "transform", shapes.Make(dtypes.Float32, 4, 6))
		EdgeMatrices(transform, 2, 2)
	})
	require.ErrorIs(t, err, ragged.ErrShapeMismatch)

	matrices := tensors.FromValue([]float32{
		1, 0, 0, 2,
		0, 1, 1, 0,
	})
	vectors := tensors.FromValue([][]float32{{3, 4}, {5, 6}})
	outputs := execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
		transform := Reshape(inputs[0], 2, 4)
		return []*Node{MatMulMessages(EdgeMatrices(transform, 2, 2), inputs[1])}
	}, matrices, vectors)
	require.Equal(t, []float32{3, 8, 6, 5}, tensors.CopyFlatData[float32](outputs[0]))
}

func TestSegmentSoftmax(t *testing.T) {
	logits := tensors.FromValue([]float32{1, 2, 3, 0.5, 100, -7})
	segments := tensors.FromValue([]int32{0, 0, 2, 2, 2, 3})
	mask := tensors.FromValue([]bool{true, true, true, true, false, true})
	outputs := execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{SegmentSoftmax(inputs[0], inputs[1], inputs[2], 4)}
	}, logits, segments, mask)
	probs := tensors.CopyFlatData[float32](outputs[0])
	require.InDelta(t, 1.0, probs[0]+probs[1], 1e-5)
	require.InDelta(t, 1.0, probs[2]+probs[3], 1e-5)
	require.Equal(t, float32(0), probs[4])
	require.InDelta(t, 1.0, probs[5], 1e-5)
	require.InDelta(t, 1/(1+math.Exp(1)), probs[0], 1e-5)

	// Very negative logits still sum to 1 within their segment, and a fully masked segment gets zeros.
	logits = tensors.FromValue([]float32{-200, -201, 1, 2, -1000})
	segments = tensors.FromValue([]int32{0, 0, 1, 1, 2})
	mask = tensors.FromValue([]bool{true, true, true, true, false})
	outputs = execGraph(nil, func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{SegmentSoftmax(inputs[0], inputs[1], inputs[2], 3)}
	}, logits, segments, mask)
	probs = tensors.CopyFlatData[float32](outputs[0])
	sigmoid1 := float32(1 / (1 + math.Exp(-1)))
	require.InDeltaSlice(t, []float32{sigmoid1, 1 - sigmoid1, 1 - sigmoid1, sigmoid1, 0}, probs, 1e-5)
}

func TestGRU(t *testing.T) {
	ctx := context.New().Checked(false)
	state := tensors.FromValue([][]float32{{1, -1, 0.5, 0}, {0, 0, 0, 0}, {-0.3, 0.2, 1, -1}})
	input := tensors.FromValue([][]float32{{1, 2, 3}, {0, 0, 0}, {-1, 5, 0}})
	for _, resetAfter := range []bool{true, false} {
		outputs := execGraph(ctx, func(ctx *context.Context, inputs []*Node) []*Node {
			gru := NewGRU(ctx.In("gru"), 4).ResetAfter(resetAfter)
			h := gru.Done(inputs[0], inputs[1])
			// Same weights applied twice.
			h = gru.Done(h, inputs[1])
			return []*Node{h}
		}, state, input)
		outputs[0].Shape().AssertDims(3, 4)
		// States in [-1, 1] stay in [-1, 1]: the new state interpolates the old one and a tanh candidate.
		for _, v := range tensors.CopyFlatData[float32](outputs[0]) {
			require.LessOrEqual(t, math.Abs(float64(v)), 1.0)
		}
	}
	// Variables were created once, and reused.
	var numVars int
	ctx.EnumerateVariables(func(v *context.Variable) { numVars++ })
	require.Equal(t, 4, numVars)
}

func TestSet2Set(t *testing.T) {
	spec := InputSpec{NodeFeatures: true}
	// Graph 1 is a permutation of graph 0, graph 2 is different.
	b := buildBatch(t,
		[][]float32{{1, 2, 3}, {3, 1, 2}, {-1, 0.5}},
		[][][2]int32{{}, {}, {}})
	packed, err := spec.Pack(b)
	require.NoError(t, err)
	ctx := context.New()
	outputs := execGraph(ctx, func(ctx *context.Context, inputs []*Node) []*Node {
		gs, _ := spec.Graphs(inputs)
		return []*Node{NewSet2Set(ctx.In("set2set"), 1).Steps(2).Done(gs, gs.Nodes)}
	}, packed.Inputs...)
	readout := outputs[0]
	readout.Shape().AssertDims(packed.Layout.PaddedGraphs, 2)
	values := tensors.CopyFlatData[float32](readout)
	require.InDeltaSlice(t, values[0:2], values[2:4], 1e-5)
	require.NotEqual(t, values[0:2], values[4:6])

	// The LSTM weights are shared across steps.
	var numVars int
	ctx.EnumerateVariables(func(v *context.Variable) { numVars++ })
	require.Equal(t, 3, numVars)
}
