package acsf

import (
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/janpfeifer/molgnn/internal/relations"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

// buildMolecule creates a batch with a single molecule, connecting all pairs of atoms, and with the given angle
// triples. If angles is nil, all triples are used.
func buildMolecule(t *testing.T, z []int32, coords []float32, angles [][3]int32) *ragged.Batch {
	zField, err := ragged.FieldFromGraphs(ragged.AtomicNumbers, [][]int32{z}, 1)
	require.NoError(t, err)
	b := ragged.NewBatch(zField.Partition)
	require.NoError(t, b.AddInt32(ragged.AxisNodes, zField))
	xyz, err := ragged.FieldFromGraphs(ragged.Coordinates, [][]float32{coords}, 3)
	require.NoError(t, err)
	require.NoError(t, b.AddFloat32(ragged.AxisNodes, xyz))

	n := int32(len(z))
	var edges [][2]int32
	var allAngles [][3]int32
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			edges = append(edges, [2]int32{i, j})
			for k := range n {
				if k != i && k != j {
					allAngles = append(allAngles, [3]int32{i, j, k})
				}
			}
		}
	}
	if angles == nil {
		angles = allAngles
	}
	e, err := ragged.TuplesFromGraphs(ragged.EdgeIndices, [][][2]int32{edges})
	require.NoError(t, err)
	require.NoError(t, b.SetEdgeIndices(e))
	a, err := ragged.TuplesFromGraphs(ragged.AngleIndices, [][][3]int32{angles})
	require.NoError(t, err)
	require.NoError(t, b.SetAngleIndices(a))
	return b
}

// forward runs the model on the batch, and returns the flat output of the real rows.
func forward(t *testing.T, m *Model, b *ragged.Batch) []float32 {
	packed, err := m.CreateInputs(b)
	require.NoError(t, err)
	backend := graphtest.BuildTestBackend()
	outputs := context.ExecOnceN(backend, m.Context(), func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{m.ForwardGraph(ctx, inputs)}
	}, generics.SliceMap(packed.Inputs, func(t *tensors.Tensor) any { return t })...)
	axis, err := m.OutputAxis()
	require.NoError(t, err)
	p, _ := b.Partition(axis)
	out, err := ragged.UnpackFloat32("output", outputs[0], p)
	require.NoError(t, err)
	return out.Values
}

var (
	// Water-like molecule plus a carbon.
	testZ      = []int32{8, 1, 1, 6}
	testCoords = []float32{
		0, 0, 0,
		0.96, 0, 0,
		-0.24, 0.93, 0,
		0.5, 0.5, 1.2,
	}
	testElements = []int{1, 6, 8}
)

func testRadialConfig() *RadialConfig {
	params, dims := RadialParamsGrid(len(testElements), []float32{0.5, 2}, []float32{0, 1}, 3)
	return &RadialConfig{ElementMapping: testElements, Params: params, Dims: dims}
}

func testAngularConfig() *AngularConfig {
	params, dims := AngularParamsGrid(6, []float32{0.1}, []float32{1, 4}, []float32{-1, 1}, 3)
	return &AngularConfig{ElementMapping: testElements, Params: params, Dims: dims}
}

// rigidMotion rotates the coordinates around the z and x axes, and translates them.
func rigidMotion(coords []float32) []float32 {
	sinZ, cosZ := math32.Sincos(0.7)
	sinX, cosX := math32.Sincos(-1.1)
	moved := make([]float32, len(coords))
	for ii := 0; ii < len(coords); ii += 3 {
		x, y, z := coords[ii], coords[ii+1], coords[ii+2]
		x, y = cosZ*x-sinZ*y, sinZ*x+cosZ*y
		y, z = cosX*y-sinX*z, sinX*y+cosX*z
		moved[ii], moved[ii+1], moved[ii+2] = x+1.5, y-2, z+0.25
	}
	return moved
}

func TestCutoffWeight(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	r := tensors.FromValue([][]float32{{0}, {1}, {2.9999}, {3}, {4.5}})
	outputs := context.ExecOnceN(backend, context.New(), func(ctx *context.Context, inputs []*Node) []*Node {
		rc := MulScalar(OnesLike(inputs[0]), 3)
		return []*Node{CutoffWeight(inputs[0], rc)}
	}, r)
	fc := tensors.CopyFlatData[float32](outputs[0])
	require.InDelta(t, 1.0, fc[0], 1e-6)
	require.InDelta(t, 0.75, fc[1], 1e-6)
	require.Less(t, fc[2], float32(1e-6))
	require.Equal(t, float32(0), fc[3])
	require.Equal(t, float32(0), fc[4])
}

func TestRadial(t *testing.T) {
	// Two atoms at distance 1: H at the origin, C on the x axis.
	params := []float32{
		// H neighbors: (η, μ, Rc) x 2
		1, 0, 8, 0, 1, 8,
		// C neighbors.
		1, 0, 8, 0, 1, 8,
	}
	m, err := NewModel(&RadialConfig{ElementMapping: []int{1, 6}, Params: params, Dims: []int{2, 2, 3}}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, m.NumDescriptors())
	b := buildMolecule(t, []int32{1, 6}, []float32{0, 0, 0, 1, 0, 0}, nil)
	got := forward(t, m, b)
	fc := 0.5 * (math32.Cos(math32.Pi/8) + 1)
	want := []float32{
		// H: only C neighbors.
		0, 0, math32.Exp(-1) * fc, fc,
		// C: only H neighbors.
		math32.Exp(-1) * fc, fc, 0, 0,
	}
	require.InDeltaSlice(t, want, got, 1e-5)

	// Parameters can be updated: a cutoff shorter than the distance zeroes everything.
	shortCutoff := []float32{1, 0, 0.5, 0, 1, 0.5, 1, 0, 0.5, 0, 1, 0.5}
	require.NoError(t, m.Radial().SetParameters(shortCutoff))
	require.Equal(t, make([]float32, 8), forward(t, m, b))
	require.True(t, errors.Is(m.Radial().SetParameters(shortCutoff[:3]), ragged.ErrShapeMismatch))
}

func TestRadialPerCenter(t *testing.T) {
	// Parameters shaped (center, neighbor, m, 3): H centers and C centers use different η.
	params := []float32{
		// H centers, H and C neighbors.
		1, 0, 8, 0, 1, 8,
		1, 0, 8, 0, 1, 8,
		// C centers, H and C neighbors.
		2, 0, 8, 0, 0, 8,
		2, 0, 8, 0, 0, 8,
	}
	m, err := NewModel(&RadialConfig{ElementMapping: []int{1, 6}, Params: params, Dims: []int{2, 2, 2, 3}}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, m.NumDescriptors())
	got := forward(t, m, buildMolecule(t, []int32{1, 6}, []float32{0, 0, 0, 1, 0, 0}, nil))
	fc := 0.5 * (math32.Cos(math32.Pi/8) + 1)
	want := []float32{
		// H: only C neighbors, with the parameters of H centers.
		0, 0, math32.Exp(-1) * fc, fc,
		// C: only H neighbors, with the parameters of C centers.
		math32.Exp(-2) * fc, fc, 0, 0,
	}
	require.InDeltaSlice(t, want, got, 1e-5)
}

// angularReference computes one angular symmetry function term for the triple (xi, xj, xk) on the host.
func angularReference(xi, xj, xk [3]float32, eta, zeta, lambda, rc float32) float32 {
	dist := func(a, b [3]float32) float32 {
		var sum float32
		for d := range 3 {
			sum += (a[d] - b[d]) * (a[d] - b[d])
		}
		return math32.Sqrt(sum)
	}
	cutoff := func(r float32) float32 {
		if r >= rc {
			return 0
		}
		return 0.5 * (math32.Cos(math32.Pi*r/rc) + 1)
	}
	rij, rik, rjk := dist(xi, xj), dist(xi, xk), dist(xj, xk)
	var dot float32
	for d := range 3 {
		dot += (xi[d] - xj[d]) * (xi[d] - xk[d])
	}
	cos := dot / ((rij + DefaultEpsilon) * (rik + DefaultEpsilon))
	value := math32.Pow(2, 1-zeta) * math32.Pow(max(1+lambda*cos, 0), zeta)
	for _, r := range []float32{rij, rik, rjk} {
		value *= math32.Exp(-eta*r*r) * cutoff(r)
	}
	return value
}

func TestAngularValue(t *testing.T) {
	// Water with a single triple centered at the oxygen.
	xO, xH1, xH2 := [3]float32{0, 0, 0}, [3]float32{0.96, 0, 0}, [3]float32{-0.24, 0.93, 0}
	coords := append(append(xO[:], xH1[:]...), xH2[:]...)
	params, dims := AngularParamsGrid(3, []float32{0.1}, []float32{2}, []float32{-1, 1}, 3)
	cfg := &AngularConfig{
		ElementMapping:     []int{1, 8},
		ElementPairMapping: []relations.Pair{{1, 1}, {1, 8}, {8, 8}},
		Params:             params,
		Dims:               dims,
	}
	m, err := NewModel(nil, cfg)
	require.NoError(t, err)
	require.Equal(t, 3*2, m.NumDescriptors())
	got := forward(t, m, buildMolecule(t, []int32{8, 1, 1}, coords, [][3]int32{{0, 1, 2}}))
	want := make([]float32, 3*6)
	// Oxygen, (H, H) pair: λ=-1 then λ=1.
	want[0] = angularReference(xO, xH1, xH2, 0.1, 2, -1, 3)
	want[1] = angularReference(xO, xH1, xH2, 0.1, 2, 1, 3)
	require.Greater(t, want[1], float32(0))
	require.InDeltaSlice(t, want, got, 1e-5)
}

func TestInvariances(t *testing.T) {
	m, err := NewModel(testRadialConfig(), testAngularConfig())
	require.NoError(t, err)
	require.Equal(t, 3*4+6*4, m.NumDescriptors())
	original := forward(t, m, buildMolecule(t, testZ, testCoords, nil))
	moved := forward(t, m, buildMolecule(t, testZ, rigidMotion(testCoords), nil))
	fmt.Printf("Descriptors: %v\n", original)
	require.InDeltaSlice(t, original, moved, 1e-4)
	var nonZero int
	for _, v := range original {
		if v != 0 {
			nonZero++
		}
	}
	require.Greater(t, nonZero, 0)
}

func TestAngularPairSwap(t *testing.T) {
	m, err := NewModel(nil, testAngularConfig())
	require.NoError(t, err)
	got := forward(t, m, buildMolecule(t, testZ, testCoords, [][3]int32{{0, 1, 3}, {3, 2, 0}}))
	swapped := forward(t, m, buildMolecule(t, testZ, testCoords, [][3]int32{{0, 3, 1}, {3, 0, 2}}))
	require.InDeltaSlice(t, got, swapped, 1e-5)

	// With the pair order kept, (H, C) and (C, H) are different relations.
	cfg := testAngularConfig()
	cfg.KeepPairOrder = true
	cfg.ElementPairMapping = nil
	for _, zj := range testElements {
		for _, zk := range testElements {
			cfg.ElementPairMapping = append(cfg.ElementPairMapping, [2]int{zj, zk})
		}
	}
	cfg.Params, cfg.Dims = AngularParamsGrid(9, []float32{0.1}, []float32{1, 4}, []float32{-1, 1}, 3)
	m, err = NewModel(nil, cfg)
	require.NoError(t, err)
	got = forward(t, m, buildMolecule(t, testZ, testCoords, [][3]int32{{0, 1, 3}}))
	swapped = forward(t, m, buildMolecule(t, testZ, testCoords, [][3]int32{{0, 3, 1}}))
	require.NotEqual(t, got, swapped)
}

func TestGraphMode(t *testing.T) {
	m, err := NewModel(testRadialConfig(), testAngularConfig())
	require.NoError(t, err)
	m.Context().SetParam(ParamOutputMode, OutputGraph)
	energies := forward(t, m, buildMolecule(t, testZ, testCoords, nil))
	require.Len(t, energies, 1)
	moved := forward(t, m, buildMolecule(t, testZ, rigidMotion(testCoords), nil))
	require.InDelta(t, energies[0], moved[0], 1e-4)

	m.Context().SetParam(ParamOutputMode, "edges")
	_, err = m.OutputAxis()
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	// Oxygen has no parameters.
	m, err := NewModel(&RadialConfig{ElementMapping: []int{1, 6}, Params: make([]float32, 12), Dims: []int{2, 2, 3}}, nil)
	require.NoError(t, err)
	_, err = m.CreateInputs(buildMolecule(t, testZ, testCoords, nil))
	require.True(t, errors.Is(err, ragged.ErrUnmappedRelation), "got %+v", err)

	// Parameters don't match the declared shape, or the number of elements.
	_, err = NewModel(&RadialConfig{ElementMapping: []int{1, 6}, Params: make([]float32, 11), Dims: []int{2, 2, 3}}, nil)
	require.True(t, errors.Is(err, ragged.ErrShapeMismatch))
	_, err = NewModel(&RadialConfig{ElementMapping: []int{1, 6, 8}, Params: make([]float32, 12), Dims: []int{2, 2, 3}}, nil)
	require.True(t, errors.Is(err, ragged.ErrShapeMismatch))
	_, err = NewModel(nil, &AngularConfig{ElementMapping: []int{1, 6}, Params: make([]float32, 8), Dims: []int{2, 1, 4}})
	require.True(t, errors.Is(err, ragged.ErrShapeMismatch)) // 3 default pairs.
	_, err = NewModel(nil, nil)
	require.Error(t, err)

	// Per center parameters: (N, N, m, 3).
	params, _ := RadialParamsGrid(4, []float32{1}, []float32{0}, 3)
	m, err = NewModel(&RadialConfig{ElementMapping: []int{1, 6}, Params: params, Dims: []int{2, 2, 1, 3}}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, m.NumDescriptors())
}
