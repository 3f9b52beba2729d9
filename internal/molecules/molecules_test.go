package molecules

import (
	"context"
	"strings"
	"testing"

	"github.com/janpfeifer/molgnn/internal/neighbors"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const waterAndMethane = `
{"name": "water", "atomic_numbers": [8, 1, 1],
 "coordinates": [[0, 0, 0], [0.96, 0, 0], [-0.24, 0.93, 0]],
 "edge_indices": [[0, 1], [1, 0], [0, 2], [2, 0]],
 "graph_features": [1.5]}
{"name": "methane", "atomic_numbers": [6, 1, 1, 1, 1],
 "coordinates": [[0, 0, 0], [0.63, 0.63, 0.63], [-0.63, -0.63, 0.63], [-0.63, 0.63, -0.63], [0.63, -0.63, -0.63]],
 "graph_features": [2.5]}
`

func TestReadJSON(t *testing.T) {
	mols, err := ReadJSON(strings.NewReader(waterAndMethane))
	require.NoError(t, err)
	require.Len(t, mols, 2)
	require.Equal(t, "methane", mols[1].Name)
	require.Equal(t, 5, mols[1].NumAtoms())
	require.Len(t, mols[0].EdgeIndices, 4)
	require.Equal(t, []float32{0.96, 0, 0}, mols[0].FlatCoordinates()[3:6])

	list, err := ReadJSON(strings.NewReader(` [{"atomic_numbers": [1]}, {"atomic_numbers": [1, 1]}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)

	empty, err := ReadJSON(strings.NewReader("  \n"))
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = ReadJSON(strings.NewReader(`{"atomic_numbers": [1`))
	require.Error(t, err)
}

func TestBuildBatch(t *testing.T) {
	mols, err := ReadJSON(strings.NewReader(waterAndMethane))
	require.NoError(t, err)
	b, err := BuildBatch(mols)
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	require.Equal(t, 2, b.NumGraphs())
	require.Equal(t, []int{3, 5}, b.Nodes().Lengths())
	edges, _ := b.Partition(ragged.AxisEdges)
	require.Equal(t, []int{4, 0}, edges.Lengths())
	require.Equal(t, []float32{1.5, 2.5}, b.Float32(ragged.GraphFeatures).Values)
	require.Equal(t, 3, b.Float32(ragged.Coordinates).Width)
	require.Nil(t, b.AngleIndices())

	// Bond types of water, and none for methane (which has no edges).
	mols[0].EdgeTypes = []int32{1, 1, 1, 1}
	b, err = BuildBatch(mols)
	require.NoError(t, err)
	types := b.Int32(ragged.EdgeTypes)
	require.NotNil(t, types)
	require.Equal(t, []int{4, 0}, types.Partition.Lengths())
	mols[0].EdgeTypes = []int32{1, 1}
	_, err = BuildBatch(mols)
	require.True(t, errors.Is(err, ragged.ErrShapeMismatch))
	mols[0].EdgeTypes = nil

	// Missing coordinates in the second molecule.
	mols[1].Coordinates = nil
	_, err = BuildBatch(mols)
	require.True(t, errors.Is(err, ragged.ErrPartitionMismatch), "got %+v", err)

	// Edge out of range.
	mols[0].EdgeIndices[1] = [2]int32{3, 0}
	_, err = BuildBatch(mols)
	require.True(t, errors.Is(err, ragged.ErrIndexOutOfRange))
}

func TestPrepare(t *testing.T) {
	mols, err := ReadJSON(strings.NewReader(waterAndMethane))
	require.NoError(t, err)
	mols[0].EdgeTypes = []int32{1, 1, 1, 1}
	cfg := neighbors.Config{MaxDistance: 1.2, Angles: true}
	require.NoError(t, Prepare(context.Background(), mols, cfg, 2))

	// Water: O-H bonds only, the H-H distance is ~1.5. Bond types don't apply to the new edges.
	require.Len(t, mols[0].EdgeIndices, 4)
	require.Len(t, mols[0].EdgeFeatures, 4)
	require.Nil(t, mols[0].EdgeTypes)
	require.InDelta(t, 0.96, mols[0].EdgeFeatures[0][0], 1e-6)
	require.Equal(t, [][3]int32{{0, 1, 2}}, mols[0].AngleIndices)

	// Methane: C-H distances are ~1.09, H-H ~1.78.
	require.Len(t, mols[1].EdgeIndices, 8)
	require.Len(t, mols[1].AngleIndices, 6)

	b, err := BuildBatch(mols)
	require.NoError(t, err)
	angles, _ := b.Partition(ragged.AxisAngles)
	require.Equal(t, []int{1, 6}, angles.Lengths())
	require.Equal(t, 1, b.Float32(ragged.EdgeFeatures).Width)

	// Distances require coordinates.
	mols[1].Coordinates = nil
	err = Prepare(context.Background(), mols, cfg, 0)
	require.True(t, errors.Is(err, ragged.ErrShapeMismatch))

	// Cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, Prepare(ctx, mols[:1], cfg, 1))
}
