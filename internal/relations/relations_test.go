package relations

import (
	"testing"

	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table, err := NewTable([]int{1, 6, 8})
	require.NoError(t, err)
	require.Equal(t, 3, table.NumRelations())
	id, err := table.Lookup(8)
	require.NoError(t, err)
	require.Equal(t, int32(2), id)

	for _, z := range []int32{7, -1, MaxAtomicNumber, 200} {
		id, err = table.Lookup(z)
		require.Truef(t, errors.Is(err, ragged.ErrUnmappedRelation), "z=%d", z)
		require.Equal(t, Unmapped, id)
	}

	_, err = NewTable([]int{1, 6, 1})
	require.Error(t, err)
	_, err = NewTable([]int{1, 96})
	require.True(t, errors.Is(err, ragged.ErrUnmappedRelation))
}

func TestPairTable(t *testing.T) {
	pairs := DefaultPairs([]int{8, 1, 6})
	require.Equal(t, []Pair{{1, 1}, {1, 6}, {1, 8}, {6, 6}, {6, 8}, {8, 8}}, pairs)

	table, err := NewPairTable(pairs, false)
	require.NoError(t, err)
	require.Equal(t, 6, table.NumRelations())
	a, err := table.Lookup(6, 1)
	require.NoError(t, err)
	b, err := table.Lookup(1, 6)
	require.NoError(t, err)
	require.Equal(t, int32(1), a)
	require.Equal(t, a, b)

	ordered, err := NewPairTable(pairs, true)
	require.NoError(t, err)
	_, err = ordered.Lookup(6, 1)
	require.True(t, errors.Is(err, ragged.ErrUnmappedRelation))

	// Both orders of a pair in a symmetric table.
	_, err = NewPairTable([]Pair{{1, 6}, {6, 1}}, false)
	require.Error(t, err)
	_, err = NewPairTable([]Pair{{1, 6}, {6, 1}}, true)
	require.NoError(t, err)
}

func TestEdgeAndAngleRelations(t *testing.T) {
	nodes, _ := ragged.NewPartition([]int{2, 3})
	atomicNumbers := []int32{1, 6, 8, 1, 1}
	edges, _ := ragged.TuplesFromGraphs(ragged.EdgeIndices, [][][2]int32{{{0, 1}}, {{0, 1}, {1, 2}}})
	r, err := ragged.Resolve(edges, nodes)
	require.NoError(t, err)

	table, _ := NewTable([]int{1, 6, 8})
	ids, err := EdgeRelations(table, atomicNumbers, r, 1)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 0, 0}, ids)

	angles, _ := ragged.TuplesFromGraphs(ragged.AngleIndices, [][][3]int32{{}, {{1, 0, 2}, {0, 1, 2}}})
	r, err = ragged.Resolve(angles, nodes)
	require.NoError(t, err)
	pairTable, _ := NewPairTable(DefaultPairs([]int{1, 6, 8}), false)
	ids, err = AngleRelations(pairTable, atomicNumbers, r, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []int32{2, 0}, ids) // (8, 1) -> (1, 8); (1, 1)

	// Element not in the mapping fails, instead of being used as an index.
	table, _ = NewTable([]int{1, 6})
	_, err = EdgeRelations(table, atomicNumbers, r, 0)
	require.True(t, errors.Is(err, ragged.ErrUnmappedRelation))
}
