package ragged

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	p, err := NewPartition([]int{2, 0, 3})
	require.NoError(t, err)
	require.Equal(t, 3, p.NumGraphs())
	require.Equal(t, 5, p.NumRows())
	require.Equal(t, []int{0, 2, 2, 5}, p.RowSplits())
	require.Equal(t, []int{2, 0, 3}, p.Lengths())
	require.Equal(t, 3, p.MaxLength())
	require.Equal(t, []int32{0, 0, 2, 2, 2}, p.RowIDs())
	start, end := p.Rows(1)
	require.Equal(t, start, end)
	require.Equal(t, 2, p.Offset(2))

	// Row splits are the exclusive prefix sum of the lengths, and sum(lengths) = total rows.
	for _, lengths := range [][]int{{}, {0}, {1, 1, 1}, {7, 0, 0, 4, 1}} {
		p, err := NewPartition(lengths)
		require.NoError(t, err)
		splits := p.RowSplits()
		require.Len(t, splits, len(lengths)+1)
		var sum int
		for g, length := range lengths {
			require.Equal(t, sum, splits[g])
			sum += length
		}
		require.Equal(t, sum, p.NumRows())
		require.Equal(t, sum, splits[len(lengths)])

		p2, err := PartitionFromRowSplits(splits)
		require.NoError(t, err)
		require.True(t, p.Equal(p2))
	}

	// The zero value is an empty batch.
	var empty Partition
	require.Equal(t, 0, empty.NumRows())
	require.Equal(t, []int{0}, empty.RowSplits())
	require.Equal(t, 0, empty.MaxLength())
}

func TestPartitionErrors(t *testing.T) {
	_, err := NewPartition([]int{1, -1})
	require.True(t, errors.Is(err, ErrPartitionMismatch))

	_, err = PartitionFromRowSplits(nil)
	require.True(t, errors.Is(err, ErrPartitionMismatch))
	_, err = PartitionFromRowSplits([]int{1, 3})
	require.True(t, errors.Is(err, ErrPartitionMismatch))
	_, err = PartitionFromRowSplits([]int{0, 3, 2})
	require.True(t, errors.Is(err, ErrPartitionMismatch))
}

func TestPartitionConcat(t *testing.T) {
	p0, _ := NewPartition([]int{2})
	p1, _ := NewPartition([]int{3, 1})
	p := p0.Concat(p1)
	require.Equal(t, []int{2, 3, 1}, p.Lengths())
	require.Equal(t, []int{0, 2, 5, 6}, p.RowSplits())
	require.Equal(t, []int{1, 1, 1}, UniformPartition(3, 1).Lengths())
}

func TestPaddedSize(t *testing.T) {
	wantPaddedSizes := []int{1, 8, 8, 8, 8, 8, 8, 8, 12, 12, 12, 12, 18, 18, 18, 18, 18, 18, 27, 27, 27, 27, 27, 27, 27, 27, 27, 41, 41, 41, 41}
	gotPaddedSizes := make([]int, len(wantPaddedSizes))
	for ii := range wantPaddedSizes {
		gotPaddedSizes[ii] = PaddedSize(ii + 1)
	}
	require.Equal(t, wantPaddedSizes, gotPaddedSizes)
	require.Equal(t, 8, PaddedSize(0))
}
