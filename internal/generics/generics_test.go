package generics

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"edges": 1, "angles": 5, "nodes": 3}
	// Map iteration is deliberately non-deterministic, so run it a few times.
	want := []string{"angles", "edges", "nodes"}
	for range 100 {
		got := slices.Collect(SortedKeys(m))
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestSliceMap(t *testing.T) {
	got := SliceMap([]int{1, 6, 8}, func(z int) float32 { return float32(z) / 2 })
	assert.Equal(t, []float32{0.5, 3, 4}, got)
}

func TestSet(t *testing.T) {
	s := MakeSet[int](10)
	assert.Len(t, s, 0)

	s.Insert(1, 8)
	assert.Len(t, s, 2)
	assert.True(t, s.Has(1))
	assert.True(t, s.Has(8))
	assert.False(t, s.Has(6))
}

func TestSliceOrdering(t *testing.T) {
	distances := []float32{1.5, 0.9, 1.1}
	assert.Equal(t, []int{1, 2, 0}, SliceOrdering(distances, false))
	assert.Equal(t, []int{0, 2, 1}, SliceOrdering(distances, true))
	// Ties keep the original order.
	assert.Equal(t, []int{0, 2, 1}, SliceOrdering([]int64{0, 1, 0}, false))
}
