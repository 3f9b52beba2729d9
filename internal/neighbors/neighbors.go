// Package neighbors builds the edges and angle triples of molecules from their geometry, on the host.
//
// Edges follow the batch convention: slot 0 is the center (receiving) atom i and slot 1 its neighbor j.
package neighbors

import (
	"github.com/chewxy/math32"
	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of the neighbors construction of a molecule.
type Config struct {
	// MaxDistance includes the pairs of atoms closer than (or at) this distance as edges. If 0, the edges of
	// the molecule are kept as they are.
	MaxDistance float32

	// MaxNeighbours limits the number of edges per center atom to the closest ones. If 0, there is no limit.
	MaxNeighbours int

	// SelfLoops includes the edge (i, i) for each atom.
	SelfLoops bool

	// Angles builds the angle triples from the edges.
	Angles bool

	// AllAngleOrders includes both (i, j, k) and (i, k, j).
	AllAngleOrders bool
}

// Validate the configuration.
func (c Config) Validate() error {
	if c.MaxDistance < 0 || math32.IsNaN(c.MaxDistance) {
		return errors.Errorf("invalid neighbors max distance %g", c.MaxDistance)
	}
	if c.MaxNeighbours < 0 {
		return errors.Errorf("invalid neighbors max neighbours %d", c.MaxNeighbours)
	}
	return nil
}

// Distance between atoms i and j, given the flat coordinates (3 per atom).
func Distance(coords []float32, i, j int) float32 {
	dx := coords[3*i] - coords[3*j]
	dy := coords[3*i+1] - coords[3*j+1]
	dz := coords[3*i+2] - coords[3*j+2]
	return math32.Sqrt(dx*dx + dy*dy + dz*dz)
}

// RangeIndices returns the edges (i, j) of all pairs of atoms within maxDistance of each other, given their flat
// coordinates (3 per atom).
//
// Edges are sorted by center i and, for each center, by distance (ties keep the order of j). If maxNeighbours > 0
// only the closest maxNeighbours edges of each center are kept. Self loops (i, i) are included if selfLoops is
// set, and they count towards maxNeighbours.
func RangeIndices(coords []float32, maxDistance float32, maxNeighbours int, selfLoops bool) [][2]int32 {
	numAtoms := len(coords) / 3
	var edges [][2]int32
	var truncated int
	candidates := make([]int, 0, numAtoms)
	distances := make([]float32, 0, numAtoms)
	for i := range numAtoms {
		candidates = candidates[:0]
		distances = distances[:0]
		for j := range numAtoms {
			if i == j && !selfLoops {
				continue
			}
			d := Distance(coords, i, j)
			if d <= maxDistance {
				candidates = append(candidates, j)
				distances = append(distances, d)
			}
		}
		order := generics.SliceOrdering(distances, false)
		if maxNeighbours > 0 && len(order) > maxNeighbours {
			truncated += len(order) - maxNeighbours
			order = order[:maxNeighbours]
		}
		for _, idx := range order {
			edges = append(edges, [2]int32{int32(i), int32(candidates[idx])})
		}
	}
	if truncated > 0 {
		klog.Warningf("neighbors: %d edges within distance %g dropped by max_neighbours=%d", truncated, maxDistance, maxNeighbours)
	}
	return edges
}

// AngleIndices returns the angle triples (i, j, k) for each center i and pair of distinct neighbors j != k, where
// (i, j) and (i, k) are edges. Self loops and repeated edges are ignored.
//
// Triples are sorted by center and follow the order in which the neighbors first appear in edges. If allOrders is
// false only (i, j, k) is included, with j appearing before k. Otherwise (i, k, j) is included as well.
//
// It fails with ragged.ErrIndexOutOfRange if an edge refers to an atom outside [0, numNodes).
func AngleIndices(edges [][2]int32, numNodes int, allOrders bool) ([][3]int32, error) {
	adjacency := make([][]int32, numNodes)
	seen := generics.MakeSet[[2]int32](len(edges))
	for e, edge := range edges {
		for _, idx := range edge {
			if idx < 0 || int(idx) >= numNodes {
				return nil, errors.Wrapf(ragged.ErrIndexOutOfRange, "edge #%d (%d, %d) with %d atoms", e, edge[0], edge[1], numNodes)
			}
		}
		if edge[0] == edge[1] || seen.Has(edge) {
			continue
		}
		seen.Insert(edge)
		adjacency[edge[0]] = append(adjacency[edge[0]], edge[1])
	}
	var angles [][3]int32
	for i, neighbors := range adjacency {
		for jj, j := range neighbors {
			for kk, k := range neighbors {
				if jj == kk || (!allOrders && kk < jj) {
					continue
				}
				angles = append(angles, [3]int32{int32(i), j, k})
			}
		}
	}
	return angles, nil
}

// Build returns the edges and angle triples of a molecule with the given coordinates, according to the
// configuration. The given edges are used when cfg.MaxDistance is 0.
func (c Config) Build(coords []float32, edges [][2]int32) ([][2]int32, [][3]int32, error) {
	if len(coords)%3 != 0 {
		return nil, nil, errors.Wrapf(ragged.ErrShapeMismatch, "%d coordinates are not 3 per atom", len(coords))
	}
	if c.MaxDistance > 0 {
		edges = RangeIndices(coords, c.MaxDistance, c.MaxNeighbours, c.SelfLoops)
	}
	if !c.Angles {
		return edges, nil, nil
	}
	angles, err := AngleIndices(edges, len(coords)/3, c.AllAngleOrders)
	if err != nil {
		return nil, nil, err
	}
	return edges, angles, nil
}
