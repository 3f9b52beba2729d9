// Package molecules holds molecules as read from disk, prepares their edges and angles, and converts a list of
// them into a ragged.Batch.
package molecules

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"runtime"

	"github.com/janpfeifer/molgnn/internal/neighbors"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Molecule is one graph: atoms are nodes, and bonds (or contacts within some distance) are edges.
// Only AtomicNumbers is required. Optional fields are either empty or have one entry per atom (per edge for
// EdgeFeatures and EdgeTypes).
type Molecule struct {
	Name string `json:"name,omitempty"`

	AtomicNumbers []int32      `json:"atomic_numbers"`
	Coordinates   [][3]float32 `json:"coordinates,omitempty"`
	NodeFeatures  [][]float32  `json:"node_features,omitempty"`

	// EdgeIndices (i, j): i is the receiving atom and j the neighbor.
	EdgeIndices  [][2]int32  `json:"edge_indices,omitempty"`
	EdgeFeatures [][]float32 `json:"edge_features,omitempty"`

	// EdgeTypes are categorical bond types (e.g.: single, double, triple, aromatic), one per edge.
	EdgeTypes []int32 `json:"edge_types,omitempty"`

	// AngleIndices (i, j, k): i is the center atom, j and k its neighbors.
	AngleIndices [][3]int32 `json:"angle_indices,omitempty"`

	GraphFeatures []float32 `json:"graph_features,omitempty"`
}

// NumAtoms in the molecule.
func (m *Molecule) NumAtoms() int { return len(m.AtomicNumbers) }

// FlatCoordinates returns the coordinates as a flat slice, 3 values per atom.
func (m *Molecule) FlatCoordinates() []float32 {
	flat := make([]float32, 0, 3*len(m.Coordinates))
	for _, xyz := range m.Coordinates {
		flat = append(flat, xyz[:]...)
	}
	return flat
}

// Validate checks the molecule fields are consistent with each other.
func (m *Molecule) Validate() error {
	n := m.NumAtoms()
	if len(m.Coordinates) > 0 && len(m.Coordinates) != n {
		return errors.Wrapf(ragged.ErrShapeMismatch, "molecule %q: %d coordinates for %d atoms", m.Name, len(m.Coordinates), n)
	}
	if _, err := rowsWidth(m.NodeFeatures, n, "node features"); err != nil {
		return errors.WithMessagef(err, "molecule %q", m.Name)
	}
	if _, err := rowsWidth(m.EdgeFeatures, len(m.EdgeIndices), "edge features"); err != nil {
		return errors.WithMessagef(err, "molecule %q", m.Name)
	}
	if len(m.EdgeTypes) > 0 && len(m.EdgeTypes) != len(m.EdgeIndices) {
		return errors.Wrapf(ragged.ErrShapeMismatch, "molecule %q: %d edge types for %d edges", m.Name, len(m.EdgeTypes), len(m.EdgeIndices))
	}
	for e, edge := range m.EdgeIndices {
		for _, idx := range edge {
			if idx < 0 || int(idx) >= n {
				return errors.Wrapf(ragged.ErrIndexOutOfRange, "molecule %q: edge #%d %v with %d atoms", m.Name, e, edge, n)
			}
		}
	}
	for a, angle := range m.AngleIndices {
		for _, idx := range angle {
			if idx < 0 || int(idx) >= n {
				return errors.Wrapf(ragged.ErrIndexOutOfRange, "molecule %q: angle #%d %v with %d atoms", m.Name, a, angle, n)
			}
		}
	}
	return nil
}

// rowsWidth returns the common width of the rows, and checks there are numRows of them (if any).
func rowsWidth(rows [][]float32, numRows int, what string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(rows) != numRows {
		return 0, errors.Wrapf(ragged.ErrShapeMismatch, "%d rows of %s, expected %d", len(rows), what, numRows)
	}
	width := len(rows[0])
	for ii, row := range rows {
		if len(row) != width {
			return 0, errors.Wrapf(ragged.ErrShapeMismatch, "%s row #%d has width %d, row #0 has width %d", what, ii, len(row), width)
		}
	}
	return width, nil
}

// ReadJSON reads molecules from r: either a JSON list of molecules, or a sequence of molecule objects (e.g.: one
// per line).
func ReadJSON(r io.Reader) ([]*Molecule, error) {
	br := bufio.NewReader(r)
	dec := json.NewDecoder(br)
	if first, err := peekNonSpace(br); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading molecules")
	} else if first == '[' {
		var mols []*Molecule
		if err := dec.Decode(&mols); err != nil {
			return nil, errors.Wrap(err, "decoding list of molecules")
		}
		return mols, nil
	}
	var mols []*Molecule
	for {
		mol := &Molecule{}
		err := dec.Decode(mol)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding molecule #%d", len(mols))
		}
		mols = append(mols, mol)
	}
	return mols, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c, br.UnreadByte()
	}
}

// Prepare builds the edges (and edge features) and angles of the molecules according to cfg, in parallel.
//
// Edges built from the distances replace the ones of the molecule, and their features are set to the distance.
// Their edge types are dropped, since contacts are not bonds.
// Molecules are modified in place. Prepare stops at the first error, or if ctx is cancelled.
func Prepare(ctx context.Context, mols []*Molecule, cfg neighbors.Config, parallelism int) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.MaxDistance == 0 && !cfg.Angles {
		return nil
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	wg, ctx := errgroup.WithContext(ctx)
	wg.SetLimit(parallelism)
	for molIdx, mol := range mols {
		wg.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.WithMessagef(prepareMolecule(mol, cfg), "molecule #%d %q", molIdx, mol.Name)
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}
	klog.V(1).Infof("molecules: prepared %d molecules with %+v", len(mols), cfg)
	return nil
}

func prepareMolecule(mol *Molecule, cfg neighbors.Config) error {
	if err := mol.Validate(); err != nil {
		return err
	}
	if cfg.MaxDistance > 0 && len(mol.Coordinates) == 0 {
		return errors.Wrap(ragged.ErrShapeMismatch, "building edges from distances requires coordinates")
	}
	coords := mol.FlatCoordinates()
	if len(coords) == 0 {
		coords = make([]float32, 3*mol.NumAtoms())
	}
	edges, angles, err := cfg.Build(coords, mol.EdgeIndices)
	if err != nil {
		return err
	}
	if cfg.MaxDistance > 0 {
		mol.EdgeIndices = edges
		mol.EdgeTypes = nil
		mol.EdgeFeatures = make([][]float32, len(edges))
		for e, edge := range edges {
			mol.EdgeFeatures[e] = []float32{neighbors.Distance(coords, int(edge[0]), int(edge[1]))}
		}
	}
	if cfg.Angles {
		mol.AngleIndices = angles
	}
	return nil
}
