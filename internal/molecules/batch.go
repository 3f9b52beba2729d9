package molecules

import (
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// BuildBatch converts the molecules to a ragged.Batch, with one graph per molecule.
//
// Atomic numbers and edge indices are always included (molecules without edges are fine). Optional fields are
// included if present in the first molecule, in which case every molecule must have them with the same width.
// Angle indices are included if any molecule has them.
func BuildBatch(mols []*Molecule) (*ragged.Batch, error) {
	if len(mols) == 0 {
		return nil, errors.New("no molecules to batch")
	}
	for ii, mol := range mols {
		if err := mol.Validate(); err != nil {
			return nil, errors.WithMessagef(err, "molecule #%d", ii)
		}
	}
	z, err := ragged.FieldFromGraphs(ragged.AtomicNumbers, perMolecule(mols, func(m *Molecule) []int32 { return m.AtomicNumbers }), 1)
	if err != nil {
		return nil, err
	}
	b := ragged.NewBatch(z.Partition)
	if err := b.AddInt32(ragged.AxisNodes, z); err != nil {
		return nil, err
	}

	edges, err := ragged.TuplesFromGraphs(ragged.EdgeIndices, perMolecule(mols, func(m *Molecule) [][2]int32 { return m.EdgeIndices }))
	if err != nil {
		return nil, err
	}
	if err := b.SetEdgeIndices(edges); err != nil {
		return nil, err
	}
	if hasAny(mols, func(m *Molecule) bool { return len(m.AngleIndices) > 0 }) {
		angles, err := ragged.TuplesFromGraphs(ragged.AngleIndices, perMolecule(mols, func(m *Molecule) [][3]int32 { return m.AngleIndices }))
		if err != nil {
			return nil, err
		}
		if err := b.SetAngleIndices(angles); err != nil {
			return nil, err
		}
	}

	first := mols[0]
	if len(first.Coordinates) > 0 {
		if err := addFloat32(b, mols, ragged.AxisNodes, ragged.Coordinates, 3, func(m *Molecule) []float32 {
			if len(m.Coordinates) != m.NumAtoms() {
				return nil
			}
			return m.FlatCoordinates()
		}); err != nil {
			return nil, err
		}
	}
	if len(first.NodeFeatures) > 0 {
		if err := addFloat32(b, mols, ragged.AxisNodes, ragged.NodeFeatures, len(first.NodeFeatures[0]), func(m *Molecule) []float32 {
			return flattenRows(m.NodeFeatures)
		}); err != nil {
			return nil, err
		}
	}
	if len(first.EdgeFeatures) > 0 {
		if err := addFloat32(b, mols, ragged.AxisEdges, ragged.EdgeFeatures, len(first.EdgeFeatures[0]), func(m *Molecule) []float32 {
			return flattenRows(m.EdgeFeatures)
		}); err != nil {
			return nil, err
		}
	}
	if len(first.EdgeTypes) > 0 {
		f, err := ragged.FieldFromGraphs(ragged.EdgeTypes, perMolecule(mols, func(m *Molecule) []int32 { return m.EdgeTypes }), 1)
		if err != nil {
			return nil, err
		}
		if err := b.AddInt32(ragged.AxisEdges, f); err != nil {
			return nil, err
		}
	}
	if len(first.GraphFeatures) > 0 {
		if err := addFloat32(b, mols, ragged.AxisGraphs, ragged.GraphFeatures, len(first.GraphFeatures), func(m *Molecule) []float32 {
			if len(m.GraphFeatures) != len(first.GraphFeatures) {
				return nil
			}
			return m.GraphFeatures
		}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func perMolecule[T any](mols []*Molecule, fn func(m *Molecule) []T) [][]T {
	values := make([][]T, len(mols))
	for ii, mol := range mols {
		values[ii] = fn(mol)
	}
	return values
}

func hasAny(mols []*Molecule, fn func(m *Molecule) bool) bool {
	for _, mol := range mols {
		if fn(mol) {
			return true
		}
	}
	return false
}

// addFloat32 adds a field with the values returned by fn for each molecule.
// Molecules with the wrong number of values make the partition of the field disagree with the axis.
func addFloat32(b *ragged.Batch, mols []*Molecule, axis ragged.Axis, name string, width int, fn func(m *Molecule) []float32) error {
	f, err := ragged.FieldFromGraphs(name, perMolecule(mols, fn), width)
	if err != nil {
		return err
	}
	return b.AddFloat32(axis, f)
}

func flattenRows(rows [][]float32) []float32 {
	var flat []float32
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return flat
}
