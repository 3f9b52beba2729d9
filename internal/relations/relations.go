// Package relations maps chemical elements (atomic numbers) to dense relation ids.
//
// Relation ids select which set of learned parameters applies to an edge or angle, and which output channel
// its contribution is pooled into. Tables are bounded direct-lookup arrays indexed by atomic number, built once
// and read-only afterward.
//
// Unmapped elements are stored as the Unmapped sentinel, but the sentinel is never handed out as an index:
// every lookup of an unmapped element fails with ragged.ErrUnmappedRelation.
package relations

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// MaxAtomicNumber is the size of the lookup tables: valid atomic numbers are in [0, MaxAtomicNumber).
const MaxAtomicNumber = 96

// Unmapped is the sentinel stored in the tables for elements without a relation.
const Unmapped int32 = -1

// Table maps atomic numbers to relation ids: the position of the element in the element mapping.
type Table struct {
	elements []int
	reverse  [MaxAtomicNumber]int32
}

func checkAtomicNumber(z int) error {
	if z < 0 || z >= MaxAtomicNumber {
		return errors.Wrapf(ragged.ErrUnmappedRelation, "atomic number %d out of range [0, %d)", z, MaxAtomicNumber)
	}
	return nil
}

// NewTable creates a table where elements[i] maps to relation i.
// Elements must be valid atomic numbers and can't be repeated.
func NewTable(elements []int) (*Table, error) {
	if len(elements) == 0 {
		return nil, errors.New("element mapping is empty")
	}
	t := &Table{elements: slices.Clone(elements)}
	for ii := range t.reverse {
		t.reverse[ii] = Unmapped
	}
	for ii, z := range elements {
		if err := checkAtomicNumber(z); err != nil {
			return nil, err
		}
		if t.reverse[z] != Unmapped {
			return nil, errors.Errorf("atomic number %d repeated in element mapping %v", z, elements)
		}
		t.reverse[z] = int32(ii)
	}
	return t, nil
}

// NumRelations is the number of elements mapped.
func (t *Table) NumRelations() int { return len(t.elements) }

// Lookup returns the relation id of the atomic number z, or an error wrapping ragged.ErrUnmappedRelation.
func (t *Table) Lookup(z int32) (int32, error) {
	if err := checkAtomicNumber(int(z)); err != nil {
		return Unmapped, err
	}
	id := t.reverse[z]
	if id == Unmapped {
		return Unmapped, errors.Wrapf(ragged.ErrUnmappedRelation, "atomic number %d not in element mapping %v", z, t.elements)
	}
	return id, nil
}

// Pair of atomic numbers.
type Pair [2]int

// DefaultPairs returns all unordered pairs of the elements: each pair sorted, and the list sorted and unique.
func DefaultPairs(elements []int) []Pair {
	pairs := make([]Pair, 0, len(elements)*len(elements))
	for _, zj := range elements {
		for _, zk := range elements {
			pairs = append(pairs, Pair{min(zj, zk), max(zj, zk)})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return slices.Compact(pairs)
}

// PairTable maps pairs of atomic numbers to relation ids: the position of the pair in the pair mapping.
type PairTable struct {
	pairs         []Pair
	keepPairOrder bool
	reverse       [MaxAtomicNumber][MaxAtomicNumber]int32
}

// NewPairTable creates a table where pairs[i] maps to relation i.
//
// If keepPairOrder is false, the table is symmetric: (zk, zj) maps to the same relation as (zj, zk), and a
// pair mapping listing both orders of the same pair is an error.
func NewPairTable(pairs []Pair, keepPairOrder bool) (*PairTable, error) {
	if len(pairs) == 0 {
		return nil, errors.New("element pair mapping is empty")
	}
	t := &PairTable{pairs: slices.Clone(pairs), keepPairOrder: keepPairOrder}
	for ii := range t.reverse {
		for jj := range t.reverse[ii] {
			t.reverse[ii][jj] = Unmapped
		}
	}
	set := func(zj, zk int, id int32) error {
		if t.reverse[zj][zk] != Unmapped {
			return errors.Errorf("element pair (%d, %d) repeated in element pair mapping", zj, zk)
		}
		t.reverse[zj][zk] = id
		return nil
	}
	for ii, pair := range pairs {
		for _, z := range pair {
			if err := checkAtomicNumber(z); err != nil {
				return nil, err
			}
		}
		if err := set(pair[0], pair[1], int32(ii)); err != nil {
			return nil, err
		}
		if !keepPairOrder && pair[0] != pair[1] {
			if err := set(pair[1], pair[0], int32(ii)); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// NumRelations is the number of pairs mapped.
func (t *PairTable) NumRelations() int { return len(t.pairs) }

// KeepPairOrder returns whether (zj, zk) and (zk, zj) are different relations.
func (t *PairTable) KeepPairOrder() bool { return t.keepPairOrder }

// Lookup returns the relation id of the pair (zj, zk), or an error wrapping ragged.ErrUnmappedRelation.
func (t *PairTable) Lookup(zj, zk int32) (int32, error) {
	for _, z := range []int32{zj, zk} {
		if err := checkAtomicNumber(int(z)); err != nil {
			return Unmapped, err
		}
	}
	id := t.reverse[zj][zk]
	if id == Unmapped {
		return Unmapped, errors.Wrapf(ragged.ErrUnmappedRelation, "element pair (%d, %d) not in element pair mapping", zj, zk)
	}
	return id, nil
}

// String implements fmt.Stringer.
func (t *PairTable) String() string {
	return fmt.Sprintf("PairTable(%v, keepPairOrder=%v)", t.pairs, t.keepPairOrder)
}

// EdgeRelations returns the relation id of the node referenced in the given slot of each resolved tuple.
// atomicNumbers is the flat per-node field of the batch.
func EdgeRelations(t *Table, atomicNumbers []int32, resolved *ragged.Resolved, slot int) ([]int32, error) {
	ids := make([]int32, resolved.NumTuples())
	for ii := range ids {
		z := atomicNumbers[resolved.Tuple(ii)[slot]]
		id, err := t.Lookup(z)
		if err != nil {
			return nil, errors.WithMessagef(err, "graph #%d, tuple #%d", resolved.Graph[ii], ii)
		}
		ids[ii] = id
	}
	return ids, nil
}

// AngleRelations returns the pair relation id of the nodes referenced in slots slotJ and slotK of each
// resolved tuple.
func AngleRelations(t *PairTable, atomicNumbers []int32, resolved *ragged.Resolved, slotJ, slotK int) ([]int32, error) {
	ids := make([]int32, resolved.NumTuples())
	for ii := range ids {
		tuple := resolved.Tuple(ii)
		id, err := t.Lookup(atomicNumbers[tuple[slotJ]], atomicNumbers[tuple[slotK]])
		if err != nil {
			return nil, errors.WithMessagef(err, "graph #%d, tuple #%d", resolved.Graph[ii], ii)
		}
		ids[ii] = id
	}
	return ids, nil
}
