package ragged

import (
	"slices"

	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/pkg/errors"
)

// Axis identifies the kind of rows of a field: all fields on the same axis share the same Partition.
type Axis int

//go:generate go tool enumer -type=Axis -trimprefix=Axis -transform=snake -values -text -json -yaml batch.go

const (
	AxisNodes Axis = iota
	AxisEdges
	AxisAngles
	AxisGraphs
)

// Names of the standard fields of a molecular batch.
const (
	AtomicNumbers = "atomic_numbers" // int32, width 1, AxisNodes.
	NodeFeatures  = "node_features"  // float32, AxisNodes.
	Coordinates   = "coordinates"    // float32, width 3, AxisNodes.
	EdgeFeatures  = "edge_features"  // float32, AxisEdges.
	EdgeTypes     = "edge_types"     // int32, width 1, AxisEdges: categorical bond types.
	GraphFeatures = "graph_features" // float32, AxisGraphs.
	EdgeIndices   = "edge_indices"   // Tuples of arity 2, AxisEdges.
	AngleIndices  = "angle_indices"  // Tuples of arity 3, AxisAngles.
)

// Batch is an ordered collection of graphs, with their fields stored flat per axis.
//
// The partition of the nodes axis is given at creation, and the graphs axis always has one row per graph.
// The edges and angles axes take the partition of the first field or tuples registered on them.
// Every field registered afterward on the same axis must match it exactly.
//
// A Batch is built once and then only read: it's safe to use concurrently after it's built.
type Batch struct {
	partitions map[Axis]Partition
	float32s   map[string]*Field[float32]
	int32s     map[string]*Field[int32]
	axes       map[string]Axis
	edges      *Tuples
	angles     *Tuples
}

// NewBatch creates an empty batch for graphs with the given nodes partition.
func NewBatch(nodes Partition) *Batch {
	return &Batch{
		partitions: map[Axis]Partition{
			AxisNodes:  nodes,
			AxisGraphs: UniformPartition(nodes.NumGraphs(), 1),
		},
		float32s: make(map[string]*Field[float32]),
		int32s:   make(map[string]*Field[int32]),
		axes:     make(map[string]Axis),
	}
}

// NumGraphs in the batch.
func (b *Batch) NumGraphs() int { return b.partitions[AxisNodes].NumGraphs() }

// Partition of the given axis. The second value is false if nothing was registered on the axis yet.
func (b *Batch) Partition(axis Axis) (Partition, bool) {
	p, found := b.partitions[axis]
	return p, found
}

// Nodes partition.
func (b *Batch) Nodes() Partition { return b.partitions[AxisNodes] }

// setAxisPartition registers p for the axis, or checks that it matches the one already registered.
func (b *Batch) setAxisPartition(axis Axis, p Partition, what string) error {
	if p.NumGraphs() != b.NumGraphs() {
		return errors.Wrapf(ErrPartitionMismatch, "%s has %d graphs, batch has %d graphs", what, p.NumGraphs(), b.NumGraphs())
	}
	current, found := b.partitions[axis]
	if !found {
		b.partitions[axis] = p
		return nil
	}
	return current.checkSame(p, what+" on axis "+axis.String())
}

func (b *Batch) checkNewName(name string) error {
	if _, found := b.axes[name]; found {
		return errors.Errorf("field %q already registered in batch", name)
	}
	return nil
}

// AddFloat32 registers a float32 field on the axis.
// It fails with ErrPartitionMismatch if the field's partition disagrees with the axis'.
func (b *Batch) AddFloat32(axis Axis, f *Field[float32]) error {
	if err := b.checkNewName(f.Name); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if err := b.setAxisPartition(axis, f.Partition, "field "+f.Name); err != nil {
		return err
	}
	b.float32s[f.Name] = f
	b.axes[f.Name] = axis
	return nil
}

// AddInt32 registers an int32 field on the axis.
// It fails with ErrPartitionMismatch if the field's partition disagrees with the axis'.
func (b *Batch) AddInt32(axis Axis, f *Field[int32]) error {
	if err := b.checkNewName(f.Name); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if err := b.setAxisPartition(axis, f.Partition, "field "+f.Name); err != nil {
		return err
	}
	b.int32s[f.Name] = f
	b.axes[f.Name] = axis
	return nil
}

// SetEdgeIndices registers the edges (2-tuples) of the batch, which defines the edges axis partition.
// Positions are validated against the nodes partition.
func (b *Batch) SetEdgeIndices(edges *Tuples) error {
	return b.setTuples(AxisEdges, 2, edges, &b.edges)
}

// SetAngleIndices registers the angle triples (3-tuples) of the batch, which defines the angles axis partition.
// Positions are validated against the nodes partition.
func (b *Batch) SetAngleIndices(angles *Tuples) error {
	return b.setTuples(AxisAngles, 3, angles, &b.angles)
}

func (b *Batch) setTuples(axis Axis, arity int, tuples *Tuples, target **Tuples) error {
	if *target != nil {
		return errors.Errorf("tuples for axis %s already registered in batch", axis)
	}
	if tuples.Arity != arity {
		return errors.Wrapf(ErrShapeMismatch, "tuples %q for axis %s must have arity %d, got %d",
			tuples.Name, axis, arity, tuples.Arity)
	}
	if _, err := Resolve(tuples, b.Nodes()); err != nil {
		return err
	}
	if err := b.setAxisPartition(axis, tuples.Partition, "tuples "+tuples.Name); err != nil {
		return err
	}
	*target = tuples
	return nil
}

// EdgeIndices returns the edges of the batch, or nil if none were set.
func (b *Batch) EdgeIndices() *Tuples { return b.edges }

// AngleIndices returns the angle triples of the batch, or nil if none were set.
func (b *Batch) AngleIndices() *Tuples { return b.angles }

// Float32 returns the float32 field with the given name, or nil if not registered.
func (b *Batch) Float32(name string) *Field[float32] { return b.float32s[name] }

// Int32 returns the int32 field with the given name, or nil if not registered.
func (b *Batch) Int32(name string) *Field[int32] { return b.int32s[name] }

// Axis of the field with the given name.
func (b *Batch) Axis(name string) (Axis, bool) {
	axis, found := b.axes[name]
	return axis, found
}

// FieldNames returns the names of all fields registered, sorted.
func (b *Batch) FieldNames() []string {
	return slices.Collect(generics.SortedKeys(b.axes))
}

// Validate re-checks all the invariants of the batch: every field fits its values and matches its axis
// partition, and every tuple references valid nodes of its own graph.
func (b *Batch) Validate() error {
	for _, name := range b.FieldNames() {
		axis := b.axes[name]
		var p Partition
		if f, found := b.float32s[name]; found {
			if err := f.Validate(); err != nil {
				return err
			}
			p = f.Partition
		} else {
			f := b.int32s[name]
			if err := f.Validate(); err != nil {
				return err
			}
			p = f.Partition
		}
		if err := b.partitions[axis].checkSame(p, "field "+name); err != nil {
			return err
		}
	}
	for _, tuples := range []*Tuples{b.edges, b.angles} {
		if tuples == nil {
			continue
		}
		if _, err := Resolve(tuples, b.Nodes()); err != nil {
			return err
		}
	}
	return nil
}

// ResolveEdges returns the edges translated to flat node rows.
func (b *Batch) ResolveEdges() (*Resolved, error) {
	if b.edges == nil {
		return nil, errors.New("batch has no edge indices")
	}
	return Resolve(b.edges, b.Nodes())
}

// ResolveAngles returns the angle triples translated to flat node rows.
func (b *Batch) ResolveAngles() (*Resolved, error) {
	if b.angles == nil {
		return nil, errors.New("batch has no angle indices")
	}
	return Resolve(b.angles, b.Nodes())
}
