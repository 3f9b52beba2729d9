package acsf

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/janpfeifer/molgnn/internal/relations"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RadialConfig configures the radial symmetry functions:
//
//	G_i[zj, m] = Σ_j exp(-η·(r_ij - μ)²) · fc(r_ij)
//
// summed separately for each element zj of the neighbor j.
type RadialConfig struct {
	// ElementMapping lists the atomic numbers of the N elements considered. Neighbors of any other element
	// fail with ragged.ErrUnmappedRelation.
	ElementMapping []int

	// Params holds the flat values of (η, μ, Rc) shaped Dims: (N, m, 3), or (N, N, m, 3) for parameters
	// that also depend on the element of the center atom i.
	Params []float32
	Dims   []int

	// AddEps adds Epsilon to the squared distances.
	AddEps  bool
	Epsilon float64

	// Trainable makes the parameters trainable.
	Trainable bool
}

// Radial symmetry functions. Created with NewRadial.
type Radial struct {
	cfg    RadialConfig
	table  *relations.Table
	layout *paramLayout
	params *context.Variable
}

// NewRadial validates the configuration, builds the element table and creates the parameters variable in ctx.
func NewRadial(ctx *context.Context, cfg RadialConfig) (*Radial, error) {
	table, err := relations.NewTable(cfg.ElementMapping)
	if err != nil {
		return nil, errors.WithMessage(err, "radial symmetry functions")
	}
	n := table.NumRelations()
	layout, err := newParamLayout("radial", cfg.Dims, len(cfg.Params), n, n, 3)
	if err != nil {
		return nil, err
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	r := &Radial{cfg: cfg, table: table, layout: layout}
	r.params = layout.createVariable(ctx, "eta_mu_rc", cfg.Params, cfg.Trainable)
	klog.V(1).Infof("acsf: radial symmetry functions for elements %v, parameters shaped %v", cfg.ElementMapping, cfg.Dims)
	return r, nil
}

// NumRelations is the number of neighbor elements N.
func (r *Radial) NumRelations() int { return r.table.NumRelations() }

// NumDescriptors is the number of descriptors per neighbor element, m.
func (r *Radial) NumDescriptors() int { return r.layout.numDescriptors }

// Width of the per-atom output: N*m.
func (r *Radial) Width() int { return r.NumRelations() * r.NumDescriptors() }

// SetParameters replaces the values of the parameters, with the same shape as configured.
func (r *Radial) SetParameters(values []float32) error {
	if len(values) != r.layout.size() {
		return errors.Wrapf(ragged.ErrShapeMismatch, "radial parameters shaped %v require %d values, got %d",
			r.layout.dims, r.layout.size(), len(values))
	}
	r.params.SetValue(r.layout.tensor(values))
	return nil
}

// Relations returns, for each edge of the batch, the element index of the center i (only looked up if the
// parameters are per center, otherwise 0) and of the neighbor j.
//
// It fails with ragged.ErrUnmappedRelation if an element is not in the mapping.
func (r *Radial) Relations(b *ragged.Batch) (centers, neighbors []int32, err error) {
	z, resolved, err := atomicNumbersAndTuples(b, b.ResolveEdges)
	if err != nil {
		return nil, nil, err
	}
	neighbors, err = relations.EdgeRelations(r.table, z, resolved, gnn.SlotSource)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "radial symmetry functions neighbors")
	}
	if r.layout.perCenter {
		centers, err = relations.EdgeRelations(r.table, z, resolved, gnn.SlotTarget)
		if err != nil {
			return nil, nil, errors.WithMessage(err, "radial symmetry functions centers")
		}
	} else {
		centers = make([]int32, len(neighbors))
	}
	return centers, neighbors, nil
}

// Forward computes the radial descriptors of each node, shaped [numNodes, N*m].
//
// centers and neighbors (shaped [numEdges], int32) are the element indices returned by Relations, packed.
// Graphs must have coordinates.
func (r *Radial) Forward(graphs *gnn.Graphs, centers, neighbors *Node) *Node {
	if graphs.Coordinates == nil {
		panic(errors.Wrap(ragged.ErrShapeMismatch, "radial symmetry functions require coordinates"))
	}
	g := graphs.Graph()
	coords := graphs.Coordinates
	endpoints := gnn.GatherNodes(coords, graphs.EdgeIndices, gnn.SlotTarget, gnn.SlotSource)
	rij := Distance(endpoints[0], endpoints[1], r.eps())

	params := paramsPerTuple(r.params.ValueGraph(g), r.layout, centers, neighbors) // [E, m, 3]
	eta, mu, rc := paramComponent(params, 0), paramComponent(params, 1), paramComponent(params, 2)
	values := Mul(GaussianRadial(rij, eta, mu), CutoffWeight(rij, rc))
	values = graphs.MaskEdges(values)
	pooled := gnn.RelationalPool(values, graphs.Targets(), neighbors, graphs.NumNodes(), r.NumRelations(), gnn.PoolSum)
	return graphs.MaskNodes(pooled)
}

func (r *Radial) eps() float64 {
	if r.cfg.AddEps {
		return r.cfg.Epsilon
	}
	return 0
}

// paramsPerTuple gathers the parameters of each tuple, shaped [T, m, K], from the parameters variable value
// shaped layout.flatDims().
func paramsPerTuple(params *Node, layout *paramLayout, centers, relationIDs *Node) *Node {
	indices := relationIDs
	if layout.perCenter {
		indices = Add(MulScalar(centers, layout.numRelations), relationIDs)
	}
	return Gather(params, ExpandAxes(indices, -1))
}

// atomicNumbersAndTuples returns the atomic numbers of the batch and its resolved tuples.
func atomicNumbersAndTuples(b *ragged.Batch, resolve func() (*ragged.Resolved, error)) ([]int32, *ragged.Resolved, error) {
	z := b.Int32(ragged.AtomicNumbers)
	if z == nil {
		return nil, nil, errors.Errorf("batch has no %q field", ragged.AtomicNumbers)
	}
	resolved, err := resolve()
	if err != nil {
		return nil, nil, err
	}
	return z.Values, resolved, nil
}
