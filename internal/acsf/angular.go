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

// Slots of an angle triple (i, j, k): i is the center atom, j and k its neighbors.
const (
	SlotCenter = 0
	SlotJ      = 1
	SlotK      = 2
)

// AngularConfig configures the angular symmetry functions:
//
//	G_i[(zj,zk), m] = Σ_{j,k} 2^(1-ζ)·(1 + λ·cosθ_ijk)^ζ · exp(-η·(r_ij² + r_ik² + r_jk²)) · fc(r_ij)·fc(r_ik)·fc(r_jk)
//
// summed separately for each pair of elements (zj, zk) of the neighbors.
type AngularConfig struct {
	// ElementMapping lists the atomic numbers of the N elements considered.
	ElementMapping []int

	// ElementPairMapping lists the P pairs of atomic numbers of the neighbors. If empty, all unordered pairs
	// of ElementMapping are used, see relations.DefaultPairs.
	ElementPairMapping []relations.Pair

	// KeepPairOrder makes (zj, zk) and (zk, zj) different pairs.
	KeepPairOrder bool

	// Params holds the flat values of (η, ζ, λ, Rc) shaped Dims: (P, m, 4), or (N, P, m, 4) for
	// parameters that also depend on the element of the center atom i.
	Params []float32
	Dims   []int

	// AddEps adds Epsilon to the squared distances. Epsilon is also added to the distances when computing
	// the cosine of the angles.
	AddEps  bool
	Epsilon float64

	// Trainable makes the parameters trainable.
	Trainable bool
}

// Angular symmetry functions. Created with NewAngular.
type Angular struct {
	cfg       AngularConfig
	table     *relations.Table
	pairTable *relations.PairTable
	layout    *paramLayout
	params    *context.Variable
}

// NewAngular validates the configuration, builds the element and pair tables and creates the parameters
// variable in ctx.
func NewAngular(ctx *context.Context, cfg AngularConfig) (*Angular, error) {
	table, err := relations.NewTable(cfg.ElementMapping)
	if err != nil {
		return nil, errors.WithMessage(err, "angular symmetry functions")
	}
	pairs := cfg.ElementPairMapping
	if len(pairs) == 0 {
		pairs = relations.DefaultPairs(cfg.ElementMapping)
	}
	pairTable, err := relations.NewPairTable(pairs, cfg.KeepPairOrder)
	if err != nil {
		return nil, errors.WithMessage(err, "angular symmetry functions")
	}
	layout, err := newParamLayout("angular", cfg.Dims, len(cfg.Params), table.NumRelations(), pairTable.NumRelations(), 4)
	if err != nil {
		return nil, err
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	a := &Angular{cfg: cfg, table: table, pairTable: pairTable, layout: layout}
	a.params = layout.createVariable(ctx, "eta_zeta_lambda_rc", cfg.Params, cfg.Trainable)
	klog.V(1).Infof("acsf: angular symmetry functions for pairs %s, parameters shaped %v", pairTable, cfg.Dims)
	return a, nil
}

// NumRelations is the number of neighbor element pairs P.
func (a *Angular) NumRelations() int { return a.pairTable.NumRelations() }

// NumDescriptors is the number of descriptors per neighbor pair, m.
func (a *Angular) NumDescriptors() int { return a.layout.numDescriptors }

// Width of the per-atom output: P*m.
func (a *Angular) Width() int { return a.NumRelations() * a.NumDescriptors() }

// SetParameters replaces the values of the parameters, with the same shape as configured.
func (a *Angular) SetParameters(values []float32) error {
	if len(values) != a.layout.size() {
		return errors.Wrapf(ragged.ErrShapeMismatch, "angular parameters shaped %v require %d values, got %d",
			a.layout.dims, a.layout.size(), len(values))
	}
	a.params.SetValue(a.layout.tensor(values))
	return nil
}

// Relations returns, for each angle triple of the batch, the element index of the center i (only looked up if
// the parameters are per center, otherwise 0) and the pair relation of the neighbors (j, k).
//
// It fails with ragged.ErrUnmappedRelation if an element or pair is not in the mapping.
func (a *Angular) Relations(b *ragged.Batch) (centers, pairs []int32, err error) {
	z, resolved, err := atomicNumbersAndTuples(b, b.ResolveAngles)
	if err != nil {
		return nil, nil, err
	}
	pairs, err = relations.AngleRelations(a.pairTable, z, resolved, SlotJ, SlotK)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "angular symmetry functions neighbors")
	}
	if a.layout.perCenter {
		centers, err = relations.EdgeRelations(a.table, z, resolved, SlotCenter)
		if err != nil {
			return nil, nil, errors.WithMessage(err, "angular symmetry functions centers")
		}
	} else {
		centers = make([]int32, len(pairs))
	}
	return centers, pairs, nil
}

// Forward computes the angular descriptors of each node, shaped [numNodes, P*m].
//
// centers and pairs (shaped [numAngles], int32) are the indices returned by Relations, packed.
// Graphs must have coordinates and angle indices.
func (a *Angular) Forward(graphs *gnn.Graphs, centers, pairs *Node) *Node {
	if graphs.Coordinates == nil || graphs.AngleIndices == nil {
		panic(errors.Wrap(ragged.ErrShapeMismatch, "angular symmetry functions require coordinates and angle indices"))
	}
	g := graphs.Graph()
	xs := gnn.GatherNodes(graphs.Coordinates, graphs.AngleIndices, SlotCenter, SlotJ, SlotK)
	xi, xj, xk := xs[0], xs[1], xs[2]
	var eps float64
	if a.cfg.AddEps {
		eps = a.cfg.Epsilon
	}
	rij, rik, rjk := Distance(xi, xj, eps), Distance(xi, xk, eps), Distance(xj, xk, eps)
	cos := CosAngle(Sub(xi, xj), Sub(xi, xk), rij, rik, a.cfg.Epsilon)

	params := paramsPerTuple(a.params.ValueGraph(g), a.layout, centers, pairs) // [A, m, 4]
	eta, zeta, lambda, rc := paramComponent(params, 0), paramComponent(params, 1), paramComponent(params, 2),
		paramComponent(params, 3)
	zero := ZerosLike(eta)
	values := AngularTerm(cos, zeta, lambda)
	for _, r := range []*Node{rij, rik, rjk} {
		values = Mul(values, Mul(GaussianRadial(r, eta, zero), CutoffWeight(r, rc)))
	}
	values = graphs.MaskAngles(values)
	targets := Reshape(Slice(graphs.AngleIndices, AxisRange(), AxisElem(SlotCenter)), -1)
	pooled := gnn.RelationalPool(values, targets, pairs, graphs.NumNodes(), a.NumRelations(), gnn.PoolSum)
	return graphs.MaskNodes(pooled)
}
