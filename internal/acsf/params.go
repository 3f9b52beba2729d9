package acsf

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// paramLayout describes a parameter tensor shaped (R, m, K) or (N, R, m, K): the second form has a separate set of
// parameters per center element.
type paramLayout struct {
	dims           []int
	perCenter      bool
	numCenters     int
	numRelations   int
	numDescriptors int
	width          int
}

// newParamLayout validates dims against the number of center elements, relations and parameters per
// descriptor (width), and the number of values given.
func newParamLayout(what string, dims []int, numValues, numCenters, numRelations, width int) (*paramLayout, error) {
	if len(dims) != 3 && len(dims) != 4 {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters must be shaped (R, m, %d) or (N, R, m, %d), got %v",
			what, width, width, dims)
	}
	l := &paramLayout{
		dims:           dims,
		perCenter:      len(dims) == 4,
		numCenters:     numCenters,
		numRelations:   numRelations,
		numDescriptors: dims[len(dims)-2],
		width:          width,
	}
	if dims[len(dims)-1] != width {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters last dimension must be %d, got %v", what, width, dims)
	}
	if dims[len(dims)-3] != numRelations {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters shaped %v, but there are %d relations",
			what, dims, numRelations)
	}
	if l.perCenter && dims[0] != numCenters {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters shaped %v, but there are %d elements",
			what, dims, numCenters)
	}
	if l.numDescriptors <= 0 {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters shaped %v have no descriptors", what, dims)
	}
	if size := l.size(); size != numValues {
		return nil, errors.Wrapf(ragged.ErrShapeMismatch, "%s parameters shaped %v require %d values, got %d",
			what, dims, size, numValues)
	}
	return l, nil
}

func (l *paramLayout) size() int {
	size := 1
	for _, dim := range l.dims {
		size *= dim
	}
	return size
}

// flatDims is the shape of the parameters variable: (N*R, m, K) if per center, or (R, m, K).
func (l *paramLayout) flatDims() []int {
	rows := l.numRelations
	if l.perCenter {
		rows *= l.numCenters
	}
	return []int{rows, l.numDescriptors, l.width}
}

// createVariable creates the parameters variable in ctx, initialized with values.
func (l *paramLayout) createVariable(ctx *context.Context, name string, values []float32, trainable bool) *context.Variable {
	v := ctx.VariableWithValue(name, l.tensor(values))
	v.SetTrainable(trainable)
	return v
}

func (l *paramLayout) tensor(values []float32) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, l.flatDims()...))
	tensors.MutableFlatData(t, func(flat []float32) {
		copy(flat, values)
	})
	return t
}

// RadialParamsGrid builds radial parameters shaped (numRelations, len(etas)*len(mus), 3), with the same
// combinations of η and μ (and the cutoff rc) for every relation.
func RadialParamsGrid(numRelations int, etas, mus []float32, cutoff float32) (params []float32, dims []int) {
	m := len(etas) * len(mus)
	params = make([]float32, 0, numRelations*m*3)
	for range numRelations {
		for _, eta := range etas {
			for _, mu := range mus {
				params = append(params, eta, mu, cutoff)
			}
		}
	}
	return params, []int{numRelations, m, 3}
}

// AngularParamsGrid builds angular parameters shaped (numRelations, len(etas)*len(zetas)*len(lambdas), 4),
// with the same combinations of η, ζ and λ (and the cutoff rc) for every pair relation.
func AngularParamsGrid(numRelations int, etas, zetas, lambdas []float32, cutoff float32) (params []float32, dims []int) {
	m := len(etas) * len(zetas) * len(lambdas)
	params = make([]float32, 0, numRelations*m*4)
	for range numRelations {
		for _, eta := range etas {
			for _, zeta := range zetas {
				for _, lambda := range lambdas {
					params = append(params, eta, zeta, lambda, cutoff)
				}
			}
		}
	}
	return params, []int{numRelations, m, 4}
}
