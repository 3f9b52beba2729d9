package predict

import (
	"fmt"

	"github.com/janpfeifer/molgnn/internal/acsf"
	"github.com/janpfeifer/molgnn/internal/parameters"
	"github.com/janpfeifer/molgnn/internal/relations"
	"github.com/pkg/errors"
)

var _ Model = (*acsf.Model)(nil)

// acsfParam describes one host-side configuration parameter of the ACSF featurizer: these are not context
// hyperparameters, since they define the shape of the parameter variables.
type acsfParam struct {
	key, help, defaultValue string
}

var (
	defaultElements      = []int{1, 6, 7, 8}
	defaultRadialEtas    = []float32{2}
	defaultRadialMus     = []float32{0.5, 1, 1.5, 2, 2.5, 3, 4, 5}
	defaultAngularEtas   = []float32{0.005}
	defaultAngularZetas  = []float32{1, 2, 4, 16}
	defaultAngularLambda = []float32{-1, 1}
	defaultCutoff        = float32(8)
)

var acsfParams = []acsfParam{
	{"elements", "atomic numbers of the elements considered, ';' separated", listString(defaultElements)},
	{"radial", "enable radial symmetry functions", "true"},
	{"radial_eta", "widths η of the radial Gaussians, ';' separated", listString(defaultRadialEtas)},
	{"radial_mu", "centers μ of the radial Gaussians, ';' separated", listString(defaultRadialMus)},
	{"radial_cutoff", "cutoff radius Rc of the radial functions", fmt.Sprint(defaultCutoff)},
	{"angular", "enable angular symmetry functions", "true"},
	{"angular_eta", "widths η of the angular Gaussians, ';' separated", listString(defaultAngularEtas)},
	{"angular_zeta", "exponents ζ of the angular term, ';' separated", listString(defaultAngularZetas)},
	{"angular_lambda", "signs λ (+1 or -1) of the angular term, ';' separated", listString(defaultAngularLambda)},
	{"angular_cutoff", "cutoff radius Rc of the angular functions", fmt.Sprint(defaultCutoff)},
	{"keep_pair_order", "element pairs (zj, zk) and (zk, zj) are different relations", "false"},
	{"add_eps", "add epsilon to squared distances", "false"},
	{"epsilon", "epsilon added to distances", fmt.Sprint(acsf.DefaultEpsilon)},
	{"trainable", "symmetry function parameters are trainable", "false"},
}

func listString[T any](values []T) string {
	var s string
	for ii, v := range values {
		if ii > 0 {
			s += parameters.ListSeparator
		}
		s += fmt.Sprint(v)
	}
	return s
}

// newACSF creates an acsf.Model with the parameter grids configured in params.
func newACSF(params parameters.Params) (*acsf.Model, error) {
	elements, err := parameters.PopIntListOr(params, "elements", defaultElements)
	if err != nil {
		return nil, err
	}
	useRadial, err := parameters.PopParamOr(params, "radial", true)
	if err != nil {
		return nil, err
	}
	useAngular, err := parameters.PopParamOr(params, "angular", true)
	if err != nil {
		return nil, err
	}
	keepPairOrder, err := parameters.PopParamOr(params, "keep_pair_order", false)
	if err != nil {
		return nil, err
	}
	addEps, err := parameters.PopParamOr(params, "add_eps", false)
	if err != nil {
		return nil, err
	}
	epsilon, err := parameters.PopParamOr(params, "epsilon", float64(acsf.DefaultEpsilon))
	if err != nil {
		return nil, err
	}
	trainable, err := parameters.PopParamOr(params, "trainable", false)
	if err != nil {
		return nil, err
	}

	var radial *acsf.RadialConfig
	if useRadial {
		etas, err := parameters.PopFloatListOr(params, "radial_eta", defaultRadialEtas)
		if err != nil {
			return nil, err
		}
		mus, err := parameters.PopFloatListOr(params, "radial_mu", defaultRadialMus)
		if err != nil {
			return nil, err
		}
		cutoff, err := parameters.PopParamOr(params, "radial_cutoff", defaultCutoff)
		if err != nil {
			return nil, err
		}
		radial = &acsf.RadialConfig{
			ElementMapping: elements,
			AddEps:         addEps,
			Epsilon:        epsilon,
			Trainable:      trainable,
		}
		radial.Params, radial.Dims = acsf.RadialParamsGrid(len(elements), etas, mus, cutoff)
	}

	var angular *acsf.AngularConfig
	if useAngular {
		etas, err := parameters.PopFloatListOr(params, "angular_eta", defaultAngularEtas)
		if err != nil {
			return nil, err
		}
		zetas, err := parameters.PopFloatListOr(params, "angular_zeta", defaultAngularZetas)
		if err != nil {
			return nil, err
		}
		lambdas, err := parameters.PopFloatListOr(params, "angular_lambda", defaultAngularLambda)
		if err != nil {
			return nil, err
		}
		cutoff, err := parameters.PopParamOr(params, "angular_cutoff", defaultCutoff)
		if err != nil {
			return nil, err
		}
		angular = &acsf.AngularConfig{
			ElementMapping: elements,
			KeepPairOrder:  keepPairOrder,
			AddEps:         addEps,
			Epsilon:        epsilon,
			Trainable:      trainable,
		}
		pairs := relations.DefaultPairs(elements)
		if keepPairOrder {
			pairs = pairs[:0]
			for _, zj := range elements {
				for _, zk := range elements {
					pairs = append(pairs, relations.Pair{zj, zk})
				}
			}
		}
		angular.ElementPairMapping = pairs
		angular.Params, angular.Dims = acsf.AngularParamsGrid(len(pairs), etas, zetas, lambdas, cutoff)
	}
	m, err := acsf.NewModel(radial, angular)
	if err != nil {
		return nil, errors.WithMessage(err, "creating ACSF model")
	}
	return m, nil
}
