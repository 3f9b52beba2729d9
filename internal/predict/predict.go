// Package predict executes the GoMLX models on batches of molecules.
//
// It separates the host-side orchestration (configuration, checkpoints, compilation and padding) from the models
// themselves: nmpn.Model and acsf.Model.
package predict

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/janpfeifer/molgnn/internal/gnn"
	"github.com/janpfeifer/molgnn/internal/nmpn"
	"github.com/janpfeifer/molgnn/internal/parameters"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/xla"
)

type ModelType int

const (
	ModelNone ModelType = iota
	ModelNMPN
	ModelACSF
)

//go:generate go tool enumer -type=ModelType -trimprefix=Model -transform=snake -values -text -json -yaml predict.go

// Model is a GoMLX model of graphs, executed by the Predictor.
type Model interface {
	// Context used by the model: with both its weights and hyperparameters.
	Context() *context.Context

	// CreateInputs for a batch of graphs as tensors, padded.
	CreateInputs(b *ragged.Batch) (*gnn.Packed, error)

	// ForwardGraph is the GoMLX model graph function with the forward path.
	// It returns one row per padded graph or per padded node, see OutputAxis.
	ForwardGraph(ctx *context.Context, inputs []*graph.Node) *graph.Node

	// OutputAxis is the axis of the rows of the output of ForwardGraph: ragged.AxisGraphs or ragged.AxisNodes.
	OutputAxis() (ragged.Axis, error)
}

var (
	// Assert the models implement Model.
	_ Model = (*nmpn.Model)(nil)
)

var (
	// Backend is a singleton, the same for all predictors.
	backend = sync.OnceValue(func() backends.Backend { return backends.New() })
)

// ErrHelpRequested is returned by New if the model was configured with "help": the help with the model
// hyperparameters is logged instead.
var ErrHelpRequested = errors.New("model help requested")

const notSpecified = "#<not_specified>"

// OutputName is the name of the field returned by Predictor.Predict.
const OutputName = "output"

// Predictor executes a model over batches of molecules.
type Predictor struct {
	Type ModelType

	// model used by the Predictor.
	model Model

	// exec is compiled once per padded shape of the inputs.
	exec *context.Exec

	// checkpoint handler, if model is being saved/loaded to/from disk.
	checkpoint *checkpoints.Handler

	// muSave makes saving sequential.
	muSave sync.Mutex
}

// New creates a new Predictor with the model selected in params, and then uses the remaining params to
// override the model hyperparameters. Model names:
//
//   - "nmpn": neural message passing network, see package nmpn.
//   - "acsf": atom-centered symmetry functions, see package acsf, optionally followed by an atomic network.
//
// The parameter with the model name may be set to a directory with the model checkpoint: if it exists the weights
// and hyperparameters are loaded from it, otherwise the model starts with random (or configured) weights. If set to
// "help", it logs the hyperparameters of the model, and returns ErrHelpRequested.
//
// Unknown parameters are reported as errors. If no known model type is configured, it returns nil, nil.
func New(params parameters.Params) (*Predictor, error) {
	for _, modelType := range ModelTypeValues() {
		if modelType == ModelNone {
			continue
		}
		key := modelType.String()
		filePath, _ := parameters.PopParamOr(params, key, notSpecified)
		if filePath == notSpecified {
			continue
		}

		// Help if requested.
		if slices.Index([]string{"help", "--help", "-help", "-h"}, filePath) != -1 {
			help, err := Help(modelType)
			if err != nil {
				return nil, err
			}
			klog.Info(help)
			return nil, errors.Wrapf(ErrHelpRequested, "model type %s", modelType)
		}

		// Create model and context.
		p := &Predictor{Type: modelType}
		var err error
		p.model, err = newModel(modelType, params)
		if err != nil {
			return nil, err
		}

		// Create checkpoint, and load it if it exists.
		if filePath != "" {
			if err := p.createCheckpoint(filePath); err != nil {
				return nil, errors.WithMessagef(err, "failed to build checkpoint for model %s in path %s",
					modelType, filePath)
			}
			p.restoreVariables()
		}

		// Overwrite hyperparameters from given params.
		if err := p.extractParams(params); err != nil {
			return nil, err
		}
		if err := parameters.CheckAllUsed(params); err != nil {
			return nil, errors.WithMessagef(err, "model %s", modelType)
		}
		if _, err := p.model.OutputAxis(); err != nil {
			return nil, errors.WithMessagef(err, "model %s", modelType)
		}

		p.exec = context.NewExec(backend(), p.model.Context(), p.model.ForwardGraph)
		klog.V(1).Infof("predict: created model %s", p)
		return p, nil
	}
	return nil, nil
}

// newModel creates the model of the given type. It pops the host-side configuration from params.
func newModel(modelType ModelType, params parameters.Params) (Model, error) {
	switch modelType {
	case ModelNMPN:
		return nmpn.New(), nil
	case ModelACSF:
		return newACSF(params)
	default:
		return nil, errors.Errorf("model type %s defined but not implemented", modelType)
	}
}

// String implements fmt.Stringer.
func (p *Predictor) String() string {
	if p == nil {
		return "<nil>[GoMLX]"
	}
	if p.checkpoint == nil {
		return fmt.Sprintf("%s[GoMLX]", p.Type)
	}
	return fmt.Sprintf("%s[GoMLX]@%s", p.Type, p.checkpoint.Dir())
}

// Model used by the predictor.
func (p *Predictor) Model() Model { return p.model }

// Predict executes the model on the batch, and returns its output without padding: one row per graph or one row
// per node (with the nodes partition), depending on the model.
//
// Errors building or executing the model graph are returned, and no partial output is returned.
func (p *Predictor) Predict(b *ragged.Batch) (*ragged.Field[float32], error) {
	axis, err := p.model.OutputAxis()
	if err != nil {
		return nil, err
	}
	packed, err := p.model.CreateInputs(b)
	if err != nil {
		return nil, err
	}
	var output *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		donatedInputs := generics.SliceMap(packed.Inputs, func(t *tensors.Tensor) any {
			return graph.DonateTensorBuffer(t, backend())
		})
		output = p.exec.Call(donatedInputs...)[0]
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "executing model %s", p)
	}
	partition, _ := b.Partition(axis)
	return ragged.UnpackFloat32(OutputName, output, partition)
}

// Save the model weights and hyperparameters to the checkpoint.
// It fails if the model was not created with a checkpoint directory.
func (p *Predictor) Save() error {
	if p.checkpoint == nil {
		return errors.Errorf("model %s has no checkpoint configured", p)
	}
	p.muSave.Lock()
	defer p.muSave.Unlock()
	return p.checkpoint.Save()
}

// Help returns the hyperparameters of the model type, with their default values.
func Help(modelType ModelType) (string, error) {
	model, err := newModel(modelType, parameters.Params{})
	if err != nil {
		return "", err
	}
	buf := &bytes.Buffer{}
	_, _ = fmt.Fprintf(buf, "Model %s parameters:\n", modelType)
	if modelType == ModelACSF {
		for _, p := range acsfParams {
			_, _ = fmt.Fprintf(buf, "\t%q: %s, default value is %s\n", p.key, p.help, p.defaultValue)
		}
	}
	model.Context().EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		_, _ = fmt.Fprintf(buf, "\t%q: default value is %v\n", key, value)
	})
	return buf.String(), nil
}

// extractParams and write them as context hyperparameters
func (p *Predictor) extractParams(params parameters.Params) error {
	ctx := p.model.Context()
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil {
			// If error happened skip the rest.
			return
		}
		if scope != context.RootScope {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, key, defaultValue)
			ctx.SetParam(key, value)
		case int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (int) for model %s", key, p.Type)
				return
			}
			ctx.SetParam(key, value)
		case float64:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float64) for model %s", key, p.Type)
				return
			}
			ctx.SetParam(key, value)
		case float32:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float32) for model %s", key, p.Type)
				return
			}
			ctx.SetParam(key, value)
		case bool:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (bool) for model %s", key, p.Type)
				return
			}
			ctx.SetParam(key, value)
		default:
			err = errors.Errorf("model %s parameter %q is of unknown type %T", p.Type, key, defaultValue)
		}
	})
	return err
}

func (p *Predictor) createCheckpoint(filePath string) error {
	var err error
	p.checkpoint, err = checkpoints.
		Build(p.model.Context()).
		Dir(filePath).
		Immediate().
		Done()
	return err
}

// restoreVariables sets the variables created with the model, before the checkpoint was attached (e.g.: the
// symmetry function parameters), to their saved values.
func (p *Predictor) restoreVariables() {
	loaded := p.checkpoint.LoadedVariables()
	p.model.Context().EnumerateVariables(func(v *context.Variable) {
		if value, found := loaded[v.ParameterName()]; found {
			v.SetValue(value)
		}
	})
}
