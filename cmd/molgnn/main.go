// molgnn reads molecules from a JSON file, optionally builds their edges from the interatomic distances and
// their angle triples, and prints the outputs of a model (NMPN or ACSF) for each molecule or each atom.
//
// Example:
//
//	molgnn -input=molecules.json -max_distance=4 -angles -model="acsf,radial_cutoff=4,angular_cutoff=4"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/janpfeifer/molgnn/internal/molecules"
	"github.com/janpfeifer/molgnn/internal/neighbors"
	"github.com/janpfeifer/molgnn/internal/parameters"
	"github.com/janpfeifer/molgnn/internal/predict"
	"github.com/janpfeifer/molgnn/internal/profilers"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/janpfeifer/molgnn/internal/ui/cli"
	"github.com/janpfeifer/molgnn/internal/ui/spinning"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagInput = flag.String("input", "-", "JSON file with the molecules: a list, or one molecule object per line. "+
		"Use \"-\" for stdin.")
	flagModel = flag.String("model", "nmpn", "Model configuration: the model type (\"nmpn\" or \"acsf\"), "+
		"optionally set to a checkpoint directory, followed by hyperparameters, e.g. \"nmpn=~/models/qm9,depth=4\".")
	flagHelpModel = flag.Bool("help_model", false, "Print the hyperparameters of the model selected with -model and exit.")

	flagMaxDistance = flag.Float64("max_distance", 0, "If > 0, edges connect all pairs of atoms within this distance, "+
		"replacing the edges given in the input. The distance is used as edge feature.")
	flagMaxNeighbours = flag.Int("max_neighbours", 0, "If > 0, limits the edges built with -max_distance to the "+
		"closest neighbours of each atom.")
	flagSelfLoops      = flag.Bool("self_loops", false, "Include self loops in the edges built with -max_distance.")
	flagAngles         = flag.Bool("angles", false, "Build the angle triples from the edges.")
	flagAllAngleOrders = flag.Bool("all_angle_orders", false, "Angle triples include both (i, j, k) and (i, k, j).")

	flagBatchSize   = flag.Int("batch_size", 64, "Number of molecules per batch.")
	flagParallelism = flag.Int("parallelism", 0, "If > 0 ignore GOMAXPROCS and prepare "+
		"these many molecules simultaneously.")
	flagPrecision = flag.Int("precision", 4, "Number of decimal digits printed.")
	flagCenter    = flag.Bool("center", false, "Center the output table on the terminal.")
	flagSave      = flag.Bool("save", false, "Save the model to its checkpoint directory after predicting.")
)

// Globals
var (
	// globalCtx used everywhere. It is cancelled when the program is about to exit either by
	// an interrupt (ctrl+C) or by reaching the end.
	globalCtx = context.Background()
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagBatchSize <= 0 {
		klog.Fatalf("Invalid -batch_size=%d", *flagBatchSize)
	}

	// Capture Control+C
	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(globalCancel, 5*time.Second)
	defer globalCancel()

	// Profilers: HTTP profiler server and CPU profile.
	profilers.Setup(globalCtx)
	defer profilers.OnQuit()

	params := parameters.NewFromConfigString(*flagModel)
	if *flagHelpModel {
		must.M(printModelHelp(params))
		return
	}
	predictor, err := predict.New(params)
	if errors.Is(err, predict.ErrHelpRequested) {
		return
	}
	must.M(err)
	if predictor == nil {
		klog.Fatalf("No known model type in -model=%q, valid model types are %q", *flagModel, modelTypes())
	}

	mols := must.M1(readMolecules(*flagInput))
	if len(mols) == 0 {
		klog.Fatalf("No molecules in -input=%q", *flagInput)
	}
	cfg := neighbors.Config{
		MaxDistance:    float32(*flagMaxDistance),
		MaxNeighbours:  *flagMaxNeighbours,
		SelfLoops:      *flagSelfLoops,
		Angles:         *flagAngles,
		AllAngleOrders: *flagAllAngleOrders,
	}
	must.M(molecules.Prepare(globalCtx, mols, cfg, *flagParallelism))

	tbl, err := predictAll(globalCtx, predictor, mols)
	if err != nil {
		klog.Fatalf("Failed to predict with model %s: %+v", predictor, err)
	}
	output := tbl.Render(cli.TerminalWidth())
	if *flagCenter {
		cli.PrintCentered(output)
	} else {
		fmt.Println(output)
	}
	if *flagSave {
		must.M(predictor.Save())
		klog.Infof("Saved model %s", predictor)
	}
}

func modelTypes() []string {
	var types []string
	for _, t := range predict.ModelTypeValues() {
		if t != predict.ModelNone {
			types = append(types, t.String())
		}
	}
	return types
}

// printModelHelp prints the hyperparameters of the model type configured in params.
func printModelHelp(params parameters.Params) error {
	for _, t := range predict.ModelTypeValues() {
		if _, found := params[t.String()]; !found || t == predict.ModelNone {
			continue
		}
		help, err := predict.Help(t)
		if err != nil {
			return err
		}
		fmt.Print(help)
		return nil
	}
	return errors.Errorf("no known model type in -model=%q, valid model types are %q", *flagModel, modelTypes())
}

func readMolecules(path string) ([]*molecules.Molecule, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening molecules file")
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	mols, err := molecules.ReadJSON(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	klog.V(1).Infof("Read %d molecules from %q", len(mols), path)
	return mols, nil
}

// predictAll runs the predictor in batches of molecules, and collects the outputs in a table.
func predictAll(ctx context.Context, predictor *predict.Predictor, mols []*molecules.Molecule) (*cli.Table, error) {
	axis, err := predictor.Model().OutputAxis()
	if err != nil {
		return nil, err
	}
	tbl := &cli.Table{LabelHeaders: []string{"molecule"}, Precision: *flagPrecision}
	if axis == ragged.AxisNodes {
		tbl.LabelHeaders = append(tbl.LabelHeaders, "atom")
	}
	numBatches := (len(mols) + *flagBatchSize - 1) / *flagBatchSize
	for batchIdx := range numBatches {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		start := batchIdx * *flagBatchSize
		batchMols := mols[start:min(start+*flagBatchSize, len(mols))]
		b, err := molecules.BuildBatch(batchMols)
		if err != nil {
			return nil, errors.WithMessagef(err, "batch #%d", batchIdx)
		}
		s := spinning.New(ctx, fmt.Sprintf("Batch %d of %d", batchIdx+1, numBatches))
		out, err := predictor.Predict(b)
		s.Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "batch #%d", batchIdx)
		}
		for ii, mol := range batchMols {
			name := mol.Name
			if name == "" {
				name = fmt.Sprintf("#%d", start+ii)
			}
			values := out.Graph(ii)
			for row := range len(values) / out.Width {
				labels := []string{name}
				if axis == ragged.AxisNodes {
					labels = append(labels, fmt.Sprintf("%d (Z=%d)", row, mol.AtomicNumbers[row]))
				}
				tbl.Labels = append(tbl.Labels, labels)
				tbl.Values = append(tbl.Values, values[row*out.Width:(row+1)*out.Width])
			}
		}
	}
	return tbl, nil
}
