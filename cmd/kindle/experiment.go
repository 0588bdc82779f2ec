package main

import (
	"io"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/born-ml/kindle/internal/config"
	"github.com/born-ml/kindle/internal/data"
	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/tensor"
	"github.com/born-ml/kindle/internal/train"
	"github.com/born-ml/kindle/internal/upload"
)

// numClasses is the class count of the synthetic multiclass task.
const numClasses = 3

type experiment struct {
	trainer *train.Trainer
	run     train.Run
}

// task bundles the per-mode head size, loss and activation.
type task struct {
	outputs    int
	loss       nn.LossFunc
	activation stats.Activation
}

func taskFor(mode stats.Mode) task {
	switch mode {
	case stats.ModeMulticlass:
		return task{outputs: numClasses, loss: nn.CrossEntropyLoss, activation: tensor.Softmax}
	case stats.ModeRegression:
		return task{outputs: 1, loss: nn.MSELoss}
	default:
		return task{outputs: 1, loss: nn.BCEWithLogitsLoss, activation: tensor.Sigmoid}
	}
}

func newExperiment(cfg config.Run, out io.Writer) (*experiment, error) {
	mode, err := stats.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	kind, err := optim.ParseKind(cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	metrics, err := parseMetrics(cfg.Metrics, mode)
	if err != nil {
		return nil, err
	}
	callbacks, err := buildCallbacks(cfg)
	if err != nil {
		return nil, err
	}

	ds, err := synthetic(cfg.Data, mode)
	if err != nil {
		return nil, err
	}
	trainDS, valDS := data.Split(ds, cfg.Data.ValFrac, cfg.Data.Seed)
	trainLoader := data.NewDataLoader(trainDS, data.Config{BatchSize: cfg.Data.BatchSize, Shuffle: true, Seed: cfg.Data.Seed})
	valLoader := data.NewDataLoader(valDS, data.Config{BatchSize: cfg.Data.BatchSize})

	tk := taskFor(mode)
	model := buildModel(cfg.Model, cfg.Data.Features, tk.outputs, cfg.Data.Seed)
	t, err := train.New(model, trainLoader, valLoader, tk.loss, train.Config{
		Mode:           mode,
		OutDir:         cfg.OutDir,
		Optimizer:      kind,
		Eps:            cfg.Eps,
		Threshold:      cfg.Threshold,
		LastActivation: tk.activation,
		Metrics:        metrics,
		Callbacks:      callbacks,
		Logger:         klog.Background().WithName("kindle"),
		Output:         out,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Model.Frozen {
		if err := t.Unfreeze(train.Groups, 1); err != nil {
			return nil, err
		}
	}
	return &experiment{
		trainer: t,
		run: train.Run{
			Epochs: cfg.Epochs,
			LRs:    cfg.LRs,
			LRMult: cfg.LRMult,
			Clean:  cfg.Clean,
		},
	}, nil
}

func parseMetrics(names []string, mode stats.Mode) ([]stats.Metric, error) {
	metrics := make([]stats.Metric, 0, len(names))
	for _, name := range names {
		m, ok := stats.Builtin(name)
		if !ok {
			return nil, errors.Errorf("unknown metric %q", name)
		}
		if mode == stats.ModeMulticlass && m.Input == stats.SoftPredictions {
			return nil, errors.Errorf("metric %q needs one score per row and cannot be used with multiclass", name)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

func buildCallbacks(cfg config.Run) ([]train.Callback, error) {
	cbs := []train.Callback{train.NewMetricHistory()}

	if s := cfg.Scheduler; s != nil {
		switch s.Kind {
		case "sawtooth":
			saw := train.NewSawtoothScheduler()
			saw.Add, saw.Scale, saw.Patience, saw.Verbose = s.Add, s.Scale, s.Patience, s.Verbose
			cbs = append(cbs, saw)
		default:
			cos := train.NewCosineScheduler()
			cos.Warm, cos.Restarts, cos.CycleLen = s.Warm, s.Restarts, s.CycleLen
			cos.CycleDecay, cos.MinLR, cos.Verbose = s.CycleDecay, s.MinLR, s.Verbose
			cbs = append(cbs, cos)
		}
	}
	if m := cfg.EarlyStop; m != nil {
		goal, err := train.ParseGoal(m.Goal)
		if err != nil {
			return nil, err
		}
		cbs = append(cbs, train.NewEarlyStopper(m.Metric, goal, m.MinImprovement, m.Patience))
	}
	if g := cfg.Performance; g != nil {
		goal, err := train.ParseGoal(g.Goal)
		if err != nil {
			return nil, err
		}
		p := train.NewPerformanceThreshold(g.Metric, goal, g.Threshold, g.SkipEpochs)
		if g.Split == "train" {
			p.Split = train.SplitTrain
		}
		cbs = append(cbs, p)
	}
	if m := cfg.Checkpoint; m != nil {
		goal, err := train.ParseGoal(m.Goal)
		if err != nil {
			return nil, err
		}
		cbs = append(cbs, train.NewModelCheckpoint(m.Metric, goal))
	}
	if u := cfg.Unfreeze; u != nil {
		unit, mode := train.Groups, train.ByEpoch
		if u.Type == "layers" {
			unit = train.Layers
		}
		if u.Mode == "batch" {
			mode = train.ByBatch
		}
		cbs = append(cbs, train.NewModelUnfreezer(u.Schedule, unit, mode))
	}
	if u := cfg.Upload; u != nil {
		dir := upload.NewDirUploader(u.Dest, u.Prefix)
		dir.RetainTree = !u.Flat
		dir.Recurse = !u.Flat
		dir.Workers = u.Workers
		dir.Logger = klog.Background().WithName("upload")
		cbs = append(cbs, train.NewUploader(dir))
	}
	if cfg.BatchLogFreq > 0 {
		cbs = append(cbs, train.NewBatchMetricPrinter(cfg.BatchLogFreq, 0))
	}
	return cbs, nil
}

// buildModel returns one group per hidden layer plus the head.
func buildModel(cfg config.Model, features, outputs int, seed uint64) *nn.Model {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	groups := make([]nn.Module, 0, len(cfg.Hidden)+1)
	in := features
	for _, h := range cfg.Hidden {
		groups = append(groups, nn.NewSequential(nn.NewLinear(in, h, rng), nn.NewReLU()))
		in = h
	}
	groups = append(groups, nn.NewLinear(in, outputs, rng))
	return nn.NewModel(groups...)
}

// synthetic draws standard normal features and derives labels from a
// random linear projection plus noise: its sign for binary, three bands
// for multiclass and the value itself for regression.
func synthetic(cfg config.Data, mode stats.Mode) (*data.TensorDataset, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	n, f := cfg.Samples, cfg.Features
	w := make([]float64, f)
	for i := range w {
		w[i] = rng.NormFloat64()
	}
	x := make([]float64, n*f)
	y := make([]float64, n)
	for i := range n {
		row := x[i*f : (i+1)*f]
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		z := floats.Dot(row, w) + cfg.Noise*rng.NormFloat64()
		switch mode {
		case stats.ModeBinary:
			if z > 0 {
				y[i] = 1
			}
		case stats.ModeMulticlass:
			switch {
			case z < -0.5:
				y[i] = 0
			case z < 0.5:
				y[i] = 1
			default:
				y[i] = 2
			}
		default:
			y[i] = z
		}
	}
	return data.NewTensorDataset(
		tensor.MustFromSlice(y, tensor.Shape{n, 1}),
		tensor.MustFromSlice(x, tensor.Shape{n, f}),
	)
}
