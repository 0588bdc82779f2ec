// Package config loads YAML run files for the kindle command.
//
// Every field has a zero-value default applied by Load, so a minimal file
// only names what differs:
//
//	out_dir: runs/demo
//	epochs: 10
//	metrics: [accuracy, roc_auc]
//	scheduler:
//	  kind: cosine
//	  warm: 0.3
package config

import (
	"bytes"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a run file fails validation.
var ErrInvalid = errors.New("invalid run config")

// Run is a complete training run description.
type Run struct {
	OutDir    string    `yaml:"out_dir"`
	Mode      string    `yaml:"mode"`
	Epochs    int       `yaml:"epochs"`
	LRs       []float64 `yaml:"lrs"`
	LRMult    float64   `yaml:"lr_mult"`
	Optimizer string    `yaml:"optimizer"`
	Eps       float64   `yaml:"eps"`
	Threshold float64   `yaml:"threshold"`
	Metrics   []string  `yaml:"metrics"`
	Clean     bool      `yaml:"clean"`
	// BatchLogFreq enables per-batch metric logging every n global batches.
	BatchLogFreq int `yaml:"batch_log_freq"`

	Data  Data  `yaml:"data"`
	Model Model `yaml:"model"`

	Scheduler   *Scheduler `yaml:"scheduler"`
	EarlyStop   *Monitor   `yaml:"early_stopping"`
	Performance *Gate      `yaml:"performance_threshold"`
	Checkpoint  *Monitor   `yaml:"checkpoint"`
	Unfreeze    *Unfreeze  `yaml:"unfreeze"`
	Upload      *Upload    `yaml:"upload"`
}

// Data describes the synthetic dataset.
type Data struct {
	Samples   int     `yaml:"samples"`
	Features  int     `yaml:"features"`
	BatchSize int     `yaml:"batch_size"`
	ValFrac   float64 `yaml:"val_frac"`
	Seed      uint64  `yaml:"seed"`
	Noise     float64 `yaml:"noise"`
}

// Model describes a grouped MLP: one group per hidden layer plus the head.
type Model struct {
	Hidden []int `yaml:"hidden"`
	// Frozen starts training with every group except the head frozen.
	Frozen bool `yaml:"frozen"`
}

// Scheduler selects a learning-rate schedule.
type Scheduler struct {
	Kind    string `yaml:"kind"` // "cosine" or "sawtooth"
	Verbose bool   `yaml:"verbose"`

	// Cosine.
	Warm       float64 `yaml:"warm"`
	Restarts   bool    `yaml:"restarts"`
	CycleLen   int     `yaml:"cycle_len"`
	CycleDecay float64 `yaml:"cycle_decay"`
	MinLR      float64 `yaml:"min_lr"`

	// Sawtooth.
	Add      float64 `yaml:"add"`
	Scale    float64 `yaml:"scale"`
	Patience int     `yaml:"patience"`
}

// Monitor watches a validation metric.
type Monitor struct {
	Metric         string  `yaml:"metric"`
	Goal           string  `yaml:"goal"`
	MinImprovement float64 `yaml:"min_improvement"`
	Patience       int     `yaml:"patience"`
}

// Gate halts runs whose metric crosses a threshold.
type Gate struct {
	Metric     string  `yaml:"metric"`
	Goal       string  `yaml:"goal"`
	Threshold  float64 `yaml:"threshold"`
	SkipEpochs int     `yaml:"skip_epochs"`
	Split      string  `yaml:"split"`
}

// Unfreeze maps epoch or global batch indices to unfreeze counts.
type Unfreeze struct {
	Schedule map[int]int `yaml:"schedule"`
	Type     string      `yaml:"type"` // "groups" or "layers"
	Mode     string      `yaml:"mode"` // "epoch" or "batch"
}

// Upload mirrors the output directory at train end.
type Upload struct {
	Dest    string `yaml:"dest"`
	Prefix  string `yaml:"prefix"`
	Flat    bool   `yaml:"flat"`
	Workers int    `yaml:"workers"`
}

// Default returns the configuration used for omitted fields.
func Default() Run {
	return Run{
		OutDir:    "runs/kindle",
		Mode:      "binary",
		Epochs:    5,
		LRs:       []float64{3e-3},
		LRMult:    1,
		Optimizer: "adam",
		Eps:       1e-3,
		Threshold: 0.5,
		Data: Data{
			Samples:   512,
			Features:  4,
			BatchSize: 32,
			ValFrac:   0.2,
			Seed:      1,
			Noise:     0.1,
		},
		Model: Model{Hidden: []int{16, 8}},
	}
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Run{}, errors.Wrap(err, "read run config")
	}
	return Parse(raw)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(raw []byte) (Run, error) {
	run := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&run); err != nil && !errors.Is(err, io.EOF) {
		return Run{}, errors.Wrap(err, "decode run config")
	}
	run.applyDefaults()
	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (r *Run) applyDefaults() {
	if s := r.Scheduler; s != nil {
		if s.Kind == "" {
			s.Kind = "cosine"
		}
		if s.Warm == 0 && !s.Restarts {
			s.Warm = 0.3
		}
		if s.CycleLen == 0 {
			s.CycleLen = 5
		}
		if s.Add == 0 {
			s.Add = 1e-4
		}
		if s.Scale == 0 {
			s.Scale = 0.6
		}
		if s.Patience == 0 {
			s.Patience = 5
		}
	}
	for _, m := range []*Monitor{r.EarlyStop, r.Checkpoint} {
		if m == nil {
			continue
		}
		if m.Metric == "" {
			m.Metric = "loss"
		}
		if m.Goal == "" {
			m.Goal = "min"
		}
	}
	if r.EarlyStop != nil && r.EarlyStop.Patience == 0 {
		r.EarlyStop.Patience = 3
	}
	if g := r.Performance; g != nil && g.Split == "" {
		g.Split = "val"
	}
	if u := r.Unfreeze; u != nil {
		if u.Type == "" {
			u.Type = "groups"
		}
		if u.Mode == "" {
			u.Mode = "epoch"
		}
	}
}

// Validate checks enumerated fields and ranges.
func (r *Run) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(r.OutDir != "", "out_dir is required")
	check(r.Epochs > 0, "epochs must be positive")
	check(len(r.LRs) > 0, "lrs must not be empty")
	check(slices.Contains([]string{"binary", "multiclass", "regression"}, r.Mode), "mode must be binary, multiclass or regression")
	check(slices.Contains([]string{"adam", "sgd"}, strings.ToLower(r.Optimizer)), "optimizer must be adam or sgd")
	check(r.Data.Samples > 0 && r.Data.Features > 0, "data.samples and data.features must be positive")
	check(r.Data.BatchSize > 0, "data.batch_size must be positive")
	check(r.Data.ValFrac > 0 && r.Data.ValFrac < 1, "data.val_frac must be in (0, 1)")

	if s := r.Scheduler; s != nil {
		check(s.Kind == "cosine" || s.Kind == "sawtooth", "scheduler.kind must be cosine or sawtooth")
		check(s.Warm >= 0 && s.Warm < 1, "scheduler.warm must be in [0, 1)")
		check(s.Scale > 0 && s.Scale < 1, "scheduler.scale must be in (0, 1)")
		check(s.CycleLen > 0, "scheduler.cycle_len must be positive")
	}
	for name, m := range map[string]*Monitor{"early_stopping": r.EarlyStop, "checkpoint": r.Checkpoint} {
		if m != nil {
			check(m.Goal == "min" || m.Goal == "max", name+".goal must be min or max")
		}
	}
	if g := r.Performance; g != nil {
		check(g.Metric != "", "performance_threshold.metric is required")
		check(g.Goal == "min" || g.Goal == "max", "performance_threshold.goal must be min or max")
		check(g.Split == "train" || g.Split == "val", "performance_threshold.split must be train or val")
	}
	if u := r.Unfreeze; u != nil {
		check(u.Type == "groups" || u.Type == "layers", "unfreeze.type must be groups or layers")
		check(u.Mode == "epoch" || u.Mode == "batch", "unfreeze.mode must be epoch or batch")
	}
	if u := r.Upload; u != nil {
		check(u.Dest != "", "upload.dest is required")
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
