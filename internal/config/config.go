// Package config loads training experiments from YAML and turns them into
// networks, optimizers, datasets and trainer options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

// ErrInvalid is returned for experiments that fail validation.
var ErrInvalid = errors.New("config: invalid experiment")

// Experiment describes one training run.
type Experiment struct {
	Name    string  `yaml:"name"`
	Dataset Dataset `yaml:"dataset"`
	Model   Model   `yaml:"model"`
	Train   Train   `yaml:"train"`
	Output  Output  `yaml:"output"`
}

// Dataset selects the training and validation data. Exactly one of Preset
// and Path is set.
type Dataset struct {
	Preset          string  `yaml:"preset,omitempty"`
	Path            string  `yaml:"path,omitempty"`
	ValidationPath  string  `yaml:"validation_path,omitempty"`
	ValidationSplit float64 `yaml:"validation_split,omitempty"`
	HasHeader       bool    `yaml:"has_header,omitempty"`
	LabelColumn     int     `yaml:"label_column"`
	Normalize       bool    `yaml:"normalize,omitempty"`
	// ValidateOnTrain evaluates on the training set when no other
	// validation data is configured.
	ValidateOnTrain bool `yaml:"validate_on_train,omitempty"`
}

// Model describes a classifier: hidden blocks, an output dense layer and a
// softmax.
type Model struct {
	InputSize  int    `yaml:"input_size"`
	OutputSize int    `yaml:"output_size"`
	Hidden     []int  `yaml:"hidden"`
	Activation string `yaml:"activation"`
	// PerNeuron builds hidden blocks from individual neurons instead of a
	// dense layer followed by an activation layer.
	PerNeuron bool `yaml:"per_neuron,omitempty"`
}

// Train holds the optimizer and loop settings.
type Train struct {
	Epochs            int     `yaml:"epochs"`
	BatchSize         int     `yaml:"batch_size"`
	AccumulationSteps int     `yaml:"accumulation_steps"`
	Shuffle           bool    `yaml:"shuffle"`
	DropLast          bool    `yaml:"drop_last"`
	LearningRate      float64 `yaml:"learning_rate"`
	GradClipNorm      float64 `yaml:"grad_clip_norm,omitempty"`
	Seed              *int64  `yaml:"seed,omitempty"`
	Optimizer         string  `yaml:"optimizer"`
	Loss              string  `yaml:"loss"`
	LogEvery          int     `yaml:"log_every,omitempty"`
	EarlyStopPatience int     `yaml:"early_stop_patience,omitempty"`
	EarlyStopMinDelta float64 `yaml:"early_stop_min_delta,omitempty"`
}

// Output names the files written by a run. Empty paths are skipped.
type Output struct {
	ModelPath      string `yaml:"model_path,omitempty"`
	CheckpointPath string `yaml:"checkpoint_path,omitempty"`
	CSVLogPath     string `yaml:"csv_log_path,omitempty"`
}

// Default returns the XOR experiment.
func Default() *Experiment {
	return &Experiment{
		Name:    "xor",
		Dataset: Dataset{Preset: "xor", LabelColumn: -1},
		Model: Model{
			InputSize:  2,
			OutputSize: 2,
			Hidden:     []int{4},
			Activation: activations.ReLU.String(),
		},
		Train: Train{
			Epochs:            2000,
			BatchSize:         4,
			AccumulationSteps: 1,
			Shuffle:           true,
			LearningRate:      0.01,
			Optimizer:         "adam",
			Loss:              "cross_entropy",
			LogEvery:          100,
		},
	}
}

// Load reads and validates the experiment at path.
func Load(path string) (*Experiment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	e, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected. The default preset applies only when the document names
// neither a preset nor a path.
func Parse(b []byte) (*Experiment, error) {
	e := Default()
	defaultPreset := e.Dataset.Preset
	e.Dataset.Preset = ""
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(e); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if e.Dataset.Preset == "" && e.Dataset.Path == "" {
		e.Dataset.Preset = defaultPreset
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Marshal encodes the experiment as YAML.
func (e *Experiment) Marshal() ([]byte, error) {
	return yaml.Marshal(e)
}

// Validate reports every invalid field at once.
func (e *Experiment) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	d := e.Dataset
	switch {
	case d.Preset == "" && d.Path == "":
		bad("dataset needs a preset or a path")
	case d.Preset != "" && d.Path != "":
		bad("dataset preset and path are exclusive")
	case d.Preset != "":
		if _, ok := presets[strings.ToLower(d.Preset)]; !ok {
			bad("unknown dataset preset %q", d.Preset)
		}
	}
	if d.ValidationSplit < 0 || d.ValidationSplit >= 1 {
		bad("validation_split must be in [0, 1), got %v", d.ValidationSplit)
	}
	if d.ValidationSplit > 0 && d.ValidationPath != "" {
		bad("validation_split and validation_path are exclusive")
	}

	m := e.Model
	if m.InputSize <= 0 {
		bad("input_size must be > 0, got %d", m.InputSize)
	}
	if m.OutputSize < 2 {
		bad("output_size must be >= 2, got %d", m.OutputSize)
	}
	for i, h := range m.Hidden {
		if h <= 0 {
			bad("hidden[%d] must be > 0, got %d", i, h)
		}
	}
	if _, err := activations.ParseKind(m.Activation); err != nil {
		bad("%v", err)
	}

	t := e.Train
	if t.Epochs <= 0 {
		bad("epochs must be > 0, got %d", t.Epochs)
	}
	if t.BatchSize <= 0 {
		bad("batch_size must be > 0, got %d", t.BatchSize)
	}
	if t.AccumulationSteps <= 0 {
		bad("accumulation_steps must be > 0, got %d", t.AccumulationSteps)
	}
	if t.LearningRate <= 0 {
		bad("learning_rate must be > 0, got %v", t.LearningRate)
	}
	if t.GradClipNorm < 0 {
		bad("grad_clip_norm must be >= 0, got %v", t.GradClipNorm)
	}
	if t.LogEvery < 0 {
		bad("log_every must be >= 0, got %d", t.LogEvery)
	}
	if t.EarlyStopPatience < 0 {
		bad("early_stop_patience must be >= 0, got %d", t.EarlyStopPatience)
	}
	if t.EarlyStopMinDelta < 0 {
		bad("early_stop_min_delta must be >= 0, got %v", t.EarlyStopMinDelta)
	}
	if _, err := e.NewOptimizer(); err != nil {
		bad("%v", err)
	}
	if _, err := loss.ByName(t.Loss); err != nil {
		bad("%v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Activation returns the parsed hidden activation.
func (e *Experiment) Activation() (activations.Kind, error) {
	return activations.ParseKind(e.Model.Activation)
}

// BuildNetwork creates the classifier with weights drawn from rng. A nil
// rng uses a source seeded from Train.Seed, or the global source.
func (e *Experiment) BuildNetwork(rng *rand.Rand) (*net.Network, error) {
	kind, err := e.Activation()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if rng == nil && e.Train.Seed != nil {
		rng = rand.New(rand.NewSource(*e.Train.Seed))
	}

	var layers []layer.Layer
	in := e.Model.InputSize
	for _, h := range e.Model.Hidden {
		if e.Model.PerNeuron {
			nl, err := layer.NewNeurons(in, h, kind, rng)
			if err != nil {
				return nil, err
			}
			layers = append(layers, nl)
		} else {
			d, err := layer.NewDense(in, h, layer.WithRand(rng), layer.WithInitFor(kind))
			if err != nil {
				return nil, err
			}
			act, err := layer.NewActivation(h, kind)
			if err != nil {
				return nil, err
			}
			layers = append(layers, d, act)
		}
		in = h
	}

	out, err := layer.NewDense(in, e.Model.OutputSize, layer.WithRand(rng))
	if err != nil {
		return nil, err
	}
	sm, err := layer.NewSoftmax(e.Model.OutputSize)
	if err != nil {
		return nil, err
	}
	return net.New(append(layers, out, sm)...)
}

// NewOptimizer returns a fresh optimizer for the configured name.
func (e *Experiment) NewOptimizer() (opt.Optimizer, error) {
	switch strings.ToLower(e.Train.Optimizer) {
	case "adam", "":
		return opt.NewAdam(e.Train.LearningRate), nil
	case "sgd":
		return opt.NewSGD(e.Train.LearningRate), nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", e.Train.Optimizer)
}

// NewLoss returns a fresh loss for the configured name.
func (e *Experiment) NewLoss() (loss.Loss, error) {
	return loss.ByName(e.Train.Loss)
}

// TrainOptions maps the loop settings to train.Options. Validation data and
// callbacks are left to the caller.
func (e *Experiment) TrainOptions() train.Options {
	t := e.Train
	o := train.DefaultOptions()
	o.Epochs = t.Epochs
	o.BatchSize = t.BatchSize
	o.GradientAccumulationSteps = t.AccumulationSteps
	o.Shuffle = t.Shuffle
	o.DropLast = t.DropLast
	o.GradClipNorm = t.GradClipNorm
	if t.Seed != nil {
		o.Seed = train.Seed(*t.Seed)
	}
	return o
}

// Datasets loads the training set and the optional validation set.
func (e *Experiment) Datasets() (trainSet, valSet *data.Dataset, err error) {
	d := e.Dataset
	if d.Preset != "" {
		p, ok := presets[strings.ToLower(d.Preset)]
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown dataset preset %q", ErrInvalid, d.Preset)
		}
		trainSet = p.data()
	} else {
		opts := data.CSVOptions{HasHeader: d.HasHeader, Comma: ',', LabelColumn: d.LabelColumn}
		if trainSet, err = data.Load(d.Path, opts); err != nil {
			return nil, nil, err
		}
		if d.ValidationPath != "" {
			if valSet, err = data.Load(d.ValidationPath, opts); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := trainSet.Validate(); err != nil {
		return nil, nil, fmt.Errorf("training data: %w", err)
	}
	if valSet != nil {
		if err := valSet.Validate(); err != nil {
			return nil, nil, fmt.Errorf("validation data: %w", err)
		}
		if valSet.FeatureSize() != trainSet.FeatureSize() {
			return nil, nil, fmt.Errorf("%w: validation data has %d features, training data %d",
				data.ErrFeatureSize, valSet.FeatureSize(), trainSet.FeatureSize())
		}
	}

	if d.ValidationSplit > 0 {
		var seed int64
		if e.Train.Seed != nil {
			seed = *e.Train.Seed
		}
		if trainSet, valSet, err = trainSet.Split(1-d.ValidationSplit, seed); err != nil {
			return nil, nil, err
		}
	}
	if valSet == nil && d.ValidateOnTrain {
		valSet = trainSet
	}

	if d.Normalize {
		scaler, err := trainSet.NormalizeMinMax()
		if err != nil {
			return nil, nil, err
		}
		if valSet != nil && valSet != trainSet {
			for _, s := range valSet.Samples {
				if err := scaler.Apply(s.Features); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	return trainSet, valSet, nil
}
