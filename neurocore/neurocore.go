// Package neurocore re-exports the common types and constructors of the
// training engine for use outside this module.
package neurocore

import (
	"context"
	"iter"
	"math/rand"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/config"
	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/host"
	"github.com/FlavioCFOliveira/neurocore/internal/inference"
	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

// Re-export common types for easier access
type (
	Network     = net.Network
	Layer       = layer.Layer
	Activation  = activations.Kind
	Optimizer   = opt.Optimizer
	Scheduler   = opt.Scheduler
	Loss        = loss.Loss
	Sample      = data.Sample
	Dataset     = data.Dataset
	Trainer     = train.Trainer
	Options     = train.Options
	EpochResult = train.EpochResult
	Report      = train.Report
	Callback    = train.Callback
	Experiment  = config.Experiment
	Session     = inference.Session
	Host        = host.Host
)

// Activations
const (
	Linear    = activations.Linear
	Sigmoid   = activations.Sigmoid
	Tanh      = activations.Tanh
	ReLU      = activations.ReLU
	LeakyReLU = activations.LeakyReLU
	ELU       = activations.ELU
	GELU      = activations.GELU
	Swish     = activations.Swish
	Softplus  = activations.Softplus
)

// Errors
var (
	ErrInvalidOptions = train.ErrInvalidOptions
	ErrDivergence     = train.ErrDivergence
	ErrShapeMismatch  = layer.ErrShapeMismatch
	ErrUnknownLayer   = net.ErrUnknownLayer
)

// Model creation
func Sequential(layers ...Layer) (*Network, error) {
	return net.New(layers...)
}

// Classifier builds hidden Dense+activation blocks, an output Dense and a Softmax.
func Classifier(in int, hidden []int, out int, act Activation, rng *rand.Rand) (*Network, error) {
	e := config.Default()
	e.Model = config.Model{InputSize: in, OutputSize: out, Hidden: hidden, Activation: act.String()}
	return e.BuildNetwork(rng)
}

// Layers
func Dense(in, out int, rng *rand.Rand) (*layer.Dense, error) {
	return layer.NewDense(in, out, layer.WithRand(rng))
}

func DenseFor(in, out int, next Activation, rng *rand.Rand) (*layer.Dense, error) {
	return layer.NewDense(in, out, layer.WithRand(rng), layer.WithInitFor(next))
}

func ActivationLayer(size int, kind Activation) (*layer.Activation, error) {
	return layer.NewActivation(size, kind)
}

func Softmax(size int) (*layer.Softmax, error) {
	return layer.NewSoftmax(size)
}

func Neurons(in, count int, kind Activation, rng *rand.Rand) (*layer.Neurons, error) {
	return layer.NewNeurons(in, count, kind, rng)
}

// Optimizers
func Adam(lr float64) *opt.Adam {
	return opt.NewAdam(lr)
}

func SGD(lr float64) *opt.SGD {
	return opt.NewSGD(lr)
}

func StepLR(o Optimizer, stepSize int, gamma float64) *opt.StepLR {
	return opt.NewStepLR(o, stepSize, gamma)
}

func ReduceLROnPlateau(o Optimizer, factor float64, patience int, threshold, minLR float64) *opt.ReduceLROnPlateau {
	return opt.NewReduceLROnPlateau(o, factor, patience, threshold, minLR)
}

// Losses
func CrossEntropy() *loss.CrossEntropy {
	return loss.NewCrossEntropy()
}

func MSE() *loss.MSE {
	return loss.NewMSE()
}

// Training
func NewTrainer(n *Network, o Optimizer, l Loss) *Trainer {
	return train.New(n, o, l)
}

func DefaultOptions() Options {
	return train.DefaultOptions()
}

// Fit trains n on samples with a fresh trainer.
func Fit(ctx context.Context, n *Network, o Optimizer, l Loss, samples iter.Seq[Sample], opts Options) (*Report, error) {
	return train.New(n, o, l).Train(ctx, samples, opts)
}

func Accuracy(n *Network, samples iter.Seq[Sample]) (float64, error) {
	return train.Accuracy(n, samples)
}

// Callbacks
func Logger(interval int) train.Logger {
	return train.Logger{Interval: interval}
}

func EarlyStopping(patience int, minDelta float64) (*train.EarlyStopping, error) {
	return train.NewEarlyStopping(train.ValOrTrainLoss, patience, minDelta)
}

func ModelCheckpoint(filename string) *train.ModelCheckpoint {
	return train.NewModelCheckpoint(filename, nil)
}

func SchedulerCallback(s Scheduler) *train.SchedulerCallback {
	return train.NewSchedulerCallback(s, nil)
}

func CSVLogger(filename string, append bool) *train.CSVLogger {
	return train.NewCSVLogger(filename, append)
}

func StopFile(path string) *train.ManualStop {
	return train.StopFile(path)
}

// Data
func XOR() *Dataset { return data.XOR() }

func AND() *Dataset { return data.AND() }

func LoadDataset(path string) (*Dataset, error) {
	return data.Load(path, data.DefaultCSVOptions())
}

// Model persistence
func Load(filename string) (*Network, error) {
	return net.Load(filename)
}

func Open(filename string) (*Session, error) {
	return inference.Open(filename)
}

// Experiments
func LoadExperiment(path string) (*Experiment, error) {
	return config.Load(path)
}

func Preset(name string) (*Experiment, error) {
	return config.Preset(name)
}

func NewHost() *Host {
	return host.New()
}
