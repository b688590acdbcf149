// Package train runs the mini-batch training loop over a network.
package train

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// Trainer binds a network, an optimizer and a loss.
// A Trainer is not safe for concurrent use.
type Trainer struct {
	net    *net.Network
	opt    opt.Optimizer
	loss   loss.Loss
	logger *slog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a trainer.
func New(n *net.Network, o opt.Optimizer, l loss.Loss, opts ...Option) *Trainer {
	t := &Trainer{
		net:    n,
		opt:    o,
		loss:   l,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range opts {
		fn(t)
	}
	return t
}

// Network returns the trained network.
func (t *Trainer) Network() *net.Network { return t.net }

// Optimizer returns the optimizer.
func (t *Trainer) Optimizer() opt.Optimizer { return t.opt }

// Loss returns the loss function.
func (t *Trainer) Loss() loss.Loss { return t.loss }

// run holds the state of one Train call.
type run struct {
	*Trainer
	opts   Options
	params []*param.Parameter
	rng    *rand.Rand

	accumulated int
	report      *Report
}

// Train runs opts.Epochs epochs over samples.
//
// Each batch's gradients are averaged over the batch; an optimizer step is
// taken every GradientAccumulationSteps batches and once more at the end of
// an epoch for any leftover batches. Cancelling ctx aborts between samples
// and returns the context error. A callback requesting stop ends the run
// with Report.Stopped set and a nil error.
func (t *Trainer) Train(ctx context.Context, samples iter.Seq[data.Sample], opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := t.checkSoftmaxPairing(); err != nil {
		return nil, err
	}

	trainSet := data.Collect(samples)
	if trainSet.Len() == 0 {
		return nil, fmt.Errorf("%w: training set is empty", ErrInvalidOptions)
	}
	if opts.DropLast && trainSet.Len() < opts.BatchSize {
		return nil, fmt.Errorf("%w: DropLast with %d samples and BatchSize %d leaves no batch",
			ErrInvalidOptions, trainSet.Len(), opts.BatchSize)
	}
	if err := t.checkSamples("training", trainSet); err != nil {
		return nil, err
	}
	var valSet *data.Dataset
	if opts.Validation != nil {
		valSet = data.Collect(opts.Validation)
		if err := t.checkSamples("validation", valSet); err != nil {
			return nil, err
		}
	}

	r := &run{
		Trainer: t,
		opts:    opts,
		params:  t.net.Parameters(),
		report:  &Report{},
	}
	if opts.Seed != nil {
		r.rng = rand.New(rand.NewSource(*opts.Seed))
	}

	for _, cb := range opts.Callbacks {
		if b, ok := cb.(TrainBeginner); ok {
			b.OnTrainBegin(t.net)
		}
	}
	defer func() {
		for _, cb := range opts.Callbacks {
			if e, ok := cb.(TrainEnder); ok {
				e.OnTrainEnd(t.net)
			}
		}
	}()

	t.logger.Info("training started",
		"samples", trainSet.Len(),
		"epochs", opts.Epochs,
		"batch_size", opts.BatchSize,
		"accumulation", opts.GradientAccumulationSteps,
		"params", t.net.NumParams())

	order := make([]int, trainSet.Len())
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return r.report, fmt.Errorf("train: before epoch %d: %w", epoch, err)
		}
		start := time.Now()

		trainLoss, err := r.epoch(ctx, epoch, trainSet, order)
		if err != nil {
			return r.report, err
		}

		result := &EpochResult{Epoch: epoch, TrainLoss: trainLoss}
		if valSet != nil && valSet.Len() > 0 {
			v, err := Evaluate(t.net, t.loss, valSet.All())
			if err != nil {
				return r.report, fmt.Errorf("train: epoch %d validation: %w", epoch, err)
			}
			result.ValLoss, result.HasValLoss = v, true
		}

		for _, cb := range opts.Callbacks {
			cb.OnEpochEnd(result)
			if result.StopRequested() {
				break
			}
		}
		r.report.History = append(r.report.History, *result)

		t.logger.Debug("epoch finished",
			"epoch", epoch,
			"train_loss", result.TrainLoss,
			"val_loss", result.ValLoss,
			"has_val", result.HasValLoss,
			"elapsed", time.Since(start))

		if result.StopRequested() {
			r.report.Stopped = true
			t.logger.Info("training stopped by callback", "epoch", epoch)
			return r.report, nil
		}
	}

	t.logger.Info("training finished", "epochs", len(r.report.History), "steps", r.report.Steps)
	return r.report, nil
}

// epoch runs one pass over the training set and returns the mean sample loss.
func (r *run) epoch(ctx context.Context, epoch int, set *data.Dataset, order []int) (float64, error) {
	if r.opts.Shuffle {
		shuffle := rand.Shuffle
		if r.rng != nil {
			shuffle = r.rng.Shuffle
		}
		shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	r.opt.ZeroGrad(r.params)
	r.accumulated = 0

	var total float64
	var seen int
	bs := r.opts.BatchSize
	for start := 0; start < len(order); start += bs {
		end := min(start+bs, len(order))
		if r.opts.DropLast && end-start < bs {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("train: epoch %d batch %d: %w", epoch, start/bs, err)
		}

		scale := 1 / float64(end-start)
		for _, idx := range order[start:end] {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("train: epoch %d sample %d: %w", epoch, idx, err)
			}
			l, err := r.sample(set.Samples[idx], scale)
			if err != nil {
				return 0, fmt.Errorf("train: epoch %d sample %d: %w", epoch, idx, err)
			}
			total += l
			seen++
		}

		r.accumulated++
		if r.accumulated == r.opts.GradientAccumulationSteps {
			r.step()
		}
	}
	if r.accumulated > 0 {
		r.step()
	}
	return total / float64(seen), nil
}

// sample runs forward, loss and backward for one sample. The loss gradient
// is multiplied by scale before backpropagation, so the accumulated
// parameter gradients end up averaged over the batch.
func (r *run) sample(s data.Sample, scale float64) (float64, error) {
	out, err := r.net.Forward(s.Features, true)
	if err != nil {
		return 0, err
	}
	l, err := r.loss.Forward(out, s.Label)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(l) || math.IsInf(l, 0) {
		return 0, fmt.Errorf("%w: loss %v", ErrDivergence, l)
	}
	grad, err := r.loss.Backward()
	if err != nil {
		return 0, err
	}
	floats.Scale(scale, grad)
	if _, err := r.net.Backward(grad); err != nil {
		return 0, err
	}
	return l, nil
}

// step clips, updates and clears gradients.
func (r *run) step() {
	if r.opts.GradClipNorm > 0 {
		norm := ClipGradNorm(r.params, r.opts.GradClipNorm)
		if norm > r.opts.GradClipNorm {
			r.logger.Debug("gradients clipped", "norm", norm, "max", r.opts.GradClipNorm)
		}
	}
	r.opt.Step(r.params)
	param.SyncAll(r.params)
	r.opt.ZeroGrad(r.params)
	r.accumulated = 0
	r.report.Steps++
}

// checkSoftmaxPairing allows a Softmax layer only in last position and only
// with a loss whose gradient already accounts for it.
func (t *Trainer) checkSoftmaxPairing() error {
	idx := t.net.SoftmaxIndices()
	if len(idx) == 0 {
		return nil
	}
	last := len(t.net.Layers()) - 1
	if len(idx) > 1 || idx[0] != last {
		return fmt.Errorf("%w: softmax layer at %v must be the single final layer", ErrInvalidOptions, idx)
	}
	if _, ok := t.loss.(loss.SoftmaxPaired); !ok {
		return fmt.Errorf("%w: loss %T cannot follow a softmax layer; use cross-entropy", ErrInvalidOptions, t.loss)
	}
	return nil
}

func (t *Trainer) checkSamples(name string, set *data.Dataset) error {
	in, out := t.net.InSize(), t.net.OutSize()
	for i, s := range set.Samples {
		if len(s.Features) != in {
			return fmt.Errorf("%w: %s sample %d has %d features, network expects %d",
				ErrInvalidOptions, name, i, len(s.Features), in)
		}
		if s.Label < 0 || s.Label >= out {
			return fmt.Errorf("%w: %s sample %d has label %d, network has %d outputs",
				ErrInvalidOptions, name, i, s.Label, out)
		}
	}
	return nil
}
