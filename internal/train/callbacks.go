package train

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
)

// Callback is notified after every epoch. It may call r.RequestStop to end
// training; callbacks after it in the list are then skipped for that epoch.
type Callback interface {
	OnEpochEnd(r *EpochResult)
}

// TrainBeginner is implemented by callbacks that need the network before
// the first epoch.
type TrainBeginner interface {
	OnTrainBegin(n *net.Network)
}

// TrainEnder is implemented by callbacks that release resources when
// training returns, whatever the outcome.
type TrainEnder interface {
	OnTrainEnd(n *net.Network)
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(r *EpochResult)

func (f CallbackFunc) OnEpochEnd(r *EpochResult) { f(r) }

// Metric extracts a monitored value from an epoch result. ok is false when
// the value is unavailable, in which case monitoring callbacks skip the epoch.
type Metric func(r *EpochResult) (v float64, ok bool)

// TrainLoss monitors the training loss.
func TrainLoss(r *EpochResult) (float64, bool) { return r.TrainLoss, true }

// ValLoss monitors the validation loss.
func ValLoss(r *EpochResult) (float64, bool) { return r.ValLoss, r.HasValLoss }

// ValOrTrainLoss monitors the validation loss when present, else the training loss.
func ValOrTrainLoss(r *EpochResult) (float64, bool) {
	if r.HasValLoss {
		return r.ValLoss, true
	}
	return r.TrainLoss, true
}

// EarlyStopping stops training when a monitored metric has stopped improving.
// An epoch improves when the metric drops below best - MinDelta.
type EarlyStopping struct {
	Metric   Metric
	Patience int
	MinDelta float64
	// OnBest runs on every improvement; OnStop runs once before requesting stop.
	OnBest func()
	OnStop func()

	best         float64
	numBadEpochs int
	stopped      bool
}

// NewEarlyStopping creates an early stopping callback. Patience must be
// positive and minDelta non-negative.
func NewEarlyStopping(metric Metric, patience int, minDelta float64) (*EarlyStopping, error) {
	if metric == nil {
		return nil, errors.New("train: early stopping needs a metric")
	}
	if patience <= 0 {
		return nil, fmt.Errorf("train: early stopping patience must be > 0, got %d", patience)
	}
	if minDelta < 0 {
		return nil, fmt.Errorf("train: early stopping min delta must be >= 0, got %v", minDelta)
	}
	return &EarlyStopping{Metric: metric, Patience: patience, MinDelta: minDelta, best: math.Inf(1)}, nil
}

func (c *EarlyStopping) OnEpochEnd(r *EpochResult) {
	v, ok := c.Metric(r)
	if !ok {
		return
	}
	if v < c.best-c.MinDelta {
		c.best = v
		c.numBadEpochs = 0
		if c.OnBest != nil {
			c.OnBest()
		}
		return
	}

	c.numBadEpochs++
	if c.numBadEpochs >= c.Patience {
		if !c.stopped && c.OnStop != nil {
			c.OnStop()
		}
		c.stopped = true
		r.RequestStop()
	}
}

// Best returns the best metric value seen so far.
func (c *EarlyStopping) Best() float64 { return c.best }

// Stopped reports whether the callback requested stop.
func (c *EarlyStopping) Stopped() bool { return c.stopped }

// BestCheckpoint calls Save whenever the monitored metric improves by more
// than MinDelta. A failing save does not stop training and does not move the
// best value, so the next epoch at the same level retries. The last failure
// is available from Err.
type BestCheckpoint struct {
	Metric   Metric
	Save     func() error
	MinDelta float64

	best      float64
	candidate float64
	saves     int
	err       error
}

// NewBestCheckpoint creates a best-value checkpoint callback.
func NewBestCheckpoint(metric Metric, save func() error, minDelta float64) (*BestCheckpoint, error) {
	if metric == nil || save == nil {
		return nil, errors.New("train: best checkpoint needs a metric and a save function")
	}
	if minDelta < 0 {
		return nil, fmt.Errorf("train: best checkpoint min delta must be >= 0, got %v", minDelta)
	}
	return &BestCheckpoint{Metric: metric, Save: save, MinDelta: minDelta, best: math.Inf(1)}, nil
}

func (c *BestCheckpoint) OnEpochEnd(r *EpochResult) {
	v, ok := c.Metric(r)
	if !ok || !(v < c.best-c.MinDelta) {
		return
	}
	c.candidate = v
	if err := c.Save(); err != nil {
		c.err = fmt.Errorf("epoch %d: %w", r.Epoch, err)
		return
	}
	c.best = v
	c.saves++
}

// Best returns the best metric value saved so far.
func (c *BestCheckpoint) Best() float64 { return c.best }

// Saves returns the number of successful saves.
func (c *BestCheckpoint) Saves() int { return c.saves }

// Err returns the most recent save failure.
func (c *BestCheckpoint) Err() error { return c.err }

// ModelCheckpoint saves the network to a file every time the monitored loss
// reaches a new best. The format follows the file extension.
type ModelCheckpoint struct {
	*BestCheckpoint
	Filename string
	// Out receives one line per save; nil means os.Stdout.
	Out io.Writer

	net *net.Network
}

// NewModelCheckpoint creates a file checkpoint monitoring metric.
// A nil metric monitors ValOrTrainLoss.
func NewModelCheckpoint(filename string, metric Metric) *ModelCheckpoint {
	if metric == nil {
		metric = ValOrTrainLoss
	}
	c := &ModelCheckpoint{Filename: filename}
	c.BestCheckpoint = &BestCheckpoint{Metric: metric, Save: c.save, best: math.Inf(1)}
	return c
}

func (c *ModelCheckpoint) OnTrainBegin(n *net.Network) { c.net = n }

func (c *ModelCheckpoint) save() error {
	if c.net == nil {
		return errors.New("checkpoint: no network")
	}
	if err := c.net.Save(c.Filename); err != nil {
		fmt.Fprintf(writerOr(c.Out), "Error saving checkpoint: %v\n", err)
		return err
	}
	fmt.Fprintf(writerOr(c.Out), "Checkpoint saved: loss %.6f is new best\n", c.candidate)
	return nil
}

// ManualStop requests stop when ShouldStop returns true.
type ManualStop struct {
	ShouldStop func() bool
}

// NewManualStop creates a callback polling shouldStop after every epoch.
func NewManualStop(shouldStop func() bool) *ManualStop {
	return &ManualStop{ShouldStop: shouldStop}
}

func (c *ManualStop) OnEpochEnd(r *EpochResult) {
	if c.ShouldStop != nil && c.ShouldStop() {
		r.RequestStop()
	}
}

// StopFile requests stop once a file exists at path.
func StopFile(path string) *ManualStop {
	return NewManualStop(func() bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

// Logger prints training progress every Interval epochs.
type Logger struct {
	Interval int
	// Out defaults to os.Stdout.
	Out io.Writer
}

func (c Logger) OnEpochEnd(r *EpochResult) {
	if c.Interval <= 0 || r.Epoch%c.Interval != 0 {
		return
	}
	if r.HasValLoss {
		fmt.Fprintf(writerOr(c.Out), "Epoch %d: loss = %.6f, val_loss = %.6f\n", r.Epoch, r.TrainLoss, r.ValLoss)
		return
	}
	fmt.Fprintf(writerOr(c.Out), "Epoch %d: loss = %.6f\n", r.Epoch, r.TrainLoss)
}

// SchedulerCallback advances a learning rate scheduler once per epoch,
// feeding it the monitored metric when available.
type SchedulerCallback struct {
	scheduler opt.Scheduler
	metric    Metric
}

// NewSchedulerCallback wraps scheduler. A nil metric monitors ValOrTrainLoss.
func NewSchedulerCallback(scheduler opt.Scheduler, metric Metric) *SchedulerCallback {
	if metric == nil {
		metric = ValOrTrainLoss
	}
	return &SchedulerCallback{scheduler: scheduler, metric: metric}
}

func (c *SchedulerCallback) OnEpochEnd(r *EpochResult) {
	if v, ok := c.metric(r); ok {
		c.scheduler.StepWithLoss(v)
		return
	}
	c.scheduler.Step()
}

// AccuracyLogger reports classification accuracy on a fixed sample set
// every Every epochs.
type AccuracyLogger struct {
	Samples iter.Seq[data.Sample]
	Every   int
	// Out defaults to os.Stdout.
	Out io.Writer

	net  *net.Network
	last float64
	err  error
}

// NewAccuracyLogger creates an accuracy reporter. every < 1 is treated as 1.
func NewAccuracyLogger(samples iter.Seq[data.Sample], every int) *AccuracyLogger {
	return &AccuracyLogger{Samples: samples, Every: max(1, every)}
}

func (c *AccuracyLogger) OnTrainBegin(n *net.Network) { c.net = n }

func (c *AccuracyLogger) OnEpochEnd(r *EpochResult) {
	if c.net == nil || r.Epoch%max(1, c.Every) != 0 {
		return
	}
	acc, err := Accuracy(c.net, c.Samples)
	if err != nil {
		c.err = err
		return
	}
	c.last = acc
	fmt.Fprintf(writerOr(c.Out), "Epoch %d: accuracy=%.2f%%\n", r.Epoch, acc*100)
}

// Last returns the most recent accuracy.
func (c *AccuracyLogger) Last() float64 { return c.last }

// Err returns the most recent evaluation failure.
func (c *AccuracyLogger) Err() error { return c.err }

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
