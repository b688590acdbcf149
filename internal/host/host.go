// Package host runs training in the background so that a caller can
// observe progress, stop the run and manage the resulting model.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

var (
	// ErrNotConfigured is returned by Start before Configure.
	ErrNotConfigured = errors.New("host: training pipeline is not configured")
	// ErrRunning is returned when an operation needs an idle host.
	ErrRunning = errors.New("host: training is already running")
	// ErrNoModel is returned by SaveModel when no network exists yet.
	ErrNoModel = errors.New("host: no model to save; train or load one first")
	// ErrNotStarted is returned by Wait before the first Start.
	ErrNotStarted = errors.New("host: no run has been started")
)

// Pipeline supplies everything a run needs. Network, Trainer and Train are
// required; Validation is optional. Each function is called once per run
// on the calling goroutine of Start.
type Pipeline struct {
	Network    func() (*net.Network, error)
	Trainer    func(n *net.Network) (*train.Trainer, error)
	Train      func() (iter.Seq[data.Sample], error)
	Validation func() (iter.Seq[data.Sample], error)
}

// Host owns at most one training run at a time. It is safe for concurrent use.
type Host struct {
	mu        sync.Mutex
	pipeline  *Pipeline
	preloaded *net.Network
	current   *net.Network

	runID  string
	done   chan struct{}
	cancel context.CancelFunc
	report *train.Report
	err    error

	stop    atomic.Bool
	metrics *MetricsBuffer
	logger  *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsWindow sets how many snapshots the metrics buffer retains.
func WithMetricsWindow(n int) Option {
	return func(h *Host) { h.metrics = NewMetricsBuffer(n) }
}

// New creates an idle host.
func New(opts ...Option) *Host {
	h := &Host{
		metrics: NewMetricsBuffer(DefaultWindow),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Configure sets the pipeline used by subsequent runs.
func (h *Host) Configure(p Pipeline) error {
	if p.Network == nil || p.Trainer == nil || p.Train == nil {
		return fmt.Errorf("%w: network, trainer and train data are required", ErrNotConfigured)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runningLocked() {
		return ErrRunning
	}
	h.pipeline = &p
	return nil
}

// Configured reports whether a pipeline is set.
func (h *Host) Configured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipeline != nil
}

// Start launches a run and returns its id. onEpoch, if not nil, is called on
// the training goroutine after every epoch, after the callbacks in opts.
// The network is the model last passed to LoadModel, or a fresh one from
// the pipeline. Cancelling ctx or calling Stop ends the run.
func (h *Host) Start(ctx context.Context, opts train.Options, onEpoch func(train.EpochResult)) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pipeline == nil {
		return "", ErrNotConfigured
	}
	if h.runningLocked() {
		return "", ErrRunning
	}
	p := h.pipeline

	n := h.preloaded
	if n == nil {
		var err error
		if n, err = p.Network(); err != nil {
			return "", fmt.Errorf("host: build network: %w", err)
		}
	}
	trainer, err := p.Trainer(n)
	if err != nil {
		return "", fmt.Errorf("host: build trainer: %w", err)
	}
	samples, err := p.Train()
	if err != nil {
		return "", fmt.Errorf("host: training data: %w", err)
	}
	if p.Validation != nil {
		val, err := p.Validation()
		if err != nil {
			return "", fmt.Errorf("host: validation data: %w", err)
		}
		if val != nil {
			opts.Validation = val
		}
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	h.stop.Store(false)
	opts.Callbacks = append(slices.Clone(opts.Callbacks),
		train.NewManualStop(func() bool { return h.stop.Load() || runCtx.Err() != nil }),
		h.progress(runID, n, opts.Validation, onEpoch),
	)

	h.preloaded = nil
	h.current = n
	h.runID = runID
	h.cancel = cancel
	h.report, h.err = nil, nil
	done := make(chan struct{})
	h.done = done

	h.logger.Info("run started", "run_id", runID, "epochs", opts.Epochs, "batch_size", opts.BatchSize)
	go func() {
		defer cancel()
		report, err := trainer.Train(runCtx, samples, opts)
		if err != nil && h.stop.Load() && errors.Is(err, context.Canceled) {
			if report != nil {
				report.Stopped = true
			}
			err = nil
		}

		h.mu.Lock()
		h.report, h.err = report, err
		h.mu.Unlock()
		close(done)

		if err != nil {
			h.logger.Error("run failed", "run_id", runID, "error", err)
			return
		}
		h.logger.Info("run finished", "run_id", runID, "stopped", report.Stopped, "epochs", len(report.History))
	}()
	return runID, nil
}

// progress forwards every epoch to the metrics buffer and onEpoch.
func (h *Host) progress(runID string, n *net.Network, val iter.Seq[data.Sample], onEpoch func(train.EpochResult)) train.Callback {
	start := time.Now()
	return train.CallbackFunc(func(r *train.EpochResult) {
		s := Snapshot{
			RunID:      runID,
			Epoch:      r.Epoch,
			TrainLoss:  r.TrainLoss,
			ValLoss:    r.ValLoss,
			HasValLoss: r.HasValLoss,
			Timestamp:  time.Now(),
			Elapsed:    time.Since(start),
		}
		if val != nil {
			if acc, err := train.Accuracy(n, val); err == nil {
				s.Accuracy, s.HasAccuracy = acc, true
			}
		}
		h.metrics.Push(s)
		if onEpoch != nil {
			onEpoch(*r)
		}
	})
}

// Stop asks the current run to end. It returns immediately; use Wait to
// block until the run is over. A run ended by Stop reports Stopped and no
// error.
func (h *Host) Stop() {
	h.stop.Store(true)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Wait blocks until the current or last run is over and returns its outcome.
func (h *Host) Wait() (*train.Report, error) {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done == nil {
		return nil, ErrNotStarted
	}
	<-done

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report, h.err
}

// Running reports whether a run is in progress.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runningLocked()
}

func (h *Host) runningLocked() bool {
	if h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// RunID returns the id of the current or last run.
func (h *Host) RunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

// Network returns the network of the current or last run, or the loaded model.
// It must not be used for prediction while a run is in progress.
func (h *Host) Network() *net.Network {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Metrics returns the host's metrics buffer.
func (h *Host) Metrics() *MetricsBuffer {
	return h.metrics
}

// SaveModel writes the current network to path. It fails while a run is in
// progress.
func (h *Host) SaveModel(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runningLocked() {
		return ErrRunning
	}
	if h.current == nil {
		return ErrNoModel
	}
	if err := h.current.Save(path); err != nil {
		return fmt.Errorf("host: save model: %w", err)
	}
	h.logger.Info("model saved", "path", path)
	return nil
}

// LoadModel reads a network from path. The next run continues training it.
func (h *Host) LoadModel(path string) error {
	if h.Running() {
		return ErrRunning
	}
	n, err := net.Load(path)
	if err != nil {
		return fmt.Errorf("host: load model: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runningLocked() {
		return ErrRunning
	}
	h.preloaded, h.current = n, n
	h.logger.Info("model loaded", "path", path, "params", n.NumParams())
	return nil
}
