package host

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/neurocore/internal/config"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

func xorHost(t *testing.T, epochs int) (*Host, train.Options) {
	t.Helper()
	e, err := config.Preset("xor")
	require.NoError(t, err)
	e.Train.Epochs = epochs
	e.Train.Seed = new(int64)

	h := New(WithMetricsWindow(100))
	require.NoError(t, h.Configure(FromExperiment(e)))
	return h, e.TrainOptions()
}

// TestMetricsBuffer tests the latest flag and the bounded window.
func TestMetricsBuffer(t *testing.T) {
	b := NewMetricsBuffer(3)
	_, ok := b.TryConsumeLatest()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		b.Push(Snapshot{Epoch: i})
	}
	s, ok := b.TryConsumeLatest()
	require.True(t, ok)
	assert.Equal(t, 5, s.Epoch)
	_, ok = b.TryConsumeLatest()
	assert.False(t, ok, "latest is consumed once")

	latest, ok := b.Latest()
	assert.True(t, ok)
	assert.Equal(t, 5, latest.Epoch)

	w := b.Window()
	require.Len(t, w, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{w[0].Epoch, w[1].Epoch, w[2].Epoch})
	w[0].Epoch = 99
	assert.Equal(t, 3, b.Window()[0].Epoch, "window is a copy")

	b.Clear()
	assert.Zero(t, b.Len())
	_, ok = b.Latest()
	assert.False(t, ok)

	assert.Equal(t, DefaultWindow, NewMetricsBuffer(0).maxWindow)
}

// TestMetricsBufferConcurrent tests concurrent producers and consumers.
func TestMetricsBufferConcurrent(t *testing.T) {
	b := NewMetricsBuffer(10)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Push(Snapshot{Epoch: j})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.TryConsumeLatest()
				b.Window()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, b.Len())
}

// TestNotConfigured tests Start and Configure preconditions.
func TestNotConfigured(t *testing.T) {
	h := New()
	assert.False(t, h.Configured())
	_, err := h.Start(context.Background(), train.DefaultOptions(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, h.Configure(Pipeline{}), ErrNotConfigured)

	_, err = h.Wait()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, h.SaveModel(filepath.Join(t.TempDir(), "m.json")), ErrNoModel)
}

// TestRunToCompletion tests a full run with metrics and epoch notifications.
func TestRunToCompletion(t *testing.T) {
	h, opts := xorHost(t, 5)

	var epochs []int
	runID, err := h.Start(context.Background(), opts, func(r train.EpochResult) {
		epochs = append(epochs, r.Epoch)
	})
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, h.RunID())

	report, err := h.Wait()
	require.NoError(t, err)
	assert.False(t, report.Stopped)
	assert.Len(t, report.History, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, epochs)
	assert.False(t, h.Running())

	window := h.Metrics().Window()
	require.Len(t, window, 5)
	for _, s := range window {
		assert.Equal(t, runID, s.RunID)
		assert.True(t, s.HasValLoss, "xor preset validates on the training set")
		assert.True(t, s.HasAccuracy)
	}

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, h.SaveModel(path))
	require.NotNil(t, h.Network())
}

// TestStop tests stopping a run from another goroutine.
func TestStop(t *testing.T) {
	h, opts := xorHost(t, 1_000_000)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	_, err := h.Start(context.Background(), opts, func(r train.EpochResult) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})
	require.NoError(t, err)
	<-entered

	assert.True(t, h.Running())
	_, err = h.Start(context.Background(), opts, nil)
	assert.ErrorIs(t, err, ErrRunning)
	assert.ErrorIs(t, h.SaveModel(filepath.Join(t.TempDir(), "m.json")), ErrRunning)
	assert.ErrorIs(t, h.LoadModel(filepath.Join(t.TempDir(), "missing.json")), ErrRunning)

	h.Stop()
	close(release)

	report, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, report.Stopped)
	assert.Less(t, len(report.History), 1_000_000)
}

// TestContextCancel tests that cancelling the caller's context fails the run.
func TestContextCancel(t *testing.T) {
	h, opts := xorHost(t, 1_000_000)
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	_, err := h.Start(ctx, opts, func(train.EpochResult) { once.Do(cancel) })
	require.NoError(t, err)

	done := make(chan struct{})
	var runErr error
	go func() {
		_, runErr = h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("run did not end after cancel")
	}
	assert.ErrorIs(t, runErr, context.Canceled)
}

// TestLoadModelContinuesTraining tests that a loaded model is used by the next run.
func TestLoadModelContinuesTraining(t *testing.T) {
	h, opts := xorHost(t, 2)
	_, err := h.Start(context.Background(), opts, nil)
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, h.SaveModel(path))

	other, _ := xorHost(t, 2)
	require.NoError(t, other.LoadModel(path))
	loaded := other.Network()
	require.NotNil(t, loaded)

	_, err = other.Start(context.Background(), opts, nil)
	require.NoError(t, err)
	_, err = other.Wait()
	require.NoError(t, err)
	assert.Same(t, loaded, other.Network())

	_, err = other.Start(context.Background(), opts, nil)
	require.NoError(t, err)
	_, err = other.Wait()
	require.NoError(t, err)
	assert.NotSame(t, loaded, other.Network(), "the loaded model is used once")
}
