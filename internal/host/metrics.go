package host

import (
	"slices"
	"sync"
	"time"
)

// DefaultWindow is the number of snapshots kept when no size is given.
const DefaultWindow = 2000

// Snapshot is one epoch's metrics as seen by an observer.
type Snapshot struct {
	RunID       string
	Epoch       int
	TrainLoss   float64
	ValLoss     float64
	HasValLoss  bool
	Accuracy    float64
	HasAccuracy bool
	Timestamp   time.Time
	Elapsed     time.Duration
}

// MetricsBuffer decouples the training goroutine from observers. It keeps
// the latest snapshot with a "new" flag and a bounded window of history.
// It is safe for concurrent use.
type MetricsBuffer struct {
	mu        sync.Mutex
	window    []Snapshot
	maxWindow int
	latest    Snapshot
	hasLatest bool
	hasNew    bool
}

// NewMetricsBuffer creates a buffer keeping at most maxWindow snapshots.
// A non-positive maxWindow uses DefaultWindow.
func NewMetricsBuffer(maxWindow int) *MetricsBuffer {
	if maxWindow <= 0 {
		maxWindow = DefaultWindow
	}
	return &MetricsBuffer{maxWindow: maxWindow}
}

// Push records s as the latest snapshot and appends it to the window,
// dropping the oldest entries beyond the limit.
func (b *MetricsBuffer) Push(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest, b.hasLatest, b.hasNew = s, true, true
	b.window = append(b.window, s)
	if over := len(b.window) - b.maxWindow; over > 0 {
		b.window = slices.Delete(b.window, 0, over)
	}
}

// TryConsumeLatest returns the latest snapshot if it has not been consumed yet.
func (b *MetricsBuffer) TryConsumeLatest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasNew || !b.hasLatest {
		return Snapshot{}, false
	}
	b.hasNew = false
	return b.latest, true
}

// Latest returns the latest snapshot without consuming it.
func (b *MetricsBuffer) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.hasLatest
}

// Window returns a copy of the retained snapshots, oldest first.
func (b *MetricsBuffer) Window() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.window)
}

// Len returns the number of retained snapshots.
func (b *MetricsBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.window)
}

// Clear drops everything.
func (b *MetricsBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = nil
	b.latest, b.hasLatest, b.hasNew = Snapshot{}, false, false
}
