package train

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
)

var (
	// ErrInvalidOptions is returned by Train for a configuration it cannot run.
	ErrInvalidOptions = errors.New("train: invalid options")
	// ErrDivergence is returned when a loss becomes NaN or infinite.
	ErrDivergence = errors.New("train: loss diverged")
)

// Options configures a Train call.
type Options struct {
	Epochs    int
	BatchSize int
	// Shuffle reorders the training samples at the start of every epoch.
	Shuffle bool
	// DropLast skips a final batch smaller than BatchSize.
	DropLast bool
	// GradClipNorm bounds the global gradient L2 norm before each step.
	// Zero disables clipping.
	GradClipNorm float64
	// GradientAccumulationSteps is the number of batches per optimizer step.
	GradientAccumulationSteps int
	// Seed makes shuffling reproducible. Nil uses the process-wide generator.
	Seed *int64
	// Validation is evaluated after every epoch when non-nil.
	Validation iter.Seq[data.Sample]
	// Callbacks run in order after every epoch.
	Callbacks []Callback
}

// DefaultOptions returns one epoch of shuffled batches of 64, one batch per
// step and no clipping.
func DefaultOptions() Options {
	return Options{
		Epochs:                    1,
		BatchSize:                 64,
		Shuffle:                   true,
		GradientAccumulationSteps: 1,
	}
}

// Seed returns a pointer to v, for Options.Seed.
func Seed(v int64) *int64 {
	return &v
}

// Validate checks every numeric field.
func (o Options) Validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("%w: Epochs must be > 0, got %d", ErrInvalidOptions, o.Epochs)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: BatchSize must be > 0, got %d", ErrInvalidOptions, o.BatchSize)
	}
	if o.GradientAccumulationSteps <= 0 {
		return fmt.Errorf("%w: GradientAccumulationSteps must be > 0, got %d", ErrInvalidOptions, o.GradientAccumulationSteps)
	}
	if o.GradClipNorm < 0 || math.IsNaN(o.GradClipNorm) {
		return fmt.Errorf("%w: GradClipNorm must be >= 0, got %v", ErrInvalidOptions, o.GradClipNorm)
	}
	for i, cb := range o.Callbacks {
		if cb == nil {
			return fmt.Errorf("%w: callback %d is nil", ErrInvalidOptions, i)
		}
	}
	return nil
}
