// Package data provides labelled samples, dataset loaders and demo datasets.
package data

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmpty is returned for operations that need at least one sample.
	ErrEmpty = errors.New("data: dataset is empty")
	// ErrRatio is returned by Split for a ratio outside (0, 1).
	ErrRatio = errors.New("data: split ratio must be in (0, 1)")
	// ErrFeatureSize is returned when samples disagree on feature length.
	ErrFeatureSize = errors.New("data: inconsistent feature length")
)

// Sample is one labelled example: a feature vector and a class index.
type Sample struct {
	Features []float64 `json:"x"`
	Label    int       `json:"y"`
}

// Dataset represents a collection of samples.
type Dataset struct {
	Samples []Sample
}

// New creates a dataset from samples.
func New(samples ...Sample) *Dataset {
	return &Dataset{Samples: samples}
}

// Collect drains seq into a dataset.
func Collect(seq iter.Seq[Sample]) *Dataset {
	if seq == nil {
		return &Dataset{}
	}
	return &Dataset{Samples: slices.Collect(seq)}
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// All iterates over the samples in order.
func (d *Dataset) All() iter.Seq[Sample] {
	return slices.Values(d.Samples)
}

// Shuffle returns a new dataset with the samples permuted by a Fisher-Yates
// shuffle seeded with seed. The receiver is not modified.
func (d *Dataset) Shuffle(seed int64) *Dataset {
	out := slices.Clone(d.Samples)
	rng := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return &Dataset{Samples: out}
}

// Split shuffles with seed and cuts the dataset into train and test parts.
// The train part gets round(len*ratio) samples, clamped so both parts are non-empty.
func (d *Dataset) Split(ratio float64, seed int64) (train, test *Dataset, err error) {
	if ratio <= 0 || ratio >= 1 || math.IsNaN(ratio) {
		return nil, nil, fmt.Errorf("%w: got %v", ErrRatio, ratio)
	}
	if d.Len() < 2 {
		return nil, nil, fmt.Errorf("data: split needs at least 2 samples, have %d", d.Len())
	}
	shuffled := d.Shuffle(seed).Samples
	n := int(math.Round(float64(len(shuffled)) * ratio))
	n = max(1, min(n, len(shuffled)-1))
	return &Dataset{Samples: shuffled[:n]}, &Dataset{Samples: shuffled[n:]}, nil
}

// FeatureSize returns the feature vector length of the first sample.
func (d *Dataset) FeatureSize() int {
	if d.Len() == 0 {
		return 0
	}
	return len(d.Samples[0].Features)
}

// NumClasses returns the largest label plus one.
func (d *Dataset) NumClasses() int {
	n := 0
	for _, s := range d.Samples {
		n = max(n, s.Label+1)
	}
	return n
}

// Validate checks that every sample has the same feature length and a
// non-negative label.
func (d *Dataset) Validate() error {
	if d.Len() == 0 {
		return ErrEmpty
	}
	want := d.FeatureSize()
	for i, s := range d.Samples {
		if len(s.Features) != want {
			return fmt.Errorf("%w: sample %d has %d features, want %d", ErrFeatureSize, i, len(s.Features), want)
		}
		if s.Label < 0 {
			return fmt.Errorf("data: sample %d has negative label %d", i, s.Label)
		}
	}
	return nil
}

// Scaler holds per-column minimum and maximum values.
type Scaler struct {
	Min []float64 `json:"min" yaml:"min"`
	Max []float64 `json:"max" yaml:"max"`
}

// Apply rescales x in place to [0, 1] per column. Constant columns become 0.
// x must have one value per scaler column.
func (s Scaler) Apply(x []float64) error {
	if len(x) != len(s.Min) || len(x) != len(s.Max) {
		return fmt.Errorf("%w: got %d values, scaler has %d columns", ErrFeatureSize, len(x), len(s.Min))
	}
	for i := range x {
		if diff := s.Max[i] - s.Min[i]; diff != 0 {
			x[i] = (x[i] - s.Min[i]) / diff
		} else {
			x[i] = 0
		}
	}
	return nil
}

// NormalizeMinMax performs per-column min-max normalization of the features
// in place and returns the scaler used, so the same transform can be applied
// to unseen inputs. Samples of differing lengths are rejected before any
// value changes.
func (d *Dataset) NormalizeMinMax() (Scaler, error) {
	if err := d.Validate(); err != nil {
		return Scaler{}, err
	}
	s := Scaler{
		Min: slices.Clone(d.Samples[0].Features),
		Max: slices.Clone(d.Samples[0].Features),
	}
	for _, sample := range d.Samples {
		for i, v := range sample.Features {
			s.Min[i] = math.Min(s.Min[i], v)
			s.Max[i] = math.Max(s.Max[i], v)
		}
	}
	for _, sample := range d.Samples {
		if err := s.Apply(sample.Features); err != nil {
			return Scaler{}, err
		}
	}
	return s, nil
}

// MinMax rescales a single vector to [0, 1] by its own minimum and maximum
// and returns a new slice. A constant vector comes back as an unscaled copy.
func MinMax(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	lo, hi := floats.Min(x), floats.Max(x)
	if hi == lo {
		return slices.Clone(x)
	}
	out := make([]float64, len(x))
	floats.AddConst(-lo, floats.ScaleTo(out, 1, x))
	floats.Scale(1/(hi-lo), out)
	return out
}
