package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// Softmax normalizes its input into a probability vector.
//
// Backward passes the incoming gradient through unchanged. That is only
// correct when the gradient already is p - onehot(target), which is what
// loss.CrossEntropy produces; the trainer refuses any other pairing.
type Softmax struct {
	size   int
	last   []float64
	cached bool
}

// NewSoftmax creates a softmax layer of the given width.
func NewSoftmax(size int) (*Softmax, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: softmax size %d", ErrInvalidSize, size)
	}
	return &Softmax{size: size, last: make([]float64, size)}, nil
}

// Forward computes exp(x - max(x)) / Σ exp(x - max(x)).
func (s *Softmax) Forward(x []float64, training bool) ([]float64, error) {
	if err := checkLen("softmax input", len(x), s.size); err != nil {
		return nil, err
	}
	out := Probabilities(x)
	copy(s.last, out)
	s.cached = true
	return out, nil
}

// Backward returns a copy of grad.
func (s *Softmax) Backward(grad []float64) ([]float64, error) {
	if !s.cached {
		return nil, ErrNoForward
	}
	if err := checkLen("softmax gradient", len(grad), s.size); err != nil {
		return nil, err
	}
	s.cached = false
	return append([]float64(nil), grad...), nil
}

// Parameters returns nil; softmax is not trainable.
func (s *Softmax) Parameters() []*param.Parameter {
	return nil
}

// LastOutput returns the probabilities of the most recent Forward.
func (s *Softmax) LastOutput() []float64 {
	return s.last
}

// Size returns the layer width.
func (s *Softmax) Size() int {
	return s.size
}

func (s *Softmax) InSize() int  { return s.size }
func (s *Softmax) OutSize() int { return s.size }

// Probabilities returns the numerically stable softmax of x in a new slice.
func Probabilities(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	maxVal := floats.Max(x)
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	floats.Scale(1/sum, out)
	return out
}
