// Package loss provides loss functions over a prediction vector and a class index.
package loss

import (
	"errors"
	"fmt"
	"math"
)

// Eps clamps probabilities away from zero before taking the log.
const Eps = 1e-12

var (
	// ErrEmptyInput is returned for an empty prediction vector.
	ErrEmptyInput = errors.New("loss: empty prediction")
	// ErrTargetRange is returned when the target index is outside the prediction.
	ErrTargetRange = errors.New("loss: target out of range")
	// ErrNoForward is returned by Backward when no forward state is cached.
	ErrNoForward = errors.New("loss: backward called without forward")
)

// Loss is a loss function with derivative.
//
// Forward caches the prediction and target; Backward returns the gradient
// with respect to that prediction.
type Loss interface {
	Forward(pred []float64, target int) (float64, error)
	Backward() ([]float64, error)
}

// SoftmaxPaired is implemented by losses whose gradient already folds in the
// softmax Jacobian, so a preceding Softmax layer may pass it through.
type SoftmaxPaired interface {
	Loss
	PairsWithSoftmax()
}

func checkInput(pred []float64, target int) error {
	if len(pred) == 0 {
		return ErrEmptyInput
	}
	if target < 0 || target >= len(pred) {
		return fmt.Errorf("%w: target %d for %d classes", ErrTargetRange, target, len(pred))
	}
	return nil
}

// CrossEntropy is the negative log-likelihood of the target class under a
// probability vector. Use it after a Softmax layer.
type CrossEntropy struct {
	last   []float64
	target int
	cached bool
}

// NewCrossEntropy creates a cross-entropy loss.
func NewCrossEntropy() *CrossEntropy {
	return &CrossEntropy{}
}

// Forward computes -log(max(p[target], Eps)).
func (c *CrossEntropy) Forward(pred []float64, target int) (float64, error) {
	if err := checkInput(pred, target); err != nil {
		return 0, err
	}
	c.last = append(c.last[:0], pred...)
	c.target = target
	c.cached = true
	return -math.Log(math.Max(pred[target], Eps)), nil
}

// Backward returns p - onehot(target), the gradient with respect to the
// logits feeding the softmax.
func (c *CrossEntropy) Backward() ([]float64, error) {
	if !c.cached {
		return nil, ErrNoForward
	}
	grad := append([]float64(nil), c.last...)
	grad[c.target] -= 1
	return grad, nil
}

// PairsWithSoftmax marks CrossEntropy as SoftmaxPaired.
func (c *CrossEntropy) PairsWithSoftmax() {}

// MSE (Mean Squared Error) loss against a one-hot encoding of the target.
type MSE struct {
	last   []float64
	target int
	cached bool
}

// NewMSE creates a mean squared error loss.
func NewMSE() *MSE {
	return &MSE{}
}

// Forward computes (1/n) * sum((p - onehot(target))^2).
func (m *MSE) Forward(pred []float64, target int) (float64, error) {
	if err := checkInput(pred, target); err != nil {
		return 0, err
	}
	m.last = append(m.last[:0], pred...)
	m.target = target
	m.cached = true

	var sum float64
	for i, p := range pred {
		diff := p - oneHot(i, target)
		sum += diff * diff
	}
	return sum / float64(len(pred)), nil
}

// Backward computes (2/n) * (p - onehot(target)).
func (m *MSE) Backward() ([]float64, error) {
	if !m.cached {
		return nil, ErrNoForward
	}
	n := len(m.last)
	grad := make([]float64, n)
	factor := 2.0 / float64(n)
	for i, p := range m.last {
		grad[i] = factor * (p - oneHot(i, m.target))
	}
	return grad, nil
}

func oneHot(i, target int) float64 {
	if i == target {
		return 1
	}
	return 0
}

// ByName returns a fresh loss for "cross_entropy" or "mse".
func ByName(name string) (Loss, error) {
	switch name {
	case "cross_entropy", "crossentropy", "ce":
		return NewCrossEntropy(), nil
	case "mse":
		return NewMSE(), nil
	}
	return nil, fmt.Errorf("loss: unknown loss %q", name)
}
