// Package loss provides unit tests for loss functions.
package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCrossEntropyForward tests -log(p[target]) including the clamp.
func TestCrossEntropyForward(t *testing.T) {
	tests := []struct {
		name     string
		pred     []float64
		target   int
		expected float64
	}{
		{"Confident correct", []float64{0.9, 0.1}, 0, -math.Log(0.9)},
		{"Uniform", []float64{0.25, 0.25, 0.25, 0.25}, 3, math.Log(4)},
		{"Zero probability", []float64{1, 0}, 1, -math.Log(Eps)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewCrossEntropy()
			got, err := ce.Forward(tt.pred, tt.target)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

// TestCrossEntropyBackward tests that the gradient is p - onehot and sums to zero.
func TestCrossEntropyBackward(t *testing.T) {
	ce := NewCrossEntropy()
	pred := []float64{0.2, 0.5, 0.3}
	_, err := ce.Forward(pred, 1)
	require.NoError(t, err)

	grad, err := ce.Backward()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, -0.5, 0.3}, grad, 1e-12)

	var sum float64
	for _, g := range grad {
		sum += g
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.Equal(t, 0.5, pred[1], "prediction must not be modified")
}

// TestCrossEntropyErrors tests input validation and the forward/backward order.
func TestCrossEntropyErrors(t *testing.T) {
	ce := NewCrossEntropy()

	_, err := ce.Backward()
	require.ErrorIs(t, err, ErrNoForward)

	_, err = ce.Forward(nil, 0)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = ce.Forward([]float64{0.5, 0.5}, 2)
	require.ErrorIs(t, err, ErrTargetRange)

	_, err = ce.Forward([]float64{0.5, 0.5}, -1)
	require.ErrorIs(t, err, ErrTargetRange)
}

// TestMSEForwardBackward tests MSE against a one-hot target.
func TestMSEForwardBackward(t *testing.T) {
	mse := NewMSE()
	got, err := mse.Forward([]float64{0.5, 0.5}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-12)

	grad, err := mse.Backward()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.5, 0.5}, grad, 1e-12)

	_, err = NewMSE().Backward()
	require.ErrorIs(t, err, ErrNoForward)
}

// TestSoftmaxPairing tests which losses may follow a Softmax layer.
func TestSoftmaxPairing(t *testing.T) {
	var l Loss = NewCrossEntropy()
	_, ok := l.(SoftmaxPaired)
	assert.True(t, ok)

	l = NewMSE()
	_, ok = l.(SoftmaxPaired)
	assert.False(t, ok)
}

// TestByName tests loss lookup.
func TestByName(t *testing.T) {
	l, err := ByName("cross_entropy")
	require.NoError(t, err)
	assert.IsType(t, &CrossEntropy{}, l)

	l, err = ByName("mse")
	require.NoError(t, err)
	assert.IsType(t, &MSE{}, l)

	_, err = ByName("hinge")
	require.Error(t, err)
}
