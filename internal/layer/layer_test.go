// Package layer provides unit tests for neural network layers.
package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
)

func newTestDense(t *testing.T, in, out int) *Dense {
	t.Helper()
	d, err := NewDense(in, out, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	return d
}

// TestNewDenseInvalidSize tests constructor validation.
func TestNewDenseInvalidSize(t *testing.T) {
	_, err := NewDense(0, 3)
	require.ErrorIs(t, err, ErrInvalidSize)
	_, err = NewDense(3, -1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

// TestDenseInit tests fan-in scaled init bounds and zero bias.
func TestDenseInit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	relu, err := NewDense(8, 16, WithRand(rng), WithInitFor(activations.ReLU))
	require.NoError(t, err)
	tanh, err := NewDense(8, 16, WithRand(rng), WithInitFor(activations.Tanh))
	require.NoError(t, err)

	for _, w := range relu.Weights() {
		assert.LessOrEqual(t, math.Abs(w), math.Sqrt(2.0/8))
	}
	for _, w := range tanh.Weights() {
		assert.LessOrEqual(t, math.Abs(w), math.Sqrt(1.0/8))
	}
	for _, b := range relu.Biases() {
		assert.Equal(t, 0.0, b)
	}
}

// TestDenseForward tests y = W·x + b with known weights.
func TestDenseForward(t *testing.T) {
	d := newTestDense(t, 2, 2)
	d.SetWeight(0, 0, 1)
	d.SetWeight(0, 1, 2)
	d.SetWeight(1, 0, -1)
	d.SetWeight(1, 1, 0.5)
	d.SetBias(0, 0.1)
	d.SetBias(1, -0.2)

	y, err := d.Forward([]float64{3, 4}, true)
	require.NoError(t, err)
	assert.InDelta(t, 3+8+0.1, y[0], 1e-12)
	assert.InDelta(t, -3+2-0.2, y[1], 1e-12)
	assert.Equal(t, 2.0, d.Weight(0, 1))
}

// TestDenseBackwardOuterProduct tests dW = dy ⊗ x exactly and dx = Wᵗ·dy.
func TestDenseBackwardOuterProduct(t *testing.T) {
	d := newTestDense(t, 3, 2)
	x := []float64{0.5, -1.25, 2}
	dy := []float64{0.3, -0.7}

	_, err := d.Forward(x, true)
	require.NoError(t, err)
	dx, err := d.Backward(dy)
	require.NoError(t, err)

	for o := 0; o < 2; o++ {
		for i := 0; i < 3; i++ {
			assert.Equal(t, dy[o]*x[i], d.WeightGrads()[o*3+i], "dW[%d,%d]", o, i)
		}
		assert.Equal(t, dy[o], d.BiasGrads()[o])
	}
	for i := 0; i < 3; i++ {
		want := d.Weight(0, i)*dy[0] + d.Weight(1, i)*dy[1]
		assert.InDelta(t, want, dx[i], 1e-12, "dx[%d]", i)
	}
}

// TestDenseBackwardAccumulates tests that a second pass adds to the gradients.
func TestDenseBackwardAccumulates(t *testing.T) {
	d := newTestDense(t, 2, 1)
	x := []float64{1, 2}
	dy := []float64{0.5}

	for i := 0; i < 2; i++ {
		_, err := d.Forward(x, true)
		require.NoError(t, err)
		_, err = d.Backward(dy)
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{1, 2}, d.WeightGrads())
	assert.Equal(t, []float64{1}, d.BiasGrads())

	for _, p := range d.Parameters() {
		p.ZeroGrad()
	}
	assert.Equal(t, []float64{0, 0}, d.WeightGrads())
}

// TestDenseForwardCopiesInput tests that caller buffer reuse does not corrupt the cache.
func TestDenseForwardCopiesInput(t *testing.T) {
	d := newTestDense(t, 2, 1)
	x := []float64{1, 2}
	_, err := d.Forward(x, true)
	require.NoError(t, err)

	x[0], x[1] = 100, 200
	_, err = d.Backward([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, d.WeightGrads())
}

// TestDenseShapeErrors tests the forward/backward state machine.
func TestDenseShapeErrors(t *testing.T) {
	d := newTestDense(t, 2, 3)

	_, err := d.Forward([]float64{1}, true)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Backward([]float64{1, 1, 1})
	require.ErrorIs(t, err, ErrNoForward)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Forward([]float64{1, 1}, true)
	require.NoError(t, err)
	_, err = d.Backward([]float64{1, 1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Backward([]float64{1, 1, 1})
	require.NoError(t, err)
	_, err = d.Backward([]float64{1, 1, 1})
	require.ErrorIs(t, err, ErrNoForward, "backward consumes the cached state")
}

// TestDenseParameters tests that parameters alias the layer buffers.
func TestDenseParameters(t *testing.T) {
	d := newTestDense(t, 3, 2)
	params := d.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, 6, params[0].Len())
	assert.Equal(t, 2, params[1].Len())

	params[0].Value()[0] = 42
	assert.Equal(t, 42.0, d.Weight(0, 0))
	assert.Equal(t, 3, d.InSize())
	assert.Equal(t, 2, d.OutSize())
}

// TestActivationForwardBackward tests ReLU and Sigmoid layers.
func TestActivationForwardBackward(t *testing.T) {
	relu, err := NewActivation(3, activations.ReLU)
	require.NoError(t, err)
	out, err := relu.Forward([]float64{-1, 0, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2}, out)
	dx, err := relu.Backward([]float64{5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 5}, dx)

	sig, err := NewActivation(1, activations.Sigmoid)
	require.NoError(t, err)
	a, err := sig.Forward([]float64{0}, true)
	require.NoError(t, err)
	dx, err = sig.Backward([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, a[0]*(1-a[0]), dx[0], 1e-12)
	assert.Nil(t, sig.Parameters())
}

// TestActivationErrors tests construction and state errors.
func TestActivationErrors(t *testing.T) {
	_, err := NewActivation(0, activations.ReLU)
	require.ErrorIs(t, err, ErrInvalidSize)
	_, err = NewActivation(2, activations.Kind(42))
	require.Error(t, err)

	a, err := NewActivation(2, activations.Tanh)
	require.NoError(t, err)
	_, err = a.Backward([]float64{1, 1})
	require.ErrorIs(t, err, ErrNoForward)
	_, err = a.Forward([]float64{1}, true)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

// TestSoftmaxSumsToOne tests normalization over a range of inputs.
func TestSoftmaxSumsToOne(t *testing.T) {
	inputs := [][]float64{
		{1, 2, 3},
		{-1000, 0, 1000},
		{0, 0, 0, 0},
		{745, 746, 747},
	}
	for _, x := range inputs {
		s, err := NewSoftmax(len(x))
		require.NoError(t, err)
		p, err := s.Forward(x, false)
		require.NoError(t, err)

		var sum float64
		for _, v := range p {
			assert.False(t, math.IsNaN(v))
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "input %v", x)
	}
}

// TestSoftmaxShiftInvariant tests invariance to adding a constant.
func TestSoftmaxShiftInvariant(t *testing.T) {
	x := []float64{0.3, -1.2, 2.5, 0}
	shifted := make([]float64, len(x))
	for i := range x {
		shifted[i] = x[i] + 123.456
	}
	p1 := Probabilities(x)
	p2 := Probabilities(shifted)
	assert.InDeltaSlice(t, p1, p2, 1e-9)
}

// TestSoftmaxBackwardPassThrough tests the cross-entropy paired backward.
func TestSoftmaxBackwardPassThrough(t *testing.T) {
	s, err := NewSoftmax(2)
	require.NoError(t, err)
	_, err = s.Backward([]float64{1, 2})
	require.ErrorIs(t, err, ErrNoForward)

	_, err = s.Forward([]float64{1, 2}, true)
	require.NoError(t, err)
	g := []float64{0.25, -0.25}
	dx, err := s.Backward(g)
	require.NoError(t, err)
	assert.Equal(t, g, dx)

	dx[0] = 9
	assert.Equal(t, 0.25, g[0], "backward must return a copy")
}

// TestNeuronsMatchesDense tests that a per-neuron layer computes the same function as Dense+Activation.
func TestNeuronsMatchesDense(t *testing.T) {
	n, err := NewNeurons(3, 2, activations.Tanh, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	d := newTestDense(t, 3, 2)
	for o, neuron := range n.Neurons() {
		for i, w := range neuron.Weights {
			d.SetWeight(o, i, w)
		}
		d.SetBias(o, neuron.Bias)
	}
	act, err := NewActivation(2, activations.Tanh)
	require.NoError(t, err)

	x := []float64{0.2, -0.4, 1.1}
	got, err := n.Forward(x, true)
	require.NoError(t, err)
	z, err := d.Forward(x, true)
	require.NoError(t, err)
	want, err := act.Forward(z, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	dy := []float64{0.5, -1}
	dxN, err := n.Backward(dy)
	require.NoError(t, err)
	dz, err := act.Backward(dy)
	require.NoError(t, err)
	dxD, err := d.Backward(dz)
	require.NoError(t, err)
	assert.InDeltaSlice(t, dxD, dxN, 1e-12)

	for o, neuron := range n.Neurons() {
		assert.InDelta(t, d.BiasGrads()[o], neuron.BiasGrad, 1e-12)
	}
}

// TestNeuronsScalarBiasParameters tests that bias parameters are scalar proxies.
func TestNeuronsScalarBiasParameters(t *testing.T) {
	n, err := NewNeurons(2, 3, activations.ReLU, nil)
	require.NoError(t, err)

	params := n.Parameters()
	require.Len(t, params, 6)
	for i, p := range params {
		assert.Equal(t, i%2 == 1, p.IsScalar())
	}

	bias := params[1]
	bias.Value()[0] = 0.75
	bias.Sync()
	assert.Equal(t, 0.75, n.Neurons()[0].Bias)
	assert.Equal(t, 2, n.InSize())
	assert.Equal(t, 3, n.OutSize())
}
