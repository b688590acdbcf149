// Package opt provides unit tests for optimizers and schedulers.
package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

func newParam(t *testing.T, value, grad []float64) *param.Parameter {
	t.Helper()
	p, err := param.New("p", value, grad)
	require.NoError(t, err)
	return p
}

// TestSGDStep tests value -= lr * grad.
func TestSGDStep(t *testing.T) {
	sgd := NewSGD(0.1)
	value := []float64{1.0, 2.0, 3.0}
	p := newParam(t, value, []float64{0.1, 0.2, 0.3})

	sgd.Step([]*param.Parameter{p})

	assert.InDeltaSlice(t, []float64{0.99, 1.98, 2.97}, value, 1e-12)
	sgd.ZeroGrad([]*param.Parameter{p})
	assert.Equal(t, []float64{0, 0, 0}, p.Grad())
}

// TestAdamFirstStep tests that bias correction makes the first update lr·sign(g).
func TestAdamFirstStep(t *testing.T) {
	adam := NewAdam(0.01)
	value := []float64{0, 0, 0}
	p := newParam(t, value, []float64{3, -0.5, 1e-3})

	adam.Step([]*param.Parameter{p})

	assert.InDelta(t, -0.01, value[0], 1e-8)
	assert.InDelta(t, 0.01, value[1], 1e-8)
	assert.InDelta(t, -0.01, value[2], 1e-6)
	assert.Equal(t, 1, adam.Steps())
}

// TestAdamMonotoneDescent tests that a constant positive gradient strictly decreases the value.
func TestAdamMonotoneDescent(t *testing.T) {
	adam := NewAdam(0.05)
	value := []float64{1}
	grad := []float64{0}
	p := newParam(t, value, grad)

	prev := value[0]
	for i := 0; i < 100; i++ {
		grad[0] = 2
		adam.Step([]*param.Parameter{p})
		require.Less(t, value[0], prev, "step %d", i)
		prev = value[0]
	}
}

// TestAdamScalarProxy tests that Step pushes updates through scalar proxies.
func TestAdamScalarProxy(t *testing.T) {
	var bias, biasGrad float64 = 1, 0.5
	p := param.NewScalar("bias",
		func() float64 { return bias },
		func(v float64) { bias = v },
		func() float64 { return biasGrad },
		func(g float64) { biasGrad = g },
	)

	adam := NewAdam(0.1)
	adam.Step([]*param.Parameter{p})
	assert.InDelta(t, 0.9, bias, 1e-6)

	adam.ZeroGrad([]*param.Parameter{p})
	assert.Equal(t, 0.0, biasGrad)
}

// TestAdamStatePerParameter tests that moments are tracked by parameter identity.
func TestAdamStatePerParameter(t *testing.T) {
	adam := NewAdamWithConfig(AdamConfig{LR: 0.01, Beta1: 0.5})
	a := newParam(t, []float64{0, 0}, []float64{1, 1})
	b := newParam(t, []float64{0}, []float64{-2})

	assert.Nil(t, adam.Moments(a))
	adam.Step([]*param.Parameter{a})
	require.NotNil(t, adam.Moments(a))
	assert.Nil(t, adam.Moments(b))

	adam.Step([]*param.Parameter{a, b})
	assert.InDeltaSlice(t, []float64{0.75, 0.75}, adam.Moments(a).M, 1e-12)
	assert.InDeltaSlice(t, []float64{-1}, adam.Moments(b).M, 1e-12)
	assert.Equal(t, 2, adam.Steps())

	adam.Reset()
	assert.Equal(t, 0, adam.Steps())
	assert.Nil(t, adam.Moments(a))
}

// TestAdamDefaults tests zero config fields take defaults.
func TestAdamDefaults(t *testing.T) {
	adam := NewAdamWithConfig(AdamConfig{})
	assert.Equal(t, 0.001, adam.LearningRate())
	assert.Equal(t, 0.9, adam.beta1)
	assert.Equal(t, 0.999, adam.beta2)
	assert.Equal(t, 1e-8, adam.epsilon)

	adam.SetLearningRate(0.5)
	assert.Equal(t, 0.5, adam.LearningRate())
}

// TestAdamNoMomentum tests that β1 can be switched off.
func TestAdamNoMomentum(t *testing.T) {
	adam := NewAdamWithConfig(AdamConfig{LR: 0.1, NoMomentum: true})
	assert.Equal(t, 0.0, adam.beta1)
	assert.Equal(t, 0.999, adam.beta2)

	p := newParam(t, []float64{0}, []float64{2})
	adam.Step([]*param.Parameter{p})
	assert.InDeltaSlice(t, []float64{2}, adam.Moments(p).M, 1e-12)

	p.Grad()[0] = -3
	adam.Step([]*param.Parameter{p})
	assert.InDeltaSlice(t, []float64{-3}, adam.Moments(p).M, 1e-12, "first moment tracks the latest gradient")
}

// TestStepLR tests decay every stepSize epochs.
func TestStepLR(t *testing.T) {
	o := NewSGD(1)
	s := NewStepLR(o, 2, 0.5)

	s.Step()
	assert.Equal(t, 1.0, s.LR())
	s.Step()
	assert.Equal(t, 0.5, s.LR())
	s.StepWithLoss(10)
	s.StepWithLoss(10)
	assert.Equal(t, 0.25, o.LearningRate())
}

// TestExponentialLR tests decay every epoch.
func TestExponentialLR(t *testing.T) {
	o := NewAdam(0.1)
	s := NewExponentialLR(o, 0.9)
	for i := 0; i < 3; i++ {
		s.Step()
	}
	assert.InDelta(t, 0.1*math.Pow(0.9, 3), s.LR(), 1e-15)
}

// TestReduceLROnPlateau tests reduction after patience epochs without improvement.
func TestReduceLROnPlateau(t *testing.T) {
	o := NewSGD(0.1)
	s := NewReduceLROnPlateau(o, 0.5, 2, 0, 0.03).WithCooldown(1)

	s.StepWithLoss(1.0)
	s.StepWithLoss(1.0)
	assert.Equal(t, 0.1, o.LearningRate())
	s.StepWithLoss(1.0)
	assert.Equal(t, 0.05, o.LearningRate())

	// cooldown epoch is skipped
	s.StepWithLoss(2.0)
	s.StepWithLoss(2.0)
	s.StepWithLoss(2.0)
	assert.Equal(t, 0.03, o.LearningRate(), "clamped to minLR")
}
