// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// Optimizer updates parameters in place from their accumulated gradients.
//
// Step syncs every parameter it touches, so scalar-proxy parameters see the
// new value immediately.
type Optimizer interface {
	Step(params []*param.Parameter)
	ZeroGrad(params []*param.Parameter)
	LearningRate() float64
	SetLearningRate(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	lr float64
}

// NewSGD creates a plain gradient descent optimizer.
func NewSGD(lr float64) *SGD {
	return &SGD{lr: lr}
}

// Step updates params in-place: value -= lr * grad
func (s *SGD) Step(params []*param.Parameter) {
	for _, p := range params {
		v, g := p.Value(), p.Grad()
		for i := range v {
			v[i] -= s.lr * g[i]
		}
		p.Sync()
	}
}

// ZeroGrad clears the gradients of params.
func (s *SGD) ZeroGrad(params []*param.Parameter) { param.ZeroGrads(params) }

func (s *SGD) LearningRate() float64      { return s.lr }
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

// AdamConfig holds configuration for the Adam optimizer.
// Zero fields take the defaults. A zero Beta1 therefore means 0.9; set
// NoMomentum to run with β1 = 0.
type AdamConfig struct {
	LR      float64 // default 0.001
	Beta1   float64 // default 0.9
	Beta2   float64 // default 0.999
	Epsilon float64 // default 1e-8

	// NoMomentum disables the first moment average (β1 = 0), so each step
	// uses the current gradient in place of m̂.
	NoMomentum bool
}

// Moments is the per-parameter Adam state.
type Moments struct {
	M []float64
	V []float64
}

// Adam implements the Adam optimizer:
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	m̂ = m / (1-β1^t),  v̂ = v / (1-β2^t)
//	w -= lr · m̂ / (sqrt(v̂) + ε)
//
// The step counter t is shared by all parameters and advances once per Step.
// State is keyed by parameter ID, created on first sight and reset if the
// parameter length changes.
type Adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64

	t     int
	state map[uint64]*Moments
}

// NewAdam creates an Adam optimizer with default betas and epsilon.
func NewAdam(lr float64) *Adam {
	return NewAdamWithConfig(AdamConfig{LR: lr})
}

// NewAdamWithConfig creates an Adam optimizer from cfg.
func NewAdamWithConfig(cfg AdamConfig) *Adam {
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	switch {
	case cfg.NoMomentum:
		cfg.Beta1 = 0
	case cfg.Beta1 == 0:
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return &Adam{
		lr:      cfg.LR,
		beta1:   cfg.Beta1,
		beta2:   cfg.Beta2,
		epsilon: cfg.Epsilon,
		state:   make(map[uint64]*Moments),
	}
}

// Step applies one Adam update to every parameter.
func (a *Adam) Step(params []*param.Parameter) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range params {
		v, g := p.Value(), p.Grad()
		st := a.moments(p.ID(), len(v))
		for i := range v {
			st.M[i] = a.beta1*st.M[i] + (1-a.beta1)*g[i]
			st.V[i] = a.beta2*st.V[i] + (1-a.beta2)*g[i]*g[i]
			mHat := st.M[i] / bc1
			vHat := st.V[i] / bc2
			v[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.epsilon)
		}
		p.Sync()
	}
}

func (a *Adam) moments(id uint64, n int) *Moments {
	st, ok := a.state[id]
	if !ok || len(st.M) != n {
		st = &Moments{M: make([]float64, n), V: make([]float64, n)}
		a.state[id] = st
	}
	return st
}

// ZeroGrad clears the gradients of params.
func (a *Adam) ZeroGrad(params []*param.Parameter) { param.ZeroGrads(params) }

func (a *Adam) LearningRate() float64      { return a.lr }
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// Steps returns the number of Step calls so far.
func (a *Adam) Steps() int {
	return a.t
}

// Moments returns the state held for p, or nil if p was never stepped.
func (a *Adam) Moments(p *param.Parameter) *Moments {
	return a.state[p.ID()]
}

// Reset drops all moment state and the step counter.
func (a *Adam) Reset() {
	a.t = 0
	clear(a.state)
}
