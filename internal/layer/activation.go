package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// Activation applies a pointwise nonlinearity. It has no parameters.
type Activation struct {
	size int
	kind activations.Kind

	// Both are cached: some derivatives are expressed in z, others in a.
	lastZ  []float64
	lastA  []float64
	cached bool
}

// NewActivation creates an activation layer of the given width.
func NewActivation(size int, kind activations.Kind) (*Activation, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: activation size %d", ErrInvalidSize, size)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("layer: invalid activation kind %d", int(kind))
	}
	return &Activation{
		size:  size,
		kind:  kind,
		lastZ: make([]float64, size),
		lastA: make([]float64, size),
	}, nil
}

// Forward applies the activation elementwise.
func (a *Activation) Forward(x []float64, training bool) ([]float64, error) {
	if err := checkLen("activation input", len(x), a.size); err != nil {
		return nil, err
	}
	copy(a.lastZ, x)
	out := make([]float64, a.size)
	for i, z := range x {
		out[i] = a.kind.Activate(z)
	}
	copy(a.lastA, out)
	a.cached = true
	return out, nil
}

// Backward multiplies the incoming gradient by the activation derivative.
func (a *Activation) Backward(grad []float64) ([]float64, error) {
	if !a.cached {
		return nil, ErrNoForward
	}
	if err := checkLen("activation gradient", len(grad), a.size); err != nil {
		return nil, err
	}
	a.cached = false

	dx := make([]float64, a.size)
	for i, g := range grad {
		dx[i] = g * a.kind.Derivative(a.lastZ[i], a.lastA[i])
	}
	return dx, nil
}

// Parameters returns nil; activations are not trainable.
func (a *Activation) Parameters() []*param.Parameter {
	return nil
}

// Kind returns the activation kind.
func (a *Activation) Kind() activations.Kind {
	return a.kind
}

// Size returns the layer width.
func (a *Activation) Size() int {
	return a.size
}

func (a *Activation) InSize() int  { return a.size }
func (a *Activation) OutSize() int { return a.size }
