// Package param provides trainable parameters shared by layers and optimizers.
package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch is returned when value and gradient buffers differ in length.
	ErrLengthMismatch = errors.New("param: value and grad must have same length")
	// ErrEmpty is returned for nil or zero-length buffers.
	ErrEmpty = errors.New("param: empty buffer")
)

var nextID atomic.Uint64

// Parameter is a value buffer paired with a gradient buffer of the same length.
//
// A buffer parameter aliases a layer's weight or bias slice directly.
// A scalar parameter wraps a single float64 field owned by a layer: its
// length-1 buffers are refreshed from the owner on Value/Grad and written
// back on Sync.
type Parameter struct {
	id    uint64
	name  string
	value []float64
	grad  []float64
	proxy *scalarProxy
}

type scalarProxy struct {
	get     func() float64
	set     func(float64)
	getGrad func() float64
	setGrad func(float64)

	// Set when a buffer was handed out and may have been written.
	valueOut, gradOut bool
}

// New creates a buffer parameter over value and grad.
func New(name string, value, grad []float64) (*Parameter, error) {
	if len(value) == 0 || len(grad) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmpty, name)
	}
	if len(value) != len(grad) {
		return nil, fmt.Errorf("%w: %q has %d values and %d grads", ErrLengthMismatch, name, len(value), len(grad))
	}
	return &Parameter{
		id:    nextID.Add(1),
		name:  name,
		value: value,
		grad:  grad,
	}, nil
}

// NewScalar creates a scalar proxy parameter backed by accessor closures.
func NewScalar(name string, get func() float64, set func(float64), getGrad func() float64, setGrad func(float64)) *Parameter {
	p := &Parameter{
		id:    nextID.Add(1),
		name:  name,
		value: []float64{get()},
		grad:  []float64{getGrad()},
		proxy: &scalarProxy{get: get, set: set, getGrad: getGrad, setGrad: setGrad},
	}
	return p
}

// ID returns the identity token assigned at construction.
func (p *Parameter) ID() uint64 {
	return p.id
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Len returns the number of elements.
func (p *Parameter) Len() int {
	return len(p.value)
}

// IsScalar reports whether p is a scalar proxy.
func (p *Parameter) IsScalar() bool {
	return p.proxy != nil
}

// Value returns the mutable value buffer.
func (p *Parameter) Value() []float64 {
	if p.proxy != nil {
		p.value[0] = p.proxy.get()
		p.proxy.valueOut = true
	}
	return p.value
}

// Grad returns the mutable gradient buffer.
func (p *Parameter) Grad() []float64 {
	if p.proxy != nil {
		p.grad[0] = p.proxy.getGrad()
		p.proxy.gradOut = true
	}
	return p.grad
}

// ZeroGrad fills the gradient with zeros.
func (p *Parameter) ZeroGrad() {
	if p.proxy != nil {
		p.proxy.setGrad(0)
		p.grad[0] = 0
		p.proxy.gradOut = false
		return
	}
	clear(p.grad)
}

// Sync pushes the local buffers of a scalar parameter back to its owner.
// Only buffers obtained through Value or Grad since the last Sync are
// written. Buffer parameters alias their owner's storage, so Sync is a
// no-op for them.
func (p *Parameter) Sync() {
	if p.proxy == nil {
		return
	}
	if p.proxy.valueOut {
		p.proxy.set(p.value[0])
		p.proxy.valueOut = false
	}
	if p.proxy.gradOut {
		p.proxy.setGrad(p.grad[0])
		p.proxy.gradOut = false
	}
}

// ZeroGrads zeroes every gradient in params.
func ZeroGrads(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// SyncAll calls Sync on every parameter.
func SyncAll(params []*Parameter) {
	for _, p := range params {
		p.Sync()
	}
}

// ScaleGrads multiplies every gradient element by s. Values are left alone.
func ScaleGrads(params []*Parameter, s float64) {
	for _, p := range params {
		floats.Scale(s, p.Grad())
		if p.proxy != nil {
			p.proxy.setGrad(p.grad[0])
			p.proxy.gradOut = false
		}
	}
}

// GlobalGradNorm returns sqrt(sum g^2) over all gradients.
func GlobalGradNorm(params []*Parameter) float64 {
	var sum float64
	for _, p := range params {
		g := p.Grad()
		sum += floats.Dot(g, g)
	}
	return math.Sqrt(sum)
}

// Count returns the total number of scalar elements across params.
func Count(params []*Parameter) int {
	total := 0
	for _, p := range params {
		total += p.Len()
	}
	return total
}
