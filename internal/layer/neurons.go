package layer

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// Neuron is a single unit with its own weights and a scalar bias.
type Neuron struct {
	Weights     []float64
	WeightGrads []float64
	Bias        float64
	BiasGrad    float64

	z, a float64
}

// Neurons is a fully connected layer stored as individual neurons with a
// fused activation. Each scalar bias is exposed to optimizers through a
// proxy parameter, so callers must Sync parameters after updating them.
type Neurons struct {
	neurons []*Neuron
	kind    activations.Kind
	inSize  int

	input    []float64
	hasInput bool

	params []*param.Parameter
}

// NewNeurons creates a layer of count neurons over in inputs.
// A nil rng uses the process-wide generator.
func NewNeurons(in, count int, kind activations.Kind, rng *rand.Rand) (*Neurons, error) {
	if in <= 0 || count <= 0 {
		return nil, fmt.Errorf("%w: neurons %dx%d", ErrInvalidSize, in, count)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("layer: invalid activation kind %d", int(kind))
	}
	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}
	scale := math.Sqrt(1.0 / float64(in))
	if kind.IsReLUFamily() {
		scale = math.Sqrt(2.0 / float64(in))
	}

	l := &Neurons{
		neurons: make([]*Neuron, count),
		kind:    kind,
		inSize:  in,
		input:   make([]float64, in),
		params:  make([]*param.Parameter, 0, 2*count),
	}
	for i := range l.neurons {
		n := &Neuron{
			Weights:     make([]float64, in),
			WeightGrads: make([]float64, in),
			Bias:        (uniform()*2 - 1) * scale,
		}
		for j := range n.Weights {
			n.Weights[j] = (uniform()*2 - 1) * scale
		}
		l.neurons[i] = n

		w, err := param.New(fmt.Sprintf("neuron%d.weight", i), n.Weights, n.WeightGrads)
		if err != nil {
			return nil, err
		}
		b := param.NewScalar(fmt.Sprintf("neuron%d.bias", i),
			func() float64 { return n.Bias },
			func(v float64) { n.Bias = v },
			func() float64 { return n.BiasGrad },
			func(g float64) { n.BiasGrad = g },
		)
		l.params = append(l.params, w, b)
	}
	return l, nil
}

// Forward computes f(w·x + b) for every neuron.
func (l *Neurons) Forward(x []float64, training bool) ([]float64, error) {
	if err := checkLen("neurons input", len(x), l.inSize); err != nil {
		return nil, err
	}
	copy(l.input, x)
	l.hasInput = true

	out := make([]float64, len(l.neurons))
	for i, n := range l.neurons {
		n.z = n.Bias + floats.Dot(n.Weights, l.input)
		n.a = l.kind.Activate(n.z)
		out[i] = n.a
	}
	return out, nil
}

// Backward accumulates weight and bias gradients and returns dx.
func (l *Neurons) Backward(grad []float64) ([]float64, error) {
	if !l.hasInput {
		return nil, ErrNoForward
	}
	if err := checkLen("neurons gradient", len(grad), len(l.neurons)); err != nil {
		return nil, err
	}
	l.hasInput = false

	dx := make([]float64, l.inSize)
	for i, n := range l.neurons {
		delta := grad[i] * l.kind.Derivative(n.z, n.a)
		n.BiasGrad += delta
		floats.AddScaled(n.WeightGrads, delta, l.input)
		floats.AddScaled(dx, delta, n.Weights)
	}
	return dx, nil
}

// Parameters returns weights and scalar biases, neuron by neuron.
func (l *Neurons) Parameters() []*param.Parameter {
	return l.params
}

// Neurons returns the underlying neurons.
func (l *Neurons) Neurons() []*Neuron {
	return l.neurons
}

// Kind returns the fused activation kind.
func (l *Neurons) Kind() activations.Kind {
	return l.kind
}

func (l *Neurons) InSize() int  { return l.inSize }
func (l *Neurons) OutSize() int { return len(l.neurons) }
