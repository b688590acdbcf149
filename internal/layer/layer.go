// Package layer provides neural network layer implementations.
package layer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

var (
	// ErrInvalidSize is returned by constructors for non-positive sizes.
	ErrInvalidSize = errors.New("layer: size must be > 0")
	// ErrShapeMismatch is returned when a vector length disagrees with a layer's size.
	ErrShapeMismatch = errors.New("layer: shape mismatch")
	// ErrNoForward is returned by Backward when no forward state is cached.
	ErrNoForward = fmt.Errorf("%w: backward called without forward", ErrShapeMismatch)
)

// Layer is a neural network layer.
//
// Forward caches whatever Backward needs; a layer holds at most one
// forward/backward pair at a time and is not safe for concurrent use.
type Layer interface {
	Forward(x []float64, training bool) ([]float64, error)
	Backward(grad []float64) ([]float64, error)
	Parameters() []*param.Parameter
	InSize() int
	OutSize() int
}

func checkLen(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has length %d, want %d", ErrShapeMismatch, what, got, want)
	}
	return nil
}

// Dense is a fully connected layer computing y = W·x + b.
// W is stored row-major as [out*in]; weight for output o, input i is at weights[o*in+i].
type Dense struct {
	weights []float64
	biases  []float64
	gradW   []float64
	gradB   []float64
	inSize  int
	outSize int

	// Matrix view over weights, shares the backing slice.
	w *mat.Dense

	input    []float64
	hasInput bool

	params []*param.Parameter
}

type denseConfig struct {
	rng  *rand.Rand
	hint activations.Kind
}

// DenseOption configures NewDense.
type DenseOption func(*denseConfig)

// WithRand sets the random source used for weight initialization.
func WithRand(rng *rand.Rand) DenseOption {
	return func(c *denseConfig) { c.rng = rng }
}

// WithInitFor scales initialization for the activation that follows the layer.
func WithInitFor(k activations.Kind) DenseOption {
	return func(c *denseConfig) { c.hint = k }
}

// NewDense creates a dense layer with fan-in scaled uniform weights and zero bias.
func NewDense(in, out int, opts ...DenseOption) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: dense %dx%d", ErrInvalidSize, in, out)
	}
	cfg := denseConfig{hint: activations.Linear}
	for _, o := range opts {
		o(&cfg)
	}

	d := &Dense{
		weights: make([]float64, out*in),
		biases:  make([]float64, out),
		gradW:   make([]float64, out*in),
		gradB:   make([]float64, out),
		inSize:  in,
		outSize: out,
		input:   make([]float64, in),
	}
	d.w = mat.NewDense(out, in, d.weights)

	// He-like for the ReLU family, narrower otherwise.
	scale := math.Sqrt(1.0 / float64(in))
	if cfg.hint.IsReLUFamily() {
		scale = math.Sqrt(2.0 / float64(in))
	}
	uniform := rand.Float64
	if cfg.rng != nil {
		uniform = cfg.rng.Float64
	}
	for i := range d.weights {
		d.weights[i] = (uniform()*2 - 1) * scale
	}

	w, err := param.New("dense.weight", d.weights, d.gradW)
	if err != nil {
		return nil, err
	}
	b, err := param.New("dense.bias", d.biases, d.gradB)
	if err != nil {
		return nil, err
	}
	d.params = []*param.Parameter{w, b}
	return d, nil
}

// Forward computes W·x + b and caches a copy of x.
func (d *Dense) Forward(x []float64, training bool) ([]float64, error) {
	if err := checkLen("dense input", len(x), d.inSize); err != nil {
		return nil, err
	}
	copy(d.input, x)
	d.hasInput = true

	y := make([]float64, d.outSize)
	yv := mat.NewVecDense(d.outSize, y)
	yv.MulVec(d.w, mat.NewVecDense(d.inSize, d.input))
	floats.Add(y, d.biases)
	return y, nil
}

// Backward accumulates dW += dy ⊗ x and db += dy, and returns dx = Wᵗ·dy.
func (d *Dense) Backward(grad []float64) ([]float64, error) {
	if !d.hasInput {
		return nil, ErrNoForward
	}
	if err := checkLen("dense gradient", len(grad), d.outSize); err != nil {
		return nil, err
	}
	d.hasInput = false

	in := d.inSize
	for o, g := range grad {
		floats.AddScaled(d.gradW[o*in:(o+1)*in], g, d.input)
	}
	floats.Add(d.gradB, grad)

	dx := make([]float64, in)
	dxv := mat.NewVecDense(in, dx)
	dxv.MulVec(d.w.T(), mat.NewVecDense(d.outSize, grad))
	return dx, nil
}

// Parameters returns the weight and bias parameters.
func (d *Dense) Parameters() []*param.Parameter {
	return d.params
}

// Weights returns the weights slice directly.
func (d *Dense) Weights() []float64 {
	return d.weights
}

// Biases returns the biases slice directly.
func (d *Dense) Biases() []float64 {
	return d.biases
}

// WeightGrads returns the accumulated weight gradients.
func (d *Dense) WeightGrads() []float64 {
	return d.gradW
}

// BiasGrads returns the accumulated bias gradients.
func (d *Dense) BiasGrads() []float64 {
	return d.gradB
}

// SetWeight sets a single weight at (row, col).
func (d *Dense) SetWeight(row, col int, val float64) {
	d.weights[row*d.inSize+col] = val
}

// Weight gets a single weight at (row, col).
func (d *Dense) Weight(row, col int) float64 {
	return d.weights[row*d.inSize+col]
}

// SetBias sets a single bias.
func (d *Dense) SetBias(idx int, val float64) {
	d.biases[idx] = val
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}
