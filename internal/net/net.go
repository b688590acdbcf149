// Package net provides core neural network types.
package net

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

var (
	// ErrEmpty is returned when a network is built without layers.
	ErrEmpty = errors.New("net: network has no layers")
	// ErrLayerChain is returned when adjacent layer sizes disagree.
	ErrLayerChain = errors.New("net: layer sizes do not chain")
)

// Network is an ordered stack of layers.
type Network struct {
	layers []layer.Layer
	params []*param.Parameter
}

// New creates a network from layers, checking that each layer's input size
// matches the previous layer's output size.
func New(layers ...layer.Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, ErrEmpty
	}
	for i := 1; i < len(layers); i++ {
		if prev, cur := layers[i-1].OutSize(), layers[i].InSize(); prev != cur {
			return nil, fmt.Errorf("%w: layer %d outputs %d, layer %d expects %d",
				ErrLayerChain, i-1, prev, i, cur)
		}
	}

	n := &Network{layers: layers}
	for _, l := range layers {
		n.params = append(n.params, l.Parameters()...)
	}
	return n, nil
}

// Forward performs a forward pass through all layers.
func (n *Network) Forward(x []float64, training bool) ([]float64, error) {
	curr := x
	for i, l := range n.layers {
		out, err := l.Forward(curr, training)
		if err != nil {
			return nil, fmt.Errorf("net: forward layer %d: %w", i, err)
		}
		curr = out
	}
	return curr, nil
}

// Backward performs a backward pass through all layers in reverse order,
// accumulating parameter gradients, and returns the gradient w.r.t. the input.
func (n *Network) Backward(grad []float64) ([]float64, error) {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		out, err := n.layers[i].Backward(curr)
		if err != nil {
			return nil, fmt.Errorf("net: backward layer %d: %w", i, err)
		}
		curr = out
	}
	return curr, nil
}

// Predict runs an inference forward pass.
func (n *Network) Predict(x []float64) ([]float64, error) {
	return n.Forward(x, false)
}

// PredictClass returns the index of the largest output.
func (n *Network) PredictClass(x []float64) (int, error) {
	out, err := n.Predict(x)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(out), nil
}

// Parameters returns every trainable parameter in layer order.
// The slice is computed once at construction.
func (n *Network) Parameters() []*param.Parameter {
	return n.params
}

// Layers returns the network's layers slice.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// InSize returns the input size of the first layer.
func (n *Network) InSize() int {
	return n.layers[0].InSize()
}

// OutSize returns the output size of the last layer.
func (n *Network) OutSize() int {
	return n.layers[len(n.layers)-1].OutSize()
}

// EndsWithSoftmax reports whether the last layer is a Softmax.
func (n *Network) EndsWithSoftmax() bool {
	_, ok := n.layers[len(n.layers)-1].(*layer.Softmax)
	return ok
}

// SoftmaxIndices returns the positions of every Softmax layer.
func (n *Network) SoftmaxIndices() []int {
	var idx []int
	for i, l := range n.layers {
		if _, ok := l.(*layer.Softmax); ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// NumParams returns the number of scalar trainable values.
func (n *Network) NumParams() int {
	return param.Count(n.params)
}
