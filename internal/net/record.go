package net

import (
	"errors"
	"fmt"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/layer"
)

// RecordVersion is the current model record layout.
const RecordVersion = 1

// Layer kinds as stored in records.
const (
	KindDense      = "dense"
	KindActivation = "activation"
	KindSoftmax    = "softmax"
	KindNeurons    = "neurons"
)

var (
	// ErrUnknownLayer is returned for a layer kind that cannot be stored or restored.
	ErrUnknownLayer = errors.New("net: unknown layer kind")
	// ErrCorruptRecord is returned when a record's sizes or buffers are inconsistent.
	ErrCorruptRecord = errors.New("net: corrupt model record")
)

// ModelRecord is the persisted form of a Network: layer kinds, sizes and
// parameter values. Gradients and optimizer state are not stored.
type ModelRecord struct {
	Version int           `json:"version"`
	Layers  []LayerRecord `json:"layers"`
}

// LayerRecord holds the configuration needed to reconstruct a layer.
// Dense and neurons layers use InputSize/OutputSize; activation and softmax
// layers use Size. Weights are row-major [out*in].
type LayerRecord struct {
	Kind       string    `json:"kind"`
	InputSize  int       `json:"input_size,omitempty"`
	OutputSize int       `json:"output_size,omitempty"`
	Size       int       `json:"size,omitempty"`
	Activation string    `json:"activation,omitempty"`
	Weights    []float64 `json:"weights,omitempty"`
	Bias       []float64 `json:"bias,omitempty"`
}

// Record captures the network's architecture and parameter values.
func (n *Network) Record() (*ModelRecord, error) {
	rec := &ModelRecord{Version: RecordVersion, Layers: make([]LayerRecord, 0, len(n.layers))}
	for i, l := range n.layers {
		lr, err := recordLayer(l)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d", err, i)
		}
		rec.Layers = append(rec.Layers, lr)
	}
	return rec, nil
}

func recordLayer(l layer.Layer) (LayerRecord, error) {
	switch v := l.(type) {
	case *layer.Dense:
		return LayerRecord{
			Kind:       KindDense,
			InputSize:  v.InSize(),
			OutputSize: v.OutSize(),
			Weights:    append([]float64(nil), v.Weights()...),
			Bias:       append([]float64(nil), v.Biases()...),
		}, nil
	case *layer.Activation:
		return LayerRecord{Kind: KindActivation, Size: v.Size(), Activation: v.Kind().String()}, nil
	case *layer.Softmax:
		return LayerRecord{Kind: KindSoftmax, Size: v.Size()}, nil
	case *layer.Neurons:
		lr := LayerRecord{
			Kind:       KindNeurons,
			InputSize:  v.InSize(),
			OutputSize: v.OutSize(),
			Activation: v.Kind().String(),
			Weights:    make([]float64, 0, v.InSize()*v.OutSize()),
			Bias:       make([]float64, 0, v.OutSize()),
		}
		for _, neuron := range v.Neurons() {
			lr.Weights = append(lr.Weights, neuron.Weights...)
			lr.Bias = append(lr.Bias, neuron.Bias)
		}
		return lr, nil
	}
	return LayerRecord{}, fmt.Errorf("%w %T", ErrUnknownLayer, l)
}

// FromRecord rebuilds a network from rec. Weights are restored exactly and
// gradients start at zero.
func FromRecord(rec *ModelRecord) (*Network, error) {
	if rec == nil || len(rec.Layers) == 0 {
		return nil, ErrEmpty
	}
	layers := make([]layer.Layer, 0, len(rec.Layers))
	for i := range rec.Layers {
		l, err := rec.Layers[i].build()
		if err != nil {
			return nil, fmt.Errorf("%w at layer %d", err, i)
		}
		layers = append(layers, l)
	}
	return New(layers...)
}

func (lr *LayerRecord) build() (layer.Layer, error) {
	switch lr.Kind {
	case KindDense:
		if err := lr.checkBuffers(); err != nil {
			return nil, err
		}
		d, err := layer.NewDense(lr.InputSize, lr.OutputSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		copy(d.Weights(), lr.Weights)
		copy(d.Biases(), lr.Bias)
		return d, nil

	case KindActivation:
		kind, err := activations.ParseKind(lr.Activation)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		a, err := layer.NewActivation(lr.Size, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return a, nil

	case KindSoftmax:
		s, err := layer.NewSoftmax(lr.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return s, nil

	case KindNeurons:
		if err := lr.checkBuffers(); err != nil {
			return nil, err
		}
		kind, err := activations.ParseKind(lr.Activation)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		nl, err := layer.NewNeurons(lr.InputSize, lr.OutputSize, kind, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		for o, neuron := range nl.Neurons() {
			copy(neuron.Weights, lr.Weights[o*lr.InputSize:(o+1)*lr.InputSize])
			neuron.Bias = lr.Bias[o]
		}
		return nl, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownLayer, lr.Kind)
}

func (lr *LayerRecord) checkBuffers() error {
	if lr.InputSize <= 0 || lr.OutputSize <= 0 {
		return fmt.Errorf("%w: %s sizes %dx%d", ErrCorruptRecord, lr.Kind, lr.InputSize, lr.OutputSize)
	}
	if len(lr.Weights) != lr.InputSize*lr.OutputSize {
		return fmt.Errorf("%w: %s has %d weights, want %d",
			ErrCorruptRecord, lr.Kind, len(lr.Weights), lr.InputSize*lr.OutputSize)
	}
	if len(lr.Bias) != lr.OutputSize {
		return fmt.Errorf("%w: %s has %d biases, want %d", ErrCorruptRecord, lr.Kind, len(lr.Bias), lr.OutputSize)
	}
	return nil
}
