// Package inference serves predictions from a trained network.
package inference

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

// ErrNoModel is returned by predictions made before a model is loaded.
var ErrNoModel = errors.New("inference: no model loaded")

// Info describes the loaded model.
type Info struct {
	Path       string
	InputSize  int
	OutputSize int
	Layers     int
	Params     int
}

// Session holds one network for prediction. Layers cache forward state, so
// every call is serialized; a Session is safe for concurrent use.
type Session struct {
	mu   sync.Mutex
	net  *net.Network
	path string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Open loads the model at path into a new session.
func Open(path string) (*Session, error) {
	s := NewSession()
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile replaces the session's model with the one stored at path.
// The format follows the file extension.
func (s *Session) LoadFile(path string) error {
	n, err := net.Load(path)
	if err != nil {
		return fmt.Errorf("inference: load %s: %w", path, err)
	}
	s.mu.Lock()
	s.net, s.path = n, path
	s.mu.Unlock()
	return nil
}

// Use makes the session serve n. The caller must not train n concurrently.
func (s *Session) Use(n *net.Network) {
	s.mu.Lock()
	s.net, s.path = n, ""
	s.mu.Unlock()
}

// Loaded reports whether a model is available.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net != nil
}

// Info describes the current model.
func (s *Session) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.net == nil {
		return Info{}, ErrNoModel
	}
	return Info{
		Path:       s.path,
		InputSize:  s.net.InSize(),
		OutputSize: s.net.OutSize(),
		Layers:     len(s.net.Layers()),
		Params:     s.net.NumParams(),
	}, nil
}

// Predict returns the network output for x. The result is owned by the caller.
func (s *Session) Predict(x []float64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.net == nil {
		return nil, ErrNoModel
	}
	if len(x) != s.net.InSize() {
		return nil, fmt.Errorf("inference: input has %d features, model expects %d", len(x), s.net.InSize())
	}
	out, err := s.net.Predict(x)
	if err != nil {
		return nil, err
	}
	return slices.Clone(out), nil
}

// PredictClass returns the index of the largest output for x.
func (s *Session) PredictClass(x []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.net == nil {
		return 0, ErrNoModel
	}
	if len(x) != s.net.InSize() {
		return 0, fmt.Errorf("inference: input has %d features, model expects %d", len(x), s.net.InSize())
	}
	return s.net.PredictClass(x)
}

// PredictAll yields the predicted class for every input in order and stops
// at the first error.
func (s *Session) PredictAll(inputs iter.Seq[[]float64]) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for x := range inputs {
			c, err := s.PredictClass(x)
			if !yield(c, err) || err != nil {
				return
			}
		}
	}
}

// Accuracy returns the fraction of samples classified correctly.
func (s *Session) Accuracy(samples iter.Seq[data.Sample]) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.net == nil {
		return 0, ErrNoModel
	}
	return train.Accuracy(s.net, samples)
}
