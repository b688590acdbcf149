package inference

import (
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
)

// argmaxNet returns a 2-2 identity dense layer followed by softmax, so the
// predicted class is the index of the larger input.
func argmaxNet(t *testing.T) *net.Network {
	t.Helper()
	d, err := layer.NewDense(2, 2)
	require.NoError(t, err)
	d.SetWeight(0, 0, 1)
	d.SetWeight(0, 1, 0)
	d.SetWeight(1, 0, 0)
	d.SetWeight(1, 1, 1)
	sm, err := layer.NewSoftmax(2)
	require.NoError(t, err)
	n, err := net.New(d, sm)
	require.NoError(t, err)
	return n
}

// TestNoModel tests calls made before any model is loaded.
func TestNoModel(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Loaded())

	_, err := s.Predict([]float64{1, 2})
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = s.PredictClass([]float64{1, 2})
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = s.Info()
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = s.Accuracy(data.XOR().All())
	assert.ErrorIs(t, err, ErrNoModel)
}

// TestUse tests predictions from an in-memory network.
func TestUse(t *testing.T) {
	s := NewSession()
	s.Use(argmaxNet(t))
	require.True(t, s.Loaded())

	c, err := s.PredictClass([]float64{0.2, 0.9})
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	p, err := s.Predict([]float64{3, 1})
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)
	assert.Greater(t, p[0], p[1])

	_, err = s.Predict([]float64{1})
	assert.Error(t, err)
	_, err = s.PredictClass([]float64{1, 2, 3})
	assert.Error(t, err)
}

// TestPredictReturnsCopy tests that results are not overwritten by later calls.
func TestPredictReturnsCopy(t *testing.T) {
	s := NewSession()
	s.Use(argmaxNet(t))
	first, err := s.Predict([]float64{5, 0})
	require.NoError(t, err)
	kept := slices.Clone(first)
	_, err = s.Predict([]float64{0, 5})
	require.NoError(t, err)
	assert.Equal(t, kept, first)
}

// TestLoadFile tests loading a saved model in each format.
func TestLoadFile(t *testing.T) {
	n := argmaxNet(t)
	for _, name := range []string{"m.json", "m.gob", "m.pb"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, n.Save(path))

			s, err := Open(path)
			require.NoError(t, err)
			info, err := s.Info()
			require.NoError(t, err)
			assert.Equal(t, Info{Path: path, InputSize: 2, OutputSize: 2, Layers: 2, Params: 6}, info)

			c, err := s.PredictClass([]float64{1, 0})
			require.NoError(t, err)
			assert.Equal(t, 0, c)
		})
	}

	_, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TestPredictAll tests streaming predictions.
func TestPredictAll(t *testing.T) {
	s := NewSession()
	s.Use(argmaxNet(t))
	inputs := slices.Values([][]float64{{1, 0}, {0, 1}, {2, 3}})

	var got []int
	for c, err := range s.PredictAll(inputs) {
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []int{0, 1, 1}, got)

	bad := slices.Values([][]float64{{1, 0}, {1}, {0, 1}})
	var n int
	var last error
	for _, err := range s.PredictAll(bad) {
		n++
		last = err
	}
	assert.Equal(t, 2, n)
	assert.Error(t, last)
}

// TestAccuracy tests accuracy over a labelled set.
func TestAccuracy(t *testing.T) {
	s := NewSession()
	s.Use(argmaxNet(t))
	set := data.New(
		data.Sample{Features: []float64{1, 0}, Label: 0},
		data.Sample{Features: []float64{0, 1}, Label: 1},
		data.Sample{Features: []float64{0, 1}, Label: 0},
		data.Sample{Features: []float64{3, 1}, Label: 0},
	)
	acc, err := s.Accuracy(set.All())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)
}

// TestConcurrentPredict tests that parallel callers get consistent results.
func TestConcurrentPredict(t *testing.T) {
	s := NewSession()
	s.Use(argmaxNet(t))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x := []float64{float64(i % 2), float64(1 - i%2)}
			c, err := s.PredictClass(x)
			if err != nil {
				errs <- err
				return
			}
			if c != 1-i%2 {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
