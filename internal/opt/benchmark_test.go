// Package opt provides benchmarks for optimizers.
package opt

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

// randomParams builds n parameters of size elements with random values and gradients.
func randomParams(b *testing.B, n, size int) []*param.Parameter {
	b.Helper()
	params := make([]*param.Parameter, n)
	for i := range params {
		value := make([]float64, size)
		grad := make([]float64, size)
		for j := range value {
			value[j] = rand.Float64()
			grad[j] = rand.Float64()
		}
		p, err := param.New("bench", value, grad)
		if err != nil {
			b.Fatal(err)
		}
		params[i] = p
	}
	return params
}

// BenchmarkSGDStep benchmarks SGD Step method.
func BenchmarkSGDStep(b *testing.B) {
	sgd := NewSGD(0.01)
	params := randomParams(b, 4, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.Step(params)
	}
}

// BenchmarkAdamStep benchmarks Adam Step method.
func BenchmarkAdamStep(b *testing.B) {
	adam := NewAdam(0.001)
	params := randomParams(b, 4, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		adam.Step(params)
	}
}
