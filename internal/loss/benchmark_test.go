// Package loss provides benchmarks for loss functions.
package loss

import (
	"math/rand"
	"testing"
)

// randomProbs returns a random probability vector.
func randomProbs(n int) []float64 {
	p := make([]float64, n)
	var sum float64
	for i := range p {
		p[i] = rand.Float64()
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

// BenchmarkCrossEntropy benchmarks a forward and backward pass.
func BenchmarkCrossEntropy(b *testing.B) {
	ce := NewCrossEntropy()
	pred := randomProbs(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ce.Forward(pred, i%1000)
		_, _ = ce.Backward()
	}
}

// BenchmarkMSE benchmarks a forward and backward pass.
func BenchmarkMSE(b *testing.B) {
	mse := NewMSE()
	pred := randomProbs(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mse.Forward(pred, i%1000)
		_, _ = mse.Backward()
	}
}
