// Package activations provides benchmarks for activation functions.
package activations

import (
	"math/rand"
	"testing"
)

// fillRandom fills a slice with random values in [-1, 1).
func fillRandom(slice []float64) {
	for i := range slice {
		slice[i] = rand.Float64()*2 - 1
	}
}

func benchmarkKind(b *testing.B, k Kind) {
	inputs := make([]float64, 1000)
	fillRandom(inputs)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, z := range inputs {
			a := k.Activate(z)
			_ = k.Derivative(z, a)
		}
	}
}

// BenchmarkReLU benchmarks ReLU activate plus derivative.
func BenchmarkReLU(b *testing.B) { benchmarkKind(b, ReLU) }

// BenchmarkSigmoid benchmarks Sigmoid activate plus derivative.
func BenchmarkSigmoid(b *testing.B) { benchmarkKind(b, Sigmoid) }

// BenchmarkTanh benchmarks Tanh activate plus derivative.
func BenchmarkTanh(b *testing.B) { benchmarkKind(b, Tanh) }

// BenchmarkGELU benchmarks GELU activate plus derivative.
func BenchmarkGELU(b *testing.B) { benchmarkKind(b, GELU) }
