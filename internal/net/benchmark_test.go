// Package net provides benchmarks for network passes and persistence.
package net

import (
	"bytes"
	"math/rand"
	"testing"
)

// fillRandom fills a slice with random values.
func fillRandom(slice []float64) {
	for i := range slice {
		slice[i] = rand.Float64()
	}
}

// BenchmarkNetworkForward benchmarks a forward pass through a small network.
func BenchmarkNetworkForward(b *testing.B) {
	network := newClassifier(b, 784, 128, 10, 1)
	input := make([]float64, 784)
	fillRandom(input)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = network.Forward(input, false)
	}
}

// BenchmarkNetworkForwardBackward benchmarks a full training pass without the optimizer.
func BenchmarkNetworkForwardBackward(b *testing.B) {
	network := newClassifier(b, 784, 128, 10, 1)
	input := make([]float64, 784)
	grad := make([]float64, 10)
	fillRandom(input)
	fillRandom(grad)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = network.Forward(input, true)
		_, _ = network.Backward(grad)
	}
}

// BenchmarkEncode benchmarks model encoding in each format.
func BenchmarkEncode(b *testing.B) {
	network := newClassifier(b, 64, 32, 4, 1)
	for _, f := range []Format{FormatJSON, FormatGob, FormatProto} {
		b.Run(f.String(), func(b *testing.B) {
			var buf bytes.Buffer
			for i := 0; i < b.N; i++ {
				buf.Reset()
				if err := network.Encode(&buf, f); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
