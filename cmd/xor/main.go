package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/FlavioCFOliveira/neurocore/internal/activations"
	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== XOR Training Example ===")

	// XOR is not linearly separable; one hidden layer is enough.
	in, hidden, out := 2, 4, 2

	fmt.Printf("Network architecture: %d-%d-%d\n", in, hidden, out)
	fmt.Println("Activation functions: ReLU (hidden), Softmax (output)")
	fmt.Println("Loss function: Cross-Entropy")
	fmt.Println("Optimizer: Adam with learning rate 0.01")

	rng := rand.New(rand.NewSource(42))
	l1, err := layer.NewDense(in, hidden, layer.WithRand(rng), layer.WithInitFor(activations.ReLU))
	if err != nil {
		return err
	}
	a1, err := layer.NewActivation(hidden, activations.ReLU)
	if err != nil {
		return err
	}
	l2, err := layer.NewDense(hidden, out, layer.WithRand(rng))
	if err != nil {
		return err
	}
	sm, err := layer.NewSoftmax(out)
	if err != nil {
		return err
	}
	network, err := net.New(l1, a1, l2, sm)
	if err != nil {
		return err
	}
	if err := network.Summary(os.Stdout); err != nil {
		return err
	}

	samples := data.XOR()
	opts := train.DefaultOptions()
	opts.Epochs = 2000
	opts.BatchSize = 1
	opts.Seed = train.Seed(42)
	opts.Callbacks = []train.Callback{train.Logger{Interval: 200}}

	trainer := train.New(network, opt.NewAdam(0.01), loss.NewCrossEntropy())
	if _, err := trainer.Train(context.Background(), samples.All(), opts); err != nil {
		return err
	}

	fmt.Println("\nTesting trained network:")
	for s := range samples.All() {
		pred, err := network.Predict(s.Features)
		if err != nil {
			return err
		}
		class, _ := network.PredictClass(s.Features)
		fmt.Printf("Input: %v, Predicted: %d (p=%.4f), Target: %d\n", s.Features, class, pred[class], s.Label)
	}
	acc, err := train.Accuracy(network, samples.All())
	if err != nil {
		return err
	}
	fmt.Printf("Accuracy: %.0f%%\n", acc*100)

	fmt.Println("\nSaving network to disk...")
	if err := network.Save("xor_network.json"); err != nil {
		return fmt.Errorf("saving network: %w", err)
	}
	fmt.Println("Network saved successfully!")

	fmt.Println("Loading network from disk...")
	loaded, err := net.Load("xor_network.json")
	if err != nil {
		return fmt.Errorf("loading network: %w", err)
	}
	fmt.Println("Network loaded successfully!")

	fmt.Println("\nVerifying loaded network:")
	allMatch := true
	for s := range samples.All() {
		original, _ := network.Predict(s.Features)
		origClass := original[1] > original[0]
		origP := original[1]
		again, _ := loaded.Predict(s.Features)
		match := "OK"
		if math.Abs(origP-again[1]) > 1e-9 || origClass != (again[1] > again[0]) {
			match = "MISMATCH"
			allMatch = false
		}
		fmt.Printf("Input: %v, Original: %.4f, Loaded: %.4f [%s]\n", s.Features, origP, again[1], match)
	}

	if !allMatch {
		return fmt.Errorf("predictions differ between original and loaded network")
	}
	fmt.Println("\nSUCCESS: All predictions match between original and loaded network!")
	return nil
}
