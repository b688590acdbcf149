package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/neurocore/internal/config"
	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

// Iris-like dataset: 3 classes (Setosa, Versicolor, Virginica)
// Each sample has 4 features (sepal length, sepal width, petal length, petal width)
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "iris: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("Training Iris classifier (4-8-6-3 network)...")

	rng := rand.New(rand.NewSource(42))
	all := generateIrisData(rng)
	scaler, err := all.NormalizeMinMax()
	if err != nil {
		return err
	}
	trainSet, valSet, err := all.Split(0.8, 42)
	if err != nil {
		return err
	}
	fmt.Printf("Samples: %d train, %d validation\n", trainSet.Len(), valSet.Len())

	exp := config.Default()
	exp.Model = config.Model{InputSize: 4, OutputSize: 3, Hidden: []int{8, 6}, Activation: "ReLU"}
	network, err := exp.BuildNetwork(rng)
	if err != nil {
		return err
	}
	if err := network.Summary(os.Stdout); err != nil {
		return err
	}

	adam := opt.NewAdam(0.02)
	early, err := train.NewEarlyStopping(train.ValLoss, 100, 1e-5)
	if err != nil {
		return err
	}
	early.OnStop = func() { fmt.Printf("Early stopping: best val_loss %.6f\n", early.Best()) }
	accuracy := train.NewAccuracyLogger(valSet.All(), 200)

	dir, err := os.MkdirTemp("", "iris")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	checkpoint := train.NewModelCheckpoint(filepath.Join(dir, "best.gob"), train.ValLoss)
	checkpoint.Out = io.Discard

	opts := train.DefaultOptions()
	opts.Epochs = 2000
	opts.BatchSize = 8
	opts.Seed = train.Seed(42)
	opts.Validation = valSet.All()
	opts.Callbacks = []train.Callback{
		train.Logger{Interval: 200},
		accuracy,
		train.NewSchedulerCallback(opt.NewStepLR(adam, 500, 0.5), nil),
		checkpoint,
		early,
	}

	report, err := train.New(network, adam, loss.NewCrossEntropy()).
		Train(context.Background(), trainSet.All(), opts)
	if err != nil {
		return err
	}
	fmt.Printf("Trained %d epochs, %d optimizer steps\n", len(report.History), report.Steps)

	// Restore the weights with the best validation loss.
	if checkpoint.Saves() > 0 {
		best, err := net.Load(checkpoint.Filename)
		if err != nil {
			return err
		}
		network = best
	}

	acc, err := train.Accuracy(network, valSet.All())
	if err != nil {
		return err
	}
	fmt.Printf("\nFinal validation accuracy: %.1f%%\n", acc*100)

	fmt.Println("\nPredictions on fresh samples:")
	for class, centre := range irisCentres {
		x := addNoise(rng, centre, 0.2)
		if err := scaler.Apply(x); err != nil {
			return err
		}
		pred, err := network.PredictClass(x)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s -> predicted=%d, actual=%d\n", irisNames[class], pred, class)
	}
	return nil
}

var (
	irisNames   = []string{"Setosa", "Versicolor", "Virginica"}
	irisCentres = [][]float64{
		{5.0, 3.4, 1.5, 0.2},
		{5.9, 2.8, 4.3, 1.3},
		{6.6, 3.0, 5.6, 2.0},
	}
	irisNoise = []float64{0.2, 0.25, 0.25}
)

// generateIrisData draws 30 noisy samples around each class mean.
func generateIrisData(rng *rand.Rand) *data.Dataset {
	d := &data.Dataset{}
	for class, centre := range irisCentres {
		for i := 0; i < 30; i++ {
			d.Samples = append(d.Samples, data.Sample{
				Features: addNoise(rng, centre, irisNoise[class]),
				Label:    class,
			})
		}
	}
	return d
}

func addNoise(rng *rand.Rand, sample []float64, noise float64) []float64 {
	result := make([]float64, len(sample))
	for i, v := range sample {
		result[i] = v + (rng.Float64()*2-1)*noise
	}
	return result
}
