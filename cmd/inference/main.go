// Command inference loads a saved model and classifies inputs.
//
// Inputs are comma-separated feature vectors given as arguments or, with no
// arguments, one per line on standard input:
//
//	inference -model xor_network.json 0,1 1,1
//	inference -model model.gob -data test.csv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/inference"
)

func main() {
	var (
		modelPath = flag.String("model", "xor_network.json", "saved model (.json, .gob or .pb)")
		dataPath  = flag.String("data", "", "labelled CSV or JSON dataset to score instead of classifying inputs")
		header    = flag.Bool("header", true, "CSV dataset has a header row")
		probs     = flag.Bool("probs", false, "print class probabilities")
	)
	flag.Parse()

	session, err := inference.Open(*modelPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	info, _ := session.Info()
	fmt.Fprintf(os.Stderr, "Model %s: %d inputs, %d classes, %d layers, %d params\n",
		info.Path, info.InputSize, info.OutputSize, info.Layers, info.Params)

	if *dataPath != "" {
		opts := data.DefaultCSVOptions()
		opts.HasHeader = *header
		set, err := data.Load(*dataPath, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		acc, err := session.Accuracy(set.All())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Accuracy: %.2f%% on %d samples\n", acc*100, set.Len())
		return
	}

	var inputs iter.Seq[string]
	if flag.NArg() > 0 {
		inputs = slices.Values(flag.Args())
	} else {
		inputs = lines(os.Stdin)
	}

	for line := range inputs {
		x, err := parseVector(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%q: %v\n", line, err)
			continue
		}
		if *probs {
			p, err := session.Predict(x)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%q: %v\n", line, err)
				continue
			}
			fmt.Printf("%v -> %d %v\n", x, floats.MaxIdx(p), formatProbs(p))
			continue
		}
		class, err := session.PredictClass(x)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%q: %v\n", line, err)
			continue
		}
		fmt.Printf("%v -> %d\n", x, class)
	}
}

func lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

func parseVector(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	x := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		x = append(x, v)
	}
	return x, nil
}

func formatProbs(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'f', 3, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
