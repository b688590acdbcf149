package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
)

type preset struct {
	description string
	data        func() *data.Dataset
	experiment  func() *Experiment
}

var presets = map[string]preset{
	"xor": {
		description: "two inputs, exclusive-or, two classes",
		data:        data.XOR,
		experiment: func() *Experiment {
			e := Default()
			e.Dataset.ValidateOnTrain = true
			return e
		},
	},
	"and": {
		description: "two inputs, logical and, two classes",
		data:        data.AND,
		experiment: func() *Experiment {
			e := Default()
			e.Name = "and"
			e.Dataset.Preset = "and"
			e.Train.Epochs = 1000
			return e
		},
	},
	"threshold": {
		description: "one input in [0, 1], class 1 at or above 0.5",
		data:        func() *data.Dataset { return data.Threshold(0, 1, 0.1, 0.5) },
		experiment: func() *Experiment {
			e := Default()
			e.Name = "threshold"
			e.Dataset.Preset = "threshold"
			e.Model.InputSize = 1
			e.Model.Hidden = []int{3}
			e.Train.Epochs = 1000
			e.Train.BatchSize = 8
			return e
		},
	},
}

// Preset returns a copy of a built-in experiment by name, ignoring case.
func Preset(name string) (*Experiment, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q (have %s)",
			ErrInvalid, name, strings.Join(Presets(), ", "))
	}
	return p.experiment(), nil
}

// Presets returns the built-in preset names in sorted order.
func Presets() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Describe returns a one-line description of a preset.
func Describe(name string) string {
	return presets[strings.ToLower(name)].description
}
