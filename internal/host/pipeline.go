package host

import (
	"iter"
	"sync"

	"github.com/FlavioCFOliveira/neurocore/internal/config"
	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

// FromExperiment builds a pipeline from an experiment. Datasets are loaded
// on first use and reused by later runs; every run gets a fresh optimizer.
func FromExperiment(e *config.Experiment, opts ...train.Option) Pipeline {
	var (
		once             sync.Once
		trainSet, valSet *data.Dataset
		loadErr          error
	)
	load := func() error {
		once.Do(func() { trainSet, valSet, loadErr = e.Datasets() })
		return loadErr
	}

	return Pipeline{
		Network: func() (*net.Network, error) {
			return e.BuildNetwork(nil)
		},
		Trainer: func(n *net.Network) (*train.Trainer, error) {
			o, err := e.NewOptimizer()
			if err != nil {
				return nil, err
			}
			l, err := e.NewLoss()
			if err != nil {
				return nil, err
			}
			return train.New(n, o, l, opts...), nil
		},
		Train: func() (iter.Seq[data.Sample], error) {
			if err := load(); err != nil {
				return nil, err
			}
			return trainSet.All(), nil
		},
		Validation: func() (iter.Seq[data.Sample], error) {
			if err := load(); err != nil {
				return nil, err
			}
			if valSet == nil {
				return nil, nil
			}
			return valSet.All(), nil
		},
	}
}
