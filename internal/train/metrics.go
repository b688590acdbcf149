package train

import (
	"fmt"
	"iter"
	"math"

	"github.com/FlavioCFOliveira/neurocore/internal/data"
	"github.com/FlavioCFOliveira/neurocore/internal/loss"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
)

// Accuracy returns the fraction of samples whose predicted class equals the
// label. It returns 0 for no samples.
func Accuracy(n *net.Network, samples iter.Seq[data.Sample]) (float64, error) {
	var correct, total int
	for s := range samples {
		c, err := n.PredictClass(s.Features)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", total, err)
		}
		if c == s.Label {
			correct++
		}
		total++
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// Evaluate returns the mean loss over samples with training disabled.
// It fails with data.ErrEmpty for no samples and ErrDivergence for a
// non-finite loss.
func Evaluate(n *net.Network, l loss.Loss, samples iter.Seq[data.Sample]) (float64, error) {
	var sum float64
	var count int
	for s := range samples {
		out, err := n.Forward(s.Features, false)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", count, err)
		}
		v, err := l.Forward(out, s.Label)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", count, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: sample %d: loss %v", ErrDivergence, count, v)
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, data.ErrEmpty
	}
	return sum / float64(count), nil
}
