package data

// XOR returns the four exclusive-or samples.
func XOR() *Dataset {
	return New(
		Sample{Features: []float64{0, 0}, Label: 0},
		Sample{Features: []float64{0, 1}, Label: 1},
		Sample{Features: []float64{1, 0}, Label: 1},
		Sample{Features: []float64{1, 1}, Label: 0},
	)
}

// AND returns the four logical-and samples.
func AND() *Dataset {
	return New(
		Sample{Features: []float64{0, 0}, Label: 0},
		Sample{Features: []float64{0, 1}, Label: 0},
		Sample{Features: []float64{1, 0}, Label: 0},
		Sample{Features: []float64{1, 1}, Label: 1},
	)
}

// Threshold returns one-feature samples for v in [min, max] stepping by step,
// labelled 1 when v >= threshold. A non-positive step yields no samples.
func Threshold(min, max, step, threshold float64) *Dataset {
	d := &Dataset{}
	if step <= 0 {
		return d
	}
	for i := 0; ; i++ {
		v := min + float64(i)*step
		if v > max+1e-9 {
			break
		}
		label := 0
		if v >= threshold {
			label = 1
		}
		d.Samples = append(d.Samples, Sample{Features: []float64{v}, Label: label})
	}
	return d
}
