package train

// EpochResult summarizes one finished epoch. Callbacks receive it and may
// call RequestStop; nothing else about it is mutable.
type EpochResult struct {
	// Epoch is 1-based.
	Epoch     int
	TrainLoss float64
	// ValLoss is meaningful only when HasValLoss is set.
	ValLoss    float64
	HasValLoss bool

	stopRequested bool
}

// RequestStop asks the trainer to end the run after this epoch.
func (r *EpochResult) RequestStop() {
	r.stopRequested = true
}

// StopRequested reports whether a callback asked to stop.
func (r *EpochResult) StopRequested() bool {
	return r.stopRequested
}

// Report is the outcome of a Train call.
type Report struct {
	History []EpochResult
	// Stopped is set when a callback ended the run early.
	Stopped bool
	// Steps counts optimizer steps.
	Steps int
}

// Last returns the most recent epoch, if any.
func (r *Report) Last() (EpochResult, bool) {
	if r == nil || len(r.History) == 0 {
		return EpochResult{}, false
	}
	return r.History[len(r.History)-1], true
}
