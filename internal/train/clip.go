package train

import "github.com/FlavioCFOliveira/neurocore/internal/param"

// ClipGradNorm rescales all gradients so their global L2 norm is at most
// maxNorm, and returns the norm before clipping. It does nothing when
// maxNorm <= 0, the norm is zero, or the norm is already within bounds.
func ClipGradNorm(params []*param.Parameter, maxNorm float64) float64 {
	norm := param.GlobalGradNorm(params)
	if maxNorm <= 0 || norm == 0 || norm <= maxNorm {
		return norm
	}
	param.ScaleGrads(params, maxNorm/norm)
	return norm
}
