package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NLLLoss computes negative log likelihood over log-probabilities.
// logProbs is [n, classes] with one target per row. Rows whose target equals
// ignoreIndex contribute neither loss nor gradient; pass a negative
// ignoreIndex to disable.
//
// The loss is summed, not averaged (callers normalize), matching the
// training driver which divides by batch size. The returned gradient is
// dLoss/dLogProbs; count is the number of contributing rows.
func NLLLoss(logProbs *mat.Dense, targets []int64, ignoreIndex int64) (float64, *mat.Dense, int, error) {
	n, classes := logProbs.Dims()
	if n != len(targets) {
		return 0, nil, 0, errors.Errorf("nll: %d rows of log probs for %d targets", n, len(targets))
	}

	loss := 0.0
	count := 0
	grad := mat.NewDense(n, classes, nil)
	for i, target := range targets {
		if ignoreIndex >= 0 && target == ignoreIndex {
			continue
		}
		if target < 0 || int(target) >= classes {
			return 0, nil, 0, errors.Errorf("nll: target %d out of range [0, %d)", target, classes)
		}
		loss -= logProbs.At(i, int(target))
		grad.Set(i, int(target), -1)
		count++
	}
	return loss, grad, count, nil
}
