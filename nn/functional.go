package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// rowSoftmaxMasked writes the row-wise softmax of scores into a new matrix.
// Where mask is true the score is treated as -Inf, so the weight is exactly
// zero. A fully masked row softmaxes to all zeros rather than NaN.
func rowSoftmaxMasked(scores *mat.Dense, mask [][]bool) *mat.Dense {
	r, c := scores.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		maxVal := math.Inf(-1)
		for j := 0; j < c; j++ {
			if mask != nil && mask[i][j] {
				continue
			}
			if v := scores.At(i, j); v > maxVal {
				maxVal = v
			}
		}
		if math.IsInf(maxVal, -1) {
			continue // every position masked
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			if mask != nil && mask[i][j] {
				continue
			}
			e := math.Exp(scores.At(i, j) - maxVal)
			out.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out
}

// rowSoftmaxBackward computes dScores given dWeights and the softmax output.
// Per row: dS = (dW - dot(dW, W)) ⊙ W. Masked positions have W == 0 and so
// receive zero gradient without special handling.
func rowSoftmaxBackward(weights, dWeights *mat.Dense) *mat.Dense {
	r, c := weights.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		dot := 0.0
		for j := 0; j < c; j++ {
			dot += dWeights.At(i, j) * weights.At(i, j)
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, (dWeights.At(i, j)-dot)*weights.At(i, j))
		}
	}
	return out
}

// logSoftmaxRow writes the log-softmax of one row vector into out.
func logSoftmaxRow(row []float64, out []float64) {
	maxVal := math.Inf(-1)
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - maxVal)
	}
	logSum := maxVal + math.Log(sum)
	for i, v := range row {
		out[i] = v - logSum
	}
}

// logSoftmaxBackwardRow computes dScores for one row given dLogProbs and the
// log-probs themselves: dS = dLP - exp(LP) * sum(dLP).
func logSoftmaxBackwardRow(logProbs, dLogProbs []float64, out []float64) {
	sum := 0.0
	for _, v := range dLogProbs {
		sum += v
	}
	for i := range out {
		out[i] = dLogProbs[i] - math.Exp(logProbs[i])*sum
	}
}

// tanhInPlace applies tanh elementwise.
func tanhInPlace(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, math.Tanh(m.At(i, j)))
		}
	}
}

// concatCols returns [a | b] column-wise.
func concatCols(a, b *mat.Dense) *mat.Dense {
	r, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(r, ca+cb, nil)
	out.Slice(0, r, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, r, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}
