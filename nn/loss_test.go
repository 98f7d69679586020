package nn

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/dkhr/goseq/encoders"
)

func TestNLLLoss(t *testing.T) {
	logProbs := mat.NewDense(2, 3, []float64{
		math.Log(0.7), math.Log(0.2), math.Log(0.1),
		math.Log(0.1), math.Log(0.1), math.Log(0.8),
	})
	loss, grad, count, err := NLLLoss(logProbs, []int64{0, 2}, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 2)
	test.That(t, loss, test.ShouldAlmostEqual, -(math.Log(0.7) + math.Log(0.8)), 1e-12)
	test.That(t, grad.At(0, 0), test.ShouldEqual, -1)
	test.That(t, grad.At(1, 2), test.ShouldEqual, -1)
	test.That(t, grad.At(0, 1), test.ShouldEqual, 0)
}

func TestNLLLossIgnoreIndex(t *testing.T) {
	logProbs := mat.NewDense(2, 3, []float64{
		math.Log(0.5), math.Log(0.25), math.Log(0.25),
		math.Log(0.5), math.Log(0.25), math.Log(0.25),
	})
	loss, grad, count, err := NLLLoss(logProbs, []int64{encoders.PaddingIndex, 1}, encoders.PaddingIndex)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 1)
	test.That(t, loss, test.ShouldAlmostEqual, -math.Log(0.25), 1e-12)
	test.That(t, grad.At(0, 0), test.ShouldEqual, 0) // padded row contributes no gradient
	test.That(t, grad.At(1, 1), test.ShouldEqual, -1)
}

func TestNLLLossErrors(t *testing.T) {
	logProbs := mat.NewDense(1, 2, nil)
	_, _, _, err := NLLLoss(logProbs, []int64{0, 1}, -1)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, _, err = NLLLoss(logProbs, []int64{5}, -1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "out of range")
}
