package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Linear implements y = x Wᵀ (+ b). Weight shape is [outFeatures, inFeatures];
// x rows are instances.
type Linear struct {
	Weight *Parameter // [out, in]
	Bias   *Parameter // [out, 1] or nil
	In     int
	Out    int
}

// LinearCache holds the forward input needed by Backward.
type LinearCache struct {
	x *mat.Dense
}

// NewLinear creates a linear layer. Weights start from Uniform(-0.1, 0.1).
func NewLinear(name string, in, out int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{
		Weight: NewParameter(name+".weight", out, in, 0.1, rng),
		In:     in,
		Out:    out,
	}
	if bias {
		l.Bias = NewZeroParameter(name+".bias", out, 1)
	}
	return l
}

// Forward computes y = x Wᵀ (+ b) for x of shape [n, in].
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, *LinearCache, error) {
	n, c := x.Dims()
	if c != l.In {
		return nil, nil, errors.Errorf("linear: input has %d features, layer expects %d", c, l.In)
	}
	out := mat.NewDense(n, l.Out, nil)
	out.Mul(x, l.Weight.Value.T())
	if l.Bias != nil {
		for i := 0; i < n; i++ {
			for j := 0; j < l.Out; j++ {
				out.Set(i, j, out.At(i, j)+l.Bias.Value.At(j, 0))
			}
		}
	}
	return out, &LinearCache{x: x}, nil
}

// Backward accumulates dW = dYᵀ x (and db) and returns dX = dY W.
func (l *Linear) Backward(cache *LinearCache, dOut *mat.Dense) (*mat.Dense, error) {
	n, c := dOut.Dims()
	if c != l.Out {
		return nil, errors.Errorf("linear: output grad has %d features, layer expects %d", c, l.Out)
	}

	var dW mat.Dense
	dW.Mul(dOut.T(), cache.x)
	l.Weight.Grad.Add(l.Weight.Grad, &dW)

	if l.Bias != nil {
		for j := 0; j < l.Out; j++ {
			sum := l.Bias.Grad.At(j, 0)
			for i := 0; i < n; i++ {
				sum += dOut.At(i, j)
			}
			l.Bias.Grad.Set(j, 0, sum)
		}
	}

	dX := mat.NewDense(n, l.In, nil)
	dX.Mul(dOut, l.Weight.Value)
	return dX, nil
}

// Parameters returns the trainable parameters.
func (l *Linear) Parameters() []*Parameter {
	if l.Bias != nil {
		return []*Parameter{l.Weight, l.Bias}
	}
	return []*Parameter{l.Weight}
}
