// Package nn implements the neural network modules of goseq: linear and
// embedding layers, recurrent cells, Luong-style attention and the
// sequence-to-label / sequence-to-sequence models built from them.
//
// Modules follow a forward-with-cache discipline: Forward returns the output
// plus an opaque cache of the intermediates Backward needs. Backward consumes
// the cache, accumulates parameter gradients in place and returns input
// gradients. There is no autograd graph; dense math is delegated to gonum.
package nn

import (
	"math/rand"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Parameter is a learned weight matrix and its accumulated gradient.
// Vectors (biases) are stored as single-column matrices.
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParameter allocates an r x c parameter initialized from
// Uniform(-scale, scale).
func NewParameter(name string, r, c int, scale float64, rng *rand.Rand) *Parameter {
	dist := distuv.Uniform{Min: -scale, Max: scale, Src: exprand.NewSource(rng.Uint64())}
	data := make([]float64, r*c)
	for i := range data {
		data[i] = dist.Rand()
	}
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(r, c, data),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// NewZeroParameter allocates an r x c parameter initialized to zero.
func NewZeroParameter(name string, r, c int) *Parameter {
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.Grad.Zero()
}

// NumElements returns the number of scalar weights.
func (p *Parameter) NumElements() int {
	r, c := p.Value.Dims()
	return r * c
}

// ZeroGrads clears the gradients of every parameter.
func ZeroGrads(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// TotalParameters returns the total number of scalar weights.
func TotalParameters(params []*Parameter) int {
	total := 0
	for _, p := range params {
		total += p.NumElements()
	}
	return total
}
