package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Cell names accepted by NewCell.
const (
	CellLSTM = "lstm"
	CellGRU  = "gru"
)

// CellState is the recurrent state carried between timesteps. C is only used
// by LSTM cells and is nil otherwise.
type CellState struct {
	H *mat.VecDense
	C *mat.VecDense
}

// CellCache holds the per-step intermediates a cell needs for backward.
type CellCache interface {
	cellCache()
}

// Cell is a single recurrent step. Step consumes one input vector and the
// previous state; StepBackward consumes the matching cache and the gradient
// flowing into the produced state, accumulates parameter gradients and
// returns gradients for the input and previous state.
type Cell interface {
	Step(x *mat.VecDense, prev CellState) (CellState, CellCache)
	StepBackward(cache CellCache, dNext CellState) (*mat.VecDense, CellState)
	ZeroState() CellState
	InputSize() int
	HiddenSize() int
	Parameters() []*Parameter
}

// NewCell constructs a recurrent cell by name. The name must be "lstm" or
// "gru".
func NewCell(name, kind string, inputSize, hiddenSize int, rng *rand.Rand) (Cell, error) {
	switch kind {
	case CellLSTM:
		return NewLSTMCell(name, inputSize, hiddenSize, rng), nil
	case CellGRU:
		return NewGRUCell(name, inputSize, hiddenSize, rng), nil
	default:
		return nil, errors.Errorf("invalid rnn cell %q", kind)
	}
}

// addBias adds a [n,1] bias parameter to a length-n vector.
func addBias(v *mat.VecDense, bias *Parameter) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, v.AtVec(i)+bias.Value.At(i, 0))
	}
}

// accumulateOuter adds alpha * x yᵀ into the parameter gradient.
func accumulateOuter(p *Parameter, x, y *mat.VecDense) {
	var outer mat.Dense
	outer.Outer(1, x, y)
	p.Grad.Add(p.Grad, &outer)
}

// accumulateBias adds a vector gradient into a [n,1] bias gradient.
func accumulateBias(p *Parameter, d *mat.VecDense) {
	for i := 0; i < d.Len(); i++ {
		p.Grad.Set(i, 0, p.Grad.At(i, 0)+d.AtVec(i))
	}
}
