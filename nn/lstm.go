package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTMCell is a standard LSTM with fused gate weights, gate order i, f, g, o.
type LSTMCell struct {
	Wx *Parameter // [4H, in]
	Wh *Parameter // [4H, H]
	B  *Parameter // [4H, 1]

	in     int
	hidden int
}

type lstmCache struct {
	x, hPrev, cPrev *mat.VecDense
	i, f, g, o      *mat.VecDense
	c, tanhC        *mat.VecDense
}

func (*lstmCache) cellCache() {}

// NewLSTMCell creates an LSTM cell with Uniform(-0.1, 0.1) weights.
func NewLSTMCell(name string, inputSize, hiddenSize int, rng *rand.Rand) *LSTMCell {
	return &LSTMCell{
		Wx:     NewParameter(name+".weight_ih", 4*hiddenSize, inputSize, 0.1, rng),
		Wh:     NewParameter(name+".weight_hh", 4*hiddenSize, hiddenSize, 0.1, rng),
		B:      NewZeroParameter(name+".bias", 4*hiddenSize, 1),
		in:     inputSize,
		hidden: hiddenSize,
	}
}

// ZeroState returns zeroed h and c.
func (l *LSTMCell) ZeroState() CellState {
	return CellState{
		H: mat.NewVecDense(l.hidden, nil),
		C: mat.NewVecDense(l.hidden, nil),
	}
}

func (l *LSTMCell) InputSize() int  { return l.in }
func (l *LSTMCell) HiddenSize() int { return l.hidden }

// Step computes one LSTM update:
//
//	pre = Wx x + Wh h + b
//	c'  = f ⊙ c + i ⊙ g
//	h'  = o ⊙ tanh(c')
func (l *LSTMCell) Step(x *mat.VecDense, prev CellState) (CellState, CellCache) {
	H := l.hidden

	pre := mat.NewVecDense(4*H, nil)
	pre.MulVec(l.Wx.Value, x)
	tmp := mat.NewVecDense(4*H, nil)
	tmp.MulVec(l.Wh.Value, prev.H)
	pre.AddVec(pre, tmp)
	addBias(pre, l.B)

	cache := &lstmCache{
		x: x, hPrev: prev.H, cPrev: prev.C,
		i: mat.NewVecDense(H, nil), f: mat.NewVecDense(H, nil),
		g: mat.NewVecDense(H, nil), o: mat.NewVecDense(H, nil),
		c: mat.NewVecDense(H, nil), tanhC: mat.NewVecDense(H, nil),
	}

	h := mat.NewVecDense(H, nil)
	for j := 0; j < H; j++ {
		i := sigmoid(pre.AtVec(j))
		f := sigmoid(pre.AtVec(H + j))
		g := math.Tanh(pre.AtVec(2*H + j))
		o := sigmoid(pre.AtVec(3*H + j))

		c := f*prev.C.AtVec(j) + i*g
		tc := math.Tanh(c)

		cache.i.SetVec(j, i)
		cache.f.SetVec(j, f)
		cache.g.SetVec(j, g)
		cache.o.SetVec(j, o)
		cache.c.SetVec(j, c)
		cache.tanhC.SetVec(j, tc)
		h.SetVec(j, o*tc)
	}

	return CellState{H: h, C: cache.c}, cache
}

// StepBackward propagates dNext through one LSTM step.
func (l *LSTMCell) StepBackward(cc CellCache, dNext CellState) (*mat.VecDense, CellState) {
	cache := cc.(*lstmCache)
	H := l.hidden

	dPre := mat.NewVecDense(4*H, nil)
	dCPrev := mat.NewVecDense(H, nil)

	for j := 0; j < H; j++ {
		dh := dNext.H.AtVec(j)
		dc := dh * cache.o.AtVec(j) * (1 - cache.tanhC.AtVec(j)*cache.tanhC.AtVec(j))
		if dNext.C != nil {
			dc += dNext.C.AtVec(j)
		}

		i, f, g, o := cache.i.AtVec(j), cache.f.AtVec(j), cache.g.AtVec(j), cache.o.AtVec(j)

		dPre.SetVec(j, dc*g*i*(1-i))                        // input gate
		dPre.SetVec(H+j, dc*cache.cPrev.AtVec(j)*f*(1-f))   // forget gate
		dPre.SetVec(2*H+j, dc*i*(1-g*g))                    // candidate
		dPre.SetVec(3*H+j, dh*cache.tanhC.AtVec(j)*o*(1-o)) // output gate

		dCPrev.SetVec(j, dc*f)
	}

	accumulateOuter(l.Wx, dPre, cache.x)
	accumulateOuter(l.Wh, dPre, cache.hPrev)
	accumulateBias(l.B, dPre)

	dX := mat.NewVecDense(l.in, nil)
	dX.MulVec(l.Wx.Value.T(), dPre)
	dHPrev := mat.NewVecDense(H, nil)
	dHPrev.MulVec(l.Wh.Value.T(), dPre)

	return dX, CellState{H: dHPrev, C: dCPrev}
}

// Parameters returns the trainable parameters.
func (l *LSTMCell) Parameters() []*Parameter {
	return []*Parameter{l.Wx, l.Wh, l.B}
}
