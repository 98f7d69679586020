package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// GRUCell is a standard GRU with fused gate weights, gate order r, z, n.
type GRUCell struct {
	Wx *Parameter // [3H, in]
	Wh *Parameter // [3H, H]
	B  *Parameter // [3H, 1]

	in     int
	hidden int
}

type gruCache struct {
	x, hPrev *mat.VecDense
	r, z, n  *mat.VecDense
	uh       *mat.VecDense // Un h component of the candidate pre-activation
}

func (*gruCache) cellCache() {}

// NewGRUCell creates a GRU cell with Uniform(-0.1, 0.1) weights.
func NewGRUCell(name string, inputSize, hiddenSize int, rng *rand.Rand) *GRUCell {
	return &GRUCell{
		Wx:     NewParameter(name+".weight_ih", 3*hiddenSize, inputSize, 0.1, rng),
		Wh:     NewParameter(name+".weight_hh", 3*hiddenSize, hiddenSize, 0.1, rng),
		B:      NewZeroParameter(name+".bias", 3*hiddenSize, 1),
		in:     inputSize,
		hidden: hiddenSize,
	}
}

// ZeroState returns a zeroed h; GRU carries no cell vector.
func (g *GRUCell) ZeroState() CellState {
	return CellState{H: mat.NewVecDense(g.hidden, nil)}
}

func (g *GRUCell) InputSize() int  { return g.in }
func (g *GRUCell) HiddenSize() int { return g.hidden }

// Step computes one GRU update:
//
//	r  = σ(Wr x + Ur h + br)
//	z  = σ(Wz x + Uz h + bz)
//	n  = tanh(Wn x + r ⊙ (Un h) + bn)
//	h' = (1 - z) ⊙ n + z ⊙ h
func (g *GRUCell) Step(x *mat.VecDense, prev CellState) (CellState, CellCache) {
	H := g.hidden

	preX := mat.NewVecDense(3*H, nil)
	preX.MulVec(g.Wx.Value, x)
	preH := mat.NewVecDense(3*H, nil)
	preH.MulVec(g.Wh.Value, prev.H)

	cache := &gruCache{
		x: x, hPrev: prev.H,
		r: mat.NewVecDense(H, nil), z: mat.NewVecDense(H, nil),
		n: mat.NewVecDense(H, nil), uh: mat.NewVecDense(H, nil),
	}

	h := mat.NewVecDense(H, nil)
	for j := 0; j < H; j++ {
		r := sigmoid(preX.AtVec(j) + preH.AtVec(j) + g.B.Value.At(j, 0))
		z := sigmoid(preX.AtVec(H+j) + preH.AtVec(H+j) + g.B.Value.At(H+j, 0))
		uh := preH.AtVec(2*H + j)
		n := math.Tanh(preX.AtVec(2*H+j) + r*uh + g.B.Value.At(2*H+j, 0))

		cache.r.SetVec(j, r)
		cache.z.SetVec(j, z)
		cache.n.SetVec(j, n)
		cache.uh.SetVec(j, uh)
		h.SetVec(j, (1-z)*n+z*prev.H.AtVec(j))
	}

	return CellState{H: h}, cache
}

// StepBackward propagates dNext through one GRU step.
func (g *GRUCell) StepBackward(cc CellCache, dNext CellState) (*mat.VecDense, CellState) {
	cache := cc.(*gruCache)
	H := g.hidden

	// dPreX is the gradient on (Wx x + b); dPreH on (Wh h), which differ only
	// in the candidate slot where r gates the recurrent term.
	dPreX := mat.NewVecDense(3*H, nil)
	dPreH := mat.NewVecDense(3*H, nil)
	dHPrev := mat.NewVecDense(H, nil)

	for j := 0; j < H; j++ {
		dh := dNext.H.AtVec(j)
		r, z, n, uh := cache.r.AtVec(j), cache.z.AtVec(j), cache.n.AtVec(j), cache.uh.AtVec(j)

		dz := dh * (cache.hPrev.AtVec(j) - n)
		dn := dh * (1 - z)
		dHPrev.SetVec(j, dh*z)

		dPreN := dn * (1 - n*n)
		dr := dPreN * uh
		dUh := dPreN * r

		dPreR := dr * r * (1 - r)
		dPreZ := dz * z * (1 - z)

		dPreX.SetVec(j, dPreR)
		dPreX.SetVec(H+j, dPreZ)
		dPreX.SetVec(2*H+j, dPreN)

		dPreH.SetVec(j, dPreR)
		dPreH.SetVec(H+j, dPreZ)
		dPreH.SetVec(2*H+j, dUh)
	}

	accumulateOuter(g.Wx, dPreX, cache.x)
	accumulateOuter(g.Wh, dPreH, cache.hPrev)
	accumulateBias(g.B, dPreX)

	dX := mat.NewVecDense(g.in, nil)
	dX.MulVec(g.Wx.Value.T(), dPreX)

	tmp := mat.NewVecDense(H, nil)
	tmp.MulVec(g.Wh.Value.T(), dPreH)
	dHPrev.AddVec(dHPrev, tmp)

	return dX, CellState{H: dHPrev}
}

// Parameters returns the trainable parameters.
func (g *GRUCell) Parameters() []*Parameter {
	return []*Parameter{g.Wx, g.Wh, g.B}
}
