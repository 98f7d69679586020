// Package optim implements the Adam optimizer and the training-time wrapper
// that adds gradient clipping and plateau-based learning rate decay.
package optim

import (
	"math"

	"github.com/dkhr/goseq/nn"
)

// Adam implements the Adam optimizer with optional L2 weight decay applied
// to the gradient (the coupled form).
type Adam struct {
	Params      []*nn.Parameter
	LR          float64 // learning rate
	Beta1       float64 // first moment decay
	Beta2       float64 // second moment decay
	Eps         float64 // numerical stability
	WeightDecay float64 // L2 regularization (0 = disabled)

	// State: first and second moment estimates per parameter.
	m    [][]float64
	v    [][]float64
	step int
}

// NewAdam creates an Adam optimizer with the driver defaults:
// lr 0.001, betas (0.9, 0.999), eps 1e-8, no weight decay.
func NewAdam(params []*nn.Parameter, lr float64) *Adam {
	m := make([][]float64, len(params))
	v := make([][]float64, len(params))
	for i, p := range params {
		n := p.NumElements()
		m[i] = make([]float64, n)
		v[i] = make([]float64, n)
	}
	return &Adam{
		Params: params,
		LR:     lr,
		Beta1:  0.9,
		Beta2:  0.999,
		Eps:    1e-8,
		m:      m,
		v:      v,
	}
}

// ZeroGrad clears every parameter gradient.
func (opt *Adam) ZeroGrad() {
	nn.ZeroGrads(opt.Params)
}

// Step performs one optimization step. Gradients must already be
// accumulated on the parameters.
func (opt *Adam) Step() {
	opt.step++
	bc1 := 1.0 - math.Pow(opt.Beta1, float64(opt.step))
	bc2 := 1.0 - math.Pow(opt.Beta2, float64(opt.step))

	for i, p := range opt.Params {
		pData := p.Value.RawMatrix().Data
		gData := p.Grad.RawMatrix().Data
		mData := opt.m[i]
		vData := opt.v[i]

		for j := range pData {
			g := gData[j]
			if opt.WeightDecay != 0 {
				g += opt.WeightDecay * pData[j]
			}

			mData[j] = opt.Beta1*mData[j] + (1-opt.Beta1)*g
			vData[j] = opt.Beta2*vData[j] + (1-opt.Beta2)*g*g

			mHat := mData[j] / bc1
			vHat := vData[j] / bc2

			pData[j] -= opt.LR * mHat / (math.Sqrt(vHat) + opt.Eps)
		}
	}
}

// SetLR updates the learning rate.
func (opt *Adam) SetLR(lr float64) { opt.LR = lr }

// StepCount returns the number of optimization steps taken.
func (opt *Adam) StepCount() int { return opt.step }

// State exposes the moment estimates and step counter for checkpointing.
func (opt *Adam) State() (step int, m, v [][]float64) {
	return opt.step, opt.m, opt.v
}

// RestoreState reinstalls a previously saved state. The parameter list must
// match the one the state was saved from.
func (opt *Adam) RestoreState(step int, m, v [][]float64) {
	opt.step = step
	opt.m = m
	opt.v = v
}
