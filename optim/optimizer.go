package optim

import (
	"math"

	"github.com/dkhr/goseq/nn"
)

// Optimizer wraps Adam with global-norm gradient clipping and plateau-based
// learning rate decay driven by the per-epoch development loss.
type Optimizer struct {
	Inner       *Adam
	MaxGradNorm float64 // 0 = no clipping
	Patience    int     // epochs without improvement before decaying
	DecayFactor float64 // multiplied into the learning rate on decay

	bestLoss float64
	bad      int
}

// NewOptimizer wraps inner with the training defaults: clip at 1.0, halve
// the learning rate after one stalled epoch.
func NewOptimizer(inner *Adam) *Optimizer {
	return &Optimizer{
		Inner:       inner,
		MaxGradNorm: 1.0,
		Patience:    1,
		DecayFactor: 0.5,
		bestLoss:    math.MaxFloat64,
	}
}

// ZeroGrad clears every parameter gradient.
func (o *Optimizer) ZeroGrad() { o.Inner.ZeroGrad() }

// Step clips the accumulated gradients by global norm, then applies one
// Adam update.
func (o *Optimizer) Step() {
	if o.MaxGradNorm > 0 {
		ClipGradNorm(o.Inner.Params, o.MaxGradNorm)
	}
	o.Inner.Step()
}

// Update reacts to the development loss at the end of an epoch: when the
// loss has not improved for Patience epochs the learning rate is decayed.
// It returns the learning rate in effect afterwards.
func (o *Optimizer) Update(devLoss float64, epoch int) float64 {
	if devLoss < o.bestLoss {
		o.bestLoss = devLoss
		o.bad = 0
		return o.Inner.LR
	}
	o.bad++
	if o.bad > o.Patience {
		o.Inner.SetLR(o.Inner.LR * o.DecayFactor)
		o.bad = 0
	}
	return o.Inner.LR
}

// ClipGradNorm scales every gradient so the global L2 norm does not exceed
// maxNorm. It returns the norm before clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		for _, g := range p.Grad.RawMatrix().Data {
			total += g * g
		}
	}
	norm := math.Sqrt(total)
	if norm <= maxNorm || norm == 0 {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		data := p.Grad.RawMatrix().Data
		for j := range data {
			data[j] *= scale
		}
	}
	return norm
}
