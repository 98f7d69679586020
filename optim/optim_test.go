package optim

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/dkhr/goseq/nn"
)

// quadParam builds a single scalar parameter for minimizing f(x) = x².
func quadParam(x float64) *nn.Parameter {
	p := nn.NewZeroParameter("x", 1, 1)
	p.Value.Set(0, 0, x)
	return p
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	p := quadParam(5)
	opt := NewAdam([]*nn.Parameter{p}, 0.1)

	for i := 0; i < 500; i++ {
		opt.ZeroGrad()
		p.Grad.Set(0, 0, 2*p.Value.At(0, 0)) // d/dx x²
		opt.Step()
	}
	test.That(t, math.Abs(p.Value.At(0, 0)), test.ShouldBeLessThan, 0.01)
	test.That(t, opt.StepCount(), test.ShouldEqual, 500)
}

func TestAdamStateRoundTrip(t *testing.T) {
	p := quadParam(1)
	opt := NewAdam([]*nn.Parameter{p}, 0.01)
	for i := 0; i < 3; i++ {
		p.Grad.Set(0, 0, 1)
		opt.Step()
	}

	step, m, v := opt.State()
	test.That(t, step, test.ShouldEqual, 3)

	restored := NewAdam([]*nn.Parameter{p}, 0.01)
	restored.RestoreState(step, m, v)
	rStep, rm, rv := restored.State()
	test.That(t, rStep, test.ShouldEqual, 3)
	test.That(t, rm, test.ShouldResemble, m)
	test.That(t, rv, test.ShouldResemble, v)
}

func TestClipGradNorm(t *testing.T) {
	p := nn.NewZeroParameter("p", 1, 2)
	p.Grad = mat.NewDense(1, 2, []float64{3, 4}) // norm 5

	norm := ClipGradNorm([]*nn.Parameter{p}, 1.0)
	test.That(t, norm, test.ShouldAlmostEqual, 5, 1e-12)
	test.That(t, p.Grad.At(0, 0), test.ShouldAlmostEqual, 0.6, 1e-12)
	test.That(t, p.Grad.At(0, 1), test.ShouldAlmostEqual, 0.8, 1e-12)

	// Already within the limit: untouched.
	norm = ClipGradNorm([]*nn.Parameter{p}, 10)
	test.That(t, norm, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, p.Grad.At(0, 0), test.ShouldAlmostEqual, 0.6, 1e-12)
}

func TestOptimizerPlateauDecay(t *testing.T) {
	p := quadParam(1)
	o := NewOptimizer(NewAdam([]*nn.Parameter{p}, 0.8))

	test.That(t, o.Update(1.0, 0), test.ShouldAlmostEqual, 0.8, 1e-12) // improvement
	test.That(t, o.Update(1.2, 1), test.ShouldAlmostEqual, 0.8, 1e-12) // 1 bad epoch, within patience
	test.That(t, o.Update(1.3, 2), test.ShouldAlmostEqual, 0.4, 1e-12) // decayed
	test.That(t, o.Update(0.5, 3), test.ShouldAlmostEqual, 0.4, 1e-12) // new best
}
