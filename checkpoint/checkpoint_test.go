package checkpoint

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/optim"
)

func newTestModel(t *testing.T, seed int64) *nn.SeqToLabel {
	t.Helper()
	cfg := nn.DefaultModelConfig()
	cfg.SourceVocabSize = 12
	cfg.TargetVocabSize = 5
	cfg.EmbeddingSize = 6
	cfg.HiddenSize = 7
	model, err := nn.NewSeqToLabel(cfg, rand.New(rand.NewSource(seed)))
	test.That(t, err, test.ShouldBeNil)
	return model
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model := newTestModel(t, 1)
	opt := optim.NewOptimizer(optim.NewAdam(model.Parameters(), 0.01))
	opt.Inner.SetLR(0.0025)

	cfg := nn.DefaultModelConfig()
	cfg.SourceVocabSize = 12
	cfg.TargetVocabSize = 5
	cfg.EmbeddingSize = 6
	cfg.HiddenSize = 7

	snap, err := Capture(KindSeqToLabel, 3, cfg, model.Parameters(), opt,
		[]string{"a", "b"}, []string{"x"})
	test.That(t, err, test.ShouldBeNil)

	dir := t.TempDir()
	path, err := Save(dir, snap)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(path), test.ShouldEqual, "epoch_3.ckpt")

	loaded, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Kind, test.ShouldEqual, KindSeqToLabel)
	test.That(t, loaded.Epoch, test.ShouldEqual, 3)
	test.That(t, loaded.Model.HiddenSize, test.ShouldEqual, 7)
	test.That(t, loaded.SourceVocab, test.ShouldResemble, []string{"a", "b"})
	test.That(t, loaded.TargetVocab, test.ShouldResemble, []string{"x"})
	test.That(t, loaded.Optim.LR, test.ShouldAlmostEqual, 0.0025)

	tokens := []int64{4, 5, 6, 7}
	ref, _, _, err := model.Forward(tokens)
	test.That(t, err, test.ShouldBeNil)

	// A model with different random weights must reproduce the reference
	// outputs once the snapshot is applied.
	other := newTestModel(t, 99)
	err = loaded.Apply(other.Parameters())
	test.That(t, err, test.ShouldBeNil)

	got, _, _, err := other.Forward(tokens)
	test.That(t, err, test.ShouldBeNil)
	_, cols := ref.Dims()
	for i := 0; i < cols; i++ {
		test.That(t, got.At(0, i), test.ShouldAlmostEqual, ref.At(0, i), 1e-12)
	}
}

func TestRestoreOptimizer(t *testing.T) {
	model := newTestModel(t, 1)
	opt := optim.NewOptimizer(optim.NewAdam(model.Parameters(), 0.01))

	// Take a couple of steps so there is non-trivial state to snapshot.
	for i := 0; i < 2; i++ {
		for _, p := range model.Parameters() {
			grad := p.Grad.RawMatrix().Data
			for j := range grad {
				grad[j] = 0.1
			}
		}
		opt.Step()
	}

	cfg := nn.DefaultModelConfig()
	snap, err := Capture(KindSeqToLabel, 1, cfg, model.Parameters(), opt, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	fresh := optim.NewOptimizer(optim.NewAdam(newTestModel(t, 1).Parameters(), 0.01))
	snap.RestoreOptimizer(fresh)
	test.That(t, fresh.Inner.StepCount(), test.ShouldEqual, opt.Inner.StepCount())

	step, m, _ := fresh.Inner.State()
	test.That(t, step, test.ShouldEqual, 2)
	_, wantM, _ := opt.Inner.State()
	test.That(t, m[0], test.ShouldResemble, wantM[0])
}

func TestApplyErrors(t *testing.T) {
	model := newTestModel(t, 1)
	opt := optim.NewOptimizer(optim.NewAdam(model.Parameters(), 0.01))
	snap, err := Capture(KindSeqToLabel, 0, nn.DefaultModelConfig(), model.Parameters(), opt, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	// Different hidden size means different shapes under the same names.
	cfg := nn.DefaultModelConfig()
	cfg.SourceVocabSize = 12
	cfg.TargetVocabSize = 5
	cfg.EmbeddingSize = 6
	cfg.HiddenSize = 9
	mismatched, err := nn.NewSeqToLabel(cfg, rand.New(rand.NewSource(2)))
	test.That(t, err, test.ShouldBeNil)
	err = snap.Apply(mismatched.Parameters())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ckpt"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewExperimentDir(t *testing.T) {
	parent := t.TempDir()
	dir, err := NewExperimentDir(parent, "count")
	test.That(t, err, test.ShouldBeNil)
	info, err := os.Stat(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.IsDir(), test.ShouldBeTrue)
	test.That(t, filepath.Dir(dir), test.ShouldEqual, parent)
}
