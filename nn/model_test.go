package nn

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"

	"github.com/dkhr/goseq/encoders"
)

func labelModelConfig() ModelConfig {
	cfg := DefaultModelConfig()
	cfg.SourceVocabSize = 12
	cfg.TargetVocabSize = 7
	cfg.EmbeddingSize = 4
	cfg.HiddenSize = 5
	return cfg
}

func TestSeqToLabelForward(t *testing.T) {
	for _, cell := range []string{CellLSTM, CellGRU} {
		for _, bidi := range []bool{false, true} {
			cfg := labelModelConfig()
			cfg.Cell = cell
			cfg.Bidirectional = bidi

			m, err := NewSeqToLabel(cfg, rand.New(rand.NewSource(9)))
			test.That(t, err, test.ShouldBeNil)

			tokens := []int64{4, 5, 6, 7}
			logProbs, weights, _, err := m.Forward(tokens)
			test.That(t, err, test.ShouldBeNil)

			r, c := logProbs.Dims()
			test.That(t, r, test.ShouldEqual, 1)
			test.That(t, c, test.ShouldEqual, cfg.TargetVocabSize)

			// Log-probabilities exponentiate to a distribution.
			sum := 0.0
			for j := 0; j < c; j++ {
				sum += math.Exp(logProbs.At(0, j))
			}
			test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-9)

			_, wc := weights.Dims()
			test.That(t, wc, test.ShouldEqual, len(tokens))
		}
	}
}

func TestSeqToLabelInvalidConfig(t *testing.T) {
	cfg := labelModelConfig()
	cfg.Cell = "bogus"
	_, err := NewSeqToLabel(cfg, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)

	cfg = labelModelConfig()
	cfg.AttentionType = "bogus"
	_, err = NewSeqToLabel(cfg, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)
}

func seqToLabelLoss(t *testing.T, m *SeqToLabel, tokens []int64, target int64) float64 {
	t.Helper()
	logProbs, _, _, err := m.Forward(tokens)
	test.That(t, err, test.ShouldBeNil)
	loss, _, _, err := NLLLoss(logProbs, []int64{target}, -1)
	test.That(t, err, test.ShouldBeNil)
	return loss
}

func TestSeqToLabelGradFiniteDiff(t *testing.T) {
	for _, cell := range []string{CellLSTM, CellGRU} {
		cfg := labelModelConfig()
		cfg.Cell = cell

		m, err := NewSeqToLabel(cfg, rand.New(rand.NewSource(21)))
		test.That(t, err, test.ShouldBeNil)

		tokens := []int64{4, 9, 5}
		target := int64(5)

		logProbs, _, cache, err := m.Forward(tokens)
		test.That(t, err, test.ShouldBeNil)
		_, grad, _, err := NLLLoss(logProbs, []int64{target}, -1)
		test.That(t, err, test.ShouldBeNil)

		ZeroGrads(m.Parameters())
		test.That(t, m.Backward(cache, grad), test.ShouldBeNil)

		const eps = 1e-6
		for _, p := range m.Parameters() {
			r, c := p.Value.Dims()
			i, j := r/2, c/2
			// The padding embedding row stays frozen; probe a live row.
			if p == m.Encoder.Embedding.Weight {
				i = int(tokens[0])
			}
			orig := p.Value.At(i, j)
			p.Value.Set(i, j, orig+eps)
			lp := seqToLabelLoss(t, m, tokens, target)
			p.Value.Set(i, j, orig-eps)
			lm := seqToLabelLoss(t, m, tokens, target)
			p.Value.Set(i, j, orig)
			test.That(t, p.Grad.At(i, j), test.ShouldAlmostEqual, (lp-lm)/(2*eps), 1e-4)
		}
	}
}

func TestSeqToLabelPaddingEmbeddingFrozen(t *testing.T) {
	cfg := labelModelConfig()
	m, err := NewSeqToLabel(cfg, rand.New(rand.NewSource(3)))
	test.That(t, err, test.ShouldBeNil)

	tokens := []int64{encoders.PaddingIndex, 4, 5}
	logProbs, _, cache, err := m.Forward(tokens)
	test.That(t, err, test.ShouldBeNil)
	_, grad, _, err := NLLLoss(logProbs, []int64{4}, -1)
	test.That(t, err, test.ShouldBeNil)

	ZeroGrads(m.Parameters())
	test.That(t, m.Backward(cache, grad), test.ShouldBeNil)

	embGrad := m.Encoder.Embedding.Weight.Grad
	for j := 0; j < cfg.EmbeddingSize; j++ {
		test.That(t, embGrad.At(int(encoders.PaddingIndex), j), test.ShouldEqual, 0)
	}
}

func seq2seqModelConfig() ModelConfig {
	cfg := DefaultModelConfig()
	cfg.SourceVocabSize = 10
	cfg.TargetVocabSize = 10
	cfg.EmbeddingSize = 4
	cfg.HiddenSize = 4
	return cfg
}

func TestSeqToSeqForwardShapes(t *testing.T) {
	for _, bidi := range []bool{false, true} {
		cfg := seq2seqModelConfig()
		cfg.Bidirectional = bidi

		m, err := NewSeqToSeq(cfg, rand.New(rand.NewSource(13)))
		test.That(t, err, test.ShouldBeNil)

		source := []int64{4, 5, 6}
		target := []int64{encoders.SOSIndex, 6, 5, 4, encoders.EOSIndex}
		logProbs, _, err := m.Forward(source, target)
		test.That(t, err, test.ShouldBeNil)

		r, c := logProbs.Dims()
		test.That(t, r, test.ShouldEqual, len(target)-1)
		test.That(t, c, test.ShouldEqual, cfg.TargetVocabSize)

		for i := 0; i < r; i++ {
			sum := 0.0
			for j := 0; j < c; j++ {
				sum += math.Exp(logProbs.At(i, j))
			}
			test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-9)
		}
	}
}

func TestSeqToSeqTargetTooShort(t *testing.T) {
	m, err := NewSeqToSeq(seq2seqModelConfig(), rand.New(rand.NewSource(13)))
	test.That(t, err, test.ShouldBeNil)
	_, _, err = m.Forward([]int64{4}, []int64{encoders.SOSIndex})
	test.That(t, err, test.ShouldNotBeNil)
}

func seqToSeqLoss(t *testing.T, m *SeqToSeq, source, target []int64) float64 {
	t.Helper()
	logProbs, _, err := m.Forward(source, target)
	test.That(t, err, test.ShouldBeNil)
	loss, _, _, err := NLLLoss(logProbs, target[1:], encoders.PaddingIndex)
	test.That(t, err, test.ShouldBeNil)
	return loss
}

func TestSeqToSeqGradFiniteDiff(t *testing.T) {
	cfg := seq2seqModelConfig()
	m, err := NewSeqToSeq(cfg, rand.New(rand.NewSource(29)))
	test.That(t, err, test.ShouldBeNil)

	source := []int64{7, 8, 9}
	target := []int64{encoders.SOSIndex, 9, 8, encoders.EOSIndex}

	logProbs, cache, err := m.Forward(source, target)
	test.That(t, err, test.ShouldBeNil)
	_, grad, _, err := NLLLoss(logProbs, target[1:], encoders.PaddingIndex)
	test.That(t, err, test.ShouldBeNil)

	ZeroGrads(m.Parameters())
	test.That(t, m.Backward(cache, grad), test.ShouldBeNil)

	const eps = 1e-6
	for _, p := range m.Parameters() {
		r, c := p.Value.Dims()
		i, j := r/2, c/2
		if p == m.Encoder.Embedding.Weight {
			i = int(source[0])
		}
		if p == m.Decoder.Embedding.Weight {
			i = int(target[1])
		}
		orig := p.Value.At(i, j)
		p.Value.Set(i, j, orig+eps)
		lp := seqToSeqLoss(t, m, source, target)
		p.Value.Set(i, j, orig-eps)
		lm := seqToSeqLoss(t, m, source, target)
		p.Value.Set(i, j, orig)
		test.That(t, p.Grad.At(i, j), test.ShouldAlmostEqual, (lp-lm)/(2*eps), 1e-4)
	}
}

func TestSeqToSeqGenerate(t *testing.T) {
	m, err := NewSeqToSeq(seq2seqModelConfig(), rand.New(rand.NewSource(31)))
	test.That(t, err, test.ShouldBeNil)

	out, err := m.Generate([]int64{4, 5, 6}, 8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldBeLessThanOrEqualTo, 8)
	for _, tok := range out {
		test.That(t, tok, test.ShouldBeGreaterThan, encoders.SOSIndex)
	}
}
