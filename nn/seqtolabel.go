package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ModelConfig holds the hyperparameters shared by the sequence models.
type ModelConfig struct {
	SourceVocabSize int
	TargetVocabSize int
	EmbeddingSize   int
	HiddenSize      int
	Cell            string        // "lstm" or "gru"
	AttentionType   AttentionType // "dot" or "general"
	Bidirectional   bool
}

// DefaultModelConfig mirrors the base hyperparameters of the training
// drivers: small model, general attention, bidirectional LSTM encoder.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		EmbeddingSize: 16,
		HiddenSize:    16,
		Cell:          CellLSTM,
		AttentionType: AttentionGeneral,
		Bidirectional: true,
	}
}

// SeqToLabel classifies a token sequence: encoder over the tokens, attention
// with the final state as the query over the per-step outputs, then a linear
// projection to log label probabilities.
type SeqToLabel struct {
	Config    ModelConfig
	Encoder   *SeqEncoder
	Attention *Attention
	Out       *Linear
}

// SeqToLabelCache holds forward intermediates for Backward.
type SeqToLabelCache struct {
	encCache  *SeqEncoderCache
	attnCache *AttentionCache
	outCache  *LinearCache
	logProbs  *mat.Dense
}

// NewSeqToLabel builds the classifier from a config.
func NewSeqToLabel(cfg ModelConfig, rng *rand.Rand) (*SeqToLabel, error) {
	encoder, err := NewSeqEncoder("encoder", cfg.SourceVocabSize, cfg.EmbeddingSize,
		cfg.HiddenSize, cfg.Cell, cfg.Bidirectional, rng)
	if err != nil {
		return nil, err
	}
	attn, err := NewAttention("attention", encoder.OutputSize(), cfg.AttentionType, rng)
	if err != nil {
		return nil, err
	}
	return &SeqToLabel{
		Config:    cfg,
		Encoder:   encoder,
		Attention: attn,
		Out:       NewLinear("out", encoder.OutputSize(), cfg.TargetVocabSize, true, rng),
	}, nil
}

// Forward returns log label probabilities [1, TargetVocabSize] plus the
// attention weights over the input positions [1, T].
func (m *SeqToLabel) Forward(tokens []int64) (*mat.Dense, *mat.Dense, *SeqToLabelCache, error) {
	outputs, final, encCache, err := m.Encoder.Forward(tokens)
	if err != nil {
		return nil, nil, nil, err
	}

	query := mat.NewDense(1, final.Len(), nil)
	query.SetRow(0, final.RawVector().Data)

	attended, weights, attnCache, err := m.Attention.Forward(query, outputs)
	if err != nil {
		return nil, nil, nil, err
	}

	scores, outCache, err := m.Out.Forward(attended)
	if err != nil {
		return nil, nil, nil, err
	}

	logProbs := mat.NewDense(1, m.Config.TargetVocabSize, nil)
	logSoftmaxRow(scores.RawRowView(0), logProbs.RawRowView(0))

	cache := &SeqToLabelCache{
		encCache:  encCache,
		attnCache: attnCache,
		outCache:  outCache,
		logProbs:  logProbs,
	}
	return logProbs, weights, cache, nil
}

// Predict returns the argmax label index, skipping reserved indices below
// firstValid (pass 0 to consider every class).
func (m *SeqToLabel) Predict(tokens []int64, firstValid int64) (int64, error) {
	logProbs, _, _, err := m.Forward(tokens)
	if err != nil {
		return 0, err
	}
	return argmaxRow(logProbs, 0, firstValid), nil
}

// Backward propagates dLogProbs [1, TargetVocabSize] through the model,
// accumulating every parameter gradient.
func (m *SeqToLabel) Backward(cache *SeqToLabelCache, dLogProbs *mat.Dense) error {
	dScores := mat.NewDense(1, m.Config.TargetVocabSize, nil)
	logSoftmaxBackwardRow(cache.logProbs.RawRowView(0), dLogProbs.RawRowView(0), dScores.RawRowView(0))

	dAttended, err := m.Out.Backward(cache.outCache, dScores)
	if err != nil {
		return err
	}

	dQuery, dOutputs, err := m.Attention.Backward(cache.attnCache, dAttended)
	if err != nil {
		return err
	}

	dFinal := rowVec(dQuery, 0)
	return m.Encoder.Backward(cache.encCache, dOutputs, CellState{H: dFinal})
}

// Parameters returns every trainable parameter of the model.
func (m *SeqToLabel) Parameters() []*Parameter {
	params := m.Encoder.Parameters()
	params = append(params, m.Attention.Parameters()...)
	params = append(params, m.Out.Parameters()...)
	return params
}

// argmaxRow returns the column of the largest entry in row i, considering
// only columns >= firstValid.
func argmaxRow(m *mat.Dense, i int, firstValid int64) int64 {
	_, c := m.Dims()
	best := firstValid
	for j := firstValid; j < int64(c); j++ {
		if m.At(i, int(j)) > m.At(i, int(best)) {
			best = j
		}
	}
	return best
}
