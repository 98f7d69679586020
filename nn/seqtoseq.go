package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/dkhr/goseq/encoders"
)

// SeqDecoder generates target tokens one step at a time: embed the previous
// token, advance the recurrent cell, attend over the encoder outputs with
// the new hidden state as the query, and project to log token probabilities.
type SeqDecoder struct {
	Embedding *Embedding
	Cell      Cell
	Attention *Attention
	Out       *Linear
}

type decoderStepCache struct {
	token     int64
	cellCache CellCache
	attnCache *AttentionCache
	outCache  *LinearCache
	logProbs  []float64
}

// NewSeqDecoder builds a decoder whose hidden size matches the encoder
// output size, so encoder finals can seed the decoder state directly.
func NewSeqDecoder(name string, vocabSize, embeddingSize, hiddenSize int,
	cellKind string, attnType AttentionType, rng *rand.Rand) (*SeqDecoder, error) {
	cell, err := NewCell(name+".cell", cellKind, embeddingSize, hiddenSize, rng)
	if err != nil {
		return nil, err
	}
	attn, err := NewAttention(name+".attention", hiddenSize, attnType, rng)
	if err != nil {
		return nil, err
	}
	return &SeqDecoder{
		Embedding: NewEmbedding(name+".embedding", vocabSize, embeddingSize, rng),
		Cell:      cell,
		Attention: attn,
		Out:       NewLinear(name+".out", hiddenSize, vocabSize, true, rng),
	}, nil
}

// step advances the decoder by one token and returns the new state plus the
// log-probability row for the next token.
func (d *SeqDecoder) step(token int64, state CellState, encOutputs *mat.Dense) (CellState, []float64, *decoderStepCache, error) {
	embedded, err := d.Embedding.Forward([]int64{token})
	if err != nil {
		return CellState{}, nil, nil, err
	}
	x := rowVec(embedded, 0)

	next, cellCache := d.Cell.Step(x, state)

	query := mat.NewDense(1, next.H.Len(), nil)
	query.SetRow(0, next.H.RawVector().Data)
	attended, _, attnCache, err := d.Attention.Forward(query, encOutputs)
	if err != nil {
		return CellState{}, nil, nil, err
	}

	scores, outCache, err := d.Out.Forward(attended)
	if err != nil {
		return CellState{}, nil, nil, err
	}
	logProbs := make([]float64, d.Out.Out)
	logSoftmaxRow(scores.RawRowView(0), logProbs)

	cache := &decoderStepCache{
		token:     token,
		cellCache: cellCache,
		attnCache: attnCache,
		outCache:  outCache,
		logProbs:  logProbs,
	}
	return next, logProbs, cache, nil
}

// Parameters returns the trainable parameters.
func (d *SeqDecoder) Parameters() []*Parameter {
	params := d.Embedding.Parameters()
	params = append(params, d.Cell.Parameters()...)
	params = append(params, d.Attention.Parameters()...)
	params = append(params, d.Out.Parameters()...)
	return params
}

// SeqToSeq is the attention-augmented encoder-decoder model.
type SeqToSeq struct {
	Config  ModelConfig
	Encoder *SeqEncoder
	Decoder *SeqDecoder
}

// SeqToSeqCache holds forward intermediates for Backward.
type SeqToSeqCache struct {
	encCache   *SeqEncoderCache
	encOutputs *mat.Dense
	steps      []*decoderStepCache
}

// NewSeqToSeq builds the model from a config. The decoder hidden size is the
// encoder output size (2x hidden when bidirectional).
func NewSeqToSeq(cfg ModelConfig, rng *rand.Rand) (*SeqToSeq, error) {
	encoder, err := NewSeqEncoder("encoder", cfg.SourceVocabSize, cfg.EmbeddingSize,
		cfg.HiddenSize, cfg.Cell, cfg.Bidirectional, rng)
	if err != nil {
		return nil, err
	}
	decoder, err := NewSeqDecoder("decoder", cfg.TargetVocabSize, cfg.EmbeddingSize,
		encoder.OutputSize(), cfg.Cell, cfg.AttentionType, rng)
	if err != nil {
		return nil, err
	}
	return &SeqToSeq{Config: cfg, Encoder: encoder, Decoder: decoder}, nil
}

// Forward runs teacher forcing over a target sequence that starts with SOS.
// It returns log-probability rows for target[1:], shape
// [len(target)-1, TargetVocabSize].
func (m *SeqToSeq) Forward(source, target []int64) (*mat.Dense, *SeqToSeqCache, error) {
	if len(target) < 2 {
		return nil, nil, errors.Errorf("seq2seq: target of %d tokens, need SOS plus at least one", len(target))
	}

	encOutputs, _, encCache, err := m.Encoder.Forward(source)
	if err != nil {
		return nil, nil, err
	}

	steps := len(target) - 1
	logProbs := mat.NewDense(steps, m.Config.TargetVocabSize, nil)
	cache := &SeqToSeqCache{
		encCache:   encCache,
		encOutputs: encOutputs,
		steps:      make([]*decoderStepCache, steps),
	}

	state := m.Encoder.FinalState(encCache)
	for t := 0; t < steps; t++ {
		var row []float64
		var sc *decoderStepCache
		state, row, sc, err = m.Decoder.step(target[t], state, encOutputs)
		if err != nil {
			return nil, nil, err
		}
		logProbs.SetRow(t, row)
		cache.steps[t] = sc
	}
	return logProbs, cache, nil
}

// Backward propagates dLogProbs [steps, TargetVocabSize] through the decoder
// steps and the encoder, accumulating every parameter gradient.
func (m *SeqToSeq) Backward(cache *SeqToSeqCache, dLogProbs *mat.Dense) error {
	steps := len(cache.steps)
	encRows, encDim := cache.encOutputs.Dims()
	dEncOutputs := mat.NewDense(encRows, encDim, nil)
	dEmbedded := mat.NewDense(steps, m.Decoder.Embedding.Dim, nil)

	// Gradient on the state flowing out of each step; starts empty past the
	// last step.
	dState := CellState{H: mat.NewVecDense(encDim, nil)}

	for t := steps - 1; t >= 0; t-- {
		sc := cache.steps[t]

		dScores := make([]float64, m.Config.TargetVocabSize)
		logSoftmaxBackwardRow(sc.logProbs, dLogProbs.RawRowView(t), dScores)

		dAttended, err := m.Decoder.Out.Backward(sc.outCache, mat.NewDense(1, len(dScores), dScores))
		if err != nil {
			return err
		}

		dQuery, dCtx, err := m.Decoder.Attention.Backward(sc.attnCache, dAttended)
		if err != nil {
			return err
		}
		dEncOutputs.Add(dEncOutputs, dCtx)

		// Hidden state feeds both the attention query and the next step.
		for j := 0; j < encDim; j++ {
			dState.H.SetVec(j, dState.H.AtVec(j)+dQuery.At(0, j))
		}

		dX, dPrev := m.Decoder.Cell.StepBackward(sc.cellCache, dState)
		addRow(dEmbedded, t, dX)
		dState = dPrev
	}

	// dState is now the gradient on the encoder final state.
	inputs := make([]int64, steps)
	for t, sc := range cache.steps {
		inputs[t] = sc.token
	}
	if err := m.Decoder.Embedding.Backward(inputs, dEmbedded); err != nil {
		return err
	}
	return m.Encoder.Backward(cache.encCache, dEncOutputs, dState)
}

// Generate greedily decodes up to maxLen tokens from a source sequence,
// stopping at EOS. The returned sequence excludes SOS and EOS.
func (m *SeqToSeq) Generate(source []int64, maxLen int) ([]int64, error) {
	encOutputs, _, encCache, err := m.Encoder.Forward(source)
	if err != nil {
		return nil, err
	}

	state := m.Encoder.FinalState(encCache)
	token := encoders.SOSIndex
	var out []int64
	for len(out) < maxLen {
		var row []float64
		state, row, _, err = m.Decoder.step(token, state, encOutputs)
		if err != nil {
			return nil, err
		}
		next := argmaxSlice(row, int(encoders.SOSIndex)+1)
		if next == encoders.EOSIndex {
			break
		}
		out = append(out, next)
		token = next
	}
	return out, nil
}

// Parameters returns every trainable parameter of the model.
func (m *SeqToSeq) Parameters() []*Parameter {
	return append(m.Encoder.Parameters(), m.Decoder.Parameters()...)
}

// argmaxSlice returns the index of the largest entry at or above firstValid.
func argmaxSlice(row []float64, firstValid int) int64 {
	best := firstValid
	for j := firstValid; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return int64(best)
}
