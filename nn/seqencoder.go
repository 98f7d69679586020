package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SeqEncoder embeds a token sequence and runs it through a recurrent cell,
// optionally bidirectional. Output rows are per-timestep hidden states; for
// a bidirectional encoder forward and backward states are concatenated, so
// the output dimensionality is OutputSize().
type SeqEncoder struct {
	Embedding *Embedding
	Fwd       Cell
	Bwd       Cell // nil when unidirectional
}

// SeqEncoderCache holds the per-step caches for backward.
type SeqEncoderCache struct {
	tokens   []int64
	embedded *mat.Dense
	fwdSteps []CellCache
	bwdSteps []CellCache
	// final states, exposed for decoder initialization
	FwdFinal CellState
	BwdFinal CellState
}

// NewSeqEncoder builds an encoder over a vocabulary. cellKind is "lstm" or
// "gru".
func NewSeqEncoder(name string, vocabSize, embeddingSize, hiddenSize int,
	cellKind string, bidirectional bool, rng *rand.Rand) (*SeqEncoder, error) {
	fwd, err := NewCell(name+".fwd", cellKind, embeddingSize, hiddenSize, rng)
	if err != nil {
		return nil, err
	}
	enc := &SeqEncoder{
		Embedding: NewEmbedding(name+".embedding", vocabSize, embeddingSize, rng),
		Fwd:       fwd,
	}
	if bidirectional {
		enc.Bwd, err = NewCell(name+".bwd", cellKind, embeddingSize, hiddenSize, rng)
		if err != nil {
			return nil, err
		}
	}
	return enc, nil
}

// OutputSize is the per-step output dimensionality.
func (e *SeqEncoder) OutputSize() int {
	if e.Bwd != nil {
		return 2 * e.Fwd.HiddenSize()
	}
	return e.Fwd.HiddenSize()
}

// Bidirectional reports whether a backward cell is present.
func (e *SeqEncoder) Bidirectional() bool { return e.Bwd != nil }

// Forward encodes tokens into per-step outputs [T, OutputSize()] and the
// final state vector (forward and backward finals concatenated).
func (e *SeqEncoder) Forward(tokens []int64) (*mat.Dense, *mat.VecDense, *SeqEncoderCache, error) {
	T := len(tokens)
	if T == 0 {
		return nil, nil, nil, errors.New("seq encoder: empty sequence")
	}

	embedded, err := e.Embedding.Forward(tokens)
	if err != nil {
		return nil, nil, nil, err
	}

	H := e.Fwd.HiddenSize()
	outputs := mat.NewDense(T, e.OutputSize(), nil)
	cache := &SeqEncoderCache{
		tokens:   tokens,
		embedded: embedded,
		fwdSteps: make([]CellCache, T),
	}

	state := e.Fwd.ZeroState()
	for t := 0; t < T; t++ {
		x := rowVec(embedded, t)
		var sc CellCache
		state, sc = e.Fwd.Step(x, state)
		cache.fwdSteps[t] = sc
		for j := 0; j < H; j++ {
			outputs.Set(t, j, state.H.AtVec(j))
		}
	}
	cache.FwdFinal = state

	if e.Bwd != nil {
		cache.bwdSteps = make([]CellCache, T)
		state = e.Bwd.ZeroState()
		for t := T - 1; t >= 0; t-- {
			x := rowVec(embedded, t)
			var sc CellCache
			state, sc = e.Bwd.Step(x, state)
			cache.bwdSteps[t] = sc
			for j := 0; j < H; j++ {
				outputs.Set(t, H+j, state.H.AtVec(j))
			}
		}
		cache.BwdFinal = state
	}

	final := mat.NewVecDense(e.OutputSize(), nil)
	for j := 0; j < H; j++ {
		final.SetVec(j, cache.FwdFinal.H.AtVec(j))
	}
	if e.Bwd != nil {
		for j := 0; j < H; j++ {
			final.SetVec(H+j, cache.BwdFinal.H.AtVec(j))
		}
	}

	return outputs, final, cache, nil
}

// FinalState returns the final cell state for decoder initialization; for a
// bidirectional encoder the forward and backward states are concatenated.
func (e *SeqEncoder) FinalState(cache *SeqEncoderCache) CellState {
	if e.Bwd == nil {
		return cache.FwdFinal
	}
	H := e.Fwd.HiddenSize()
	h := mat.NewVecDense(2*H, nil)
	for j := 0; j < H; j++ {
		h.SetVec(j, cache.FwdFinal.H.AtVec(j))
		h.SetVec(H+j, cache.BwdFinal.H.AtVec(j))
	}
	state := CellState{H: h}
	if cache.FwdFinal.C != nil {
		c := mat.NewVecDense(2*H, nil)
		for j := 0; j < H; j++ {
			c.SetVec(j, cache.FwdFinal.C.AtVec(j))
			c.SetVec(H+j, cache.BwdFinal.C.AtVec(j))
		}
		state.C = c
	}
	return state
}

// Backward runs full BPTT over the sequence. dOutputs is [T, OutputSize()]
// and may be nil. dFinal is the gradient on the final state (its H is laid
// out like FinalState; C is optional) and its fields may be nil. Parameter
// gradients accumulate in place.
func (e *SeqEncoder) Backward(cache *SeqEncoderCache, dOutputs *mat.Dense, dFinal CellState) error {
	T := len(cache.tokens)
	H := e.Fwd.HiddenSize()
	dEmbedded := mat.NewDense(T, e.Embedding.Dim, nil)

	// Forward direction: walk timesteps in reverse.
	dState := CellState{H: mat.NewVecDense(H, nil)}
	if dFinal.H != nil {
		for j := 0; j < H; j++ {
			dState.H.SetVec(j, dFinal.H.AtVec(j))
		}
	}
	if dFinal.C != nil {
		dState.C = mat.NewVecDense(H, nil)
		for j := 0; j < H; j++ {
			dState.C.SetVec(j, dFinal.C.AtVec(j))
		}
	}
	for t := T - 1; t >= 0; t-- {
		if dOutputs != nil {
			for j := 0; j < H; j++ {
				dState.H.SetVec(j, dState.H.AtVec(j)+dOutputs.At(t, j))
			}
		}
		dX, dPrev := e.Fwd.StepBackward(cache.fwdSteps[t], dState)
		addRow(dEmbedded, t, dX)
		dState = dPrev
	}

	// Backward direction: walk timesteps forward (its recurrence runs T-1..0).
	if e.Bwd != nil {
		dState = CellState{H: mat.NewVecDense(H, nil)}
		if dFinal.H != nil {
			for j := 0; j < H; j++ {
				dState.H.SetVec(j, dFinal.H.AtVec(H+j))
			}
		}
		if dFinal.C != nil {
			dState.C = mat.NewVecDense(H, nil)
			for j := 0; j < H; j++ {
				dState.C.SetVec(j, dFinal.C.AtVec(H+j))
			}
		}
		for t := 0; t < T; t++ {
			if dOutputs != nil {
				for j := 0; j < H; j++ {
					dState.H.SetVec(j, dState.H.AtVec(j)+dOutputs.At(t, H+j))
				}
			}
			dX, dPrev := e.Bwd.StepBackward(cache.bwdSteps[t], dState)
			addRow(dEmbedded, t, dX)
			dState = dPrev
		}
	}

	return e.Embedding.Backward(cache.tokens, dEmbedded)
}

// Parameters returns the trainable parameters.
func (e *SeqEncoder) Parameters() []*Parameter {
	params := e.Embedding.Parameters()
	params = append(params, e.Fwd.Parameters()...)
	if e.Bwd != nil {
		params = append(params, e.Bwd.Parameters()...)
	}
	return params
}

// rowVec copies row i of m into a vector.
func rowVec(m *mat.Dense, i int) *mat.VecDense {
	_, c := m.Dims()
	v := mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		v.SetVec(j, m.At(i, j))
	}
	return v
}

// addRow adds v into row i of m.
func addRow(m *mat.Dense, i int, v *mat.VecDense) {
	for j := 0; j < v.Len(); j++ {
		m.Set(i, j, m.At(i, j)+v.AtVec(j))
	}
}
