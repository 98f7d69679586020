package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// AttentionType selects the alignment score function.
type AttentionType string

const (
	// AttentionDot scores a query against a context position by their dot
	// product.
	AttentionDot = AttentionType("dot")
	// AttentionGeneral first projects the query through a learned linear
	// transform.
	AttentionGeneral = AttentionType("general")
)

// Attention applies a Luong-style attention mechanism. For each query row it
// computes a normalized alignment distribution over the context rows, mixes
// the context by that distribution, concatenates mix and query, and maps the
// result through a final linear + tanh.
//
// An optional mask forces the alignment weight of selected (query, context)
// pairs to exactly zero by setting their score to -Inf before normalization.
type Attention struct {
	Type      AttentionType
	LinearIn  *Linear // [dim, dim], general scoring only (no bias)
	LinearOut *Linear // [dim, 2*dim] (no bias)
	Dim       int

	mask [][]bool
}

// AttentionCache holds forward intermediates for Backward.
type AttentionCache struct {
	inCache  *LinearCache
	outCache *LinearCache
	query    *mat.Dense // after LinearIn for general scoring
	context  *mat.Dense
	weights  *mat.Dense
	output   *mat.Dense
}

// NewAttention creates an attention module over vectors of the given
// dimensionality. The attention type must be "dot" or "general".
func NewAttention(name string, dim int, attnType AttentionType, rng *rand.Rand) (*Attention, error) {
	a := &Attention{Type: attnType, Dim: dim}
	switch attnType {
	case AttentionGeneral:
		a.LinearIn = NewLinear(name+".linear_in", dim, dim, false, rng)
	case AttentionDot:
	default:
		return nil, errors.Errorf("invalid attention type %q", attnType)
	}
	a.LinearOut = NewLinear(name+".linear_out", 2*dim, dim, false, rng)
	return a, nil
}

// SetMask installs a [queryLen][contextLen] mask; true marks a pair whose
// weight must be zero. A nil mask disables masking.
func (a *Attention) SetMask(mask [][]bool) {
	a.mask = mask
}

// Forward computes attended outputs and the alignment weights.
//
// query:   [queryLen, dim]
// context: [contextLen, dim]
// returns output [queryLen, dim] and weights [queryLen, contextLen].
func (a *Attention) Forward(query, context *mat.Dense) (*mat.Dense, *mat.Dense, *AttentionCache, error) {
	qLen, qDim := query.Dims()
	cLen, cDim := context.Dims()
	if qDim != a.Dim || cDim != a.Dim {
		return nil, nil, nil, errors.Errorf(
			"attention: query dim %d / context dim %d, module expects %d", qDim, cDim, a.Dim)
	}
	if a.mask != nil {
		maskCols := 0
		if len(a.mask) > 0 {
			maskCols = len(a.mask[0])
		}
		if len(a.mask) != qLen || maskCols != cLen {
			return nil, nil, nil, errors.Errorf(
				"attention: mask is [%d][%d], scores are [%d][%d]", len(a.mask), maskCols, qLen, cLen)
		}
	}

	cache := &AttentionCache{context: context}

	q := query
	if a.Type == AttentionGeneral {
		var err error
		q, cache.inCache, err = a.LinearIn.Forward(query)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	cache.query = q

	// scores[i][j] = q_i · context_j
	scores := mat.NewDense(qLen, cLen, nil)
	scores.Mul(q, context.T())

	weights := rowSoftmaxMasked(scores, a.mask)
	cache.weights = weights

	// mix_i = Σ_j weights[i][j] * context_j
	mix := mat.NewDense(qLen, a.Dim, nil)
	mix.Mul(weights, context)

	combined := concatCols(mix, q)
	out, outCache, err := a.LinearOut.Forward(combined)
	if err != nil {
		return nil, nil, nil, err
	}
	cache.outCache = outCache
	tanhInPlace(out)
	cache.output = out

	return out, weights, cache, nil
}

// Backward propagates dOut through tanh, the output projection, the context
// mixing and the score normalization. It accumulates parameter gradients and
// returns gradients for the query and context inputs.
func (a *Attention) Backward(cache *AttentionCache, dOut *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	qLen, dim := cache.output.Dims()

	// Through tanh: dPre = dOut ⊙ (1 - out²).
	dPre := mat.NewDense(qLen, dim, nil)
	for i := 0; i < qLen; i++ {
		for j := 0; j < dim; j++ {
			o := cache.output.At(i, j)
			dPre.Set(i, j, dOut.At(i, j)*(1-o*o))
		}
	}

	dCombined, err := a.LinearOut.Backward(cache.outCache, dPre)
	if err != nil {
		return nil, nil, err
	}
	dMix := dCombined.Slice(0, qLen, 0, dim).(*mat.Dense)
	dQuery := mat.DenseCopyOf(dCombined.Slice(0, qLen, dim, 2*dim))

	// mix = weights @ context
	cLen, _ := cache.context.Dims()
	dWeights := mat.NewDense(qLen, cLen, nil)
	dWeights.Mul(dMix, cache.context.T())
	dContext := mat.NewDense(cLen, dim, nil)
	dContext.Mul(cache.weights.T(), dMix)

	// scores = query @ contextᵀ, through the row softmax.
	dScores := rowSoftmaxBackward(cache.weights, dWeights)

	var dQ mat.Dense
	dQ.Mul(dScores, cache.context)
	dQuery.Add(dQuery, &dQ)

	var dC mat.Dense
	dC.Mul(dScores.T(), cache.query)
	dContext.Add(dContext, &dC)

	if a.Type == AttentionGeneral {
		dQuery, err = a.LinearIn.Backward(cache.inCache, dQuery)
		if err != nil {
			return nil, nil, err
		}
	}
	return dQuery, dContext, nil
}

// Parameters returns the trainable parameters.
func (a *Attention) Parameters() []*Parameter {
	if a.LinearIn != nil {
		return append(a.LinearIn.Parameters(), a.LinearOut.Parameters()...)
	}
	return a.LinearOut.Parameters()
}
