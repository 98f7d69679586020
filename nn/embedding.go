package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/dkhr/goseq/encoders"
)

// Embedding maps token indices to learned dense rows. The padding row is
// zero and never receives gradient.
type Embedding struct {
	Weight    *Parameter // [vocabSize, dim]
	VocabSize int
	Dim       int
}

// NewEmbedding creates an embedding table from Uniform(-0.1, 0.1) with a
// zeroed padding row.
func NewEmbedding(name string, vocabSize, dim int, rng *rand.Rand) *Embedding {
	e := &Embedding{
		Weight:    NewParameter(name+".weight", vocabSize, dim, 0.1, rng),
		VocabSize: vocabSize,
		Dim:       dim,
	}
	for j := 0; j < dim; j++ {
		e.Weight.Value.Set(int(encoders.PaddingIndex), j, 0)
	}
	return e
}

// Forward looks up each index; the result is [len(indices), dim].
func (e *Embedding) Forward(indices []int64) (*mat.Dense, error) {
	out := mat.NewDense(len(indices), e.Dim, nil)
	for i, idx := range indices {
		if idx < 0 || int(idx) >= e.VocabSize {
			return nil, errors.Errorf("embedding: index %d out of range [0, %d)", idx, e.VocabSize)
		}
		out.SetRow(i, e.Weight.Value.RawRowView(int(idx)))
	}
	return out, nil
}

// Backward scatters dOut rows into the weight gradient. Padding rows are
// skipped so the padding embedding stays zero.
func (e *Embedding) Backward(indices []int64, dOut *mat.Dense) error {
	r, c := dOut.Dims()
	if r != len(indices) || c != e.Dim {
		return errors.Errorf("embedding: grad shape [%d, %d] does not match %d indices of dim %d",
			r, c, len(indices), e.Dim)
	}
	for i, idx := range indices {
		if idx == encoders.PaddingIndex {
			continue
		}
		for j := 0; j < e.Dim; j++ {
			e.Weight.Grad.Set(int(idx), j, e.Weight.Grad.At(int(idx), j)+dOut.At(i, j))
		}
	}
	return nil
}

// Parameters returns the trainable parameters.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}
