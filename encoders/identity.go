package encoders

import (
	"strings"

	"github.com/pkg/errors"
)

// IdentityEncoder maps whole strings to indices without tokenization.
// It is the label encoder for classification heads: Encode returns a
// single-element sequence.
type IdentityEncoder struct {
	itos []string
	stoi map[string]int64
}

// NewIdentityEncoder builds the label set from the corpus samples.
func NewIdentityEncoder(corpus []string) (*IdentityEncoder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("identity encoder: empty corpus")
	}
	enc := &IdentityEncoder{
		itos: append([]string{}, ReservedTokens...),
		stoi: make(map[string]int64),
	}
	for _, sample := range corpus {
		if _, ok := enc.stoi[sample]; ok {
			continue
		}
		enc.stoi[sample] = int64(len(enc.itos))
		enc.itos = append(enc.itos, sample)
	}
	return enc, nil
}

// IdentityEncoderFromVocab rebuilds an encoder from a saved vocabulary.
func IdentityEncoderFromVocab(vocab []string) (*IdentityEncoder, error) {
	if len(vocab) < len(ReservedTokens) {
		return nil, errors.Errorf("identity encoder: vocab of %d is missing reserved tokens", len(vocab))
	}
	enc := &IdentityEncoder{
		itos: append([]string{}, vocab...),
		stoi: make(map[string]int64, len(vocab)),
	}
	for i, tok := range vocab[len(ReservedTokens):] {
		enc.stoi[tok] = int64(i + len(ReservedTokens))
	}
	return enc, nil
}

// Encode maps the whole string to its index, or UnknownIndex.
func (e *IdentityEncoder) Encode(text string) []int64 {
	if idx, ok := e.stoi[text]; ok {
		return []int64{idx}
	}
	return []int64{UnknownIndex}
}

// Decode maps indices back to label strings.
func (e *IdentityEncoder) Decode(indices []int64) string {
	labels := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || int(idx) >= len(e.itos) {
			labels = append(labels, UnknownToken)
			continue
		}
		labels = append(labels, e.itos[idx])
	}
	return strings.Join(labels, " ")
}

// VocabSize returns the label count including reserved tokens.
func (e *IdentityEncoder) VocabSize() int { return len(e.itos) }

// Vocab returns the label vocabulary, reserved tokens first.
func (e *IdentityEncoder) Vocab() []string { return append([]string{}, e.itos...) }
