package encoders

import (
	"strings"

	"github.com/pkg/errors"
)

// CharacterEncoder maps individual runes to indices.
type CharacterEncoder struct {
	itos []string
	stoi map[string]int64
}

// NewCharacterEncoder builds the rune vocabulary from the corpus samples.
func NewCharacterEncoder(corpus []string) (*CharacterEncoder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("character encoder: empty corpus")
	}
	enc := &CharacterEncoder{
		itos: append([]string{}, ReservedTokens...),
		stoi: make(map[string]int64),
	}
	for _, sample := range corpus {
		for _, r := range sample {
			c := string(r)
			if _, ok := enc.stoi[c]; ok {
				continue
			}
			enc.stoi[c] = int64(len(enc.itos))
			enc.itos = append(enc.itos, c)
		}
	}
	return enc, nil
}

// Encode maps each rune to its index, or UnknownIndex.
func (e *CharacterEncoder) Encode(text string) []int64 {
	var indices []int64
	for _, r := range text {
		if idx, ok := e.stoi[string(r)]; ok {
			indices = append(indices, idx)
		} else {
			indices = append(indices, UnknownIndex)
		}
	}
	return indices
}

// Decode maps indices back to runes, dropping padding.
func (e *CharacterEncoder) Decode(indices []int64) string {
	var b strings.Builder
	for _, idx := range indices {
		if idx == PaddingIndex || idx == SOSIndex || idx == EOSIndex {
			continue
		}
		if idx < 0 || int(idx) >= len(e.itos) {
			b.WriteString(UnknownToken)
			continue
		}
		b.WriteString(e.itos[idx])
	}
	return b.String()
}

// VocabSize returns the vocabulary size including reserved tokens.
func (e *CharacterEncoder) VocabSize() int { return len(e.itos) }

// Vocab returns the vocabulary, reserved tokens first.
func (e *CharacterEncoder) Vocab() []string { return append([]string{}, e.itos...) }
