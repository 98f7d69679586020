package encoders

import (
	"strings"

	"github.com/pkg/errors"
)

// TokenizeFn splits raw text into tokens.
type TokenizeFn func(text string) []string

// WordOption configures a WordEncoder.
type WordOption func(*wordConfig)

type wordConfig struct {
	tokenize      TokenizeFn
	minOccurrence int
	appendSOS     bool
	appendEOS     bool
}

// WithTokenize replaces the default whitespace tokenizer.
func WithTokenize(fn TokenizeFn) WordOption {
	return func(c *wordConfig) { c.tokenize = fn }
}

// WithMinOccurrence drops corpus tokens seen fewer than n times; they encode
// to UnknownIndex.
func WithMinOccurrence(n int) WordOption {
	return func(c *wordConfig) { c.minOccurrence = n }
}

// WithSOS makes Encode prepend SOSIndex to every sequence.
func WithSOS() WordOption {
	return func(c *wordConfig) { c.appendSOS = true }
}

// WithEOS makes Encode append EOSIndex to every sequence.
func WithEOS() WordOption {
	return func(c *wordConfig) { c.appendEOS = true }
}

// WordEncoder maps tokens to integer indices using a vocabulary built once
// from a training corpus. Out-of-vocabulary tokens encode to UnknownIndex.
type WordEncoder struct {
	tokenize  TokenizeFn
	itos      []string
	stoi      map[string]int64
	appendSOS bool
	appendEOS bool
}

// NewWordEncoder builds a vocabulary from the corpus samples. The default
// tokenizer splits on whitespace.
func NewWordEncoder(corpus []string, opts ...WordOption) (*WordEncoder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("word encoder: empty corpus")
	}

	cfg := wordConfig{tokenize: strings.Fields, minOccurrence: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.minOccurrence < 1 {
		return nil, errors.Errorf("word encoder: min occurrence %d < 1", cfg.minOccurrence)
	}

	counts := make(map[string]int)
	var order []string
	for _, sample := range corpus {
		for _, tok := range cfg.tokenize(sample) {
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	enc := &WordEncoder{
		tokenize:  cfg.tokenize,
		itos:      append([]string{}, ReservedTokens...),
		stoi:      make(map[string]int64, len(order)),
		appendSOS: cfg.appendSOS,
		appendEOS: cfg.appendEOS,
	}
	for _, tok := range order {
		if counts[tok] < cfg.minOccurrence {
			continue
		}
		enc.stoi[tok] = int64(len(enc.itos))
		enc.itos = append(enc.itos, tok)
	}
	return enc, nil
}

// WordEncoderFromVocab rebuilds an encoder from a previously built vocabulary
// (reserved tokens included). Used when restoring from a checkpoint.
func WordEncoderFromVocab(vocab []string, opts ...WordOption) (*WordEncoder, error) {
	if len(vocab) < len(ReservedTokens) {
		return nil, errors.Errorf("word encoder: vocab of %d is missing reserved tokens", len(vocab))
	}
	cfg := wordConfig{tokenize: strings.Fields}
	for _, opt := range opts {
		opt(&cfg)
	}
	enc := &WordEncoder{
		tokenize:  cfg.tokenize,
		itos:      append([]string{}, vocab...),
		stoi:      make(map[string]int64, len(vocab)),
		appendSOS: cfg.appendSOS,
		appendEOS: cfg.appendEOS,
	}
	for i, tok := range vocab[len(ReservedTokens):] {
		enc.stoi[tok] = int64(i + len(ReservedTokens))
	}
	return enc, nil
}

// Encode tokenizes text and maps each token to its index.
func (e *WordEncoder) Encode(text string) []int64 {
	tokens := e.tokenize(text)
	indices := make([]int64, 0, len(tokens)+2)
	if e.appendSOS {
		indices = append(indices, SOSIndex)
	}
	for _, tok := range tokens {
		if idx, ok := e.stoi[tok]; ok {
			indices = append(indices, idx)
		} else {
			indices = append(indices, UnknownIndex)
		}
	}
	if e.appendEOS {
		indices = append(indices, EOSIndex)
	}
	return indices
}

// Decode maps indices back to tokens and joins them with spaces. Padding,
// SOS and EOS indices are dropped.
func (e *WordEncoder) Decode(indices []int64) string {
	tokens := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx == PaddingIndex || idx == SOSIndex || idx == EOSIndex {
			continue
		}
		if idx < 0 || int(idx) >= len(e.itos) {
			tokens = append(tokens, UnknownToken)
			continue
		}
		tokens = append(tokens, e.itos[idx])
	}
	return strings.Join(tokens, " ")
}

// VocabSize returns the vocabulary size including reserved tokens.
func (e *WordEncoder) VocabSize() int { return len(e.itos) }

// Vocab returns the vocabulary, reserved tokens first.
func (e *WordEncoder) Vocab() []string { return append([]string{}, e.itos...) }
