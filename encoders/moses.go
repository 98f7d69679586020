package encoders

import (
	"strings"
	"unicode"
)

// NewMosesEncoder builds a WordEncoder whose tokenizer approximates the
// Moses tokenizer: punctuation is split from words, contractions keep their
// apostrophe attached to the suffix ("don't" -> "don" "'t"). The tokenize
// option is fixed; callers cannot override it.
func NewMosesEncoder(corpus []string, opts ...WordOption) (*WordEncoder, error) {
	return NewWordEncoder(corpus, append(opts, WithTokenize(MosesTokenize))...)
}

// MosesTokenize splits text into words and punctuation tokens.
func MosesTokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '\'' && i+1 < len(runes) && unicode.IsLetter(runes[i+1]) && cur.Len() > 0:
			// Contraction: split before the apostrophe, keep it with the suffix.
			flush()
			cur.WriteRune(r)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
