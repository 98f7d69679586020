// Package encoders provides bidirectional mappings between raw text and
// integer index sequences for sequence models.
package encoders

// Reserved index layout (shared across all goseq encoders):
//
//   0: <pad>  padding
//   1: <unk>  unknown token
//   2: <s>    start of sequence
//   3: </s>   end of sequence
//   4+:       corpus vocabulary, ordered by first occurrence
//
// Fixed reserved IDs let padding masks, loss ignore-indices and
// decode-loop termination work identically across encoder kinds.
const (
	PaddingIndex = int64(0)
	UnknownIndex = int64(1)
	SOSIndex     = int64(2)
	EOSIndex     = int64(3)
)

const (
	PaddingToken = "<pad>"
	UnknownToken = "<unk>"
	SOSToken     = "<s>"
	EOSToken     = "</s>"
)

// ReservedTokens are prepended to every encoder vocabulary, in index order.
var ReservedTokens = []string{PaddingToken, UnknownToken, SOSToken, EOSToken}

// Encoder is the common interface for all text encoders.
// An encoder is built once from a training corpus and is immutable after
// construction.
type Encoder interface {
	Encode(text string) []int64
	Decode(indices []int64) string
	VocabSize() int
	Vocab() []string
}
