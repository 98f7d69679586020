package train

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/dkhr/goseq/dataset"
	"github.com/dkhr/goseq/encoders"
)

// LabelExample pairs an encoded source sequence with a single label index.
type LabelExample struct {
	Source []int64
	Label  int64
}

// SeqExample pairs an encoded source sequence with an encoded target
// sequence. The target carries its SOS and EOS markers.
type SeqExample struct {
	Source []int64
	Target []int64
}

// LabelExamples extracts (source, label) pairs from a dataset whose columns
// have already been index-encoded.
func LabelExamples(ds *dataset.Dataset, sourceKey, labelKey string) ([]LabelExample, error) {
	out := make([]LabelExample, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		source, err := row.Seq(sourceKey)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		label, err := row.Seq(labelKey)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		if len(source) == 0 {
			return nil, errors.Errorf("row %d: empty source sequence", i)
		}
		if len(label) != 1 {
			return nil, errors.Errorf("row %d: label encodes to %d indices, want 1", i, len(label))
		}
		out = append(out, LabelExample{Source: source, Label: label[0]})
	}
	return out, nil
}

// SeqExamples extracts (source, target) pairs from a dataset whose columns
// have already been index-encoded. Targets must start with SOS and end with
// EOS so teacher forcing and loss alignment line up.
func SeqExamples(ds *dataset.Dataset, sourceKey, targetKey string) ([]SeqExample, error) {
	out := make([]SeqExample, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		source, err := row.Seq(sourceKey)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		target, err := row.Seq(targetKey)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		if len(source) == 0 {
			return nil, errors.Errorf("row %d: empty source sequence", i)
		}
		if len(target) < 2 || target[0] != encoders.SOSIndex || target[len(target)-1] != encoders.EOSIndex {
			return nil, errors.Errorf("row %d: target must be <s> ... </s>, got %v", i, target)
		}
		out = append(out, SeqExample{Source: source, Target: target})
	}
	return out, nil
}

// Batch is a collated mini-batch: sequences padded to a common length with
// the padding index, longest first, plus the true length of each row.
// Order maps collated row i back to its index in the input slice.
type Batch struct {
	Sequences [][]int64
	Lengths   []int
	Order     []int
}

// Row returns row i trimmed back to its true length.
func (b Batch) Row(i int) []int64 {
	return b.Sequences[i][:b.Lengths[i]]
}

// PadBatch collates raw sequences into a Batch. Rows are sorted by
// descending length and padded on the right with the padding index.
func PadBatch(seqs [][]int64) (Batch, error) {
	if len(seqs) == 0 {
		return Batch{}, errors.New("empty batch")
	}

	order := make([]int, len(seqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(seqs[order[a]]) > len(seqs[order[b]])
	})

	maxLen := len(seqs[order[0]])
	batch := Batch{
		Sequences: make([][]int64, len(seqs)),
		Lengths:   make([]int, len(seqs)),
		Order:     order,
	}
	for i, j := range order {
		padded := make([]int64, maxLen)
		for k := range padded {
			padded[k] = encoders.PaddingIndex
		}
		copy(padded, seqs[j])
		batch.Sequences[i] = padded
		batch.Lengths[i] = len(seqs[j])
	}
	return batch, nil
}
