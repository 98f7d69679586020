package dataset

import "math/rand"

// Resplit concatenates two datasets, shuffles the rows deterministically
// under seed, and splits them back. With cut < 0 the original sizes are
// kept; otherwise cut is the fraction (clamped to [0, 1]) assigned to the
// first returned dataset.
//
// Given the same inputs and seed, the split is identical on every call.
func Resplit(a, b *Dataset, seed int64, cut float64) (*Dataset, *Dataset) {
	concat := make([]Row, 0, a.Len()+b.Len())
	concat = append(concat, a.Rows...)
	concat = append(concat, b.Rows...)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(concat), func(i, j int) {
		concat[i], concat[j] = concat[j], concat[i]
	})

	split := a.Len()
	if cut >= 0 {
		split = int(float64(len(concat))*cut + 0.5)
		if split > len(concat) {
			split = len(concat)
		}
	}
	return New(concat[:split]), New(concat[split:])
}
