// Package sampler groups dataset indices into batches. The bucket sampler
// batches similar-length sequences together to cut padding waste.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// SortKey returns the bucketing key (typically the sequence length) of the
// dataset row at index i.
type SortKey func(i int) int

// defaultBucketFactor sizes each pooling bucket at batchSize * factor rows.
const defaultBucketFactor = 100

// BucketBatchSampler yields index batches of similar-length rows. Indices
// are shuffled, pooled into buckets of batchSize*bucketFactor, sorted by
// key inside each bucket, batched within buckets, and the batch order is
// shuffled. Every index appears in exactly one batch per call.
type BucketBatchSampler struct {
	n            int
	batchSize    int
	bucketFactor int
	sortKey      SortKey
	rng          *rand.Rand
}

// NewBucketBatchSampler creates a sampler over n dataset rows.
func NewBucketBatchSampler(n, batchSize int, sortKey SortKey, rng *rand.Rand) (*BucketBatchSampler, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("bucket sampler: batch size %d < 1", batchSize)
	}
	if n < 1 {
		return nil, errors.New("bucket sampler: empty dataset")
	}
	return &BucketBatchSampler{
		n:            n,
		batchSize:    batchSize,
		bucketFactor: defaultBucketFactor,
		sortKey:      sortKey,
		rng:          rng,
	}, nil
}

// Batches produces one epoch of batches. The final batch may be short.
func (s *BucketBatchSampler) Batches() [][]int {
	indices := s.rng.Perm(s.n)

	bucketSize := s.batchSize * s.bucketFactor
	var batches [][]int
	for start := 0; start < len(indices); start += bucketSize {
		end := start + bucketSize
		if end > len(indices) {
			end = len(indices)
		}
		bucket := indices[start:end]
		sort.SliceStable(bucket, func(a, b int) bool {
			return s.sortKey(bucket[a]) < s.sortKey(bucket[b])
		})
		for bs := 0; bs < len(bucket); bs += s.batchSize {
			be := bs + s.batchSize
			if be > len(bucket) {
				be = len(bucket)
			}
			batch := make([]int, be-bs)
			copy(batch, bucket[bs:be])
			batches = append(batches, batch)
		}
	}

	s.rng.Shuffle(len(batches), func(i, j int) {
		batches[i], batches[j] = batches[j], batches[i]
	})
	return batches
}

// ShuffleSampler yields fixed-size batches over a plain shuffle of the
// dataset indices, with no length grouping. Every index appears in exactly
// one batch per call.
type ShuffleSampler struct {
	n         int
	batchSize int
	rng       *rand.Rand
}

// NewShuffleSampler creates a sampler over n dataset rows.
func NewShuffleSampler(n, batchSize int, rng *rand.Rand) (*ShuffleSampler, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("shuffle sampler: batch size %d < 1", batchSize)
	}
	if n < 1 {
		return nil, errors.New("shuffle sampler: empty dataset")
	}
	return &ShuffleSampler{n: n, batchSize: batchSize, rng: rng}, nil
}

// Batches produces one epoch of batches. The final batch may be short.
func (s *ShuffleSampler) Batches() [][]int {
	indices := s.rng.Perm(s.n)
	var batches [][]int
	for start := 0; start < len(indices); start += s.batchSize {
		end := start + s.batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batch := make([]int, end-start)
		copy(batch, indices[start:end])
		batches = append(batches, batch)
	}
	return batches
}

// SequentialBatches yields fixed-size batches in dataset order, for
// deterministic evaluation passes.
func SequentialBatches(n, batchSize int) ([][]int, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("sequential batches: batch size %d < 1", batchSize)
	}
	var batches [][]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, i)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
