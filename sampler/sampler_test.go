package sampler

import (
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestBucketBatchSamplerCoversEveryIndexOnce(t *testing.T) {
	lengths := make([]int, 257)
	for i := range lengths {
		lengths[i] = i % 13
	}
	s, err := NewBucketBatchSampler(len(lengths), 16, func(i int) int { return lengths[i] },
		rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldBeNil)

	seen := make(map[int]int)
	batches := s.Batches()
	for _, batch := range batches {
		test.That(t, len(batch), test.ShouldBeLessThanOrEqualTo, 16)
		for _, idx := range batch {
			seen[idx]++
		}
	}
	test.That(t, seen, test.ShouldHaveLength, len(lengths))
	for _, count := range seen {
		test.That(t, count, test.ShouldEqual, 1)
	}
}

func TestBucketBatchSamplerGroupsByLength(t *testing.T) {
	// All rows shorter than bucketSize land in one bucket, so every full
	// batch must span a narrow length range after the in-bucket sort.
	lengths := make([]int, 64)
	for i := range lengths {
		lengths[i] = i // unique lengths
	}
	s, err := NewBucketBatchSampler(len(lengths), 8, func(i int) int { return lengths[i] },
		rand.New(rand.NewSource(2)))
	test.That(t, err, test.ShouldBeNil)

	for _, batch := range s.Batches() {
		minLen, maxLen := lengths[batch[0]], lengths[batch[0]]
		for _, idx := range batch {
			if lengths[idx] < minLen {
				minLen = lengths[idx]
			}
			if lengths[idx] > maxLen {
				maxLen = lengths[idx]
			}
		}
		test.That(t, maxLen-minLen, test.ShouldEqual, len(batch)-1)
	}
}

func TestBucketBatchSamplerShortFinalBatch(t *testing.T) {
	s, err := NewBucketBatchSampler(10, 4, func(i int) int { return i }, rand.New(rand.NewSource(3)))
	test.That(t, err, test.ShouldBeNil)

	total := 0
	short := 0
	for _, batch := range s.Batches() {
		total += len(batch)
		if len(batch) < 4 {
			short++
		}
	}
	test.That(t, total, test.ShouldEqual, 10)
	test.That(t, short, test.ShouldEqual, 1)
}

func TestBucketBatchSamplerValidation(t *testing.T) {
	_, err := NewBucketBatchSampler(10, 0, func(i int) int { return i }, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewBucketBatchSampler(0, 4, func(i int) int { return i }, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestShuffleSamplerCoversEveryIndexOnce(t *testing.T) {
	s, err := NewShuffleSampler(53, 8, rand.New(rand.NewSource(4)))
	test.That(t, err, test.ShouldBeNil)

	seen := make(map[int]int)
	short := 0
	for _, batch := range s.Batches() {
		test.That(t, len(batch), test.ShouldBeLessThanOrEqualTo, 8)
		if len(batch) < 8 {
			short++
		}
		for _, idx := range batch {
			seen[idx]++
		}
	}
	test.That(t, seen, test.ShouldHaveLength, 53)
	for _, count := range seen {
		test.That(t, count, test.ShouldEqual, 1)
	}
	test.That(t, short, test.ShouldEqual, 1)
}

func TestShuffleSamplerShuffles(t *testing.T) {
	s, err := NewShuffleSampler(64, 64, rand.New(rand.NewSource(5)))
	test.That(t, err, test.ShouldBeNil)

	batch := s.Batches()[0]
	inOrder := true
	for i, idx := range batch {
		if idx != i {
			inOrder = false
			break
		}
	}
	test.That(t, inOrder, test.ShouldBeFalse)
}

func TestShuffleSamplerValidation(t *testing.T) {
	_, err := NewShuffleSampler(10, 0, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewShuffleSampler(0, 4, rand.New(rand.NewSource(1)))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSequentialBatches(t *testing.T) {
	batches, err := SequentialBatches(5, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, batches, test.ShouldResemble, [][]int{{0, 1}, {2, 3}, {4}})

	_, err = SequentialBatches(5, 0)
	test.That(t, err, test.ShouldNotBeNil)
}
