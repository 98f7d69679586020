// Package metrics computes the evaluation numbers reported after each
// training epoch.
package metrics

import (
	"math/rand"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/dkhr/goseq/encoders"
)

// Accuracy is the fraction of predictions exactly matching their targets.
// Positions equal to ignoreIndex in a target sequence are skipped when
// comparing; pass a negative ignoreIndex to compare every position.
func Accuracy(targets, predictions [][]int64, ignoreIndex int64) (float64, error) {
	if len(targets) != len(predictions) {
		return 0, errors.Errorf("accuracy: %d targets vs %d predictions", len(targets), len(predictions))
	}
	if len(targets) == 0 {
		return 0, errors.New("accuracy: no samples")
	}
	correct := 0
	for i := range targets {
		if sequencesEqual(targets[i], predictions[i], ignoreIndex) {
			correct++
		}
	}
	return float64(correct) / float64(len(targets)), nil
}

// TokenAccuracy is the fraction of individual tokens predicted correctly,
// skipping target positions equal to ignoreIndex. Missing prediction
// positions count as wrong.
func TokenAccuracy(targets, predictions [][]int64, ignoreIndex int64) (float64, error) {
	if len(targets) != len(predictions) {
		return 0, errors.Errorf("token accuracy: %d targets vs %d predictions", len(targets), len(predictions))
	}
	correct, total := 0, 0
	for i := range targets {
		for j, want := range targets[i] {
			if ignoreIndex >= 0 && want == ignoreIndex {
				continue
			}
			total++
			if j < len(predictions[i]) && predictions[i][j] == want {
				correct++
			}
		}
	}
	if total == 0 {
		return 0, errors.New("token accuracy: no scorable tokens")
	}
	return float64(correct) / float64(total), nil
}

// BucketAccuracy groups samples by a bucket label and reports per-bucket
// exact-match accuracy. Buckets are returned in sorted order.
type BucketAccuracy struct {
	Bucket   string
	Count    int
	Accuracy float64
}

// AccuracyByBucket computes per-bucket accuracy; buckets[i] labels sample i.
func AccuracyByBucket(buckets []string, targets, predictions [][]int64, ignoreIndex int64) ([]BucketAccuracy, error) {
	if len(buckets) != len(targets) || len(targets) != len(predictions) {
		return nil, errors.Errorf("bucket accuracy: %d buckets, %d targets, %d predictions",
			len(buckets), len(targets), len(predictions))
	}
	counts := make(map[string]int)
	correct := make(map[string]int)
	for i, bucket := range buckets {
		counts[bucket]++
		if sequencesEqual(targets[i], predictions[i], ignoreIndex) {
			correct[bucket]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]BucketAccuracy, 0, len(names))
	for _, name := range names {
		out = append(out, BucketAccuracy{
			Bucket:   name,
			Count:    counts[name],
			Accuracy: float64(correct[name]) / float64(counts[name]),
		})
	}
	return out, nil
}

// LogRandomSample decodes and logs up to n random (source, target,
// prediction) triples for eyeballing model behavior.
func LogRandomSample(
	logger golog.Logger,
	sources, targets, predictions [][]int64,
	sourceEncoder, targetEncoder encoders.Encoder,
	n int,
	rng *rand.Rand,
) {
	if len(sources) == 0 {
		return
	}
	for _, i := range rng.Perm(len(sources))[:min(n, len(sources))] {
		logger.Infow("sample",
			"source", sourceEncoder.Decode(sources[i]),
			"target", targetEncoder.Decode(targets[i]),
			"prediction", targetEncoder.Decode(predictions[i]),
		)
	}
}

func sequencesEqual(target, prediction []int64, ignoreIndex int64) bool {
	// Extra predicted tokens beyond the target length are a mismatch.
	if len(prediction) > len(target) {
		return false
	}
	for j, want := range target {
		if ignoreIndex >= 0 && want == ignoreIndex {
			continue
		}
		if j >= len(prediction) || prediction[j] != want {
			return false
		}
	}
	return true
}
