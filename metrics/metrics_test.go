package metrics

import (
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/dkhr/goseq/encoders"
)

func TestAccuracy(t *testing.T) {
	targets := [][]int64{{5}, {6}, {7}}
	predictions := [][]int64{{5}, {6}, {8}}

	acc, err := Accuracy(targets, predictions, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, acc, test.ShouldAlmostEqual, 2.0/3.0, 1e-12)

	_, err = Accuracy(targets, predictions[:2], -1)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Accuracy(nil, nil, -1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAccuracyIgnoreIndex(t *testing.T) {
	// Padded tails differ but are ignored.
	targets := [][]int64{{5, 6, encoders.PaddingIndex}}
	predictions := [][]int64{{5, 6, 9}}

	acc, err := Accuracy(targets, predictions, encoders.PaddingIndex)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, acc, test.ShouldEqual, 1)

	acc, err = Accuracy(targets, predictions, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, acc, test.ShouldEqual, 0)
}

func TestTokenAccuracy(t *testing.T) {
	targets := [][]int64{{5, 6, 7}, {8, encoders.PaddingIndex}}
	predictions := [][]int64{{5, 9, 7}, {8}}

	acc, err := TokenAccuracy(targets, predictions, encoders.PaddingIndex)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, acc, test.ShouldAlmostEqual, 3.0/4.0, 1e-12)
}

func TestTokenAccuracyShortPrediction(t *testing.T) {
	acc, err := TokenAccuracy([][]int64{{5, 6}}, [][]int64{{5}}, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, acc, test.ShouldAlmostEqual, 0.5, 1e-12)
}

func TestAccuracyByBucket(t *testing.T) {
	buckets := []string{"short", "short", "long"}
	targets := [][]int64{{5}, {6}, {7}}
	predictions := [][]int64{{5}, {9}, {7}}

	out, err := AccuracyByBucket(buckets, targets, predictions, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 2)

	test.That(t, out[0].Bucket, test.ShouldEqual, "long")
	test.That(t, out[0].Count, test.ShouldEqual, 1)
	test.That(t, out[0].Accuracy, test.ShouldEqual, 1)

	test.That(t, out[1].Bucket, test.ShouldEqual, "short")
	test.That(t, out[1].Count, test.ShouldEqual, 2)
	test.That(t, out[1].Accuracy, test.ShouldAlmostEqual, 0.5, 1e-12)
}

func TestLogRandomSample(t *testing.T) {
	enc, err := encoders.NewWordEncoder([]string{"a b c"})
	test.That(t, err, test.ShouldBeNil)

	sources := [][]int64{enc.Encode("a b"), enc.Encode("b c")}
	// Logging must not panic regardless of sample count.
	LogRandomSample(golog.NewTestLogger(t), sources, sources, sources, enc, enc, 5,
		rand.New(rand.NewSource(1)))
	LogRandomSample(golog.NewTestLogger(t), nil, nil, nil, enc, enc, 5,
		rand.New(rand.NewSource(1)))
}
