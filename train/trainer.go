package train

import (
	"context"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/dkhr/goseq/checkpoint"
	"github.com/dkhr/goseq/encoders"
	"github.com/dkhr/goseq/metrics"
	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/optim"
	"github.com/dkhr/goseq/sampler"
)

// LabelTrainer runs the training loop for sequence-to-label models.
type LabelTrainer struct {
	Model         *nn.SeqToLabel
	ModelConfig   nn.ModelConfig
	Optimizer     *optim.Optimizer
	SourceEncoder encoders.Encoder
	LabelEncoder  encoders.Encoder
	Train         []LabelExample
	Dev           []LabelExample
	Config        TrainConfig

	// SaveDir receives one checkpoint per epoch when non-empty.
	SaveDir string
	// StartEpoch is the epoch the run resumes after (0 for a fresh run).
	StartEpoch int

	logger golog.Logger
	rng    *rand.Rand
}

// NewLabelTrainer wires a trainer around an existing model and optimizer.
func NewLabelTrainer(
	logger golog.Logger,
	model *nn.SeqToLabel,
	modelCfg nn.ModelConfig,
	opt *optim.Optimizer,
	sourceEncoder, labelEncoder encoders.Encoder,
	trainSet, devSet []LabelExample,
	cfg TrainConfig,
) *LabelTrainer {
	return &LabelTrainer{
		Model:         model,
		ModelConfig:   modelCfg,
		Optimizer:     opt,
		SourceEncoder: sourceEncoder,
		LabelEncoder:  labelEncoder,
		Train:         trainSet,
		Dev:           devSet,
		Config:        cfg,
		logger:        logger,
		rng:           Seed(cfg.Seed),
	}
}

// Run trains until Config.Epochs or until ctx is canceled. Each epoch ends
// with a dev evaluation, a plateau check on the learning rate, and (when
// SaveDir is set) a checkpoint.
func (t *LabelTrainer) Run(ctx context.Context) error {
	if len(t.Train) == 0 {
		return errors.New("no training examples")
	}
	t.logger.Infow("training sequence-to-label model",
		"train_examples", len(t.Train),
		"dev_examples", len(t.Dev),
		"parameters", nn.TotalParameters(t.Model.Parameters()),
		"epochs", t.Config.Epochs,
	)

	for epoch := t.StartEpoch + 1; epoch <= t.Config.Epochs; epoch++ {
		trainLoss, err := t.trainEpoch(ctx)
		if err != nil {
			return errors.Wrapf(err, "epoch %d", epoch)
		}

		devLoss, accuracy, byBucket, err := t.Evaluate(ctx)
		if err != nil {
			return errors.Wrapf(err, "epoch %d: dev evaluation", epoch)
		}
		lr := t.Optimizer.Update(devLoss, epoch)

		t.logger.Infow("epoch complete",
			"epoch", epoch,
			"train_loss", trainLoss,
			"dev_loss", devLoss,
			"dev_accuracy", accuracy,
			"lr", lr,
		)
		for _, b := range byBucket {
			t.logger.Infow("bucket accuracy", "bucket", b.Bucket, "accuracy", b.Accuracy, "count", b.Count)
		}

		if t.SaveDir != "" {
			if err := t.save(epoch); err != nil {
				return errors.Wrapf(err, "epoch %d", epoch)
			}
		}
	}
	return nil
}

func (t *LabelTrainer) trainEpoch(ctx context.Context) (float64, error) {
	s, err := sampler.NewBucketBatchSampler(len(t.Train), t.Config.TrainBatchSize,
		func(i int) int { return len(t.Train[i].Source) }, t.rng)
	if err != nil {
		return 0, err
	}

	batches := s.Batches()
	total := 0.0
	for _, indices := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sources := make([][]int64, len(indices))
		for i, j := range indices {
			sources[i] = t.Train[j].Source
		}
		batch, err := PadBatch(sources)
		if err != nil {
			return 0, err
		}

		t.Optimizer.ZeroGrad()
		batchLoss := 0.0
		for i := range batch.Sequences {
			ex := t.Train[indices[batch.Order[i]]]
			logProbs, _, cache, err := t.Model.Forward(batch.Row(i))
			if err != nil {
				return 0, err
			}
			loss, grad, _, err := nn.NLLLoss(logProbs, []int64{ex.Label}, -1)
			if err != nil {
				return 0, err
			}
			grad.Scale(1/float64(len(indices)), grad)
			if err := t.Model.Backward(cache, grad); err != nil {
				return 0, err
			}
			batchLoss += loss
		}
		t.Optimizer.Step()
		total += batchLoss / float64(len(indices))
	}
	return total / float64(len(batches)), nil
}

// Evaluate computes dev loss, exact-match accuracy and accuracy bucketed by
// the decoded label, and logs a few random predictions.
func (t *LabelTrainer) Evaluate(ctx context.Context) (float64, float64, []metrics.BucketAccuracy, error) {
	if len(t.Dev) == 0 {
		return 0, 0, nil, errors.New("no dev examples")
	}
	batches, err := sampler.SequentialBatches(len(t.Dev), t.Config.DevBatchSize)
	if err != nil {
		return 0, 0, nil, err
	}

	var (
		sources, targets, predictions [][]int64
		buckets                       []string
		totalLoss                     float64
	)
	firstValid := encoders.EOSIndex + 1
	for _, indices := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, nil, err
		}
		for _, j := range indices {
			ex := t.Dev[j]
			logProbs, _, _, err := t.Model.Forward(ex.Source)
			if err != nil {
				return 0, 0, nil, err
			}
			loss, _, _, err := nn.NLLLoss(logProbs, []int64{ex.Label}, -1)
			if err != nil {
				return 0, 0, nil, err
			}
			totalLoss += loss

			pred, err := t.Model.Predict(ex.Source, firstValid)
			if err != nil {
				return 0, 0, nil, err
			}
			sources = append(sources, ex.Source)
			targets = append(targets, []int64{ex.Label})
			predictions = append(predictions, []int64{pred})
			buckets = append(buckets, t.LabelEncoder.Decode([]int64{ex.Label}))
		}
	}

	accuracy, err := metrics.Accuracy(targets, predictions, -1)
	if err != nil {
		return 0, 0, nil, err
	}
	byBucket, err := metrics.AccuracyByBucket(buckets, targets, predictions, -1)
	if err != nil {
		return 0, 0, nil, err
	}
	metrics.LogRandomSample(t.logger, sources, targets, predictions,
		t.SourceEncoder, t.LabelEncoder, t.Config.SampleCount, t.rng)

	return totalLoss / float64(len(t.Dev)), accuracy, byBucket, nil
}

func (t *LabelTrainer) save(epoch int) error {
	snap, err := checkpoint.Capture(checkpoint.KindSeqToLabel, epoch, t.ModelConfig,
		t.Model.Parameters(), t.Optimizer, t.SourceEncoder.Vocab(), t.LabelEncoder.Vocab())
	if err != nil {
		return err
	}
	path, err := checkpoint.Save(t.SaveDir, snap)
	if err != nil {
		return err
	}
	t.logger.Infow("checkpoint saved", "path", path)
	return nil
}
