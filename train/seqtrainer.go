package train

import (
	"context"
	"math/rand"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/dkhr/goseq/checkpoint"
	"github.com/dkhr/goseq/encoders"
	"github.com/dkhr/goseq/metrics"
	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/optim"
	"github.com/dkhr/goseq/sampler"
)

// SeqTrainer runs the training loop for sequence-to-sequence models with
// teacher forcing.
type SeqTrainer struct {
	Model         *nn.SeqToSeq
	ModelConfig   nn.ModelConfig
	Optimizer     *optim.Optimizer
	SourceEncoder encoders.Encoder
	TargetEncoder encoders.Encoder
	Train         []SeqExample
	Dev           []SeqExample
	Config        TrainConfig

	SaveDir    string
	StartEpoch int

	logger golog.Logger
	rng    *rand.Rand
}

// NewSeqTrainer wires a trainer around an existing model and optimizer.
func NewSeqTrainer(
	logger golog.Logger,
	model *nn.SeqToSeq,
	modelCfg nn.ModelConfig,
	opt *optim.Optimizer,
	sourceEncoder, targetEncoder encoders.Encoder,
	trainSet, devSet []SeqExample,
	cfg TrainConfig,
) *SeqTrainer {
	return &SeqTrainer{
		Model:         model,
		ModelConfig:   modelCfg,
		Optimizer:     opt,
		SourceEncoder: sourceEncoder,
		TargetEncoder: targetEncoder,
		Train:         trainSet,
		Dev:           devSet,
		Config:        cfg,
		logger:        logger,
		rng:           Seed(cfg.Seed),
	}
}

// Run trains until Config.Epochs or until ctx is canceled.
func (t *SeqTrainer) Run(ctx context.Context) error {
	if len(t.Train) == 0 {
		return errors.New("no training examples")
	}
	t.logger.Infow("training sequence-to-sequence model",
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

func (t *SeqTrainer) trainEpoch(ctx context.Context) (float64, error) {
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
			logProbs, cache, err := t.Model.Forward(batch.Row(i), ex.Target)
			if err != nil {
				return 0, err
			}
			loss, grad, count, err := nn.NLLLoss(logProbs, ex.Target[1:], encoders.PaddingIndex)
			if err != nil {
				return 0, err
			}
			if count > 0 {
				// Per-token loss, averaged over the batch.
				grad.Scale(1/float64(count*len(indices)), grad)
				batchLoss += loss / float64(count)
			}
			if err := t.Model.Backward(cache, grad); err != nil {
				return 0, err
			}
		}
		t.Optimizer.Step()
		total += batchLoss / float64(len(indices))
	}
	return total / float64(len(batches)), nil
}

// Evaluate computes dev loss under teacher forcing, exact-match accuracy of
// greedy generation, and accuracy bucketed by source length.
func (t *SeqTrainer) Evaluate(ctx context.Context) (float64, float64, []metrics.BucketAccuracy, error) {
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
		totalTokens                   int
	)
	for _, indices := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, nil, err
		}
		for _, j := range indices {
			ex := t.Dev[j]
			logProbs, _, err := t.Model.Forward(ex.Source, ex.Target)
			if err != nil {
				return 0, 0, nil, err
			}
			loss, _, count, err := nn.NLLLoss(logProbs, ex.Target[1:], encoders.PaddingIndex)
			if err != nil {
				return 0, 0, nil, err
			}
			totalLoss += loss
			totalTokens += count

			pred, err := t.Model.Generate(ex.Source, t.Config.MaxDecodeLen)
			if err != nil {
				return 0, 0, nil, err
			}
			sources = append(sources, ex.Source)
			// Strip SOS and EOS so targets align with Generate output.
			targets = append(targets, ex.Target[1:len(ex.Target)-1])
			predictions = append(predictions, pred)
			buckets = append(buckets, strconv.Itoa(len(ex.Source)))
		}
	}

	accuracy, err := metrics.Accuracy(targets, predictions, encoders.PaddingIndex)
	if err != nil {
		return 0, 0, nil, err
	}
	byBucket, err := metrics.AccuracyByBucket(buckets, targets, predictions, encoders.PaddingIndex)
	if err != nil {
		return 0, 0, nil, err
	}
	metrics.LogRandomSample(t.logger, sources, targets, predictions,
		t.SourceEncoder, t.TargetEncoder, t.Config.SampleCount, t.rng)

	devLoss := 0.0
	if totalTokens > 0 {
		devLoss = totalLoss / float64(totalTokens)
	}
	return devLoss, accuracy, byBucket, nil
}

func (t *SeqTrainer) save(epoch int) error {
	snap, err := checkpoint.Capture(checkpoint.KindSeqToSeq, epoch, t.ModelConfig,
		t.Model.Parameters(), t.Optimizer, t.SourceEncoder.Vocab(), t.TargetEncoder.Vocab())
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
