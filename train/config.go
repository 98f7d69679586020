// Package train drives epoch-based training for sequence models: bucketed
// batching, gradient accumulation, dev-set evaluation and per-epoch
// checkpointing.
package train

import (
	"math/rand"

	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/optim"
)

// TrainConfig holds training hyperparameters.
type TrainConfig struct {
	Epochs         int
	TrainBatchSize int
	DevBatchSize   int
	LR             float64
	WeightDecay    float64
	MaxGradNorm    float64
	Patience       int     // epochs without dev-loss improvement before decay
	DecayFactor    float64 // multiplied into the learning rate on plateau
	Seed           int64
	SampleCount    int // dev predictions logged per epoch
	MaxDecodeLen   int // generation cap for sequence-to-sequence models
}

// DefaultTrainConfig returns the driver defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:         10,
		TrainBatchSize: 16,
		DevBatchSize:   128,
		LR:             0.001,
		MaxGradNorm:    1.0,
		Patience:       1,
		DecayFactor:    0.5,
		Seed:           123,
		SampleCount:    5,
		MaxDecodeLen:   24,
	}
}

// NewOptimizer builds the training optimizer from the config: Adam with the
// configured learning rate and weight decay, wrapped with gradient clipping
// and plateau decay.
func NewOptimizer(params []*nn.Parameter, cfg TrainConfig) *optim.Optimizer {
	adam := optim.NewAdam(params, cfg.LR)
	adam.WeightDecay = cfg.WeightDecay
	opt := optim.NewOptimizer(adam)
	opt.MaxGradNorm = cfg.MaxGradNorm
	opt.Patience = cfg.Patience
	opt.DecayFactor = cfg.DecayFactor
	return opt
}

// Seed returns a deterministic source of randomness for a training run.
func Seed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
