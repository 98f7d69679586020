// Package main trains a sequence-to-label model on the count task: predict
// the length of a digit sequence.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/dkhr/goseq/checkpoint"
	"github.com/dkhr/goseq/dataset"
	"github.com/dkhr/goseq/encoders"
	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/train"
)

var logger = golog.NewDevelopmentLogger("seqlabel")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	CheckpointPath string `flag:"checkpoint_path,usage=resume training from this checkpoint"`
	SaveDir        string `flag:"save_dir,default=experiments,usage=parent directory for run checkpoints"`
	Epochs         int    `flag:"epochs,default=10,usage=number of training epochs"`
	BatchSize      int    `flag:"batch_size,default=16,usage=training batch size"`
	Seed           int    `flag:"seed,default=123,usage=random seed"`
	Attention      string `flag:"attention,default=general,usage=attention score type (dot or general)"`
	Cell           string `flag:"cell,default=lstm,usage=recurrent cell (lstm or gru)"`
	Bidirectional  bool   `flag:"bidirectional,default=true,usage=use a bidirectional encoder"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := train.DefaultTrainConfig()
	cfg.Epochs = argsParsed.Epochs
	cfg.TrainBatchSize = argsParsed.BatchSize
	cfg.Seed = int64(argsParsed.Seed)
	rng := train.Seed(cfg.Seed)

	genOpts := dataset.DefaultGenerateOptions()
	genOpts.Seed = cfg.Seed
	splits := dataset.Count(genOpts)

	var (
		snap      *checkpoint.Snapshot
		modelCfg  nn.ModelConfig
		sourceEnc encoders.Encoder
		labelEnc  encoders.Encoder
	)
	if argsParsed.CheckpointPath != "" {
		var err error
		if snap, err = checkpoint.Load(argsParsed.CheckpointPath); err != nil {
			return err
		}
		if snap.Kind != checkpoint.KindSeqToLabel {
			return errors.Errorf("checkpoint holds a %q model, want %q", snap.Kind, checkpoint.KindSeqToLabel)
		}
		modelCfg = snap.Model
		if sourceEnc, err = encoders.WordEncoderFromVocab(snap.SourceVocab); err != nil {
			return err
		}
		if labelEnc, err = encoders.IdentityEncoderFromVocab(snap.TargetVocab); err != nil {
			return err
		}
	} else {
		corpus, err := splits.Train.Column("text")
		if err != nil {
			return err
		}
		if sourceEnc, err = encoders.NewWordEncoder(corpus); err != nil {
			return err
		}
		labels, err := splits.Train.Column("label")
		if err != nil {
			return err
		}
		if labelEnc, err = encoders.NewIdentityEncoder(labels); err != nil {
			return err
		}

		modelCfg = nn.DefaultModelConfig()
		modelCfg.SourceVocabSize = sourceEnc.VocabSize()
		modelCfg.TargetVocabSize = labelEnc.VocabSize()
		modelCfg.Cell = argsParsed.Cell
		modelCfg.AttentionType = nn.AttentionType(argsParsed.Attention)
		modelCfg.Bidirectional = argsParsed.Bidirectional
	}

	model, err := nn.NewSeqToLabel(modelCfg, rng)
	if err != nil {
		return err
	}
	opt := train.NewOptimizer(model.Parameters(), cfg)

	if snap != nil {
		if err := snap.Apply(model.Parameters()); err != nil {
			return err
		}
		snap.RestoreOptimizer(opt)
		logger.Infow("resumed from checkpoint", "path", argsParsed.CheckpointPath, "epoch", snap.Epoch)
	}

	for _, ds := range []*dataset.Dataset{splits.Train, splits.Dev} {
		if err := ds.EncodeColumn("text", sourceEnc); err != nil {
			return err
		}
		if err := ds.EncodeColumn("label", labelEnc); err != nil {
			return err
		}
	}
	trainEx, err := train.LabelExamples(splits.Train, "text", "label")
	if err != nil {
		return err
	}
	devEx, err := train.LabelExamples(splits.Dev, "text", "label")
	if err != nil {
		return err
	}

	trainer := train.NewLabelTrainer(logger, model, modelCfg, opt,
		sourceEnc, labelEnc, trainEx, devEx, cfg)
	if snap != nil {
		trainer.StartEpoch = snap.Epoch
	}
	if argsParsed.SaveDir != "" {
		dir, err := checkpoint.NewExperimentDir(argsParsed.SaveDir, "count")
		if err != nil {
			return err
		}
		trainer.SaveDir = dir
		logger.Infow("saving checkpoints", "dir", dir)
	}

	return trainer.Run(ctx)
}
