// Package checkpoint saves and restores training snapshots: model weights,
// optimizer state and the encoder vocabularies, one immutable file per epoch.
package checkpoint

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/dkhr/goseq/nn"
	"github.com/dkhr/goseq/optim"
)

// Model kinds stored in a snapshot.
const (
	KindSeqToLabel = "seq_to_label"
	KindSeqToSeq   = "seq_to_seq"
)

// ParamData is one flattened parameter matrix.
type ParamData struct {
	Rows, Cols int
	Data       []float64
}

// OptimState is the Adam state needed to resume training.
type OptimState struct {
	Step int
	LR   float64
	M    [][]float64
	V    [][]float64
}

// Snapshot is everything needed to resume training: model configuration and
// weights, optimizer moments, and the vocabularies the encoders were built
// from. Snapshots are immutable once written.
type Snapshot struct {
	Kind        string
	Epoch       int
	Model       nn.ModelConfig
	Params      map[string]ParamData
	Optim       OptimState
	SourceVocab []string
	TargetVocab []string
}

// Capture builds a snapshot from live training state.
func Capture(kind string, epoch int, cfg nn.ModelConfig, params []*nn.Parameter,
	opt *optim.Optimizer, sourceVocab, targetVocab []string) (*Snapshot, error) {
	snap := &Snapshot{
		Kind:        kind,
		Epoch:       epoch,
		Model:       cfg,
		Params:      make(map[string]ParamData, len(params)),
		SourceVocab: sourceVocab,
		TargetVocab: targetVocab,
	}
	for _, p := range params {
		if _, ok := snap.Params[p.Name]; ok {
			return nil, errors.Errorf("checkpoint: duplicate parameter name %q", p.Name)
		}
		r, c := p.Value.Dims()
		data := make([]float64, r*c)
		copy(data, p.Value.RawMatrix().Data)
		snap.Params[p.Name] = ParamData{Rows: r, Cols: c, Data: data}
	}

	step, m, v := opt.Inner.State()
	snap.Optim = OptimState{Step: step, LR: opt.Inner.LR}
	snap.Optim.M = make([][]float64, len(m))
	snap.Optim.V = make([][]float64, len(v))
	for i := range m {
		snap.Optim.M[i] = append([]float64{}, m[i]...)
		snap.Optim.V[i] = append([]float64{}, v[i]...)
	}
	return snap, nil
}

// Apply copies snapshot weights into the given parameters, matching by name.
func (s *Snapshot) Apply(params []*nn.Parameter) error {
	for _, p := range params {
		saved, ok := s.Params[p.Name]
		if !ok {
			return errors.Errorf("checkpoint: no saved weights for parameter %q", p.Name)
		}
		r, c := p.Value.Dims()
		if saved.Rows != r || saved.Cols != c {
			return errors.Errorf("checkpoint: parameter %q is [%d, %d], snapshot has [%d, %d]",
				p.Name, r, c, saved.Rows, saved.Cols)
		}
		copy(p.Value.RawMatrix().Data, saved.Data)
	}
	return nil
}

// RestoreOptimizer reinstalls the saved Adam state and learning rate.
func (s *Snapshot) RestoreOptimizer(opt *optim.Optimizer) {
	m := make([][]float64, len(s.Optim.M))
	v := make([][]float64, len(s.Optim.V))
	for i := range s.Optim.M {
		m[i] = append([]float64{}, s.Optim.M[i]...)
		v[i] = append([]float64{}, s.Optim.V[i]...)
	}
	opt.Inner.RestoreState(s.Optim.Step, m, v)
	opt.Inner.SetLR(s.Optim.LR)
}

// Save writes the snapshot to dir as epoch_<n>.ckpt and returns the path.
func Save(dir string, snap *Snapshot) (_ string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "checkpoint dir")
	}
	path := filepath.Join(dir, epochFileName(snap.Epoch))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create checkpoint")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		return "", errors.Wrapf(err, "encode checkpoint %q", path)
	}
	return path, nil
}

// Load reads a snapshot written by Save.
func Load(path string) (_ *Snapshot, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %q", path)
	}
	return &snap, nil
}

// NewExperimentDir creates a timestamped run directory under parent and
// returns its path.
func NewExperimentDir(parent, label string) (string, error) {
	name := label + time.Now().Format("_01m_02d_15h_04m_05s")
	path := filepath.Join(parent, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", errors.Wrap(err, "experiment dir")
	}
	return path, nil
}

func epochFileName(epoch int) string {
	return "epoch_" + strconv.Itoa(epoch) + ".ckpt"
}
