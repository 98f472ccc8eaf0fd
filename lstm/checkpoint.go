package lstm

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"charnn/vocab"
)

// checkpoint is the gob layout of a trained model: every gate tensor by
// name, plus the dimensions needed to rebuild them.
type checkpoint struct {
	Hidden  int
	Vocab   int
	Weights map[string][]float64
	History []float64
}

// Save writes the gate weights and loss history to path. The vocabulary is
// not included; callers write it separately (see the charlstm command's YAML
// sidecar).
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating checkpoint %s", path)
	}
	defer f.Close()
	ck := checkpoint{
		Hidden:  m.cfg.HiddenSize,
		Vocab:   m.Vocab.Size(),
		Weights: make(map[string][]float64),
		History: m.history,
	}
	for name, t := range m.p.named() {
		ck.Weights[name] = t.Data().([]float64)
	}
	return errors.Wrapf(gob.NewEncoder(f).Encode(ck), "encoding checkpoint %s", path)
}

// Load rebuilds a model from a checkpoint written by Save. The vocabulary
// must be the one the checkpoint was trained with.
func Load(path string, v *vocab.Vocabulary, cfg Config, logger *logrus.Logger) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening checkpoint %s", path)
	}
	defer f.Close()
	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, errors.Wrapf(err, "decoding checkpoint %s", path)
	}
	if ck.Vocab != v.Size() {
		return nil, errors.Errorf("lstm: checkpoint was trained with %d tokens, vocabulary has %d", ck.Vocab, v.Size())
	}
	cfg.HiddenSize = ck.Hidden
	m := New(v, cfg, logger)
	for name, t := range m.p.named() {
		data, ok := ck.Weights[name]
		if !ok {
			return nil, errors.Errorf("lstm: checkpoint is missing weight %q", name)
		}
		dst := t.Data().([]float64)
		if len(data) != len(dst) {
			return nil, errors.Errorf("lstm: weight %q has %d values, expected %d", name, len(data), len(dst))
		}
		copy(dst, data)
	}
	m.history = ck.History
	return m, nil
}
