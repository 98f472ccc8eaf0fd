package rnn

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// checkpoint is the gob layout of a trained network.
type checkpoint struct {
	In, Out, Hidden int
	Wxh, Whh, Why   []float64
	Bh, By          []float64
	History         []float64
}

// Save writes the parameters and loss history to path.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating checkpoint %s", path)
	}
	defer f.Close()
	ck := checkpoint{
		In:      n.in,
		Out:     n.out,
		Hidden:  n.cfg.HiddenSize,
		Wxh:     n.p.Wxh.RawMatrix().Data,
		Whh:     n.p.Whh.RawMatrix().Data,
		Why:     n.p.Why.RawMatrix().Data,
		Bh:      n.p.Bh.RawVector().Data,
		By:      n.p.By.RawVector().Data,
		History: n.history,
	}
	return errors.Wrapf(gob.NewEncoder(f).Encode(ck), "encoding checkpoint %s", path)
}

// Load rebuilds a network from a checkpoint. The architecture comes from the
// file; training hyperparameters come from cfg, so a loaded network can keep
// training or only sample.
func Load(path string, cfg Config, logger *logrus.Logger) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening checkpoint %s", path)
	}
	defer f.Close()
	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, errors.Wrapf(err, "decoding checkpoint %s", path)
	}
	cfg.HiddenSize = ck.Hidden
	n := New(cfg, ck.In, ck.Out, logger)
	n.p.Wxh = mat.NewDense(ck.Hidden, ck.In, ck.Wxh)
	n.p.Whh = mat.NewDense(ck.Hidden, ck.Hidden, ck.Whh)
	n.p.Why = mat.NewDense(ck.Out, ck.Hidden, ck.Why)
	n.p.Bh = mat.NewVecDense(ck.Hidden, ck.Bh)
	n.p.By = mat.NewVecDense(ck.Out, ck.By)
	n.history = ck.History
	if cfg.Optimizer == "adam" {
		n.opt = newAdamState(n.flatParams())
	}
	return n, nil
}
