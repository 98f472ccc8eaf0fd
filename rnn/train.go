package rnn

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"charnn/dataset"
)

// grads accumulates parameter gradients across a full batch.
type grads struct {
	wxh, whh, why *mat.Dense
	bh, by        *mat.VecDense
}

func (n *Network) newGrads() *grads {
	return &grads{
		wxh: mat.NewDense(n.cfg.HiddenSize, n.in, nil),
		whh: mat.NewDense(n.cfg.HiddenSize, n.cfg.HiddenSize, nil),
		bh:  mat.NewVecDense(n.cfg.HiddenSize, nil),
		why: mat.NewDense(n.out, n.cfg.HiddenSize, nil),
		by:  mat.NewVecDense(n.out, nil),
	}
}

// Fit runs a fixed number of full-batch iterations: zero gradients, forward
// over every sequence, flattened categorical cross-entropy against the
// per-step targets, backpropagation through time, one optimizer step. There
// is no early stopping and no validation split; loss is observed, not gated
// on. It returns the per-epoch loss history.
func (n *Network) Fit(inputs, targets [][]int) ([]float64, error) {
	if err := n.validate(inputs, targets); err != nil {
		return nil, err
	}
	steps := 0
	for _, s := range inputs {
		steps += len(s)
	}
	for epoch := 1; epoch <= n.cfg.Epochs; epoch++ {
		g := n.newGrads()
		loss := 0.0
		for i := range inputs {
			loss += n.bptt(inputs[i], targets[i], g)
		}
		loss /= float64(steps)
		if !finite(loss) {
			return n.history, errors.Wrapf(ErrDiverged, "epoch %d", epoch)
		}
		n.scaleAndClip(g, 1/float64(steps))
		n.applyStep(g)
		n.history = append(n.history, loss)
		if epoch%n.cfg.ReportEvery == 0 || epoch == n.cfg.Epochs {
			n.log.WithFields(logrus.Fields{
				"epoch": epoch,
				"loss":  loss,
			}).Info("training progress")
		}
	}
	return n.history, nil
}

func (n *Network) validate(inputs, targets [][]int) error {
	if len(inputs) == 0 {
		return errors.Wrap(dataset.ErrShape, "no training sequences")
	}
	if len(inputs) != len(targets) {
		return errors.Wrapf(dataset.ErrShape, "%d input sequences but %d target sequences", len(inputs), len(targets))
	}
	for i := range inputs {
		if len(inputs[i]) == 0 || len(inputs[i]) != len(targets[i]) {
			return errors.Wrapf(dataset.ErrShape, "sequence %d: input length %d, target length %d", i, len(inputs[i]), len(targets[i]))
		}
		for _, id := range inputs[i] {
			if id < 0 || id >= n.in {
				return errors.Wrapf(dataset.ErrShape, "input index %d outside [0, %d)", id, n.in)
			}
		}
		for _, id := range targets[i] {
			if id < 0 || id >= n.out {
				return errors.Wrapf(dataset.ErrShape, "target index %d outside [0, %d)", id, n.out)
			}
		}
	}
	return nil
}

// bptt runs the forward pass over one sequence from the zero state, then
// backpropagates through time, accumulating into g. It returns the summed
// cross-entropy of the sequence.
func (n *Network) bptt(xIdx, yIdx []int, g *grads) float64 {
	steps := len(xIdx)
	hs := make([]*mat.VecDense, steps+1)
	hs[0] = mat.NewVecDense(n.cfg.HiddenSize, nil)
	xs := make([]*mat.VecDense, steps)
	ps := make([]*mat.VecDense, steps)

	loss := 0.0
	for t := 0; t < steps; t++ {
		xs[t] = oneHotVec(n.in, xIdx[t])
		hs[t+1] = Step(n.p, xs[t], hs[t])
		ps[t] = softmaxVec(Project(n.p, hs[t+1]))
		loss += -math.Log(ps[t].AtVec(yIdx[t]) + 1e-12)
	}

	dhNext := mat.NewVecDense(n.cfg.HiddenSize, nil)
	for t := steps - 1; t >= 0; t-- {
		// dL/dy for softmax + cross-entropy is p - onehot(target)
		dy := mat.VecDenseCopyOf(ps[t])
		dy.SetVec(yIdx[t], dy.AtVec(yIdx[t])-1)

		g.why.RankOne(g.why, 1, dy, hs[t+1])
		g.by.AddVec(g.by, dy)

		dh := mat.NewVecDense(n.cfg.HiddenSize, nil)
		dh.MulVec(n.p.Why.T(), dy)
		dh.AddVec(dh, dhNext)

		// through tanh: da = (1 - h^2) * dh
		da := mat.NewVecDense(n.cfg.HiddenSize, nil)
		for i := 0; i < da.Len(); i++ {
			h := hs[t+1].AtVec(i)
			da.SetVec(i, (1-h*h)*dh.AtVec(i))
		}

		g.bh.AddVec(g.bh, da)
		g.wxh.RankOne(g.wxh, 1, da, xs[t])
		g.whh.RankOne(g.whh, 1, da, hs[t])
		dhNext.MulVec(n.p.Whh.T(), da)
	}
	return loss
}

func (n *Network) flatParams() [][]float64 {
	return [][]float64{
		n.p.Wxh.RawMatrix().Data,
		n.p.Whh.RawMatrix().Data,
		n.p.Bh.RawVector().Data,
		n.p.Why.RawMatrix().Data,
		n.p.By.RawVector().Data,
	}
}

func (g *grads) flat() [][]float64 {
	return [][]float64{
		g.wxh.RawMatrix().Data,
		g.whh.RawMatrix().Data,
		g.bh.RawVector().Data,
		g.why.RawMatrix().Data,
		g.by.RawVector().Data,
	}
}

func (n *Network) scaleAndClip(g *grads, scale float64) {
	clip := n.cfg.GradClip
	for _, s := range g.flat() {
		for i := range s {
			s[i] *= scale
			if clip > 0 {
				if s[i] > clip {
					s[i] = clip
				} else if s[i] < -clip {
					s[i] = -clip
				}
			}
		}
	}
}

func (n *Network) applyStep(g *grads) {
	if n.opt != nil {
		n.opt.step(n.flatParams(), g.flat(), n.cfg.LearningRate)
		return
	}
	params := n.flatParams()
	for k, gs := range g.flat() {
		for i := range gs {
			params[k][i] -= n.cfg.LearningRate * gs[i]
		}
	}
}
