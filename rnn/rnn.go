// Package rnn implements a single-layer vanilla recurrent network for
// next-character prediction: a tanh cell step and a linear projection,
// composed by a training/sampling driver. The cell and projection are plain
// functions over explicit parameter matrices rather than methods on a layer
// registry, so the data flow reads top to bottom.
package rnn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"charnn/dataset"
)

// ErrDiverged is returned when the training loss becomes non-finite.
var ErrDiverged = errors.New("rnn: loss diverged to a non-finite value")

// Config holds the network architecture and training hyperparameters.
type Config struct {
	HiddenSize   int     // width of the recurrent state
	Epochs       int     // fixed number of full passes over the batch
	LearningRate float64 // fixed step size
	Optimizer    string  // "sgd" or "adam"
	GradClip     float64 // per-element gradient clip, 0 disables
	ReportEvery  int     // log loss every N epochs
	Seed         int64   // seed for parameter initialization
}

// DefaultConfig mirrors the walkthrough's toy-corpus settings.
func DefaultConfig() Config {
	return Config{
		HiddenSize:   12,
		Epochs:       100,
		LearningRate: 0.01,
		Optimizer:    "adam",
		GradClip:     5.0,
		ReportEvery:  10,
		Seed:         1,
	}
}

// Params are the weight matrices and bias vectors of one predictor instance.
// They are mutated only by the optimization step.
type Params struct {
	Wxh *mat.Dense    // input to hidden, (hidden x in)
	Whh *mat.Dense    // hidden to hidden, (hidden x hidden)
	Bh  *mat.VecDense // hidden bias, (hidden)
	Why *mat.Dense    // hidden to output, (out x hidden)
	By  *mat.VecDense // output bias, (out)
}

// Network owns one set of parameters and training state. Instances are not
// safe for concurrent use; callers wanting parallel sessions construct
// independent networks.
type Network struct {
	cfg     Config
	in, out int
	p       *Params
	opt     *adamState
	log     *logrus.Logger
	history []float64
}

// New creates a network with Xavier-initialized weights drawn from a
// generator seeded by cfg.Seed, so repeated constructions are reproducible
// without touching process-global random state.
func New(cfg Config, inSize, outSize int, logger *logrus.Logger) *Network {
	if logger == nil {
		logger = logrus.New()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{
		cfg: cfg,
		in:  inSize,
		out: outSize,
		p: &Params{
			Wxh: randDense(cfg.HiddenSize, inSize, rng),
			Whh: randDense(cfg.HiddenSize, cfg.HiddenSize, rng),
			Bh:  mat.NewVecDense(cfg.HiddenSize, nil),
			Why: randDense(outSize, cfg.HiddenSize, rng),
			By:  mat.NewVecDense(outSize, nil),
		},
		log: logger,
	}
	if cfg.Optimizer == "adam" {
		n.opt = newAdamState(n.flatParams())
	}
	return n
}

func randDense(rows, cols int, rng *rand.Rand) *mat.Dense {
	scale := math.Sqrt(2.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data)
}

// InputSize returns the expected one-hot width of inputs.
func (n *Network) InputSize() int { return n.in }

// OutputSize returns the width of the score vectors.
func (n *Network) OutputSize() int { return n.out }

// Params exposes the parameter set, mainly for checkpointing and tests.
func (n *Network) Params() *Params { return n.p }

// History returns the per-epoch training loss recorded by Fit.
func (n *Network) History() []float64 { return n.history }

// Step computes one tick of the recurrence:
// h' = tanh(Wxh*x + Whh*hPrev + bh). It never mutates its arguments.
func Step(p *Params, x, hPrev *mat.VecDense) *mat.VecDense {
	h := mat.NewVecDense(p.Bh.Len(), nil)
	h.MulVec(p.Wxh, x)
	rec := mat.NewVecDense(p.Bh.Len(), nil)
	rec.MulVec(p.Whh, hPrev)
	h.AddVec(h, rec)
	h.AddVec(h, p.Bh)
	for i := 0; i < h.Len(); i++ {
		h.SetVec(i, math.Tanh(h.AtVec(i)))
	}
	return h
}

// Project maps a recurrent state to raw pre-softmax scores:
// y = Why*h + by.
func Project(p *Params, h *mat.VecDense) *mat.VecDense {
	y := mat.NewVecDense(p.By.Len(), nil)
	y.MulVec(p.Why, h)
	y.AddVec(y, p.By)
	return y
}

// Forward runs the recurrence over a (batch, time, vocab) one-hot tensor
// starting from the all-zero state. It returns a (batch, time, out) tensor of
// raw score vectors and the final recurrent state of each batch element, one
// per row. Given identical parameters the output is bit-for-bit reproducible.
func (n *Network) Forward(input *tensor.Dense) (*tensor.Dense, *mat.Dense, error) {
	shp := input.Shape()
	if len(shp) != 3 {
		return nil, nil, errors.Wrapf(dataset.ErrShape, "input has %d axes, want 3", len(shp))
	}
	if shp[2] != n.in {
		return nil, nil, errors.Wrapf(dataset.ErrShape, "input vocab axis is %d, network expects %d", shp[2], n.in)
	}
	data, ok := input.Data().([]float64)
	if !ok {
		return nil, nil, errors.Wrap(dataset.ErrShape, "input tensor is not float64")
	}
	batch, steps := shp[0], shp[1]
	outData := make([]float64, batch*steps*n.out)
	finals := mat.NewDense(batch, n.cfg.HiddenSize, nil)
	for b := 0; b < batch; b++ {
		h := mat.NewVecDense(n.cfg.HiddenSize, nil)
		for t := 0; t < steps; t++ {
			x := mat.NewVecDense(n.in, data[(b*steps+t)*n.in:(b*steps+t+1)*n.in])
			h = Step(n.p, x, h)
			y := Project(n.p, h)
			copy(outData[(b*steps+t)*n.out:(b*steps+t+1)*n.out], y.RawVector().Data)
		}
		finals.SetRow(b, h.RawVector().Data)
	}
	logits := tensor.New(tensor.WithShape(batch, steps, n.out), tensor.WithBacking(outData))
	return logits, finals, nil
}

// GreedySeq runs the recurrence over an index sequence from the zero state
// and returns the most probable output index at every step. This is the
// sequence-labeling decode used by the part-of-speech tagger.
func (n *Network) GreedySeq(ids []int) ([]int, error) {
	h := mat.NewVecDense(n.cfg.HiddenSize, nil)
	out := make([]int, len(ids))
	for i, id := range ids {
		if id < 0 || id >= n.in {
			return nil, errors.Wrapf(dataset.ErrShape, "input index %d outside [0, %d)", id, n.in)
		}
		h = Step(n.p, oneHotVec(n.in, id), h)
		out[i] = argmax(softmaxVec(Project(n.p, h)))
	}
	return out, nil
}

// logitsLast runs the recurrence over an index sequence from the zero state
// and returns the score vector of the final step.
func (n *Network) logitsLast(ids []int) *mat.VecDense {
	h := mat.NewVecDense(n.cfg.HiddenSize, nil)
	for _, id := range ids {
		h = Step(n.p, oneHotVec(n.in, id), h)
	}
	return Project(n.p, h)
}

func oneHotVec(size, id int) *mat.VecDense {
	v := mat.NewVecDense(size, nil)
	v.SetVec(id, 1)
	return v
}

// softmaxVec is a numerically stable softmax over a score vector.
func softmaxVec(y *mat.VecDense) *mat.VecDense {
	max := y.AtVec(0)
	for i := 1; i < y.Len(); i++ {
		if y.AtVec(i) > max {
			max = y.AtVec(i)
		}
	}
	out := mat.NewVecDense(y.Len(), nil)
	sum := 0.0
	for i := 0; i < y.Len(); i++ {
		e := math.Exp(y.AtVec(i) - max)
		out.SetVec(i, e)
		sum += e
	}
	out.ScaleVec(1/sum, out)
	return out
}

// argmax returns the index of the highest probability: pure greedy decoding.
func argmax(p *mat.VecDense) int {
	best := 0
	for i := 1; i < p.Len(); i++ {
		if p.AtVec(i) > p.AtVec(best) {
			best = i
		}
	}
	return best
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
