// Package lstm implements a single-layer gated recurrent predictor for
// next-character modeling on top of gorgonia. The gate arithmetic follows
// the standard formulation: sigmoid input/forget/output gates, a tanh
// candidate write, memory' = forget⊙memory + input⊙candidate, and
// state' = output⊙tanh(memory').
package lstm

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"charnn/dataset"
	"charnn/vocab"
)

// ErrDiverged is returned when the training loss becomes non-finite.
var ErrDiverged = errors.New("lstm: loss diverged to a non-finite value")

// Config holds the architecture and training hyperparameters.
type Config struct {
	HiddenSize   int
	Epochs       int
	LearningRate float64
	ReportEvery  int
	Seed         int64
}

// DefaultConfig suits small corpora; larger texts want a wider state.
func DefaultConfig() Config {
	return Config{
		HiddenSize:   64,
		Epochs:       100,
		LearningRate: 0.01,
		ReportEvery:  10,
		Seed:         1,
	}
}

// params are the gate weights, stored as tensors owned by the model. Graph
// nodes are bound to these tensors by value, so the training graph and the
// sampling graph share one set of storage and solver updates are visible to
// both.
type params struct {
	wix, wih, bi *tensor.Dense // input gate
	wfx, wfh, bf *tensor.Dense // forget gate
	wox, woh, bo *tensor.Dense // output gate
	wcx, wch, bc *tensor.Dense // candidate write
	why, by      *tensor.Dense // decoder to vocabulary scores
}

func (p *params) named() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		"wix": p.wix, "wih": p.wih, "bi": p.bi,
		"wfx": p.wfx, "wfh": p.wfh, "bf": p.bf,
		"wox": p.wox, "woh": p.woh, "bo": p.bo,
		"wcx": p.wcx, "wch": p.wch, "bc": p.bc,
		"why": p.why, "by": p.by,
	}
}

// Model owns one parameter set, a vocabulary, and training state. Not safe
// for concurrent use.
type Model struct {
	Vocab   *vocab.Vocabulary
	cfg     Config
	p       *params
	log     *logrus.Logger
	history []float64
	sampler *stepMachine
}

// New creates a model with small gaussian weights drawn from a source seeded
// by cfg.Seed.
func New(v *vocab.Vocabulary, cfg Config, logger *logrus.Logger) *Model {
	if logger == nil {
		logger = logrus.New()
	}
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 0.08,
		Src:   exprand.NewSource(uint64(cfg.Seed)),
	}
	in, hid := v.Size(), cfg.HiddenSize
	return &Model{
		Vocab: v,
		cfg:   cfg,
		log:   logger,
		p: &params{
			wix: randTensor(in, hid, dist), wih: randTensor(hid, hid, dist), bi: zeroTensor(1, hid),
			wfx: randTensor(in, hid, dist), wfh: randTensor(hid, hid, dist), bf: zeroTensor(1, hid),
			wox: randTensor(in, hid, dist), woh: randTensor(hid, hid, dist), bo: zeroTensor(1, hid),
			wcx: randTensor(in, hid, dist), wch: randTensor(hid, hid, dist), bc: zeroTensor(1, hid),
			why: randTensor(hid, in, dist), by: zeroTensor(1, in),
		},
	}
}

func randTensor(rows, cols int, dist distuv.Normal) *tensor.Dense {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = dist.Rand()
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func zeroTensor(rows, cols int) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(make([]float64, rows*cols)))
}

// History returns the per-epoch training loss recorded by Fit.
func (m *Model) History() []float64 { return m.history }

// boundNodes binds every parameter tensor into g and returns the node set
// plus the learnables in a stable order.
type boundNodes struct {
	wix, wih, bi *gorgonia.Node
	wfx, wfh, bf *gorgonia.Node
	wox, woh, bo *gorgonia.Node
	wcx, wch, bc *gorgonia.Node
	why, by      *gorgonia.Node
}

func (m *Model) bind(g *gorgonia.ExprGraph) (*boundNodes, gorgonia.Nodes) {
	node := func(name string, t *tensor.Dense) *gorgonia.Node {
		return gorgonia.NodeFromAny(g, t, gorgonia.WithName(name))
	}
	b := &boundNodes{
		wix: node("wix", m.p.wix), wih: node("wih", m.p.wih), bi: node("bi", m.p.bi),
		wfx: node("wfx", m.p.wfx), wfh: node("wfh", m.p.wfh), bf: node("bf", m.p.bf),
		wox: node("wox", m.p.wox), woh: node("woh", m.p.woh), bo: node("bo", m.p.bo),
		wcx: node("wcx", m.p.wcx), wch: node("wch", m.p.wch), bc: node("bc", m.p.bc),
		why: node("why", m.p.why), by: node("by", m.p.by),
	}
	learnables := gorgonia.Nodes{
		b.wix, b.wih, b.bi,
		b.wfx, b.wfh, b.bf,
		b.wox, b.woh, b.bo,
		b.wcx, b.wch, b.bc,
		b.why, b.by,
	}
	return b, learnables
}

// gate computes act(x*wx + h*wh + b) with the bias broadcast across rows.
func gate(x, h, wx, wh, b *gorgonia.Node, act func(*gorgonia.Node) (*gorgonia.Node, error)) *gorgonia.Node {
	xw := gorgonia.Must(gorgonia.Mul(x, wx))
	hw := gorgonia.Must(gorgonia.Mul(h, wh))
	sum := gorgonia.Must(gorgonia.Add(xw, hw))
	sum = gorgonia.Must(gorgonia.BroadcastAdd(sum, b, nil, []byte{0}))
	return gorgonia.Must(act(sum))
}

// cell advances the recurrence one tick, returning the new hidden state and
// memory for a (rows x vocab) input.
func cell(b *boundNodes, x, hPrev, cPrev *gorgonia.Node) (h, c *gorgonia.Node) {
	inputGate := gate(x, hPrev, b.wix, b.wih, b.bi, gorgonia.Sigmoid)
	forgetGate := gate(x, hPrev, b.wfx, b.wfh, b.bf, gorgonia.Sigmoid)
	outputGate := gate(x, hPrev, b.wox, b.woh, b.bo, gorgonia.Sigmoid)
	write := gate(x, hPrev, b.wcx, b.wch, b.bc, gorgonia.Tanh)

	retained := gorgonia.Must(gorgonia.HadamardProd(forgetGate, cPrev))
	written := gorgonia.Must(gorgonia.HadamardProd(inputGate, write))
	c = gorgonia.Must(gorgonia.Add(retained, written))
	h = gorgonia.Must(gorgonia.HadamardProd(outputGate, gorgonia.Must(gorgonia.Tanh(c))))
	return h, c
}

// decode maps hidden states to vocabulary scores.
func decode(b *boundNodes, h *gorgonia.Node) *gorgonia.Node {
	hw := gorgonia.Must(gorgonia.Mul(h, b.why))
	return gorgonia.Must(gorgonia.BroadcastAdd(hw, b.by, nil, []byte{0}))
}

// Fit trains on pre-padded, equal-length sentences with teacher forcing:
// the graph is unrolled over the shared sequence length, every epoch runs
// the whole batch, and the loss is the categorical cross-entropy flattened
// across batch and time. Fixed iteration count, no early stopping.
func (m *Model) Fit(sentences []string) ([]float64, error) {
	seqs := make([][]int, len(sentences))
	for i, s := range sentences {
		ids, err := m.Vocab.Encode(s)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding sentence %d", i)
		}
		seqs[i] = ids
	}
	inputs, targets, err := dataset.Pairs(seqs)
	if err != nil {
		return nil, err
	}
	xsT, err := dataset.StepMatrices(inputs, m.Vocab.Size())
	if err != nil {
		return nil, err
	}
	ysT, err := dataset.StepMatrices(targets, m.Vocab.Size())
	if err != nil {
		return nil, err
	}

	batch, steps := len(inputs), len(inputs[0])
	g := gorgonia.NewGraph()
	b, learnables := m.bind(g)

	xs := make([]*gorgonia.Node, steps)
	ys := make([]*gorgonia.Node, steps)
	for t := 0; t < steps; t++ {
		xs[t] = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithName("x_"+strconv.Itoa(t)), gorgonia.WithShape(batch, m.Vocab.Size()))
		ys[t] = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithName("y_"+strconv.Itoa(t)), gorgonia.WithShape(batch, m.Vocab.Size()))
	}

	h := gorgonia.NewConstant(zeroTensor(batch, m.cfg.HiddenSize), gorgonia.WithName("h0"))
	c := gorgonia.NewConstant(zeroTensor(batch, m.cfg.HiddenSize), gorgonia.WithName("c0"))

	var total *gorgonia.Node
	for t := 0; t < steps; t++ {
		h, c = cell(b, xs[t], h, c)
		logits := decode(b, h)
		probs := gorgonia.Must(gorgonia.SoftMax(logits))
		logProbs := gorgonia.Must(gorgonia.Log(probs))
		picked := gorgonia.Must(gorgonia.HadamardProd(ys[t], logProbs))
		perRow := gorgonia.Must(gorgonia.Sum(picked, 1))
		stepLoss := gorgonia.Must(gorgonia.Neg(gorgonia.Must(gorgonia.Mean(perRow))))
		if total == nil {
			total = stepLoss
		} else {
			total = gorgonia.Must(gorgonia.Add(total, stepLoss))
		}
	}
	cost := gorgonia.Must(gorgonia.Mul(total, gorgonia.NewConstant(1.0/float64(steps))))

	var costVal gorgonia.Value
	gorgonia.Read(cost, &costVal)
	if _, err := gorgonia.Grad(cost, learnables...); err != nil {
		return nil, errors.Wrap(err, "building gradient graph")
	}

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learnables...))
	defer vm.Close()
	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(m.cfg.LearningRate))

	for epoch := 1; epoch <= m.cfg.Epochs; epoch++ {
		if epoch > 1 {
			if err := zeroGrads(learnables); err != nil {
				return nil, errors.Wrapf(err, "epoch %d", epoch)
			}
		}
		for t := 0; t < steps; t++ {
			if err := gorgonia.Let(xs[t], xsT[t]); err != nil {
				return nil, errors.Wrapf(err, "binding input step %d", t)
			}
			if err := gorgonia.Let(ys[t], ysT[t]); err != nil {
				return nil, errors.Wrapf(err, "binding target step %d", t)
			}
		}
		vm.Reset()
		if err := vm.RunAll(); err != nil {
			return nil, errors.Wrapf(err, "epoch %d forward/backward", epoch)
		}
		loss := costVal.Data().(float64)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return m.history, errors.Wrapf(ErrDiverged, "epoch %d", epoch)
		}
		if err := solver.Step(gorgonia.NodesToValueGrads(learnables)); err != nil {
			return nil, errors.Wrapf(err, "epoch %d solver step", epoch)
		}
		m.history = append(m.history, loss)
		if epoch%m.cfg.ReportEvery == 0 || epoch == m.cfg.Epochs {
			m.log.WithFields(logrus.Fields{
				"epoch": epoch,
				"loss":  loss,
			}).Info("training progress")
		}
	}
	return m.history, nil
}

// zeroGrads clears the gradient storage bound to each learnable. The tape
// machine accumulates into the dual values across runs, so gradients from the
// previous pass must be dropped before the next one.
func zeroGrads(learnables gorgonia.Nodes) error {
	for _, n := range learnables {
		grad, err := n.Grad()
		if err != nil {
			return errors.Wrapf(err, "reading gradient of %s", n.Name())
		}
		data, ok := grad.Data().([]float64)
		if !ok {
			return errors.Errorf("lstm: gradient of %s is not float64", n.Name())
		}
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}
