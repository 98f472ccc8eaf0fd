package lstm

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"charnn/dataset"
)

// stepMachine is a single-tick graph used for generation: one (1 x vocab)
// input, carried (1 x hidden) state and memory, score vector out. The weight
// nodes are bound to the model's tensors, so it always sees the latest
// trained values.
type stepMachine struct {
	g              *gorgonia.ExprGraph
	x, h, c        *gorgonia.Node
	logits, h1, c1 gorgonia.Value
	vm             gorgonia.VM
	ticks          int
}

func (m *Model) stepGraph() *stepMachine {
	if m.sampler != nil {
		return m.sampler
	}
	g := gorgonia.NewGraph()
	b, _ := m.bind(g)
	sm := &stepMachine{g: g}
	sm.x = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithName("x"), gorgonia.WithShape(1, m.Vocab.Size()))
	sm.h = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithName("h"), gorgonia.WithShape(1, m.cfg.HiddenSize))
	sm.c = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithName("c"), gorgonia.WithShape(1, m.cfg.HiddenSize))

	hNew, cNew := cell(b, sm.x, sm.h, sm.c)
	logits := decode(b, hNew)
	gorgonia.Read(logits, &sm.logits)
	gorgonia.Read(hNew, &sm.h1)
	gorgonia.Read(cNew, &sm.c1)

	sm.vm = gorgonia.NewTapeMachine(g)
	m.sampler = sm
	return sm
}

// run advances one tick and returns the score vector plus copies of the new
// state, safe to feed back on the next tick.
func (sm *stepMachine) run(x, h, c *tensor.Dense) ([]float64, *tensor.Dense, *tensor.Dense, error) {
	if err := gorgonia.Let(sm.x, x); err != nil {
		return nil, nil, nil, errors.Wrap(err, "binding input")
	}
	if err := gorgonia.Let(sm.h, h); err != nil {
		return nil, nil, nil, errors.Wrap(err, "binding state")
	}
	if err := gorgonia.Let(sm.c, c); err != nil {
		return nil, nil, nil, errors.Wrap(err, "binding memory")
	}
	sm.vm.Reset()
	if err := sm.vm.RunAll(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "running step")
	}
	sm.ticks++
	logits := cloneData(sm.logits)
	hOut := tensor.New(tensor.WithShape(h.Shape()...), tensor.WithBacking(cloneData(sm.h1)))
	cOut := tensor.New(tensor.WithShape(c.Shape()...), tensor.WithBacking(cloneData(sm.c1)))
	return logits, hOut, cOut, nil
}

func cloneData(v gorgonia.Value) []float64 {
	src := v.Data().([]float64)
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Sample seeds the recurrence with start and greedily appends the most
// probable character until the text reaches length runes. Unlike the vanilla
// predictor, state is carried tick to tick instead of recomputing the whole
// prefix each step; for greedy decoding the two are observably equivalent.
func (m *Model) Sample(start string, length int) (string, error) {
	ids, err := m.Vocab.Encode(start)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.Wrap(dataset.ErrShape, "sample needs at least one seed character")
	}

	sm := m.stepGraph()
	h := zeroTensor(1, m.cfg.HiddenSize)
	c := zeroTensor(1, m.cfg.HiddenSize)
	var logits []float64
	for _, id := range ids {
		logits, h, c, err = sm.run(m.oneHot(id), h, c)
		if err != nil {
			return "", err
		}
	}

	out := []rune(start)
	for len(out) < length {
		next := argmaxFloats(softmaxFloats(logits))
		tok, err := m.Vocab.Token(next)
		if err != nil {
			return "", err
		}
		out = append(out, []rune(tok)...)
		if len(out) >= length {
			break
		}
		logits, h, c, err = sm.run(m.oneHot(next), h, c)
		if err != nil {
			return "", err
		}
	}
	return string(out), nil
}

func (m *Model) oneHot(id int) *tensor.Dense {
	backing := make([]float64, m.Vocab.Size())
	backing[id] = 1
	return tensor.New(tensor.WithShape(1, m.Vocab.Size()), tensor.WithBacking(backing))
}
