// Package dataset derives next-character training records from index
// sequences and encodes them as one-hot feature tensors.
package dataset

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShape is returned when tensor dimensions are inconsistent with the
// declared vocabulary size, sequence length, or batch size.
var ErrShape = errors.New("dataset: shape mismatch")

// Pairs builds teacher-forced (input, target) records from equal-length index
// sequences by shifting each sequence one position: target[i] = input[i+1].
// Each record is one character shorter than its source sequence.
func Pairs(seqs [][]int) (inputs, targets [][]int, err error) {
	if len(seqs) == 0 {
		return nil, nil, errors.Wrap(ErrShape, "no sequences")
	}
	want := len(seqs[0])
	if want < 2 {
		return nil, nil, errors.Wrapf(ErrShape, "sequences must have at least 2 positions, got %d", want)
	}
	inputs = make([][]int, len(seqs))
	targets = make([][]int, len(seqs))
	for i, s := range seqs {
		if len(s) != want {
			return nil, nil, errors.Wrapf(ErrShape, "sequence %d has length %d, batch uses %d", i, len(s), want)
		}
		inputs[i] = s[:len(s)-1]
		targets[i] = s[1:]
	}
	return inputs, targets, nil
}

// OneHot encodes a batch of equal-length index sequences as a
// (batch, time, vocab) float64 tensor with exactly one 1 per time-step slice.
func OneHot(seqs [][]int, vocabSize int) (*tensor.Dense, error) {
	if len(seqs) == 0 || len(seqs[0]) == 0 {
		return nil, errors.Wrap(ErrShape, "empty batch")
	}
	batch, steps := len(seqs), len(seqs[0])
	backing := make([]float64, batch*steps*vocabSize)
	for b, s := range seqs {
		if len(s) != steps {
			return nil, errors.Wrapf(ErrShape, "sequence %d has length %d, batch uses %d", b, len(s), steps)
		}
		for t, id := range s {
			if id < 0 || id >= vocabSize {
				return nil, errors.Wrapf(ErrShape, "index %d at (%d, %d) outside [0, %d)", id, b, t, vocabSize)
			}
			backing[(b*steps+t)*vocabSize+id] = 1
		}
	}
	return tensor.New(tensor.WithShape(batch, steps, vocabSize), tensor.WithBacking(backing)), nil
}

// StepMatrices encodes the same batch as one (batch, vocab) one-hot matrix
// per time step, the layout an unrolled graph consumes.
func StepMatrices(seqs [][]int, vocabSize int) ([]*tensor.Dense, error) {
	if len(seqs) == 0 || len(seqs[0]) == 0 {
		return nil, errors.Wrap(ErrShape, "empty batch")
	}
	batch, steps := len(seqs), len(seqs[0])
	out := make([]*tensor.Dense, steps)
	for t := 0; t < steps; t++ {
		out[t] = tensor.New(tensor.WithShape(batch, vocabSize), tensor.WithBacking(make([]float64, batch*vocabSize)))
	}
	for b, s := range seqs {
		if len(s) != steps {
			return nil, errors.Wrapf(ErrShape, "sequence %d has length %d, batch uses %d", b, len(s), steps)
		}
		for t, id := range s {
			if id < 0 || id >= vocabSize {
				return nil, errors.Wrapf(ErrShape, "index %d at (%d, %d) outside [0, %d)", id, b, t, vocabSize)
			}
			out[t].Data().([]float64)[b*vocabSize+id] = 1
		}
	}
	return out, nil
}
