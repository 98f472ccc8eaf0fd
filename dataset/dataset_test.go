package dataset

import (
	"errors"
	"testing"

	"charnn/vocab"
)

var toyCorpus = []string{
	"hey how are you",
	"good i am fine",
	"have a nice day",
}

func encodedToyCorpus(t *testing.T) ([][]int, *vocab.Vocabulary) {
	t.Helper()
	v, err := vocab.Build(toyCorpus)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	padded, err := vocab.Pad(toyCorpus, vocab.MaxLen(toyCorpus), ' ')
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	seqs := make([][]int, len(padded))
	for i, s := range padded {
		if seqs[i], err = v.Encode(s); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	return seqs, v
}

func TestPairsShiftByOne(t *testing.T) {
	seqs, _ := encodedToyCorpus(t)
	inputs, targets, err := Pairs(seqs)
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	for b := range inputs {
		if len(inputs[b]) != 14 || len(targets[b]) != 14 {
			t.Fatalf("record %d has lengths (%d, %d), want (14, 14)", b, len(inputs[b]), len(targets[b]))
		}
		for i := 0; i < len(inputs[b])-1; i++ {
			if targets[b][i] != inputs[b][i+1] {
				t.Fatalf("record %d: target[%d] = %d, input[%d] = %d", b, i, targets[b][i], i+1, inputs[b][i+1])
			}
		}
	}
}

func TestPairsRaggedBatch(t *testing.T) {
	if _, _, err := Pairs([][]int{{0, 1, 2}, {0, 1}}); !errors.Is(err, ErrShape) {
		t.Fatalf("ragged Pairs error = %v, want ErrShape", err)
	}
}

func TestOneHotToyCorpusShape(t *testing.T) {
	seqs, v := encodedToyCorpus(t)
	inputs, _, err := Pairs(seqs)
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	feat, err := OneHot(inputs, v.Size())
	if err != nil {
		t.Fatalf("OneHot: %v", err)
	}
	shp := feat.Shape()
	if shp[0] != 3 || shp[1] != 14 || shp[2] != 17 {
		t.Fatalf("feature tensor shape = %v, want (3, 14, 17)", shp)
	}
}

func TestOneHotInvariant(t *testing.T) {
	seqs, v := encodedToyCorpus(t)
	feat, err := OneHot(seqs, v.Size())
	if err != nil {
		t.Fatalf("OneHot: %v", err)
	}
	data := feat.Data().([]float64)
	shp := feat.Shape()
	for b := 0; b < shp[0]; b++ {
		for ts := 0; ts < shp[1]; ts++ {
			ones, off := 0, (b*shp[1]+ts)*shp[2]
			for k := 0; k < shp[2]; k++ {
				switch data[off+k] {
				case 1:
					ones++
				case 0:
				default:
					t.Fatalf("slice (%d, %d) holds %v, want only 0 or 1", b, ts, data[off+k])
				}
			}
			if ones != 1 {
				t.Fatalf("slice (%d, %d) has %d ones, want exactly 1", b, ts, ones)
			}
		}
	}
}

func TestOneHotOutOfRangeIndex(t *testing.T) {
	if _, err := OneHot([][]int{{0, 5}}, 5); !errors.Is(err, ErrShape) {
		t.Fatalf("out-of-range OneHot error = %v, want ErrShape", err)
	}
	if _, err := OneHot([][]int{{-1}}, 5); !errors.Is(err, ErrShape) {
		t.Fatalf("negative-index OneHot error = %v, want ErrShape", err)
	}
}

func TestStepMatrices(t *testing.T) {
	seqs, v := encodedToyCorpus(t)
	steps, err := StepMatrices(seqs, v.Size())
	if err != nil {
		t.Fatalf("StepMatrices: %v", err)
	}
	if len(steps) != 15 {
		t.Fatalf("got %d step matrices, want 15", len(steps))
	}
	for ts, m := range steps {
		shp := m.Shape()
		if shp[0] != 3 || shp[1] != 17 {
			t.Fatalf("step %d shape = %v, want (3, 17)", ts, shp)
		}
		data := m.Data().([]float64)
		for b := 0; b < 3; b++ {
			if data[b*17+seqs[b][ts]] != 1 {
				t.Fatalf("step %d row %d: expected one at column %d", ts, b, seqs[b][ts])
			}
		}
	}
}
