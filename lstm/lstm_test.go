package lstm

import (
	"errors"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"charnn/vocab"
)

var toyCorpus = []string{
	"hey how are you",
	"good i am fine",
	"have a nice day",
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func toyVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.Build(toyCorpus)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return v
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.HiddenSize = 16
	cfg.Epochs = 50
	return cfg
}

func TestNewParameterShapes(t *testing.T) {
	v := toyVocab(t)
	cfg := smallConfig()
	m := New(v, cfg, quietLogger())

	wantRows := map[string]int{
		"wix": v.Size(), "wfx": v.Size(), "wox": v.Size(), "wcx": v.Size(),
		"wih": cfg.HiddenSize, "wfh": cfg.HiddenSize, "woh": cfg.HiddenSize, "wch": cfg.HiddenSize,
		"bi": 1, "bf": 1, "bo": 1, "bc": 1,
		"why": cfg.HiddenSize, "by": 1,
	}
	wantCols := map[string]int{
		"wix": cfg.HiddenSize, "wfx": cfg.HiddenSize, "wox": cfg.HiddenSize, "wcx": cfg.HiddenSize,
		"wih": cfg.HiddenSize, "wfh": cfg.HiddenSize, "woh": cfg.HiddenSize, "wch": cfg.HiddenSize,
		"bi": cfg.HiddenSize, "bf": cfg.HiddenSize, "bo": cfg.HiddenSize, "bc": cfg.HiddenSize,
		"why": v.Size(), "by": v.Size(),
	}
	for name, w := range m.p.named() {
		shp := w.Shape()
		if shp[0] != wantRows[name] || shp[1] != wantCols[name] {
			t.Fatalf("weight %q has shape %v, want (%d, %d)", name, shp, wantRows[name], wantCols[name])
		}
	}
}

func TestNewDeterministicInit(t *testing.T) {
	v := toyVocab(t)
	a := New(v, smallConfig(), quietLogger())
	b := New(v, smallConfig(), quietLogger())
	for name, wa := range a.p.named() {
		da := wa.Data().([]float64)
		db := b.p.named()[name].Data().([]float64)
		for i := range da {
			if da[i] != db[i] {
				t.Fatalf("weight %q differs at %d across identically seeded models", name, i)
			}
		}
	}
}

func TestFitLossDecreases(t *testing.T) {
	v := toyVocab(t)
	padded, err := vocab.Pad(toyCorpus, vocab.MaxLen(toyCorpus), ' ')
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	m := New(v, smallConfig(), quietLogger())
	hist, err := m.Fit(padded)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(hist) != smallConfig().Epochs {
		t.Fatalf("history length %d, want %d", len(hist), smallConfig().Epochs)
	}
	if hist[len(hist)-1] >= hist[0] {
		t.Fatalf("final loss %v did not drop below initial loss %v", hist[len(hist)-1], hist[0])
	}
}

func TestOverfitToyCorpus(t *testing.T) {
	v := toyVocab(t)
	padded, err := vocab.Pad(toyCorpus, vocab.MaxLen(toyCorpus), ' ')
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	cfg := DefaultConfig()
	cfg.HiddenSize = 32
	cfg.Epochs = 500
	m := New(v, cfg, quietLogger())
	hist, err := m.Fit(padded)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if hist[len(hist)-1] >= hist[0]/2 {
		t.Fatalf("final loss %v is not well below initial loss %v", hist[len(hist)-1], hist[0])
	}
	got, err := m.Sample("good", 15)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got != "good i am fine " {
		t.Fatalf("Sample(\"good\", 15) = %q, want %q", got, "good i am fine ")
	}
}

func TestFitRejectsUnknownCharacters(t *testing.T) {
	m := New(toyVocab(t), smallConfig(), quietLogger())
	if _, err := m.Fit([]string{"zzz"}); !errors.Is(err, vocab.ErrNotInVocab) {
		t.Fatalf("Fit on out-of-vocabulary text error = %v, want ErrNotInVocab", err)
	}
}

func TestSample(t *testing.T) {
	v := toyVocab(t)
	padded, err := vocab.Pad(toyCorpus, vocab.MaxLen(toyCorpus), ' ')
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	m := New(v, smallConfig(), quietLogger())
	if _, err := m.Fit(padded); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	got, err := m.Sample("good", 15)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if utf8.RuneCountInString(got) != 15 {
		t.Fatalf("Sample returned %d runes, want 15", utf8.RuneCountInString(got))
	}
	if got[:4] != "good" {
		t.Fatalf("Sample dropped the seed text: %q", got)
	}
	if _, err := v.Encode(got); err != nil {
		t.Fatalf("Sample emitted characters outside the vocabulary: %q (%v)", got, err)
	}

	again, err := m.Sample("good", 15)
	if err != nil {
		t.Fatalf("Sample again: %v", err)
	}
	if again != got {
		t.Fatalf("greedy sampling is not repeatable: %q then %q", got, again)
	}
}

func TestSampleTickCount(t *testing.T) {
	m := New(toyVocab(t), smallConfig(), quietLogger())
	if _, err := m.Sample("good", 6); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	// Four ticks feed the seed, one more scores the fifth character; the
	// sixth is appended without scoring anything after it.
	if m.sampler.ticks != 5 {
		t.Fatalf("sampling ran %d ticks, want 5", m.sampler.ticks)
	}
}

func TestSampleUnknownSeed(t *testing.T) {
	m := New(toyVocab(t), smallConfig(), quietLogger())
	if _, err := m.Sample("qx", 10); !errors.Is(err, vocab.ErrNotInVocab) {
		t.Fatalf("Sample from unknown seed error = %v, want ErrNotInVocab", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	v := toyVocab(t)
	m := New(v, smallConfig(), quietLogger())
	m.history = []float64{2.5, 1.25}

	path := filepath.Join(t.TempDir(), "model.gob")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, v, smallConfig(), quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for name, w := range m.p.named() {
		want := w.Data().([]float64)
		have := loaded.p.named()[name].Data().([]float64)
		for i := range want {
			if want[i] != have[i] {
				t.Fatalf("weight %q differs at %d after round trip", name, i)
			}
		}
	}
	if len(loaded.History()) != 2 || loaded.History()[1] != 1.25 {
		t.Fatalf("restored history %v, want [2.5 1.25]", loaded.History())
	}
}

func TestLoadVocabularyMismatch(t *testing.T) {
	v := toyVocab(t)
	m := New(v, smallConfig(), quietLogger())
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	other, err := vocab.Build([]string{"ab"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := Load(path, other, smallConfig(), quietLogger()); err == nil {
		t.Fatal("Load with a mismatched vocabulary should fail")
	}
}
