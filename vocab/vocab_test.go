package vocab

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

var toyCorpus = []string{
	"hey how are you",
	"good i am fine",
	"have a nice day",
}

func TestBuildRoundTrip(t *testing.T) {
	v, err := Build(toyCorpus)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seen := map[rune]bool{}
	for _, s := range toyCorpus {
		for _, r := range s {
			seen[r] = true
			id, err := v.Index(string(r))
			if err != nil {
				t.Fatalf("Index(%q): %v", r, err)
			}
			tok, err := v.Token(id)
			if err != nil {
				t.Fatalf("Token(%d): %v", id, err)
			}
			if tok != string(r) {
				t.Fatalf("round trip of %q gave %q", r, tok)
			}
		}
	}
	if v.Size() != len(seen) {
		t.Fatalf("Size() = %d, corpus has %d distinct characters", v.Size(), len(seen))
	}
}

func TestBuildToyCorpusSize(t *testing.T) {
	v, err := Build(toyCorpus)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if v.Size() != 17 {
		t.Fatalf("toy corpus must have 17 distinct characters, got %d", v.Size())
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, _ := Build(toyCorpus)
	b, _ := Build(toyCorpus)
	for id := 0; id < a.Size(); id++ {
		ta, _ := a.Token(id)
		tb, _ := b.Token(id)
		if ta != tb {
			t.Fatalf("index %d maps to %q and %q across builds", id, ta, tb)
		}
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("Build(nil) error = %v, want ErrEmptyCorpus", err)
	}
	if _, err := Build([]string{"", ""}); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("Build of blank strings error = %v, want ErrEmptyCorpus", err)
	}
}

func TestEncodeUnknownCharacter(t *testing.T) {
	v, _ := Build(toyCorpus)
	if _, err := v.Encode("xyz"); !errors.Is(err, ErrNotInVocab) {
		t.Fatalf("Encode of unknown characters error = %v, want ErrNotInVocab", err)
	}
}

func TestTokenOutOfRange(t *testing.T) {
	v, _ := Build(toyCorpus)
	if _, err := v.Token(-1); !errors.Is(err, ErrNotInVocab) {
		t.Fatalf("Token(-1) error = %v, want ErrNotInVocab", err)
	}
	if _, err := v.Token(v.Size()); !errors.Is(err, ErrNotInVocab) {
		t.Fatalf("Token(Size) error = %v, want ErrNotInVocab", err)
	}
}

func TestPad(t *testing.T) {
	target := MaxLen(toyCorpus)
	if target != 15 {
		t.Fatalf("MaxLen = %d, want 15", target)
	}
	padded, err := Pad(toyCorpus, target, ' ')
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	for i, s := range padded {
		if len([]rune(s)) != target {
			t.Fatalf("padded string %d has length %d, want %d", i, len([]rune(s)), target)
		}
		if s[:len(toyCorpus[i])] != toyCorpus[i] {
			t.Fatalf("padding changed prefix: %q", s)
		}
	}
}

func TestPadTooLong(t *testing.T) {
	if _, err := Pad([]string{"abcdef"}, 3, ' '); !errors.Is(err, ErrTooLong) {
		t.Fatalf("Pad of oversized string error = %v, want ErrTooLong", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	v, _ := Build(toyCorpus)
	raw, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := &Vocabulary{}
	if err := yaml.Unmarshal(raw, got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Size() != v.Size() {
		t.Fatalf("round-tripped size %d, want %d", got.Size(), v.Size())
	}
	for id := 0; id < v.Size(); id++ {
		want, _ := v.Token(id)
		have, _ := got.Token(id)
		if want != have {
			t.Fatalf("index %d: round-tripped %q, want %q", id, have, want)
		}
	}
}

func TestBuildWords(t *testing.T) {
	v, err := BuildWords([]string{"the dog ate the apple", "everybody read that book"})
	if err != nil {
		t.Fatalf("BuildWords: %v", err)
	}
	if v.Size() != 8 {
		t.Fatalf("Size = %d, want 8 distinct words", v.Size())
	}
	ids, err := v.EncodeWords([]string{"the", "book"})
	if err != nil {
		t.Fatalf("EncodeWords: %v", err)
	}
	if ids[0] != 0 {
		t.Fatalf("first-seen word should have index 0, got %d", ids[0])
	}
}
