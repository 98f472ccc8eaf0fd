// Package vocab builds bidirectional token/index mappings over small text
// corpora. A Vocabulary assigns dense indices [0, Size) to the distinct
// tokens of a corpus, in first-appearance order, so repeated builds over the
// same corpus always yield the same mapping.
package vocab

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyCorpus is returned when a vocabulary is built from no text.
	ErrEmptyCorpus = errors.New("vocab: corpus is empty")
	// ErrNotInVocab is returned when a token or index has no mapping.
	ErrNotInVocab = errors.New("vocab: not in vocabulary")
	// ErrTooLong is returned by Pad when a string already exceeds the target.
	ErrTooLong = errors.New("vocab: string exceeds pad target")
)

// Vocabulary is an immutable bidirectional mapping between string tokens and
// dense integer indices. Character-level vocabularies store one rune per
// token; word-level vocabularies store whitespace-separated fields.
type Vocabulary struct {
	toID    map[string]int
	toToken []string
}

// Build scans every character across all strings and assigns indices in
// first-appearance order.
func Build(corpus []string) (*Vocabulary, error) {
	v := &Vocabulary{toID: make(map[string]int)}
	for _, s := range corpus {
		for _, r := range s {
			v.add(string(r))
		}
	}
	if len(v.toToken) == 0 {
		return nil, errors.Wrap(ErrEmptyCorpus, "building character vocabulary")
	}
	return v, nil
}

// BuildWords is the word-level variant of Build, splitting each string on
// whitespace. Used by the part-of-speech tagging walkthrough stage.
func BuildWords(corpus []string) (*Vocabulary, error) {
	v := &Vocabulary{toID: make(map[string]int)}
	for _, s := range corpus {
		for _, w := range strings.Fields(s) {
			v.add(w)
		}
	}
	if len(v.toToken) == 0 {
		return nil, errors.Wrap(ErrEmptyCorpus, "building word vocabulary")
	}
	return v, nil
}

func (v *Vocabulary) add(tok string) {
	if _, ok := v.toID[tok]; ok {
		return
	}
	v.toID[tok] = len(v.toToken)
	v.toToken = append(v.toToken, tok)
}

// Size returns the number of distinct tokens.
func (v *Vocabulary) Size() int {
	return len(v.toToken)
}

// Index returns the dense index of tok.
func (v *Vocabulary) Index(tok string) (int, error) {
	id, ok := v.toID[tok]
	if !ok {
		return 0, errors.Wrapf(ErrNotInVocab, "token %q", tok)
	}
	return id, nil
}

// Token is the pure inverse of Index.
func (v *Vocabulary) Token(id int) (string, error) {
	if id < 0 || id >= len(v.toToken) {
		return "", errors.Wrapf(ErrNotInVocab, "index %d outside [0, %d)", id, len(v.toToken))
	}
	return v.toToken[id], nil
}

// Encode converts text to a character index sequence. Unlike tokenizers that
// map unknown input to a filler token, any character absent from the
// vocabulary is an error.
func (v *Vocabulary) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		id, err := v.Index(string(r))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EncodeWords converts a word sequence to indices.
func (v *Vocabulary) EncodeWords(words []string) ([]int, error) {
	ids := make([]int, len(words))
	for i, w := range words {
		id, err := v.Index(w)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode converts an index sequence back to text.
func (v *Vocabulary) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		tok, err := v.Token(id)
		if err != nil {
			return "", err
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}

// Pad appends fill to every string until it reaches target runes. The fill
// character is an ordinary vocabulary member (the walkthrough pads with a
// space), so padding is not distinguishable from content by construction.
// A string longer than target is an error; no truncation policy exists.
func Pad(strs []string, target int, fill rune) ([]string, error) {
	out := make([]string, len(strs))
	for i, s := range strs {
		n := len([]rune(s))
		if n > target {
			return nil, errors.Wrapf(ErrTooLong, "string %d has %d characters, target %d", i, n, target)
		}
		out[i] = s + strings.Repeat(string(fill), target-n)
	}
	return out, nil
}

// MaxLen returns the rune length of the longest string, the pad target the
// walkthrough derives from its corpus.
func MaxLen(strs []string) int {
	max := 0
	for _, s := range strs {
		if n := len([]rune(s)); n > max {
			max = n
		}
	}
	return max
}

type yamlVocab struct {
	Tokens []string `yaml:"tokens"`
}

// MarshalYAML writes the token list in index order, enough to rebuild the
// mapping next to a model checkpoint.
func (v *Vocabulary) MarshalYAML() (interface{}, error) {
	return yamlVocab{Tokens: v.toToken}, nil
}

// UnmarshalYAML rebuilds the bidirectional mapping from a token list.
func (v *Vocabulary) UnmarshalYAML(node *yaml.Node) error {
	var y yamlVocab
	if err := node.Decode(&y); err != nil {
		return errors.Wrap(err, "decoding vocabulary")
	}
	if len(y.Tokens) == 0 {
		return errors.Wrap(ErrEmptyCorpus, "decoding vocabulary")
	}
	v.toID = make(map[string]int, len(y.Tokens))
	v.toToken = nil
	for _, tok := range y.Tokens {
		if _, ok := v.toID[tok]; ok {
			return errors.Errorf("vocab: duplicate token %q", tok)
		}
		v.add(tok)
	}
	return nil
}
