// Package postag is the part-of-speech stage of the walkthrough: the same
// vanilla recurrent cell, but over a word vocabulary with one tag target per
// step instead of a shifted copy of the input.
package postag

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"charnn/dataset"
	"charnn/rnn"
	"charnn/vocab"
)

// Tagger assigns one tag per word using a trained recurrent network.
type Tagger struct {
	Words *vocab.Vocabulary
	Tags  *vocab.Vocabulary
	Net   *rnn.Network
}

// Train builds word and tag vocabularies from the tagged corpus and fits the
// network on aligned (word, tag) index sequences. Sentences may differ in
// length; no padding is needed because each sequence is processed to
// completion on its own.
func Train(sentences, tagSeqs [][]string, cfg rnn.Config, logger *logrus.Logger) (*Tagger, error) {
	if len(sentences) == 0 || len(sentences) != len(tagSeqs) {
		return nil, errors.Wrapf(dataset.ErrShape, "%d sentences but %d tag sequences", len(sentences), len(tagSeqs))
	}
	wordCorpus := make([]string, len(sentences))
	tagCorpus := make([]string, len(tagSeqs))
	for i := range sentences {
		if len(sentences[i]) != len(tagSeqs[i]) {
			return nil, errors.Wrapf(dataset.ErrShape, "sentence %d has %d words but %d tags", i, len(sentences[i]), len(tagSeqs[i]))
		}
		wordCorpus[i] = strings.Join(sentences[i], " ")
		tagCorpus[i] = strings.Join(tagSeqs[i], " ")
	}

	words, err := vocab.BuildWords(wordCorpus)
	if err != nil {
		return nil, err
	}
	tags, err := vocab.BuildWords(tagCorpus)
	if err != nil {
		return nil, err
	}

	inputs := make([][]int, len(sentences))
	targets := make([][]int, len(tagSeqs))
	for i := range sentences {
		if inputs[i], err = words.EncodeWords(sentences[i]); err != nil {
			return nil, err
		}
		if targets[i], err = tags.EncodeWords(tagSeqs[i]); err != nil {
			return nil, err
		}
	}

	t := &Tagger{
		Words: words,
		Tags:  tags,
		Net:   rnn.New(cfg, words.Size(), tags.Size(), logger),
	}
	if _, err := t.Net.Fit(inputs, targets); err != nil {
		return nil, err
	}
	return t, nil
}

// Tag greedily decodes one tag per word. A word absent from the training
// vocabulary is an error.
func (t *Tagger) Tag(sentence []string) ([]string, error) {
	ids, err := t.Words.EncodeWords(sentence)
	if err != nil {
		return nil, err
	}
	tagIDs, err := t.Net.GreedySeq(ids)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tagIDs))
	for i, id := range tagIDs {
		if out[i], err = t.Tags.Token(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}
