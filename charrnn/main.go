// Command charrnn is the toy-sentence walkthrough: build a character
// vocabulary over three short sentences, pad them to a common length, train
// a vanilla recurrent network to predict the next character, then greedily
// generate text from a seed.
package main

import (
	"fmt"
	"log"

	"github.com/sirupsen/logrus"

	"charnn/rnn"
	"charnn/vocab"
)

func main() {
	corpus := []string{
		"hey how are you",
		"good i am fine",
		"have a nice day",
	}

	fmt.Println("Building vocabulary...")
	v, err := vocab.Build(corpus)
	if err != nil {
		log.Fatalf("building vocabulary: %v", err)
	}
	fmt.Printf("Vocabulary size: %d\n", v.Size())

	target := vocab.MaxLen(corpus)
	padded, err := vocab.Pad(corpus, target, ' ')
	if err != nil {
		log.Fatalf("padding corpus: %v", err)
	}
	fmt.Printf("Padded %d sentences to %d characters (sequence length %d)\n",
		len(padded), target, target-1)

	fmt.Println("\nTraining...")
	logger := logrus.New()
	model := rnn.NewCharLM(v, rnn.DefaultConfig(), logger)
	history, err := model.Fit(padded)
	if err != nil {
		log.Fatalf("training: %v", err)
	}
	fmt.Printf("Final loss: %.4f\n", history[len(history)-1])

	if err := rnn.PlotLoss(history, "loss.png"); err != nil {
		log.Fatalf("plotting loss: %v", err)
	}
	fmt.Println("Wrote loss curve to loss.png")

	fmt.Println("\nSampling...")
	for _, seed := range []string{"good", "hey", "have"} {
		text, err := model.Sample(seed, target)
		if err != nil {
			log.Fatalf("sampling from %q: %v", seed, err)
		}
		fmt.Printf("  %q -> %q\n", seed, text)
	}
}
