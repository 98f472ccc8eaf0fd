// Command charlstm trains a character-level LSTM on an arbitrary text file
// (one training line per sentence) and generates text from a trained
// checkpoint. Hyperparameters come from flags or a YAML config file; the
// vocabulary is written as a YAML sidecar next to the gob checkpoint.
package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"charnn/lstm"
	"charnn/vocab"
)

var logger = logrus.New()

type fileConfig struct {
	Hidden      int     `yaml:"hidden"`
	Epochs      int     `yaml:"epochs"`
	LearnRate   float64 `yaml:"learn_rate"`
	ReportEvery int     `yaml:"report_every"`
	Seed        int64   `yaml:"seed"`
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "charlstm"
	app.Usage = "train and sample a character-level LSTM"
	app.Commands = []cli.Command{
		{
			Name:  "train",
			Usage: "Train a model on a text file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "in",
					Usage: "Path to the input text `file`; each line is one training sentence",
				},
				cli.StringFlag{
					Name:  "save",
					Value: "model.gob",
					Usage: "`file` path for the checkpoint (vocabulary goes to <save>.vocab.yaml)",
				},
				cli.StringFlag{
					Name:  "config",
					Usage: "Optional YAML `file` with hyperparameters",
				},
				cli.IntFlag{
					Name:  "hidden",
					Value: 64,
					Usage: "Hidden state width",
				},
				cli.IntFlag{
					Name:  "epochs",
					Value: 100,
					Usage: "Full-batch training iterations",
				},
				cli.Float64Flag{
					Name:  "learn",
					Value: 0.01,
					Usage: "Learning rate",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "Weight initialization seed",
				},
			},
			Action: train,
		},
		{
			Name:  "sample",
			Usage: "Generate text from a trained model",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "load",
					Usage: "Checkpoint `file` written by train",
				},
				cli.StringFlag{
					Name:  "seed",
					Value: "the",
					Usage: "Seed text to continue from",
				},
				cli.IntFlag{
					Name:  "length",
					Value: 200,
					Usage: "Total length of the generated text",
				},
			},
			Action: sample,
		},
	}
	return app
}

func train(c *cli.Context) error {
	cfg := lstm.Config{
		HiddenSize:   c.Int("hidden"),
		Epochs:       c.Int("epochs"),
		LearningRate: c.Float64("learn"),
		ReportEvery:  10,
		Seed:         c.Int64("seed"),
	}
	if path := c.String("config"); path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return err
		}
	}

	inPath := c.String("in")
	if inPath == "" {
		return errors.New("missing required input file: --in")
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", inPath)
	}
	var sentences []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) != "" {
			sentences = append(sentences, line)
		}
	}
	if len(sentences) == 0 {
		return errors.Errorf("no training sentences in %s", inPath)
	}

	padded, err := vocab.Pad(sentences, vocab.MaxLen(sentences), ' ')
	if err != nil {
		return err
	}
	// Built from the padded text so the fill character is always a
	// vocabulary member, even when no input line contains a space.
	v, err := vocab.Build(padded)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"sentences": len(sentences),
		"vocab":     v.Size(),
		"hidden":    cfg.HiddenSize,
		"epochs":    cfg.Epochs,
	}).Info("training LSTM")

	model := lstm.New(v, cfg, logger)
	if _, err := model.Fit(padded); err != nil {
		return err
	}

	savePath := c.String("save")
	if err := model.Save(savePath); err != nil {
		return err
	}
	if err := saveVocab(v, savePath+".vocab.yaml"); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"checkpoint": savePath,
		"vocabulary": savePath + ".vocab.yaml",
	}).Info("saved model")
	return nil
}

func sample(c *cli.Context) error {
	loadPath := c.String("load")
	if loadPath == "" {
		return errors.New("missing required checkpoint path: --load")
	}
	v, err := loadVocab(loadPath + ".vocab.yaml")
	if err != nil {
		return err
	}
	model, err := lstm.Load(loadPath, v, lstm.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	text, err := model.Sample(c.String("seed"), c.Int("length"))
	if err != nil {
		return err
	}
	os.Stdout.WriteString(text + "\n")
	return nil
}

func loadConfig(path string, cfg *lstm.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	if fc.Hidden > 0 {
		cfg.HiddenSize = fc.Hidden
	}
	if fc.Epochs > 0 {
		cfg.Epochs = fc.Epochs
	}
	if fc.LearnRate > 0 {
		cfg.LearningRate = fc.LearnRate
	}
	if fc.ReportEvery > 0 {
		cfg.ReportEvery = fc.ReportEvery
	}
	if fc.Seed != 0 {
		cfg.Seed = fc.Seed
	}
	return nil
}

func saveVocab(v *vocab.Vocabulary, path string) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding vocabulary")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "writing %s", path)
}

func loadVocab(path string) (*vocab.Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading vocabulary %s", path)
	}
	v := &vocab.Vocabulary{}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return nil, errors.Wrapf(err, "parsing vocabulary %s", path)
	}
	return v, nil
}
