package rnn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLoss renders a loss history as a line chart image. The format follows
// the file extension (.png, .svg, .pdf).
func PlotLoss(history []float64, path string) error {
	if len(history) == 0 {
		return errors.New("rnn: no loss history to plot")
	}
	p := plot.New()
	p.Title.Text = "training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "cross-entropy"

	xys := make(plotter.XYs, len(history))
	for i, l := range history {
		xys[i].X = float64(i + 1)
		xys[i].Y = l
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrap(err, "building loss line")
	}
	p.Add(line)
	return errors.Wrapf(p.Save(8*vg.Inch, 4*vg.Inch, path), "saving loss plot to %s", path)
}
