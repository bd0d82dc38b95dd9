// Package report draws the diagnostics of filter runs.
package report

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ChristopherRabotin/goupf"
)

// Width and Height are the dimensions of saved plots.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Save writes the plot to path, the format following the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "could not save %s", path)
	}
	return nil
}

// StepPlot draws the effective sample size and the maximum weight of every step.
// Skipped steps are marked with a cross.
func StepPlot(steps []goupf.StepResult) (*plot.Plot, error) {
	if len(steps) == 0 {
		return nil, errors.New("no step to plot")
	}
	ess := make(plotter.XYs, len(steps))
	maxW := make(plotter.XYs, len(steps))
	var skipped plotter.XYs
	for i, s := range steps {
		ess[i] = plotter.XY{X: float64(s.Step), Y: s.ESS}
		maxW[i] = plotter.XY{X: float64(s.Step), Y: s.MaxWeight * s.ESS}
		if s.Skipped {
			skipped = append(skipped, ess[i])
		}
	}

	p := plot.New()
	p.Title.Text = "Particle degeneracy"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "particles"
	p.Add(plotter.NewGrid())

	essLine, err := plotter.NewLine(ess)
	if err != nil {
		return nil, errors.Wrap(err, "ESS line")
	}
	essLine.Width = vg.Points(1)
	essLine.Color = plotutil.Color(0)
	p.Add(essLine)
	p.Legend.Add("ESS", essLine)

	wLine, err := plotter.NewLine(maxW)
	if err != nil {
		return nil, errors.Wrap(err, "max weight line")
	}
	wLine.Width = vg.Points(1)
	wLine.Color = plotutil.Color(1)
	wLine.Dashes = plotutil.Dashes(1)
	p.Add(wLine)
	p.Legend.Add("max weight × ESS", wLine)

	if len(skipped) > 0 {
		sc, err := plotter.NewScatter(skipped)
		if err != nil {
			return nil, errors.Wrap(err, "skipped steps")
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = plotutil.Color(2)
		p.Add(sc)
		p.Legend.Add("skipped", sc)
	}
	p.Legend.Top = true
	return p, nil
}

// CloudPlot draws the projection on the x-y plane of the particles, of the estimate and of
// the ground truth when known.
func CloudPlot(particles []goupf.Particle, est *goupf.Estimate, truth *goupf.Pose) (*plot.Plot, error) {
	if len(particles) == 0 {
		return nil, errors.New("no particle to plot")
	}
	pts := make(plotter.XYs, len(particles))
	for i, pt := range particles {
		pts[i] = plotter.XY{X: pt.State[0], Y: pt.State[1]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d particles", len(particles))
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	cloud, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "particle cloud")
	}
	cloud.GlyphStyle.Color = plotutil.Color(0)
	cloud.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(cloud)
	p.Legend.Add("particles", cloud)

	marker := func(name string, pose goupf.Pose, shape draw.GlyphDrawer, c int) error {
		sc, err := plotter.NewScatter(plotter.XYs{{X: pose.Position.X, Y: pose.Position.Y}})
		if err != nil {
			return errors.Wrap(err, name)
		}
		sc.GlyphStyle.Shape = shape
		sc.GlyphStyle.Color = plotutil.Color(c)
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add(name, sc)
		return nil
	}
	if est != nil {
		if err := marker("estimate", est.Pose, draw.PyramidGlyph{}, 1); err != nil {
			return nil, err
		}
	}
	if truth != nil {
		if err := marker("truth", *truth, draw.CrossGlyph{}, 2); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FitHistogram draws the distribution of the fit index over trials.
func FitHistogram(trials goupf.Trials, bins int) (*plot.Plot, error) {
	if len(trials.Runs) == 0 {
		return nil, errors.New("no trial to plot")
	}
	h, err := plotter.NewHist(plotter.Values(trials.FitIndices()), bins)
	if err != nil {
		return nil, errors.Wrap(err, "fit index histogram")
	}
	h.FillColor = plotutil.Color(0)

	p := plot.New()
	fitMean, fitStd, _, _ := trials.Summary()
	p.Title.Text = fmt.Sprintf("Fit index over %d trials (%.3g ± %.3g)", len(trials.Runs), fitMean, fitStd)
	p.X.Label.Text = "fit index"
	p.Y.Label.Text = "trials"
	p.Add(h)
	return p, nil
}
