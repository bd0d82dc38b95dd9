package goupf

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Trials stores repeated independent runs of the filter on the same measurements.
type Trials struct {
	Runs []Trial
}

// Trial stores the result of one run.
type Trial struct {
	Trial    int
	Seed     uint64
	Estimate *Estimate
	Error    *PoseError // Nil without ground truth
	Steps    []StepResult
}

// RunTrials runs the configured filter n times, the seed of trial k being the configured seed
// plus k. When truth is not nil, each estimate is compared with it.
func RunTrials(ctx context.Context, cfg Config, n int, truth *GroundTruth) (Trials, error) {
	if n <= 0 {
		return Trials{}, errors.Wrapf(ErrConfiguration, "trial count must be positive, got %d", n)
	}
	runs := make([]Trial, 0, n)
	base := cfg.Parameters.Seed
	for k := 0; k < n; k++ {
		cfg.Parameters.Seed = base + uint64(k)
		kf, err := New(cfg)
		if err != nil {
			return Trials{}, err
		}
		est, err := kf.Run(ctx)
		if err != nil {
			return Trials{Runs: runs}, errors.Wrapf(err, "trial %d", k)
		}
		trial := Trial{Trial: k, Seed: cfg.Parameters.Seed, Estimate: est, Steps: kf.History()}
		if truth != nil {
			e := truth.Error(est)
			trial.Error = &e
		}
		runs = append(runs, trial)
	}
	return Trials{Runs: runs}, nil
}

// FitIndices returns the fit index of each trial.
func (t Trials) FitIndices() []float64 {
	vals := make([]float64, len(t.Runs))
	for i, r := range t.Runs {
		vals[i] = r.Estimate.FitIndex
	}
	return vals
}

// Durations returns the duration of each trial in seconds.
func (t Trials) Durations() []float64 {
	vals := make([]float64, len(t.Runs))
	for i, r := range t.Runs {
		vals[i] = r.Estimate.Duration.Seconds()
	}
	return vals
}

// Mean returns the mean of each state component of the estimates over all trials.
// Angles are averaged as given, which is only meaningful when the estimates do not straddle 0.
func (t Trials) Mean() []float64 {
	return t.reduce(func(x []float64) float64 { return stat.Mean(x, nil) })
}

// StdDev returns the standard deviation of each state component of the estimates over all trials.
func (t Trials) StdDev() []float64 {
	return t.reduce(func(x []float64) float64 { return stat.StdDev(x, nil) })
}

func (t Trials) reduce(f func([]float64) float64) []float64 {
	out := make([]float64, StateDim)
	comp := make([]float64, len(t.Runs))
	for i := 0; i < StateDim; i++ {
		for r, run := range t.Runs {
			comp[r] = run.Estimate.Pose.State()[i]
		}
		out[i] = f(comp)
	}
	return out
}

// Summary returns the mean and standard deviation of the fit index and of the duration.
func (t Trials) Summary() (fitMean, fitStd, timeMean, timeStd float64) {
	fits, times := t.FitIndices(), t.Durations()
	fitMean, fitStd = stat.MeanStdDev(fits, nil)
	timeMean, timeStd = stat.MeanStdDev(times, nil)
	return
}

// AsCSV is used as a CSV serializer, with a "trial;error_index;time" header.
func (t Trials) AsCSV() string {
	lines := make([]string, len(t.Runs)+1)
	lines[0] = "trial;error_index;time"
	for i, r := range t.Runs {
		lines[i+1] = fmt.Sprintf("%d;%f;%f", r.Trial, r.Estimate.FitIndex, r.Estimate.Duration.Seconds())
	}
	return strings.Join(lines, "\n") + "\n"
}
