package goupf

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

type phase uint8

const (
	uninitialized phase = iota
	initialized
	terminal
	finalized
	failed
)

// Config configures a Filter.
type Config struct {
	Parameters   Parameters
	Surface      Surface           // Surface of the tracked object, in its own frame
	Measurements MeasurementSource // One batch per step, in the reference frame
	Noise        Noise             // Process noise, derived from Parameters.Q when nil
	Logger       golog.Logger      // golog.Global() when nil
}

// Filter is a sigma point particle filter estimating the pose of a known surface from
// measured points. It is driven by Init, then Step until ErrFinished, then Finalize.
// Steps run the particles concurrently but a Filter must not be used from several goroutines.
type Filter struct {
	params  Parameters
	weights SigmaWeights
	surface Surface
	meas    MeasurementSource
	noise   Noise
	logger  golog.Logger
	workers int

	pop      population
	phase    phase
	t, total int
	all      [][]r3.Vector // batch of each step
	used     [][]r3.Vector // batch of each step, nil when skipped
	skipped  int
	history  []StepResult
	selected int
	density  float64
	elapsed  time.Duration
	err      error
}

// New validates the configuration and returns an uninitialized filter.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, err
	}
	if cfg.Surface == nil {
		return nil, errors.Wrap(ErrConfiguration, "no surface")
	}
	if cfg.Measurements == nil || cfg.Measurements.Len() == 0 {
		return nil, errors.Wrap(ErrConfiguration, "no measurement batches")
	}
	noise := cfg.Noise
	if noise == nil {
		var err error
		if noise, err = NewProcessNoise(cfg.Parameters.Q); err != nil {
			return nil, err
		}
	} else if err := checkMatDims(noise.ProcessMatrix(), Identity(StateDim), "Q", "I6", rowsAndcols); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "process noise: %v", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = golog.Global()
	}
	workers := cfg.Parameters.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := cfg.Parameters
	return &Filter{
		params:  p,
		weights: NewSigmaWeights(StateDim, p.Alpha, p.Beta, p.Kappa),
		surface: cfg.Surface,
		meas:    cfg.Measurements,
		noise:   noise,
		logger:  logger,
		workers: workers,
		total:   cfg.Measurements.Len(),
	}, nil
}

// rand returns the random source of one slot of one step, so that draws do not depend on
// the scheduling of the particle workers.
func (f *Filter) rand(step, slot int) rand.Source {
	return rand.NewPCG(f.params.Seed, uint64(step)<<32|uint64(slot))
}

// Init seeds the particles uniformly in the initial box and over the angle ranges, with equal
// weights and the initial covariance. It may be called again to restart the run.
func (f *Filter) Init() error {
	f.pop = newPopulation(f.params.Particles)
	f.t, f.skipped, f.elapsed, f.err = 0, 0, 0, nil
	f.all, f.used, f.history = nil, nil, nil

	src := f.rand(0, 0)
	uniform := func(lo, hi float64) float64 {
		return distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand()
	}
	c, r := f.params.Center, f.params.Radius
	w := 1 / float64(f.params.Particles)
	for i := range f.pop.cur {
		p := &f.pop.cur[i]
		p.State[0] = uniform(c.X-r.X, c.X+r.X)
		p.State[1] = uniform(c.Y-r.Y, c.Y+r.Y)
		p.State[2] = uniform(c.Z-r.Z, c.Z+r.Z)
		p.State[3] = uniform(0, twoPi)
		p.State[4] = uniform(0, math.Pi)
		p.State[5] = uniform(0, twoPi)
		wrapState(p.State)
		p.Covariance.CopySym(f.params.P0)
		p.Weight = w
	}
	f.phase = initialized
	f.logger.Debugw("particles initialized", "particles", f.params.Particles, "steps", f.total)
	return nil
}

// Step consumes the next measurement batch: every particle is propagated, corrected and
// reweighted, then the population is resampled, or on the last batch the estimate is selected.
// A batch smaller than MinBatchPoints is skipped, leaving the particles untouched.
// Step returns ErrFinished once every batch was consumed. Any other error aborts the run.
func (f *Filter) Step() (StepResult, error) {
	switch f.phase {
	case uninitialized:
		return StepResult{}, errors.Wrap(ErrLifecycle, "Step called before Init")
	case failed:
		return StepResult{}, errors.Wrapf(ErrLifecycle, "run aborted: %v", f.err)
	case terminal, finalized:
		return StepResult{}, ErrFinished
	}
	start := time.Now()
	f.t++
	res := StepResult{Step: f.t, Terminal: f.t == f.total}

	batch, err := f.meas.Batch(f.t - 1)
	if err != nil {
		return res, f.fail(err)
	}
	res.Points = len(batch)
	f.all = append(f.all, batch)
	if len(batch) == 0 || len(batch) < f.params.MinBatchPoints {
		res.Skipped = true
		f.skipped++
		f.used = append(f.used, nil)
		f.logger.Warnw("skipping degenerate measurement batch", "step", f.t, "points", len(batch))
	} else {
		f.used = append(f.used, batch)
		if err := f.update(batch, res.Terminal); err != nil {
			return res, f.fail(err)
		}
	}

	w := f.pop.weights()
	res.SumSquaredWeights = floats.Dot(w, w)
	res.ESS = 1 / res.SumSquaredWeights
	res.MaxWeight = floats.Max(w)

	if res.Terminal {
		idx, density, err := selectEstimate(f.pop.cur, f.params, f.workers)
		if err != nil {
			return res, f.fail(err)
		}
		f.selected, f.density = idx, density
		f.phase = terminal
	} else if !res.Skipped {
		f.resample(f.rand(f.t, f.params.Particles))
	}

	res.Duration = time.Since(start)
	f.elapsed += res.Duration
	f.history = append(f.history, res)
	f.logger.Debugw("step done", "step", f.t, "of", f.total, "skipped", res.Skipped,
		"ess", res.ESS, "max_weight", res.MaxWeight, "duration", res.Duration)
	return res, nil
}

// update runs the unscented correction of every particle against the batch and reweights them.
// Particles are corrected into the spare buffer of the population, which replaces the current one
// only once every particle succeeded, so a failed update leaves the population untouched.
func (f *Filter) update(batch []r3.Vector, terminal bool) error {
	z := make([]float64, 0, 3*len(batch))
	for _, m := range batch {
		z = append(z, m.X, m.Y, m.Z)
	}
	cur, next := f.pop.cur, f.pop.next
	logLik := make([]float64, len(cur))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i := range cur {
		g.Go(func() error {
			p := &next[i]
			p.set(cur[i])
			u, err := f.predict(p, batch, f.rand(f.t, i))
			if err != nil {
				return errors.Wrapf(err, "particle %d", i)
			}
			if err := f.correct(p, u, z); err != nil {
				return errors.Wrapf(err, "particle %d", i)
			}
			if logLik[i], err = f.logLikelihood(p.State, terminal); err != nil {
				return errors.Wrapf(err, "particle %d", i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w := f.pop.weights()
	if _, err := reweight(w, logLik); err != nil {
		return err
	}
	f.pop.swap()
	f.pop.setWeights(w)
	return nil
}

func (f *Filter) fail(err error) error {
	err = errors.Wrapf(err, "step %d", f.t)
	f.err = err
	f.phase = failed
	f.logger.Errorw("filter run aborted", "error", err)
	return err
}

// Finalize returns the estimate selected on the terminal step together with its fit index.
func (f *Filter) Finalize() (*Estimate, error) {
	if f.phase != terminal {
		return nil, errors.Wrap(ErrLifecycle, "Finalize requires a run which just processed its last batch")
	}
	best := f.pop.cur[f.selected].Clone()
	fit, err := fitIndex(f.surface, best.State, f.all)
	if err != nil {
		return nil, err
	}
	lik, err := f.finalLikelihood(f.selected)
	if err != nil {
		return nil, err
	}
	est := &Estimate{
		Pose:       PoseFromState(best.State),
		Covariance: best.Covariance,
		FitIndex:   fit,
		Density:    f.density,
		Likelihood: lik,
		Particle:   f.selected,
		Steps:      f.t,
		Skipped:    f.skipped,
		Duration:   f.elapsed,
	}
	f.phase = finalized
	f.logger.Infow("pose estimated", "pose", est.Pose.String(), "fit_index", fit,
		"density", f.density, "steps", f.t, "skipped", f.skipped, "duration", f.elapsed)
	return est, nil
}

// finalLikelihood returns the likelihood of every used point under particle best, normalized by
// the sum of the same likelihood over the whole population.
func (f *Filter) finalLikelihood(best int) (float64, error) {
	logLik := make([]float64, len(f.pop.cur))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i := range f.pop.cur {
		g.Go(func() error {
			inv := FromState(f.pop.cur[i].State).Inverse()
			for _, batch := range f.used {
				sq, err := sumSquaredDistance(f.surface, inv, batch)
				if err != nil {
					return err
				}
				logLik[i] -= 0.5 * sq / f.params.R
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return math.Exp(logLik[best] - floats.LogSumExp(logLik)), nil
}

// Run initializes the filter if needed, steps through every batch and finalizes.
// The context is checked between steps; a step in progress always completes.
func (f *Filter) Run(ctx context.Context) (*Estimate, error) {
	if f.phase == uninitialized {
		if err := f.Init(); err != nil {
			return nil, err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, f.fail(errors.Wrap(err, "run cancelled"))
		}
		if _, err := f.Step(); err != nil {
			if errors.Is(err, ErrFinished) {
				break
			}
			return nil, err
		}
	}
	return f.Finalize()
}

// Particles returns a copy of the current particles.
func (f *Filter) Particles() []Particle {
	out := make([]Particle, len(f.pop.cur))
	for i, p := range f.pop.cur {
		out[i] = p.Clone()
	}
	return out
}

// History returns the diagnostics of the steps run so far.
func (f *Filter) History() []StepResult {
	return append([]StepResult(nil), f.history...)
}

// Steps returns the number of steps run so far.
func (f *Filter) Steps() int {
	return f.t
}

// TotalSteps returns the number of batches of the run.
func (f *Filter) TotalSteps() int {
	return f.total
}

// Parameters returns the parameters of the filter.
func (f *Filter) Parameters() Parameters {
	return f.params
}
