package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristopherRabotin/goupf"
)

func assertWritten(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestStepPlot(t *testing.T) {
	_, err := StepPlot(nil)
	assert.Error(t, err)

	steps := []goupf.StepResult{
		{Step: 1, Points: 3, ESS: 50, MaxWeight: 0.05},
		{Step: 2, Skipped: true, ESS: 50, MaxWeight: 0.05},
		{Step: 3, Points: 3, Terminal: true, ESS: 12, MaxWeight: 0.3},
	}
	p, err := StepPlot(steps)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "steps.png")
	require.NoError(t, Save(p, path))
	assertWritten(t, path)
}

func TestCloudPlot(t *testing.T) {
	_, err := CloudPlot(nil, nil, nil)
	assert.Error(t, err)

	ps := make([]goupf.Particle, 20)
	for i := range ps {
		ps[i] = goupf.Particle{State: []float64{float64(i) / 20, 0.1, 0, 0, 0, 0}, Weight: 0.05}
	}
	est := &goupf.Estimate{Pose: goupf.Pose{Position: r3.Vector{X: 0.5, Y: 0.1}}}
	truth := &goupf.Pose{Position: r3.Vector{X: 0.52, Y: 0.1}}
	p, err := CloudPlot(ps, est, truth)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cloud.svg")
	require.NoError(t, Save(p, path))
	assertWritten(t, path)
}

func TestFitHistogram(t *testing.T) {
	_, err := FitHistogram(goupf.Trials{}, 5)
	assert.Error(t, err)

	var trials goupf.Trials
	for k, fit := range []float64{0.01, 0.012, 0.02, 0.011} {
		trials.Runs = append(trials.Runs, goupf.Trial{
			Trial:    k,
			Estimate: &goupf.Estimate{FitIndex: fit, Duration: time.Second},
		})
	}
	p, err := FitHistogram(trials, 3)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fit.png")
	require.NoError(t, Save(p, path))
	assertWritten(t, path)
}
