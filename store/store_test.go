package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristopherRabotin/goupf"
)

func sampleTrials() goupf.Trials {
	steps := []goupf.StepResult{
		{Step: 1, Points: 3, ESS: 12.5, MaxWeight: 0.2, SumSquaredWeights: 0.08, Duration: time.Millisecond},
		{Step: 2, Points: 0, Skipped: true, ESS: 40, MaxWeight: 0.025, SumSquaredWeights: 0.025},
		{Step: 3, Points: 3, Terminal: true, ESS: 3.2, MaxWeight: 0.5, SumSquaredWeights: 0.3125, Duration: 2 * time.Millisecond},
	}
	est := func(x float64) *goupf.Estimate {
		return &goupf.Estimate{
			Pose:       goupf.Pose{Position: r3.Vector{X: x, Y: 0.2, Z: 0.3}, Yaw: 1, Pitch: 0.5, Roll: 6},
			FitIndex:   0.001 * x,
			Density:    4.5,
			Likelihood: 0.7,
			Particle:   17,
			Steps:      3,
			Skipped:    1,
			Duration:   3 * time.Millisecond,
		}
	}
	return goupf.Trials{Runs: []goupf.Trial{
		{Trial: 0, Seed: 1<<63 + 5, Estimate: est(1), Steps: steps, Error: &goupf.PoseError{Position: 0.01, Angle: 0.02}},
		{Trial: 1, Seed: 7, Estimate: est(2), Steps: steps[:1]},
	}}
}

func openTest(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path, golog.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTest(t)

	version, dirty, err := s.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)

	p := goupf.TactileParameters()
	p.Seed = 99
	id, err := s.CreateRun(ctx, "bunny", p)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	trials := sampleTrials()
	require.NoError(t, s.SaveTrials(ctx, id, trials))

	got, err := s.Trials(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	posErr, angErr := 0.01, 0.02
	want := TrialRecord{
		Trial:         0,
		Seed:          1<<63 + 5,
		Pose:          trials.Runs[0].Estimate.Pose,
		FitIndex:      0.001,
		Density:       4.5,
		Likelihood:    0.7,
		Particle:      17,
		Steps:         3,
		Skipped:       1,
		Duration:      3 * time.Millisecond,
		PositionError: &posErr,
		AngleError:    &angErr,
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("trial mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[1].PositionError)
	assert.Nil(t, got[1].AngleError)

	steps, err := s.Steps(ctx, id, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(trials.Runs[0].Steps, steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	steps, err = s.Steps(ctx, id, 1)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	// Duplicated trials are rejected and leave the store untouched.
	assert.Error(t, s.SaveTrials(ctx, id, trials))
	got, err = s.Trials(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, s.Close())
	s, err = Open(path, golog.NewTestLogger(t))
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "bunny", runs[0].Label)
	assert.Equal(t, p.Particles, runs[0].Particles)
	assert.Equal(t, p.PointsPerStep, runs[0].PointsPerStep)
	assert.Equal(t, goupf.SelectDensity, runs[0].Selection)
	assert.EqualValues(t, 99, runs[0].Seed)
}

func TestStoreUnknownRun(t *testing.T) {
	s, _ := openTest(t)
	err := s.SaveTrials(context.Background(), uuid.New(), sampleTrials())
	assert.Error(t, err, "trials of an unknown run violate the foreign key")
}

func TestMigrateDown(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	require.NoError(t, s.MigrateTo(1))
	version, _, err := s.Version()
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	id, err := s.CreateRun(ctx, "old schema", goupf.DefaultParameters())
	require.NoError(t, err)
	_, err = s.Steps(ctx, id, 0)
	assert.Error(t, err)

	require.NoError(t, s.MigrateUp())
	steps, err := s.Steps(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, steps)
}
