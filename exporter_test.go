package goupf

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImplementsExporter(t *testing.T) {
	implements := func(Exporter) {}
	implements(new(CSVExporter))
}

func TestCSVExportFail(t *testing.T) {
	_, err := NewCSVExporter("/noNoNoNo/", "temp.csv")
	if err == nil {
		t.Fatal("no issue when trying to create a file in a missing directory")
	}
}

func TestCSVExport(t *testing.T) {
	ce, err := NewCSVExporter(t.TempDir(), "temp.csv")
	require.NoError(t, err)
	est := &Estimate{
		Pose:       Pose{Yaw: 1, Pitch: 0.5, Roll: 2},
		Covariance: ScaledIdentity(StateDim, 0.01),
		FitIndex:   0.002,
		Duration:   1500 * time.Millisecond,
	}
	require.NoError(t, ce.Write(est))
	require.NoError(t, ce.Close())

	data, err := os.ReadFile(ce.Name())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "x,x+2s,x-2s,y"))
	assert.True(t, strings.HasSuffix(lines[1], "fit_index,time"))
	fields := strings.Split(lines[2], ",")
	require.Len(t, fields, 20)
	assert.Equal(t, "1.000000", fields[9])
	assert.Equal(t, "1.200000", fields[10])
	assert.Equal(t, "1.500000", fields[19])
	assert.True(t, strings.HasPrefix(lines[3], "# Closing date"))
}
