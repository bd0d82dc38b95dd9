package goupf

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// MeasurementSource provides the ordered measurement batches of a run, one per step.
type MeasurementSource interface {
	Len() int                          // Number of batches, hence of steps
	Batch(k int) ([]r3.Vector, error) // Returns the k-th batch
}

// Log is a flat ordered measurement log consumed in fixed size, non overlapping chunks.
// A trailing partial chunk is ignored.
type Log struct {
	Points    []r3.Vector
	ChunkSize int
}

// NewLog returns a log chunked in batches of chunk points.
func NewLog(points []r3.Vector, chunk int) (*Log, error) {
	if chunk <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "chunk size must be positive, got %d", chunk)
	}
	return &Log{Points: points, ChunkSize: chunk}, nil
}

// Len implements the MeasurementSource interface.
func (l *Log) Len() int {
	return len(l.Points) / l.ChunkSize
}

// Batch implements the MeasurementSource interface.
func (l *Log) Batch(k int) ([]r3.Vector, error) {
	if k < 0 || k >= l.Len() {
		return nil, errors.Errorf("no measurement batch at step k=%d", k)
	}
	return l.Points[k*l.ChunkSize : (k+1)*l.ChunkSize], nil
}

// Batches is a measurement source of explicit, possibly uneven, batches.
type Batches [][]r3.Vector

// Len implements the MeasurementSource interface.
func (b Batches) Len() int {
	return len(b)
}

// Batch implements the MeasurementSource interface.
func (b Batches) Batch(k int) ([]r3.Vector, error) {
	if k < 0 || k >= len(b) {
		return nil, errors.Errorf("no measurement batch at step k=%d", k)
	}
	return b[k], nil
}

// ReadPoints reads whitespace separated "x y z" lines. Blank lines and lines starting with '#'
// are ignored.
func ReadPoints(r io.Reader) ([]r3.Vector, error) {
	batches, err := ReadBatches(r)
	if err != nil {
		return nil, err
	}
	var pts []r3.Vector
	for _, b := range batches {
		pts = append(pts, b...)
	}
	return pts, nil
}

// ReadBatches reads "x y z" lines where blank lines separate batches, as produced for one
// contact set per touch. Lines starting with '#' are ignored.
func ReadBatches(r io.Reader) (Batches, error) {
	var (
		out     Batches
		current []r3.Vector
		lineNo  int
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("line %d: expected 3 coordinates, got %d", lineNo, len(fields))
		}
		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			xyz[i] = v
		}
		current = append(current, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read measurements")
	}
	flush()
	return out, nil
}
