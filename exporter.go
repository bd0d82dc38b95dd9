package goupf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Exporter defines an export interface.
type Exporter interface {
	Write(*Estimate) error
	Close() error
}

// StateHeaders are the names of the state components.
var StateHeaders = []string{"x", "y", "z", "yaw", "pitch", "roll"}

// CSVExporter writes one line per estimate: each state component with its ±2σ bounds,
// then the fit index and the duration.
type CSVExporter struct {
	delimiter string
	hdlr      *os.File
}

// Close closes the file.
func (e CSVExporter) Close() (err error) {
	err = e.WriteRawLn(fmt.Sprintf("# Closing date (UTC): %s", time.Now().UTC()))
	if err != nil {
		return
	}
	return e.hdlr.Close()
}

// Write writes the estimate to the CSV file.
func (e CSVExporter) Write(est *Estimate) error {
	state := est.Pose.State()
	vals := make([]string, 0, len(state)*3+2)
	for i, v := range state {
		covar := 2 * math.Sqrt(est.Covariance.At(i, i))
		vals = append(vals, fmt.Sprintf("%f", v), fmt.Sprintf("%f", v+covar), fmt.Sprintf("%f", v-covar))
	}
	vals = append(vals, fmt.Sprintf("%f", est.FitIndex), fmt.Sprintf("%f", est.Duration.Seconds()))
	_, err := e.hdlr.WriteString(strings.Join(vals, e.delimiter) + "\n")
	return err
}

// WriteRawLn writes a raw line to the CSV file.
func (e CSVExporter) WriteRawLn(s string) error {
	_, err := e.hdlr.WriteString(s + "\n")
	return err
}

// Name returns the path of the CSV file.
func (e CSVExporter) Name() string {
	return e.hdlr.Name()
}

// NewCSVExporter initializes a new CSV export in dir/filename.
func NewCSVExporter(dir, filename string) (e *CSVExporter, err error) {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, errors.Wrap(err, "could not create CSV export")
	}
	delimiter := ","
	hdr := make([]string, 0, len(StateHeaders)*3+2)
	for _, h := range StateHeaders {
		hdr = append(hdr, h, h+"+2s", h+"-2s")
	}
	hdr = append(hdr, "fit_index", "time")
	if _, err = f.WriteString(fmt.Sprintf("# Creation date (UTC): %s\n%s\n", time.Now().UTC(), strings.Join(hdr, delimiter))); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "could not write CSV header")
	}
	return &CSVExporter{delimiter, f}, nil
}
