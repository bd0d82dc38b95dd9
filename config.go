package goupf

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// FileConfig is the JSON representation of the filter parameters. Every field is optional:
// fields left out keep the value of the preset, or of DefaultParameters without preset.
// Matrices are given by their diagonal.
type FileConfig struct {
	Preset *string `json:"preset,omitempty"` // "default", "vision" or "tactile"

	Particles     *int `json:"particles,omitempty"`
	PointsPerStep *int `json:"points_per_step,omitempty"`

	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Kappa *float64 `json:"kappa,omitempty"`

	ProcessNoise      []float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *float64  `json:"measurement_noise,omitempty"`
	InitialCovariance []float64 `json:"initial_covariance,omitempty"`
	Center            []float64 `json:"center,omitempty"`
	Radius            []float64 `json:"radius,omitempty"`

	Selection         *string   `json:"selection,omitempty"`
	Neighborhood      []float64 `json:"neighborhood,omitempty"`
	DensityPercentile *float64  `json:"density_percentile,omitempty"`

	WindowWidth    *int    `json:"window_width,omitempty"`
	MinBatchPoints *int    `json:"min_batch_points,omitempty"`
	Workers        *int    `json:"workers,omitempty"`
	Seed           *uint64 `json:"seed,omitempty"`
}

// Preset returns the parameters of a named preset.
func Preset(name string) (Parameters, error) {
	switch name {
	case "", "default":
		return DefaultParameters(), nil
	case "vision":
		return VisionParameters(), nil
	case "tactile":
		return TactileParameters(), nil
	default:
		return Parameters{}, errors.Wrapf(ErrConfiguration, "unknown preset %q", name)
	}
}

// LoadConfig reads and validates a JSON configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Wrapf(ErrConfiguration, "config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Wrapf(ErrConfiguration, "config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := &FileConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "failed to parse config JSON: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration can be turned into valid Parameters.
func (c *FileConfig) Validate() error {
	_, err := c.Parameters()
	return err
}

// Parameters returns the validated parameters described by the configuration.
func (c *FileConfig) Parameters() (Parameters, error) {
	preset := ""
	if c.Preset != nil {
		preset = *c.Preset
	}
	p, err := Preset(preset)
	if err != nil {
		return p, err
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&p.Particles, c.Particles)
	setInt(&p.PointsPerStep, c.PointsPerStep)
	setFloat(&p.Alpha, c.Alpha)
	setFloat(&p.Beta, c.Beta)
	setFloat(&p.Kappa, c.Kappa)
	setFloat(&p.R, c.MeasurementNoise)
	setFloat(&p.DensityPercentile, c.DensityPercentile)
	setInt(&p.WindowWidth, c.WindowWidth)
	setInt(&p.MinBatchPoints, c.MinBatchPoints)
	setInt(&p.Workers, c.Workers)
	if c.Seed != nil {
		p.Seed = *c.Seed
	}
	if c.Selection != nil {
		p.Selection = SelectionPolicy(*c.Selection)
	}

	if c.ProcessNoise != nil {
		if len(c.ProcessNoise) != StateDim {
			return p, errors.Wrapf(ErrConfiguration, "process_noise needs %d values, got %d", StateDim, len(c.ProcessNoise))
		}
		p.Q = Diagonal(c.ProcessNoise)
	}
	if c.InitialCovariance != nil {
		if len(c.InitialCovariance) != StateDim {
			return p, errors.Wrapf(ErrConfiguration, "initial_covariance needs %d values, got %d", StateDim, len(c.InitialCovariance))
		}
		p.P0 = Diagonal(c.InitialCovariance)
	}
	if c.Neighborhood != nil {
		if len(c.Neighborhood) != StateDim {
			return p, errors.Wrapf(ErrConfiguration, "neighborhood needs %d values, got %d", StateDim, len(c.Neighborhood))
		}
		copy(p.Neighborhood[:], c.Neighborhood)
	}
	for _, v := range []struct {
		name string
		src  []float64
		dst  *r3.Vector
	}{{"center", c.Center, &p.Center}, {"radius", c.Radius, &p.Radius}} {
		if v.src == nil {
			continue
		}
		if len(v.src) != 3 {
			return p, errors.Wrapf(ErrConfiguration, "%s needs 3 values, got %d", v.name, len(v.src))
		}
		*v.dst = r3.Vector{X: v.src[0], Y: v.src[1], Z: v.src[2]}
	}
	return p, p.Validate()
}
