package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/stokesmap/model"
)

// WindowConfig bounds the frequency/energy filter (inclusive).
type WindowConfig struct {
	MinChannel float64 `json:"min_channel"`
	MaxChannel float64 `json:"max_channel"`
}

// ColourConfig parameterizes the colour correction: an assumed
// power-law spectral index, the instrument band edges, and the
// reference frequency the band average is converted to. All
// frequencies share the calibration channel's units.
type ColourConfig struct {
	Alpha        float64 `json:"alpha"`
	BandLow      float64 `json:"band_low"`
	BandHigh     float64 `json:"band_high"`
	RefFreq      float64 `json:"ref_freq"`
	UseTabulated bool    `json:"use_tabulated"`
}

// BackgroundConfig enables background subtraction with an externally
// estimated level. Level is a pointer so "requested but not supplied"
// is detectable and rejected before processing.
type BackgroundConfig struct {
	Level *float64   `json:"level"`
	Units model.Unit `json:"units"`
}

// Config describes one processing pass. The zero value is not usable;
// load it from JSON or fill it in and call Validate.
type Config struct {
	Geometry  Geometry     `json:"geometry"`
	Weighting WeightScheme `json:"weighting"`

	// Correction stage, in canonical order. Nil sections are skipped.
	Window     *WindowConfig     `json:"window,omitempty"`
	Response   bool              `json:"response"`
	Colour     *ColourConfig     `json:"colour,omitempty"`
	Background *BackgroundConfig `json:"background,omitempty"`

	// Workers > 1 enables data-parallel binning.
	Workers int `json:"workers"`
}

// Validate checks everything that must hold before a pass starts.
// Configuration problems are fatal up front, never mid-pass.
func (c Config) Validate() error {
	if _, err := NewPixelization(c.Geometry); err != nil {
		return err
	}
	if c.Weighting != "" && !c.Weighting.valid() {
		return &ConfigError{Field: "weighting", Msg: fmt.Sprintf("unknown weighting scheme %q", c.Weighting)}
	}
	if c.Window != nil && c.Window.MinChannel > c.Window.MaxChannel {
		return &ConfigError{Field: "window", Msg: "window bounds must satisfy min <= max"}
	}
	if c.Colour != nil {
		if c.Colour.BandLow <= 0 || c.Colour.BandHigh <= c.Colour.BandLow {
			return &ConfigError{Field: "colour.band", Msg: "band edges must satisfy 0 < low < high"}
		}
		if c.Colour.RefFreq <= 0 {
			return &ConfigError{Field: "colour.reference", Msg: "reference frequency must be positive"}
		}
	}
	if c.Background != nil && c.Background.Level == nil {
		return &ConfigError{Field: "background.level", Msg: "background subtraction requested without a supplied estimate"}
	}
	if c.Background != nil && c.Background.Units == "" {
		return &ConfigError{Field: "background.units", Msg: "background units must be stated"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Msg: "worker count must not be negative"}
	}
	return nil
}

// weighting returns the configured scheme with the default applied.
func (c Config) weighting() WeightScheme {
	if c.Weighting == "" {
		return WeightByWeight
	}
	return c.Weighting
}

// LoadConfig decodes a run configuration from JSON and validates it.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding run configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
