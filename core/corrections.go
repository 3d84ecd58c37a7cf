package core

import (
	"math"

	"github.com/signalsfoundry/stokesmap/calib"
	"github.com/signalsfoundry/stokesmap/model"
)

// Correction is a pure per-sample transform: it returns the corrected
// sample, or ok=false with a reason when the sample must be rejected.
// Corrections never fail a whole pass; rejections are counted by the
// caller. Calibration data is captured at construction and is
// read-only, so a correction has no hidden state.
type Correction interface {
	Name() string
	Apply(s model.CorrectedSample) (out model.CorrectedSample, reason model.RejectReason, ok bool)
}

// Chain applies corrections in order, recording each applied
// correction's name on the sample for provenance. The first rejection
// wins.
type Chain []Correction

// Apply runs the chain on s.
func (c Chain) Apply(s model.CorrectedSample) (model.CorrectedSample, model.RejectReason, bool) {
	for _, corr := range c {
		out, reason, ok := corr.Apply(s)
		if !ok {
			return s, reason, false
		}
		out.Applied = append(out.Applied, corr.Name())
		s = out
	}
	return s, "", true
}

// WindowFilter rejects samples whose calibration channel falls outside
// an inclusive window (e.g. the 2-8 keV IXPE band). Samples inside the
// window pass unchanged.
type WindowFilter struct {
	min float64
	max float64
}

// NewWindowFilter validates the window bounds.
func NewWindowFilter(minChannel, maxChannel float64) (*WindowFilter, error) {
	if math.IsNaN(minChannel) || math.IsNaN(maxChannel) || minChannel > maxChannel {
		return nil, &ConfigError{Field: "window", Msg: "window bounds must satisfy min <= max"}
	}
	return &WindowFilter{min: minChannel, max: maxChannel}, nil
}

func (f *WindowFilter) Name() string { return "window_filter" }

// Apply rejects out-of-window channels with RejectOutOfWindow. The
// acceptance is stated positively so a NaN channel rejects rather than
// slipping through both comparisons.
func (f *WindowFilter) Apply(s model.CorrectedSample) (model.CorrectedSample, model.RejectReason, bool) {
	if ch := s.Tag.Channel; ch >= f.min && ch <= f.max {
		return s, "", true
	}
	return s, model.RejectOutOfWindow, false
}

// ResponseCorrection divides the signal by the tag's response
// efficiency (effective area convention: counts are normalized up
// where the instrument is less sensitive).
type ResponseCorrection struct {
	table *calib.Table
}

// NewResponseCorrection requires a calibration table.
func NewResponseCorrection(table *calib.Table) (*ResponseCorrection, error) {
	if table == nil {
		return nil, &ConfigError{Field: "calibration", Msg: "response correction requires a calibration table"}
	}
	return &ResponseCorrection{table: table}, nil
}

func (r *ResponseCorrection) Name() string { return "response" }

// Apply rejects with RejectCalibrationMissing when the tag has no
// record; the reason stays distinct from out-of-window filtering.
func (r *ResponseCorrection) Apply(s model.CorrectedSample) (model.CorrectedSample, model.RejectReason, bool) {
	rec, err := r.table.Lookup(s.Tag)
	if err != nil {
		return s, model.RejectCalibrationMissing, false
	}
	s.Signal /= rec.Efficiency
	return s, "", true
}

// ColourCorrection converts a broadband measurement to its
// monochromatic equivalent at a reference frequency under an assumed
// power-law spectrum, and performs the native-to-MJy/sr unit
// conversion in the same step. The factor is a closed form of
// (spectral index, band edges, reference frequency) alone; the unit
// scalar comes from the tag's calibration record.
//
// Applying the correction twice compounds the factor and the unit
// scalar: it is deliberately NOT idempotent. Callers apply it exactly
// once per pass.
type ColourCorrection struct {
	alpha   float64
	bandLow float64
	bandHi  float64
	refFreq float64
	table   *calib.Table

	// useTabulated selects the calibration table's ColourCoeff (a
	// UC/CC-style tabulated coefficient) over the closed form. Records
	// without a coefficient then reject as calibration_missing.
	useTabulated bool
}

// NewColourCorrection validates the spectral model parameters.
func NewColourCorrection(alpha, bandLow, bandHigh, refFreq float64, table *calib.Table, useTabulated bool) (*ColourCorrection, error) {
	if table == nil {
		return nil, &ConfigError{Field: "calibration", Msg: "colour correction requires a calibration table"}
	}
	if bandLow <= 0 || bandHigh <= bandLow {
		return nil, &ConfigError{Field: "colour.band", Msg: "band edges must satisfy 0 < low < high"}
	}
	if refFreq <= 0 {
		return nil, &ConfigError{Field: "colour.reference", Msg: "reference frequency must be positive"}
	}
	if math.IsNaN(alpha) {
		return nil, &ConfigError{Field: "colour.alpha", Msg: "spectral index must be a number"}
	}
	return &ColourCorrection{
		alpha:        alpha,
		bandLow:      bandLow,
		bandHi:       bandHigh,
		refFreq:      refFreq,
		table:        table,
		useTabulated: useTabulated,
	}, nil
}

func (c *ColourCorrection) Name() string { return "colour_correction" }

// Apply multiplies the signal by the colour-correction factor and the
// unit-conversion scalar, and retags the units as MJy/sr. A tabulated
// run rejects tags whose record carries no coefficient; it never
// substitutes the closed form.
func (c *ColourCorrection) Apply(s model.CorrectedSample) (model.CorrectedSample, model.RejectReason, bool) {
	rec, err := c.table.Lookup(s.Tag)
	if err != nil {
		return s, model.RejectCalibrationMissing, false
	}
	factor := PowerLawBandFactor(c.alpha, c.bandLow, c.bandHi, c.refFreq)
	if c.useTabulated {
		if rec.ColourCoeff == 0 {
			return s, model.RejectCalibrationMissing, false
		}
		factor = rec.ColourCoeff
	}
	s.Signal *= factor * rec.UnitScale
	s.Units = model.UnitMJySr
	return s, "", true
}

// PowerLawBandFactor returns the multiplicative factor converting a
// flat-bandpass average of a power-law spectrum S(nu) ~ nu^alpha over
// [low, high] to the monochromatic value at ref. It is the reciprocal
// of the band-averaged (nu/ref)^alpha:
//
//	factor = ref^alpha * (alpha+1) * (high-low) / (high^(alpha+1) - low^(alpha+1))
//
// with the alpha = -1 limit using ln(high/low).
func PowerLawBandFactor(alpha, low, high, ref float64) float64 {
	width := high - low
	if alpha == -1 {
		return width / (ref * math.Log(high/low))
	}
	num := math.Pow(ref, alpha) * (alpha + 1) * width
	den := math.Pow(high, alpha+1) - math.Pow(low, alpha+1)
	return num / den
}

// BackgroundSubtraction subtracts a previously estimated scalar
// background level, supplied by an earlier pass over an annular region
// (a two-pass workflow driven by the caller, not by the engine).
type BackgroundSubtraction struct {
	level float64
	units model.Unit
}

// NewBackgroundSubtraction records the externally estimated level and
// the units it was computed in.
func NewBackgroundSubtraction(level float64, units model.Unit) (*BackgroundSubtraction, error) {
	if math.IsNaN(level) {
		return nil, &ConfigError{Field: "background.level", Msg: "background level must be a number"}
	}
	if units == "" {
		return nil, &ConfigError{Field: "background.units", Msg: "background units must be stated"}
	}
	return &BackgroundSubtraction{level: level, units: units}, nil
}

func (b *BackgroundSubtraction) Name() string { return "background_subtraction" }

// Apply rejects with RejectUnitMismatch when the sample's current
// units differ from the units the background was estimated in; the
// subtraction must run after any unit conversion.
func (b *BackgroundSubtraction) Apply(s model.CorrectedSample) (model.CorrectedSample, model.RejectReason, bool) {
	if s.Units != b.units {
		return s, model.RejectUnitMismatch, false
	}
	s.Signal -= b.level
	return s, "", true
}
