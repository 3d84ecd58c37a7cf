package model

import "math"

// Unit identifies the physical units of a sample's signal value.
type Unit string

const (
	// UnitKCMB is thermodynamic CMB temperature (Planck native units).
	UnitKCMB Unit = "K_CMB"
	// UnitCounts is raw digitized detector counts (IXPE native units).
	UnitCounts Unit = "counts"
	// UnitMJySr is flux density per solid angle, the target unit after
	// colour correction.
	UnitMJySr Unit = "MJy/sr"
)

// SkyPointing is a sky direction: colatitude Theta in [0, pi] and
// longitude Phi in [0, 2*pi), both in radians, in the reference frame
// of the active run (galactic or equatorial).
type SkyPointing struct {
	Theta float64
	Phi   float64
}

// IsValid reports whether the pointing is a usable sky direction.
// NaN or out-of-domain colatitudes make a pointing invalid; longitude
// only needs to be finite since it wraps.
func (p SkyPointing) IsValid() bool {
	if math.IsNaN(p.Theta) || math.IsNaN(p.Phi) {
		return false
	}
	if math.IsInf(p.Phi, 0) {
		return false
	}
	return p.Theta >= 0 && p.Theta <= math.Pi
}

// CalibrationTag identifies the calibration row a sample belongs to:
// the detector that recorded it and its frequency/energy channel
// (GHz for radiometer TOD, keV for photon event lists).
type CalibrationTag struct {
	Detector string  `json:"detector"`
	Channel  float64 `json:"channel"`
}

// Sample is one instrument observation.
//
// Weighting convention: WI, WQ, WU are precomputed Stokes weighting
// coefficients supplied by the upstream source (for an idealized
// polarimeter with detector orientation psi these are proportional to
// 1, cos(2*psi), sin(2*psi)). The binning engine never derives them
// from detector angles.
type Sample struct {
	Pointing SkyPointing

	// Stokes weighting coefficients.
	WI float64
	WQ float64
	WU float64

	// Signal is the detected scalar value in Units.
	Signal float64
	Units  Unit

	// Weight is the sample's statistical weight for map normalization
	// (e.g. IXPE W_MOM). Zero means "unweighted", treated as 1.
	Weight float64

	Tag   CalibrationTag
	Valid bool
}

// EffectiveWeight returns the statistical weight with the unweighted
// default applied.
func (s Sample) EffectiveWeight() float64 {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}

// CorrectedSample is a Sample after zero or more corrections. Applied
// records the names of the corrections, in order, for provenance.
type CorrectedSample struct {
	Sample
	Applied []string
}

// Corrected wraps a raw sample as an uncorrected CorrectedSample.
func Corrected(s Sample) CorrectedSample {
	return CorrectedSample{Sample: s}
}
