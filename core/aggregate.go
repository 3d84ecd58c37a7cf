package core

import (
	"math"

	"github.com/signalsfoundry/stokesmap/model"
)

// PixelValue is a derived per-pixel quantity with an explicit validity
// flag. Undefined values (unobserved pixel, or I <= 0 for polarization
// fractions) are flagged rather than propagated as NaN.
type PixelValue struct {
	Value float64
	Valid bool
}

// PolarizationDegree computes p = sqrt(Q^2 + U^2) / I per pixel.
// Pixels that are unobserved or have I <= 0 are flagged invalid.
func PolarizationDegree(m *Map) []PixelValue {
	out := make([]PixelValue, m.Npix())
	for p := range out {
		if !m.Observed[p] || m.I[p] <= 0 {
			continue
		}
		out[p] = PixelValue{
			Value: math.Sqrt(m.Q[p]*m.Q[p]+m.U[p]*m.U[p]) / m.I[p],
			Valid: true,
		}
	}
	return out
}

// PolarizationAngle computes theta = 0.5 * atan2(U, Q) per pixel, in
// radians, in the map's reference frame. Callers needing another frame
// convert coordinates before interpretation. Unobserved pixels are
// flagged invalid.
func PolarizationAngle(m *Map) []PixelValue {
	out := make([]PixelValue, m.Npix())
	for p := range out {
		if !m.Observed[p] {
			continue
		}
		out[p] = PixelValue{
			Value: 0.5 * math.Atan2(m.U[p], m.Q[p]),
			Valid: true,
		}
	}
	return out
}

// Photometry is the result of an aperture measurement: summed Stokes
// values and the number of contributing pixels (for the caller's error
// estimation).
type Photometry struct {
	I      float64 `json:"i"`
	Q      float64 `json:"q"`
	U      float64 `json:"u"`
	Pixels int     `json:"pixels"`
}

// AperturePhotometry sums I, Q, U over all observed pixels whose
// centers fall inside region. With fluxDensity set, each pixel is
// weighted by its solid angle, giving a flux-density integral for
// surface-brightness maps.
func AperturePhotometry(m *Map, pix Pixelization, region model.Region, fluxDensity bool) Photometry {
	var out Photometry
	var sumI, sumQ, sumU kahanSum
	for p := 0; p < m.Npix(); p++ {
		if !m.Observed[p] {
			continue
		}
		if !regionContains(region, pix.Center(p)) {
			continue
		}
		w := 1.0
		if fluxDensity {
			w = pix.SolidAngle(p)
		}
		sumI.add(w * m.I[p])
		sumQ.add(w * m.Q[p])
		sumU.add(w * m.U[p])
		out.Pixels++
	}
	out.I = sumI.sum
	out.Q = sumQ.sum
	out.U = sumU.sum
	return out
}

// EstimateBackground returns the mean I level over an annular region
// deliberately chosen to exclude target emission, plus the number of
// contributing pixels. The level is in the map's units and feeds the
// background-subtraction correction of a subsequent pass. ok is false
// when no observed pixel fell inside the annulus.
func EstimateBackground(m *Map, pix Pixelization, annulus model.Region) (level float64, pixels int, ok bool) {
	ph := AperturePhotometry(m, pix, annulus, false)
	if ph.Pixels == 0 {
		return 0, 0, false
	}
	return ph.I / float64(ph.Pixels), ph.Pixels, true
}

// RegionPolarization aggregates Stokes sums over a region and derives
// the region's polarization degree and angle (radians). ok is false
// when the region has no observed pixels or a non-positive summed I.
func RegionPolarization(m *Map, pix Pixelization, region model.Region) (degree, angle float64, ok bool) {
	ph := AperturePhotometry(m, pix, region, false)
	if ph.Pixels == 0 || ph.I <= 0 {
		return 0, 0, false
	}
	q := ph.Q / ph.I
	u := ph.U / ph.I
	return math.Sqrt(q*q + u*u), 0.5 * math.Atan2(u, q), true
}

// regionContains reports whether a pixel center lies inside the region.
func regionContains(r model.Region, pt model.SkyPointing) bool {
	d := angularSeparation(r.Center, pt)
	switch r.Kind {
	case model.RegionKindAnnulus:
		return d >= r.Inner && d <= r.Outer
	default:
		return d <= r.Radius
	}
}

// angularSeparation returns the great-circle angle between two sky
// directions, in radians, via the dot product of their unit vectors.
func angularSeparation(a, b model.SkyPointing) float64 {
	sa, ca := math.Sincos(a.Theta)
	sb, cb := math.Sincos(b.Theta)
	cosd := sa*sb*math.Cos(a.Phi-b.Phi) + ca*cb
	if cosd > 1 {
		cosd = 1
	} else if cosd < -1 {
		cosd = -1
	}
	return math.Acos(cosd)
}
