package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/stokesmap/model"
)

// mapWithPixel builds a single-pixel-observed map on a small grid.
func mapWithPixel(t *testing.T, i, q, u float64) (*Map, Pixelization) {
	t.Helper()
	center := model.SkyPointing{Theta: math.Pi / 2, Phi: 1}
	grid, err := NewFlatGrid(center, 8, 1.5)
	if err != nil {
		t.Fatalf("NewFlatGrid: %v", err)
	}
	acc, err := NewAccumulator(grid, WeightByWeight)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}
	s := model.Corrected(model.Sample{
		Pointing: center,
		WI:       1, WQ: q / i, WU: u / i,
		Signal: i,
		Weight: 1,
		Valid:  true,
	})
	if reason := acc.Add(s); reason != "" {
		t.Fatalf("sample rejected: %s", reason)
	}
	return acc.Finalize(), grid
}

func TestPolarizationDegreeAndAngle(t *testing.T) {
	// I=1.0, Q=0.3, U=0.4: p = 0.5, angle = atan2(0.4, 0.3)/2.
	m, pix := mapWithPixel(t, 1.0, 0.3, 0.4)
	p, _ := pix.Resolve(m.Geometry.Center)

	deg := PolarizationDegree(m)
	if !deg[p].Valid {
		t.Fatalf("observed pixel flagged invalid")
	}
	if math.Abs(deg[p].Value-0.5) > 1e-12 {
		t.Errorf("degree = %g, want 0.5", deg[p].Value)
	}

	ang := PolarizationAngle(m)
	want := 0.5 * math.Atan2(0.4, 0.3) // ~0.4636/... rad
	if math.Abs(ang[p].Value-want) > 1e-12 {
		t.Errorf("angle = %g, want %g", ang[p].Value, want)
	}

	// Unobserved pixels stay invalid, not zero-valued measurements.
	for q := range deg {
		if q != p && (deg[q].Valid || ang[q].Valid) {
			t.Fatalf("unobserved pixel %d produced a valid derived value", q)
		}
	}
}

func TestPolarizationDegreeNonPositiveIntensity(t *testing.T) {
	m, pix := mapWithPixel(t, 1.0, 0.3, 0.4)
	p, _ := pix.Resolve(m.Geometry.Center)
	m.I[p] = -0.2 // oversubtracted background

	deg := PolarizationDegree(m)
	if deg[p].Valid {
		t.Errorf("non-positive I must flag the polarization fraction invalid")
	}
	// The angle does not divide by I and stays defined.
	ang := PolarizationAngle(m)
	if !ang[p].Valid {
		t.Errorf("angle should remain valid for observed pixels")
	}
}

func TestAperturePhotometry(t *testing.T) {
	m, pix := mapWithPixel(t, 2.0, 0.5, -0.5)

	// A generous aperture around the center catches the one observed
	// pixel; a tiny aperture far away catches nothing.
	ph := AperturePhotometry(m, pix, model.Circle(m.Geometry.Center, 10*arcminToRad), false)
	if ph.Pixels != 1 {
		t.Fatalf("Pixels = %d, want 1", ph.Pixels)
	}
	if math.Abs(ph.I-2.0) > 1e-12 || math.Abs(ph.Q-0.5) > 1e-12 {
		t.Errorf("sums I=%g Q=%g, want 2.0 and 0.5", ph.I, ph.Q)
	}

	far := model.Circle(model.SkyPointing{Theta: math.Pi / 2, Phi: 2.5}, arcminToRad)
	if ph := AperturePhotometry(m, pix, far, false); ph.Pixels != 0 {
		t.Errorf("far aperture caught %d pixels, want 0", ph.Pixels)
	}
}

func TestAperturePhotometryFluxDensity(t *testing.T) {
	m, pix := mapWithPixel(t, 2.0, 0, 0)
	ph := AperturePhotometry(m, pix, model.Circle(m.Geometry.Center, 10*arcminToRad), true)
	want := 2.0 * pix.SolidAngle(0)
	if math.Abs(ph.I-want) > 1e-15 {
		t.Errorf("flux-density I = %g, want %g", ph.I, want)
	}
}

func TestEstimateBackground(t *testing.T) {
	center := model.SkyPointing{Theta: math.Pi / 2, Phi: 1}
	grid, err := NewFlatGrid(center, 20, 1.5)
	if err != nil {
		t.Fatalf("NewFlatGrid: %v", err)
	}
	acc, _ := NewAccumulator(grid, WeightByWeight)

	// Fill the whole field with a flat level of 0.75.
	for p := 0; p < grid.Npix(); p++ {
		acc.Add(model.Corrected(model.Sample{
			Pointing: grid.Center(p),
			WI:       1,
			Signal:   0.75,
			Weight:   1,
			Valid:    true,
		}))
	}
	m := acc.Finalize()

	annulus := model.Annulus(center, 5*arcminToRad, 12*arcminToRad)
	level, pixels, ok := EstimateBackground(m, grid, annulus)
	if !ok {
		t.Fatalf("annulus found no observed pixels")
	}
	if pixels == 0 {
		t.Fatalf("Pixels = 0 with ok = true")
	}
	if math.Abs(level-0.75) > 1e-12 {
		t.Errorf("level = %g, want 0.75", level)
	}

	// An annulus outside the field has nothing to average.
	empty := model.Annulus(model.SkyPointing{Theta: math.Pi / 2, Phi: 3}, arcminToRad, 2*arcminToRad)
	if _, _, ok := EstimateBackground(m, grid, empty); ok {
		t.Errorf("expected ok = false for an annulus with no observed pixels")
	}
}

func TestRegionPolarization(t *testing.T) {
	m, pix := mapWithPixel(t, 1.0, 0.3, 0.4)
	degree, angle, ok := RegionPolarization(m, pix, model.Circle(m.Geometry.Center, 10*arcminToRad))
	if !ok {
		t.Fatalf("region with an observed pixel returned ok = false")
	}
	if math.Abs(degree-0.5) > 1e-12 {
		t.Errorf("degree = %g, want 0.5", degree)
	}
	if math.Abs(angle-0.5*math.Atan2(0.4, 0.3)) > 1e-12 {
		t.Errorf("angle = %g", angle)
	}

	if _, _, ok := RegionPolarization(m, pix, model.Circle(model.SkyPointing{Theta: 1, Phi: 3}, arcminToRad)); ok {
		t.Errorf("empty region returned ok = true")
	}
}
