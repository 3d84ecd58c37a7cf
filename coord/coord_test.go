package coord

import (
	"math"
	"testing"
)

const deg = math.Pi / 180

func TestTauAConversion(t *testing.T) {
	// The published Crab nebula coordinates in both frames must agree
	// under the rotation to a few arcseconds.
	l, b := EquatorialToGalactic(TauARADeg*deg, TauADecDeg*deg)
	tol := 5e-4 // well under the coarsest pixel size in use
	if math.Abs(l-TauAGalacticLDeg*deg) > tol {
		t.Errorf("l = %.6f deg, want %.6f", l/deg, TauAGalacticLDeg)
	}
	if math.Abs(b-TauAGalacticBDeg*deg) > tol {
		t.Errorf("b = %.6f deg, want %.6f", b/deg, TauAGalacticBDeg)
	}
}

func TestGalacticRoundTrip(t *testing.T) {
	cases := []struct{ ra, dec float64 }{
		{0, 0},
		{1.2, 0.8},
		{4.5, -1.1},
		{TauARADeg * deg, TauADecDeg * deg},
	}
	for _, tc := range cases {
		l, b := EquatorialToGalactic(tc.ra, tc.dec)
		ra, dec := GalacticToEquatorial(l, b)
		if math.Abs(ra-tc.ra) > 1e-10 || math.Abs(dec-tc.dec) > 1e-10 {
			t.Errorf("(%g, %g) round-tripped to (%g, %g)", tc.ra, tc.dec, ra, dec)
		}
	}
}

func TestPointingConversion(t *testing.T) {
	pt := ToPointing(1.5, 0.3)
	if math.Abs(pt.Theta-(math.Pi/2-0.3)) > 1e-15 || math.Abs(pt.Phi-1.5) > 1e-15 {
		t.Errorf("ToPointing = %+v", pt)
	}
	lon, lat := FromPointing(pt)
	if math.Abs(lon-1.5) > 1e-15 || math.Abs(lat-0.3) > 1e-15 {
		t.Errorf("FromPointing = (%g, %g)", lon, lat)
	}

	// Negative longitudes wrap into [0, 2*pi).
	if pt := ToPointing(-0.5, 0); pt.Phi < 0 || pt.Phi >= 2*math.Pi {
		t.Errorf("negative longitude not wrapped: %g", pt.Phi)
	}
}

func TestTauACenterFrames(t *testing.T) {
	gal := TauACenter("galactic")
	eq := TauACenter("equatorial")
	if math.Abs(gal.Phi-TauAGalacticLDeg*deg) > 1e-12 {
		t.Errorf("galactic Phi = %g", gal.Phi)
	}
	if math.Abs(eq.Phi-TauARADeg*deg) > 1e-12 {
		t.Errorf("equatorial Phi = %g", eq.Phi)
	}
	if gal == eq {
		t.Errorf("frames produced identical pointings")
	}
}
