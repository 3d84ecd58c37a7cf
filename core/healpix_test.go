package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/stokesmap/model"
)

func TestNewHealpixValidation(t *testing.T) {
	for _, nside := range []int{0, -1, 3, 6, 12} {
		if _, err := NewHealpix(nside); err == nil {
			t.Errorf("nside %d: expected a configuration error", nside)
		}
	}
	for _, nside := range []int{1, 2, 16, 2048} {
		h, err := NewHealpix(nside)
		if err != nil {
			t.Fatalf("nside %d: %v", nside, err)
		}
		if h.Npix() != 12*nside*nside {
			t.Errorf("nside %d: Npix = %d, want %d", nside, h.Npix(), 12*nside*nside)
		}
	}
}

func TestHealpixSolidAngleSum(t *testing.T) {
	h, err := NewHealpix(8)
	if err != nil {
		t.Fatalf("NewHealpix: %v", err)
	}
	var sum float64
	for p := 0; p < h.Npix(); p++ {
		sum += h.SolidAngle(p)
	}
	if math.Abs(sum-4*math.Pi) > 1e-9 {
		t.Errorf("solid angles sum to %g, want 4*pi", sum)
	}
}

func TestHealpixRoundTrip(t *testing.T) {
	for _, nside := range []int{1, 2, 4, 16} {
		h, err := NewHealpix(nside)
		if err != nil {
			t.Fatalf("NewHealpix(%d): %v", nside, err)
		}
		for pix := 0; pix < h.Npix(); pix++ {
			got, ok := h.Resolve(h.Center(pix))
			if !ok {
				t.Fatalf("nside %d pixel %d: Resolve reported out of field", nside, pix)
			}
			if got != pix {
				t.Errorf("nside %d: pixel %d center resolved to %d", nside, pix, got)
			}
		}
	}
}

func TestHealpixCoversSphere(t *testing.T) {
	h, err := NewHealpix(4)
	if err != nil {
		t.Fatalf("NewHealpix: %v", err)
	}
	// A coarse scan over the sphere: every pointing resolves in range.
	for i := 0; i <= 60; i++ {
		theta := float64(i) / 60 * math.Pi
		for j := 0; j < 120; j++ {
			phi := float64(j) / 120 * 2 * math.Pi
			pix, ok := h.Resolve(model.SkyPointing{Theta: theta, Phi: phi})
			if !ok {
				t.Fatalf("pointing (%g, %g) reported out of field", theta, phi)
			}
			if pix < 0 || pix >= h.Npix() {
				t.Fatalf("pointing (%g, %g) resolved to out-of-range pixel %d", theta, phi, pix)
			}
		}
	}
}

func TestHealpixPoles(t *testing.T) {
	h, err := NewHealpix(2)
	if err != nil {
		t.Fatalf("NewHealpix: %v", err)
	}
	north, ok := h.Resolve(model.SkyPointing{Theta: 0, Phi: 0})
	if !ok || north < 0 || north > 3 {
		t.Errorf("north pole resolved to pixel %d, want one of the first ring", north)
	}
	south, ok := h.Resolve(model.SkyPointing{Theta: math.Pi, Phi: 0})
	if !ok || south < h.Npix()-4 {
		t.Errorf("south pole resolved to pixel %d, want one of the last ring", south)
	}
}

func TestHealpixNegativeLongitude(t *testing.T) {
	h, err := NewHealpix(4)
	if err != nil {
		t.Fatalf("NewHealpix: %v", err)
	}
	a, _ := h.Resolve(model.SkyPointing{Theta: 1.2, Phi: -0.5})
	b, _ := h.Resolve(model.SkyPointing{Theta: 1.2, Phi: 2*math.Pi - 0.5})
	if a != b {
		t.Errorf("phi -0.5 resolved to %d, phi 2*pi-0.5 to %d", a, b)
	}
}
