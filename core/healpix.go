package core

import (
	"math"

	"github.com/signalsfoundry/stokesmap/model"
)

// Healpix is the spherical, equal-area pixelization in RING ordering.
// Every pointing on the sphere resolves to exactly one of the
// 12*nside^2 pixels, each covering the same solid angle, so the solid
// angles sum to 4*pi over the full sky.
type Healpix struct {
	nside int
	npix  int
	ncap  int // pixels in the north polar cap
}

// NewHealpix validates nside (positive power of two) and builds the
// pixelization.
func NewHealpix(nside int) (*Healpix, error) {
	if nside <= 0 || nside&(nside-1) != 0 {
		return nil, &ConfigError{Field: "nside", Msg: "nside must be a positive power of two"}
	}
	return &Healpix{
		nside: nside,
		npix:  12 * nside * nside,
		ncap:  2 * nside * (nside - 1),
	}, nil
}

// Npix returns 12*nside^2.
func (h *Healpix) Npix() int { return h.npix }

// Resolve maps a pointing to its RING pixel index. The sphere is fully
// covered, so ok is always true for a valid pointing.
func (h *Healpix) Resolve(pt model.SkyPointing) (int, bool) {
	z := math.Cos(pt.Theta)
	phi := math.Mod(pt.Phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	tt := phi / (math.Pi / 2) // in [0, 4)
	nside := float64(h.nside)

	if math.Abs(z) <= 2.0/3.0 {
		// Equatorial region.
		temp1 := nside * (0.5 + tt)
		temp2 := nside * z * 0.75
		jp := int(math.Floor(temp1 - temp2)) // ascending edge line
		jm := int(math.Floor(temp1 + temp2)) // descending edge line

		ir := h.nside + 1 + jp - jm // ring number counted from z = 2/3
		kshift := 1 - ir&1
		ip := (jp + jm - h.nside + kshift + 1) / 2
		ip = modulo(ip, 4*h.nside)

		return h.ncap + (ir-1)*4*h.nside + ip, true
	}

	// Polar caps.
	tp := tt - math.Floor(tt)
	tmp := nside * math.Sqrt(3*(1-math.Abs(z)))
	jp := int(math.Floor(tp * tmp))
	jm := int(math.Floor((1 - tp) * tmp))

	ir := jp + jm + 1 // ring number counted from the closest pole
	ip := int(math.Floor(tt * float64(ir)))
	ip = modulo(ip, 4*ir)

	if z > 0 {
		return 2*ir*(ir-1) + ip, true
	}
	return h.npix - 2*ir*(ir+1) + ip, true
}

// Center returns the sky coordinates of the pixel's center.
func (h *Healpix) Center(pix int) model.SkyPointing {
	fact2 := 4.0 / float64(h.npix)

	if pix < h.ncap {
		// North polar cap.
		iring := (1 + isqrt(1+2*pix)) / 2
		iphi := pix + 1 - 2*iring*(iring-1)
		z := 1 - float64(iring*iring)*fact2
		phi := (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
		return model.SkyPointing{Theta: math.Acos(z), Phi: phi}
	}

	if pix < h.npix-h.ncap {
		// Equatorial region.
		fact1 := 2.0 / (3.0 * float64(h.nside))
		ip := pix - h.ncap
		iring := ip/(4*h.nside) + h.nside
		iphi := ip%(4*h.nside) + 1
		// Odd rings are shifted by half a pixel.
		fodd := 0.5
		if (iring+h.nside)&1 == 1 {
			fodd = 1.0
		}
		z := float64(2*h.nside-iring) * fact1
		phi := (float64(iphi) - fodd) * math.Pi / (2 * float64(h.nside))
		return model.SkyPointing{Theta: math.Acos(z), Phi: phi}
	}

	// South polar cap.
	ip := h.npix - pix
	iring := (1 + isqrt(2*ip-1)) / 2
	iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
	z := -1 + float64(iring*iring)*fact2
	phi := (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
	return model.SkyPointing{Theta: math.Acos(z), Phi: phi}
}

// SolidAngle returns 4*pi / npix, identical for every pixel.
func (h *Healpix) SolidAngle(int) float64 {
	return 4 * math.Pi / float64(h.npix)
}

// Geometry returns the construction parameters.
func (h *Healpix) Geometry() Geometry {
	return Geometry{Scheme: SchemeHealpix, Nside: h.nside}
}

// modulo returns i mod n in [0, n) for possibly negative i.
func modulo(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}

// isqrt returns floor(sqrt(v)) exactly for the argument ranges used by
// the RING index arithmetic.
func isqrt(v int) int {
	r := int(math.Sqrt(float64(v)))
	for (r+1)*(r+1) <= v {
		r++
	}
	for r*r > v {
		r--
	}
	return r
}
