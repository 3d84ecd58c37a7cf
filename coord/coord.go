// Package coord converts sky coordinates between the equatorial
// (J2000) and galactic reference frames. The conversion is a pure,
// fixed rotation: callers apply it before or after map processing,
// never inside the binning loop.
package coord

import (
	"math"

	"github.com/signalsfoundry/stokesmap/model"
)

// J2000 orientation of the galactic frame.
const (
	// Equatorial coordinates of the north galactic pole, radians.
	raNGP  = 192.85948 * math.Pi / 180
	decNGP = 27.12825 * math.Pi / 180
	// Galactic longitude of the north celestial pole, radians.
	lNCP = 122.93192 * math.Pi / 180
)

// Crab nebula (Tau-A / M1) target coordinates, degrees, in both frames.
const (
	TauAGalacticLDeg = 184.5574
	TauAGalacticBDeg = -5.7843

	TauARADeg  = 83.63304
	TauADecDeg = 22.01449
)

// EquatorialToGalactic converts right ascension and declination to
// galactic longitude and latitude. All angles are in radians;
// longitude is returned in [0, 2*pi).
func EquatorialToGalactic(ra, dec float64) (l, b float64) {
	sinDec, cosDec := math.Sincos(dec)
	sinDRA, cosDRA := math.Sincos(ra - raNGP)
	sinPole, cosPole := math.Sincos(decNGP)

	sinB := sinDec*sinPole + cosDec*cosPole*cosDRA
	b = math.Asin(clamp(sinB))

	y := cosDec * sinDRA
	x := sinDec*cosPole - cosDec*sinPole*cosDRA
	l = lNCP - math.Atan2(y, x)
	return wrap(l), b
}

// GalacticToEquatorial is the inverse rotation. All angles are in
// radians; right ascension is returned in [0, 2*pi).
func GalacticToEquatorial(l, b float64) (ra, dec float64) {
	sinB, cosB := math.Sincos(b)
	sinDL, cosDL := math.Sincos(lNCP - l)
	sinPole, cosPole := math.Sincos(decNGP)

	sinDec := sinB*sinPole + cosB*cosPole*cosDL
	dec = math.Asin(clamp(sinDec))

	y := cosB * sinDL
	x := sinB*cosPole - cosB*sinPole*cosDL
	ra = raNGP + math.Atan2(y, x)
	return wrap(ra), dec
}

// ToPointing converts a longitude/latitude pair (radians) to the
// colatitude/longitude convention used by samples and pixelizations.
func ToPointing(lon, lat float64) model.SkyPointing {
	return model.SkyPointing{Theta: math.Pi/2 - lat, Phi: wrap(lon)}
}

// FromPointing is the inverse of ToPointing.
func FromPointing(pt model.SkyPointing) (lon, lat float64) {
	return pt.Phi, math.Pi/2 - pt.Theta
}

// TauACenter returns the Crab nebula pointing in the requested frame
// ("galactic" or "equatorial"), the pipeline's default target.
func TauACenter(frame string) model.SkyPointing {
	deg := math.Pi / 180
	if frame == "equatorial" {
		return ToPointing(TauARADeg*deg, TauADecDeg*deg)
	}
	return ToPointing(TauAGalacticLDeg*deg, TauAGalacticBDeg*deg)
}

func wrap(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
