package model

// RegionKind identifies the shape of a sky region.
type RegionKind string

const (
	RegionKindCircle  RegionKind = "circle"
	RegionKindAnnulus RegionKind = "annulus"
)

// Region defines a sky area for aperture photometry. All radii are
// angular, in radians. A circle uses Radius; an annulus uses Inner and
// Outer (inclusive on both bounds).
type Region struct {
	Kind   RegionKind
	Center SkyPointing
	Radius float64
	Inner  float64
	Outer  float64
}

// Circle builds a circular region.
func Circle(center SkyPointing, radius float64) Region {
	return Region{Kind: RegionKindCircle, Center: center, Radius: radius}
}

// Annulus builds an annular region, typically chosen to exclude target
// emission when estimating background.
func Annulus(center SkyPointing, inner, outer float64) Region {
	return Region{Kind: RegionKindAnnulus, Center: center, Inner: inner, Outer: outer}
}
