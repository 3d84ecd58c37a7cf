package core

import (
	"math"

	"github.com/signalsfoundry/stokesmap/model"
)

const arcminToRad = math.Pi / (180.0 * 60.0)

// FlatGrid is a square tangent-plane pixelization around a target,
// valid under the small-angle approximation. With the default field
// (80 pixels per side, 1.5 arcmin pixels) it covers a 2 degree field
// around the Crab nebula.
//
// Pixel (ix, iy) maps to index iy*side + ix. The x axis runs along
// increasing longitude (scaled by sin of the colatitude at the center
// so pixels stay square on the sky) and the y axis toward decreasing
// colatitude (north).
type FlatGrid struct {
	center  model.SkyPointing
	side    int
	pixSize float64 // radians
	cosLat  float64 // sin(center colatitude)
}

// NewFlatGrid validates the parameters and builds the grid.
func NewFlatGrid(center model.SkyPointing, side int, pixelSizeArcmin float64) (*FlatGrid, error) {
	if side <= 0 {
		return nil, &ConfigError{Field: "side", Msg: "pixel count per side must be positive"}
	}
	if pixelSizeArcmin <= 0 {
		return nil, &ConfigError{Field: "pixel_size_arcmin", Msg: "pixel size must be positive"}
	}
	if !center.IsValid() {
		return nil, &ConfigError{Field: "center", Msg: "grid center is not a valid sky pointing"}
	}
	cosLat := math.Sin(center.Theta)
	if cosLat <= 0 {
		// A tangent plane at the pole has no well-defined longitude axis.
		return nil, &ConfigError{Field: "center", Msg: "grid center must not be at a pole"}
	}
	return &FlatGrid{
		center:  center,
		side:    side,
		pixSize: pixelSizeArcmin * arcminToRad,
		cosLat:  cosLat,
	}, nil
}

// Npix returns side*side.
func (g *FlatGrid) Npix() int { return g.side * g.side }

// Resolve projects the pointing onto the tangent plane and returns the
// enclosing pixel. ok is false when the pointing falls outside the
// square extent.
func (g *FlatGrid) Resolve(pt model.SkyPointing) (int, bool) {
	dx, dy := g.project(pt)
	half := float64(g.side) / 2
	ix := int(math.Floor(dx/g.pixSize + half))
	iy := int(math.Floor(dy/g.pixSize + half))
	if ix < 0 || ix >= g.side || iy < 0 || iy >= g.side {
		return 0, false
	}
	return iy*g.side + ix, true
}

// Center returns the sky coordinates of the pixel's center.
func (g *FlatGrid) Center(pix int) model.SkyPointing {
	ix := pix % g.side
	iy := pix / g.side
	half := float64(g.side) / 2
	dx := (float64(ix) + 0.5 - half) * g.pixSize
	dy := (float64(iy) + 0.5 - half) * g.pixSize
	theta := g.center.Theta - dy
	phi := math.Mod(g.center.Phi+dx/g.cosLat, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return model.SkyPointing{Theta: theta, Phi: phi}
}

// SolidAngle returns the flat-sky pixel area, identical for every pixel.
func (g *FlatGrid) SolidAngle(int) float64 { return g.pixSize * g.pixSize }

// Geometry returns the construction parameters.
func (g *FlatGrid) Geometry() Geometry {
	return Geometry{
		Scheme:          SchemeFlatGrid,
		Side:            g.side,
		PixelSizeArcmin: g.pixSize / arcminToRad,
		Center:          g.center,
	}
}

// project returns tangent-plane offsets (dx east, dy north) in radians.
func (g *FlatGrid) project(pt model.SkyPointing) (dx, dy float64) {
	dphi := pt.Phi - g.center.Phi
	// Wrap the longitude difference into (-pi, pi].
	for dphi > math.Pi {
		dphi -= 2 * math.Pi
	}
	for dphi <= -math.Pi {
		dphi += 2 * math.Pi
	}
	dx = dphi * g.cosLat
	dy = g.center.Theta - pt.Theta
	return dx, dy
}
