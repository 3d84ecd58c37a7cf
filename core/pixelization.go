package core

import (
	"fmt"

	"github.com/signalsfoundry/stokesmap/model"
)

// Scheme identifies a pixelization variant.
type Scheme string

const (
	// SchemeHealpix is the global, equal-area spherical pixelization
	// (RING ordering).
	SchemeHealpix Scheme = "healpix"
	// SchemeFlatGrid is a local square grid under the small-angle
	// approximation, centered on a target.
	SchemeFlatGrid Scheme = "flatgrid"
)

// Geometry holds the parameters of a pixelization. It is what gets
// persisted alongside a map so the pixelization can be reconstructed.
type Geometry struct {
	Scheme Scheme `json:"scheme"`

	// Nside is the HEALPix resolution parameter (power of two).
	Nside int `json:"nside,omitempty"`

	// Side is the flat-grid pixel count per side; PixelSizeArcmin is
	// the angular pixel size; Center is the grid's tangent point.
	Side            int               `json:"side,omitempty"`
	PixelSizeArcmin float64           `json:"pixel_size_arcmin,omitempty"`
	Center          model.SkyPointing `json:"center,omitempty"`
}

// Pixelization is a deterministic, invertible mapping between sky
// coordinates and a finite set of pixel indices. Indices are stable
// integers in [0, Npix). The binning engine is written against this
// interface and never against a concrete variant.
type Pixelization interface {
	// Npix returns the total pixel count.
	Npix() int
	// Resolve maps a pointing to its pixel index. ok is false when the
	// pointing falls outside the covered field (possible only for the
	// flat-grid variant). The pointing must already be valid.
	Resolve(pt model.SkyPointing) (pix int, ok bool)
	// Center returns the sky coordinates of a pixel's center.
	// pix must be in [0, Npix).
	Center(pix int) model.SkyPointing
	// SolidAngle returns the pixel's solid angle in steradians.
	SolidAngle(pix int) float64
	// Geometry returns the parameters this pixelization was built from.
	Geometry() Geometry
}

// ConfigError reports an invalid pixelization or run configuration.
// It is fatal and raised before any processing begins.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// NewPixelization constructs the variant described by g, validating
// its parameters up front.
func NewPixelization(g Geometry) (Pixelization, error) {
	switch g.Scheme {
	case SchemeHealpix:
		return NewHealpix(g.Nside)
	case SchemeFlatGrid:
		return NewFlatGrid(g.Center, g.Side, g.PixelSizeArcmin)
	default:
		return nil, &ConfigError{Field: "scheme", Msg: fmt.Sprintf("unknown pixelization scheme %q", g.Scheme)}
	}
}
