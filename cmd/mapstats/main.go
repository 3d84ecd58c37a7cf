// Command mapstats reads a finished map blob and reports aggregate
// quantities: aperture photometry, region polarization, and an optional
// annulus background estimate. Output is JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math"
	"os"

	"github.com/signalsfoundry/stokesmap/coord"
	"github.com/signalsfoundry/stokesmap/core"
	"github.com/signalsfoundry/stokesmap/internal/logging"
	"github.com/signalsfoundry/stokesmap/internal/mapio"
	"github.com/signalsfoundry/stokesmap/model"
)

const arcmin = math.Pi / (180 * 60)

type regionReport struct {
	Photometry core.Photometry `json:"photometry"`
	Degree     *float64        `json:"degree,omitempty"`
	AngleRad   *float64        `json:"angle_rad,omitempty"`
}

type backgroundReport struct {
	Level  float64 `json:"level"`
	Pixels int     `json:"pixels"`
}

type report struct {
	Geometry      core.Geometry     `json:"geometry"`
	Npix          int               `json:"npix"`
	ObservedCount int               `json:"observed_count"`
	Aperture      regionReport      `json:"aperture"`
	Background    *backgroundReport `json:"background,omitempty"`
}

func main() {
	mapPath := flag.String("map", "map.siqu", "Path to the map blob to analyse")
	radius := flag.Float64("radius", 3, "Aperture radius in arcmin")
	annulusInner := flag.Float64("annulus-inner", 0, "Background annulus inner radius in arcmin; 0 disables the estimate")
	annulusOuter := flag.Float64("annulus-outer", 0, "Background annulus outer radius in arcmin")
	fluxDensity := flag.Bool("flux", false, "Weight aperture sums by pixel solid angle (flux-density integral)")
	centerLon := flag.Float64("center-lon", math.NaN(), "Region center longitude in degrees; defaults to the map's field center")
	centerLat := flag.Float64("center-lat", math.NaN(), "Region center latitude in degrees; defaults to the map's field center")
	target := flag.String("target", "", "Named target for the region center (currently: tau-a)")
	frame := flag.String("frame", "galactic", "Reference frame of the map: galactic or equatorial")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	f, err := os.Open(*mapPath)
	if err != nil {
		log.Error(ctx, "failed to open map blob", logging.String("path", *mapPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	m, err := mapio.Read(f)
	f.Close()
	if err != nil {
		log.Error(ctx, "failed to read map blob", logging.String("path", *mapPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	pix, err := core.NewPixelization(m.Geometry)
	if err != nil {
		log.Error(ctx, "map carries an unusable geometry", logging.String("error", err.Error()))
		os.Exit(1)
	}

	center := m.Geometry.Center
	switch {
	case *target == "tau-a":
		center = coord.TauACenter(*frame)
	case *target != "":
		log.Error(ctx, "unknown target", logging.String("target", *target))
		os.Exit(1)
	case !math.IsNaN(*centerLon) && !math.IsNaN(*centerLat):
		deg := math.Pi / 180
		center = coord.ToPointing(*centerLon*deg, *centerLat*deg)
	}

	out := report{
		Geometry:      m.Geometry,
		Npix:          m.Npix(),
		ObservedCount: m.ObservedCount(),
	}

	aperture := model.Circle(center, *radius*arcmin)
	out.Aperture.Photometry = core.AperturePhotometry(m, pix, aperture, *fluxDensity)
	if degree, angle, ok := core.RegionPolarization(m, pix, aperture); ok {
		out.Aperture.Degree = &degree
		out.Aperture.AngleRad = &angle
	}

	if *annulusInner > 0 && *annulusOuter > *annulusInner {
		annulus := model.Annulus(center, *annulusInner*arcmin, *annulusOuter*arcmin)
		if level, pixels, ok := core.EstimateBackground(m, pix, annulus); ok {
			out.Background = &backgroundReport{Level: level, Pixels: pixels}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error(ctx, "failed to encode report", logging.String("error", err.Error()))
		os.Exit(1)
	}
}
