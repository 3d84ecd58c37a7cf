// Command mapmaker runs the map-making pipeline over a sample stream
// and writes the finished Stokes map. With a background annulus it runs
// the two-pass workflow: a first pass without subtraction to estimate
// the background level, then a full pass with the estimate applied.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/stokesmap/calib"
	"github.com/signalsfoundry/stokesmap/coord"
	"github.com/signalsfoundry/stokesmap/core"
	"github.com/signalsfoundry/stokesmap/internal/logging"
	"github.com/signalsfoundry/stokesmap/internal/mapio"
	"github.com/signalsfoundry/stokesmap/internal/observability"
	"github.com/signalsfoundry/stokesmap/model"
)

const arcmin = math.Pi / (180 * 60)

func main() {
	configPath := flag.String("config", "configs/run.json", "Path to the run configuration JSON")
	calibPath := flag.String("calibration", "", "Path to the calibration table JSON (required when response or tabulated colour correction is enabled)")
	samplesPath := flag.String("samples", "", "Path to the NDJSON sample stream")
	outPath := flag.String("out", "map.siqu", "Output path for the binary map blob")
	jsonPath := flag.String("json", "", "Optional output path for a JSON map export")
	statsPath := flag.String("stats", "", "Optional output path for run statistics JSON")
	codecName := flag.String("codec", "zstd", "Blob payload compression: none, zstd, or lz4")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	bgInner := flag.Float64("bg-inner", 0, "Background annulus inner radius in arcmin; 0 disables the estimation pass")
	bgOuter := flag.Float64("bg-outer", 0, "Background annulus outer radius in arcmin")
	bgUnits := flag.String("bg-units", "", "Units of the background estimate; defaults to MJy/sr when colour correction is enabled")
	bgTarget := flag.String("bg-target", "", "Named target for the background annulus center (currently: tau-a)")
	bgFrame := flag.String("bg-frame", "galactic", "Reference frame of the map when resolving -bg-target")
	bgLon := flag.Float64("bg-center-lon", math.NaN(), "Background annulus center longitude in degrees")
	bgLat := flag.Float64("bg-center-lat", math.NaN(), "Background annulus center latitude in degrees")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	if *samplesPath == "" {
		log.Error(ctx, "no sample stream given; pass -samples")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error(ctx, "invalid run configuration", logging.String("path", *configPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	table, err := loadCalibration(*calibPath)
	if err != nil {
		log.Error(ctx, "invalid calibration table", logging.String("path", *calibPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	codecType, err := mapio.ParseCodecType(*codecName)
	if err != nil {
		log.Error(ctx, "invalid codec", logging.String("error", err.Error()))
		os.Exit(1)
	}
	codec, err := mapio.NewCodec(codecType)
	if err != nil {
		log.Error(ctx, "invalid codec", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	if *bgInner > 0 || *bgOuter > 0 {
		center, err := annulusCenter(cfg, *bgTarget, *bgFrame, *bgLon, *bgLat)
		if err != nil {
			log.Error(ctx, "cannot place the background annulus", logging.String("error", err.Error()))
			os.Exit(1)
		}
		level, err := estimateBackground(ctx, cfg, table, *samplesPath, center, *bgInner, *bgOuter, log, collector)
		if err != nil {
			log.Error(ctx, "background estimation failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		units := model.Unit(*bgUnits)
		if units == "" {
			if cfg.Colour == nil {
				log.Error(ctx, "cannot infer background units without colour correction; pass -bg-units")
				os.Exit(1)
			}
			units = model.UnitMJySr
		}
		cfg.Background = &core.BackgroundConfig{Level: &level, Units: units}
	}

	result, err := runPass(ctx, cfg, table, *samplesPath, log, collector)
	if err != nil {
		log.Error(ctx, "pass failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if err := writeBlob(*outPath, result.Map, codec); err != nil {
		log.Error(ctx, "failed to write map blob", logging.String("path", *outPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "wrote map blob", logging.String("path", *outPath), logging.String("codec", *codecName))

	if *jsonPath != "" {
		if err := writeJSONExport(*jsonPath, result.Map); err != nil {
			log.Error(ctx, "failed to write JSON export", logging.String("path", *jsonPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if *statsPath != "" {
		if err := writeStats(*statsPath, result.Stats); err != nil {
			log.Error(ctx, "failed to write run statistics", logging.String("path", *statsPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func loadConfig(path string) (core.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Config{}, err
	}
	defer f.Close()
	return core.LoadConfig(f)
}

func loadCalibration(path string) (*calib.Table, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return calib.Load(f)
}

// runPass opens the sample stream and executes one configured pass.
// The stream is reopened per pass so the two-pass workflow reads the
// same data twice.
func runPass(ctx context.Context, cfg core.Config, table *calib.Table, samplesPath string, log logging.Logger, collector *observability.PipelineCollector) (*core.Result, error) {
	pipeline, err := core.NewPipeline(cfg, table, core.WithLogger(log), core.WithRecorder(collector))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(samplesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return pipeline.Run(ctx, core.NewNDJSONSource(f))
}

// annulusCenter resolves where the background annulus sits. A flat
// grid defaults to its tangent point; a HEALPix geometry covers the
// whole sphere and has no implied center, so the caller must name one.
func annulusCenter(cfg core.Config, target, frame string, lonDeg, latDeg float64) (model.SkyPointing, error) {
	const deg = math.Pi / 180
	switch {
	case target == "tau-a":
		return coord.TauACenter(frame), nil
	case target != "":
		return model.SkyPointing{}, fmt.Errorf("unknown background target %q", target)
	case !math.IsNaN(lonDeg) && !math.IsNaN(latDeg):
		return coord.ToPointing(lonDeg*deg, latDeg*deg), nil
	case cfg.Geometry.Scheme == core.SchemeFlatGrid:
		return cfg.Geometry.Center, nil
	}
	return model.SkyPointing{}, fmt.Errorf("a %s geometry needs an explicit annulus center; pass -bg-target or -bg-center-lon/-bg-center-lat", cfg.Geometry.Scheme)
}

// estimateBackground runs a first pass with subtraction disabled and
// averages I over an annulus around center.
func estimateBackground(ctx context.Context, cfg core.Config, table *calib.Table, samplesPath string, center model.SkyPointing, innerArcmin, outerArcmin float64, log logging.Logger, collector *observability.PipelineCollector) (float64, error) {
	if innerArcmin <= 0 || outerArcmin <= innerArcmin {
		return 0, fmt.Errorf("background annulus radii must satisfy 0 < inner < outer, got %g and %g arcmin", innerArcmin, outerArcmin)
	}

	estCfg := cfg
	estCfg.Background = nil
	result, err := runPass(ctx, estCfg, table, samplesPath, log, collector)
	if err != nil {
		return 0, err
	}

	pix, err := core.NewPixelization(cfg.Geometry)
	if err != nil {
		return 0, err
	}
	annulus := model.Annulus(center, innerArcmin*arcmin, outerArcmin*arcmin)
	level, pixels, ok := core.EstimateBackground(result.Map, pix, annulus)
	if !ok {
		return 0, fmt.Errorf("background annulus contains no observed pixels")
	}
	log.Info(ctx, "estimated background",
		logging.Float64("level", level),
		logging.Int("pixels", pixels),
		logging.Float64("inner_arcmin", innerArcmin),
		logging.Float64("outer_arcmin", outerArcmin),
	)
	return level, nil
}

func writeBlob(path string, m *core.Map, codec mapio.Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mapio.Write(f, m, codec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSONExport(path string, m *core.Map) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mapio.WriteJSON(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeStats(path string, snap core.StatsSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
