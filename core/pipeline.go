package core

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/stokesmap/calib"
	"github.com/signalsfoundry/stokesmap/internal/logging"
	"github.com/signalsfoundry/stokesmap/model"
)

// PassRecorder receives pipeline accounting for export as metrics.
// A nil recorder is allowed; the pipeline then only keeps RunStats.
type PassRecorder interface {
	SamplesAccepted(n uint64)
	SamplesRejected(reason model.RejectReason, n uint64)
	PassCompleted(duration time.Duration, observedPixels int)
}

// Result is the outcome of one pass: the finished map plus the full
// rejection/statistics summary. A pass always completes with both.
type Result struct {
	Map   *Map
	Stats StatsSnapshot
}

// Pipeline runs one configured processing pass: stream -> corrections
// -> binning -> finalized map. The two-pass background workflow is the
// caller invoking two pipelines with different configuration, never a
// loop in here.
type Pipeline struct {
	cfg      Config
	pix      Pixelization
	chain    Chain
	log      logging.Logger
	recorder PassRecorder
	tracer   trace.Tracer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r PassRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline validates cfg, builds the pixelization and the canonical
// correction chain, and returns a ready pipeline. All configuration
// errors surface here, before any sample is touched.
func NewPipeline(cfg Config, table *calib.Table, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pix, err := NewPixelization(cfg.Geometry)
	if err != nil {
		return nil, err
	}
	chain, err := buildChain(cfg, table)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		pix:    pix,
		chain:  chain,
		log:    logging.Noop(),
		tracer: otel.Tracer("stokesmap/core"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// buildChain assembles the corrections in canonical order: window
// filter, response correction, colour correction (with unit
// conversion), background subtraction.
func buildChain(cfg Config, table *calib.Table) (Chain, error) {
	var chain Chain
	if cfg.Window != nil {
		f, err := NewWindowFilter(cfg.Window.MinChannel, cfg.Window.MaxChannel)
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	if cfg.Response {
		r, err := NewResponseCorrection(table)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}
	if cfg.Colour != nil {
		cc, err := NewColourCorrection(cfg.Colour.Alpha, cfg.Colour.BandLow, cfg.Colour.BandHigh, cfg.Colour.RefFreq, table, cfg.Colour.UseTabulated)
		if err != nil {
			return nil, err
		}
		chain = append(chain, cc)
	}
	if cfg.Background != nil {
		bg, err := NewBackgroundSubtraction(*cfg.Background.Level, cfg.Background.Units)
		if err != nil {
			return nil, err
		}
		chain = append(chain, bg)
	}
	return chain, nil
}

// Pixelization returns the pass's pixelization, shared read-only.
func (p *Pipeline) Pixelization() Pixelization { return p.pix }

// Run executes one full pass over the source. Per-sample problems are
// counted, never fatal; only a broken source stream or an internal
// configuration fault returns an error.
func (p *Pipeline) Run(ctx context.Context, src SampleSource) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "mapmaking.pass",
		trace.WithAttributes(
			attribute.String("pixelization", string(p.cfg.Geometry.Scheme)),
			attribute.Int("corrections", len(p.chain)),
		))
	defer span.End()

	stats := NewRunStats()
	start := time.Now()

	var m *Map
	var err error
	if p.cfg.Workers > 1 {
		m, err = p.runParallel(src, stats)
	} else {
		m, err = p.runSequential(src, stats)
	}
	if err != nil {
		return nil, err
	}

	snap := stats.Snapshot()
	observed := m.ObservedCount()
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int64("samples.accepted", int64(snap.Accepted)),
		attribute.Int64("samples.total", int64(snap.Total())),
		attribute.Int("pixels.observed", observed),
	)
	p.record(snap, elapsed, observed)
	p.log.Info(ctx, "pass complete",
		logging.Int("accepted", int(snap.Accepted)),
		logging.Int("total", int(snap.Total())),
		logging.Int("observed_pixels", observed),
		logging.String("duration", elapsed.String()),
	)

	return &Result{Map: m, Stats: snap}, nil
}

func (p *Pipeline) runSequential(src SampleSource, stats *RunStats) (*Map, error) {
	acc, err := NewAccumulator(p.pix, p.cfg.weighting())
	if err != nil {
		return nil, err
	}
	for {
		s, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cs, ok := p.correct(s, stats)
		if !ok {
			continue
		}
		if reason := acc.Add(cs); reason != "" {
			stats.Reject(reason)
			continue
		}
		stats.Accept()
	}
	return acc.Finalize(), nil
}

func (p *Pipeline) runParallel(src SampleSource, stats *RunStats) (*Map, error) {
	var corrected []model.CorrectedSample
	for {
		s, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cs, ok := p.correct(s, stats)
		if !ok {
			continue
		}
		corrected = append(corrected, cs)
	}
	return BinParallel(corrected, p.pix, p.cfg.weighting(), p.cfg.Workers, stats)
}

// correct applies the validity flag and the correction chain, counting
// rejections.
func (p *Pipeline) correct(s model.Sample, stats *RunStats) (model.CorrectedSample, bool) {
	if !s.Valid {
		stats.Reject(model.RejectInvalidSample)
		return model.CorrectedSample{}, false
	}
	cs, reason, ok := p.chain.Apply(model.Corrected(s))
	if !ok {
		stats.Reject(reason)
		return model.CorrectedSample{}, false
	}
	return cs, true
}

func (p *Pipeline) record(snap StatsSnapshot, elapsed time.Duration, observed int) {
	if p.recorder == nil {
		return
	}
	p.recorder.SamplesAccepted(snap.Accepted)
	for reason, c := range snap.Rejected {
		if c > 0 {
			p.recorder.SamplesRejected(reason, c)
		}
	}
	p.recorder.PassCompleted(elapsed, observed)
}
