package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/stokesmap/model"
)

// PipelineCollector bundles Prometheus metrics for map-making runs and
// satisfies the core pipeline's PassRecorder interface.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	SamplesAcceptedTotal prometheus.Counter
	SamplesRejectedTotal *prometheus.CounterVec
	PassDuration         prometheus.Histogram
	ObservedPixels       prometheus.Gauge
}

// NewPipelineCollector registers the pipeline metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	accepted, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapmaking_samples_accepted_total",
		Help: "Total number of samples accumulated into maps.",
	}), "mapmaking_samples_accepted_total")
	if err != nil {
		return nil, err
	}

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapmaking_samples_rejected_total",
		Help: "Total number of rejected samples, labeled by rejection reason.",
	}, []string{"reason"})
	rejected, err = registerCounterVec(reg, rejected, "mapmaking_samples_rejected_total")
	if err != nil {
		return nil, err
	}
	// Pre-create every reason label so scrapes always expose the full
	// rejection taxonomy.
	for _, reason := range model.Reasons() {
		rejected.WithLabelValues(string(reason))
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapmaking_pass_duration_seconds",
		Help:    "Wall-clock duration of one binning pass.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}), "mapmaking_pass_duration_seconds")
	if err != nil {
		return nil, err
	}

	observed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapmaking_observed_pixels",
		Help: "Observed pixel count of the most recently finished map.",
	}), "mapmaking_observed_pixels")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:             gatherer,
		SamplesAcceptedTotal: accepted,
		SamplesRejectedTotal: rejected,
		PassDuration:         duration,
		ObservedPixels:       observed,
	}, nil
}

// SamplesAccepted implements the pipeline's PassRecorder.
func (c *PipelineCollector) SamplesAccepted(n uint64) {
	if c == nil || c.SamplesAcceptedTotal == nil {
		return
	}
	c.SamplesAcceptedTotal.Add(float64(n))
}

// SamplesRejected implements the pipeline's PassRecorder.
func (c *PipelineCollector) SamplesRejected(reason model.RejectReason, n uint64) {
	if c == nil || c.SamplesRejectedTotal == nil {
		return
	}
	c.SamplesRejectedTotal.WithLabelValues(string(reason)).Add(float64(n))
}

// PassCompleted implements the pipeline's PassRecorder.
func (c *PipelineCollector) PassCompleted(duration time.Duration, observedPixels int) {
	if c == nil {
		return
	}
	if c.PassDuration != nil {
		c.PassDuration.Observe(duration.Seconds())
	}
	if c.ObservedPixels != nil {
		c.ObservedPixels.Set(float64(observedPixels))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
