package core

import (
	"fmt"

	"github.com/signalsfoundry/stokesmap/model"
)

// WeightScheme selects how per-pixel Stokes sums are normalized.
type WeightScheme string

const (
	// WeightByWeight normalizes by the accumulated statistical weight.
	WeightByWeight WeightScheme = "weight"
	// WeightByHits normalizes by the hit count.
	WeightByHits WeightScheme = "hits"
)

func (w WeightScheme) valid() bool {
	return w == WeightByWeight || w == WeightByHits
}

// Map is the finished product of one binning pass: per-pixel Stokes
// I/Q/U estimates, hit counts, and accumulated weights. Pixels with
// no contributing samples carry Observed=false rather than a numeric
// sentinel, so "no data" is never confusable with a measured zero.
// A Map is immutable once produced by Finalize.
type Map struct {
	Geometry Geometry

	I        []float64
	Q        []float64
	U        []float64
	Weight   []float64
	Hits     []uint64
	Observed []bool
}

// Npix returns the pixel count.
func (m *Map) Npix() int { return len(m.I) }

// ObservedCount returns how many pixels received at least one sample.
func (m *Map) ObservedCount() int {
	n := 0
	for _, o := range m.Observed {
		if o {
			n++
		}
	}
	return n
}

// kahanSum is a compensated running sum, keeping accumulation stable
// over very large sample counts.
type kahanSum struct {
	sum float64
	c   float64
}

func (k *kahanSum) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// Accumulator owns the running per-pixel sums of one binning pass.
// It is not safe for concurrent use; parallel binning gives each
// worker a private Accumulator and merges them at the end.
type Accumulator struct {
	pix    Pixelization
	scheme WeightScheme

	i      []kahanSum
	q      []kahanSum
	u      []kahanSum
	weight []kahanSum
	hits   []uint64
}

// NewAccumulator creates a zeroed accumulator for one pass.
func NewAccumulator(pix Pixelization, scheme WeightScheme) (*Accumulator, error) {
	if pix == nil {
		return nil, &ConfigError{Field: "pixelization", Msg: "accumulator requires a pixelization"}
	}
	if !scheme.valid() {
		return nil, &ConfigError{Field: "weighting", Msg: fmt.Sprintf("unknown weighting scheme %q", scheme)}
	}
	n := pix.Npix()
	return &Accumulator{
		pix:    pix,
		scheme: scheme,
		i:      make([]kahanSum, n),
		q:      make([]kahanSum, n),
		u:      make([]kahanSum, n),
		weight: make([]kahanSum, n),
		hits:   make([]uint64, n),
	}, nil
}

// Add accumulates one corrected sample. The returned reason is empty
// when the sample contributed; otherwise it names why the sample was
// excluded (invalid pointing or out-of-field resolution). Exclusions
// are never silent: the caller records them in the run statistics.
func (a *Accumulator) Add(s model.CorrectedSample) model.RejectReason {
	if !s.Pointing.IsValid() {
		return model.RejectInvalidPointing
	}
	pix, ok := a.pix.Resolve(s.Pointing)
	if !ok {
		return model.RejectOutOfField
	}

	w := s.EffectiveWeight()
	v := s.Signal
	a.i[pix].add(w * v * s.WI)
	a.q[pix].add(w * v * s.WQ)
	a.u[pix].add(w * v * s.WU)
	a.weight[pix].add(w)
	a.hits[pix]++
	return ""
}

// Merge folds other into a. Both accumulators must share the same
// pixelization geometry and weighting scheme. Pixel-wise summation is
// associative and commutative, so merging partial accumulators from
// disjoint sample batches is equivalent to a single sequential pass.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil {
		return nil
	}
	if a.pix.Npix() != other.pix.Npix() || a.pix.Geometry() != other.pix.Geometry() {
		return fmt.Errorf("cannot merge accumulators with different pixelizations")
	}
	if a.scheme != other.scheme {
		return fmt.Errorf("cannot merge accumulators with different weighting schemes")
	}
	for p := range a.i {
		a.i[p].add(other.i[p].sum)
		a.q[p].add(other.q[p].sum)
		a.u[p].add(other.u[p].sum)
		a.weight[p].add(other.weight[p].sum)
		a.hits[p] += other.hits[p]
	}
	return nil
}

// Finalize normalizes the accumulated sums into a Map. Pixels with no
// hits (or, under weight normalization, a non-positive accumulated
// weight) are left unobserved. The accumulator must not be reused
// after Finalize.
func (a *Accumulator) Finalize() *Map {
	n := a.pix.Npix()
	m := &Map{
		Geometry: a.pix.Geometry(),
		I:        make([]float64, n),
		Q:        make([]float64, n),
		U:        make([]float64, n),
		Weight:   make([]float64, n),
		Hits:     make([]uint64, n),
		Observed: make([]bool, n),
	}
	for p := 0; p < n; p++ {
		m.Hits[p] = a.hits[p]
		m.Weight[p] = a.weight[p].sum
		if a.hits[p] == 0 {
			continue
		}
		var denom float64
		switch a.scheme {
		case WeightByHits:
			denom = float64(a.hits[p])
		default:
			denom = a.weight[p].sum
		}
		if denom <= 0 {
			continue
		}
		m.I[p] = a.i[p].sum / denom
		m.Q[p] = a.q[p].sum / denom
		m.U[p] = a.u[p].sum / denom
		m.Observed[p] = true
	}
	return m
}

// Bin runs one full sequential binning pass over samples, recording
// exclusions in stats. An empty input yields a fully unobserved Map.
func Bin(samples []model.CorrectedSample, pix Pixelization, scheme WeightScheme, stats *RunStats) (*Map, error) {
	acc, err := NewAccumulator(pix, scheme)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if reason := acc.Add(s); reason != "" {
			stats.Reject(reason)
			continue
		}
		stats.Accept()
	}
	return acc.Finalize(), nil
}
