package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/stokesmap/calib"
	"github.com/signalsfoundry/stokesmap/model"
)

func testTable() *calib.Table {
	return calib.NewTable(map[model.CalibrationTag]calib.Record{
		{Detector: "du1", Channel: 5}: {Efficiency: 0.8, UnitScale: 2.0},
		{Detector: "du1", Channel: 3}: {Efficiency: 0.5, ColourCoeff: 1.1, UnitScale: 1.0},
	})
}

func eventSample(channel, signal float64) model.CorrectedSample {
	return model.Corrected(model.Sample{
		Pointing: model.SkyPointing{Theta: 1.5, Phi: 0.2},
		WI:       1,
		Signal:   signal,
		Units:    model.UnitCounts,
		Tag:      model.CalibrationTag{Detector: "du1", Channel: channel},
		Valid:    true,
	})
}

func TestWindowFilter(t *testing.T) {
	f, err := NewWindowFilter(2, 8)
	if err != nil {
		t.Fatalf("NewWindowFilter: %v", err)
	}

	cases := []struct {
		channel float64
		pass    bool
	}{
		{5, true},
		{2, true}, // inclusive bounds
		{8, true},
		{1.9, false},
		{10, false},
		{math.NaN(), false}, // an unusable tag never enters the map
	}
	for _, tc := range cases {
		out, reason, ok := f.Apply(eventSample(tc.channel, 1))
		if ok != tc.pass {
			t.Errorf("channel %g: pass = %v, want %v", tc.channel, ok, tc.pass)
		}
		if !ok && reason != model.RejectOutOfWindow {
			t.Errorf("channel %g: reason = %q, want %q", tc.channel, reason, model.RejectOutOfWindow)
		}
		if ok && out.Signal != 1 {
			t.Errorf("channel %g: window filter modified the signal", tc.channel)
		}
	}

	if _, err := NewWindowFilter(8, 2); err == nil {
		t.Errorf("inverted window bounds: expected a configuration error")
	}
}

func TestResponseCorrection(t *testing.T) {
	r, err := NewResponseCorrection(testTable())
	if err != nil {
		t.Fatalf("NewResponseCorrection: %v", err)
	}

	out, _, ok := r.Apply(eventSample(5, 4))
	if !ok {
		t.Fatalf("known tag was rejected")
	}
	if out.Signal != 5 { // 4 / 0.8
		t.Errorf("Signal = %g, want 5", out.Signal)
	}

	_, reason, ok := r.Apply(eventSample(7, 4))
	if ok {
		t.Fatalf("unknown tag was accepted")
	}
	if reason != model.RejectCalibrationMissing {
		t.Errorf("reason = %q, want %q", reason, model.RejectCalibrationMissing)
	}

	if _, err := NewResponseCorrection(nil); err == nil {
		t.Errorf("nil table: expected a configuration error")
	}
}

func TestColourCorrectionConvertsUnits(t *testing.T) {
	cc, err := NewColourCorrection(-0.28, 100, 200, 143, testTable(), false)
	if err != nil {
		t.Fatalf("NewColourCorrection: %v", err)
	}

	out, _, ok := cc.Apply(eventSample(5, 3))
	if !ok {
		t.Fatalf("known tag was rejected")
	}
	want := 3 * PowerLawBandFactor(-0.28, 100, 200, 143) * 2.0
	if math.Abs(out.Signal-want) > 1e-12 {
		t.Errorf("Signal = %g, want %g", out.Signal, want)
	}
	if out.Units != model.UnitMJySr {
		t.Errorf("Units = %q, want %q", out.Units, model.UnitMJySr)
	}
}

func TestColourCorrectionNotIdempotent(t *testing.T) {
	cc, err := NewColourCorrection(-0.28, 100, 200, 143, testTable(), false)
	if err != nil {
		t.Fatalf("NewColourCorrection: %v", err)
	}

	once, _, _ := cc.Apply(eventSample(5, 3))
	twice, _, ok := cc.Apply(once)
	if !ok {
		t.Fatalf("second application was rejected")
	}
	if twice.Signal == once.Signal {
		t.Errorf("double application left the signal unchanged; the correction must compound")
	}
}

func TestColourCorrectionDeterministic(t *testing.T) {
	cc, err := NewColourCorrection(-0.28, 100, 200, 143, testTable(), false)
	if err != nil {
		t.Fatalf("NewColourCorrection: %v", err)
	}
	a, _, _ := cc.Apply(eventSample(5, 3))
	b, _, _ := cc.Apply(eventSample(5, 3))
	if a.Signal != b.Signal {
		t.Errorf("identical inputs produced %g and %g", a.Signal, b.Signal)
	}
}

func TestColourCorrectionTabulated(t *testing.T) {
	cc, err := NewColourCorrection(-0.28, 100, 200, 143, testTable(), true)
	if err != nil {
		t.Fatalf("NewColourCorrection: %v", err)
	}
	out, _, ok := cc.Apply(eventSample(3, 2))
	if !ok {
		t.Fatalf("known tag was rejected")
	}
	if math.Abs(out.Signal-2*1.1*1.0) > 1e-12 {
		t.Errorf("Signal = %g, want tabulated coefficient applied", out.Signal)
	}

	// A tabulated run must not fall back to the closed form for a
	// record without a coefficient.
	_, reason, ok := cc.Apply(eventSample(5, 2)) // coeff 0 for channel 5
	if ok {
		t.Fatalf("record without a coefficient was accepted on a tabulated run")
	}
	if reason != model.RejectCalibrationMissing {
		t.Errorf("reason = %q, want %q", reason, model.RejectCalibrationMissing)
	}
}

func TestPowerLawBandFactor(t *testing.T) {
	// alpha = 0: a flat spectrum needs no correction.
	if got := PowerLawBandFactor(0, 100, 200, 150); math.Abs(got-1) > 1e-12 {
		t.Errorf("alpha 0: factor = %g, want 1", got)
	}

	// alpha = -1 uses the logarithmic limit and must connect smoothly
	// with nearby indices.
	at := PowerLawBandFactor(-1, 100, 200, 143)
	near := PowerLawBandFactor(-1+1e-9, 100, 200, 143)
	if math.Abs(at-near) > 1e-6 {
		t.Errorf("alpha -1 limit: factor = %g, neighbour = %g", at, near)
	}
}

func TestBackgroundSubtraction(t *testing.T) {
	bg, err := NewBackgroundSubtraction(0.5, model.UnitMJySr)
	if err != nil {
		t.Fatalf("NewBackgroundSubtraction: %v", err)
	}

	s := eventSample(5, 3)
	s.Units = model.UnitMJySr
	out, _, ok := bg.Apply(s)
	if !ok {
		t.Fatalf("matching units were rejected")
	}
	if out.Signal != 2.5 {
		t.Errorf("Signal = %g, want 2.5", out.Signal)
	}

	_, reason, ok := bg.Apply(eventSample(5, 3)) // still in counts
	if ok {
		t.Fatalf("mismatched units were accepted")
	}
	if reason != model.RejectUnitMismatch {
		t.Errorf("reason = %q, want %q", reason, model.RejectUnitMismatch)
	}

	if _, err := NewBackgroundSubtraction(math.NaN(), model.UnitMJySr); err == nil {
		t.Errorf("NaN level: expected a configuration error")
	}
}

func TestChainRecordsProvenance(t *testing.T) {
	f, _ := NewWindowFilter(2, 8)
	r, _ := NewResponseCorrection(testTable())
	chain := Chain{f, r}

	out, _, ok := chain.Apply(eventSample(5, 4))
	if !ok {
		t.Fatalf("chain rejected a valid sample")
	}
	if len(out.Applied) != 2 || out.Applied[0] != "window_filter" || out.Applied[1] != "response" {
		t.Errorf("Applied = %v, want [window_filter response]", out.Applied)
	}

	_, reason, ok := chain.Apply(eventSample(10, 4))
	if ok {
		t.Fatalf("chain accepted an out-of-window sample")
	}
	if reason != model.RejectOutOfWindow {
		t.Errorf("reason = %q, want the first rejection in the chain", reason)
	}
}
