package calib

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/stokesmap/model"
)

func TestLoad(t *testing.T) {
	in := `[
		{"detector": "du1", "channel": 5, "efficiency": 0.8, "unit_scale": 2.0},
		{"detector": "du1", "channel": 3, "efficiency": 0.5, "colour_coeff": 1.1, "unit_scale": 1.0},
		{"detector": "du2", "channel": 5, "efficiency": 0.9, "unit_scale": 2.1}
	]`
	table, err := Load(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}

	rec, err := table.Lookup(model.CalibrationTag{Detector: "du1", Channel: 5})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Efficiency != 0.8 || rec.UnitScale != 2.0 {
		t.Errorf("record = %+v", rec)
	}
}

func TestLookupMissing(t *testing.T) {
	table := NewTable(nil)
	_, err := table.Lookup(model.CalibrationTag{Detector: "du9", Channel: 1})
	if err == nil {
		t.Fatalf("missing tag returned no error")
	}
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("error type %T, want *LookupError", err)
	}
	if le.Tag.Detector != "du9" {
		t.Errorf("LookupError tag = %+v", le.Tag)
	}
}

func TestLoadRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"non-positive efficiency", `[{"detector": "du1", "channel": 5, "efficiency": 0, "unit_scale": 1}]`},
		{"duplicate tag", `[
			{"detector": "du1", "channel": 5, "efficiency": 0.8, "unit_scale": 1},
			{"detector": "du1", "channel": 5, "efficiency": 0.9, "unit_scale": 1}
		]`},
		{"unknown field", `[{"detector": "du1", "channel": 5, "efficiency": 0.8, "unit_scale": 1, "gain": 2}]`},
		{"not an array", `{"detector": "du1"}`},
	}
	for _, tc := range cases {
		if _, err := Load(strings.NewReader(tc.in)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestEmptyTableAllowed(t *testing.T) {
	table, err := Load(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len = %d, want 0", table.Len())
	}
}

func TestNewTableCopies(t *testing.T) {
	src := map[model.CalibrationTag]Record{
		{Detector: "du1", Channel: 5}: {Efficiency: 0.8, UnitScale: 1},
	}
	table := NewTable(src)
	src[model.CalibrationTag{Detector: "du1", Channel: 5}] = Record{Efficiency: 99}

	rec, err := table.Lookup(model.CalibrationTag{Detector: "du1", Channel: 5})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Efficiency != 0.8 {
		t.Errorf("table shares storage with the caller's map")
	}
}
