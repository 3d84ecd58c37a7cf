// Package calib holds externally supplied calibration data: per-tag
// response and conversion factors. A Table is loaded once and is
// read-only for the lifetime of a processing run, so lookups need no
// locking and a run stays fully reproducible from its inputs.
package calib

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/stokesmap/model"
)

// Record bundles the correction factors associated with one
// calibration tag.
type Record struct {
	// Efficiency is the response (effective area) factor the signal is
	// divided by. Must be positive.
	Efficiency float64 `json:"efficiency"`
	// ColourCoeff is an optional tabulated colour-correction
	// coefficient (e.g. a UC/CC table entry). Zero when the run derives
	// the factor from the spectral model instead; runs that request the
	// tabulated coefficient reject tags whose record leaves it zero.
	ColourCoeff float64 `json:"colour_coeff,omitempty"`
	// UnitScale converts the sample's native units to MJy/sr.
	UnitScale float64 `json:"unit_scale"`
}

// LookupError reports a tag absent from the table. It is surfaced as a
// per-sample rejection, distinguishable from an out-of-window filter.
type LookupError struct {
	Tag model.CalibrationTag
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no calibration record for detector %q channel %v", e.Tag.Detector, e.Tag.Channel)
}

// Table is an immutable calibration lookup keyed by tag.
type Table struct {
	records map[model.CalibrationTag]Record
}

// NewTable builds a table from explicit records, mainly for tests.
func NewTable(records map[model.CalibrationTag]Record) *Table {
	copied := make(map[model.CalibrationTag]Record, len(records))
	for tag, rec := range records {
		copied[tag] = rec
	}
	return &Table{records: copied}
}

// Lookup returns the record for tag, or a *LookupError when absent.
func (t *Table) Lookup(tag model.CalibrationTag) (Record, error) {
	rec, ok := t.records[tag]
	if !ok {
		return Record{}, &LookupError{Tag: tag}
	}
	return rec, nil
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// recordJSON is the wire shape of one table row.
type recordJSON struct {
	Detector    string  `json:"detector"`
	Channel     float64 `json:"channel"`
	Efficiency  float64 `json:"efficiency"`
	ColourCoeff float64 `json:"colour_coeff"`
	UnitScale   float64 `json:"unit_scale"`
}

// Load reads a JSON array of calibration records. Structural problems
// and non-positive efficiencies are errors; an empty table is allowed
// (runs that apply no calibrated correction never consult it).
func Load(r io.Reader) (*Table, error) {
	var rows []recordJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding calibration table: %w", err)
	}

	records := make(map[model.CalibrationTag]Record, len(rows))
	for i, row := range rows {
		if row.Efficiency <= 0 {
			return nil, fmt.Errorf("calibration row %d (detector %q): efficiency must be positive", i, row.Detector)
		}
		tag := model.CalibrationTag{Detector: row.Detector, Channel: row.Channel}
		if _, dup := records[tag]; dup {
			return nil, fmt.Errorf("calibration row %d: duplicate tag detector %q channel %v", i, row.Detector, row.Channel)
		}
		records[tag] = Record{
			Efficiency:  row.Efficiency,
			ColourCoeff: row.ColourCoeff,
			UnitScale:   row.UnitScale,
		}
	}
	return &Table{records: records}, nil
}
