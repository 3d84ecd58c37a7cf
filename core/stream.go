package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/stokesmap/model"
)

// SampleSource supplies a stream of raw samples from an upstream
// collaborator (a TOD loader, an event-list reader, a test fixture).
// Next returns io.EOF after the last sample.
type SampleSource interface {
	Next() (model.Sample, error)
}

// SliceSource serves samples from memory.
type SliceSource struct {
	samples []model.Sample
	pos     int
}

// NewSliceSource wraps an in-memory sample slice.
func NewSliceSource(samples []model.Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

// Next implements SampleSource.
func (s *SliceSource) Next() (model.Sample, error) {
	if s.pos >= len(s.samples) {
		return model.Sample{}, io.EOF
	}
	out := s.samples[s.pos]
	s.pos++
	return out, nil
}

// rawRecordJSON is the wire schema of one sample record. Optional
// fields default rather than fail: a missing validity flag means
// valid, a missing I-weight means 1 (total intensity always counts).
type rawRecordJSON struct {
	Theta    float64  `json:"theta"`
	Phi      float64  `json:"phi"`
	WI       *float64 `json:"wi"`
	WQ       float64  `json:"wq"`
	WU       float64  `json:"wu"`
	Signal   float64  `json:"signal"`
	Units    string   `json:"units"`
	Weight   float64  `json:"weight"`
	Detector string   `json:"detector"`
	Channel  float64  `json:"channel"`
	Valid    *bool    `json:"valid"`
}

// NDJSONSource decodes newline-delimited JSON sample records.
type NDJSONSource struct {
	dec *json.Decoder
	n   int
}

// NewNDJSONSource reads records from r.
func NewNDJSONSource(r io.Reader) *NDJSONSource {
	return &NDJSONSource{dec: json.NewDecoder(r)}
}

// Next implements SampleSource. Malformed JSON is a stream error (the
// source is broken, not a single bad sample); per-sample physical
// validity is judged downstream.
func (s *NDJSONSource) Next() (model.Sample, error) {
	var raw rawRecordJSON
	if err := s.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return model.Sample{}, io.EOF
		}
		return model.Sample{}, fmt.Errorf("decoding sample record %d: %w", s.n, err)
	}
	s.n++

	wi := 1.0
	if raw.WI != nil {
		wi = *raw.WI
	}
	valid := true
	if raw.Valid != nil {
		valid = *raw.Valid
	}
	return model.Sample{
		Pointing: model.SkyPointing{Theta: raw.Theta, Phi: raw.Phi},
		WI:       wi,
		WQ:       raw.WQ,
		WU:       raw.WU,
		Signal:   raw.Signal,
		Units:    model.Unit(raw.Units),
		Weight:   raw.Weight,
		Tag:      model.CalibrationTag{Detector: raw.Detector, Channel: raw.Channel},
		Valid:    valid,
	}, nil
}

// ReadAll drains a source into memory.
func ReadAll(src SampleSource) ([]model.Sample, error) {
	var out []model.Sample
	for {
		s, err := src.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
