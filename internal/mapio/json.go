package mapio

import (
	"encoding/json"
	"io"

	"github.com/signalsfoundry/stokesmap/core"
)

// jsonPixel is one observed pixel in the JSON export.
type jsonPixel struct {
	Pix    int     `json:"pix"`
	I      float64 `json:"i"`
	Q      float64 `json:"q"`
	U      float64 `json:"u"`
	Weight float64 `json:"weight"`
	Hits   uint64  `json:"hits"`
}

// jsonMap is the JSON export shape. Only observed pixels are listed;
// downstream consumers reconstruct the unobserved mask from npix and
// the pixel list rather than from numeric sentinels.
type jsonMap struct {
	Geometry      core.Geometry `json:"geometry"`
	Npix          int           `json:"npix"`
	ObservedCount int           `json:"observed_count"`
	Pixels        []jsonPixel   `json:"pixels"`
}

// WriteJSON exports m for presentation tooling that prefers JSON over
// the binary blob format.
func WriteJSON(w io.Writer, m *core.Map) error {
	out := jsonMap{
		Geometry: m.Geometry,
		Npix:     m.Npix(),
		Pixels:   make([]jsonPixel, 0, m.ObservedCount()),
	}
	for p := 0; p < m.Npix(); p++ {
		if !m.Observed[p] {
			continue
		}
		out.Pixels = append(out.Pixels, jsonPixel{
			Pix:    p,
			I:      m.I[p],
			Q:      m.Q[p],
			U:      m.U[p],
			Weight: m.Weight[p],
			Hits:   m.Hits[p],
		})
	}
	out.ObservedCount = len(out.Pixels)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
