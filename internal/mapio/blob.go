package mapio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/signalsfoundry/stokesmap/core"
)

// Blob layout, little endian:
//
//	magic "SIQU" | version u8 | codec u8 | scheme u8 | flags u8
//	nside u32 | side u32 | pixel size (arcmin) f64
//	center theta f64 | center phi f64
//	npix u64 | record count u64
//	uncompressed payload length u64 | stored payload length u64
//	payload (possibly compressed)
//	xxhash64 of header+payload u64
//
// The payload holds one record per pixel that accumulated anything:
// pixel index u64, I f64, Q f64, U f64, weight f64, hits u64,
// observed u8. Pixels absent from the payload are unobserved with
// zero hits and weight, so the unobserved mask survives exactly.
const (
	blobVersion = 1
	headerSize  = 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8 + 8
	recordSize  = 8 + 8*4 + 8 + 1

	// flagRawPayload marks a payload stored uncompressed, set when the
	// codec reported the input incompressible. The flag, not a length
	// comparison, decides whether Read decompresses.
	flagRawPayload = 0x01
)

var blobMagic = [4]byte{'S', 'I', 'Q', 'U'}

const (
	schemeByteHealpix  = 1
	schemeByteFlatGrid = 2
)

func schemeToByte(s core.Scheme) (uint8, error) {
	switch s {
	case core.SchemeHealpix:
		return schemeByteHealpix, nil
	case core.SchemeFlatGrid:
		return schemeByteFlatGrid, nil
	default:
		return 0, fmt.Errorf("unknown pixelization scheme %q", s)
	}
}

func schemeFromByte(b uint8) (core.Scheme, error) {
	switch b {
	case schemeByteHealpix:
		return core.SchemeHealpix, nil
	case schemeByteFlatGrid:
		return core.SchemeFlatGrid, nil
	default:
		return "", fmt.Errorf("unknown pixelization scheme byte %d", b)
	}
}

// Write serializes m to w using the given codec.
func Write(w io.Writer, m *core.Map, codec Codec) error {
	schemeByte, err := schemeToByte(m.Geometry.Scheme)
	if err != nil {
		return err
	}

	// Any pixel that accumulated hits or weight is persisted, observed
	// or not, so Finalize edge cases round-trip too.
	count := 0
	for p := 0; p < m.Npix(); p++ {
		if m.Hits[p] > 0 || m.Weight[p] != 0 || m.Observed[p] {
			count++
		}
	}

	payload := make([]byte, count*recordSize)
	off := 0
	for p := 0; p < m.Npix(); p++ {
		if m.Hits[p] == 0 && m.Weight[p] == 0 && !m.Observed[p] {
			continue
		}
		binary.LittleEndian.PutUint64(payload[off:], uint64(p))
		binary.LittleEndian.PutUint64(payload[off+8:], math.Float64bits(m.I[p]))
		binary.LittleEndian.PutUint64(payload[off+16:], math.Float64bits(m.Q[p]))
		binary.LittleEndian.PutUint64(payload[off+24:], math.Float64bits(m.U[p]))
		binary.LittleEndian.PutUint64(payload[off+32:], math.Float64bits(m.Weight[p]))
		binary.LittleEndian.PutUint64(payload[off+40:], m.Hits[p])
		if m.Observed[p] {
			payload[off+48] = 1
		}
		off += recordSize
	}

	stored, compressed, err := codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("compressing map payload: %w", err)
	}
	var flags uint8
	if !compressed {
		stored = payload
		flags |= flagRawPayload
	}

	header := make([]byte, headerSize)
	copy(header[0:4], blobMagic[:])
	header[4] = blobVersion
	header[5] = uint8(codec.Type())
	header[6] = schemeByte
	header[7] = flags
	binary.LittleEndian.PutUint32(header[8:], uint32(m.Geometry.Nside))
	binary.LittleEndian.PutUint32(header[12:], uint32(m.Geometry.Side))
	binary.LittleEndian.PutUint64(header[16:], math.Float64bits(m.Geometry.PixelSizeArcmin))
	binary.LittleEndian.PutUint64(header[24:], math.Float64bits(m.Geometry.Center.Theta))
	binary.LittleEndian.PutUint64(header[32:], math.Float64bits(m.Geometry.Center.Phi))
	binary.LittleEndian.PutUint64(header[40:], uint64(m.Npix()))
	binary.LittleEndian.PutUint64(header[48:], uint64(count))
	binary.LittleEndian.PutUint64(header[56:], uint64(len(payload)))
	binary.LittleEndian.PutUint64(header[64:], uint64(len(stored)))

	digest := xxhash.New()
	digest.Write(header)
	digest.Write(stored)
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], digest.Sum64())

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(stored); err != nil {
		return err
	}
	if _, err := w.Write(trailer[:]); err != nil {
		return err
	}
	return nil
}

// Read deserializes a map blob, verifying its checksum.
func Read(r io.Reader) (*core.Map, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading map header: %w", err)
	}
	if [4]byte(header[0:4]) != blobMagic {
		return nil, fmt.Errorf("not a map blob: bad magic")
	}
	if header[4] != blobVersion {
		return nil, fmt.Errorf("unsupported map blob version %d", header[4])
	}
	codec, err := NewCodec(CodecType(header[5]))
	if err != nil {
		return nil, err
	}
	scheme, err := schemeFromByte(header[6])
	if err != nil {
		return nil, err
	}
	flags := header[7]
	if flags&^uint8(flagRawPayload) != 0 {
		return nil, fmt.Errorf("unsupported map blob flags %#x", flags)
	}

	geom := core.Geometry{
		Scheme:          scheme,
		Nside:           int(binary.LittleEndian.Uint32(header[8:])),
		Side:            int(binary.LittleEndian.Uint32(header[12:])),
		PixelSizeArcmin: math.Float64frombits(binary.LittleEndian.Uint64(header[16:])),
	}
	geom.Center.Theta = math.Float64frombits(binary.LittleEndian.Uint64(header[24:]))
	geom.Center.Phi = math.Float64frombits(binary.LittleEndian.Uint64(header[32:]))

	npix := binary.LittleEndian.Uint64(header[40:])
	count := binary.LittleEndian.Uint64(header[48:])
	uncompressedLen := binary.LittleEndian.Uint64(header[56:])
	storedLen := binary.LittleEndian.Uint64(header[64:])

	if count*recordSize != uncompressedLen {
		return nil, fmt.Errorf("map blob header inconsistent: %d records, %d payload bytes", count, uncompressedLen)
	}

	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("reading map payload: %w", err)
	}
	var trailer [8]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("reading map checksum: %w", err)
	}

	digest := xxhash.New()
	digest.Write(header)
	digest.Write(stored)
	if digest.Sum64() != binary.LittleEndian.Uint64(trailer[:]) {
		return nil, fmt.Errorf("map blob checksum mismatch")
	}

	var payload []byte
	if flags&flagRawPayload != 0 {
		payload = stored
	} else {
		payload, err = codec.Decompress(stored, int(uncompressedLen))
		if err != nil {
			return nil, fmt.Errorf("decompressing map payload: %w", err)
		}
	}
	if uint64(len(payload)) != uncompressedLen {
		return nil, fmt.Errorf("map payload length mismatch: got %d, want %d", len(payload), uncompressedLen)
	}

	m := &core.Map{
		Geometry: geom,
		I:        make([]float64, npix),
		Q:        make([]float64, npix),
		U:        make([]float64, npix),
		Weight:   make([]float64, npix),
		Hits:     make([]uint64, npix),
		Observed: make([]bool, npix),
	}
	for off := 0; off < len(payload); off += recordSize {
		pix := binary.LittleEndian.Uint64(payload[off:])
		if pix >= npix {
			return nil, fmt.Errorf("map record pixel %d out of range (npix %d)", pix, npix)
		}
		m.I[pix] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off+8:]))
		m.Q[pix] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off+16:]))
		m.U[pix] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off+24:]))
		m.Weight[pix] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off+32:]))
		m.Hits[pix] = binary.LittleEndian.Uint64(payload[off+40:])
		m.Observed[pix] = payload[off+48] == 1
	}
	return m, nil
}
