package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/beamdesk/beamdesk/pkg/wire"
)

// RawZstdEncoder is the mandatory software encoder: it zstd-compresses
// the packed RGB frame at the configured level. It never fails to
// produce output for a well-formed input, making it the fallback
// target for any other encoder implementation.
type RawZstdEncoder struct {
	mu       sync.Mutex
	settings EncoderSettings
	level    zstd.EncoderLevel
}

// NewRawZstdEncoder builds an encoder at the given zstd compression
// level (1-22; the quality table in pkg/quality uses 1-12).
func NewRawZstdEncoder(level int) *RawZstdEncoder {
	return &RawZstdEncoder{level: levelFromInt(level)}
}

func levelFromInt(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 9:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Encode compresses rgb with zstd. forceKeyframe is accepted for
// interface parity but is irrelevant here: raw-zstd has no inter-frame
// state, every call is independently decodable.
func (e *RawZstdEncoder) Encode(rgb []byte, forceKeyframe bool) (EncodedFrame, error) {
	e.mu.Lock()
	level := e.level
	e.mu.Unlock()

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return EncodedFrame{}, wrapEncodeErr("raw-zstd", err)
	}
	compressed := enc.EncodeAll(rgb, nil)
	enc.Close()
	return EncodedFrame{Data: compressed, IsKeyframe: true, Encoding: wire.EncodingZstdCompressed}, nil
}

// UpdateSettings stores the new settings and remaps the compression
// level; it never blocks a concurrent Encode call.
func (e *RawZstdEncoder) UpdateSettings(s EncoderSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
}

// SetLevel changes the zstd compression level used by subsequent
// Encode calls, e.g. when the adaptive quality controller changes
// mode.
func (e *RawZstdEncoder) SetLevel(level int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = levelFromInt(level)
}

func (e *RawZstdEncoder) Type() string { return "raw-zstd" }

// CompressTile zstd-compresses one changed tile's RGB bytes at the
// current level, for use by the delta path (DeltaFrame tiles are
// compressed independently of the keyframe encoder per the frame
// pipeline's per-tile rule).
func (e *RawZstdEncoder) CompressTile(rgb []byte) ([]byte, error) {
	e.mu.Lock()
	level := e.level
	e.mu.Unlock()
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, wrapEncodeErr("raw-zstd", err)
	}
	defer enc.Close()
	return enc.EncodeAll(rgb, nil), nil
}

// RawZstdDecoder is the viewer-side counterpart, decompressing both
// ZstdCompressed keyframes and (via DecompressTile) delta tiles.
type RawZstdDecoder struct {
	mu  sync.Mutex
	dec *zstd.Decoder
}

// NewRawZstdDecoder builds a reusable streaming decoder.
func NewRawZstdDecoder() (*RawZstdDecoder, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: new zstd decoder: %w", err)
	}
	return &RawZstdDecoder{dec: dec}, nil
}

func (d *RawZstdDecoder) Decode(data []byte, encoding wire.Encoding) ([]byte, error) {
	if encoding != wire.EncodingZstdCompressed {
		return nil, wrapDecodeErr("raw-zstd", fmt.Errorf("unsupported encoding %v", encoding))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, wrapDecodeErr("raw-zstd", err)
	}
	return out, nil
}

// DecompressTile decompresses one delta tile's bytes.
func (d *RawZstdDecoder) DecompressTile(data []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, wrapDecodeErr("raw-zstd", err)
	}
	return out, nil
}

func (d *RawZstdDecoder) Flush() {}
