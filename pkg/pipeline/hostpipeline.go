package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/beamdesk/beamdesk/pkg/capture"
	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/quality"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

// HostPipeline runs one tick of capture -> diff -> encode -> emit for
// a single session. Tick is called only from the session's dedicated
// capture+encode worker, but SetMode/SetEncoder/RequestKeyframe are
// called from the reader goroutine (the quality controller's onChange
// callback, and a future viewer-initiated keyframe request) — mu
// guards the fields both sides touch (mode, scale, forceKeyframe,
// encoder) so the two goroutines never race.
type HostPipeline struct {
	mu      sync.Mutex
	source  capture.Source
	encoder codec.Encoder

	mode  quality.Mode
	width int
	height int
	scale float64

	reference      *Framebuffer
	framesSinceKey int
	lastEmit       time.Time
	forceKeyframe  bool
}

// NewHostPipeline builds a pipeline bound to source and an initial
// encoder, starting at the given quality mode.
func NewHostPipeline(source capture.Source, encoder codec.Encoder, mode quality.Mode) *HostPipeline {
	return &HostPipeline{source: source, encoder: encoder, mode: mode, scale: mode.ResolutionScale()}
}

// SetEncoder swaps the active encoder, e.g. on a quality-mode change
// or after a fallback from a failed hardware encoder. It takes effect
// on the next tick.
func (p *HostPipeline) SetEncoder(e codec.Encoder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.encoder = e
}

// SetMode updates the target quality mode; resolution-scale changes
// force a keyframe and a reference reset on the next successful tick.
func (p *HostPipeline) SetMode(mode quality.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mode.ResolutionScale() != p.scale {
		p.forceKeyframe = true
		p.scale = mode.ResolutionScale()
	}
	p.mode = mode
}

// RequestKeyframe forces the next successful tick to emit a KeyFrame,
// e.g. after the viewer reports a broken reference.
func (p *HostPipeline) RequestKeyframe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forceKeyframe = true
}

// recoverFromEncoderFailureLocked implements §7's mandatory
// EncoderFailed recovery: fall back to the raw-zstd software encoder
// and force the next emission to be a keyframe, so a failing hardware
// encoder does not silently stall the stream. Assumes p.mu is already
// held (called only from within Tick).
func (p *HostPipeline) recoverFromEncoderFailureLocked() {
	p.encoder = codec.FallbackTo(p.mode.CompressionLevel())
	p.forceKeyframe = true
}

// CanEmit reports whether enough time has passed since the last
// emission for the current mode's target fps (the rate gate).
func (p *HostPipeline) CanEmit(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canEmitLocked(now)
}

func (p *HostPipeline) canEmitLocked(now time.Time) bool {
	interval := time.Second / time.Duration(p.mode.TargetFPS())
	return p.lastEmit.IsZero() || now.Sub(p.lastEmit) >= interval
}

// Tick runs one pipeline iteration. It returns (nil, nil) when the
// tick was skipped (rate-gated or capture not ready yet). Tick holds
// mu for its whole body so a concurrent SetMode/SetEncoder/
// RequestKeyframe from the reader goroutine either completes before
// or after one atomic tick, never mid-tick.
func (p *HostPipeline) Tick(now time.Time) (wire.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.canEmitLocked(now) {
		return nil, nil
	}

	raw, err := p.source.Capture()
	if err != nil {
		if err == capture.ErrNotReady {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: %w", capture.ErrCaptureFailed)
	}

	curr, err := downscale(raw, p.scale)
	if err != nil {
		return nil, err
	}

	resized := p.reference != nil && (p.reference.Width != curr.Width || p.reference.Height != curr.Height)
	emitKeyframe := p.reference == nil || resized || p.forceKeyframe || p.framesSinceKey >= p.mode.KeyframeInterval()

	var changed []TileRegion
	if !emitKeyframe {
		changed = FindChangedTiles(p.reference, curr)
		if ExceedsKeyframeThreshold(len(changed), TotalTiles(curr.Width, curr.Height)) {
			emitKeyframe = true
		}
	}

	p.forceKeyframe = false
	ts := uint64(now.UnixMilli())

	if emitKeyframe {
		encoded, err := p.encoder.Encode(curr.RGB, true)
		if err != nil {
			p.recoverFromEncoderFailureLocked()
			return nil, err
		}
		p.reference = curr
		p.framesSinceKey = 0
		p.lastEmit = now
		return &wire.ScreenFrameMessage{
			Timestamp: ts,
			Width:     uint32(curr.Width),
			Height:    uint32(curr.Height),
			Encoding:  encoded.Encoding,
			Data:      encoded.Data,
		}, nil
	}

	tiles, err := p.encodeDeltaTiles(curr, changed)
	if err != nil {
		p.recoverFromEncoderFailureLocked()
		return nil, err
	}
	for _, t := range changed {
		if err := p.reference.OverlayTile(t.X, t.Y, t.Width, t.Height, curr.ExtractTile(t.X, t.Y, t.Width, t.Height)); err != nil {
			return nil, fmt.Errorf("pipeline: update reference: %w", err)
		}
	}
	p.framesSinceKey++
	p.lastEmit = now
	return &wire.DeltaFrameMessage{Timestamp: ts, Tiles: tiles}, nil
}

func (p *HostPipeline) encodeDeltaTiles(curr *Framebuffer, regions []TileRegion) ([]wire.Tile, error) {
	compressor, ok := p.encoder.(tileCompressor)
	if !ok {
		return nil, fmt.Errorf("pipeline: active encoder %s cannot compress delta tiles", p.encoder.Type())
	}
	tiles := make([]wire.Tile, 0, len(regions))
	for _, r := range regions {
		rgb := curr.ExtractTile(r.X, r.Y, r.Width, r.Height)
		compressed, err := compressor.CompressTile(rgb)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, wire.Tile{X: uint32(r.X), Y: uint32(r.Y), Width: uint32(r.Width), Height: uint32(r.Height), Data: compressed})
	}
	return tiles, nil
}

// tileCompressor is implemented by encoders (currently raw-zstd) that
// can compress an individual tile independently of a full frame.
type tileCompressor interface {
	CompressTile(rgb []byte) ([]byte, error)
}

func downscale(raw capture.RawFrame, scale float64) (*Framebuffer, error) {
	if scale >= 0.999 {
		return NewFramebuffer(raw.Width, raw.Height, raw.RGB)
	}
	newW := maxInt(1, int(float64(raw.Width)*scale))
	newH := maxInt(1, int(float64(raw.Height)*scale))
	out := make([]byte, newW*newH*3)
	for y := 0; y < newH; y++ {
		srcY := minInt(raw.Height-1, int(float64(y)/scale))
		for x := 0; x < newW; x++ {
			srcX := minInt(raw.Width-1, int(float64(x)/scale))
			srcOff := (srcY*raw.Width + srcX) * 3
			dstOff := (y*newW + x) * 3
			copy(out[dstOff:dstOff+3], raw.RGB[srcOff:srcOff+3])
		}
	}
	return NewFramebuffer(newW, newH, out)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
