package pipeline

import (
	"fmt"

	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

// Sink maintains the viewer's local mirror of the host framebuffer,
// applying keyframes and delta tiles as they arrive.
type Sink struct {
	decoder     codec.Decoder
	tileDecoder tileDecompressor

	current *Framebuffer
}

// tileDecompressor is implemented by decoders (currently raw-zstd)
// that can decompress an individual delta tile independently of a
// full-frame decode.
type tileDecompressor interface {
	DecompressTile(data []byte) ([]byte, error)
}

// NewSink builds a sink around decoder. decoder must also implement
// tileDecompressor to apply DeltaFrame messages (the raw-zstd decoder
// does).
func NewSink(decoder codec.Decoder) *Sink {
	s := &Sink{decoder: decoder}
	if td, ok := decoder.(tileDecompressor); ok {
		s.tileDecoder = td
	}
	return s
}

// ApplyScreenFrame decodes msg and replaces the current framebuffer.
func (s *Sink) ApplyScreenFrame(msg *wire.ScreenFrameMessage) error {
	rgb, err := s.decoder.Decode(msg.Data, msg.Encoding)
	if err != nil {
		return fmt.Errorf("pipeline: apply ScreenFrame: %w", err)
	}
	fb, err := NewFramebuffer(int(msg.Width), int(msg.Height), rgb)
	if err != nil {
		return fmt.Errorf("pipeline: apply ScreenFrame: %w", err)
	}
	s.current = fb
	return nil
}

// ApplyDeltaFrame overlays each tile into the current framebuffer. If
// no current framebuffer exists yet, the delta is discarded (the host
// will resynchronize with a keyframe); this is not an error.
func (s *Sink) ApplyDeltaFrame(msg *wire.DeltaFrameMessage) error {
	if s.current == nil {
		return nil
	}
	if s.tileDecoder == nil {
		return fmt.Errorf("pipeline: decoder %T cannot decompress delta tiles", s.decoder)
	}
	for _, t := range msg.Tiles {
		rgb, err := s.tileDecoder.DecompressTile(t.Data)
		if err != nil {
			return fmt.Errorf("pipeline: apply DeltaFrame tile (%d,%d): %w", t.X, t.Y, err)
		}
		if err := s.current.OverlayTile(int(t.X), int(t.Y), int(t.Width), int(t.Height), rgb); err != nil {
			return fmt.Errorf("pipeline: apply DeltaFrame tile (%d,%d): %w", t.X, t.Y, err)
		}
	}
	return nil
}

// Framebuffer returns the current reconstructed framebuffer, or nil
// if no ScreenFrame has been applied yet.
func (s *Sink) Framebuffer() *Framebuffer { return s.current }
