// Package codec defines the Encoder/Decoder collaborator interfaces
// consumed by the frame pipeline, plus the mandatory raw-zstd
// implementation and a capability-probing factory.
package codec

import (
	"errors"
	"fmt"

	"github.com/beamdesk/beamdesk/pkg/wire"
)

// ErrEncoderFailed is returned when an encoder implementation fails
// irrecoverably on a frame; the caller should fall back to the
// software encoder and force the next emission to be a keyframe.
var ErrEncoderFailed = errors.New("codec: encoder failed")

// ErrDecoderFailed is returned when a decoder cannot parse a frame;
// the caller should drop it and request a keyframe.
var ErrDecoderFailed = errors.New("codec: decoder failed")

// EncoderSettings configures an Encoder's target output.
type EncoderSettings struct {
	Width            int
	Height           int
	FPS              int
	BitrateMbps      int
	KeyframeInterval int
}

// EncodedFrame is the output of Encoder.Encode.
type EncodedFrame struct {
	Data       []byte
	IsKeyframe bool
	Encoding   wire.Encoding
	TimestampMs uint64
}

// Encoder turns packed 24-bit RGB into an EncodedFrame. Implementations
// must not block the pipeline tick indefinitely; UpdateSettings must
// not stall a concurrent Encode call.
type Encoder interface {
	Encode(rgb []byte, forceKeyframe bool) (EncodedFrame, error)
	UpdateSettings(EncoderSettings)
	Type() string
}

// Decoder is the viewer-side counterpart to Encoder.
type Decoder interface {
	Decode(data []byte, encoding wire.Encoding) (rgb []byte, err error)
	Flush()
}

func wrapEncodeErr(encoderType string, err error) error {
	return fmt.Errorf("codec: %s encode: %w: %v", encoderType, ErrEncoderFailed, err)
}

func wrapDecodeErr(encoderType string, err error) error {
	return fmt.Errorf("codec: %s decode: %w: %v", encoderType, ErrDecoderFailed, err)
}
