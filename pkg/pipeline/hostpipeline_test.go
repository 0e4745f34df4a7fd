package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/beamdesk/beamdesk/pkg/capture"
	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/quality"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

func TestHostPipelineFirstTickIsKeyframe(t *testing.T) {
	src := capture.NewSyntheticSource(128, 128)
	enc := codec.NewRawZstdEncoder(6)
	p := NewHostPipeline(src, enc, quality.High)

	msg, err := p.Tick(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(*wire.ScreenFrameMessage); !ok {
		t.Fatalf("expected first tick to be a ScreenFrame, got %T", msg)
	}
}

func TestHostPipelineEmitsDeltaAfterKeyframe(t *testing.T) {
	src := capture.NewSyntheticSource(128, 128)
	enc := codec.NewRawZstdEncoder(6)
	p := NewHostPipeline(src, enc, quality.Ultra) // 60 fps -> short rate-gate interval

	first, err := p.Tick(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := first.(*wire.ScreenFrameMessage); !ok {
		t.Fatalf("expected keyframe first, got %T", first)
	}

	src.SetPixel(0, 0, 255, 0, 0)
	time.Sleep(20 * time.Millisecond)
	second, err := p.Tick(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	delta, ok := second.(*wire.DeltaFrameMessage)
	if !ok {
		t.Fatalf("expected delta frame for a single-pixel change, got %T", second)
	}
	if len(delta.Tiles) != 1 {
		t.Fatalf("expected exactly 1 changed tile, got %d", len(delta.Tiles))
	}
}

func TestHostPipelineAndSinkEndToEnd(t *testing.T) {
	src := capture.NewSyntheticSource(128, 128)
	enc := codec.NewRawZstdEncoder(6)
	p := NewHostPipeline(src, enc, quality.Ultra)

	dec, err := codec.NewRawZstdDecoder()
	if err != nil {
		t.Fatal(err)
	}
	sink := NewSink(dec)

	keyMsg, err := p.Tick(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	screenFrame := keyMsg.(*wire.ScreenFrameMessage)
	if err := sink.ApplyScreenFrame(screenFrame); err != nil {
		t.Fatal(err)
	}

	src.SetPixel(10, 10, 1, 2, 3)
	src.SetPixel(70, 10, 4, 5, 6) // lands in the adjacent tile column
	time.Sleep(20 * time.Millisecond)

	deltaMsg, err := p.Tick(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	deltaFrame, ok := deltaMsg.(*wire.DeltaFrameMessage)
	if !ok {
		t.Fatalf("expected delta frame, got %T", deltaMsg)
	}
	if err := sink.ApplyDeltaFrame(deltaFrame); err != nil {
		t.Fatal(err)
	}

	hostRGB, err := dec.Decode(screenFrame.Data, screenFrame.Encoding)
	if err != nil {
		t.Fatal(err)
	}
	hostFB, _ := NewFramebuffer(128, 128, hostRGB)
	for _, tile := range deltaFrame.Tiles {
		rgb, err := dec.DecompressTile(tile.Data)
		if err != nil {
			t.Fatal(err)
		}
		if err := hostFB.OverlayTile(int(tile.X), int(tile.Y), int(tile.Width), int(tile.Height), rgb); err != nil {
			t.Fatal(err)
		}
	}

	if !bytes.Equal(hostFB.RGB, sink.Framebuffer().RGB) {
		t.Fatal("viewer reconstruction diverges from host reference framebuffer")
	}
}
