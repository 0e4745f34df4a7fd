package codec

import (
	"bytes"
	"testing"

	"github.com/beamdesk/beamdesk/pkg/wire"
)

func TestRawZstdRoundTrip(t *testing.T) {
	enc := NewRawZstdEncoder(6)
	dec, err := NewRawZstdDecoder()
	if err != nil {
		t.Fatal(err)
	}

	rgb := bytes.Repeat([]byte{10, 20, 30}, 64*64)
	frame, err := enc.Encode(rgb, true)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Encoding != wire.EncodingZstdCompressed {
		t.Fatalf("expected ZstdCompressed encoding, got %v", frame.Encoding)
	}

	got, err := dec.Decode(frame.Data, frame.Encoding)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, rgb) {
		t.Fatal("decoded frame does not match original")
	}
}

func TestFactoryFallsBackToSoftware(t *testing.T) {
	f := NewFactory()
	f.RegisterProbe(func() (Encoder, bool) { return nil, false })
	enc := f.CreateEncoder(3)
	if enc.Type() != "raw-zstd" {
		t.Fatalf("expected raw-zstd fallback, got %s", enc.Type())
	}
}
