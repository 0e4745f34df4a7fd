package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Message{
		&KeyExchangeMessage{PublicKey: [32]byte{1, 2, 3}},
		&KeyExchangeAckMessage{PublicKey: [32]byte{4, 5, 6}},
		&AuthRequestMessage{Code: "314159"},
		&AuthResponseMessage{Success: true, SessionToken: "abcdefghij0123456789ABCDEFGHIJ01"},
		&AuthResponseMessage{Success: false},
		&StartStreamMessage{},
		&StopStreamMessage{},
		&DisconnectMessage{},
		&PingMessage{Timestamp: 123456},
		&PongMessage{Timestamp: 123456},
		&ScreenFrameMessage{Timestamp: 1, Width: 128, Height: 128, Encoding: EncodingZstdCompressed, Data: []byte{1, 2, 3, 4}},
		&DeltaFrameMessage{Timestamp: 2, Tiles: []Tile{
			{X: 0, Y: 0, Width: 64, Height: 64, Data: []byte{9, 9}},
			{X: 64, Y: 0, Width: 64, Height: 64, Data: []byte{8, 8}},
		}},
		&QualityChangeMessage{Mode: QualityHigh},
		&RequestQualityChangeMessage{Mode: QualityLow},
		&QualityMetricsReportMessage{Metrics: QualityMetrics{BandwidthMbps: 12.5, AvgRTTMs: 33.1, LossProxy: 2.0}},
		&FrameAckMessage{Timestamp: 10, ReceivedAt: 20},
		&NetworkStatsMessage{BytesSent: 1000, RTTMs: 50},
		&MouseMoveMessage{X: -5, Y: 100},
		&MouseClickMessage{Button: ButtonRight, Pressed: true, X: 1, Y: 2},
		&MouseScrollMessage{DeltaX: 1.5, DeltaY: -1.5},
		&KeyEventMessage{Key: "Return", Pressed: true, Modifiers: KeyModifiers{Shift: true, Meta: true}},
	}

	for _, msg := range cases {
		encoded, err := EncodeMessage(msg)
		if err != nil {
			t.Fatalf("EncodeMessage(%T): %v", msg, err)
		}
		decoded, err := DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("DecodeMessage(%T): %v", msg, err)
		}
		if !reflect.DeepEqual(msg, decoded) {
			t.Fatalf("round trip mismatch for %T:\n got: %#v\nwant: %#v", msg, decoded, msg)
		}

		var buf bytes.Buffer
		if err := WriteMessage(&buf, msg); err != nil {
			t.Fatalf("WriteMessage(%T): %v", msg, err)
		}
		viaReader, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage(%T): %v", msg, err)
		}
		if !reflect.DeepEqual(msg, viaReader) {
			t.Fatalf("stream round trip mismatch for %T", msg)
		}
	}
}

func TestDecodeMessageRejectsUnknownTag(t *testing.T) {
	encoded, err := EncodeMessage(&PingMessage{Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	encoded[1] = 0xFF // corrupt the type byte to an unassigned tag
	if _, err := DecodeMessage(encoded); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestAuthRequestRejectsNonSixDigitCode(t *testing.T) {
	_, err := EncodeMessage(&AuthRequestMessage{Code: "12345"})
	if err == nil {
		t.Fatal("expected error for short code")
	}
}

func TestAdjacentRecordsDoNotConfuseParsing(t *testing.T) {
	a, _ := EncodeMessage(&PingMessage{Timestamp: 1})
	b, _ := EncodeMessage(&PongMessage{Timestamp: 2})
	var buf bytes.Buffer
	buf.Write(a)
	buf.Write(b)

	first, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := first.(*PingMessage); !ok {
		t.Fatalf("expected *PingMessage, got %T", first)
	}
	second, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := second.(*PongMessage); !ok {
		t.Fatalf("expected *PongMessage, got %T", second)
	}
}
