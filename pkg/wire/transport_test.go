package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestTransportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTransport(&loopback{buf: &buf})

	records := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, r := range records {
		if err := tr.SendRecord(r); err != nil {
			t.Fatalf("SendRecord: %v", err)
		}
	}
	for i, want := range records {
		got, err := tr.RecvRecord()
		if err != nil {
			t.Fatalf("RecvRecord[%d]: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("record %d: got %x want %x", i, got, want)
		}
	}
}

func TestTransportRejectsOversizedRecord(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTransport(&loopback{buf: &buf})
	if err := tr.SendRecord(make([]byte, MaxRecordSize+1)); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestTransportPeerClosed(t *testing.T) {
	tr := NewTransport(&eofReader{}, io.Discard)
	_, err := tr.RecvRecord()
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

// loopback lets writes be read back in order within the same test.
type loopback struct{ buf *bytes.Buffer }

func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }
func (l *loopback) Read(p []byte) (int, error)  { return l.buf.Read(p) }

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
