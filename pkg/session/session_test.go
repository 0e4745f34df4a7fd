package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/beamdesk/beamdesk/pkg/auth"
	"github.com/beamdesk/beamdesk/pkg/capture"
	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/input"
	"github.com/beamdesk/beamdesk/pkg/pipeline"
	"github.com/beamdesk/beamdesk/pkg/quality"
	"github.com/beamdesk/beamdesk/pkg/registry"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

// pipePair wires a host and a viewer together over two io.Pipes, one
// per direction, so each side can read and write independently of the
// other's progress (matching NewTransport's split reader/writer
// halves).
func pipePair() (hostTransport, viewerTransport *wire.Transport, closeAll func()) {
	hostR, viewerW := io.Pipe()
	viewerR, hostW := io.Pipe()
	hostTransport = wire.NewTransport(hostR, hostW)
	viewerTransport = wire.NewTransport(viewerR, viewerW)
	closeAll = func() {
		hostR.Close()
		hostW.Close()
		viewerR.Close()
		viewerW.Close()
	}
	return
}

func newTestHost(t *testing.T, transport *wire.Transport, code *auth.AccessCode, reg *registry.Registry, sessionID string) *HostSession {
	t.Helper()
	src := capture.NewSyntheticSource(64, 64)
	enc := codec.NewRawZstdEncoder(1)
	hp := pipeline.NewHostPipeline(src, enc, quality.Ultra)
	return NewHostSession(HostSessionConfig{
		Transport:  transport,
		AccessCode: code,
		Registry:   reg,
		Pipeline:   hp,
		Injector:   &input.NullInjector{},
		SessionID:  sessionID,
	})
}

func newTestViewer(t *testing.T, transport *wire.Transport) *ViewerSession {
	t.Helper()
	dec, err := codec.NewRawZstdDecoder()
	if err != nil {
		t.Fatal(err)
	}
	return NewViewerSession(ViewerSessionConfig{
		Transport: transport,
		Sink:      pipeline.NewSink(dec),
	})
}

func TestSessionRejectsWrongAccessCode(t *testing.T) {
	hostTransport, viewerTransport, closeAll := pipePair()
	defer closeAll()

	code, _, err := auth.GenerateAccessCode()
	if err != nil {
		t.Fatal(err)
	}
	host := newTestHost(t, hostTransport, code, registry.New(), "sess-reject")
	viewer := newTestViewer(t, viewerTransport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hostDone := make(chan error, 1)
	go func() { hostDone <- host.Run(ctx) }()

	if _, err := viewer.Connect("000000"); err == nil {
		t.Fatal("expected the wrong access code to be rejected")
	}

	closeAll()
	<-hostDone
}

func TestSessionHandshakeAuthAndStreamEndToEnd(t *testing.T) {
	hostTransport, viewerTransport, closeAll := pipePair()
	defer closeAll()

	code, plaintext, err := auth.GenerateAccessCode()
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New()
	host := newTestHost(t, hostTransport, code, reg, "sess-ok")
	viewer := newTestViewer(t, viewerTransport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hostDone := make(chan error, 1)
	go func() { hostDone <- host.Run(ctx) }()

	token, err := viewer.Connect(plaintext)
	if err != nil {
		t.Fatalf("expected successful auth, got: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty session token")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected 1 registered session, got %d", reg.Count())
	}

	if err := viewer.StartStream(); err != nil {
		t.Fatal(err)
	}

	viewerDone := make(chan error, 1)
	go func() { viewerDone <- viewer.Run(ctx) }()

	select {
	case sink := <-viewer.Frames:
		if sink.Framebuffer() == nil {
			t.Fatal("expected a framebuffer after the first frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first frame")
	}

	if err := viewer.Disconnect(); err != nil {
		t.Fatal(err)
	}

	cancel()
	closeAll()
	<-hostDone
	<-viewerDone
}
