package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/cryptochannel"
	"github.com/beamdesk/beamdesk/pkg/pipeline"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

// maxConsecutiveDecodeFailures bounds the decoder-recovery policy in
// §4.6/§7: a single bad frame is dropped and a keyframe requested, but
// failures this many frames in a row without a successful decode in
// between mean the stream is unrecoverable and the session closes.
const maxConsecutiveDecodeFailures = 5

// ViewerSession drives the viewer side of one connection: it
// initiates key exchange, authenticates with an access code, requests
// the stream, and applies incoming frames to a Sink.
type ViewerSession struct {
	peer peer
	sink *pipeline.Sink

	state        State
	sessionToken string

	currentQualityMode      wire.QualityMode
	consecutiveDecodeErrors int

	// Frames are handed to the caller through this channel rather than
	// applied internally, so a UI goroutine can redraw without blocking
	// the read loop.
	Frames chan *pipeline.Sink
}

// ViewerSessionConfig bundles the collaborators one ViewerSession
// needs.
type ViewerSessionConfig struct {
	Transport *wire.Transport
	Sink      *pipeline.Sink
}

// NewViewerSession builds a viewer-side session in the Init state.
func NewViewerSession(cfg ViewerSessionConfig) *ViewerSession {
	return &ViewerSession{
		peer:   peer{transport: cfg.Transport},
		sink:   cfg.Sink,
		state:  Init,
		Frames: make(chan *pipeline.Sink, 1),
	}
}

// Connect performs key exchange and authenticates with code, blocking
// until AuthResponse arrives. It returns the issued session token on
// success.
func (vs *ViewerSession) Connect(code string) (string, error) {
	ours, err := cryptochannel.GenerateKeyPair()
	if err != nil {
		return "", fmt.Errorf("session: generate key pair: %w", err)
	}
	if err := vs.peer.send(&wire.KeyExchangeMessage{PublicKey: ours.PublicKey()}); err != nil {
		return "", fmt.Errorf("session: send KeyExchange: %w", err)
	}
	msg, err := vs.peer.recvWithTimeout(handshakeTimeout, wire.ErrHandshakeTimeout)
	if err != nil {
		return "", fmt.Errorf("session: awaiting KeyExchangeAck: %w", err)
	}
	ack, ok := msg.(*wire.KeyExchangeAckMessage)
	if !ok {
		return "", fmt.Errorf("session: expected KeyExchangeAck, got %s: %w", msg.Type(), wire.ErrProtocolViolation)
	}
	secret, err := ours.ComputeSharedSecret(ack.PublicKey)
	if err != nil {
		return "", fmt.Errorf("session: compute shared secret: %w", err)
	}
	channel, err := cryptochannel.NewChannel(secret)
	if err != nil {
		return "", fmt.Errorf("session: build crypto channel: %w", err)
	}
	vs.peer.channel = channel
	vs.state = KeyAgreed

	if err := vs.peer.send(&wire.AuthRequestMessage{Code: code}); err != nil {
		return "", fmt.Errorf("session: send AuthRequest: %w", err)
	}
	msg, err = vs.peer.recvWithTimeout(handshakeTimeout, wire.ErrHandshakeTimeout)
	if err != nil {
		return "", fmt.Errorf("session: awaiting AuthResponse: %w", err)
	}
	resp, ok := msg.(*wire.AuthResponseMessage)
	if !ok {
		return "", fmt.Errorf("session: expected AuthResponse, got %s: %w", msg.Type(), wire.ErrProtocolViolation)
	}
	if !resp.Success {
		vs.state = Closed
		return "", fmt.Errorf("session: access code rejected")
	}
	vs.state = Authenticated
	vs.sessionToken = resp.SessionToken
	return resp.SessionToken, nil
}

// StartStream requests the host begin streaming.
func (vs *ViewerSession) StartStream() error {
	if err := vs.peer.send(&wire.StartStreamMessage{}); err != nil {
		return fmt.Errorf("session: send StartStream: %w", err)
	}
	vs.state = Streaming
	return nil
}

// Run reads frames and control messages until the peer disconnects,
// ctx is canceled, or a protocol violation occurs. Each applied
// ScreenFrame/DeltaFrame publishes the sink on Frames (non-blocking;
// a slow consumer just misses intermediate frames).
func (vs *ViewerSession) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg, err := vs.peer.recvWithTimeout(idleTimeout, wire.ErrIdleTimeout)
		if err != nil {
			if errors.Is(err, wire.ErrPeerClosed) {
				return nil
			}
			return err
		}
		// permittedInbound models what the host accepts from a viewer;
		// the viewer's own inbound set (frames, quality changes, ping)
		// is the complementary host->viewer half and is checked inline
		// by dispatch's switch instead of a shared table.
		if done, err := vs.dispatch(msg); done || err != nil {
			return err
		}
	}
}

func (vs *ViewerSession) dispatch(msg wire.Message) (done bool, err error) {
	switch m := msg.(type) {
	case *wire.ScreenFrameMessage:
		if err := vs.sink.ApplyScreenFrame(m); err != nil {
			if closeErr := vs.recoverFromDecodeErr(err); closeErr != nil {
				return false, closeErr
			}
			return false, nil
		}
		vs.consecutiveDecodeErrors = 0
		vs.publish()
		vs.ack(m.Timestamp)
	case *wire.DeltaFrameMessage:
		if err := vs.sink.ApplyDeltaFrame(m); err != nil {
			if closeErr := vs.recoverFromDecodeErr(err); closeErr != nil {
				return false, closeErr
			}
			return false, nil
		}
		vs.consecutiveDecodeErrors = 0
		vs.publish()
		vs.ack(m.Timestamp)
	case *wire.QualityChangeMessage:
		vs.currentQualityMode = m.Mode
	case *wire.PingMessage:
		_ = vs.peer.send(&wire.PongMessage{Timestamp: m.Timestamp})
	case *wire.DisconnectMessage:
		return true, nil
	}
	return false, nil
}

// recoverFromDecodeErr implements §4.6/§7's decoder-recovery policy: a
// decode failure drops the offending frame and requests a keyframe
// (via RequestQualityChange pinning the current mode, which also
// un-pins any prior pin) rather than tearing down the session. Any
// other ApplyScreenFrame/ApplyDeltaFrame error (malformed framebuffer
// dimensions, a protocol violation) is not recoverable and is
// returned as-is to close the session. Returns non-nil only when the
// session should close.
func (vs *ViewerSession) recoverFromDecodeErr(err error) error {
	if !errors.Is(err, codec.ErrDecoderFailed) {
		return err
	}
	vs.consecutiveDecodeErrors++
	if vs.consecutiveDecodeErrors > maxConsecutiveDecodeFailures {
		return fmt.Errorf("session: %d consecutive decode failures: %w", vs.consecutiveDecodeErrors, err)
	}
	_ = vs.RequestQualityChange(vs.currentQualityMode)
	return nil
}

func (vs *ViewerSession) publish() {
	select {
	case vs.Frames <- vs.sink:
	default:
	}
}

func (vs *ViewerSession) ack(timestamp uint64) {
	_ = vs.peer.send(&wire.FrameAckMessage{Timestamp: timestamp, ReceivedAt: uint64(time.Now().UnixMilli())})
}

// RequestQualityChange pins the host's quality controller to mode.
func (vs *ViewerSession) RequestQualityChange(mode wire.QualityMode) error {
	return vs.peer.send(&wire.RequestQualityChangeMessage{Mode: mode})
}

// Disconnect sends an orderly Disconnect and marks the session Closed.
func (vs *ViewerSession) Disconnect() error {
	err := vs.peer.send(&wire.DisconnectMessage{})
	vs.state = Closed
	return err
}
