package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beamdesk/beamdesk/pkg/auth"
	"github.com/beamdesk/beamdesk/pkg/cryptochannel"
	"github.com/beamdesk/beamdesk/pkg/input"
	"github.com/beamdesk/beamdesk/pkg/pipeline"
	"github.com/beamdesk/beamdesk/pkg/quality"
	"github.com/beamdesk/beamdesk/pkg/registry"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

// sessionTokenValidity is how long a SessionToken remains usable after
// a successful AuthRequest.
const sessionTokenValidity = 12 * time.Hour

// outboundQueueSize bounds the per-session outbound message queue; a
// slow peer fills it and the writer applies backpressure rather than
// letting it grow without bound.
const outboundQueueSize = 64

// handshakeTimeout bounds each of key exchange and auth; exceeding it
// is ErrHandshakeTimeout.
const handshakeTimeout = 10 * time.Second

// idleTimeout closes a session that reads no record for this long.
const idleTimeout = 30 * time.Second

// inputQueueSize bounds the host's pending-input-event queue; the
// synthetic-input collaborator may block (§6.2), and the read loop
// must never block waiting on it, so a full queue drops the event
// rather than stalling the reader.
const inputQueueSize = 256

// wire/transport plumbing shared by host and viewer sessions.
type peer struct {
	transport *wire.Transport
	channel   *cryptochannel.Channel // nil until KeyAgreed
}

func (p *peer) send(msg wire.Message) error {
	payload, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if p.channel == nil {
		return p.transport.SendRecord(payload)
	}
	sealed, err := p.channel.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("session: encrypt %s: %w", msg.Type(), err)
	}
	return p.transport.SendRecord(sealed)
}

func (p *peer) recv() (wire.Message, error) {
	record, err := p.transport.RecvRecord()
	if err != nil {
		return nil, err
	}
	payload := record
	if p.channel != nil {
		payload, err = p.channel.Decrypt(record)
		if err != nil {
			return nil, fmt.Errorf("session: decrypt: %w", err)
		}
	}
	return wire.DecodeMessage(payload)
}

// recvResult carries the outcome of a recv() run on its own goroutine
// so the caller can race it against a timeout.
type recvResult struct {
	msg wire.Message
	err error
}

// recvWithTimeout waits up to d for the next message. On timeout it
// returns timeoutErr; the abandoned recv() goroutine exits once the
// caller closes the underlying transport, which is the caller's
// responsibility on a timeout error.
func (p *peer) recvWithTimeout(d time.Duration, timeoutErr error) (wire.Message, error) {
	done := make(chan recvResult, 1)
	go func() {
		msg, err := p.recv()
		done <- recvResult{msg, err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-time.After(d):
		return nil, timeoutErr
	}
}

// HostSession drives one viewer connection on the host side: key
// agreement, access-code authentication, and frame streaming.
type HostSession struct {
	peer peer

	accessCode *auth.AccessCode
	registry   *registry.Registry
	pipeline   *pipeline.HostPipeline
	injector   input.Injector
	quality    *quality.Controller

	state             State
	sessionID         string
	remoteAddr        string
	sessionTokenValue string
	outbound          chan wire.Message
	inputEvents       chan func()
	captureWG         sync.WaitGroup

	onAuthenticated func(token, sessionID, remoteAddr string, expiresAt time.Time)
	onClosed        func(token string)
}

// HostSessionConfig bundles the collaborators one HostSession needs.
type HostSessionConfig struct {
	Transport  *wire.Transport
	AccessCode *auth.AccessCode
	Registry   *registry.Registry
	Pipeline   *pipeline.HostPipeline
	Injector   input.Injector
	SessionID  string
	RemoteAddr string

	// OnAuthenticated and OnClosed, when set, let a caller persist
	// session lifecycle events (e.g. to pkg/persistence) without
	// coupling the session controller itself to a storage backend.
	OnAuthenticated func(token, sessionID, remoteAddr string, expiresAt time.Time)
	OnClosed        func(token string)
}

// NewHostSession builds a host-side session in the Init state.
func NewHostSession(cfg HostSessionConfig) *HostSession {
	hs := &HostSession{
		peer:       peer{transport: cfg.Transport},
		accessCode: cfg.AccessCode,
		registry:   cfg.Registry,
		pipeline:   cfg.Pipeline,
		injector:   cfg.Injector,
		sessionID:  cfg.SessionID,
		remoteAddr: cfg.RemoteAddr,
		state:       Init,
		outbound:    make(chan wire.Message, outboundQueueSize),
		inputEvents: make(chan func(), inputQueueSize),

		onAuthenticated: cfg.OnAuthenticated,
		onClosed:        cfg.OnClosed,
	}
	hs.quality = quality.NewController(func(mode quality.Mode) {
		hs.pipeline.SetMode(mode)
		if hs.sessionTokenValue != "" {
			hs.registry.SetQualityMode(registry.FingerprintOf(hs.sessionTokenValue), mode.String())
		}
		select {
		case hs.outbound <- &wire.QualityChangeMessage{Mode: mode.ToWire()}:
		default:
		}
	})
	return hs
}

// Run drives the session to completion: key exchange, authentication,
// and streaming dispatch, returning when the peer disconnects, a
// protocol violation occurs, or ctx is canceled.
func (hs *HostSession) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := hs.handleKeyExchange(); err != nil {
		return err
	}
	if err := hs.handleAuth(); err != nil {
		return err
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		hs.writeLoop(ctx)
	}()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		hs.inputLoop(ctx)
	}()

	err := hs.readLoop(ctx)

	cancel()
	hs.captureWG.Wait()
	close(hs.outbound)
	<-writerDone
	<-inputDone

	if hs.sessionTokenValue != "" {
		fp := registry.FingerprintOf(hs.sessionTokenValue)
		hs.registry.Unregister(fp)
		if hs.onClosed != nil {
			hs.onClosed(hs.sessionTokenValue)
		}
	}
	hs.state = Closed
	return err
}

func (hs *HostSession) handleKeyExchange() error {
	msg, err := hs.peer.recvWithTimeout(handshakeTimeout, wire.ErrHandshakeTimeout)
	if err != nil {
		return fmt.Errorf("session: awaiting KeyExchange: %w", err)
	}
	if err := CheckInbound(hs.state, msg.Type()); err != nil {
		return err
	}
	kx := msg.(*wire.KeyExchangeMessage)

	ours, err := cryptochannel.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("session: generate key pair: %w", err)
	}
	if err := hs.peer.send(&wire.KeyExchangeAckMessage{PublicKey: ours.PublicKey()}); err != nil {
		return fmt.Errorf("session: send KeyExchangeAck: %w", err)
	}
	secret, err := ours.ComputeSharedSecret(kx.PublicKey)
	if err != nil {
		return fmt.Errorf("session: compute shared secret: %w", err)
	}
	channel, err := cryptochannel.NewChannel(secret)
	if err != nil {
		return fmt.Errorf("session: build crypto channel: %w", err)
	}
	hs.peer.channel = channel
	hs.state = KeyAgreed
	return nil
}

func (hs *HostSession) handleAuth() error {
	msg, err := hs.peer.recvWithTimeout(handshakeTimeout, wire.ErrHandshakeTimeout)
	if err != nil {
		return fmt.Errorf("session: awaiting AuthRequest: %w", err)
	}
	if err := CheckInbound(hs.state, msg.Type()); err != nil {
		return err
	}
	req := msg.(*wire.AuthRequestMessage)

	if !hs.accessCode.Verify(req.Code) {
		_ = hs.peer.send(&wire.AuthResponseMessage{Success: false})
		hs.state = Closed
		return fmt.Errorf("session: authentication failed")
	}

	token, err := auth.GenerateSessionToken(sessionTokenValidity)
	if err != nil {
		return fmt.Errorf("session: generate session token: %w", err)
	}
	hs.sessionTokenValue = token.Value
	hs.registry.Register(registry.FingerprintOf(token.Value), &registry.Entry{
		Fingerprint: registry.FingerprintOf(token.Value),
		SessionID:   hs.sessionID,
		RemoteAddr:  hs.remoteAddr,
		QualityMode: hs.quality.Current().String(),
	})
	if err := hs.peer.send(&wire.AuthResponseMessage{Success: true, SessionToken: token.Value}); err != nil {
		return fmt.Errorf("session: send AuthResponse: %w", err)
	}
	if hs.onAuthenticated != nil {
		hs.onAuthenticated(token.Value, hs.sessionID, hs.remoteAddr, token.ExpiresAt())
	}
	hs.state = Authenticated
	return nil
}

func (hs *HostSession) readLoop(ctx context.Context) error {
	for {
		msg, err := hs.peer.recvWithTimeout(idleTimeout, wire.ErrIdleTimeout)
		if err != nil {
			if errors.Is(err, wire.ErrPeerClosed) {
				return nil
			}
			return err
		}
		if err := CheckInbound(hs.state, msg.Type()); err != nil {
			return err
		}
		if done, err := hs.dispatch(ctx, msg); done || err != nil {
			return err
		}
	}
}

// dispatch handles one inbound message. done signals an orderly
// Disconnect.
func (hs *HostSession) dispatch(ctx context.Context, msg wire.Message) (done bool, err error) {
	switch m := msg.(type) {
	case *wire.StartStreamMessage:
		hs.state = Streaming
		hs.outbound <- &wire.QualityChangeMessage{Mode: hs.quality.Current().ToWire()}
		hs.captureWG.Add(1)
		go func() {
			defer hs.captureWG.Done()
			hs.captureLoop(ctx)
		}()
	case *wire.StopStreamMessage:
		hs.state = Authenticated
	case *wire.MouseMoveMessage:
		hs.queueInput(func() { hs.injector.Move(m.X, m.Y) })
	case *wire.MouseClickMessage:
		hs.queueInput(func() { hs.injector.Click(m.Button, m.Pressed, m.X, m.Y) })
	case *wire.MouseScrollMessage:
		hs.queueInput(func() { hs.injector.Scroll(m.DeltaX, m.DeltaY) })
	case *wire.KeyEventMessage:
		hs.queueInput(func() { hs.injector.Key(m.Key, m.Pressed, m.Modifiers) })
	case *wire.FrameAckMessage:
		rtt := m.ReceivedAt - m.Timestamp
		hs.quality.UpdateMetrics(0, float64(rtt))
	case *wire.RequestQualityChangeMessage:
		hs.quality.ForceMode(quality.FromWire(m.Mode))
	case *wire.PingMessage:
		hs.outbound <- &wire.PongMessage{Timestamp: m.Timestamp}
	case *wire.PongMessage:
		// no action; liveness only
	case *wire.QualityMetricsReportMessage:
		hs.quality.UpdateMetrics(uint64(m.Metrics.BandwidthMbps*1e6/8), m.Metrics.AvgRTTMs)
	case *wire.DisconnectMessage:
		return true, nil
	}
	return false, nil
}

// queueInput hands an input event to the dedicated input worker rather
// than calling the injector inline, so a slow or blocking injector
// (§6.2) never stalls the read loop. A full queue drops the event.
func (hs *HostSession) queueInput(fn func()) {
	select {
	case hs.inputEvents <- fn:
	default:
	}
}

// inputLoop is the dedicated worker that may block on the
// synthetic-input collaborator; it runs independently of reader and
// writer so input dispatch never competes with transport I/O.
func (hs *HostSession) inputLoop(ctx context.Context) {
	for {
		select {
		case fn := <-hs.inputEvents:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

func (hs *HostSession) writeLoop(ctx context.Context) {
	for {
		select {
		case msg, ok := <-hs.outbound:
			if !ok {
				return
			}
			if err := hs.peer.send(msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// captureLoop drives the frame pipeline while the session is
// Streaming, emitting frames onto the outbound queue. A full queue
// drops the candidate frame rather than blocking the tick, matching
// the pipeline's backpressure rule.
func (hs *HostSession) captureLoop(ctx context.Context) {
	ticker := time.NewTicker(8 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if hs.state != Streaming {
				return
			}
			msg, err := hs.pipeline.Tick(now)
			if err != nil || msg == nil {
				continue
			}
			select {
			case hs.outbound <- msg:
			default:
				// backpressure: drop the candidate frame
			}
		}
	}
}
