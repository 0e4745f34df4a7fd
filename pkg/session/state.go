// Package session drives the per-connection state machine described
// by the protocol: key agreement, authentication, and streaming,
// built on pkg/wire, pkg/cryptochannel, pkg/auth, pkg/quality, and
// pkg/pipeline.
package session

import (
	"fmt"

	"github.com/beamdesk/beamdesk/pkg/wire"
)

// State is a position in the per-session state machine.
type State uint8

const (
	Init State = iota
	KeyAgreed
	Authenticated
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case KeyAgreed:
		return "KeyAgreed"
	case Authenticated:
		return "Authenticated"
	case Streaming:
		return "Streaming"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// permittedInbound lists, per state, the message types a peer may
// send. Anything else is ErrProtocolViolation.
var permittedInbound = map[State]map[wire.MessageType]bool{
	Init: {
		wire.TypeKeyExchange: true,
	},
	KeyAgreed: {
		wire.TypeAuthRequest: true,
	},
	Authenticated: {
		wire.TypeStartStream:          true,
		wire.TypeMouseMove:            true,
		wire.TypeMouseClick:           true,
		wire.TypeMouseScroll:          true,
		wire.TypeKeyEvent:             true,
		wire.TypePing:                 true,
		wire.TypePong:                 true,
		wire.TypeRequestQualityChange: true,
		wire.TypeQualityMetricsReport: true,
		wire.TypeDisconnect:           true,
	},
	Streaming: {
		wire.TypeMouseMove:            true,
		wire.TypeMouseClick:           true,
		wire.TypeMouseScroll:          true,
		wire.TypeKeyEvent:             true,
		wire.TypeFrameAck:             true,
		wire.TypeRequestQualityChange: true,
		wire.TypeQualityMetricsReport: true,
		wire.TypePing:                 true,
		wire.TypePong:                 true,
		wire.TypeDisconnect:           true,
	},
}

// CheckInbound reports a protocol violation if msgType is not
// permitted for a peer to send while the session is in state.
func CheckInbound(state State, msgType wire.MessageType) error {
	if state == Closed {
		return fmt.Errorf("session: no messages accepted once closed: %w", wire.ErrProtocolViolation)
	}
	allowed := permittedInbound[state]
	if allowed == nil || !allowed[msgType] {
		return fmt.Errorf("session: %s not permitted in state %s: %w", msgType, state, wire.ErrProtocolViolation)
	}
	return nil
}
