package wire

import "errors"

// MessageType tags each variant in the closed message set. The codec
// rejects any value outside this set as ErrProtocolViolation.
type MessageType uint8

const (
	TypeKeyExchange MessageType = iota + 1
	TypeKeyExchangeAck
	TypeAuthRequest
	TypeAuthResponse
	TypeStartStream
	TypeStopStream
	TypeDisconnect
	TypePing
	TypePong
	TypeScreenFrame
	TypeDeltaFrame
	TypeQualityChange
	TypeRequestQualityChange
	TypeQualityMetricsReport
	TypeFrameAck
	TypeNetworkStats
	TypeMouseMove
	TypeMouseClick
	TypeMouseScroll
	TypeKeyEvent
)

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

var typeNames = map[MessageType]string{
	TypeKeyExchange:          "KeyExchange",
	TypeKeyExchangeAck:       "KeyExchangeAck",
	TypeAuthRequest:          "AuthRequest",
	TypeAuthResponse:         "AuthResponse",
	TypeStartStream:          "StartStream",
	TypeStopStream:           "StopStream",
	TypeDisconnect:           "Disconnect",
	TypePing:                 "Ping",
	TypePong:                 "Pong",
	TypeScreenFrame:          "ScreenFrame",
	TypeDeltaFrame:           "DeltaFrame",
	TypeQualityChange:        "QualityChange",
	TypeRequestQualityChange: "RequestQualityChange",
	TypeQualityMetricsReport: "QualityMetricsReport",
	TypeFrameAck:             "FrameAck",
	TypeNetworkStats:         "NetworkStats",
	TypeMouseMove:            "MouseMove",
	TypeMouseClick:           "MouseClick",
	TypeMouseScroll:          "MouseScroll",
	TypeKeyEvent:             "KeyEvent",
}

func validMessageType(t MessageType) bool {
	_, ok := typeNames[t]
	return ok
}

// Encoding names the codec used for a ScreenFrame's payload.
type Encoding uint8

const (
	EncodingRaw Encoding = iota
	EncodingZstdCompressed
	EncodingH264
	EncodingWebP
)

// QualityMode is the wire representation of a quality operating point.
// pkg/quality.Mode maps onto this one-for-one; wire does not depend on
// pkg/quality to avoid a cycle between the codec and the controller.
type QualityMode uint8

const (
	QualityUltra QualityMode = iota
	QualityHigh
	QualityMedium
	QualityLow
	QualityMinimal
)

// MouseButton enumerates the buttons carried by MouseClick.
type MouseButton uint8

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

// ErrProtocolViolation is returned for an unrecognized message tag, a
// malformed payload, or an oversized record.
var ErrProtocolViolation = errors.New("wire: protocol violation")

// ErrTransportFailed is returned when the underlying stream errors.
var ErrTransportFailed = errors.New("wire: transport failed")

// ErrPeerClosed is returned on an orderly half-close.
var ErrPeerClosed = errors.New("wire: peer closed")

// ErrHandshakeTimeout is returned when key exchange or auth does not
// complete within the session's handshake timeout.
var ErrHandshakeTimeout = errors.New("wire: handshake timeout")

// ErrIdleTimeout is returned when no record is read within the
// session's idle timeout.
var ErrIdleTimeout = errors.New("wire: idle timeout")

// MaxRecordSize bounds a single framed record; exceeding it is a fatal
// ProtocolViolation rather than an unbounded allocation.
const MaxRecordSize = 16 * 1024 * 1024
