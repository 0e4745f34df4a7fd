package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Message is implemented by every variant in the closed message set.
type Message interface {
	Type() MessageType
}

type KeyExchangeMessage struct{ PublicKey [32]byte }

func (*KeyExchangeMessage) Type() MessageType { return TypeKeyExchange }

type KeyExchangeAckMessage struct{ PublicKey [32]byte }

func (*KeyExchangeAckMessage) Type() MessageType { return TypeKeyExchangeAck }

// AuthRequestMessage carries the 6-digit access code.
type AuthRequestMessage struct{ Code string }

func (*AuthRequestMessage) Type() MessageType { return TypeAuthRequest }

type AuthResponseMessage struct {
	Success      bool
	SessionToken string // empty when Success is false
}

func (*AuthResponseMessage) Type() MessageType { return TypeAuthResponse }

type StartStreamMessage struct{}

func (*StartStreamMessage) Type() MessageType { return TypeStartStream }

type StopStreamMessage struct{}

func (*StopStreamMessage) Type() MessageType { return TypeStopStream }

type DisconnectMessage struct{}

func (*DisconnectMessage) Type() MessageType { return TypeDisconnect }

type PingMessage struct{ Timestamp uint64 }

func (*PingMessage) Type() MessageType { return TypePing }

type PongMessage struct{ Timestamp uint64 }

func (*PongMessage) Type() MessageType { return TypePong }

type ScreenFrameMessage struct {
	Timestamp uint64
	Width     uint32
	Height    uint32
	Encoding  Encoding
	Data      []byte
}

func (*ScreenFrameMessage) Type() MessageType { return TypeScreenFrame }

// Tile is a rectangular changed region carried within a DeltaFrame.
type Tile struct {
	X, Y, Width, Height uint32
	Data                []byte // zstd-compressed RGB bytes
}

type DeltaFrameMessage struct {
	Timestamp uint64
	Tiles     []Tile
}

func (*DeltaFrameMessage) Type() MessageType { return TypeDeltaFrame }

type QualityChangeMessage struct{ Mode QualityMode }

func (*QualityChangeMessage) Type() MessageType { return TypeQualityChange }

type RequestQualityChangeMessage struct{ Mode QualityMode }

func (*RequestQualityChangeMessage) Type() MessageType { return TypeRequestQualityChange }

// QualityMetrics is the derived-network-view snapshot reported to a peer.
type QualityMetrics struct {
	BandwidthMbps float64
	AvgRTTMs      float64
	LossProxy     float64
}

type QualityMetricsReportMessage struct{ Metrics QualityMetrics }

func (*QualityMetricsReportMessage) Type() MessageType { return TypeQualityMetricsReport }

type FrameAckMessage struct {
	Timestamp  uint64
	ReceivedAt uint64
}

func (*FrameAckMessage) Type() MessageType { return TypeFrameAck }

type NetworkStatsMessage struct {
	BytesSent uint64
	RTTMs     uint64
}

func (*NetworkStatsMessage) Type() MessageType { return TypeNetworkStats }

type MouseMoveMessage struct{ X, Y int32 }

func (*MouseMoveMessage) Type() MessageType { return TypeMouseMove }

type MouseClickMessage struct {
	Button  MouseButton
	Pressed bool
	X, Y    int32
}

func (*MouseClickMessage) Type() MessageType { return TypeMouseClick }

type MouseScrollMessage struct{ DeltaX, DeltaY float64 }

func (*MouseScrollMessage) Type() MessageType { return TypeMouseScroll }

// KeyModifiers mirrors the canonical modifier set carried by KeyEvent.
type KeyModifiers struct {
	Shift, Ctrl, Alt, Meta bool
}

// KeyEventMessage uses canonical key names: lowercase ASCII letters and
// digits as literal characters, plus the named keys in the GLOSSARY
// ("Return", "Escape", "BackSpace", "Tab", "Up", "Down", "Left",
// "Right", " " for space).
type KeyEventMessage struct {
	Key       string
	Pressed   bool
	Modifiers KeyModifiers
}

func (*KeyEventMessage) Type() MessageType { return TypeKeyEvent }

// EncodeMessage serializes msg to its header-prefixed wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxRecordSize {
		return nil, fmt.Errorf("wire: encoded %s payload too large (%d bytes): %w", msg.Type(), len(payload), ErrProtocolViolation)
	}
	header := encodeHeader(Header{Version: protocolVersion, Type: msg.Type(), Length: uint32(len(payload))})
	return append(header, payload...), nil
}

// DecodeMessage parses a header-prefixed wire record produced by
// EncodeMessage back into a Message.
func DecodeMessage(data []byte) (Message, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("wire: decode header: %w", err)
	}
	payload := data[headerSize:]
	if uint32(len(payload)) != h.Length {
		return nil, fmt.Errorf("wire: payload length mismatch (header says %d, got %d): %w", h.Length, len(payload), ErrProtocolViolation)
	}
	if !validMessageType(h.Type) {
		return nil, fmt.Errorf("wire: unknown message type %d: %w", h.Type, ErrProtocolViolation)
	}
	return decodePayload(h.Type, payload)
}

// WriteMessage encodes msg and writes it to w in one call.
func WriteMessage(w io.Writer, msg Message) error {
	buf, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadMessage reads a single header-prefixed message from r.
func ReadMessage(r io.Reader) (Message, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Length > MaxRecordSize {
		return nil, fmt.Errorf("wire: record of %d bytes exceeds maximum: %w", h.Length, ErrProtocolViolation)
	}
	if !validMessageType(h.Type) {
		return nil, fmt.Errorf("wire: unknown message type %d: %w", h.Type, ErrProtocolViolation)
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return decodePayload(h.Type, payload)
}

func encodePayload(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case *KeyExchangeMessage:
		buf.Write(m.PublicKey[:])
	case *KeyExchangeAckMessage:
		buf.Write(m.PublicKey[:])
	case *AuthRequestMessage:
		if len(m.Code) != 6 {
			return nil, fmt.Errorf("wire: AuthRequest code must be 6 digits, got %q", m.Code)
		}
		buf.WriteString(m.Code)
	case *AuthResponseMessage:
		if m.Success {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeString16(&buf, m.SessionToken)
	case *StartStreamMessage, *StopStreamMessage, *DisconnectMessage:
		// empty payload
	case *PingMessage:
		binary.Write(&buf, binary.BigEndian, m.Timestamp)
	case *PongMessage:
		binary.Write(&buf, binary.BigEndian, m.Timestamp)
	case *ScreenFrameMessage:
		binary.Write(&buf, binary.BigEndian, m.Timestamp)
		binary.Write(&buf, binary.BigEndian, m.Width)
		binary.Write(&buf, binary.BigEndian, m.Height)
		buf.WriteByte(byte(m.Encoding))
		writeBytes32(&buf, m.Data)
	case *DeltaFrameMessage:
		binary.Write(&buf, binary.BigEndian, m.Timestamp)
		binary.Write(&buf, binary.BigEndian, uint16(len(m.Tiles)))
		for _, t := range m.Tiles {
			binary.Write(&buf, binary.BigEndian, t.X)
			binary.Write(&buf, binary.BigEndian, t.Y)
			binary.Write(&buf, binary.BigEndian, t.Width)
			binary.Write(&buf, binary.BigEndian, t.Height)
			writeBytes32(&buf, t.Data)
		}
	case *QualityChangeMessage:
		buf.WriteByte(byte(m.Mode))
	case *RequestQualityChangeMessage:
		buf.WriteByte(byte(m.Mode))
	case *QualityMetricsReportMessage:
		binary.Write(&buf, binary.BigEndian, math.Float64bits(m.Metrics.BandwidthMbps))
		binary.Write(&buf, binary.BigEndian, math.Float64bits(m.Metrics.AvgRTTMs))
		binary.Write(&buf, binary.BigEndian, math.Float64bits(m.Metrics.LossProxy))
	case *FrameAckMessage:
		binary.Write(&buf, binary.BigEndian, m.Timestamp)
		binary.Write(&buf, binary.BigEndian, m.ReceivedAt)
	case *NetworkStatsMessage:
		binary.Write(&buf, binary.BigEndian, m.BytesSent)
		binary.Write(&buf, binary.BigEndian, m.RTTMs)
	case *MouseMoveMessage:
		binary.Write(&buf, binary.BigEndian, m.X)
		binary.Write(&buf, binary.BigEndian, m.Y)
	case *MouseClickMessage:
		buf.WriteByte(byte(m.Button))
		buf.WriteByte(boolByte(m.Pressed))
		binary.Write(&buf, binary.BigEndian, m.X)
		binary.Write(&buf, binary.BigEndian, m.Y)
	case *MouseScrollMessage:
		binary.Write(&buf, binary.BigEndian, math.Float64bits(m.DeltaX))
		binary.Write(&buf, binary.BigEndian, math.Float64bits(m.DeltaY))
	case *KeyEventMessage:
		writeString16(&buf, m.Key)
		buf.WriteByte(boolByte(m.Pressed))
		buf.WriteByte(packModifiers(m.Modifiers))
	default:
		return nil, fmt.Errorf("wire: unsupported message %T", msg)
	}
	return buf.Bytes(), nil
}

func decodePayload(t MessageType, payload []byte) (Message, error) {
	r := bytes.NewReader(payload)
	switch t {
	case TypeKeyExchange:
		var m KeyExchangeMessage
		if _, err := io.ReadFull(r, m.PublicKey[:]); err != nil {
			return nil, violation("KeyExchange", err)
		}
		return &m, nil
	case TypeKeyExchangeAck:
		var m KeyExchangeAckMessage
		if _, err := io.ReadFull(r, m.PublicKey[:]); err != nil {
			return nil, violation("KeyExchangeAck", err)
		}
		return &m, nil
	case TypeAuthRequest:
		if len(payload) != 6 {
			return nil, violation("AuthRequest", fmt.Errorf("expected 6-byte code, got %d", len(payload)))
		}
		return &AuthRequestMessage{Code: string(payload)}, nil
	case TypeAuthResponse:
		success, err := r.ReadByte()
		if err != nil {
			return nil, violation("AuthResponse", err)
		}
		token, err := readString16(r)
		if err != nil {
			return nil, violation("AuthResponse", err)
		}
		return &AuthResponseMessage{Success: success != 0, SessionToken: token}, nil
	case TypeStartStream:
		return &StartStreamMessage{}, nil
	case TypeStopStream:
		return &StopStreamMessage{}, nil
	case TypeDisconnect:
		return &DisconnectMessage{}, nil
	case TypePing:
		ts, err := readUint64(r)
		if err != nil {
			return nil, violation("Ping", err)
		}
		return &PingMessage{Timestamp: ts}, nil
	case TypePong:
		ts, err := readUint64(r)
		if err != nil {
			return nil, violation("Pong", err)
		}
		return &PongMessage{Timestamp: ts}, nil
	case TypeScreenFrame:
		return decodeScreenFrame(r)
	case TypeDeltaFrame:
		return decodeDeltaFrame(r)
	case TypeQualityChange:
		mode, err := r.ReadByte()
		if err != nil {
			return nil, violation("QualityChange", err)
		}
		return &QualityChangeMessage{Mode: QualityMode(mode)}, nil
	case TypeRequestQualityChange:
		mode, err := r.ReadByte()
		if err != nil {
			return nil, violation("RequestQualityChange", err)
		}
		return &RequestQualityChangeMessage{Mode: QualityMode(mode)}, nil
	case TypeQualityMetricsReport:
		bw, err := readFloat64(r)
		if err != nil {
			return nil, violation("QualityMetricsReport", err)
		}
		rtt, err := readFloat64(r)
		if err != nil {
			return nil, violation("QualityMetricsReport", err)
		}
		loss, err := readFloat64(r)
		if err != nil {
			return nil, violation("QualityMetricsReport", err)
		}
		return &QualityMetricsReportMessage{Metrics: QualityMetrics{BandwidthMbps: bw, AvgRTTMs: rtt, LossProxy: loss}}, nil
	case TypeFrameAck:
		ts, err := readUint64(r)
		if err != nil {
			return nil, violation("FrameAck", err)
		}
		ra, err := readUint64(r)
		if err != nil {
			return nil, violation("FrameAck", err)
		}
		return &FrameAckMessage{Timestamp: ts, ReceivedAt: ra}, nil
	case TypeNetworkStats:
		bs, err := readUint64(r)
		if err != nil {
			return nil, violation("NetworkStats", err)
		}
		rtt, err := readUint64(r)
		if err != nil {
			return nil, violation("NetworkStats", err)
		}
		return &NetworkStatsMessage{BytesSent: bs, RTTMs: rtt}, nil
	case TypeMouseMove:
		x, err := readInt32(r)
		if err != nil {
			return nil, violation("MouseMove", err)
		}
		y, err := readInt32(r)
		if err != nil {
			return nil, violation("MouseMove", err)
		}
		return &MouseMoveMessage{X: x, Y: y}, nil
	case TypeMouseClick:
		button, err := r.ReadByte()
		if err != nil {
			return nil, violation("MouseClick", err)
		}
		pressed, err := r.ReadByte()
		if err != nil {
			return nil, violation("MouseClick", err)
		}
		x, err := readInt32(r)
		if err != nil {
			return nil, violation("MouseClick", err)
		}
		y, err := readInt32(r)
		if err != nil {
			return nil, violation("MouseClick", err)
		}
		return &MouseClickMessage{Button: MouseButton(button), Pressed: pressed != 0, X: x, Y: y}, nil
	case TypeMouseScroll:
		dx, err := readFloat64(r)
		if err != nil {
			return nil, violation("MouseScroll", err)
		}
		dy, err := readFloat64(r)
		if err != nil {
			return nil, violation("MouseScroll", err)
		}
		return &MouseScrollMessage{DeltaX: dx, DeltaY: dy}, nil
	case TypeKeyEvent:
		key, err := readString16(r)
		if err != nil {
			return nil, violation("KeyEvent", err)
		}
		pressed, err := r.ReadByte()
		if err != nil {
			return nil, violation("KeyEvent", err)
		}
		mods, err := r.ReadByte()
		if err != nil {
			return nil, violation("KeyEvent", err)
		}
		return &KeyEventMessage{Key: key, Pressed: pressed != 0, Modifiers: unpackModifiers(mods)}, nil
	default:
		return nil, fmt.Errorf("wire: unknown message type %d: %w", t, ErrProtocolViolation)
	}
}

func decodeScreenFrame(r *bytes.Reader) (Message, error) {
	ts, err := readUint64(r)
	if err != nil {
		return nil, violation("ScreenFrame", err)
	}
	width, err := readUint32(r)
	if err != nil {
		return nil, violation("ScreenFrame", err)
	}
	height, err := readUint32(r)
	if err != nil {
		return nil, violation("ScreenFrame", err)
	}
	enc, err := r.ReadByte()
	if err != nil {
		return nil, violation("ScreenFrame", err)
	}
	data, err := readBytes32(r)
	if err != nil {
		return nil, violation("ScreenFrame", err)
	}
	return &ScreenFrameMessage{Timestamp: ts, Width: width, Height: height, Encoding: Encoding(enc), Data: data}, nil
}

func decodeDeltaFrame(r *bytes.Reader) (Message, error) {
	ts, err := readUint64(r)
	if err != nil {
		return nil, violation("DeltaFrame", err)
	}
	count, err := readUint16(r)
	if err != nil {
		return nil, violation("DeltaFrame", err)
	}
	tiles := make([]Tile, 0, count)
	for i := uint16(0); i < count; i++ {
		var t Tile
		if t.X, err = readUint32(r); err != nil {
			return nil, violation("DeltaFrame", err)
		}
		if t.Y, err = readUint32(r); err != nil {
			return nil, violation("DeltaFrame", err)
		}
		if t.Width, err = readUint32(r); err != nil {
			return nil, violation("DeltaFrame", err)
		}
		if t.Height, err = readUint32(r); err != nil {
			return nil, violation("DeltaFrame", err)
		}
		if t.Data, err = readBytes32(r); err != nil {
			return nil, violation("DeltaFrame", err)
		}
		tiles = append(tiles, t)
	}
	return &DeltaFrameMessage{Timestamp: ts, Tiles: tiles}, nil
}

func violation(what string, err error) error {
	return fmt.Errorf("wire: malformed %s: %v: %w", what, err, ErrProtocolViolation)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func packModifiers(m KeyModifiers) byte {
	var b byte
	if m.Shift {
		b |= 1 << 0
	}
	if m.Ctrl {
		b |= 1 << 1
	}
	if m.Alt {
		b |= 1 << 2
	}
	if m.Meta {
		b |= 1 << 3
	}
	return b
}

func unpackModifiers(b byte) KeyModifiers {
	return KeyModifiers{
		Shift: b&(1<<0) != 0,
		Ctrl:  b&(1<<1) != 0,
		Alt:   b&(1<<2) != 0,
		Meta:  b&(1<<3) != 0,
	}
}

func writeString16(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString16(r *bytes.Reader) (string, error) {
	b, err := readBytes16(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytes32(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

func readBytes32(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if int(n) > MaxRecordSize {
		return nil, fmt.Errorf("length %d exceeds maximum", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func readBytes16(r *bytes.Reader) ([]byte, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readUint16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readFloat64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
