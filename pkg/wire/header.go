// Package wire implements the session protocol's message codec and its
// length-prefixed framing over a reliable byte stream.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	protocolVersion = 1
	headerSize      = 8
)

// Header is the fixed prefix carried by every encoded message, ahead of
// its variable-length payload.
type Header struct {
	Version uint8
	Type    MessageType
	Flags   uint16
	Length  uint32 // length of the payload that follows the header
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, headerSize)
	buf[0] = h.Version
	buf[1] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.Flags)
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("wire: short header (%d bytes)", len(buf))
	}
	return Header{
		Version: buf[0],
		Type:    MessageType(buf[1]),
		Flags:   binary.BigEndian.Uint16(buf[2:4]),
		Length:  binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

func writeHeader(w io.Writer, h Header) error {
	_, err := w.Write(encodeHeader(h))
	return err
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return decodeHeader(buf)
}
