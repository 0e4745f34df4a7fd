package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// Transport provides reliable, ordered delivery of opaque byte records
// over a pair of stream halves. It carries no knowledge of message
// content or encryption; SendRecord/RecvRecord move raw bytes framed
// by a 4-byte big-endian length prefix, mirroring the production QUIC
// stream framing in pkg/netutil but usable over any io.Reader/io.Writer
// pair (an io.Pipe in tests, a *quic.Stream in production).
type Transport struct {
	r io.Reader
	w io.Writer
}

// NewTransport builds a Transport from independent reader and writer
// halves so both directions can be driven concurrently without sharing
// a lock.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: r, w: w}
}

// NewStreamTransport builds a Transport over a single full-duplex
// stream (e.g. a *quic.Stream or a net.Conn) where the same value
// serves as both halves.
func NewStreamTransport(rw io.ReadWriter) *Transport {
	return &Transport{r: rw, w: rw}
}

// SendRecord writes u32_be(len(record)) followed by record.
func (t *Transport) SendRecord(record []byte) error {
	if len(record) > MaxRecordSize {
		return fmt.Errorf("wire: record of %d bytes exceeds maximum: %w", len(record), ErrProtocolViolation)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(record)))
	if _, err := t.w.Write(lenBuf[:]); err != nil {
		return classifyWriteErr(err)
	}
	if len(record) == 0 {
		return nil
	}
	if _, err := t.w.Write(record); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// RecvRecord reads one length-prefixed record.
func (t *Transport) RecvRecord() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(t.r, lenBuf[:]); err != nil {
		return nil, classifyReadErr(err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxRecordSize {
		return nil, fmt.Errorf("wire: incoming record of %d bytes exceeds maximum: %w", length, ErrProtocolViolation)
	}
	record := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(t.r, record); err != nil {
			return nil, classifyReadErr(err)
		}
	}
	return record, nil
}

func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransportFailed, err)
}

func classifyReadErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrPeerClosed, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrPeerClosed, err)
	}
	return fmt.Errorf("%w: %v", ErrTransportFailed, err)
}
