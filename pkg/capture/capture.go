// Package capture defines the screen-capture collaborator interface
// consumed by the host frame pipeline. Platform-specific screen-grab
// drivers are out of scope for this core; SyntheticSource is the
// non-platform implementation used by headless hosts and tests.
package capture

import (
	"errors"
	"sync"
)

// ErrNotReady is returned by Source.Capture when no new frame is
// available yet; the pipeline skips the current tick rather than
// blocking.
var ErrNotReady = errors.New("capture: not ready")

// ErrCaptureFailed is returned when the capture source is unavailable;
// the pipeline pauses and retries with bounded backoff.
var ErrCaptureFailed = errors.New("capture: capture failed")

// RawFrame is one captured framebuffer snapshot: packed 24-bit RGB in
// row-major order.
type RawFrame struct {
	Width  int
	Height int
	RGB    []byte
}

// Source is the non-blocking screen-capture collaborator.
type Source interface {
	// Capture returns the latest framebuffer snapshot, or ErrNotReady
	// if none is available since the last call.
	Capture() (RawFrame, error)
}

// SyntheticSource produces a deterministic test pattern and lets a
// test or headless host mutate it directly, modeling a capture
// source without a platform screen-grab driver.
type SyntheticSource struct {
	mu    sync.Mutex
	frame RawFrame
	dirty bool
}

// NewSyntheticSource creates a solid-colored width x height frame.
func NewSyntheticSource(width, height int) *SyntheticSource {
	rgb := make([]byte, width*height*3)
	return &SyntheticSource{
		frame: RawFrame{Width: width, Height: height, RGB: rgb},
		dirty: true,
	}
}

// Capture implements Source.
func (s *SyntheticSource) Capture() (RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return RawFrame{}, ErrNotReady
	}
	s.dirty = false
	// return a copy: the pipeline must not observe later mutations of
	// the same backing array as part of this frame.
	out := RawFrame{Width: s.frame.Width, Height: s.frame.Height, RGB: append([]byte(nil), s.frame.RGB...)}
	return out, nil
}

// SetPixel mutates one pixel and marks the frame ready for the next
// Capture call, for use by tests exercising delta-tile detection.
func (s *SyntheticSource) SetPixel(x, y int, r, g, b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset := (y*s.frame.Width + x) * 3
	if offset+2 >= len(s.frame.RGB) {
		return
	}
	s.frame.RGB[offset] = r
	s.frame.RGB[offset+1] = g
	s.frame.RGB[offset+2] = b
	s.dirty = true
}

// MarkDirty forces the next Capture call to succeed even with no
// pixel change, for simulating a resolution change tick.
func (s *SyntheticSource) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}
