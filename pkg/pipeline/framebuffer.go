// Package pipeline implements the host-side frame pipeline (capture,
// tile-diff, encode, emit) and its viewer-side mirror, the frame sink.
package pipeline

import "fmt"

// Framebuffer is packed 24-bit RGB in row-major order.
type Framebuffer struct {
	Width  int
	Height int
	RGB    []byte
}

// NewFramebuffer validates that rgb matches width*height*3 and wraps it.
func NewFramebuffer(width, height int, rgb []byte) (*Framebuffer, error) {
	want := width * height * 3
	if len(rgb) != want {
		return nil, fmt.Errorf("pipeline: framebuffer %dx%d expects %d bytes, got %d", width, height, want, len(rgb))
	}
	return &Framebuffer{Width: width, Height: height, RGB: rgb}, nil
}

// Clone returns a deep copy, used when establishing a new ReferenceFrame.
func (f *Framebuffer) Clone() *Framebuffer {
	out := make([]byte, len(f.RGB))
	copy(out, f.RGB)
	return &Framebuffer{Width: f.Width, Height: f.Height, RGB: out}
}

func (f *Framebuffer) pixelOffset(x, y int) int {
	return (y*f.Width + x) * 3
}

func (f *Framebuffer) pixelAt(x, y int) (byte, byte, byte) {
	o := f.pixelOffset(x, y)
	return f.RGB[o], f.RGB[o+1], f.RGB[o+2]
}

// ExtractTile copies the w*h*3 RGB bytes of the rectangular region
// starting at (x, y).
func (f *Framebuffer) ExtractTile(x, y, w, h int) []byte {
	out := make([]byte, w*h*3)
	for row := 0; row < h; row++ {
		srcOff := f.pixelOffset(x, y+row)
		copy(out[row*w*3:(row+1)*w*3], f.RGB[srcOff:srcOff+w*3])
	}
	return out
}

// OverlayTile writes w*h*3 RGB bytes into the rectangular region
// starting at (x, y), overwriting whatever was there.
func (f *Framebuffer) OverlayTile(x, y, w, h int, data []byte) error {
	if len(data) != w*h*3 {
		return fmt.Errorf("pipeline: tile data is %d bytes, expected %d for %dx%d", len(data), w*h*3, w, h)
	}
	for row := 0; row < h; row++ {
		dstOff := f.pixelOffset(x, y+row)
		copy(f.RGB[dstOff:dstOff+w*3], data[row*w*3:(row+1)*w*3])
	}
	return nil
}
