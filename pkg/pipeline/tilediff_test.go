package pipeline

import (
	"bytes"
	"testing"
)

func solidFramebuffer(t *testing.T, width, height int, r, g, b byte) *Framebuffer {
	t.Helper()
	rgb := bytes.Repeat([]byte{r, g, b}, width*height)
	fb, err := NewFramebuffer(width, height, rgb)
	if err != nil {
		t.Fatal(err)
	}
	return fb
}

// TestTileGridAndThreshold exercises S5: an 11-of-16 tile mutation on
// a 256x256 (4x4 tile grid) frame exceeds the 60% promotion threshold.
func TestKeyframePromotionAtSixtyPercent(t *testing.T) {
	prev := solidFramebuffer(t, 256, 256, 0, 0, 0)
	curr := prev.Clone()

	cols, rows := TileGridSize(256, 256)
	if cols != 4 || rows != 4 {
		t.Fatalf("expected 4x4 grid, got %dx%d", cols, rows)
	}

	mutated := 0
	for row := 0; row < rows && mutated < 11; row++ {
		for col := 0; col < cols && mutated < 11; col++ {
			x, y, w, h := tileBounds(col, row, 256, 256)
			mutateTile(curr, x, y, w, h)
			mutated++
		}
	}

	changed := FindChangedTiles(prev, curr)
	if len(changed) != 11 {
		t.Fatalf("expected 11 changed tiles, got %d", len(changed))
	}
	if !ExceedsKeyframeThreshold(len(changed), TotalTiles(256, 256)) {
		t.Fatal("11/16 changed tiles should exceed the 60% keyframe promotion threshold")
	}
}

func TestBelowThresholdStaysDelta(t *testing.T) {
	prev := solidFramebuffer(t, 256, 256, 0, 0, 0)
	curr := prev.Clone()

	cols, rows := TileGridSize(256, 256)
	mutated := 0
	for row := 0; row < rows && mutated < 5; row++ {
		for col := 0; col < cols && mutated < 5; col++ {
			x, y, w, h := tileBounds(col, row, 256, 256)
			mutateTile(curr, x, y, w, h)
			mutated++
		}
	}

	changed := FindChangedTiles(prev, curr)
	if ExceedsKeyframeThreshold(len(changed), TotalTiles(256, 256)) {
		t.Fatal("5/16 changed tiles should stay below the keyframe promotion threshold")
	}
}

// TestDeltaTileOrderAndReconstruction exercises S4: a 128x128 (2x2
// tile) image where two tiles mutate yields exactly those tiles in
// (0,0), (64,0) order, and overlaying them reproduces the host image
// byte-for-byte.
func TestDeltaTileOrderAndReconstruction(t *testing.T) {
	prev := solidFramebuffer(t, 128, 128, 10, 20, 30)
	curr := prev.Clone()

	mutateTile(curr, 0, 0, 64, 64)
	mutateTile(curr, 64, 0, 64, 64)

	changed := FindChangedTiles(prev, curr)
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed tiles, got %d", len(changed))
	}
	if changed[0] != (TileRegion{X: 0, Y: 0, Width: 64, Height: 64}) {
		t.Fatalf("expected first changed tile at (0,0), got %+v", changed[0])
	}
	if changed[1] != (TileRegion{X: 64, Y: 0, Width: 64, Height: 64}) {
		t.Fatalf("expected second changed tile at (64,0), got %+v", changed[1])
	}

	// Reconstruct: start from prev (the viewer's old reference) and
	// overlay exactly the changed tiles extracted from curr.
	reconstructed := prev.Clone()
	for _, region := range changed {
		tileData := curr.ExtractTile(region.X, region.Y, region.Width, region.Height)
		if err := reconstructed.OverlayTile(region.X, region.Y, region.Width, region.Height, tileData); err != nil {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(reconstructed.RGB, curr.RGB) {
		t.Fatal("reconstructed framebuffer does not match host image byte-for-byte")
	}
}

func TestClippedEdgeTileDimensions(t *testing.T) {
	// 100x100 yields a 2x2 grid with clipped tiles of 36x36 on the
	// right/bottom edges: min(64, 100-64) = 36.
	cols, rows := TileGridSize(100, 100)
	if cols != 2 || rows != 2 {
		t.Fatalf("expected 2x2 grid for 100x100, got %dx%d", cols, rows)
	}
	x, y, w, h := tileBounds(1, 1, 100, 100)
	if x != 64 || y != 64 || w != 36 || h != 36 {
		t.Fatalf("expected clipped tile (64,64,36,36), got (%d,%d,%d,%d)", x, y, w, h)
	}
}

func mutateTile(fb *Framebuffer, x, y, w, h int) {
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = 0xFF
	}
	_ = fb.OverlayTile(x, y, w, h, data)
}
