package pipeline

// TileSize is the edge length of a non-clipped tile; tiles along the
// right/bottom edge of the framebuffer are clipped to fit.
const TileSize = 64

// keyframeThresholdNumerator/Denominator express the 60% promotion
// rule as the exact integer comparison used throughout this package:
// changed > total * 6 / 10.
const (
	thresholdNumerator   = 6
	thresholdDenominator = 10
)

// TileRegion is a changed rectangular region, in the same shape the
// wire protocol's Tile carries.
type TileRegion struct {
	X, Y, Width, Height int
}

// TileGridSize returns the number of tile columns and rows covering a
// width x height framebuffer.
func TileGridSize(width, height int) (cols, rows int) {
	cols = (width + TileSize - 1) / TileSize
	rows = (height + TileSize - 1) / TileSize
	return cols, rows
}

// tileBounds returns the clipped (x, y, w, h) for tile (col, row).
func tileBounds(col, row, width, height int) (x, y, w, h int) {
	x = col * TileSize
	y = row * TileSize
	w = minInt(TileSize, width-x)
	h = minInt(TileSize, height-y)
	return
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FindChangedTiles compares prev and curr tile-by-tile, returning the
// changed set in row-major order (row 0 left-to-right, then row 1,
// ...). A tile is changed if any of its four corner pixels or its
// center pixel differ between prev and curr.
func FindChangedTiles(prev, curr *Framebuffer) []TileRegion {
	cols, rows := TileGridSize(curr.Width, curr.Height)
	var changed []TileRegion
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y, w, h := tileBounds(col, row, curr.Width, curr.Height)
			if tileChanged(prev, curr, x, y, w, h) {
				changed = append(changed, TileRegion{X: x, Y: y, Width: w, Height: h})
			}
		}
	}
	return changed
}

func tileChanged(prev, curr *Framebuffer, x, y, w, h int) bool {
	points := samplePoints(x, y, w, h)
	for _, p := range points {
		pr, pg, pb := prev.pixelAt(p[0], p[1])
		cr, cg, cb := curr.pixelAt(p[0], p[1])
		if pr != cr || pg != cg || pb != cb {
			return true
		}
	}
	return false
}

// samplePoints returns the four corners and the center of a tile.
func samplePoints(x, y, w, h int) [5][2]int {
	right := x + w - 1
	bottom := y + h - 1
	cx := x + w/2
	cy := y + h/2
	return [5][2]int{
		{x, y},
		{right, y},
		{x, bottom},
		{right, bottom},
		{cx, cy},
	}
}

// TotalTiles is the grid cell count for width x height.
func TotalTiles(width, height int) int {
	cols, rows := TileGridSize(width, height)
	return cols * rows
}

// ExceedsKeyframeThreshold reports whether changedCount of totalTiles
// exceeds the 60% promotion threshold. The comparison intentionally
// matches integer-truncating division (totalTiles*6/10) rather than
// cross-multiplication, to stay bit-for-bit faithful to the reference
// threshold check.
func ExceedsKeyframeThreshold(changedCount, totalTiles int) bool {
	return changedCount > totalTiles*thresholdNumerator/thresholdDenominator
}
