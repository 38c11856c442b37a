package sim

import "math/bits"

// Terrain is the destructible dirt layer: one visibility bit per tile, set
// while the tile still holds dirt. Tile (x, y) is centred on world position
// (x - Width/2, y - Height/2).
type Terrain struct {
	width  int
	height int
	cells  []uint64
}

// NewTerrain returns a fully covered grid.
func NewTerrain(width, height int) *Terrain {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	t := &Terrain{
		width:  width,
		height: height,
		cells:  make([]uint64, (width*height+63)/64),
	}
	t.Fill()
	return t
}

func (t *Terrain) Width() int  { return t.width }
func (t *Terrain) Height() int { return t.height }

// Fill covers every tile again.
func (t *Terrain) Fill() {
	for i := range t.cells {
		t.cells[i] = ^uint64(0)
	}
	if rem := (t.width * t.height) % 64; rem != 0 && len(t.cells) > 0 {
		t.cells[len(t.cells)-1] = (uint64(1) << rem) - 1
	}
}

// Visible reports whether tile (x, y) still holds dirt. Out-of-range tiles
// report false.
func (t *Terrain) Visible(x, y int) bool {
	if !t.inBounds(x, y) {
		return false
	}
	i := y*t.width + x
	return t.cells[i/64]&(uint64(1)<<(i%64)) != 0
}

// Clear removes the dirt at (x, y). Out-of-range tiles are ignored.
func (t *Terrain) Clear(x, y int) {
	if !t.inBounds(x, y) {
		return
	}
	i := y*t.width + x
	t.cells[i/64] &^= uint64(1) << (i % 64)
}

// ClearSquare clears every tile within Chebyshev distance radius of (cx, cy),
// clamped to the grid.
func (t *Terrain) ClearSquare(cx, cy, radius int) {
	minX, maxX := clampInt(cx-radius, 0, t.width-1), clampInt(cx+radius, 0, t.width-1)
	minY, maxY := clampInt(cy-radius, 0, t.height-1), clampInt(cy+radius, 0, t.height-1)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			t.Clear(x, y)
		}
	}
}

// VisibleCount returns the number of tiles still covered.
func (t *Terrain) VisibleCount() int {
	total := 0
	for _, word := range t.cells {
		total += bits.OnesCount64(word)
	}
	return total
}

// Clone returns an independent copy.
func (t *Terrain) Clone() *Terrain {
	if t == nil {
		return nil
	}
	clone := &Terrain{width: t.width, height: t.height, cells: make([]uint64, len(t.cells))}
	copy(clone.cells, t.cells)
	return clone
}

// copyFrom overwrites t with src, reusing t's storage when the sizes match.
func (t *Terrain) copyFrom(src *Terrain) {
	if len(t.cells) != len(src.cells) {
		t.cells = make([]uint64, len(src.cells))
	}
	t.width = src.width
	t.height = src.height
	copy(t.cells, src.cells)
}

// TileAt maps a world position to the tile it lies on, clamped to the grid.
func (t *Terrain) TileAt(pos Vec2) (int, int) {
	x := roundHalfUp(pos.X + float32(t.width)/2)
	y := roundHalfUp(pos.Y + float32(t.height)/2)
	return clampInt(x, 0, t.width-1), clampInt(y, 0, t.height-1)
}

func (t *Terrain) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.width && y < t.height
}

func roundHalfUp(v float32) int {
	r := int(v + 0.5)
	if float32(r) > v+0.5 {
		r--
	}
	return r
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
