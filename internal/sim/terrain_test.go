package sim

import (
	"testing"

	"github.com/remcokranenburg/tunneltanktournament/internal/input"
)

func TestTerrainStartsCovered(t *testing.T) {
	terrain := NewTerrain(70, 3)
	if got := terrain.VisibleCount(); got != 210 {
		t.Fatalf("expected 210 visible tiles, got %d", got)
	}
	if terrain.Visible(-1, 0) || terrain.Visible(70, 0) || terrain.Visible(0, 3) {
		t.Fatalf("out-of-range tiles must not be visible")
	}
}

func TestTileAt(t *testing.T) {
	terrain := NewTerrain(1000, 500)
	cases := []struct {
		pos  Vec2
		x, y int
	}{
		{pos: Vec2{X: -490, Y: -230}, x: 10, y: 20},
		{pos: Vec2{X: 0, Y: 0}, x: 500, y: 250},
		{pos: Vec2{X: 0.49, Y: -0.51}, x: 500, y: 249},
		{pos: Vec2{X: 499.5, Y: 249.5}, x: 999, y: 499},
		{pos: Vec2{X: -499.5, Y: -249.5}, x: 1, y: 1},
		{pos: Vec2{X: -600, Y: 900}, x: 0, y: 499},
	}
	for _, tc := range cases {
		x, y := terrain.TileAt(tc.pos)
		if x != tc.x || y != tc.y {
			t.Fatalf("TileAt(%+v) = (%d, %d), want (%d, %d)", tc.pos, x, y, tc.x, tc.y)
		}
	}
}

func TestErosionBound(t *testing.T) {
	w := NewWorld(DefaultConfig(), 1)
	w.players = w.players[:1]
	w.players[0].Pos = Vec2{X: -490, Y: -230}
	w.Step([]input.Frame{0})

	for y := 10; y <= 30; y++ {
		for x := 0; x <= 20; x++ {
			inside := x >= 8 && x <= 12 && y >= 18 && y <= 22
			if w.terrain.Visible(x, y) == inside {
				t.Fatalf("tile (%d, %d) visible=%v, inside=%v", x, y, w.terrain.Visible(x, y), inside)
			}
		}
	}
	total := w.cfg.Width * w.cfg.Height
	if got := w.terrain.VisibleCount(); got != total-25 {
		t.Fatalf("expected exactly 25 tiles cleared, got %d", total-got)
	}
}

func TestErosionClampsAtCorner(t *testing.T) {
	w := NewWorld(DefaultConfig(), 1)
	w.players = w.players[:1]
	limit := w.cfg.Limit()
	w.players[0].Pos = limit
	w.Step([]input.Frame{0})

	total := w.cfg.Width * w.cfg.Height
	if got := total - w.terrain.VisibleCount(); got != 9 {
		t.Fatalf("expected 9 tiles cleared at the corner, got %d", got)
	}
	for y := 497; y <= 499; y++ {
		for x := 997; x <= 999; x++ {
			if w.terrain.Visible(x, y) {
				t.Fatalf("expected tile (%d, %d) cleared", x, y)
			}
		}
	}
}

func TestTerrainCloneIsIndependent(t *testing.T) {
	terrain := NewTerrain(8, 8)
	clone := terrain.Clone()
	terrain.Clear(3, 3)
	if !clone.Visible(3, 3) {
		t.Fatalf("clone must not observe later changes")
	}
	clone.Fill()
	if terrain.Visible(3, 3) {
		t.Fatalf("original must not observe clone changes")
	}
}
