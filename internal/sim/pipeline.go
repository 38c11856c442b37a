package sim

import (
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/round"
)

type system struct {
	name string
	run  func(w *World, inputs []input.Frame)
}

// pipeline is the fixed per-tick system order. Reordering it changes the
// game.
var pipeline = []system{
	{name: "move_players", run: movePlayers},
	{name: "reload_bullets", run: reloadBullets},
	{name: "fire_bullets", run: fireBullets},
	{name: "move_bullets", run: moveBullets},
	{name: "resolve_hits", run: resolveHits},
	{name: "erode_terrain", run: erodeTerrain},
}

// Pipeline lists the system names in execution order.
func Pipeline() []string {
	names := make([]string, len(pipeline))
	for i, sys := range pipeline {
		names[i] = sys.name
	}
	return names
}

func movePlayers(w *World, inputs []input.Frame) {
	step := w.cfg.MoveStep()
	limit := w.cfg.Limit()
	for i := range w.players {
		p := &w.players[i]
		dir := Direction(inputFor(inputs, p.ID))
		if dir.IsZero() {
			continue
		}
		pos := p.Pos.Add(dir.Scale(step))
		p.Pos = Vec2{
			X: clamp(pos.X, -limit.X, limit.X),
			Y: clamp(pos.Y, -limit.Y, limit.Y),
		}
		p.Facing = dir
	}
}

func reloadBullets(w *World, inputs []input.Frame) {
	for i := range w.players {
		if !inputFor(inputs, w.players[i].ID).Firing() {
			w.players[i].BulletReady = true
		}
	}
}

func fireBullets(w *World, inputs []input.Frame) {
	for i := range w.players {
		p := &w.players[i]
		if !p.BulletReady || !inputFor(inputs, p.ID).Firing() {
			continue
		}
		w.bullets = append(w.bullets, Bullet{Owner: p.ID, Pos: p.Pos, Facing: p.Facing})
		p.BulletReady = false
	}
}

func moveBullets(w *World, _ []input.Frame) {
	step := w.cfg.BulletStep()
	limit := w.cfg.Limit()
	kept := w.bullets[:0]
	for _, b := range w.bullets {
		b.Pos = b.Pos.Add(b.Facing.Scale(step))
		if b.Pos.X < -limit.X || b.Pos.X > limit.X || b.Pos.Y < -limit.Y || b.Pos.Y > limit.Y {
			continue
		}
		kept = append(kept, b)
	}
	w.bullets = kept
}

// resolveHits destroys every player touched by another player's bullet. Each
// bullet destroys at most one player and is consumed by the hit.
func resolveHits(w *World, _ []input.Frame) {
	reach := w.cfg.PlayerRadius + w.cfg.BulletRadius
	consumed := make([]bool, len(w.bullets))
	survivors := w.players[:0]
	for _, p := range w.players {
		hit := false
		for bi, b := range w.bullets {
			if consumed[bi] || b.Owner == p.ID {
				continue
			}
			if Distance(p.Pos, b.Pos) < reach {
				consumed[bi] = true
				hit = true
				w.hits = append(w.hits, Hit{Shooter: b.Owner, Target: p.ID})
				if b.Owner >= 0 && b.Owner < len(w.stats.Scores) {
					w.stats.Scores[b.Owner]++
				}
				break
			}
		}
		if !hit {
			survivors = append(survivors, p)
		}
	}
	w.players = survivors
	if len(w.hits) == 0 {
		return
	}
	remaining := w.bullets[:0]
	for bi, b := range w.bullets {
		if !consumed[bi] {
			remaining = append(remaining, b)
		}
	}
	w.bullets = remaining
	w.round.EndRound(round.EndDuration(w.cfg.TickRate))
}

func erodeTerrain(w *World, _ []input.Frame) {
	for _, p := range w.players {
		x, y := w.terrain.TileAt(p.Pos)
		w.terrain.ClearSquare(x, y, w.cfg.ErodeRadius)
	}
}
