// Package sim is the deterministic tank arena. A World advances one tick at a
// time from a slice of input frames and can be saved, restored and
// fingerprinted so the rollback session can rewind it.
package sim

import (
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/round"
)

// Player is a live tank. Handles index players; at most one is alive per
// handle.
type Player struct {
	ID          int
	Pos         Vec2
	Facing      Vec2
	BulletReady bool
}

type Bullet struct {
	Owner  int
	Pos    Vec2
	Facing Vec2
}

// Stats survive round resets.
type Stats struct {
	Scores []int
}

// Hit records one player destroyed during the last step.
type Hit struct {
	Shooter int
	Target  int
}

// World owns every piece of simulation state.
type World struct {
	cfg  Config
	seed uint64

	frame       int32
	round       round.State
	roundNumber uint32
	players     []Player
	bullets     []Bullet
	terrain     *Terrain
	stats       Stats

	hits []Hit
}

// NewWorld generates the first round of a match from seed.
func NewWorld(cfg Config, seed uint64) *World {
	cfg = cfg.normalized()
	w := &World{
		cfg:     cfg,
		seed:    seed,
		terrain: NewTerrain(cfg.Width, cfg.Height),
		stats:   Stats{Scores: make([]int, cfg.NumPlayers)},
	}
	w.spawnPlayers()
	return w
}

func (w *World) Config() Config { return w.cfg }
func (w *World) Seed() uint64   { return w.seed }

// Frame returns the number of ticks simulated so far.
func (w *World) Frame() int32 { return w.frame }

func (w *World) Round() round.State  { return w.round }
func (w *World) RoundNumber() uint32 { return w.roundNumber }

// Hits returns the hits resolved during the most recent step.
func (w *World) Hits() []Hit {
	return append([]Hit(nil), w.hits...)
}

// Player returns the live player for handle id.
func (w *World) Player(id int) (Player, bool) {
	for _, p := range w.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Step advances the world by one tick. inputs is indexed by player handle;
// missing entries count as an empty frame.
func (w *World) Step(inputs []input.Frame) {
	w.hits = w.hits[:0]
	if w.round.Ended() {
		if w.round.Tick() {
			w.resetRound()
		}
	} else {
		for _, sys := range pipeline {
			sys.run(w, inputs)
		}
	}
	w.frame++
}

// resetRound starts the next round with fresh terrain and respawned players.
// Scores are kept.
func (w *World) resetRound() {
	w.players = w.players[:0]
	w.bullets = w.bullets[:0]
	w.terrain.Fill()
	w.roundNumber++
	w.spawnPlayers()
}

func (w *World) spawnPlayers() {
	points := spawnPoints(w.cfg, w.seed, w.roundNumber)
	for id, pos := range points {
		w.players = append(w.players, Player{
			ID:          id,
			Pos:         pos,
			Facing:      Vec2{Y: 1},
			BulletReady: true,
		})
	}
}

func inputFor(inputs []input.Frame, id int) input.Frame {
	if id < 0 || id >= len(inputs) {
		return 0
	}
	return inputs[id] & input.Mask
}
