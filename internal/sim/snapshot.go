package sim

import "github.com/remcokranenburg/tunneltanktournament/internal/round"

// Snapshot is a deep copy of everything Step reads or writes. The rollback
// session stores one per frame it might need to rewind to.
type Snapshot struct {
	Frame       int32
	Round       round.State
	RoundNumber uint32
	Players     []Player
	Bullets     []Bullet
	Terrain     *Terrain
	Scores      []int
}

// component saves and restores one slice of world state. Adding state to
// World without registering it here breaks rollback.
type component struct {
	name string
	save func(w *World, s *Snapshot)
	load func(w *World, s *Snapshot)
}

var registry = []component{
	{
		name: "round",
		save: func(w *World, s *Snapshot) {
			s.Frame = w.frame
			s.Round = w.round
			s.RoundNumber = w.roundNumber
		},
		load: func(w *World, s *Snapshot) {
			w.frame = s.Frame
			w.round = s.Round
			w.roundNumber = s.RoundNumber
		},
	},
	{
		name: "players",
		save: func(w *World, s *Snapshot) { s.Players = append(s.Players[:0], w.players...) },
		load: func(w *World, s *Snapshot) { w.players = append(w.players[:0], s.Players...) },
	},
	{
		name: "bullets",
		save: func(w *World, s *Snapshot) { s.Bullets = append(s.Bullets[:0], w.bullets...) },
		load: func(w *World, s *Snapshot) { w.bullets = append(w.bullets[:0], s.Bullets...) },
	},
	{
		name: "terrain",
		save: func(w *World, s *Snapshot) {
			if s.Terrain == nil {
				s.Terrain = w.terrain.Clone()
				return
			}
			s.Terrain.copyFrom(w.terrain)
		},
		load: func(w *World, s *Snapshot) { w.terrain.copyFrom(s.Terrain) },
	},
	{
		name: "stats",
		save: func(w *World, s *Snapshot) { s.Scores = append(s.Scores[:0], w.stats.Scores...) },
		load: func(w *World, s *Snapshot) { w.stats.Scores = append(w.stats.Scores[:0], s.Scores...) },
	},
}

// Components lists the registered snapshot components in save order.
func Components() []string {
	names := make([]string, len(registry))
	for i, c := range registry {
		names[i] = c.name
	}
	return names
}

// Save captures the world into a new snapshot.
func (w *World) Save() *Snapshot {
	return w.SaveInto(nil)
}

// SaveInto captures the world into dst, reusing its buffers. A nil dst
// allocates.
func (w *World) SaveInto(dst *Snapshot) *Snapshot {
	if dst == nil {
		dst = &Snapshot{}
	}
	for _, c := range registry {
		c.save(w, dst)
	}
	return dst
}

// Load restores the world from s. s is not retained and may be loaded again.
func (w *World) Load(s *Snapshot) {
	if s == nil {
		return
	}
	for _, c := range registry {
		c.load(w, s)
	}
	w.hits = w.hits[:0]
}
