package sim

import "github.com/remcokranenburg/tunneltanktournament/internal/round"

// View is a read-only copy of the world for presentation. Mutating it has no
// effect on the simulation.
type View struct {
	Frame       int32
	Round       round.State
	RoundNumber uint32
	Players     []Player
	Bullets     []Bullet
	Scores      []int
	Limit       Vec2
}

func (w *World) View() View {
	return View{
		Frame:       w.frame,
		Round:       w.round,
		RoundNumber: w.roundNumber,
		Players:     append([]Player(nil), w.players...),
		Bullets:     append([]Bullet(nil), w.bullets...),
		Scores:      append([]int(nil), w.stats.Scores...),
		Limit:       w.cfg.Limit(),
	}
}

// Terrain returns a copy of the dirt layer.
func (w *World) Terrain() *Terrain {
	return w.terrain.Clone()
}
