package sim

import "github.com/remcokranenburg/tunneltanktournament/internal/input"

// SaveState captures the world for the rollback session. prev is a state
// the session no longer needs; its buffers are reused when it is a Snapshot.
func (w *World) SaveState(prev any) any {
	dst, _ := prev.(*Snapshot)
	return w.SaveInto(dst)
}

// LoadState restores a state produced by SaveState.
func (w *World) LoadState(state any) {
	if s, ok := state.(*Snapshot); ok {
		w.Load(s)
	}
}

// AdvanceFrame steps the world with one input frame per handle.
func (w *World) AdvanceFrame(inputs []input.Frame) {
	w.Step(inputs)
}
