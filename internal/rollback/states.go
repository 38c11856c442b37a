package rollback

import "fmt"

type savedState struct {
	frame    Frame
	state    any
	checksum uint64
}

// savedStates is a ring of simulation snapshots keyed by frame.
type savedStates struct {
	slots []savedState
}

func newSavedStates(size int) *savedStates {
	if size < 1 {
		size = 1
	}
	s := &savedStates{slots: make([]savedState, size)}
	for i := range s.slots {
		s.slots[i].frame = NullFrame
	}
	return s
}

func (s *savedStates) save(frame Frame, sim Simulation) {
	slot := &s.slots[int(frame)%len(s.slots)]
	slot.state = sim.SaveState(slot.state)
	slot.frame = frame
	slot.checksum = sim.Checksum()
}

// load restores frame. Asking for a frame that has left the ring is a bug in
// the session's bookkeeping, not a runtime condition.
func (s *savedStates) load(frame Frame, sim Simulation) {
	slot := s.slots[int(frame)%len(s.slots)]
	if slot.frame != frame {
		panic(fmt.Sprintf("rollback: no saved state for frame %d (slot holds %d)", frame, slot.frame))
	}
	sim.LoadState(slot.state)
}

func (s *savedStates) checksum(frame Frame) (uint64, bool) {
	if frame < 0 {
		return 0, false
	}
	slot := s.slots[int(frame)%len(s.slots)]
	return slot.checksum, slot.frame == frame
}
