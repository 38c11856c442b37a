package rollback

import (
	"fmt"

	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
)

// SyncTestSession plays every handle locally. Each frame it rewinds
// CheckDistance frames and resimulates them, reporting any checksum that
// differs from the first run. With a zero distance it is a plain local
// session.
type SyncTestSession struct {
	cfg     Config
	sim     Simulation
	queues  []*inputQueue
	local   []PlayerHandle
	states  *savedStates
	current Frame
	events  *events.Queue
	stats   Stats
	inputs  []input.Frame
}

func newSyncTestSession(cfg Config, sim Simulation) *SyncTestSession {
	s := &SyncTestSession{
		cfg:    cfg,
		sim:    sim,
		queues: make([]*inputQueue, cfg.NumPlayers),
		states: newSavedStates(cfg.CheckDistance + 2),
		events: events.NewQueue(events.DefaultCapacity),
		inputs: make([]input.Frame, cfg.NumPlayers),
	}
	for i := range s.queues {
		s.queues[i] = newInputQueue(cfg.InputDelay)
		s.local = append(s.local, PlayerHandle(i))
	}
	return s
}

func (s *SyncTestSession) NumPlayers() int { return len(s.queues) }

func (s *SyncTestSession) LocalHandles() []PlayerHandle {
	return append([]PlayerHandle(nil), s.local...)
}

func (s *SyncTestSession) CurrentFrame() Frame { return s.current }

// ConfirmedFrame is always the last simulated frame: every input is local.
func (s *SyncTestSession) ConfirmedFrame() Frame { return s.current - 1 }

func (s *SyncTestSession) Events() []events.Event { return s.events.Drain() }

func (s *SyncTestSession) Stats() Stats {
	stats := s.stats
	stats.DroppedEvents = s.events.Dropped()
	return stats
}

func (s *SyncTestSession) AddLocalInput(handle PlayerHandle, in input.Frame) error {
	if handle < 0 || int(handle) >= len(s.queues) {
		return fmt.Errorf("%w: %d", ErrNotLocalPlayer, handle)
	}
	s.queues[handle].addLocal(s.current, in&input.Mask)
	return nil
}

func (s *SyncTestSession) AdvanceFrame() error {
	for h, q := range s.queues {
		if q.lastConfirmed < s.current {
			return fmt.Errorf("%w: handle %d frame %d", ErrMissingLocalInput, h, s.current)
		}
	}
	s.states.save(s.current, s.sim)

	if distance := Frame(s.cfg.CheckDistance); distance > 0 && s.current >= distance {
		target := s.current - distance
		s.states.load(target, s.sim)
		s.stats.Rollbacks++
		s.stats.RolledBackFrames += uint64(distance)
		for frame := target; frame < s.current; frame++ {
			s.sim.AdvanceFrame(s.gather(frame))
			want, ok := s.states.checksum(frame + 1)
			if !ok {
				continue
			}
			s.stats.ChecksumsCompared++
			if got := s.sim.Checksum(); got != want {
				s.stats.Desyncs++
				s.events.Push(events.Event{
					Kind:   events.KindDesyncDetected,
					Frame:  int32(frame + 1),
					Handle: -1,
					Local:  want,
					Remote: got,
					Source: "synctest",
				})
			}
		}
	}

	s.sim.AdvanceFrame(s.gather(s.current))
	s.current++
	return nil
}

func (s *SyncTestSession) gather(frame Frame) []input.Frame {
	for h, q := range s.queues {
		s.inputs[h] = q.input(frame)
	}
	return s.inputs
}

var _ Session = (*SyncTestSession)(nil)
