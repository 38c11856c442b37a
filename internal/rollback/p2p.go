package rollback

import (
	"fmt"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/internal/desync"
	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/proto"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
)

// endpoint is one remote peer and the handles it plays.
type endpoint struct {
	peer    transport.PeerID
	handles []PlayerHandle

	lastRecv time.Time
	// remoteAck is the last frame of our local inputs the peer confirmed.
	remoteAck Frame

	synchronized bool
	interrupted  bool
	disconnected bool
}

func (e *endpoint) owns(h PlayerHandle) bool {
	for _, own := range e.handles {
		if own == h {
			return true
		}
	}
	return false
}

// P2PSession exchanges inputs with remote peers and rolls back on
// misprediction. It is driven from one goroutine.
type P2PSession struct {
	cfg     Config
	sim     Simulation
	channel transport.Channel

	players   []Player
	queues    []*inputQueue
	local     []PlayerHandle
	endpoints []*endpoint
	byPeer    map[transport.PeerID]*endpoint

	states       *savedStates
	detector     *desync.Detector
	nextChecksum Frame
	current      Frame

	events *events.Queue
	stats  Stats
	inputs []input.Frame
}

func newP2PSession(cfg Config, players []Player, ch transport.Channel, sim Simulation) *P2PSession {
	s := &P2PSession{
		cfg:      cfg,
		sim:      sim,
		channel:  ch,
		players:  players,
		queues:   make([]*inputQueue, len(players)),
		byPeer:   make(map[transport.PeerID]*endpoint),
		states:   newSavedStates(cfg.MaxPrediction + 2),
		detector: desync.New(cfg.DesyncInterval),
		events:   events.NewQueue(events.DefaultCapacity),
		inputs:   make([]input.Frame, len(players)),
	}
	now := cfg.Clock()
	for i, p := range players {
		h := PlayerHandle(i)
		if p.Type == Local {
			s.queues[i] = newInputQueue(cfg.InputDelay)
			s.local = append(s.local, h)
			continue
		}
		s.queues[i] = newInputQueue(0)
		ep, ok := s.byPeer[p.Peer]
		if !ok {
			ep = &endpoint{peer: p.Peer, lastRecv: now, remoteAck: NullFrame}
			s.byPeer[p.Peer] = ep
			s.endpoints = append(s.endpoints, ep)
		}
		ep.handles = append(ep.handles, h)
	}
	return s
}

func (s *P2PSession) NumPlayers() int { return len(s.players) }

func (s *P2PSession) LocalHandles() []PlayerHandle {
	return append([]PlayerHandle(nil), s.local...)
}

func (s *P2PSession) CurrentFrame() Frame { return s.current }

// ConfirmedFrame is the newest frame for which every connected player's input
// is known.
func (s *P2PSession) ConfirmedFrame() Frame {
	confirmed := Frame(-1)
	first := true
	for _, q := range s.queues {
		if q.disconnected {
			continue
		}
		if first || q.lastConfirmed < confirmed {
			confirmed = q.lastConfirmed
			first = false
		}
	}
	if first {
		return s.current - 1
	}
	return confirmed
}

// Events drains the pending notifications.
func (s *P2PSession) Events() []events.Event {
	return s.events.Drain()
}

func (s *P2PSession) Stats() Stats {
	stats := s.stats
	stats.ChecksumsCompared = s.detector.Compared()
	stats.DroppedEvents = s.events.Dropped()
	return stats
}

func (s *P2PSession) AddLocalInput(handle PlayerHandle, in input.Frame) error {
	if handle < 0 || int(handle) >= len(s.players) || s.players[handle].Type != Local {
		return fmt.Errorf("%w: %d", ErrNotLocalPlayer, handle)
	}
	s.queues[handle].addLocal(s.current, in&input.Mask)
	return nil
}

// AdvanceFrame processes network traffic, corrects mispredictions and
// simulates the current frame. ErrPredictionThreshold leaves the frame
// untouched.
func (s *P2PSession) AdvanceFrame() error {
	s.sync()

	for _, h := range s.local {
		if s.queues[h].lastConfirmed < s.current {
			s.sendInputs()
			return fmt.Errorf("%w: handle %d frame %d", ErrMissingLocalInput, h, s.current)
		}
	}
	if s.current-s.ConfirmedFrame() > Frame(s.cfg.MaxPrediction) {
		s.stats.Stalls++
		s.sendInputs()
		return ErrPredictionThreshold
	}

	s.states.save(s.current, s.sim)
	s.publishChecksums()
	s.sim.AdvanceFrame(s.gather(s.current))
	s.current++
	s.sendInputs()
	return nil
}

// Poll handles network traffic and corrects mispredictions without
// advancing. Use it while the game is paused or stalled.
func (s *P2PSession) Poll() {
	s.sync()
	s.sendInputs()
}

func (s *P2PSession) sync() {
	s.poll()
	s.checkTimeouts()
	if first := s.firstIncorrectFrame(); first != NullFrame && first < s.current {
		s.rollback(first)
	}
}

func (s *P2PSession) firstIncorrectFrame() Frame {
	first := NullFrame
	for _, q := range s.queues {
		if q.firstIncorrect != NullFrame && (first == NullFrame || q.firstIncorrect < first) {
			first = q.firstIncorrect
		}
	}
	return first
}

// rollback restores frame first and resimulates up to the current frame,
// saving every intermediate frame again.
func (s *P2PSession) rollback(first Frame) {
	s.stats.Rollbacks++
	s.stats.RolledBackFrames += uint64(s.current - first)
	s.states.load(first, s.sim)
	for _, q := range s.queues {
		q.resetPrediction()
	}
	for frame := first; frame < s.current; frame++ {
		if frame > first {
			s.states.save(frame, s.sim)
		}
		s.sim.AdvanceFrame(s.gather(frame))
	}
}

func (s *P2PSession) gather(frame Frame) []input.Frame {
	for h, q := range s.queues {
		s.inputs[h] = q.input(frame)
	}
	return s.inputs
}

func (s *P2PSession) poll() {
	for _, pkt := range s.channel.Receive() {
		ep := s.byPeer[pkt.From]
		if ep == nil || ep.disconnected {
			continue
		}
		if pkt.Kind == transport.PacketPeerLeft {
			s.disconnect(ep)
			continue
		}
		msg, err := proto.Decode(pkt.Data)
		if err != nil {
			s.stats.MalformedPackets++
			continue
		}
		s.heard(ep)
		switch msg.Kind {
		case proto.KindInput:
			s.handleInputs(ep, msg.Input)
		case proto.KindChecksum:
			if m := s.detector.RecordRemote(uint64(ep.peer), msg.Checksum.Tick, msg.Checksum.Checksum); m != nil {
				s.reportDesync(*m)
			}
		}
	}
}

func (s *P2PSession) heard(ep *endpoint) {
	ep.lastRecv = s.cfg.Clock()
	if !ep.synchronized {
		ep.synchronized = true
		for _, h := range ep.handles {
			s.events.Push(events.Event{Kind: events.KindSynchronized, Frame: int32(s.current), Handle: int(h), Peer: ep.peer})
		}
	}
	if ep.interrupted {
		ep.interrupted = false
		for _, h := range ep.handles {
			s.events.Push(events.Event{Kind: events.KindNetworkResumed, Frame: int32(s.current), Handle: int(h), Peer: ep.peer})
		}
	}
}

func (s *P2PSession) handleInputs(ep *endpoint, batch *proto.InputBatch) {
	if ack := Frame(batch.Ack); ack > ep.remoteAck {
		ep.remoteAck = ack
	}
	for _, m := range batch.Inputs {
		h := PlayerHandle(m.Handle)
		if !ep.owns(h) {
			continue
		}
		s.queues[h].confirm(Frame(m.Tick), input.Frame(m.Input)&input.Mask)
	}
}

func (s *P2PSession) checkTimeouts() {
	now := s.cfg.Clock()
	for _, ep := range s.endpoints {
		if ep.disconnected {
			continue
		}
		silent := now.Sub(ep.lastRecv)
		switch {
		case silent >= s.cfg.DisconnectAfter:
			s.disconnect(ep)
		case silent >= s.cfg.InterruptAfter && !ep.interrupted:
			ep.interrupted = true
			for _, h := range ep.handles {
				s.events.Push(events.Event{Kind: events.KindNetworkInterrupted, Frame: int32(s.current), Handle: int(h), Peer: ep.peer, Silent: silent})
			}
		}
	}
}

// disconnect stops waiting for ep. Its players keep repeating their last
// confirmed input for the rest of the match.
func (s *P2PSession) disconnect(ep *endpoint) {
	ep.disconnected = true
	for _, h := range ep.handles {
		s.queues[h].disconnected = true
		s.events.Push(events.Event{Kind: events.KindPeerDisconnected, Frame: int32(s.current), Handle: int(h), Peer: ep.peer})
	}
}

// publishChecksums sends the checksum of every interval frame whose state
// can no longer change.
func (s *P2PSession) publishChecksums() {
	interval := s.detector.Interval()
	if interval <= 0 {
		return
	}
	limit := s.ConfirmedFrame() + 1
	if limit > s.current {
		limit = s.current
	}
	for s.nextChecksum <= limit {
		frame := s.nextChecksum
		s.nextChecksum += Frame(interval)
		sum, ok := s.states.checksum(frame)
		if !ok {
			continue
		}
		for _, m := range s.detector.RecordLocal(int32(frame), sum) {
			s.reportDesync(m)
		}
		data, err := proto.Encode(proto.NewChecksumMessage(int32(frame), sum))
		if err != nil {
			continue
		}
		for _, ep := range s.endpoints {
			if ep.disconnected {
				continue
			}
			if err := s.channel.Send(ep.peer, data); err != nil {
				s.stats.SendErrors++
				continue
			}
			s.stats.ChecksumsSent++
		}
	}
}

func (s *P2PSession) reportDesync(m desync.Mismatch) {
	s.stats.Desyncs++
	handle := -1
	if ep := s.byPeer[transport.PeerID(m.Peer)]; ep != nil && len(ep.handles) > 0 {
		handle = int(ep.handles[0])
	}
	s.events.Push(events.Event{
		Kind:   events.KindDesyncDetected,
		Frame:  m.Frame,
		Handle: handle,
		Peer:   transport.PeerID(m.Peer),
		Local:  m.Local,
		Remote: m.Remote,
		Source: "p2p",
	})
}

// sendInputs sends every peer the local inputs it has not acknowledged, up
// to one batch worth.
func (s *P2PSession) sendInputs() {
	if len(s.local) == 0 {
		return
	}
	perHandle := Frame(proto.MaxBatchInputs / len(s.local))
	for _, ep := range s.endpoints {
		if ep.disconnected {
			continue
		}
		batch := proto.InputBatch{Ack: int32(s.ackFor(ep))}
		for _, h := range s.local {
			q := s.queues[h]
			// The peer only accepts the frame after its last confirmed one,
			// so an oversized backlog is sent oldest first.
			start := ep.remoteAck + 1
			end := q.lastConfirmed
			if newest := start + perHandle - 1; end > newest {
				end = newest
			}
			for frame := start; frame <= end; frame++ {
				in, ok := q.confirmedAt(frame)
				if !ok {
					continue
				}
				batch.Inputs = append(batch.Inputs, proto.InputMessage{Tick: int32(frame), Handle: uint8(h), Input: uint8(in)})
			}
		}
		data, err := proto.Encode(proto.NewInputMessage(batch))
		if err != nil {
			continue
		}
		if err := s.channel.Send(ep.peer, data); err != nil {
			s.stats.SendErrors++
		}
	}
}

// ackFor is the newest frame up to which every handle of ep is confirmed.
func (s *P2PSession) ackFor(ep *endpoint) Frame {
	ack := NullFrame
	for i, h := range ep.handles {
		if last := s.queues[h].lastConfirmed; i == 0 || last < ack {
			ack = last
		}
	}
	return ack
}

var _ Session = (*P2PSession)(nil)
