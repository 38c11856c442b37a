package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
	"github.com/remcokranenburg/tunneltanktournament/internal/rollback"
	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingsession "github.com/remcokranenburg/tunneltanktournament/logging/session"
)

type fakeSocket struct {
	id       transport.PeerID
	assigned bool
	peers    []transport.PeerID
	changes  []transport.PeerChange
	channel  transport.Channel
	takeErr  error
	taken    int
}

func (s *fakeSocket) UpdatePeers() []transport.PeerChange {
	changes := s.changes
	s.changes = nil
	return changes
}

func (s *fakeSocket) ID() (transport.PeerID, bool) { return s.id, s.assigned }

func (s *fakeSocket) Players() []transport.PeerID {
	if !s.assigned {
		return nil
	}
	return append([]transport.PeerID{s.id}, s.peers...)
}

func (s *fakeSocket) TakeChannel() (transport.Channel, error) {
	s.taken++
	if s.takeErr != nil {
		return nil, s.takeErr
	}
	return s.channel, nil
}

func (s *fakeSocket) join(id transport.PeerID) {
	s.peers = append(s.peers, id)
	s.changes = append(s.changes, transport.PeerChange{Peer: id, State: transport.PeerConnected})
}

func recordingPublisher() (logging.Publisher, *[]logging.Event) {
	var published []logging.Event
	return logging.PublisherFunc(func(_ context.Context, ev logging.Event) {
		published = append(published, ev)
	}), &published
}

func TestManagerP2PFlow(t *testing.T) {
	ctx := context.Background()
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	socket := &fakeSocket{id: 0x30, channel: network.Channel(0x30)}
	pub, published := recordingPublisher()
	m := New(DefaultConfig(), Deps{Socket: socket, Publisher: pub})

	if m.State() != StateAssetLoading {
		t.Fatalf("expected asset loading, got %s", m.State())
	}
	if _, err := m.Poll(ctx); !errors.Is(err, ErrWrongState) {
		t.Fatalf("polling before assets load should fail, got %v", err)
	}
	if err := m.AssetsLoaded(ctx); err != nil {
		t.Fatalf("assets loaded: %v", err)
	}
	if err := m.AssetsLoaded(ctx); !errors.Is(err, ErrWrongState) {
		t.Fatalf("expected ErrWrongState, got %v", err)
	}

	if s, err := m.Poll(ctx); s != nil || err != nil {
		t.Fatalf("no id yet: expected nil, nil; got %v, %v", s, err)
	}
	socket.assigned = true
	if s, err := m.Poll(ctx); s != nil || err != nil {
		t.Fatalf("alone in the room: expected nil, nil; got %v, %v", s, err)
	}
	if m.State() != StateMatchmaking {
		t.Fatalf("expected matchmaking, got %s", m.State())
	}

	socket.join(0x0f)
	network.Channel(0x0f)
	session, err := m.Poll(ctx)
	if err != nil || session == nil {
		t.Fatalf("expected a session, got %v, %v", session, err)
	}
	if m.State() != StateInGame {
		t.Fatalf("expected in game, got %s", m.State())
	}
	if m.Seed() != Seed(0x30^0x0f) {
		t.Fatalf("unexpected seed %s", m.Seed())
	}
	if m.World().Seed() != uint64(m.Seed()) {
		t.Fatalf("world seeded with %x, want %s", m.World().Seed(), m.Seed())
	}
	// 0x0f sorts first, so the local peer plays handle 1.
	if got := m.LocalHandles(); !reflect.DeepEqual(got, []rollback.PlayerHandle{1}) {
		t.Fatalf("unexpected local handles %v", got)
	}
	evs := m.Events()
	if len(evs) != 1 || evs[0].Kind != events.KindPeerJoined || evs[0].Peer != 0x0f {
		t.Fatalf("unexpected events %+v", evs)
	}
	again, err := m.Poll(ctx)
	if err != nil || again != session {
		t.Fatalf("polling in game should return the running session")
	}
	if socket.taken != 1 {
		t.Fatalf("channel taken %d times", socket.taken)
	}

	var types []logging.EventType
	for _, ev := range *published {
		types = append(types, ev.Type)
	}
	if !reflect.DeepEqual(types, []logging.EventType{loggingsession.EventMatchmaking, loggingsession.EventStarted}) {
		t.Fatalf("unexpected published events %v", types)
	}
}

func TestManagerSetupFailuresAreFatal(t *testing.T) {
	ctx := context.Background()
	takeErr := errors.New("taken")
	cases := []struct {
		name   string
		socket *fakeSocket
		cfg    func(*Config)
	}{
		{
			name:   "channel already taken",
			socket: &fakeSocket{id: 1, assigned: true, peers: []transport.PeerID{2}, takeErr: takeErr},
		},
		{
			name:   "nil channel",
			socket: &fakeSocket{id: 1, assigned: true, peers: []transport.PeerID{2}},
		},
		{
			name:   "duplicate remote peer",
			socket: &fakeSocket{id: 1, assigned: true, peers: []transport.PeerID{2, 2}},
			cfg:    func(c *Config) { c.NumPlayers = 3 },
		},
		{
			name:   "overfull room",
			socket: &fakeSocket{id: 1, assigned: true, peers: []transport.PeerID{2, 3}},
		},
		{
			name:   "invalid delay",
			socket: &fakeSocket{id: 1, assigned: true, peers: []transport.PeerID{2}, channel: transport.NewMemoryNetwork(transport.MemoryOptions{}).Channel(1)},
			cfg:    func(c *Config) { c.InputDelay = -3 },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			m := New(cfg, Deps{Socket: tc.socket})
			if err := m.AssetsLoaded(ctx); err != nil {
				t.Fatalf("assets loaded: %v", err)
			}
			session, err := m.Poll(ctx)
			if !errors.Is(err, ErrSessionSetup) {
				t.Fatalf("expected ErrSessionSetup, got %v", err)
			}
			if session != nil || m.State() == StateInGame {
				t.Fatalf("failed setup must not enter the game")
			}
		})
	}

	m := New(DefaultConfig(), Deps{})
	_ = m.AssetsLoaded(ctx)
	if _, err := m.Poll(ctx); !errors.Is(err, ErrSessionSetup) {
		t.Fatalf("p2p without a socket must fail setup, got %v", err)
	}
}

func TestManagerSyncTestAndLocal(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []Mode{ModeSyncTest, ModeLocal} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			m := New(cfg, Deps{})
			_ = m.AssetsLoaded(ctx)
			session, err := m.Poll(ctx)
			if err != nil || session == nil {
				t.Fatalf("expected an immediate session, got %v, %v", session, err)
			}
			if m.Seed() != DefaultSeed {
				t.Fatalf("expected the default seed, got %s", m.Seed())
			}
			if got := m.LocalHandles(); !reflect.DeepEqual(got, []rollback.PlayerHandle{0, 1}) {
				t.Fatalf("every handle is local, got %v", got)
			}
			if _, ok := session.(*rollback.SyncTestSession); !ok {
				t.Fatalf("expected a sync test session, got %T", session)
			}
			rb := m.rollbackConfig()
			if mode == ModeLocal && (rb.InputDelay != 0 || rb.CheckDistance != 0) {
				t.Fatalf("local mode runs without delay or rechecks, got %+v", rb)
			}
			if mode == ModeSyncTest && rb.CheckDistance != 2 {
				t.Fatalf("sync test rechecks two frames, got %d", rb.CheckDistance)
			}
		})
	}
}

func TestManagerConfiguredSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeLocal
	cfg.Seed = 1234
	m := New(cfg, Deps{})
	_ = m.AssetsLoaded(context.Background())
	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if m.Seed() != 1234 || m.World().Seed() != 1234 {
		t.Fatalf("expected seed 1234, got %s", m.Seed())
	}
}

func TestSeedFromPeers(t *testing.T) {
	a := SeedFromPeers([]transport.PeerID{1, 2, 4})
	b := SeedFromPeers([]transport.PeerID{4, 1, 2})
	if a != b || a != 7 {
		t.Fatalf("seed must not depend on order: %s %s", a, b)
	}
}
