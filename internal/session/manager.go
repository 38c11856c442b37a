// Package session takes a match from asset loading through matchmaking to a
// running rollback session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
	"github.com/remcokranenburg/tunneltanktournament/internal/rollback"
	"github.com/remcokranenburg/tunneltanktournament/internal/sim"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingsession "github.com/remcokranenburg/tunneltanktournament/logging/session"
)

// ErrSessionSetup wraps every failure to assemble a session. It is fatal.
var ErrSessionSetup = errors.New("session setup failed")

// ErrWrongState is returned when an operation does not fit the manager state.
var ErrWrongState = errors.New("session: operation not valid in this state")

// DefaultSeed seeds sync test and local matches when none is configured.
const DefaultSeed Seed = 0x7474745f73656564

// Seed feeds every deterministic random choice of a match.
type Seed uint64

func (s Seed) String() string { return fmt.Sprintf("%016x", uint64(s)) }

// SeedFromPeers combines every peer id so all peers derive the same seed.
func SeedFromPeers(ids []transport.PeerID) Seed {
	var seed Seed
	for _, id := range ids {
		seed ^= Seed(id)
	}
	return seed
}

type Mode uint8

const (
	ModeP2P Mode = iota
	ModeSyncTest
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeP2P:
		return "p2p"
	case ModeSyncTest:
		return "synctest"
	case ModeLocal:
		return "local"
	default:
		return "unknown"
	}
}

type State uint8

const (
	StateAssetLoading State = iota
	StateMatchmaking
	StateInGame
)

func (s State) String() string {
	switch s {
	case StateAssetLoading:
		return "asset_loading"
	case StateMatchmaking:
		return "matchmaking"
	case StateInGame:
		return "in_game"
	default:
		return "unknown"
	}
}

// Socket is the rendezvous connection as seen by the manager.
type Socket interface {
	// UpdatePeers returns membership changes since the previous call.
	UpdatePeers() []transport.PeerChange
	// ID returns the local peer id once the rendezvous service assigned one.
	ID() (transport.PeerID, bool)
	// Players returns the local and connected remote peers sorted by id.
	Players() []transport.PeerID
	// TakeChannel hands the data channel over. It succeeds once.
	TakeChannel() (transport.Channel, error)
}

type Config struct {
	Mode           Mode
	NumPlayers     int
	InputDelay     int
	MaxPrediction  int
	DesyncInterval int
	// CheckDistance applies to sync test mode only.
	CheckDistance int
	// Seed applies to sync test and local modes; zero selects DefaultSeed.
	Seed  Seed
	Room  string
	World sim.Config
}

func DefaultConfig() Config {
	rb := rollback.DefaultConfig()
	return Config{
		Mode:           ModeP2P,
		NumPlayers:     rb.NumPlayers,
		InputDelay:     rb.InputDelay,
		MaxPrediction:  rb.MaxPrediction,
		DesyncInterval: rb.DesyncInterval,
		CheckDistance:  rb.CheckDistance,
		World:          sim.DefaultConfig(),
	}
}

type Deps struct {
	// Socket is required in P2P mode.
	Socket    Socket
	Publisher logging.Publisher
	Logger    telemetry.Logger
	// Rollback overrides fields of the rollback config the manager does not
	// own, such as the clock and timeouts.
	Rollback rollback.Config
}

// Manager drives one match setup. It is used from the game loop goroutine.
type Manager struct {
	cfg  Config
	deps Deps

	state   State
	seed    Seed
	session rollback.Session
	world   *sim.World
	local   []rollback.PlayerHandle
	events  *events.Queue
}

func New(cfg Config, deps Deps) *Manager {
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard
	}
	cfg.World.NumPlayers = cfg.NumPlayers
	return &Manager{cfg: cfg, deps: deps, events: events.NewQueue(events.DefaultCapacity)}
}

func (m *Manager) State() State { return m.state }
func (m *Manager) Seed() Seed   { return m.seed }

// LocalHandles lists the handles played on this machine once in game.
func (m *Manager) LocalHandles() []rollback.PlayerHandle {
	return append([]rollback.PlayerHandle(nil), m.local...)
}

// Session returns the running session, or nil before InGame.
func (m *Manager) Session() rollback.Session { return m.session }

// World returns the simulated world, or nil before InGame.
func (m *Manager) World() *sim.World { return m.world }

// Events drains the peer membership notifications seen during matchmaking.
func (m *Manager) Events() []events.Event { return m.events.Drain() }

// AssetsLoaded moves from AssetLoading to Matchmaking.
func (m *Manager) AssetsLoaded(ctx context.Context) error {
	if m.state != StateAssetLoading {
		return fmt.Errorf("%w: assets loaded during %s", ErrWrongState, m.state)
	}
	m.state = StateMatchmaking
	loggingsession.Matchmaking(ctx, m.deps.Publisher, loggingsession.MatchmakingPayload{
		Mode:    m.cfg.Mode.String(),
		Players: m.cfg.NumPlayers,
		Room:    m.cfg.Room,
	})
	return nil
}

// Poll advances matchmaking. It returns a nil session while still waiting
// for peers and the running session once InGame.
func (m *Manager) Poll(ctx context.Context) (rollback.Session, error) {
	switch m.state {
	case StateInGame:
		return m.session, nil
	case StateMatchmaking:
	default:
		return nil, fmt.Errorf("%w: poll during %s", ErrWrongState, m.state)
	}
	var err error
	switch m.cfg.Mode {
	case ModeP2P:
		err = m.pollP2P()
	case ModeSyncTest, ModeLocal:
		err = m.startLocal()
	default:
		err = fmt.Errorf("%w: unknown mode %d", ErrSessionSetup, m.cfg.Mode)
	}
	if err != nil || m.session == nil {
		return nil, err
	}
	m.state = StateInGame
	handles := make([]int, len(m.local))
	for i, h := range m.local {
		handles[i] = int(h)
	}
	loggingsession.Started(ctx, m.deps.Publisher, loggingsession.StartedPayload{
		Mode:           m.cfg.Mode.String(),
		Players:        m.cfg.NumPlayers,
		LocalHandles:   handles,
		InputDelay:     m.rollbackConfig().InputDelay,
		DesyncInterval: m.cfg.DesyncInterval,
		Seed:           m.seed.String(),
	})
	return m.session, nil
}

func (m *Manager) pollP2P() error {
	socket := m.deps.Socket
	if socket == nil {
		return fmt.Errorf("%w: p2p mode without a socket", ErrSessionSetup)
	}
	for _, change := range socket.UpdatePeers() {
		kind := events.KindPeerJoined
		if change.State == transport.PeerDisconnected {
			kind = events.KindPeerDisconnected
		}
		m.events.Push(events.Event{Kind: kind, Handle: -1, Peer: change.Peer})
	}
	self, ok := socket.ID()
	if !ok {
		return nil
	}
	players := socket.Players()
	if len(players) < m.cfg.NumPlayers {
		return nil
	}
	if len(players) > m.cfg.NumPlayers {
		return fmt.Errorf("%w: %d peers in a %d player room", ErrSessionSetup, len(players), m.cfg.NumPlayers)
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
	m.deps.Logger.Printf("[session] %d players present, starting as %s", len(players), self)

	cfg := m.rollbackConfig()
	builder := rollback.NewBuilder(cfg)
	var local []rollback.PlayerHandle
	for i, id := range players {
		handle := rollback.PlayerHandle(i)
		player := rollback.RemotePlayer(id)
		if id == self {
			player = rollback.LocalPlayer()
			local = append(local, handle)
		}
		if err := builder.AddPlayer(player, handle); err != nil {
			return fmt.Errorf("%w: add player %d: %v", ErrSessionSetup, handle, err)
		}
	}
	channel, err := socket.TakeChannel()
	if err != nil {
		return fmt.Errorf("%w: take channel: %v", ErrSessionSetup, err)
	}
	seed := SeedFromPeers(players)
	world := sim.NewWorld(m.cfg.World, uint64(seed))
	session, err := builder.StartP2P(channel, world)
	if err != nil {
		return fmt.Errorf("%w: start p2p session: %v", ErrSessionSetup, err)
	}
	m.seed = seed
	m.world = world
	m.local = local
	m.session = session
	return nil
}

func (m *Manager) startLocal() error {
	cfg := m.rollbackConfig()
	builder := rollback.NewBuilder(cfg)
	var local []rollback.PlayerHandle
	for h := 0; h < m.cfg.NumPlayers; h++ {
		handle := rollback.PlayerHandle(h)
		if err := builder.AddPlayer(rollback.LocalPlayer(), handle); err != nil {
			return fmt.Errorf("%w: add player %d: %v", ErrSessionSetup, handle, err)
		}
		local = append(local, handle)
	}
	seed := m.cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	world := sim.NewWorld(m.cfg.World, uint64(seed))
	session, err := builder.StartSyncTest(world)
	if err != nil {
		return fmt.Errorf("%w: start %s session: %v", ErrSessionSetup, m.cfg.Mode, err)
	}
	m.seed = seed
	m.world = world
	m.local = local
	m.session = session
	return nil
}

// rollbackConfig merges the manager's settings over the injected defaults.
// Local matches run without delay or rechecks.
func (m *Manager) rollbackConfig() rollback.Config {
	cfg := m.deps.Rollback
	cfg.NumPlayers = m.cfg.NumPlayers
	cfg.InputDelay = m.cfg.InputDelay
	cfg.MaxPrediction = m.cfg.MaxPrediction
	cfg.DesyncInterval = m.cfg.DesyncInterval
	cfg.CheckDistance = 0
	switch m.cfg.Mode {
	case ModeSyncTest:
		cfg.CheckDistance = m.cfg.CheckDistance
	case ModeLocal:
		cfg.InputDelay = 0
	}
	return cfg
}
