package rollback

import (
	"fmt"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
)

// Builder collects the players of a session before starting it. Each
// builder starts at most one session.
type Builder struct {
	cfg     Config
	players map[PlayerHandle]Player
	started bool
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, players: make(map[PlayerHandle]Player)}
}

// AddPlayer assigns a player to handle.
func (b *Builder) AddPlayer(p Player, handle PlayerHandle) error {
	if handle < 0 || int(handle) >= b.cfg.NumPlayers {
		return fmt.Errorf("%w: %d of %d", ErrInvalidHandle, handle, b.cfg.NumPlayers)
	}
	if _, exists := b.players[handle]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateHandle, handle)
	}
	if p.Type == Remote {
		for other, existing := range b.players {
			if existing.Type == Remote && existing.Peer == p.Peer {
				return fmt.Errorf("%w: %s already holds handle %d", ErrDuplicatePeer, p.Peer, other)
			}
		}
	}
	b.players[handle] = p
	return nil
}

// StartP2P starts a networked session over ch.
func (b *Builder) StartP2P(ch transport.Channel, sim Simulation) (*P2PSession, error) {
	players, err := b.prepare(sim)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrNilChannel
	}
	hasLocal := false
	for _, p := range players {
		if p.Type == Local {
			hasLocal = true
		}
	}
	if !hasLocal {
		return nil, ErrNoLocalPlayer
	}
	b.started = true
	return newP2PSession(b.cfg.withDefaults(), players, ch, sim), nil
}

// StartSyncTest starts a single-process session that checks determinism by
// rolling back every frame.
func (b *Builder) StartSyncTest(sim Simulation) (*SyncTestSession, error) {
	players, err := b.prepare(sim)
	if err != nil {
		return nil, err
	}
	for h, p := range players {
		if p.Type != Local {
			return nil, fmt.Errorf("%w: handle %d", ErrRemoteInSyncTest, h)
		}
	}
	b.started = true
	return newSyncTestSession(b.cfg.withDefaults(), sim), nil
}

func (b *Builder) prepare(sim Simulation) ([]Player, error) {
	if b.started {
		return nil, ErrSessionStarted
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if sim == nil {
		return nil, ErrNilSimulation
	}
	if len(b.players) != b.cfg.NumPlayers {
		return nil, fmt.Errorf("%w: have %d of %d", ErrMissingPlayers, len(b.players), b.cfg.NumPlayers)
	}
	players := make([]Player, b.cfg.NumPlayers)
	for h, p := range b.players {
		players[h] = p
	}
	return players, nil
}
