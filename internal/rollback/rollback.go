// Package rollback runs a deterministic Simulation ahead of confirmed remote
// input. Missing remote input is predicted by repeating the last confirmed
// frame; when a confirmation contradicts a prediction the session restores
// the saved state of that frame and resimulates to the present.
package rollback

import (
	"errors"
	"fmt"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
)

// Frame numbers simulation ticks from zero.
type Frame int32

// NullFrame marks "no frame yet".
const NullFrame Frame = -1

// PlayerHandle indexes a player for the lifetime of a session.
type PlayerHandle int

type PlayerType uint8

const (
	Local PlayerType = iota
	Remote
)

func (t PlayerType) String() string {
	if t == Local {
		return "local"
	}
	return "remote"
}

type Player struct {
	Type PlayerType
	Peer transport.PeerID
}

func LocalPlayer() Player { return Player{Type: Local} }

func RemotePlayer(peer transport.PeerID) Player {
	return Player{Type: Remote, Peer: peer}
}

// Simulation is the deterministic game the session drives. AdvanceFrame must
// be a pure function of the loaded state and the inputs, and must not keep
// the inputs slice.
type Simulation interface {
	// SaveState captures the current state. prev is a state the session
	// discards and may be reused for storage.
	SaveState(prev any) any
	LoadState(state any)
	AdvanceFrame(inputs []input.Frame)
	Checksum() uint64
}

// Session is what the game loop drives each tick.
type Session interface {
	NumPlayers() int
	LocalHandles() []PlayerHandle
	AddLocalInput(handle PlayerHandle, in input.Frame) error
	AdvanceFrame() error
	CurrentFrame() Frame
	ConfirmedFrame() Frame
	Events() []events.Event
	Stats() Stats
}

// Stats counts session activity for diagnostics.
type Stats struct {
	Rollbacks         uint64
	RolledBackFrames  uint64
	Stalls            uint64
	ChecksumsSent     uint64
	ChecksumsCompared uint64
	Desyncs           uint64
	MalformedPackets  uint64
	SendErrors        uint64
	DroppedEvents     uint64
}

var (
	// ErrPredictionThreshold means the session is too far ahead of confirmed
	// remote input. The frame was not advanced; try again next tick.
	ErrPredictionThreshold = errors.New("rollback: prediction threshold reached")

	ErrMissingLocalInput = errors.New("rollback: missing local input")
	ErrNotLocalPlayer    = errors.New("rollback: handle is not a local player")
	ErrInvalidHandle     = errors.New("rollback: invalid player handle")
	ErrDuplicateHandle   = errors.New("rollback: player handle already added")
	ErrDuplicatePeer     = errors.New("rollback: remote peer already added")
	ErrMissingPlayers    = errors.New("rollback: not every player handle was added")
	ErrNoLocalPlayer     = errors.New("rollback: session has no local player")
	ErrRemoteInSyncTest  = errors.New("rollback: sync test sessions only take local players")
	ErrNilChannel        = errors.New("rollback: nil channel")
	ErrNilSimulation     = errors.New("rollback: nil simulation")
	ErrInvalidConfig     = errors.New("rollback: invalid config")
	ErrSessionStarted    = errors.New("rollback: builder already started a session")
)

const (
	DefaultInputDelay      = 2
	DefaultMaxPrediction   = 8
	DefaultDesyncInterval  = 10
	DefaultCheckDistance   = 2
	DefaultInterruptAfter  = 500 * time.Millisecond
	DefaultDisconnectAfter = 2 * time.Second

	maxInputDelay    = 16
	maxPredictionCap = 32
)

type Config struct {
	NumPlayers int
	// InputDelay shifts local input this many frames into the future, which
	// hides that much latency without any rollback.
	InputDelay    int
	MaxPrediction int
	// DesyncInterval is the frame spacing of checksum exchanges; zero
	// disables them.
	DesyncInterval int
	// CheckDistance is how far a sync test session rolls back every frame.
	CheckDistance int

	InterruptAfter  time.Duration
	DisconnectAfter time.Duration
	Clock           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		NumPlayers:      2,
		InputDelay:      DefaultInputDelay,
		MaxPrediction:   DefaultMaxPrediction,
		DesyncInterval:  DefaultDesyncInterval,
		CheckDistance:   DefaultCheckDistance,
		InterruptAfter:  DefaultInterruptAfter,
		DisconnectAfter: DefaultDisconnectAfter,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.NumPlayers < 1 || c.NumPlayers > 255:
		return fmt.Errorf("%w: num players %d", ErrInvalidConfig, c.NumPlayers)
	case c.InputDelay < 0 || c.InputDelay > maxInputDelay:
		return fmt.Errorf("%w: input delay %d", ErrInvalidConfig, c.InputDelay)
	case c.MaxPrediction < 0 || c.MaxPrediction > maxPredictionCap:
		return fmt.Errorf("%w: max prediction %d", ErrInvalidConfig, c.MaxPrediction)
	case c.DesyncInterval < 0:
		return fmt.Errorf("%w: desync interval %d", ErrInvalidConfig, c.DesyncInterval)
	case c.CheckDistance < 0 || c.CheckDistance > maxPredictionCap:
		return fmt.Errorf("%w: check distance %d", ErrInvalidConfig, c.CheckDistance)
	}
	return nil
}

// LatencyBudget is how many frames a remote input may lag behind before the
// session stalls: InputDelay frames are hidden outright and MaxPrediction more
// are covered by rollback.
func (c Config) LatencyBudget() int {
	return c.InputDelay + c.MaxPrediction
}

func (c Config) withDefaults() Config {
	if c.InterruptAfter <= 0 {
		c.InterruptAfter = DefaultInterruptAfter
	}
	if c.DisconnectAfter <= 0 {
		c.DisconnectAfter = DefaultDisconnectAfter
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
