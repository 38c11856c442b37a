// Package game drives a match at a fixed timestep: it samples the keyboard,
// feeds the rollback session and publishes a view for presentation.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/internal/events"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/rollback"
	"github.com/remcokranenburg/tunneltanktournament/internal/session"
	"github.com/remcokranenburg/tunneltanktournament/internal/sim"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
	"github.com/remcokranenburg/tunneltanktournament/logging"
	logginground "github.com/remcokranenburg/tunneltanktournament/logging/round"
)

// ErrQuit is returned by Tick when the player asked to close the game.
var ErrQuit = errors.New("game: quit requested")

// LoopConfig tunes the tick loop.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	// Debug logs session statistics once per second of simulated time.
	Debug bool
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{TickRate: 60, CatchupMaxTicks: 4}
}

type Deps struct {
	Manager   *session.Manager
	Device    input.Device
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Clock     logging.Clock
}

// Loop owns the match for its whole lifetime. Tick is not safe for concurrent
// use; View may be called from any goroutine.
type Loop struct {
	config   LoopConfig
	manager  *session.Manager
	device   input.Device
	pub      logging.Publisher
	logger   telemetry.Logger
	clock    logging.Clock
	reporter *events.Reporter

	session rollback.Session
	keymaps []input.KeyMap
	ticks   uint64
	stalls  uint64

	lastScores []int
	lastRound  uint32

	viewMu  sync.RWMutex
	view    sim.View
	hasView bool
}

func NewLoop(cfg LoopConfig, deps Deps) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultLoopConfig().TickRate
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	return &Loop{
		config:   cfg,
		manager:  deps.Manager,
		device:   deps.Device,
		pub:      deps.Publisher,
		logger:   deps.Logger,
		clock:    deps.Clock,
		reporter: events.NewReporter(deps.Publisher),
	}
}

// View returns the world as of the latest completed tick. The second result
// is false until a match is running.
func (l *Loop) View() (sim.View, bool) {
	l.viewMu.RLock()
	defer l.viewMu.RUnlock()
	return l.view, l.hasView
}

// Stalls counts ticks skipped because the prediction window was exhausted.
func (l *Loop) Stalls() uint64 { return l.stalls }

// Tick runs one fixed step: matchmaking until a session exists, then one
// session frame.
func (l *Loop) Tick(ctx context.Context) error {
	if l.manager == nil {
		return fmt.Errorf("game: loop without a session manager")
	}
	if input.QuitRequested(l.device) {
		return ErrQuit
	}
	l.ticks++

	if l.session == nil {
		sess, err := l.manager.Poll(ctx)
		l.reporter.Report(ctx, l.manager.Events())
		if err != nil {
			return err
		}
		if sess == nil {
			return nil
		}
		l.begin(sess)
	}

	for i, h := range l.manager.LocalHandles() {
		frame := input.Encode(l.device, l.keymaps[i])
		if err := l.session.AddLocalInput(h, frame); err != nil {
			return err
		}
	}

	err := l.session.AdvanceFrame()
	l.reporter.Report(ctx, l.session.Events())
	switch {
	case errors.Is(err, rollback.ErrPredictionThreshold):
		l.stalls++
	case err != nil:
		return err
	}

	l.publish(ctx)
	if l.config.Debug && l.ticks%uint64(l.config.TickRate) == 0 {
		st := l.session.Stats()
		l.logger.Printf("[debug] frame=%d confirmed=%d rollbacks=%d resimulated=%d stalls=%d desyncs=%d",
			l.session.CurrentFrame(), l.session.ConfirmedFrame(), st.Rollbacks, st.RolledBackFrames, st.Stalls, st.Desyncs)
	}
	return nil
}

// begin picks key bindings: two players sharing a keyboard get one key set
// each, a lone local player may use either.
func (l *Loop) begin(sess rollback.Session) {
	l.session = sess
	handles := l.manager.LocalHandles()
	l.keymaps = make([]input.KeyMap, len(handles))
	for i := range handles {
		if len(handles) == 1 {
			l.keymaps[i] = input.NetworkKeyMap()
		} else {
			l.keymaps[i] = input.KeyMapForSlot(i)
		}
	}
	if world := l.manager.World(); world != nil {
		view := world.View()
		l.lastScores = append([]int(nil), view.Scores...)
		l.lastRound = view.RoundNumber
	}
}

// publish copies the world view and logs score and round changes. Rollbacks
// only rewrite unconfirmed frames, so the latest view is what the player saw.
func (l *Loop) publish(ctx context.Context) {
	world := l.manager.World()
	if world == nil {
		return
	}
	view := world.View()
	tick := int64(view.Frame)

	for shooter, score := range view.Scores {
		if shooter < len(l.lastScores) && score > l.lastScores[shooter] {
			target := hitTarget(view, world.Hits(), shooter)
			logginground.PlayerHit(ctx, l.pub, tick, logginground.HitPayload{
				Shooter: shooter,
				Target:  target,
				Scores:  append([]int(nil), view.Scores...),
			})
		}
	}
	if view.RoundNumber > l.lastRound {
		logginground.Started(ctx, l.pub, tick, logginground.StartedPayload{Round: view.RoundNumber})
	}
	l.lastScores = append(l.lastScores[:0], view.Scores...)
	l.lastRound = view.RoundNumber

	l.viewMu.Lock()
	l.view = view
	l.hasView = true
	l.viewMu.Unlock()
}

// hitTarget names the player shooter destroyed. hits only covers the last
// resimulated step, so a hit revealed by a longer rollback falls back to the
// first other player missing from the view. -1 means unknown.
func hitTarget(view sim.View, hits []sim.Hit, shooter int) int {
	for _, hit := range hits {
		if hit.Shooter == shooter {
			return hit.Target
		}
	}
	alive := make(map[int]bool, len(view.Players))
	for _, p := range view.Players {
		alive[p.ID] = true
	}
	for id := range view.Scores {
		if id != shooter && !alive[id] {
			return id
		}
	}
	return -1
}

// Run ticks at the configured rate until ctx ends or the player quits. Late
// ticks are caught up, at most CatchupMaxTicks at once.
func (l *Loop) Run(ctx context.Context) error {
	budget := time.Second / time.Duration(l.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	maxCatchup := l.config.CatchupMaxTicks
	if maxCatchup < 1 {
		maxCatchup = 1
	}
	next := l.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := l.clock.Now()
			steps := 0
			for !next.After(now) && steps < maxCatchup {
				if err := l.Tick(ctx); err != nil {
					if errors.Is(err, ErrQuit) {
						return nil
					}
					return err
				}
				next = next.Add(budget)
				steps++
			}
			if next.Before(now) {
				next = now
			}
		}
	}
}
