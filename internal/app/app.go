package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/remcokranenburg/tunneltanktournament/internal/config"
	"github.com/remcokranenburg/tunneltanktournament/internal/game"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/input/termdevice"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/rendezvous"
	"github.com/remcokranenburg/tunneltanktournament/internal/session"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingSinks "github.com/remcokranenburg/tunneltanktournament/logging/sinks"
)

// Deps lets callers replace the terminal and the rendezvous connection.
type Deps struct {
	Logger telemetry.Logger
	Device input.Device
	Socket session.Socket
	// Sinks replace the sinks named by the logging config.
	Sinks []logging.NamedSink
}

// Run plays one match until ctx ends, the player quits or setup fails.
func Run(ctx context.Context, cfg config.Config, deps Deps) error {
	telemetryLogger := deps.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	namedSinks := deps.Sinks
	if namedSinks == nil {
		built, closeFiles, err := buildSinks(cfg.Logging)
		if err != nil {
			return err
		}
		defer closeFiles()
		namedSinks = built
	}
	logCfg := cfg.Logging
	if logCfg.Fallback == nil {
		logCfg.Fallback = log.Default()
		if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
			if candidate := provider.StandardLogger(); candidate != nil {
				logCfg.Fallback = candidate
			}
		}
	}
	router := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	device := deps.Device
	if device == nil {
		term, err := termdevice.Open(termdevice.DefaultHold)
		if err != nil {
			return fmt.Errorf("failed to open terminal: %w", err)
		}
		defer term.Close()
		go term.Run(runCtx)
		device = term
	}

	sessCfg := cfg.Session()
	socket := deps.Socket
	if sessCfg.Mode == session.ModeP2P && socket == nil {
		s, err := rendezvous.Dial(runCtx, cfg.RoomURL)
		if err != nil {
			return fmt.Errorf("%w: %v", session.ErrSessionSetup, err)
		}
		defer s.Close()
		socket = s
	}

	manager := session.New(sessCfg, session.Deps{
		Socket:    socket,
		Publisher: router,
		Logger:    telemetryLogger,
	})
	if err := manager.AssetsLoaded(runCtx); err != nil {
		return err
	}
	telemetryLogger.Printf("[app] starting %s", cfg)

	loopCfg := game.DefaultLoopConfig()
	loopCfg.Debug = cfg.Debug
	loop := game.NewLoop(loopCfg, game.Deps{
		Manager:   manager,
		Device:    device,
		Publisher: router,
		Logger:    telemetryLogger,
	})
	if err := loop.Run(runCtx); err != nil {
		return err
	}

	if view, ok := loop.View(); ok {
		telemetryLogger.Printf("[app] match over at frame %d, round %d, scores %v", view.Frame, view.RoundNumber, view.Scores)
	}
	return nil
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, func(), error) {
	var named []logging.NamedSink
	var files []*os.File
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			// Stdout belongs to the terminal screen.
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsole(os.Stderr)})
		case logging.SinkJSON:
			path := cfg.JSON.FilePath
			if path == "" {
				path = "tunneltank-events.jsonl"
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				closeFiles()
				return nil, nil, fmt.Errorf("failed to open event log %s: %w", path, err)
			}
			files = append(files, f)
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(f, cfg.JSON.FlushInterval)})
		case logging.SinkZap:
			sink, err := loggingSinks.NewZapProduction()
			if err != nil {
				closeFiles()
				return nil, nil, fmt.Errorf("failed to construct zap sink: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		case logging.SinkMemory:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemory()})
		}
	}
	return named, closeFiles, nil
}
