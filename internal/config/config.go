// Package config gathers the client's settings from defaults, an optional
// .env file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/remcokranenburg/tunneltanktournament/internal/session"
	"github.com/remcokranenburg/tunneltanktournament/logging"
)

const (
	DefaultRoomURL = "ws://localhost:3536/tunnel_tank_tournament?next=2"
	DefaultEnvFile = ".env"

	EnvRoomURL  = "TTT_ROOM_URL"
	EnvLogSinks = "TTT_LOG_SINKS"
	EnvLogLevel = "TTT_LOG_LEVEL"
	EnvLogFile  = "TTT_LOG_FILE"

	maxInputDelay = 16
	maxPlayers    = 16
)

var ErrInvalid = errors.New("config: invalid setting")

type Config struct {
	SyncTest       bool
	Local          bool
	InputDelay     int
	Debug          bool
	RoomURL        string
	Players        int
	DesyncInterval int
	Seed           uint64
	Logging        logging.Config
}

func Default() Config {
	sess := session.DefaultConfig()
	return Config{
		InputDelay:     sess.InputDelay,
		RoomURL:        DefaultRoomURL,
		Players:        sess.NumPlayers,
		DesyncInterval: sess.DesyncInterval,
		Logging:        logging.DefaultConfig(),
	}
}

// BindFlags registers the command-line flags onto fs, defaulting to c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.SyncTest, "synctest", c.SyncTest, "run a local sync test session that rolls back every frame")
	fs.BoolVar(&c.Local, "local", c.Local, "two players on one keyboard, no network")
	fs.IntVar(&c.InputDelay, "input-delay", c.InputDelay, "frames of local input delay")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "log debug events and session statistics")
	fs.StringVar(&c.RoomURL, "room", c.RoomURL, "rendezvous room URL")
	fs.IntVar(&c.Players, "players", c.Players, "number of players in the match")
	fs.IntVar(&c.DesyncInterval, "desync-interval", c.DesyncInterval, "frames between checksum exchanges, 0 disables")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "world seed for sync test and local matches")
}

// ApplyEnv overrides settings from the environment. Unset variables leave
// the current value alone.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if raw, ok := lookup(EnvRoomURL); ok && raw != "" {
		c.RoomURL = raw
	}
	if raw, ok := lookup(EnvLogSinks); ok {
		c.Logging.EnabledSinks = logging.ParseSinks(raw)
	}
	if raw, ok := lookup(EnvLogLevel); ok {
		sev, err := logging.ParseSeverity(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvLogLevel, err)
		}
		c.Logging.MinimumSeverity = sev
	}
	if raw, ok := lookup(EnvLogFile); ok && raw != "" {
		c.Logging.JSON.FilePath = raw
	}
	return nil
}

// Load builds the configuration for a run with the given arguments. A
// missing env file is not an error.
func Load(args []string, envFile string) (Config, error) {
	cfg := Default()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	flags := flag.NewFlagSet("tunneltank", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	cfg.BindFlags(flags)
	if err := flags.Parse(args); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Debug {
		cfg.Logging.MinimumSeverity = logging.SeverityDebug
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SyncTest && c.Local {
		return fmt.Errorf("%w: --synctest and --local are exclusive", ErrInvalid)
	}
	if c.InputDelay < 0 || c.InputDelay > maxInputDelay {
		return fmt.Errorf("%w: input delay %d outside 0..%d", ErrInvalid, c.InputDelay, maxInputDelay)
	}
	if c.Players < 1 || c.Players > maxPlayers {
		return fmt.Errorf("%w: %d players outside 1..%d", ErrInvalid, c.Players, maxPlayers)
	}
	if c.Mode() == session.ModeP2P {
		if c.Players < 2 {
			return fmt.Errorf("%w: a networked match needs at least 2 players", ErrInvalid)
		}
		if c.RoomURL == "" {
			return fmt.Errorf("%w: empty room url", ErrInvalid)
		}
		if c.Seed != 0 {
			return fmt.Errorf("%w: --seed only applies to --synctest and --local", ErrInvalid)
		}
	}
	if c.DesyncInterval < 0 {
		return fmt.Errorf("%w: negative desync interval", ErrInvalid)
	}
	for _, name := range c.Logging.EnabledSinks {
		switch name {
		case logging.SinkConsole, logging.SinkJSON, logging.SinkZap, logging.SinkMemory:
		default:
			return fmt.Errorf("%w: unknown log sink %q", ErrInvalid, name)
		}
	}
	return nil
}

func (c Config) Mode() session.Mode {
	switch {
	case c.SyncTest:
		return session.ModeSyncTest
	case c.Local:
		return session.ModeLocal
	default:
		return session.ModeP2P
	}
}

// Session translates the settings for the session manager.
func (c Config) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.Mode = c.Mode()
	cfg.NumPlayers = c.Players
	cfg.InputDelay = c.InputDelay
	cfg.DesyncInterval = c.DesyncInterval
	cfg.Seed = session.Seed(c.Seed)
	cfg.Room = c.RoomURL
	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("mode=%s players=%d delay=%d desync=%d room=%s debug=%s",
		c.Mode(), c.Players, c.InputDelay, c.DesyncInterval, c.RoomURL, strconv.FormatBool(c.Debug))
}
