package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/remcokranenburg/tunneltanktournament/internal/session"
	"github.com/remcokranenburg/tunneltanktournament/logging"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode() != session.ModeP2P {
		t.Fatalf("expected p2p by default, got %s", cfg.Mode())
	}
	if cfg.InputDelay != 2 || cfg.Players != 2 || cfg.DesyncInterval != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RoomURL != DefaultRoomURL {
		t.Fatalf("unexpected room url %q", cfg.RoomURL)
	}
}

func TestFlags(t *testing.T) {
	cfg, err := Load([]string{"--local", "--input-delay", "0", "--seed", "0x2a", "--debug"}, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode() != session.ModeLocal {
		t.Fatalf("expected local mode, got %s", cfg.Mode())
	}
	if cfg.Seed != 42 || cfg.InputDelay != 0 {
		t.Fatalf("unexpected settings %+v", cfg)
	}
	if cfg.Logging.MinimumSeverity != logging.SeverityDebug {
		t.Fatalf("--debug should lower the log threshold, got %s", cfg.Logging.MinimumSeverity)
	}

	sess := cfg.Session()
	if sess.Mode != session.ModeLocal || sess.Seed != 42 || sess.NumPlayers != 2 {
		t.Fatalf("unexpected session config %+v", sess)
	}
}

func TestInvalidCombinations(t *testing.T) {
	cases := map[string][]string{
		"exclusive modes": {"--synctest", "--local"},
		"negative delay":  {"--input-delay", "-1"},
		"huge delay":      {"--input-delay", "99"},
		"lonely p2p":      {"--players", "1"},
		"seed in p2p":     {"--seed", "7"},
		"negative desync": {"--desync-interval", "-5"},
		"unknown flag":    {"--turbo"},
		"bad flag value":  {"--players", "two"},
		"zero players":    {"--local", "--players", "0"},
		"empty room":      {"--room", ""},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(args, ""); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid for %v, got %v", args, err)
			}
		})
	}

	if _, err := Load([]string{"--synctest", "--players", "1"}, ""); err != nil {
		t.Fatalf("a single player sync test is valid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRoomURL:  "ws://relay.example:3536/arena?next=2",
		EnvLogSinks: "console, JSON",
		EnvLogLevel: "warn",
		EnvLogFile:  "/tmp/ttt.jsonl",
	}
	cfg := Default()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.RoomURL != env[EnvRoomURL] {
		t.Fatalf("unexpected room url %q", cfg.RoomURL)
	}
	if !reflect.DeepEqual(cfg.Logging.EnabledSinks, []string{"console", "json"}) {
		t.Fatalf("unexpected sinks %v", cfg.Logging.EnabledSinks)
	}
	if cfg.Logging.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("unexpected severity %s", cfg.Logging.MinimumSeverity)
	}
	if cfg.Logging.JSON.FilePath != "/tmp/ttt.jsonl" {
		t.Fatalf("unexpected log file %q", cfg.Logging.JSON.FilePath)
	}

	bad := Default()
	err = bad.ApplyEnv(func(key string) (string, bool) {
		if key == EnvLogLevel {
			return "loud", true
		}
		return "", false
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for an unknown level, got %v", err)
	}
}

func TestEnvFileThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TTT_ROOM_URL=ws://from-env-file:3536/r?next=2\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	os.Unsetenv(EnvRoomURL)
	t.Cleanup(func() { os.Unsetenv(EnvRoomURL) })

	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoomURL != "ws://from-env-file:3536/r?next=2" {
		t.Fatalf("expected the env file room, got %q", cfg.RoomURL)
	}

	cfg, err = Load([]string{"--room", "ws://flag:3536/r?next=2"}, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoomURL != "ws://flag:3536/r?next=2" {
		t.Fatalf("flags should win over the environment, got %q", cfg.RoomURL)
	}

	if _, err := Load(nil, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("a missing env file is fine: %v", err)
	}
}
