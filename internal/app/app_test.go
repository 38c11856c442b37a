package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/internal/config"
	"github.com/remcokranenburg/tunneltanktournament/internal/input"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/rendezvous"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingSinks "github.com/remcokranenburg/tunneltanktournament/logging/sinks"
	loggingsession "github.com/remcokranenburg/tunneltanktournament/logging/session"
)

func memoryDeps(dev input.Device) (Deps, *loggingSinks.Memory) {
	mem := loggingSinks.NewMemory()
	return Deps{
		Logger: telemetry.Discard,
		Device: dev,
		Sinks:  []logging.NamedSink{{Name: logging.SinkMemory, Sink: mem}},
	}, mem
}

func TestRunLocalMatchUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Local = true
	deps, mem := memoryDeps(input.Keys())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := Run(ctx, cfg, deps); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(mem.OfType(loggingsession.EventMatchmaking)); got != 1 {
		t.Fatalf("expected one matchmaking event, got %d", got)
	}
	started := mem.OfType(loggingsession.EventStarted)
	if len(started) != 1 {
		t.Fatalf("expected one started event, got %d", len(started))
	}
	payload, ok := started[0].Payload.(loggingsession.StartedPayload)
	if !ok || payload.Mode != "local" || len(payload.LocalHandles) != 2 {
		t.Fatalf("unexpected started payload %#v", started[0].Payload)
	}
}

func TestRunQuitsOnShortcut(t *testing.T) {
	cfg := config.Default()
	cfg.SyncTest = true
	deps, _ := memoryDeps(input.Keys(input.KeyCtrlQ))

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), cfg, deps) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on ctrl+q")
	}
}

func TestRunNetworkedMatchThroughRelay(t *testing.T) {
	srv := rendezvous.NewServer(rendezvous.ServerConfig{})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.RoomURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/app_test?next=2"

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	mems := make([]*loggingSinks.Memory, 2)
	errs := make([]error, 2)
	for i := range mems {
		deps, mem := memoryDeps(input.Keys())
		mems[i] = mem
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = Run(ctx, cfg, deps)
		}(i)
	}
	wg.Wait()

	for i, mem := range mems {
		if errs[i] != nil {
			t.Fatalf("peer %d: %v", i, errs[i])
		}
		if got := len(mem.OfType(loggingsession.EventStarted)); got != 1 {
			t.Fatalf("peer %d: expected the match to start, got %d started events", i, got)
		}
	}
}

type brokenSink struct{}

func (brokenSink) Write(logging.Event) error   { return errors.New("disk full") }
func (brokenSink) Close(context.Context) error { return nil }

func TestRunReportsSinkFailuresOnItsLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Local = true
	var buf bytes.Buffer
	deps := Deps{
		Logger: telemetry.WrapLogger(log.New(&buf, "", 0)),
		Device: input.Keys(),
		Sinks:  []logging.NamedSink{{Name: "broken", Sink: brokenSink{}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := Run(ctx, cfg, deps); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "sink broken failed") {
		t.Fatalf("expected sink failures on the injected logger, got %q", got)
	}
}
