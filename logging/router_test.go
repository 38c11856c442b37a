package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *recordingSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...), s.closed
}

func TestRouterFansOutAndFilters(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Fields = map[string]any{"build": "test"}
	a, b := &recordingSink{}, &recordingSink{}
	router := NewRouter(ClockFunc(func() time.Time { return fixed }), cfg, []NamedSink{
		{Name: "a", Sink: a},
		{Name: "b", Sink: b},
		{Name: "nil"},
	})

	ctx := context.Background()
	router.Publish(ctx, Event{Type: "test.debug", Severity: SeverityDebug})
	router.Publish(ctx, Event{Type: "test.info", Severity: SeverityInfo, Tick: 7})
	router.Publish(ctx, Event{Severity: SeverityError})
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	for name, sink := range map[string]*recordingSink{"a": a, "b": b} {
		events, closed := sink.snapshot()
		if !closed {
			t.Fatalf("sink %s not closed", name)
		}
		if len(events) != 1 {
			t.Fatalf("sink %s: expected only the info event, got %+v", name, events)
		}
		ev := events[0]
		if ev.Type != "test.info" || ev.Tick != 7 || !ev.Time.Equal(fixed) {
			t.Fatalf("sink %s: unexpected event %+v", name, ev)
		}
		if ev.Extra["build"] != "test" {
			t.Fatalf("sink %s: expected merged fields, got %v", name, ev.Extra)
		}
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected one forwarded event, got %+v", stats)
	}
	if router.Sink("a") != a || router.Sink("missing") != nil {
		t.Fatalf("unexpected sink lookup")
	}

	router.Publish(ctx, Event{Type: "test.late", Severity: SeverityError})
	if events, _ := a.snapshot(); len(events) != 1 {
		t.Fatalf("publishing after close must be ignored")
	}
}

func TestWithFieldsKeepsEventValues(t *testing.T) {
	var got Event
	pub := WithFields(PublisherFunc(func(_ context.Context, ev Event) { got = ev }), map[string]any{
		"peer": "a",
		"mode": "p2p",
	})
	pub.Publish(context.Background(), Event{Type: "x"}.WithExtra("peer", "b"))
	if got.Extra["peer"] != "b" || got.Extra["mode"] != "p2p" {
		t.Fatalf("unexpected extra %v", got.Extra)
	}
	if WithFields(nil, nil) == nil {
		t.Fatalf("nil publisher should become a no-op publisher")
	}
}

func TestParseConfigValues(t *testing.T) {
	sinks := ParseSinks(" console,,Zap ")
	if len(sinks) != 2 || sinks[0] != SinkConsole || sinks[1] != SinkZap {
		t.Fatalf("unexpected sinks %v", sinks)
	}
	if sev, err := ParseSeverity("WARNING"); err != nil || sev != SeverityWarn {
		t.Fatalf("unexpected severity %v, %v", sev, err)
	}
	if _, err := ParseSeverity("chatty"); err == nil {
		t.Fatalf("expected an error for an unknown severity")
	}
	if !DefaultConfig().HasSink(SinkConsole) {
		t.Fatalf("console should be enabled by default")
	}
}

type failingSink struct{}

func (failingSink) Write(Event) error           { return errors.New("disk full") }
func (failingSink) Close(context.Context) error { return nil }

func TestRouterReportsToFallback(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Fallback = log.New(&buf, "", 0)
	router := NewRouter(SystemClock{}, cfg, []NamedSink{{Name: "broken", Sink: failingSink{}}})
	router.Publish(context.Background(), Event{Type: "test.info", Severity: SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "sink broken failed: disk full") {
		t.Fatalf("expected the failure on the fallback logger, got %q", got)
	}
}
