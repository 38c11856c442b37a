package events

import (
	"context"
	"testing"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingdesync "github.com/remcokranenburg/tunneltanktournament/logging/desync"
	loggingnetwork "github.com/remcokranenburg/tunneltanktournament/logging/network"
)

func TestQueueDrainsInOrder(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		q.Push(Event{Kind: KindSynchronized, Frame: int32(i)})
	}
	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Frame != int32(i) {
			t.Fatalf("expected frame %d at %d, got %d", i, i, ev.Frame)
		}
	}
	if q.Len() != 0 || q.Drain() != nil {
		t.Fatalf("expected an empty queue after drain")
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(Event{Frame: int32(i)})
	}
	got := q.Drain()
	if len(got) != 3 || got[0].Frame != 2 || got[2].Frame != 4 {
		t.Fatalf("expected frames 2..4, got %+v", got)
	}
	if q.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", q.Dropped())
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < DefaultCapacity+1; i++ {
		q.Push(Event{})
	}
	if q.Len() != DefaultCapacity || q.Dropped() != 1 {
		t.Fatalf("unexpected len=%d dropped=%d", q.Len(), q.Dropped())
	}
}

func TestReporterSeverities(t *testing.T) {
	var published []logging.Event
	pub := logging.PublisherFunc(func(_ context.Context, ev logging.Event) {
		published = append(published, ev)
	})
	r := NewReporter(pub)
	r.Report(context.Background(), []Event{
		{Kind: KindPeerJoined, Handle: 1, Peer: 0xbeef},
		{Kind: KindNetworkInterrupted, Frame: 30, Handle: 1, Peer: 0xbeef, Silent: 750 * time.Millisecond},
		{Kind: KindPeerDisconnected, Frame: 90, Handle: 1, Peer: 0xbeef},
		{Kind: KindDesyncDetected, Frame: 120, Handle: 1, Local: 1, Remote: 2, Source: "p2p"},
	})
	if len(published) != 4 {
		t.Fatalf("expected 4 published events, got %d", len(published))
	}
	cases := []struct {
		eventType logging.EventType
		severity  logging.Severity
	}{
		{loggingnetwork.EventPeerJoined, logging.SeverityInfo},
		{loggingnetwork.EventNetworkInterrupted, logging.SeverityWarn},
		{loggingnetwork.EventPeerDisconnected, logging.SeverityWarn},
		{loggingdesync.EventDesyncDetected, logging.SeverityError},
	}
	for i, tc := range cases {
		if published[i].Type != tc.eventType || published[i].Severity != tc.severity {
			t.Fatalf("event %d: got %s/%s, want %s/%s", i, published[i].Type, published[i].Severity, tc.eventType, tc.severity)
		}
	}
	interrupted, ok := published[1].Payload.(loggingnetwork.InterruptedPayload)
	if !ok || interrupted.SilentMillis != 750 || interrupted.Peer != "000000000000beef" {
		t.Fatalf("unexpected interruption payload %+v", published[1].Payload)
	}
	mismatch, ok := published[3].Payload.(loggingdesync.MismatchPayload)
	if !ok || mismatch.Tick != 120 || mismatch.Local != "0000000000000001" || mismatch.Remote != "0000000000000002" {
		t.Fatalf("unexpected desync payload %+v", published[3].Payload)
	}
}

func TestNilReporterAndQueue(t *testing.T) {
	var r *Reporter
	r.Report(context.Background(), []Event{{Kind: KindPeerJoined}})
	var q *Queue
	q.Push(Event{})
	if q.Drain() != nil || q.Len() != 0 {
		t.Fatalf("nil queue should be inert")
	}
	NewReporter(nil).Report(context.Background(), []Event{{Kind: KindNetworkResumed}})
}
