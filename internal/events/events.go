// Package events carries session lifecycle and diagnostics notifications from
// the rollback core to the game loop, which drains them once per tick.
package events

import (
	"sync"
	"time"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
)

// DefaultCapacity bounds a Queue; when full the oldest event is dropped.
const DefaultCapacity = 64

type Kind uint8

const (
	KindSynchronized Kind = iota + 1
	KindPeerJoined
	KindPeerDisconnected
	KindNetworkInterrupted
	KindNetworkResumed
	KindDesyncDetected
)

func (k Kind) String() string {
	switch k {
	case KindSynchronized:
		return "synchronized"
	case KindPeerJoined:
		return "peer_joined"
	case KindPeerDisconnected:
		return "peer_disconnected"
	case KindNetworkInterrupted:
		return "network_interrupted"
	case KindNetworkResumed:
		return "network_resumed"
	case KindDesyncDetected:
		return "desync_detected"
	default:
		return "unknown"
	}
}

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind   Kind
	Frame  int32
	Handle int
	Peer   transport.PeerID

	// Silent is how long an interrupted peer has not been heard from.
	Silent time.Duration

	// Local and Remote are the disagreeing checksums of a desync.
	Local  uint64
	Remote uint64
	Source string
}

// Queue is a bounded FIFO of events.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	size    int
	dropped uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Event, capacity)}
}

// Push appends ev, evicting the oldest event when the queue is full.
func (q *Queue) Push(ev Event) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
}

// Drain removes and returns every queued event in arrival order.
func (q *Queue) Drain() []Event {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	out := make([]Event, q.size)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
		q.buf[(q.head+i)%len(q.buf)] = Event{}
	}
	q.head = 0
	q.size = 0
	return out
}

func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many events were evicted unread.
func (q *Queue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
