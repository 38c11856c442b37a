// Package rendezvous matches peers into rooms over websockets and relays their
// rollback traffic.
package rendezvous

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	nethttp "net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/proto"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
)

const (
	// DefaultRelayRate bounds the binary frames a single peer may relay per
	// second. Sixty ticks with a checksum every tick stays well below it.
	DefaultRelayRate  = 240
	DefaultRelayBurst = 64
	// MaxRoomSize caps the next=N query parameter.
	MaxRoomSize = 16

	sendBuffer = 256
	writeWait  = 2 * time.Second
)

type ServerConfig struct {
	Logger     telemetry.Logger
	RelayRate  rate.Limit
	RelayBurst int
}

// Server accepts peers on /{room}?next=N. A room instance fills up to N peers;
// later arrivals for the same name open a fresh instance. Without next the
// room never fills.
type Server struct {
	logger   telemetry.Logger
	limit    rate.Limit
	burst    int
	upgrader websocket.Upgrader

	mu   sync.Mutex
	open map[string]*room
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	limit := cfg.RelayRate
	if limit <= 0 {
		limit = DefaultRelayRate
	}
	burst := cfg.RelayBurst
	if burst <= 0 {
		burst = DefaultRelayBurst
	}
	return &Server{
		logger: logger,
		limit:  limit,
		burst:  burst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		open: make(map[string]*room),
	}
}

// Routes returns the HTTP handler serving the rendezvous endpoints.
func (s *Server) Routes() nethttp.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/{room}", s.handleRoom)
	return r
}

// OpenRooms reports how many room instances still accept peers.
func (s *Server) OpenRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

func (s *Server) handleRoom(w nethttp.ResponseWriter, r *nethttp.Request) {
	name := chi.URLParam(r, "room")
	capacity := 0
	if raw := r.URL.Query().Get("next"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxRoomSize {
			nethttp.Error(w, "invalid next", nethttp.StatusBadRequest)
			return
		}
		capacity = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[rendezvous] upgrade failed for room %s: %v", name, err)
		return
	}

	p := &peer{
		conn:    conn,
		send:    make(chan frame, sendBuffer),
		limiter: rate.NewLimiter(s.limit, s.burst),
	}
	rm := s.join(name, capacity, p)
	s.logger.Printf("[rendezvous] peer %016x joined room %s", p.id, rm.key)

	go p.writeLoop()
	s.readLoop(rm, p)

	s.leave(rm, p)
	s.logger.Printf("[rendezvous] peer %016x left room %s", p.id, rm.key)
}

func (s *Server) readLoop(rm *room, p *peer) {
	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if !p.limiter.Allow() {
			continue
		}
		env, err := proto.DecodeEnvelope(data)
		if err != nil {
			s.logger.Printf("[rendezvous] discarding malformed frame from %016x: %v", p.id, err)
			continue
		}
		target := rm.lookup(env.To)
		if target == nil {
			continue
		}
		env.From = p.id
		out, err := proto.EncodeEnvelope(env)
		if err != nil {
			s.logger.Printf("[rendezvous] failed to encode frame from %016x: %v", p.id, err)
			continue
		}
		rm.markStarted()
		target.enqueue(frame{kind: websocket.BinaryMessage, data: out})
	}
}

func (s *Server) join(name string, capacity int, p *peer) *room {
	key := name
	if capacity > 0 {
		key = fmt.Sprintf("%s?next=%d", name, capacity)
	}

	s.mu.Lock()
	rm := s.open[key]
	if rm == nil {
		rm = &room{key: key, capacity: capacity, peers: make(map[uint64]*peer)}
		s.open[key] = rm
	}
	rm.mu.Lock()
	p.id = rm.freshID()
	rm.peers[p.id] = p
	if capacity > 0 && len(rm.peers) >= capacity {
		delete(s.open, key)
	}
	s.mu.Unlock()

	p.enqueue(control(proto.TypeIDAssigned, p.id))
	for id, other := range rm.peers {
		if id == p.id {
			continue
		}
		p.enqueue(control(proto.TypePeerJoined, id))
		other.enqueue(control(proto.TypePeerJoined, p.id))
	}
	rm.mu.Unlock()
	return rm
}

func (s *Server) leave(rm *room, p *peer) {
	s.mu.Lock()
	rm.mu.Lock()
	delete(rm.peers, p.id)
	switch {
	case len(rm.peers) == 0:
		if s.open[rm.key] == rm {
			delete(s.open, rm.key)
		}
	case rm.capacity > 0 && !rm.started && s.open[rm.key] == nil:
		// Nobody relayed anything yet, so the stragglers can still be
		// matched with the next arrival.
		s.open[rm.key] = rm
	}
	s.mu.Unlock()
	for _, other := range rm.peers {
		other.enqueue(control(proto.TypePeerLeft, p.id))
	}
	rm.mu.Unlock()
	p.close()
}

type room struct {
	key      string
	capacity int

	mu    sync.Mutex
	peers map[uint64]*peer
	// started is set by the first relayed frame. A started room is never
	// reopened.
	started bool
}

func (r *room) markStarted() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}

func (r *room) lookup(id uint64) *peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers[id]
}

// freshID draws a non-zero id unused in the room. Callers hold r.mu.
func (r *room) freshID() uint64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(fmt.Sprintf("rendezvous: read random id: %v", err))
		}
		id := binary.LittleEndian.Uint64(buf[:])
		if id == 0 {
			continue
		}
		if _, taken := r.peers[id]; !taken {
			return id
		}
	}
}

type frame struct {
	kind int
	data []byte
}

func control(kind string, id uint64) frame {
	data, err := proto.EncodeControl(proto.ControlMessage{Type: kind, ID: id})
	if err != nil {
		panic(fmt.Sprintf("rendezvous: encode control: %v", err))
	}
	return frame{kind: websocket.TextMessage, data: data}
}

type peer struct {
	id      uint64
	conn    *websocket.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan frame
	closed bool
}

// enqueue never blocks. A peer too slow to drain its buffer loses frames,
// which the rollback protocol tolerates.
func (p *peer) enqueue(f frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.send <- f:
	default:
	}
}

func (p *peer) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
	p.mu.Unlock()
}

// writeLoop is the connection's only writer.
func (p *peer) writeLoop() {
	defer p.conn.Close()
	for f := range p.send {
		err := p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err == nil {
			err = p.conn.WriteMessage(f.kind, f.data)
		}
		if err != nil {
			// The read loop notices the broken connection and unregisters.
			p.conn.Close()
			for range p.send {
			}
			return
		}
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
