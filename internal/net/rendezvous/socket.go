package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/proto"
	"github.com/remcokranenburg/tunneltanktournament/internal/net/transport"
)

// ErrChannelTaken is returned by every TakeChannel call after the first.
var ErrChannelTaken = errors.New("rendezvous: channel already taken")

// Socket is one peer's connection to a rendezvous room. A reader goroutine
// fills mutex-guarded queues that the game loop drains without blocking.
type Socket struct {
	conn *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	id      transport.PeerID
	hasID   bool
	peers   map[transport.PeerID]struct{}
	changes []transport.PeerChange
	inbox   []transport.Packet
	taken   bool
	err     error
}

// Dial connects to a room URL such as ws://host:3536/extreme_pong?next=2.
func Dial(ctx context.Context, url string) (*Socket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("rendezvous: dial %s: %w", url, err)
	}
	s := &Socket{
		conn:  conn,
		done:  make(chan struct{}),
		peers: make(map[transport.PeerID]struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	defer close(s.done)
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(err)
			return
		}
		switch kind {
		case websocket.TextMessage:
			msg, err := proto.DecodeControl(data)
			if err != nil {
				continue
			}
			s.handleControl(msg)
		case websocket.BinaryMessage:
			env, err := proto.DecodeEnvelope(data)
			if err != nil {
				continue
			}
			s.mu.Lock()
			s.inbox = append(s.inbox, transport.Packet{
				From: transport.PeerID(env.From),
				Kind: transport.PacketData,
				Data: env.Payload,
			})
			s.mu.Unlock()
		}
	}
}

func (s *Socket) handleControl(msg proto.ControlMessage) {
	id := transport.PeerID(msg.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Type {
	case proto.TypeIDAssigned:
		s.id = id
		s.hasID = true
	case proto.TypePeerJoined:
		if _, ok := s.peers[id]; ok {
			return
		}
		s.peers[id] = struct{}{}
		s.changes = append(s.changes, transport.PeerChange{Peer: id, State: transport.PeerConnected})
	case proto.TypePeerLeft:
		if _, ok := s.peers[id]; !ok {
			return
		}
		delete(s.peers, id)
		s.changes = append(s.changes, transport.PeerChange{Peer: id, State: transport.PeerDisconnected})
		s.inbox = append(s.inbox, transport.Packet{From: id, Kind: transport.PacketPeerLeft})
	}
}

func (s *Socket) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// UpdatePeers drains the membership changes seen since the previous call.
func (s *Socket) UpdatePeers() []transport.PeerChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes := s.changes
	s.changes = nil
	return changes
}

// ID returns the id the server assigned, once it has arrived.
func (s *Socket) ID() (transport.PeerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.hasID
}

// Players lists the local peer and every connected remote peer, ascending.
func (s *Socket) Players() []transport.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]transport.PeerID, 0, len(s.peers)+1)
	if s.hasID {
		players = append(players, s.id)
	}
	for id := range s.peers {
		players = append(players, id)
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
	return players
}

// TakeChannel hands the datagram channel to its single owner.
func (s *Socket) TakeChannel() (transport.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken {
		return nil, ErrChannelTaken
	}
	s.taken = true
	return &socketChannel{socket: s}, nil
}

// Err reports why the connection ended, if it has.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the connection and waits for the reader to stop.
func (s *Socket) Close() error {
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Socket) write(to transport.PeerID, data []byte) error {
	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()
	if failed {
		return transport.ErrClosed
	}
	frame, err := proto.EncodeEnvelope(proto.Envelope{To: uint64(to), Payload: data})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *Socket) drain() []transport.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	packets := s.inbox
	s.inbox = nil
	return packets
}

type socketChannel struct {
	socket *Socket
}

func (c *socketChannel) Send(to transport.PeerID, data []byte) error {
	return c.socket.write(to, data)
}

func (c *socketChannel) Receive() []transport.Packet {
	return c.socket.drain()
}
