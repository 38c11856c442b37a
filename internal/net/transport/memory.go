package transport

import (
	"sync"
)

// MemoryOptions injects imperfections into a MemoryNetwork.
type MemoryOptions struct {
	// Latency is the number of Receive calls a packet waits in the recipient's
	// inbox before it is delivered.
	Latency int
	// DropEvery drops every n-th packet sent across the network. Zero keeps
	// every packet.
	DropEvery int
}

// MemoryNetwork connects any number of MemoryChannels in one process.
// Delivery is deterministic so tests can replay exact loss patterns.
type MemoryNetwork struct {
	opts MemoryOptions

	mu       sync.Mutex
	channels map[PeerID]*MemoryChannel
	sent     uint64
	dropped  uint64
}

func NewMemoryNetwork(opts MemoryOptions) *MemoryNetwork {
	if opts.Latency < 0 {
		opts.Latency = 0
	}
	if opts.DropEvery < 0 {
		opts.DropEvery = 0
	}
	return &MemoryNetwork{opts: opts, channels: make(map[PeerID]*MemoryChannel)}
}

// NewMemoryPair returns two channels connected to each other.
func NewMemoryPair(a, b PeerID, opts MemoryOptions) (*MemoryChannel, *MemoryChannel) {
	network := NewMemoryNetwork(opts)
	return network.Channel(a), network.Channel(b)
}

// Channel returns the channel for id, creating it on first use.
func (n *MemoryNetwork) Channel(id PeerID) *MemoryChannel {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.channels[id]; ok {
		return ch
	}
	ch := &MemoryChannel{network: n, id: id}
	n.channels[id] = ch
	return ch
}

// Disconnect closes id's channel and tells every other peer it left.
func (n *MemoryNetwork) Disconnect(id PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.channels[id]
	if !ok || ch.closed {
		return
	}
	ch.closed = true
	for other, peer := range n.channels {
		if other == id || peer.closed {
			continue
		}
		peer.inbox = append(peer.inbox, pending{packet: Packet{From: id, Kind: PacketPeerLeft}, wait: n.opts.Latency})
	}
}

// Stats returns how many packets were sent and how many of those were dropped.
func (n *MemoryNetwork) Stats() (sent, dropped uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent, n.dropped
}

type pending struct {
	packet Packet
	wait   int
}

// MemoryChannel is one peer's endpoint on a MemoryNetwork.
type MemoryChannel struct {
	network *MemoryNetwork
	id      PeerID

	// guarded by network.mu
	inbox  []pending
	closed bool
}

func (c *MemoryChannel) ID() PeerID { return c.id }

func (c *MemoryChannel) Send(to PeerID, data []byte) error {
	n := c.network
	n.mu.Lock()
	defer n.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	dst, ok := n.channels[to]
	if !ok {
		return ErrUnknownPeer
	}
	n.sent++
	if n.opts.DropEvery > 0 && n.sent%uint64(n.opts.DropEvery) == 0 {
		n.dropped++
		return nil
	}
	if dst.closed {
		return nil
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	dst.inbox = append(dst.inbox, pending{packet: Packet{From: c.id, Kind: PacketData, Data: payload}, wait: n.opts.Latency})
	return nil
}

func (c *MemoryChannel) Receive() []Packet {
	n := c.network
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(c.inbox) == 0 {
		return nil
	}
	var ready []Packet
	kept := c.inbox[:0]
	for _, p := range c.inbox {
		if p.wait > 0 {
			p.wait--
			kept = append(kept, p)
			continue
		}
		ready = append(ready, p.packet)
	}
	c.inbox = kept
	return ready
}

var _ Channel = (*MemoryChannel)(nil)
