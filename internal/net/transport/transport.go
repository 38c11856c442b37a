// Package transport defines the unreliable, unordered datagram channel the
// rollback session talks through, and an in-memory implementation of it.
package transport

import (
	"errors"
	"fmt"
)

// PeerID is the 64-bit identity the rendezvous service assigns to a peer.
type PeerID uint64

func (id PeerID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

type PacketKind uint8

const (
	// PacketData carries an opaque payload from a peer.
	PacketData PacketKind = iota
	// PacketPeerLeft reports that the relay lost the peer.
	PacketPeerLeft
)

type Packet struct {
	From PeerID
	Kind PacketKind
	Data []byte
}

// Channel is owned by exactly one session. Send never blocks on the network
// and Receive drains whatever arrived since the previous call.
type Channel interface {
	Send(to PeerID, data []byte) error
	Receive() []Packet
}

type PeerState uint8

const (
	PeerConnected PeerState = iota
	PeerDisconnected
)

func (s PeerState) String() string {
	if s == PeerConnected {
		return "connected"
	}
	return "disconnected"
}

// PeerChange is one lifecycle update reported by the rendezvous service.
type PeerChange struct {
	Peer  PeerID
	State PeerState
}

var (
	ErrClosed      = errors.New("transport: channel closed")
	ErrUnknownPeer = errors.New("transport: unknown peer")
)
