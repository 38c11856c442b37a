package network

import (
	"context"

	"github.com/remcokranenburg/tunneltanktournament/logging"
)

const (
	// EventPeerJoined is emitted when a remote peer becomes reachable.
	EventPeerJoined logging.EventType = "network.peer_joined"
	// EventPeerDisconnected is emitted when a remote peer goes away for good.
	EventPeerDisconnected logging.EventType = "network.peer_disconnected"
	// EventNetworkInterrupted is emitted when a peer stops sending for longer than the interruption threshold.
	EventNetworkInterrupted logging.EventType = "network.interrupted"
	// EventNetworkResumed is emitted when an interrupted peer starts sending again.
	EventNetworkResumed logging.EventType = "network.resumed"
	// EventSynchronized is emitted once the first remote input arrives from a peer.
	EventSynchronized logging.EventType = "network.synchronized"
)

// PeerPayload identifies the peer and player slot an event refers to.
type PeerPayload struct {
	Handle int    `json:"handle"`
	Peer   string `json:"peer,omitempty"`
}

// InterruptedPayload adds how long the peer has been silent.
type InterruptedPayload struct {
	PeerPayload
	SilentMillis int64 `json:"silentMillis"`
}

func PeerJoined(ctx context.Context, pub logging.Publisher, tick int64, payload PeerPayload) {
	publish(ctx, pub, EventPeerJoined, logging.SeverityInfo, tick, payload.Peer, payload)
}

func Synchronized(ctx context.Context, pub logging.Publisher, tick int64, payload PeerPayload) {
	publish(ctx, pub, EventSynchronized, logging.SeverityInfo, tick, payload.Peer, payload)
}

// PeerDisconnected is a warning: the session keeps running on predicted input.
func PeerDisconnected(ctx context.Context, pub logging.Publisher, tick int64, payload PeerPayload) {
	publish(ctx, pub, EventPeerDisconnected, logging.SeverityWarn, tick, payload.Peer, payload)
}

func NetworkInterrupted(ctx context.Context, pub logging.Publisher, tick int64, payload InterruptedPayload) {
	publish(ctx, pub, EventNetworkInterrupted, logging.SeverityWarn, tick, payload.Peer, payload)
}

func NetworkResumed(ctx context.Context, pub logging.Publisher, tick int64, payload PeerPayload) {
	publish(ctx, pub, EventNetworkResumed, logging.SeverityInfo, tick, payload.Peer, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, sev logging.Severity, tick int64, peer string, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: peer, Kind: logging.EntityKindPeer},
		Severity: sev,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
