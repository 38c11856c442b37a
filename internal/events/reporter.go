package events

import (
	"context"

	"github.com/remcokranenburg/tunneltanktournament/logging"
	loggingdesync "github.com/remcokranenburg/tunneltanktournament/logging/desync"
	loggingnetwork "github.com/remcokranenburg/tunneltanktournament/logging/network"
)

// Reporter forwards drained events to the logging router.
type Reporter struct {
	pub logging.Publisher
}

func NewReporter(pub logging.Publisher) *Reporter {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Reporter{pub: pub}
}

// Report publishes evs in order.
func (r *Reporter) Report(ctx context.Context, evs []Event) {
	if r == nil {
		return
	}
	for _, ev := range evs {
		r.report(ctx, ev)
	}
}

func (r *Reporter) report(ctx context.Context, ev Event) {
	tick := int64(ev.Frame)
	peer := loggingnetwork.PeerPayload{Handle: ev.Handle}
	if ev.Peer != 0 {
		peer.Peer = ev.Peer.String()
	}
	switch ev.Kind {
	case KindSynchronized:
		loggingnetwork.Synchronized(ctx, r.pub, tick, peer)
	case KindPeerJoined:
		loggingnetwork.PeerJoined(ctx, r.pub, tick, peer)
	case KindPeerDisconnected:
		loggingnetwork.PeerDisconnected(ctx, r.pub, tick, peer)
	case KindNetworkInterrupted:
		loggingnetwork.NetworkInterrupted(ctx, r.pub, tick, loggingnetwork.InterruptedPayload{
			PeerPayload:  peer,
			SilentMillis: ev.Silent.Milliseconds(),
		})
	case KindNetworkResumed:
		loggingnetwork.NetworkResumed(ctx, r.pub, tick, peer)
	case KindDesyncDetected:
		loggingdesync.Detected(ctx, r.pub, loggingdesync.NewMismatchPayload(tick, ev.Local, ev.Remote, ev.Handle, ev.Source))
	}
}
