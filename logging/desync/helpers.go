package desync

import (
	"context"
	"fmt"

	"github.com/remcokranenburg/tunneltanktournament/logging"
)

// EventDesyncDetected is emitted when two peers report different checksums for
// the same confirmed frame.
const EventDesyncDetected logging.EventType = "desync.detected"

// MismatchPayload carries both digests in hex so they survive JSON sinks intact.
type MismatchPayload struct {
	Tick   int64  `json:"tick"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
	Handle int    `json:"handle"`
	Source string `json:"source"`
}

func NewMismatchPayload(tick int64, local, remote uint64, handle int, source string) MismatchPayload {
	return MismatchPayload{
		Tick:   tick,
		Local:  fmt.Sprintf("%016x", local),
		Remote: fmt.Sprintf("%016x", remote),
		Handle: handle,
		Source: source,
	}
}

// Detected publishes at error severity. There is no recovery path.
func Detected(ctx context.Context, pub logging.Publisher, payload MismatchPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDesyncDetected,
		Tick:     payload.Tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityError,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
