package round

import (
	"context"
	"strconv"

	"github.com/remcokranenburg/tunneltanktournament/logging"
)

const (
	// EventPlayerHit is emitted when a bullet destroys a player.
	EventPlayerHit logging.EventType = "round.player_hit"
	// EventRoundStarted is emitted when players respawn for a new round.
	EventRoundStarted logging.EventType = "round.started"
)

type HitPayload struct {
	Shooter int   `json:"shooter"`
	Target  int   `json:"target"`
	Scores  []int `json:"scores"`
}

type StartedPayload struct {
	Round uint32 `json:"round"`
}

func PlayerHit(ctx context.Context, pub logging.Publisher, tick int64, payload HitPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerHit,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: strconv.Itoa(payload.Shooter), Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

func Started(ctx context.Context, pub logging.Publisher, tick int64, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRoundStarted,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
