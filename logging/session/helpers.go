package session

import (
	"context"

	"github.com/remcokranenburg/tunneltanktournament/logging"
)

const (
	// EventMatchmaking is emitted when the manager starts waiting for peers.
	EventMatchmaking logging.EventType = "session.matchmaking"
	// EventStarted is emitted once the rollback session is running.
	EventStarted logging.EventType = "session.started"
)

type MatchmakingPayload struct {
	Mode    string `json:"mode"`
	Players int    `json:"players"`
	Room    string `json:"room,omitempty"`
}

type StartedPayload struct {
	Mode           string `json:"mode"`
	Players        int    `json:"players"`
	LocalHandles   []int  `json:"localHandles"`
	InputDelay     int    `json:"inputDelay"`
	DesyncInterval int    `json:"desyncInterval"`
	Seed           string `json:"seed"`
}

func Matchmaking(ctx context.Context, pub logging.Publisher, payload MatchmakingPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMatchmaking,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}

func Started(ctx context.Context, pub logging.Publisher, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarted,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
