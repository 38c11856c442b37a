package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/remcokranenburg/tunneltanktournament/logging"
)

// Console writes one human readable line per event.
type Console struct {
	logger *log.Logger
}

func NewConsole(w io.Writer) *Console {
	return &Console{logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

func (s *Console) Write(event logging.Event) error {
	s.logger.Printf("[%s] tick=%d actor=%s severity=%s%s%s",
		event.Type, event.Tick, formatEntity(event.Actor), event.Severity,
		formatPayload(event.Payload), formatExtra(event.Extra))
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		if ref.Kind == "" {
			return "-"
		}
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}

func formatExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return fmt.Sprintf(" extra=%v", extra)
	}
	return fmt.Sprintf(" extra=%s", data)
}
