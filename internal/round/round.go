// Package round tracks whether a match is mid-round or counting down to the
// next one. The countdown is measured in simulation ticks so it rolls back
// with the rest of the world.
package round

import "time"

// endPhase is how long the round-end phase lasts before players respawn.
const endPhase = 2 * time.Second

type Phase uint8

const (
	InRound Phase = iota
	RoundEnd
)

func (p Phase) String() string {
	switch p {
	case InRound:
		return "in_round"
	case RoundEnd:
		return "round_end"
	default:
		return "unknown"
	}
}

// State is the single round state of a match. The zero value is InRound.
type State struct {
	Phase     Phase
	Remaining int32
}

// EndDuration returns the length of the round-end phase in ticks at tickRate.
func EndDuration(tickRate int) int32 {
	if tickRate <= 0 {
		return 0
	}
	return int32(endPhase.Milliseconds() * int64(tickRate) / 1000)
}

// EndRound enters RoundEnd with a countdown of ticks. It reports false, and leaves
// the countdown untouched, when the round has already ended.
func (s *State) EndRound(ticks int32) bool {
	if s.Phase == RoundEnd {
		return false
	}
	s.Phase = RoundEnd
	s.Remaining = ticks
	return true
}

// Tick advances the countdown by one tick and reports true on the tick the
// next round begins.
func (s *State) Tick() bool {
	if s.Phase != RoundEnd {
		return false
	}
	if s.Remaining > 0 {
		s.Remaining--
	}
	if s.Remaining > 0 {
		return false
	}
	s.Phase = InRound
	s.Remaining = 0
	return true
}

func (s State) Ended() bool {
	return s.Phase == RoundEnd
}
