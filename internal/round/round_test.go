package round

import "testing"

func TestEndDuration(t *testing.T) {
	if got := EndDuration(60); got != 120 {
		t.Fatalf("EndDuration(60) = %d, want 120", got)
	}
	if got := EndDuration(0); got != 0 {
		t.Fatalf("EndDuration(0) = %d, want 0", got)
	}
}

func TestStateTransitions(t *testing.T) {
	var s State
	if s.Phase != InRound {
		t.Fatalf("zero state should be in round, got %s", s.Phase)
	}
	if s.Tick() {
		t.Fatalf("ticking in round must not report a restart")
	}
	if !s.EndRound(3) {
		t.Fatalf("expected first EndRound to transition")
	}
	if s.EndRound(10) {
		t.Fatalf("second EndRound in the same round must be ignored")
	}
	if s.Remaining != 3 {
		t.Fatalf("countdown overwritten: %d", s.Remaining)
	}
	for i := 0; i < 2; i++ {
		if s.Tick() {
			t.Fatalf("restart reported early on tick %d", i)
		}
		if !s.Ended() {
			t.Fatalf("expected round end to persist on tick %d", i)
		}
	}
	if !s.Tick() {
		t.Fatalf("expected restart on the final countdown tick")
	}
	if s.Ended() || s.Remaining != 0 {
		t.Fatalf("expected clean in-round state, got %+v", s)
	}
}

func TestZeroCountdownRestartsOnNextTick(t *testing.T) {
	var s State
	s.EndRound(0)
	if !s.Tick() {
		t.Fatalf("expected restart with an empty countdown")
	}
}
