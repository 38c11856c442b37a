package rollback

import (
	"testing"

	"github.com/remcokranenburg/tunneltanktournament/internal/input"
)

func TestInputQueueLocalDelay(t *testing.T) {
	q := newInputQueue(2)
	if !q.addLocal(0, input.Up) {
		t.Fatalf("expected the first input to be accepted")
	}
	if q.lastConfirmed != 2 {
		t.Fatalf("expected input delayed to frame 2, last confirmed %d", q.lastConfirmed)
	}
	for frame := Frame(0); frame < 2; frame++ {
		if got := q.input(frame); got != 0 {
			t.Fatalf("frame %d before the delay should be empty, got %v", frame, got)
		}
	}
	if got := q.input(2); got != input.Up {
		t.Fatalf("expected delayed input on frame 2, got %v", got)
	}
	if q.addLocal(0, input.Down) {
		t.Fatalf("re-adding input for the same frame must be ignored")
	}
	if got := q.input(2); got != input.Up {
		t.Fatalf("confirmed input must not change, got %v", got)
	}
}

func TestInputQueuePrediction(t *testing.T) {
	q := newInputQueue(0)
	if got := q.input(0); got != 0 {
		t.Fatalf("expected a zero prediction before any input, got %v", got)
	}
	q.confirm(0, 0)
	if q.firstIncorrect != NullFrame {
		t.Fatalf("a correct prediction must not be flagged")
	}
	q.confirm(1, input.Left)
	if got := q.input(2); got != input.Left {
		t.Fatalf("expected the last confirmed input repeated, got %v", got)
	}
	if got := q.input(3); got != input.Left {
		t.Fatalf("expected the last confirmed input repeated, got %v", got)
	}
	q.confirm(2, input.Left)
	q.confirm(3, input.Fire)
	if q.firstIncorrect != 3 {
		t.Fatalf("expected frame 3 flagged incorrect, got %d", q.firstIncorrect)
	}
	q.resetPrediction()
	if q.firstIncorrect != NullFrame {
		t.Fatalf("expected the flag cleared")
	}
}

func TestInputQueueRejectsGaps(t *testing.T) {
	q := newInputQueue(0)
	if q.confirm(1, input.Up) {
		t.Fatalf("confirming out of order must be rejected")
	}
	if !q.confirm(0, input.Down) || !q.confirm(1, input.Up) {
		t.Fatalf("expected in-order confirmations to succeed")
	}
	if q.confirm(1, input.Right) {
		t.Fatalf("duplicates must be rejected")
	}
	if in, ok := q.confirmedAt(1); !ok || in != input.Up {
		t.Fatalf("unexpected confirmed input %v %v", in, ok)
	}
}

func TestInputQueueDisconnectedConfirmsPredictions(t *testing.T) {
	q := newInputQueue(0)
	q.confirm(0, input.Right)
	q.disconnected = true
	if got := q.input(5); got != input.Right {
		t.Fatalf("expected the last input repeated, got %v", got)
	}
	if q.lastConfirmed != 5 {
		t.Fatalf("expected frames up to 5 confirmed, got %d", q.lastConfirmed)
	}
	if q.firstIncorrect != NullFrame {
		t.Fatalf("auto-confirmed frames are never incorrect")
	}
}

func TestSavedStatesRing(t *testing.T) {
	states := newSavedStates(3)
	sim := &counterSim{}
	for frame := Frame(0); frame < 5; frame++ {
		states.save(frame, sim)
		sim.AdvanceFrame([]input.Frame{1})
	}
	if _, ok := states.checksum(1); ok {
		t.Fatalf("frame 1 should have been evicted")
	}
	sum, ok := states.checksum(3)
	if !ok || sum != 3 {
		t.Fatalf("unexpected checksum %d %v", sum, ok)
	}
	states.load(2, sim)
	if sim.total != 2 {
		t.Fatalf("expected state of frame 2, got %d", sim.total)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("loading an evicted frame must panic")
		}
	}()
	states.load(0, sim)
}

// counterSim sums every input it sees.
type counterSim struct {
	total  uint64
	frames int
}

func (c *counterSim) SaveState(any) any { return [2]uint64{c.total, uint64(c.frames)} }

func (c *counterSim) LoadState(state any) {
	s := state.([2]uint64)
	c.total = s[0]
	c.frames = int(s[1])
}

func (c *counterSim) AdvanceFrame(inputs []input.Frame) {
	for _, in := range inputs {
		c.total += uint64(in)
	}
	c.frames++
}

func (c *counterSim) Checksum() uint64 { return c.total }
