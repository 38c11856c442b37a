package rollback

import "github.com/remcokranenburg/tunneltanktournament/internal/input"

// queueLength must exceed the widest span between the oldest frame a
// rollback can reach and the newest confirmed input.
const queueLength = 128

type queuedInput struct {
	frame Frame
	input input.Frame
}

// inputQueue holds one player's confirmed inputs and remembers the guesses
// handed to the simulation for frames not yet confirmed.
type inputQueue struct {
	delay          int
	confirmed      [queueLength]queuedInput
	predicted      [queueLength]queuedInput
	lastConfirmed  Frame
	firstIncorrect Frame
	disconnected   bool
}

func newInputQueue(delay int) *inputQueue {
	q := &inputQueue{delay: delay, lastConfirmed: NullFrame, firstIncorrect: NullFrame}
	for i := range q.confirmed {
		q.confirmed[i].frame = NullFrame
		q.predicted[i].frame = NullFrame
	}
	return q
}

// addLocal records input sampled on frame current. It applies delay frames
// later; the frames skipped at the start of a match repeat the last input.
// Input for a frame that is already confirmed is ignored.
func (q *inputQueue) addLocal(current Frame, in input.Frame) bool {
	target := current + Frame(q.delay)
	if target <= q.lastConfirmed {
		return false
	}
	for q.lastConfirmed+1 < target {
		q.confirm(q.lastConfirmed+1, q.last())
	}
	return q.confirm(target, in)
}

// confirm stores the input for frame, which must directly follow the last
// confirmed frame. A contradicted prediction marks frame incorrect.
func (q *inputQueue) confirm(frame Frame, in input.Frame) bool {
	if frame != q.lastConfirmed+1 {
		return false
	}
	slot := frame % queueLength
	q.confirmed[slot] = queuedInput{frame: frame, input: in}
	q.lastConfirmed = frame

	guess := &q.predicted[slot]
	if guess.frame == frame {
		if guess.input != in && (q.firstIncorrect == NullFrame || frame < q.firstIncorrect) {
			q.firstIncorrect = frame
		}
		guess.frame = NullFrame
	}
	return true
}

// input returns the confirmed input for frame, or a prediction that is
// remembered so a later confirmation can be checked against it. A
// disconnected player's predictions are confirmed on the spot.
func (q *inputQueue) input(frame Frame) input.Frame {
	if frame <= q.lastConfirmed {
		if slot := q.confirmed[frame%queueLength]; slot.frame == frame {
			return slot.input
		}
		return q.last()
	}
	if q.disconnected {
		for q.lastConfirmed < frame {
			q.confirm(q.lastConfirmed+1, q.last())
		}
		return q.last()
	}
	guess := q.last()
	q.predicted[frame%queueLength] = queuedInput{frame: frame, input: guess}
	return guess
}

// confirmedAt returns the stored input for a confirmed frame.
func (q *inputQueue) confirmedAt(frame Frame) (input.Frame, bool) {
	if frame < 0 || frame > q.lastConfirmed {
		return 0, false
	}
	slot := q.confirmed[frame%queueLength]
	return slot.input, slot.frame == frame
}

func (q *inputQueue) last() input.Frame {
	if q.lastConfirmed == NullFrame {
		return 0
	}
	return q.confirmed[q.lastConfirmed%queueLength].input
}

func (q *inputQueue) resetPrediction() {
	q.firstIncorrect = NullFrame
}
