package sim

import (
	"encoding/binary"
	"math"

	"lukechampine.com/blake3"
)

// Checksum fingerprints the gameplay-relevant state: frame, round, every
// player and bullet, and the scores. Terrain is left out; it is a function of
// the player paths already covered.
func (w *World) Checksum() uint64 {
	buf := w.appendCanonical(make([]byte, 0, 64+len(w.players)*24+len(w.bullets)*20))
	hasher := blake3.New(8, nil)
	hasher.Write(buf)
	return binary.LittleEndian.Uint64(hasher.Sum(nil))
}

func (w *World) appendCanonical(buf []byte) []byte {
	le := binary.LittleEndian
	buf = le.AppendUint32(buf, uint32(w.frame))
	buf = append(buf, byte(w.round.Phase))
	buf = le.AppendUint32(buf, uint32(w.round.Remaining))
	buf = le.AppendUint32(buf, w.roundNumber)

	buf = le.AppendUint32(buf, uint32(len(w.players)))
	for _, p := range w.players {
		buf = le.AppendUint32(buf, uint32(p.ID))
		buf = appendVec(buf, p.Pos)
		buf = appendVec(buf, p.Facing)
		if p.BulletReady {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = le.AppendUint32(buf, uint32(len(w.bullets)))
	for _, b := range w.bullets {
		buf = le.AppendUint32(buf, uint32(b.Owner))
		buf = appendVec(buf, b.Pos)
		buf = appendVec(buf, b.Facing)
	}

	buf = le.AppendUint32(buf, uint32(len(w.stats.Scores)))
	for _, score := range w.stats.Scores {
		buf = le.AppendUint32(buf, uint32(score))
	}
	return buf
}

func appendVec(buf []byte, v Vec2) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.X))
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.Y))
}
