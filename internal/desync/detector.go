// Package desync compares state fingerprints between peers. A mismatch is
// reported once; nothing tries to repair it.
package desync

import "sort"

const (
	// DefaultInterval is the tick spacing between checksum exchanges.
	DefaultInterval = 10
	// HistorySize bounds how many ticks of checksums are kept per side.
	HistorySize = 64
)

// Mismatch reports that two peers disagree on the state at Frame.
type Mismatch struct {
	Frame  int32
	Peer   uint64
	Local  uint64
	Remote uint64
}

type remoteKey struct {
	frame int32
	peer  uint64
}

// Detector pairs local and remote checksums by frame. It is not safe for
// concurrent use; the session owning it runs on the simulation goroutine.
type Detector struct {
	interval int
	local    map[int32]uint64
	remote   map[remoteKey]uint64
	reported map[remoteKey]struct{}
	checked  uint64
}

// New returns a detector comparing every interval ticks. An interval of zero
// disables checking.
func New(interval int) *Detector {
	if interval < 0 {
		interval = 0
	}
	return &Detector{
		interval: interval,
		local:    make(map[int32]uint64),
		remote:   make(map[remoteKey]uint64),
		reported: make(map[remoteKey]struct{}),
	}
}

func (d *Detector) Interval() int { return d.interval }

// ShouldCheck reports whether frame falls on the checksum interval.
func (d *Detector) ShouldCheck(frame int32) bool {
	if d == nil || d.interval <= 0 || frame < 0 {
		return false
	}
	return int(frame)%d.interval == 0
}

// Compared returns how many local/remote pairs have been compared.
func (d *Detector) Compared() uint64 { return d.checked }

// RecordLocal stores the local checksum for frame and compares it with every
// remote checksum that arrived first.
func (d *Detector) RecordLocal(frame int32, sum uint64) []Mismatch {
	if !d.ShouldCheck(frame) {
		return nil
	}
	d.local[frame] = sum
	var mismatches []Mismatch
	for key, remote := range d.remote {
		if key.frame != frame {
			continue
		}
		if m := d.compare(key, sum, remote); m != nil {
			mismatches = append(mismatches, *m)
		}
		delete(d.remote, key)
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Peer < mismatches[j].Peer })
	d.prune()
	return mismatches
}

// RecordRemote stores peer's checksum for frame, comparing it right away when
// the local value is known.
func (d *Detector) RecordRemote(peer uint64, frame int32, sum uint64) *Mismatch {
	if !d.ShouldCheck(frame) {
		return nil
	}
	key := remoteKey{frame: frame, peer: peer}
	if local, ok := d.local[frame]; ok {
		return d.compare(key, local, sum)
	}
	d.remote[key] = sum
	d.prune()
	return nil
}

func (d *Detector) compare(key remoteKey, local, remote uint64) *Mismatch {
	d.checked++
	if local == remote {
		return nil
	}
	if _, done := d.reported[key]; done {
		return nil
	}
	d.reported[key] = struct{}{}
	return &Mismatch{Frame: key.frame, Peer: key.peer, Local: local, Remote: remote}
}

// prune keeps only the newest HistorySize checked frames of each side.
func (d *Detector) prune() {
	if len(d.local) > HistorySize {
		frames := make([]int32, 0, len(d.local))
		for frame := range d.local {
			frames = append(frames, frame)
		}
		sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })
		for _, frame := range frames[:len(frames)-HistorySize] {
			delete(d.local, frame)
		}
	}
	if len(d.remote) > HistorySize {
		keys := make([]remoteKey, 0, len(d.remote))
		for key := range d.remote {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].frame != keys[j].frame {
				return keys[i].frame < keys[j].frame
			}
			return keys[i].peer < keys[j].peer
		})
		for _, key := range keys[:len(keys)-HistorySize] {
			delete(d.remote, key)
		}
	}
	if len(d.reported) > HistorySize {
		var oldest int32
		first := true
		for frame := range d.local {
			if first || frame < oldest {
				oldest = frame
				first = false
			}
		}
		for key := range d.reported {
			if first || key.frame < oldest {
				delete(d.reported, key)
			}
		}
	}
}
