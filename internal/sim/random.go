package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// SeedValue derives an independent RNG seed for one labelled use of the
// session seed, e.g. the spawn points of a given round.
func SeedValue(seed uint64, label string, round uint32) int64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint32(buf[8:], round)
	hasher := fnv.New64a()
	hasher.Write(buf[:8])
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	hasher.Write([]byte{0})
	hasher.Write(buf[8:])
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a generator every peer reproduces from the
// same seed, label and round.
func NewDeterministicRNG(seed uint64, label string, round uint32) *rand.Rand {
	return rand.New(rand.NewSource(SeedValue(seed, label, round)))
}

func randomBetween(rng *rand.Rand, min, max float32) float32 {
	if max <= min {
		return min
	}
	return min + float32(float32(rng.Float64())*(max-min))
}

// spawnPoints places each player inside its own vertical band of the arena
// so two tanks never start on top of each other.
func spawnPoints(cfg Config, seed uint64, round uint32) []Vec2 {
	rng := NewDeterministicRNG(seed, "spawn", round)
	limit := cfg.Limit()
	band := float32(2*limit.X) / float32(cfg.NumPlayers)
	points := make([]Vec2, cfg.NumPlayers)
	for i := range points {
		left := -limit.X + float32(band*float32(i))
		points[i] = Vec2{
			X: randomBetween(rng, left+cfg.SpawnMargin, left+band-cfg.SpawnMargin),
			Y: randomBetween(rng, -limit.Y+cfg.SpawnMargin, limit.Y-cfg.SpawnMargin),
		}
	}
	return points
}
