package room

import (
	"math/rand"
	"strconv"
	"sync"
)

// SeedSource supplies world seeds a room's config leaves unset.
type SeedSource interface {
	Overworld() string
	Nether() string
	End() string
}

// RandomSeeds draws every seed from one seeded generator.
type RandomSeeds struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSeeds(seed int64) *RandomSeeds {
	return &RandomSeeds{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSeeds) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatInt(int64(s.rng.Uint64()), 10)
}

func (s *RandomSeeds) Overworld() string { return s.next() }
func (s *RandomSeeds) Nether() string    { return s.next() }
func (s *RandomSeeds) End() string       { return s.next() }

// FixedSeeds returns the same seeds every time. Used in tests and for
// tournament rooms that share a world.
type FixedSeeds struct {
	OverworldSeed, NetherSeed, EndSeed string
}

func (s FixedSeeds) Overworld() string { return s.OverworldSeed }
func (s FixedSeeds) Nether() string    { return s.NetherSeed }
func (s FixedSeeds) End() string       { return s.EndSeed }
