package tracer

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// SeedSource hands out the three-word seed used by each dispatch.
type SeedSource interface {
	// Next returns a fresh seed.
	//
	// Returns:
	//   - [3]uint32: the seed words
	Next() [3]uint32
}

type pcgSeedSource struct {
	mu  *sync.Mutex
	rng *rand.Rand
}

var _ SeedSource = &pcgSeedSource{}

// NewRandomSeedSource returns a seed source seeded from the operating system's entropy pool.
//
// Returns:
//   - SeedSource: a non-reproducible seed source
func NewRandomSeedSource() SeedSource {
	var b [16]byte
	// Read never returns an error; it aborts the program if the entropy source fails.
	_, _ = crand.Read(b[:])
	return newPCGSeedSource(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]))
}

// NewFixedSeedSource returns a deterministic seed source. Two sources built from the same
// seed produce the same sequence, which makes traces reproducible.
//
// Parameters:
//   - seed: the initial state
//
// Returns:
//   - SeedSource: a reproducible seed source
func NewFixedSeedSource(seed uint64) SeedSource {
	return newPCGSeedSource(seed, seed^0x9e3779b97f4a7c15)
}

func newPCGSeedSource(s1, s2 uint64) *pcgSeedSource {
	return &pcgSeedSource{
		mu:  &sync.Mutex{},
		rng: rand.New(rand.NewPCG(s1, s2)),
	}
}

func (s *pcgSeedSource) Next() [3]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [3]uint32{s.rng.Uint32(), s.rng.Uint32(), s.rng.Uint32()}
}
