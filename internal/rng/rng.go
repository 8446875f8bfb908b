// Package rng provides the seedable random streams used by the generator.
//
// Every component receives its own Source. Children are derived from the
// root seed and a label, never from the parent's consumed state, so adding a
// draw in one component cannot shift the values drawn by another. This is
// what keeps a dataset reproducible by seed while the inventory stage runs
// pairs on separate goroutines.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
)

// Source is a deterministic random stream.
//
// Thread-safety: a Source is NOT safe for concurrent use. Split a child per
// goroutine instead of sharing one.
type Source struct {
	seed uint64
	r    *rand.Rand
}

// New creates the root stream for a seed.
func New(seed int64) *Source {
	s := uint64(seed)
	return &Source{seed: s, r: rand.New(rand.NewPCG(s, streamKey(s, "root")))}
}

// Split derives an independent child stream identified by label and parts.
// The same (seed, label, parts) always yields the same stream.
func (s *Source) Split(label string, parts ...string) *Source {
	key := streamKey(s.seed, label, parts...)
	return &Source{seed: s.seed, r: rand.New(rand.NewPCG(s.seed^key, key))}
}

// IntRange returns a uniform integer in [lo, hi], both inclusive.
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo+1)
}

// Uniform returns a uniform float in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + s.r.Float64()*(hi-lo)
}

// Float64 returns a uniform float in [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.r.Float64() < p
}

// Pick returns a uniform index in [0, n).
func (s *Source) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return s.r.IntN(n)
}

func streamKey(seed uint64, label string, parts ...string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(seed >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte(label))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return h.Sum64()
}
