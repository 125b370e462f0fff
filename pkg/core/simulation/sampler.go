package simulation

import (
	"math/rand/v2"
)

// Sampler produces one draw from Normal(0, sigma).
type Sampler interface {
	Normal(sigma float64) float64
}

// Source hands out one Sampler per simulated path. A Sampler is used by a
// single goroutine only; paths never share one.
type Source interface {
	ForPath(path int) Sampler
}

// =============================================================================
// SEEDED SOURCE
// =============================================================================

// SeededSource derives an independent PCG stream per path from one seed, so
// results do not depend on how paths are spread over workers.
type SeededSource struct {
	Seed uint64
}

// NewSeededSource returns a SeededSource for seed.
func NewSeededSource(seed uint64) SeededSource {
	return SeededSource{Seed: seed}
}

// ForPath implements Source.
func (s SeededSource) ForPath(path int) Sampler {
	return &rngSampler{rng: rand.New(rand.NewPCG(s.Seed, uint64(path)))}
}

type rngSampler struct {
	rng *rand.Rand
}

// Normal always consumes one draw, even for sigma 0, so the stream layout is
// independent of the calibration.
func (s *rngSampler) Normal(sigma float64) float64 {
	return s.rng.NormFloat64() * sigma
}

// =============================================================================
// FIXED SEQUENCE SOURCE
// =============================================================================

// SequenceSource replays fixed standard-normal values (z-scores), scaled by
// sigma, cycling when exhausted. Every path starts from the beginning of the
// sequence unless PerPath supplies its own.
type SequenceSource struct {
	Values  []float64
	PerPath map[int][]float64
}

// ForPath implements Source.
func (s SequenceSource) ForPath(path int) Sampler {
	if vals, ok := s.PerPath[path]; ok {
		return &sequenceSampler{values: vals}
	}
	return &sequenceSampler{values: s.Values}
}

type sequenceSampler struct {
	values []float64
	next   int
}

func (s *sequenceSampler) Normal(sigma float64) float64 {
	if len(s.values) == 0 {
		return 0
	}
	z := s.values[s.next%len(s.values)]
	s.next++
	return z * sigma
}
