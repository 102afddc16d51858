// Package random provides the randomness abstraction used by the draw
// engine: a minimal Source interface, a seedable deterministic generator,
// a system-entropy generator, and a logging decorator.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"go.uber.org/zap"
)

// Source is the randomness provider for weighted draws.
//
// Postcondition: Float64 returns a value in [0, 1).
//
// Implementations are not required to be safe for concurrent use; the
// draw engine is single-threaded by contract and callers that share a
// Source across engines must serialize access themselves.
type Source interface {
	// Float64 returns the next random value in [0, 1).
	Float64() float64
}

// systemSource implements Source with a PCG generator seeded from
// operating-system entropy at construction time.
type systemSource struct {
	rng *rand.Rand
}

// NewSystemSource returns a non-deterministic Source seeded from
// crypto/rand entropy.
//
// Panics with "random: system entropy unavailable: <err>" if the
// operating system cannot supply seed material.
func NewSystemSource() Source {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("random: system entropy unavailable: " + err.Error())
	}
	hi := binary.LittleEndian.Uint64(seed[0:8])
	lo := binary.LittleEndian.Uint64(seed[8:16])
	return &systemSource{rng: rand.New(rand.NewPCG(hi, lo))}
}

// Float64 returns the next value in [0, 1).
func (s *systemSource) Float64() float64 {
	return s.rng.Float64()
}

// LoggedSource wraps a Source and logs every sampled value at debug level.
type LoggedSource struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedSource creates a LoggedSource that samples from src and logs
// each value to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedSource(src Source, logger *zap.Logger) *LoggedSource {
	return &LoggedSource{src: src, logger: logger}
}

// Float64 samples the wrapped source and logs the value.
func (l *LoggedSource) Float64() float64 {
	v := l.src.Float64()
	l.logger.Debug("random sample", zap.Float64("value", v))
	return v
}
