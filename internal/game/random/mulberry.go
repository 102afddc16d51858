package random

// Mulberry32 is the default seedable generator for draw engines. It is a
// 32-bit finite-state generator: two instances built from the same seed
// produce identical sequences on every platform.
//
// Invariant: Float64 values are uniformly distributed in [0, 1) with
// 32 bits of precision.
type Mulberry32 struct {
	seed  uint32
	state uint32
	pos   uint64
}

// NewMulberry32 returns a deterministic Source for the given seed. Only the
// low 32 bits of seed are significant.
//
// Postcondition: Position() == 0.
func NewMulberry32(seed int64) *Mulberry32 {
	s := uint32(uint64(seed))
	return &Mulberry32{seed: s, state: s}
}

// NewMulberry32At returns a generator seeded with seed and fast-forwarded
// past pos values, so its next output matches the (pos+1)-th output of a
// fresh generator with the same seed. Used to restore a snapshotted or
// cloned generator.
//
// Postcondition: Position() == pos.
func NewMulberry32At(seed int64, pos uint64) *Mulberry32 {
	m := NewMulberry32(seed)
	for i := uint64(0); i < pos; i++ {
		m.next()
	}
	return m
}

// next advances the state and returns the raw 32-bit output.
func (m *Mulberry32) next() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	m.pos++
	return t ^ (t >> 14)
}

// Float64 returns the next value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	return float64(m.next()) / (1 << 32)
}

// Seed returns the 32-bit seed the generator was built from.
func (m *Mulberry32) Seed() int64 {
	return int64(m.seed)
}

// Position returns the number of values emitted so far.
func (m *Mulberry32) Position() uint64 {
	return m.pos
}
