// Package prng provides the seeded pseudo-random stream that drives world
// generation. The stream is a pure function of its 32-bit state: the same
// seed driven by the same call sequence yields the same values on every
// platform.
package prng

// Stream is a mulberry32 generator. It is not safe for concurrent use; a
// session owns exactly one.
type Stream struct {
	state uint32
	draws uint64
}

// New creates a stream from a 32-bit seed.
func New(seed uint32) *Stream {
	return &Stream{state: seed}
}

// SeedFromInt64 folds a wide seed (for example a wall-clock timestamp in
// milliseconds) into the 32-bit state space.
func SeedFromInt64(v int64) uint32 {
	u := uint64(v)
	return uint32(u) ^ uint32(u>>32)
}

// Next returns a float in [0,1).
func (s *Stream) Next() float64 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	s.draws++
	return float64(t^(t>>14)) / 4294967296.0
}

// Int returns an integer in [min, max] inclusive. Swapped bounds are
// normalised rather than rejected.
func (s *Stream) Int(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + int(s.Next()*float64(max-min+1))
}

// Float returns a float in [min, max).
func (s *Stream) Float(min, max float64) float64 {
	return min + s.Next()*(max-min)
}

// Chance reports true with probability p.
func (s *Stream) Chance(p float64) bool {
	return s.Next() < p
}

// Draws returns how many values have been consumed.
func (s *Stream) Draws() uint64 {
	return s.draws
}

// Pick returns one element of items. An empty slice yields the zero value
// without consuming a draw.
func Pick[T any](s *Stream, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[s.Int(0, len(items)-1)]
}

// Shuffle returns a shuffled copy of items (Fisher-Yates, high to low).
func Shuffle[T any](s *Stream, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := s.Int(0, i)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
