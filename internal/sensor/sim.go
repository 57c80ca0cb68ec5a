package sensor

import (
	"math/rand"
	"sync"
)

// SimReader generates plausible temperatures with a bounded random walk.
// Useful for bench testing the full pipeline without probe hardware.
type SimReader struct {
	mu      sync.Mutex
	rng     *rand.Rand
	ambient float64
	storage float64
}

// NewSimReader creates a simulator starting at typical values.
func NewSimReader(seed int64) *SimReader {
	return &SimReader{
		rng:     rand.New(rand.NewSource(seed)),
		ambient: 22.0,
		storage: 5.0,
	}
}

// Read returns the next simulated readings. Each call takes a small random
// step, clamped to a plausible envelope per channel.
func (s *SimReader) Read() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ambient = clamp(s.ambient+s.step(0.4), 10, 40)
	s.storage = clamp(s.storage+s.step(0.15), 1, 12)
	return s.ambient, s.storage, nil
}

func (s *SimReader) step(scale float64) float64 {
	return (s.rng.Float64()*2 - 1) * scale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Close is a no-op for the simulator.
func (s *SimReader) Close() error {
	return nil
}
