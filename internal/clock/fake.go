package clock

import "time"

// FakeTicks is a TickSource that only moves when told to.
type FakeTicks struct {
	elapsed time.Duration
}

// NewFakeTicks creates a FakeTicks at zero elapsed time.
func NewFakeTicks() *FakeTicks {
	return &FakeTicks{}
}

// Advance moves the tick counter forward by d.
func (f *FakeTicks) Advance(d time.Duration) {
	f.elapsed += d
}

// Elapsed returns the scripted elapsed time.
func (f *FakeTicks) Elapsed() time.Duration {
	return f.elapsed
}
