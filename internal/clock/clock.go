// Package clock provides the monotonic timestamp service for the daemon.
// Timestamps never decrease, even across wall-clock corrections, so
// downstream duration math never goes negative.
// This package has NO external dependencies — it is part of the pure core.
package clock

import (
	"errors"
	"sync"
	"time"
)

// ErrClockRegression is returned by SetWallClock when the supplied wall-clock
// value would move time backward. The update is still applied, clamped so
// that Now() does not decrease.
var ErrClockRegression = errors.New("clock: wall-clock update would move time backward")

// Timestamp is an opaque instant with microsecond resolution.
// Before the clock enters Tracking mode, timestamps are relative to device
// start; afterwards they track wall-clock time. Either way they are
// comparable and subtractable within one process run.
type Timestamp struct {
	us int64
}

// FromMicros creates a Timestamp from microseconds.
func FromMicros(us int64) Timestamp {
	return Timestamp{us: us}
}

// FromTime creates a Timestamp from a wall-clock time.
func FromTime(t time.Time) Timestamp {
	return Timestamp{us: t.UnixMicro()}
}

// Micros returns the timestamp as microseconds.
func (t Timestamp) Micros() int64 {
	return t.us
}

// Sub returns the duration t - o.
func (t Timestamp) Sub(o Timestamp) time.Duration {
	return time.Duration(t.us-o.us) * time.Microsecond
}

// Add returns the timestamp shifted by d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{us: t.us + d.Microseconds()}
}

// Before reports whether t is earlier than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.us < o.us
}

// After reports whether t is later than o.
func (t Timestamp) After(o Timestamp) bool {
	return t.us > o.us
}

// String renders the timestamp as an ISO 8601 duration since the epoch.
func (t Timestamp) String() string {
	if t.us < 0 {
		return "-" + FormatDuration(time.Duration(-t.us)*time.Microsecond)
	}
	return FormatDuration(time.Duration(t.us) * time.Microsecond)
}

// TickSource supplies elapsed monotonic time since device start.
type TickSource interface {
	// Elapsed returns the time since the source was created.
	// It must never decrease.
	Elapsed() time.Duration
}

// systemTicks reads the Go runtime's monotonic clock.
type systemTicks struct {
	start time.Time
}

// NewSystemTicks creates a TickSource backed by the runtime monotonic clock.
func NewSystemTicks() TickSource {
	return &systemTicks{start: time.Now()}
}

func (s *systemTicks) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Clock reconciles a monotonic tick source with a settable wall clock.
//
// It is a two-state machine: Unset emits tick-relative timestamps anchored
// at zero; Tracking emits tick delta plus the wall-clock anchor. The
// transition happens on the first SetWallClock call and is never reversed.
// Safe for concurrent use; Now() is called from every monitor task.
type Clock struct {
	mu sync.Mutex

	ticks         TickSource
	tracking      bool
	anchor        int64         // wall-clock micros at anchorElapsed
	anchorElapsed time.Duration // tick reading when anchor was set
	last          int64         // last value returned by Now
}

// New creates a Clock in the Unset state.
func New(ticks TickSource) *Clock {
	return &Clock{ticks: ticks}
}

// Now returns the current timestamp. It never fails and never returns a
// value smaller than any previously returned value.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.ticks.Elapsed()
	var us int64
	if c.tracking {
		us = c.anchor + (elapsed - c.anchorElapsed).Microseconds()
	} else {
		us = elapsed.Microseconds()
	}
	if us < c.last {
		us = c.last
	}
	c.last = us
	return Timestamp{us: us}
}

// SetWallClock rebases the clock onto the given wall-clock reading and
// moves it to the Tracking state. If the reading would imply time moving
// backward relative to the last returned timestamp, the anchor is clamped
// to the last timestamp and ErrClockRegression is returned; the caller may
// log and ignore it.
func (c *Clock) SetWallClock(wall time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	us := wall.UnixMicro()
	c.anchorElapsed = c.ticks.Elapsed()
	c.tracking = true
	if us < c.last {
		c.anchor = c.last
		return ErrClockRegression
	}
	c.anchor = us
	return nil
}

// Tracking reports whether the clock has received a wall-clock reading.
func (c *Clock) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}
