// Package status provides a thread-safe status tracker for the coldchain-sensor
// daemon. It is read by HTTP handlers and by the MQTT heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/monitor"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	RecordMs    int64
	Broker      string
	HTTPAddr    string
	SensorMode  string
	AmbientLow  float64
	AmbientHigh float64
	StorageLow  float64
	StorageHigh float64
	WindowSize  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         monitor.Snapshot
	ClockTracking bool
	WallAnchor    time.Time // zero until the clock has been synchronized
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the core state snapshot. Called from the event drain loop
// and on every heartbeat.
func (t *Tracker) Update(state monitor.Snapshot) {
	t.mu.Lock()
	t.snap.State = state
	t.mu.Unlock()
}

// SetClock records the timestamp service state after a wall-clock sync attempt.
func (t *Tracker) SetClock(tracking bool, anchor time.Time) {
	t.mu.Lock()
	t.snap.ClockTracking = tracking
	t.snap.WallAnchor = anchor
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status and offline-buffer depth.
func (t *Tracker) SetMQTT(connected bool, buffered int) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTBuffered = buffered
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Wall converts a device timestamp into wall-clock time. Once the clock is
// tracking, timestamps carry wall-clock microseconds directly. Returns the
// zero time when the clock has not been synchronized.
func (s Snapshot) Wall(ts clock.Timestamp) time.Time {
	if !s.ClockTracking {
		return time.Time{}
	}
	return time.UnixMicro(ts.Micros()).UTC()
}
