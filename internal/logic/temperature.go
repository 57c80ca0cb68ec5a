package logic

import (
	"math"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
)

// Sensor physical domain. Values outside this range are fault codes from
// the sensor front end, not temperatures.
const (
	MinValidTemp = -60.0
	MaxValidTemp = 125.0
)

// TemperatureConfig holds one channel's bounds and window size.
type TemperatureConfig struct {
	Low    float64 // °C, inclusive lower bound of the normal band
	High   float64 // °C, inclusive upper bound of the normal band
	Window int     // trailing window capacity in samples
}

// TemperatureAggregator tracks rolling statistics and excursion state for
// one sensor channel. The two channels are fully independent instances.
// Samples must arrive in non-decreasing timestamp order.
type TemperatureAggregator struct {
	channel Channel
	cfg     TemperatureConfig

	// trailing window, FIFO ring
	window []float64
	head   int // next write position
	count  int

	last   float64
	lastAt clock.Timestamp
	seeded bool

	status         ExcursionStatus
	excursionStart clock.Timestamp
	excursionCount int

	record TemperatureRecord
}

// NewTemperatureAggregator creates an aggregator for the given channel.
// A Window of zero or less falls back to a single-sample window.
func NewTemperatureAggregator(channel Channel, cfg TemperatureConfig) *TemperatureAggregator {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &TemperatureAggregator{
		channel: channel,
		cfg:     cfg,
		window:  make([]float64, cfg.Window),
		status:  ExcursionNone,
		record:  newTemperatureRecord(),
	}
}

// Channel returns the channel this aggregator owns.
func (a *TemperatureAggregator) Channel() Channel {
	return a.channel
}

// Ingest folds one sample into the statistics and advances the excursion
// state machine. It returns an event on excursion start/end, nil otherwise.
// Invalid samples are rejected with ErrInvalidSample and leave all state
// untouched; out-of-order samples return ErrOutOfOrder.
func (a *TemperatureAggregator) Ingest(s TemperatureSample) (*Event, error) {
	if s.Channel != a.channel {
		return nil, ErrWrongChannel
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) || s.Value < MinValidTemp || s.Value > MaxValidTemp {
		return nil, ErrInvalidSample
	}
	if a.seeded && s.At.Before(a.lastAt) {
		return nil, ErrOutOfOrder
	}

	// Time-weighted record accumulation uses the interval since the
	// previous good sample, so it happens before the window push.
	if a.seeded {
		a.record.accumulate(a.last, s.Value, s.At.Sub(a.lastAt), a.cfg)
	}
	a.record.observe(s.Value)

	a.push(s.Value)
	a.last = s.Value
	a.lastAt = s.At
	a.seeded = true

	return a.advanceExcursion(s), nil
}

// push appends a value to the trailing window, evicting the oldest when full.
func (a *TemperatureAggregator) push(v float64) {
	a.window[a.head] = v
	a.head = (a.head + 1) % len(a.window)
	if a.count < len(a.window) {
		a.count++
	}
}

func (a *TemperatureAggregator) advanceExcursion(s TemperatureSample) *Event {
	next := ExcursionNone
	if s.Value < a.cfg.Low {
		next = ExcursionBelow
	} else if s.Value > a.cfg.High {
		next = ExcursionAbove
	}

	wasOut := a.status != ExcursionNone
	isOut := next != ExcursionNone

	// A below/above flip without passing through the normal band stays one
	// contiguous excursion: only the status field changes.
	a.status = next

	switch {
	case !wasOut && isOut:
		a.excursionStart = s.At
		a.excursionCount++
		return a.event(EventExcursionStarted, s.At, 0)
	case wasOut && !isOut:
		duration := s.At.Sub(a.excursionStart)
		ev := a.event(EventExcursionEnded, s.At, duration)
		a.excursionStart = clock.Timestamp{}
		return ev
	}
	return nil
}

func (a *TemperatureAggregator) event(t EventType, at clock.Timestamp, d time.Duration) *Event {
	state := a.State()
	return &Event{
		Timestamp:   at,
		Type:        t,
		Duration:    d,
		Temperature: &state,
	}
}

// State returns a value snapshot of the aggregator.
func (a *TemperatureAggregator) State() TemperatureState {
	min, max, avg := a.stats()
	return TemperatureState{
		Channel:        a.channel,
		Last:           a.last,
		Min:            min,
		Max:            max,
		Average:        avg,
		SampleCount:    a.count,
		Status:         a.status,
		ExcursionStart: a.excursionStart,
		ExcursionCount: a.excursionCount,
	}
}

// stats recomputes min/max/average over exactly the window contents.
// O(window) per call; windows are small.
func (a *TemperatureAggregator) stats() (min, max, avg float64) {
	if a.count == 0 {
		return 0, 0, 0
	}
	start := (a.head - a.count + len(a.window)) % len(a.window)
	min = a.window[start]
	max = a.window[start]
	sum := 0.0
	for i := 0; i < a.count; i++ {
		v := a.window[(start+i)%len(a.window)]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(a.count)
}

// Record returns the time-weighted record in progress.
func (a *TemperatureAggregator) Record() TemperatureRecord {
	return a.record
}

// FinalizeRecord returns the completed record and starts a fresh one.
func (a *TemperatureAggregator) FinalizeRecord() TemperatureRecord {
	r := a.record
	a.record = newTemperatureRecord()
	return r
}
