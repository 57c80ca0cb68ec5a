// Package logic contains the pure decision core for cold-chain monitoring.
// This package has NO external dependencies (no GPIO, MQTT, OS, or
// time.Sleep). Every input carries its own timestamp; nothing in here reads
// the real clock.
package logic

import (
	"errors"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
)

// Channel identifies one of the two independent temperature channels.
type Channel string

const (
	ChannelAmbient Channel = "AMBIENT"
	ChannelStorage Channel = "STORAGE"
)

// DoorPosition represents the logical door state.
type DoorPosition string

const (
	DoorClosed DoorPosition = "CLOSED"
	DoorOpen   DoorPosition = "OPEN"
)

// PowerStatus represents mains power availability.
type PowerStatus string

const (
	PowerPresent PowerStatus = "PRESENT"
	PowerAbsent  PowerStatus = "ABSENT"
)

// ExcursionStatus classifies the latest sample against the configured bounds.
type ExcursionStatus string

const (
	ExcursionNone  ExcursionStatus = "NORMAL"
	ExcursionBelow ExcursionStatus = "BELOW_RANGE"
	ExcursionAbove ExcursionStatus = "ABOVE_RANGE"
)

// Sentinel errors. Nothing in this package halts the process; callers log
// and keep running.
var (
	// ErrInvalidSample marks a sensor fault value (NaN, ±Inf, or outside
	// the sensor's physical domain). The sample is rejected and statistics
	// are left untouched.
	ErrInvalidSample = errors.New("logic: invalid temperature sample")

	// ErrOutOfOrder marks an input whose timestamp precedes the previous
	// input on the same channel. The shim guarantees per-channel ordering;
	// this is a contract violation, not a runtime condition.
	ErrOutOfOrder = errors.New("logic: input timestamp out of order")

	// ErrWrongChannel marks a sample routed to an aggregator for a
	// different channel.
	ErrWrongChannel = errors.New("logic: sample for wrong channel")
)

// TemperatureSample is one reading from a single sensor channel.
type TemperatureSample struct {
	Channel Channel
	Value   float64 // °C
	At      clock.Timestamp
}

// DoorEdge is a debounced door transition observed by the hardware shim.
type DoorEdge struct {
	Position DoorPosition
	At       clock.Timestamp
}

// PowerEdge is a debounced power transition observed by the hardware shim.
type PowerEdge struct {
	Status PowerStatus
	At     clock.Timestamp
}

// EventType discriminates the outbound event union.
type EventType string

const (
	EventExcursionStarted EventType = "TEMPERATURE_EXCURSION_STARTED"
	EventExcursionEnded   EventType = "TEMPERATURE_EXCURSION_ENDED"
	EventDoorOpened       EventType = "DOOR_OPENED"
	EventDoorClosed       EventType = "DOOR_CLOSED"
	EventPowerLost        EventType = "POWER_LOST"
	EventPowerRestored    EventType = "POWER_RESTORED"
)

// Event is an immutable state-change record. Exactly one of the snapshot
// fields is populated, matching Type. Duration carries the length of the
// interval the event closes: the excursion for ExcursionEnded, the open
// interval for DoorClosed, the outage for PowerRestored, and the
// just-ended opposite interval for the remaining types.
type Event struct {
	Timestamp clock.Timestamp
	Type      EventType
	Duration  time.Duration

	Temperature *TemperatureState
	Door        *DoorSnapshot
	Power       *PowerSnapshot
}

// TemperatureState is a value snapshot of one channel's aggregator.
type TemperatureState struct {
	Channel        Channel
	Last           float64
	Min            float64
	Max            float64
	Average        float64
	SampleCount    int // samples currently in the trailing window
	Status         ExcursionStatus
	ExcursionStart clock.Timestamp // meaningful only while Status != ExcursionNone
	ExcursionCount int
}

// DoorSnapshot is a value snapshot of the door tracker.
type DoorSnapshot struct {
	Position       DoorPosition
	LastTransition clock.Timestamp
	OpenDuration   time.Duration // cumulative since last reset
	OpenCount      int
	Alarmed        bool // open longer than the configured threshold
}

// PowerSnapshot is a value snapshot of the power tracker.
type PowerSnapshot struct {
	Status         PowerStatus
	LastTransition clock.Timestamp
	OutageDuration time.Duration // cumulative since last reset
	OutageCount    int
	Alarmed        bool // absent longer than the configured threshold
}
