package logic

import (
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
)

// Door tracks the door state machine: current position, transition
// timestamps, and cumulative open time. Edges are assumed debounced by the
// shim; repeated identical edges are idempotent no-ops.
type Door struct {
	position       DoorPosition
	lastTransition clock.Timestamp // last actual transition, never rewound
	lastEdge       clock.Timestamp
	openAccum      time.Duration   // closed open intervals summed since last reset
	accumMark      clock.Timestamp // where the in-progress open interval's accounting starts
	openCount      int
	alarmThreshold time.Duration // 0 disables the open-too-long alarm
}

// NewDoor creates a door tracker in the given initial position.
func NewDoor(initial DoorPosition, at clock.Timestamp, alarmThreshold time.Duration) *Door {
	return &Door{
		position:       initial,
		lastTransition: at,
		lastEdge:       at,
		accumMark:      at,
		alarmThreshold: alarmThreshold,
	}
}

// Ingest applies one debounced edge. A transition emits DoorOpened or
// DoorClosed carrying the duration of the just-ended state; an edge equal
// to the current position emits nothing and counts nothing twice.
func (d *Door) Ingest(edge DoorEdge) (*Event, error) {
	if edge.At.Before(d.lastEdge) {
		return nil, ErrOutOfOrder
	}
	d.lastEdge = edge.At

	if edge.Position == d.position {
		return nil, nil
	}

	ended := edge.At.Sub(d.lastTransition)
	var evType EventType
	switch edge.Position {
	case DoorOpen:
		d.openCount++
		evType = EventDoorOpened
	case DoorClosed:
		d.openAccum += edge.At.Sub(d.accumMark)
		evType = EventDoorClosed
	}
	d.position = edge.Position
	d.lastTransition = edge.At
	d.accumMark = edge.At

	snap := d.Snapshot(edge.At)
	return &Event{
		Timestamp: edge.At,
		Type:      evType,
		Duration:  ended,
		Door:      &snap,
	}, nil
}

// OpenDuration returns the cumulative open time as of now, including the
// in-progress open interval. No periodic polling is needed to keep it true.
func (d *Door) OpenDuration(now clock.Timestamp) time.Duration {
	total := d.openAccum
	if d.position == DoorOpen && now.After(d.accumMark) {
		total += now.Sub(d.accumMark)
	}
	return total
}

// Alarmed reports whether the door has been open longer than the threshold.
func (d *Door) Alarmed(now clock.Timestamp) bool {
	if d.alarmThreshold <= 0 || d.position != DoorOpen {
		return false
	}
	return now.Sub(d.lastTransition) >= d.alarmThreshold
}

// Position returns the current door position.
func (d *Door) Position() DoorPosition {
	return d.position
}

// Snapshot returns a value snapshot as of now.
func (d *Door) Snapshot(now clock.Timestamp) DoorSnapshot {
	return DoorSnapshot{
		Position:       d.position,
		LastTransition: d.lastTransition,
		OpenDuration:   d.OpenDuration(now),
		OpenCount:      d.openCount,
		Alarmed:        d.Alarmed(now),
	}
}

// ResetCounters returns the snapshot as of now and zeroes the cumulative
// open duration and count for the next reporting period. An in-progress
// open interval has its accounting restarted at now, so no open time is
// lost or double-counted across periods; the alarm still measures from the
// real transition.
func (d *Door) ResetCounters(now clock.Timestamp) DoorSnapshot {
	snap := d.Snapshot(now)
	d.openAccum = 0
	d.openCount = 0
	if d.position == DoorOpen && now.After(d.accumMark) {
		d.accumMark = now
	}
	return snap
}
