package logic

import (
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
)

// Power tracks mains availability: current status, outage count, and
// cumulative outage duration. Same edge-triggering and idempotence
// discipline as Door, applied to {Present, Absent}.
type Power struct {
	status         PowerStatus
	lastTransition clock.Timestamp // last actual transition, never rewound
	lastEdge       clock.Timestamp
	outageAccum    time.Duration   // closed outage intervals summed since last reset
	accumMark      clock.Timestamp // where the in-progress outage's accounting starts
	outageCount    int
	alarmThreshold time.Duration // 0 disables the prolonged-outage alarm
}

// NewPower creates a power tracker in the given initial status.
func NewPower(initial PowerStatus, at clock.Timestamp, alarmThreshold time.Duration) *Power {
	return &Power{
		status:         initial,
		lastTransition: at,
		lastEdge:       at,
		accumMark:      at,
		alarmThreshold: alarmThreshold,
	}
}

// Ingest applies one debounced edge. Present→Absent increments the outage
// count and emits PowerLost; Absent→Present emits PowerRestored carrying
// the outage duration. Repeated identical edges are no-ops.
func (p *Power) Ingest(edge PowerEdge) (*Event, error) {
	if edge.At.Before(p.lastEdge) {
		return nil, ErrOutOfOrder
	}
	p.lastEdge = edge.At

	if edge.Status == p.status {
		return nil, nil
	}

	ended := edge.At.Sub(p.lastTransition)
	var evType EventType
	switch edge.Status {
	case PowerAbsent:
		p.outageCount++
		evType = EventPowerLost
	case PowerPresent:
		p.outageAccum += edge.At.Sub(p.accumMark)
		evType = EventPowerRestored
	}
	p.status = edge.Status
	p.lastTransition = edge.At
	p.accumMark = edge.At

	snap := p.Snapshot(edge.At)
	return &Event{
		Timestamp: edge.At,
		Type:      evType,
		Duration:  ended,
		Power:     &snap,
	}, nil
}

// OutageDuration returns the cumulative outage time as of now, including
// the in-progress outage.
func (p *Power) OutageDuration(now clock.Timestamp) time.Duration {
	total := p.outageAccum
	if p.status == PowerAbsent && now.After(p.accumMark) {
		total += now.Sub(p.accumMark)
	}
	return total
}

// Alarmed reports whether power has been absent longer than the threshold.
func (p *Power) Alarmed(now clock.Timestamp) bool {
	if p.alarmThreshold <= 0 || p.status != PowerAbsent {
		return false
	}
	return now.Sub(p.lastTransition) >= p.alarmThreshold
}

// Status returns the current power status.
func (p *Power) Status() PowerStatus {
	return p.status
}

// Snapshot returns a value snapshot as of now.
func (p *Power) Snapshot(now clock.Timestamp) PowerSnapshot {
	return PowerSnapshot{
		Status:         p.status,
		LastTransition: p.lastTransition,
		OutageDuration: p.OutageDuration(now),
		OutageCount:    p.outageCount,
		Alarmed:        p.Alarmed(now),
	}
}

// ResetCounters returns the snapshot as of now and zeroes the cumulative
// outage duration and count for the next reporting period.
func (p *Power) ResetCounters(now clock.Timestamp) PowerSnapshot {
	snap := p.Snapshot(now)
	p.outageAccum = 0
	p.outageCount = 0
	if p.status == PowerAbsent && now.After(p.accumMark) {
		p.accumMark = now
	}
	return snap
}
