// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/logic"
	"github.com/sweeney/coldchain-sensor/internal/monitor"
)

// Topic is the MQTT topic for state-change events.
const Topic = "coldchain/sensor/events"

// TopicRecords is the MQTT topic for finalized period records.
const TopicRecords = "coldchain/sensor/records"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "coldchain/sensor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state-change event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishRecord sends a finalized period record to the broker.
	PublishRecord(rec monitor.PeriodRecord) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  clock.Timestamp
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message envelope for state-change events.
type Payload struct {
	Coldchain EventPayload `json:"coldchain"`
}

// EventPayload contains the event details. Exactly one of the snapshot
// sections is present, matching the event type.
type EventPayload struct {
	TimestampUS int64            `json:"timestamp_us"`
	Uptime      string           `json:"uptime"`
	Event       string           `json:"event"`
	Duration    string           `json:"duration,omitempty"`
	Temperature *TemperatureJSON `json:"temperature,omitempty"`
	Door        *DoorJSON        `json:"door,omitempty"`
	Power       *PowerJSON       `json:"power,omitempty"`
}

// TemperatureJSON is the temperature snapshot in event payloads.
type TemperatureJSON struct {
	Channel        string  `json:"channel"`
	Value          float64 `json:"value"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Average        float64 `json:"average"`
	Status         string  `json:"status"`
	ExcursionCount int     `json:"excursion_count"`
}

// DoorJSON is the door snapshot in event payloads.
type DoorJSON struct {
	Position  string `json:"position"`
	OpenTime  string `json:"open_time"`
	OpenCount int    `json:"open_count"`
	Alarmed   bool   `json:"alarmed"`
}

// PowerJSON is the power snapshot in event payloads.
type PowerJSON struct {
	Status      string `json:"status"`
	OutageTime  string `json:"outage_time"`
	OutageCount int    `json:"outage_count"`
	Alarmed     bool   `json:"alarmed"`
}

// FormatPayload creates the JSON payload for a state-change event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := Payload{
		Coldchain: EventPayload{
			TimestampUS: event.Timestamp.Micros(),
			Uptime:      event.Timestamp.String(),
			Event:       string(event.Type),
		},
	}
	if event.Duration > 0 {
		p.Coldchain.Duration = clock.FormatDuration(event.Duration)
	}
	if t := event.Temperature; t != nil {
		p.Coldchain.Temperature = &TemperatureJSON{
			Channel:        string(t.Channel),
			Value:          t.Last,
			Min:            t.Min,
			Max:            t.Max,
			Average:        t.Average,
			Status:         string(t.Status),
			ExcursionCount: t.ExcursionCount,
		}
	}
	if d := event.Door; d != nil {
		p.Coldchain.Door = &DoorJSON{
			Position:  string(d.Position),
			OpenTime:  clock.FormatDuration(d.OpenDuration),
			OpenCount: d.OpenCount,
			Alarmed:   d.Alarmed,
		}
	}
	if pw := event.Power; pw != nil {
		p.Coldchain.Power = &PowerJSON{
			Status:      string(pw.Status),
			OutageTime:  clock.FormatDuration(pw.OutageDuration),
			OutageCount: pw.OutageCount,
			Alarmed:     pw.Alarmed,
		}
	}
	return json.Marshal(p)
}

// RecordPayload is the MQTT message envelope for period records.
type RecordPayload struct {
	Record RecordInner `json:"record"`
}

// RecordInner contains the finalized period data.
type RecordInner struct {
	TimestampUS int64           `json:"timestamp_us"`
	Uptime      string          `json:"uptime"`
	Ambient     *TempRecordJSON `json:"ambient,omitempty"`
	Storage     *TempRecordJSON `json:"storage,omitempty"`
	Door        DoorRecordJSON  `json:"door"`
	Power       PowerRecordJSON `json:"power"`
}

// TempRecordJSON is one channel's time-weighted record.
type TempRecordJSON struct {
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Samples  int     `json:"samples"`
	Covered  string  `json:"covered"`
	LowTime  string  `json:"low_time"`
	HighTime string  `json:"high_time"`
}

// DoorRecordJSON is the door accumulation for the period.
type DoorRecordJSON struct {
	OpenCount int    `json:"open_count"`
	OpenTime  string `json:"open_time"`
}

// PowerRecordJSON is the power accumulation for the period.
type PowerRecordJSON struct {
	OutageCount int    `json:"outage_count"`
	OutageTime  string `json:"outage_time"`
}

// FormatRecordPayload creates the JSON payload for a period record.
// Channels with no good samples in the period are omitted.
func FormatRecordPayload(rec monitor.PeriodRecord) ([]byte, error) {
	p := RecordPayload{
		Record: RecordInner{
			TimestampUS: rec.At.Micros(),
			Uptime:      rec.At.String(),
			Door: DoorRecordJSON{
				OpenCount: rec.Door.OpenCount,
				OpenTime:  clock.FormatDuration(rec.Door.OpenDuration),
			},
			Power: PowerRecordJSON{
				OutageCount: rec.Power.OutageCount,
				OutageTime:  clock.FormatDuration(rec.Power.OutageDuration),
			},
		},
	}
	p.Record.Ambient = tempRecordJSON(rec.Ambient)
	p.Record.Storage = tempRecordJSON(rec.Storage)
	return json.Marshal(p)
}

func tempRecordJSON(r logic.TemperatureRecord) *TempRecordJSON {
	if r.Empty() {
		return nil
	}
	return &TempRecordJSON{
		Mean:     r.Mean(),
		Min:      r.Min,
		Max:      r.Max,
		Samples:  r.Samples,
		Covered:  clock.FormatDuration(r.Covered),
		LowTime:  clock.FormatDuration(r.LowTime),
		HighTime: clock.FormatDuration(r.HighTime),
	}
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	TimestampUS int64  `json:"timestamp_us"`
	Uptime      string `json:"uptime"`
	Event       string `json:"event"`
	Reason      string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			TimestampUS: event.Timestamp.Micros(),
			Uptime:      event.Timestamp.String(),
			Event:       event.Event,
			Reason:      event.Reason,
		},
	}
	return json.Marshal(payload)
}

// publishTimeout bounds every broker round trip.
const publishTimeout = 5 * time.Second
