package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	TimestampUS   int64           `json:"timestamp_us"`
	DeviceUptime  string          `json:"device_uptime"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Clock         ClockJSON       `json:"clock"`
	Ambient       TemperatureJSON `json:"ambient"`
	Storage       TemperatureJSON `json:"storage"`
	Door          DoorJSON        `json:"door"`
	Power         PowerJSON       `json:"power"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Config        ConfigJSON      `json:"config"`
}

// ClockJSON reports the timestamp service state.
type ClockJSON struct {
	Tracking   bool   `json:"tracking"`
	WallAnchor string `json:"wall_anchor,omitempty"`
}

// TemperatureJSON is the JSON representation of one channel's state.
type TemperatureJSON struct {
	Value          float64 `json:"value"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Average        float64 `json:"average"`
	Samples        int     `json:"samples"`
	Status         string  `json:"status"`
	ExcursionCount int     `json:"excursion_count"`
}

// DoorJSON is the JSON representation of door state.
type DoorJSON struct {
	Position  string `json:"position"`
	OpenTime  string `json:"open_time"`
	OpenCount int    `json:"open_count"`
	Alarmed   bool   `json:"alarmed"`
}

// PowerJSON is the JSON representation of power state.
type PowerJSON struct {
	Status      string `json:"status"`
	OutageTime  string `json:"outage_time"`
	OutageCount int    `json:"outage_count"`
	Alarmed     bool   `json:"alarmed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Buffered  int    `json:"buffered"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	RecordMs    int64   `json:"record_ms"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
	SensorMode  string  `json:"sensor_mode"`
	AmbientLow  float64 `json:"ambient_low"`
	AmbientHigh float64 `json:"ambient_high"`
	StorageLow  float64 `json:"storage_low"`
	StorageHigh float64 `json:"storage_high"`
	WindowSize  int     `json:"window_size"`
}

func temperatureJSON(s logic.TemperatureState) TemperatureJSON {
	status := string(s.Status)
	if status == "" {
		status = string(logic.ExcursionNone)
	}
	return TemperatureJSON{
		Value:          s.Last,
		Min:            s.Min,
		Max:            s.Max,
		Average:        s.Average,
		Samples:        s.SampleCount,
		Status:         status,
		ExcursionCount: s.ExcursionCount,
	}
}

func buildInner(snap Snapshot) StatusInner {
	doorPos := string(snap.State.Door.Position)
	if doorPos == "" {
		doorPos = "UNKNOWN"
	}
	powerStatus := string(snap.State.Power.Status)
	if powerStatus == "" {
		powerStatus = "UNKNOWN"
	}

	inner := StatusInner{
		TimestampUS:   snap.State.At.Micros(),
		DeviceUptime:  snap.State.At.String(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Clock:         ClockJSON{Tracking: snap.ClockTracking},
		Ambient:       temperatureJSON(snap.State.Ambient),
		Storage:       temperatureJSON(snap.State.Storage),
		Door: DoorJSON{
			Position:  doorPos,
			OpenTime:  clock.FormatDuration(snap.State.Door.OpenDuration),
			OpenCount: snap.State.Door.OpenCount,
			Alarmed:   snap.State.Door.Alarmed,
		},
		Power: PowerJSON{
			Status:      powerStatus,
			OutageTime:  clock.FormatDuration(snap.State.Power.OutageDuration),
			OutageCount: snap.State.Power.OutageCount,
			Alarmed:     snap.State.Power.Alarmed,
		},
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Buffered:  snap.MQTTBuffered,
			Broker:    snap.Config.Broker,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			RecordMs:    snap.Config.RecordMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			SensorMode:  snap.Config.SensorMode,
			AmbientLow:  snap.Config.AmbientLow,
			AmbientHigh: snap.Config.AmbientHigh,
			StorageLow:  snap.Config.StorageLow,
			StorageHigh: snap.Config.StorageHigh,
			WindowSize:  snap.Config.WindowSize,
		},
	}
	if !snap.WallAnchor.IsZero() {
		inner.Clock.WallAnchor = snap.WallAnchor.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
