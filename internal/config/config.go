// Package config loads the daemon configuration from a YAML file.
// Environment variables in the file are expanded, so secrets like broker
// credentials can stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration for the daemon.
type Config struct {
	Broker   string `yaml:"broker"`
	HTTPAddr string `yaml:"http_addr"`

	Poll          Duration `yaml:"poll"`
	Heartbeat     Duration `yaml:"heartbeat"`
	RecordPeriod  Duration `yaml:"record_period"`
	WallClockSync Duration `yaml:"wall_clock_sync"`
	QueueSize     int      `yaml:"queue_size"`

	Temperature TemperatureConfig `yaml:"temperature"`
	Door        SwitchConfig      `yaml:"door"`
	Power       SwitchConfig      `yaml:"power"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// TemperatureConfig holds per-channel bounds and the shared window size.
type TemperatureConfig struct {
	Window  int          `yaml:"window"`
	Ambient BoundsConfig `yaml:"ambient"`
	Storage BoundsConfig `yaml:"storage"`
}

// BoundsConfig is one channel's normal band.
type BoundsConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// SwitchConfig covers a digital input domain (door or power).
type SwitchConfig struct {
	Pin            int      `yaml:"pin"`
	Debounce       Duration `yaml:"debounce"`
	AlarmThreshold Duration `yaml:"alarm_threshold"`
}

// SensorConfig selects the temperature source.
type SensorConfig struct {
	// Mode is "host" (hwmon sensors via gopsutil) or "sim".
	Mode       string `yaml:"mode"`
	AmbientKey string `yaml:"ambient_key"`
	StorageKey string `yaml:"storage_key"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Broker:        "tcp://localhost:1883",
		HTTPAddr:      ":8080",
		Poll:          Duration(1 * time.Second),
		Heartbeat:     Duration(15 * time.Minute),
		RecordPeriod:  Duration(15 * time.Minute),
		WallClockSync: Duration(1 * time.Hour),
		QueueSize:     8,
		Temperature: TemperatureConfig{
			Window:  60,
			Ambient: BoundsConfig{Low: -20, High: 43},
			Storage: BoundsConfig{Low: 2, High: 8},
		},
		Door: SwitchConfig{
			Pin:            17,
			Debounce:       Duration(250 * time.Millisecond),
			AlarmThreshold: Duration(5 * time.Minute),
		},
		Power: SwitchConfig{
			Pin:            27,
			Debounce:       Duration(250 * time.Millisecond),
			AlarmThreshold: Duration(24 * time.Hour),
		},
		Sensor: SensorConfig{
			Mode: "sim",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults. Environment variables in
// the file are expanded before parsing. A missing file is not an error;
// the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Temperature.Window < 1 {
		return fmt.Errorf("temperature.window must be at least 1, got %d", c.Temperature.Window)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	for name, b := range map[string]BoundsConfig{
		"temperature.ambient": c.Temperature.Ambient,
		"temperature.storage": c.Temperature.Storage,
	} {
		if b.Low >= b.High {
			return fmt.Errorf("%s: low %v must be below high %v", name, b.Low, b.High)
		}
	}
	switch c.Sensor.Mode {
	case "host", "sim":
	default:
		return fmt.Errorf("sensor.mode must be \"host\" or \"sim\", got %q", c.Sensor.Mode)
	}
	return nil
}
