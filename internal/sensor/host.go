package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/host"
)

const hostReadTimeout = 10 * time.Second

// HostReader reads the platform's temperature sensors (hwmon on Linux)
// and maps two sensor keys to the ambient and storage channels.
type HostReader struct {
	ambientKey string
	storageKey string
}

// NewHostReader creates a reader for the given sensor keys.
func NewHostReader(ambientKey, storageKey string) (*HostReader, error) {
	if ambientKey == "" || storageKey == "" {
		return nil, fmt.Errorf("sensor keys not configured (ambient=%q storage=%q)", ambientKey, storageKey)
	}
	r := &HostReader{ambientKey: ambientKey, storageKey: storageKey}

	// Fail at construction, not mid-run, if the keys don't exist.
	if _, _, err := r.Read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Read returns the ambient and storage temperatures.
func (r *HostReader) Read() (float64, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hostReadTimeout)
	defer cancel()

	stats, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read host sensors: %w", err)
	}

	var ambient, storage float64
	var haveAmbient, haveStorage bool
	for _, s := range stats {
		switch s.SensorKey {
		case r.ambientKey:
			ambient = s.Temperature
			haveAmbient = true
		case r.storageKey:
			storage = s.Temperature
			haveStorage = true
		}
	}
	if !haveAmbient {
		return 0, 0, fmt.Errorf("sensor key %q not found", r.ambientKey)
	}
	if !haveStorage {
		return 0, 0, fmt.Errorf("sensor key %q not found", r.storageKey)
	}
	return ambient, storage, nil
}

// Close releases nothing; host sensors are stateless reads.
func (r *HostReader) Close() error {
	return nil
}
