// Package sensor provides the ambient/storage temperature source with
// hardware abstraction. The host implementation reads the platform's
// temperature sensors; the simulator and fake allow running and testing
// without the probe hardware.
package sensor

// Reader reads both temperature channels.
type Reader interface {
	// Read returns the ambient and storage temperatures in °C.
	Read() (ambient, storage float64, err error)

	// Close releases sensor resources.
	Close() error
}
