// Package gpio provides digital-input reading for the door switch and the
// mains-sense line, with hardware abstraction. The real implementation uses
// the Linux GPIO character device; the fake allows testing without hardware.
package gpio

// Reader reads the door and power input states.
type Reader interface {
	// Read returns the logical states of the door and mains-sense lines.
	// The raw GPIO values are inverted: raw active = door closed / power
	// present (the lines are pulled while the circuit is made).
	// Returns (doorOpen, powerPresent, error).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering).
const (
	DefaultPinDoor  = 17 // door reed switch
	DefaultPinPower = 27 // mains sense via optocoupler
)
