//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads inputs from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip     *gpiocdev.Chip
	doorPin  *gpiocdev.Line
	powerPin *gpiocdev.Line
}

// NewRealReader creates a GPIO reader for the device's input lines.
func NewRealReader(pinDoor, pinPower int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Request lines as input with pull-down to match boot defaults, so the
	// external sense circuits see a consistent load across restarts.
	doorLine, err := chip.RequestLine(pinDoor, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request door pin %d: %w", pinDoor, err)
	}

	powerLine, err := chip.RequestLine(pinPower, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		doorLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request power pin %d: %w", pinPower, err)
	}

	return &RealReader{
		chip:     chip,
		doorPin:  doorLine,
		powerPin: powerLine,
	}, nil
}

// Read returns the logical door and power states.
// Inverts raw values: raw active (1) = door closed / power present.
func (r *RealReader) Read() (bool, bool, error) {
	doorRaw, err := r.doorPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read door pin: %w", err)
	}

	powerRaw, err := r.powerPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read power pin: %w", err)
	}

	doorOpen := doorRaw == 0
	powerPresent := powerRaw != 0

	return doorOpen, powerPresent, nil
}

// Close releases GPIO resources. Pins are reconfigured to input with
// pull-down (boot defaults) before closing so a restart sees a clean state.
func (r *RealReader) Close() error {
	var errs []error

	if r.doorPin != nil {
		if err := r.doorPin.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure door pin: %w", err))
		}
		if err := r.doorPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close door pin: %w", err))
		}
	}
	if r.powerPin != nil {
		if err := r.powerPin.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure power pin: %w", err))
		}
		if err := r.powerPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close power pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
