package gpio

import (
	"time"

	"github.com/sweeney/coldchain-sensor/internal/clock"
)

// Debouncer turns raw polled levels into clean edges: a level change is
// reported only after it has held for the dwell time. The first stable
// level establishes a baseline and is reported as an edge too, so the
// consumer can sync its initial state.
type Debouncer struct {
	dwell time.Duration

	stable       bool
	baselined    bool
	hasPending   bool
	pending      bool
	pendingSince clock.Timestamp
}

// NewDebouncer creates a debouncer with the given dwell time.
func NewDebouncer(dwell time.Duration) *Debouncer {
	return &Debouncer{dwell: dwell}
}

// Sample feeds one raw level read at the given time. It returns the new
// stable level and true when the stable level changed (or was first
// established); otherwise the second return is false.
func (d *Debouncer) Sample(level bool, at clock.Timestamp) (bool, bool) {
	if !d.baselined {
		if !d.hasPending || d.pending != level {
			// Start (or restart) observing.
			d.pending = level
			d.pendingSince = at
			d.hasPending = true
			return false, false
		}
		if at.Sub(d.pendingSince) >= d.dwell {
			d.stable = level
			d.baselined = true
			d.hasPending = false
			return d.stable, true
		}
		return false, false
	}

	if level == d.stable {
		// No change from stable level, clear any pending.
		d.hasPending = false
		return d.stable, false
	}

	if !d.hasPending || d.pending != level {
		d.pending = level
		d.pendingSince = at
		d.hasPending = true
		return d.stable, false
	}

	if at.Sub(d.pendingSince) >= d.dwell {
		d.stable = level
		d.hasPending = false
		return d.stable, true
	}

	return d.stable, false
}

// Baselined reports whether the initial stable level has been established.
func (d *Debouncer) Baselined() bool {
	return d.baselined
}

// Stable returns the current stable level. Meaningful once Baselined.
func (d *Debouncer) Stable() bool {
	return d.stable
}
