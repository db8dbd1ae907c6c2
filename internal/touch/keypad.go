package touch

import "time"

// Keypad samples raw contacts for the address-entry keypad. Unlike the
// gesture classifier this path is debounce-gated: consecutive samples
// inside the debounce window are suppressed, because key presses arrive
// at a much slower cadence than gesture edges.
type Keypad struct {
	src      Source
	ready    func() bool
	debounce time.Duration

	last time.Time
}

// NewKeypad creates a debounced sampler over src.
func NewKeypad(src Source, ready func() bool, debounce time.Duration) *Keypad {
	return &Keypad{src: src, ready: ready, debounce: debounce}
}

// Sample returns the current contact coordinate, or ok=false when there
// is no contact, the source is down, or the debounce window is open.
func (k *Keypad) Sample(now time.Time) (x, y int, ok bool) {
	if !k.ready() || !k.src.Pending() {
		return 0, 0, false
	}
	if !k.last.IsZero() && now.Sub(k.last) < k.debounce {
		return 0, 0, false
	}
	x, y, err := k.src.ReadPoint()
	if err != nil {
		return 0, 0, false
	}
	k.last = now
	return x, y, true
}
