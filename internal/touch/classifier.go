package touch

import (
	"log/slog"
	"time"
)

// EventType is a classified gesture edge.
type EventType string

const (
	EventTouch   EventType = "touch"
	EventHold    EventType = "hold"
	EventTap     EventType = "tap"
	EventRelease EventType = "release"
)

// Event is one gesture edge. Tap and release carry x=0,y=0: coordinates
// are not retained across the lift edge.
type Event struct {
	Type EventType
	X    int
	Y    int
}

// State is the classifier's contact state.
type State int

const (
	Idle State = iota
	Touching
	Holding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Touching:
		return "touching"
	case Holding:
		return "holding"
	}
	return "unknown"
}

// Classifier turns raw contact samples into gesture events. It is driven
// by the main control loop, one Tick per iteration, and is edge/time
// driven: unlike the keypad path it applies no debounce window.
type Classifier struct {
	src   Source
	ready func() bool

	holdTime time.Duration
	tapMax   time.Duration

	state State
	start time.Time
	x, y  int

	emit func(Event)
}

// NewClassifier wires a classifier to its source. ready gates sampling
// (the supervisor's readiness flag); emit receives every gesture edge.
func NewClassifier(src Source, ready func() bool, holdTime, tapMax time.Duration, emit func(Event)) *Classifier {
	return &Classifier{
		src:      src,
		ready:    ready,
		holdTime: holdTime,
		tapMax:   tapMax,
		emit:     emit,
	}
}

// State returns the current contact state.
func (c *Classifier) State() State { return c.state }

// Tick advances the state machine. now must be monotonic.
func (c *Classifier) Tick(now time.Time) {
	if !c.ready() {
		// Sensor down; any in-progress contact is abandoned without a
		// release edge. Transient gesture loss during reinit windows is
		// accepted.
		c.state = Idle
		return
	}

	pending := c.src.Pending()

	switch c.state {
	case Idle:
		if !pending {
			return
		}
		x, y, err := c.src.ReadPoint()
		if err != nil {
			slog.Debug("touch sample failed", "error", err)
			return
		}
		c.x, c.y = x, y
		c.start = now
		c.state = Touching
		c.emit(Event{Type: EventTouch, X: x, Y: y})

	case Touching:
		if !pending {
			c.finish(now)
			return
		}
		if now.Sub(c.start) >= c.holdTime {
			c.state = Holding
			c.emit(Event{Type: EventHold, X: c.x, Y: c.y})
		}

	case Holding:
		if !pending {
			c.finish(now)
		}
	}
}

// finish classifies the lift edge: short contacts are taps, everything
// else is a release.
func (c *Classifier) finish(now time.Time) {
	duration := now.Sub(c.start)
	c.state = Idle
	if duration < c.tapMax {
		c.emit(Event{Type: EventTap})
	} else {
		c.emit(Event{Type: EventRelease})
	}
}
