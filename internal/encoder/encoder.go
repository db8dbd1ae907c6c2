// Package encoder serializes gesture events into the session's message
// format and owns the running-state gate on the egress path.
package encoder

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/visiona/lumen/internal/touch"
)

// Message is the wire shape of one gesture edge.
type Message struct {
	Event string `json:"event"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// Encoder gates, encodes and transmits gesture events. Events arriving
// while the terminal is not in steady state are dropped, not queued.
type Encoder struct {
	running func() bool
	send    func([]byte) error
	maxSize int

	sent    uint64
	dropped uint64
	skipped uint64
}

// New creates an encoder. running is the lifecycle's steady-state gate;
// send transmits one text message over the active session.
func New(running func() bool, send func([]byte) error, maxSize int) *Encoder {
	return &Encoder{running: running, send: send, maxSize: maxSize}
}

// Encode builds the wire message for one event. Pure; no gating.
func Encode(ev touch.Event) ([]byte, error) {
	payload, err := json.Marshal(Message{Event: string(ev.Type), X: ev.X, Y: ev.Y})
	if err != nil {
		return nil, fmt.Errorf("encoder: marshal: %w", err)
	}
	return payload, nil
}

// Emit encodes and sends one event, subject to the running gate and the
// size bound. All failures are resolved here: logged, counted, dropped.
func (e *Encoder) Emit(ev touch.Event) {
	if !e.running() {
		e.dropped++
		return
	}

	payload, err := Encode(ev)
	if err != nil {
		e.skipped++
		slog.Error("event encode failed", "event", ev.Type, "error", err)
		return
	}
	if len(payload) > e.maxSize {
		e.skipped++
		slog.Warn("event message oversize, skipped", "size", len(payload), "max", e.maxSize)
		return
	}

	if err := e.send(payload); err != nil {
		e.skipped++
		slog.Warn("event send failed", "event", ev.Type, "error", err)
		return
	}
	e.sent++
	slog.Debug("event sent", "event", ev.Type, "x", ev.X, "y", ev.Y)
}

// Stats is a snapshot of encoder counters.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Skipped uint64 `json:"skipped"`
}

// Stats returns the counters. Called from the owning control loop only.
func (e *Encoder) Stats() Stats {
	return Stats{Sent: e.sent, Dropped: e.dropped, Skipped: e.skipped}
}
