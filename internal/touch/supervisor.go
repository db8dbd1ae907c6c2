package touch

import (
	"log/slog"
	"time"
)

// Supervisor keeps the touch source alive. It runs unconditionally,
// independent of the connection lifecycle, because sensor faults can
// occur at any time. It owns the readiness flag; the classifier reads it
// through Ready.
//
// The retry interval gates reinitialization attempts only. Fault
// detection (a failed probe while ready) flips readiness immediately.
type Supervisor struct {
	src   Source
	retry time.Duration

	ready       bool
	lastAttempt time.Time
}

// NewSupervisor creates a supervisor for src with the given reinit gate.
func NewSupervisor(src Source, retry time.Duration) *Supervisor {
	return &Supervisor{src: src, retry: retry}
}

// Ready reports whether the source is usable this tick.
func (s *Supervisor) Ready() bool { return s.ready }

// Tick runs one supervision step. Never blocks longer than the bus reset
// and controller init require.
func (s *Supervisor) Tick(now time.Time) {
	if !s.ready {
		if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.retry {
			return
		}
		s.lastAttempt = now

		if err := s.src.ResetBus(); err != nil {
			slog.Warn("touch bus reset failed", "error", err)
			return
		}
		if err := s.src.Init(); err != nil {
			slog.Warn("touch reinit failed, will retry", "error", err, "retry_in", s.retry)
			return
		}
		s.ready = true
		slog.Info("touch source ready")
		return
	}

	if err := s.src.Probe(); err != nil {
		// NACK: mark not-ready now, the reinit path takes over.
		s.ready = false
		slog.Warn("touch probe nack, source marked down", "error", err)
	}
}
