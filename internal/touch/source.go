// Package touch contains the gesture classifier and the recovery
// supervisor for an intermittently failing touch controller.
package touch

// Source is the raw touch controller. The supervisor owns bringing a
// Source up and probing it; the classifier only samples it while the
// supervisor reports it ready.
type Source interface {
	// Init reinitializes the controller and configures its power and
	// monitor mode. Called by the supervisor, never by the classifier.
	Init() error
	// Probe is a lightweight liveness check against the controller's
	// bus address. A non-nil return is a NACK.
	Probe() error
	// ResetBus recovers the shared bus before a reinitialization
	// attempt. Bounded and short; the control loop calls it inline.
	ResetBus() error
	// Pending reports whether a contact is currently asserted.
	Pending() bool
	// ReadPoint samples the current contact coordinate.
	ReadPoint() (x, y int, err error)
}
