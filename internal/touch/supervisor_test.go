package touch_test

import (
	"errors"
	"testing"
	"time"

	"github.com/visiona/lumen/internal/touch"
)

const retry = 3 * time.Second

// TestSupervisorBringsSourceUp validates the happy path: the first tick
// resets the bus, initializes the controller and marks it ready.
func TestSupervisorBringsSourceUp(t *testing.T) {
	src := &fakeSource{}
	s := touch.NewSupervisor(src, retry)

	s.Tick(time.Now())

	if !s.Ready() {
		t.Fatal("source not ready after successful init")
	}
	if src.resets != 1 || src.inits != 1 {
		t.Errorf("resets=%d inits=%d, want 1/1", src.resets, src.inits)
	}
}

// TestReinitGatedByRetryInterval validates that failed initialization is
// re-attempted only once per retry window.
func TestReinitGatedByRetryInterval(t *testing.T) {
	src := &fakeSource{initErr: errors.New("nack")}
	s := touch.NewSupervisor(src, retry)

	t0 := time.Now()
	s.Tick(t0)
	s.Tick(t0.Add(time.Second))
	s.Tick(t0.Add(2 * time.Second))
	if src.inits != 1 {
		t.Errorf("inits=%d inside retry window, want 1", src.inits)
	}

	s.Tick(t0.Add(retry))
	if src.inits != 2 {
		t.Errorf("inits=%d after retry window, want 2", src.inits)
	}
	if s.Ready() {
		t.Error("ready despite failed init")
	}
}

// TestProbeFaultFlipsImmediately validates fault detection: once ready, a
// single failed probe marks the source down on that same tick, with no
// retry-interval involvement. The retry timer gates only the subsequent
// reinitialization.
func TestProbeFaultFlipsImmediately(t *testing.T) {
	src := &fakeSource{}
	s := touch.NewSupervisor(src, retry)

	t0 := time.Now()
	s.Tick(t0)
	if !s.Ready() {
		t.Fatal("setup: source should be ready")
	}

	// Fault strikes well before the retry interval would elapse.
	src.probeErr = errors.New("nack")
	s.Tick(t0.Add(100 * time.Millisecond))
	if s.Ready() {
		t.Fatal("probe fault did not flip readiness immediately")
	}

	// The next reinit attempt honours the gate relative to the last
	// attempt, which by now is eligible again.
	src.probeErr = nil
	s.Tick(t0.Add(retry + 200*time.Millisecond))
	if !s.Ready() {
		t.Error("source not recovered after reinit")
	}
	if src.inits != 2 {
		t.Errorf("inits=%d, want 2", src.inits)
	}
}

// TestBusResetFailureLeavesNotReady validates that a failed bus reset
// aborts the attempt without initializing the controller.
func TestBusResetFailureLeavesNotReady(t *testing.T) {
	src := &fakeSource{resetErr: errors.New("bus wedged")}
	s := touch.NewSupervisor(src, retry)

	s.Tick(time.Now())

	if s.Ready() {
		t.Error("ready despite bus reset failure")
	}
	if src.inits != 0 {
		t.Errorf("init attempted on a wedged bus, inits=%d", src.inits)
	}
}

// TestProbeNotCalledWhileDown validates that the liveness probe only runs
// against a source believed to be up.
func TestProbeNotCalledWhileDown(t *testing.T) {
	src := &fakeSource{initErr: errors.New("nack")}
	s := touch.NewSupervisor(src, retry)

	t0 := time.Now()
	s.Tick(t0)
	s.Tick(t0.Add(time.Second))
	if src.probes != 0 {
		t.Errorf("probes=%d while source down, want 0", src.probes)
	}
}
