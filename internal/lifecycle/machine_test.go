package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/visiona/lumen/internal/lifecycle"
	"github.com/visiona/lumen/internal/link"
	"github.com/visiona/lumen/internal/session"
)

// fakeLink is a scripted wireless driver.
type fakeLink struct {
	status   link.Status
	connects int
}

func (f *fakeLink) Connect(ssid, password string) error {
	f.connects++
	if f.status != link.StatusUp {
		f.status = link.StatusConnecting
	}
	return nil
}

func (f *fakeLink) Status() link.Status { return f.status }

// fakeSocket is a scripted session transport recording connect targets.
type fakeSocket struct {
	notices    chan session.Notice
	connectErr error
	connected  bool
	targets    []string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{notices: make(chan session.Notice, 4)}
}

func (f *fakeSocket) Connect(addr string) error {
	f.targets = append(f.targets, addr)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSocket) Connected() bool                 { return f.connected }
func (f *fakeSocket) SendText([]byte) error           { return nil }
func (f *fakeSocket) Notices() <-chan session.Notice  { return f.notices }
func (f *fakeSocket) Close() error                    { f.connected = false; return nil }

func testConfig() lifecycle.Config {
	return lifecycle.Config{
		SSID:            "workshop",
		Password:        "hunter2",
		DefaultPort:     "81",
		LinkLogInterval: 4 * time.Second,
		SessionRetry:    4 * time.Second,
	}
}

// TestFullAcquisitionWalk validates the forward path: address entry,
// link association, session connect, steady state.
func TestFullAcquisitionWalk(t *testing.T) {
	lnk := &fakeLink{}
	sock := newFakeSocket()
	addr := ""
	m := lifecycle.New(testConfig(), lnk, sock, func() (string, bool) {
		return addr, addr != ""
	})

	now := time.Now()
	m.Tick(now)
	if m.State() != lifecycle.AwaitingAddress {
		t.Fatalf("state = %v before address entry", m.State())
	}

	addr = "10.0.0.5"
	m.Tick(now)
	if m.State() != lifecycle.AcquiringLink {
		t.Fatalf("state = %v after address entry, want AcquiringLink", m.State())
	}

	// The connect request is issued once per entry, not per tick.
	for i := 0; i < 5; i++ {
		now = now.Add(100 * time.Millisecond)
		m.Tick(now)
	}
	if lnk.connects != 1 {
		t.Errorf("link connects = %d over several ticks, want 1", lnk.connects)
	}

	lnk.status = link.StatusUp
	now = now.Add(100 * time.Millisecond)
	m.Tick(now)
	if m.State() != lifecycle.AcquiringSession {
		t.Fatalf("state = %v after link up, want AcquiringSession", m.State())
	}

	// Entry tick fires the first attempt; default port is appended.
	now = now.Add(100 * time.Millisecond)
	m.Tick(now)
	if len(sock.targets) != 1 || sock.targets[0] != "10.0.0.5:81" {
		t.Fatalf("connect targets = %v, want [10.0.0.5:81]", sock.targets)
	}
	if m.State() != lifecycle.Running {
		t.Fatalf("state = %v after session connect, want Running", m.State())
	}
	if !m.Running() {
		t.Error("Running() gate closed in steady state")
	}
}

// TestSessionRetryBackoffWindow validates exactly one attempt per 4000ms
// window while the session refuses to open.
func TestSessionRetryBackoffWindow(t *testing.T) {
	lnk := &fakeLink{status: link.StatusUp}
	sock := newFakeSocket()
	sock.connectErr = errors.New("refused")
	m := lifecycle.New(testConfig(), lnk, sock, func() (string, bool) {
		return "10.0.0.5:81", true
	})

	t0 := time.Now()
	m.Tick(t0) // address -> AcquiringLink
	m.Tick(t0) // link already up -> AcquiringSession
	m.Tick(t0) // entry + first attempt
	if len(sock.targets) != 1 {
		t.Fatalf("attempts after entry = %d, want 1", len(sock.targets))
	}

	for _, dt := range []time.Duration{
		500 * time.Millisecond, 2 * time.Second, 3900 * time.Millisecond,
	} {
		m.Tick(t0.Add(dt))
	}
	if len(sock.targets) != 1 {
		t.Errorf("attempts inside backoff window = %d, want 1", len(sock.targets))
	}

	m.Tick(t0.Add(4 * time.Second))
	if len(sock.targets) != 2 {
		t.Errorf("attempts after one window = %d, want 2", len(sock.targets))
	}

	m.Tick(t0.Add(8 * time.Second))
	if len(sock.targets) != 3 {
		t.Errorf("attempts after two windows = %d, want 3", len(sock.targets))
	}

	// Success ends the retrying.
	sock.connectErr = nil
	m.Tick(t0.Add(12 * time.Second))
	if m.State() != lifecycle.Running {
		t.Errorf("state = %v after successful attempt, want Running", m.State())
	}
}

// TestSessionLossRegression validates the only regression: a closed
// notice during steady state re-enters session acquisition with a fresh
// backoff, without touching the link.
func TestSessionLossRegression(t *testing.T) {
	lnk := &fakeLink{status: link.StatusUp}
	sock := newFakeSocket()
	m := lifecycle.New(testConfig(), lnk, sock, func() (string, bool) {
		return "10.0.0.5", true
	})

	t0 := time.Now()
	m.Tick(t0)
	m.Tick(t0)
	m.Tick(t0)
	if m.State() != lifecycle.Running {
		t.Fatalf("setup: state = %v, want Running", m.State())
	}
	linkConnects := lnk.connects

	// Session drops and the endpoint stays away for a while.
	sock.connected = false
	sock.connectErr = errors.New("refused")
	sock.notices <- session.NoticeClosed

	t1 := t0.Add(time.Minute)
	m.Tick(t1)
	if m.State() != lifecycle.AcquiringSession {
		t.Fatalf("state = %v after closed notice, want AcquiringSession", m.State())
	}
	// Entry re-ran: a fresh attempt fired on the regression tick using
	// the address entered at boot.
	if got := len(sock.targets); got != 2 {
		t.Errorf("attempts after regression = %d, want 2", got)
	}
	if sock.targets[1] != "10.0.0.5:81" {
		t.Errorf("regression reused target %q, want 10.0.0.5:81", sock.targets[1])
	}
	if lnk.connects != linkConnects {
		t.Errorf("link reconnected on session loss: %d -> %d", linkConnects, lnk.connects)
	}

	// The backoff restarted at the regression: nothing inside the new
	// window, another attempt after it, and recovery once the endpoint
	// returns.
	m.Tick(t1.Add(2 * time.Second))
	if got := len(sock.targets); got != 2 {
		t.Errorf("attempts inside restarted window = %d, want 2", got)
	}
	sock.connectErr = nil
	m.Tick(t1.Add(4 * time.Second))
	if m.State() != lifecycle.Running {
		t.Errorf("state = %v after reconnect, want Running", m.State())
	}
}

// TestStaleClosedNoticeIgnored validates that a closed notice arriving
// outside steady state does not disturb acquisition.
func TestStaleClosedNoticeIgnored(t *testing.T) {
	lnk := &fakeLink{}
	sock := newFakeSocket()
	m := lifecycle.New(testConfig(), lnk, sock, func() (string, bool) {
		return "10.0.0.5", true
	})

	t0 := time.Now()
	m.Tick(t0) // -> AcquiringLink
	sock.notices <- session.NoticeClosed
	m.Tick(t0.Add(time.Millisecond))
	if m.State() != lifecycle.AcquiringLink {
		t.Errorf("stale notice moved state to %v", m.State())
	}
}

// TestMalformedAddressAttemptedLiterally validates the fail-and-retry
// policy: garbage input is dialed verbatim and simply keeps failing.
func TestMalformedAddressAttemptedLiterally(t *testing.T) {
	lnk := &fakeLink{status: link.StatusUp}
	sock := newFakeSocket()
	sock.connectErr = errors.New("no such host")
	m := lifecycle.New(testConfig(), lnk, sock, func() (string, bool) {
		return "not an address:", true
	})

	t0 := time.Now()
	m.Tick(t0)
	m.Tick(t0)
	m.Tick(t0)
	if len(sock.targets) != 1 || sock.targets[0] != "not an address:" {
		t.Errorf("targets = %v, want the literal string", sock.targets)
	}
	if m.State() != lifecycle.AcquiringSession {
		t.Errorf("state = %v, want AcquiringSession (still retrying)", m.State())
	}
}
