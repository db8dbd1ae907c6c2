// Package lifecycle implements the connection lifecycle state machine:
// link acquisition, session acquisition, steady state, and the single
// regression on session loss. Every Tick is non-blocking apart from the
// bounded session dial attempt.
package lifecycle

import (
	"log/slog"
	"time"

	"github.com/visiona/lumen/internal/link"
	"github.com/visiona/lumen/internal/session"
)

// State is the lifecycle position. It advances monotonically except for
// the Running -> AcquiringSession regression on session loss.
type State int

const (
	AwaitingAddress State = iota
	AcquiringLink
	AcquiringSession
	Running
)

func (s State) String() string {
	switch s {
	case AwaitingAddress:
		return "awaiting_address"
	case AcquiringLink:
		return "acquiring_link"
	case AcquiringSession:
		return "acquiring_session"
	case Running:
		return "running"
	}
	return "unknown"
}

// AddressFunc is the keypad-UI collaborator: it returns the operator's
// confirmed host[:port] target, ok=false until one has been entered.
type AddressFunc func() (string, bool)

// Config carries the machine's timing and credentials.
type Config struct {
	SSID            string
	Password        string
	DefaultPort     string
	LinkLogInterval time.Duration
	SessionRetry    time.Duration
}

// Machine drives the four lifecycle states. Owned and ticked exclusively
// by the main control loop; no locking.
type Machine struct {
	cfg     Config
	link    link.Link
	sock    session.Socket
	address AddressFunc

	state   State
	entered bool // entry latch, cleared on every transition

	addr        string // immutable once entered for this boot
	lastLinkLog time.Time
	lastAttempt time.Time
}

// New creates a machine in AwaitingAddress. The socket's message and
// event handlers are wired at socket construction; entering session
// acquisition (re)arms only the backoff.
func New(cfg Config, lnk link.Link, sock session.Socket, address AddressFunc) *Machine {
	return &Machine{cfg: cfg, link: lnk, sock: sock, address: address}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Running reports steady state; the event encoder's egress gate.
func (m *Machine) Running() bool { return m.state == Running }

// Address returns the operator-entered target, empty until confirmed.
func (m *Machine) Address() string { return m.addr }

// Tick advances the machine one control-loop iteration. Session-closed
// notices are drained first so a loss observed mid-tick regresses before
// any steady-state work.
func (m *Machine) Tick(now time.Time) {
	m.drainNotices()

	switch m.state {
	case AwaitingAddress:
		m.tickAwaitingAddress()
	case AcquiringLink:
		m.tickAcquiringLink(now)
	case AcquiringSession:
		m.tickAcquiringSession(now)
	case Running:
		// Steady state: frame pipeline and gesture egress run around
		// this machine; nothing to drive here.
	}
}

// drainNotices empties the socket's notice inbox. The closed notice is
// the only cross-component signal that moves the machine backwards.
func (m *Machine) drainNotices() {
	for {
		select {
		case n := <-m.sock.Notices():
			if n == session.NoticeClosed && m.state == Running {
				slog.Warn("session closed, reacquiring")
				m.transition(AcquiringSession)
			}
		default:
			return
		}
	}
}

func (m *Machine) tickAwaitingAddress() {
	addr, ok := m.address()
	if !ok {
		return
	}
	m.addr = addr
	slog.Info("session target entered", "addr", addr)
	m.transition(AcquiringLink)
}

func (m *Machine) tickAcquiringLink(now time.Time) {
	if !m.entered {
		m.entered = true
		m.lastLinkLog = now
		slog.Info("acquiring link", "ssid", m.cfg.SSID)
		if err := m.link.Connect(m.cfg.SSID, m.cfg.Password); err != nil {
			// Transient: status polling below carries the retry; the
			// request is reissued only on re-entry.
			slog.Warn("link connect request failed", "error", err)
		}
	}

	status := m.link.Status()
	if status == link.StatusUp {
		slog.Info("link up")
		m.transition(AcquiringSession)
		return
	}

	// No timeout on the attempt itself; just keep the log quiet.
	if now.Sub(m.lastLinkLog) >= m.cfg.LinkLogInterval {
		m.lastLinkLog = now
		slog.Info("waiting for link", "status", status)
	}
}

func (m *Machine) tickAcquiringSession(now time.Time) {
	if !m.entered {
		m.entered = true
		// First attempt fires on this entry tick; thereafter once per
		// backoff window.
		m.lastAttempt = time.Time{}
		slog.Info("acquiring session", "addr", m.addr)
	}

	if m.sock.Connected() {
		slog.Info("session up, entering steady state")
		m.transition(Running)
		return
	}

	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.cfg.SessionRetry {
		return
	}
	m.lastAttempt = now

	target := session.ParseAddress(m.addr, m.cfg.DefaultPort)
	if err := m.sock.Connect(target); err != nil {
		slog.Warn("session connect failed, will retry",
			"target", target, "retry_in", m.cfg.SessionRetry, "error", err)
		return
	}
	slog.Info("session up, entering steady state")
	m.transition(Running)
}

// transition moves to the next state and clears the entry latch so the
// destination's entry actions run exactly once on the next tick.
func (m *Machine) transition(to State) {
	slog.Debug("lifecycle transition", "from", m.state, "to", to)
	m.state = to
	m.entered = false
}
