// Package session owns the application-level connection over which
// frames arrive and gesture events leave. At most one session is active
// at a time; a reconnect replaces the previous one.
package session

import "strings"

// Notice is an asynchronous session lifecycle notification. Notices are
// delivered into a buffered inbox drained once per control-loop tick,
// preserving the single-threaded semantics of the rest of the loop.
type Notice int

const (
	// NoticeConnected reports that a session was established.
	NoticeConnected Notice = iota
	// NoticeClosed reports that the active session was lost. It is the
	// only cross-component signal that regresses the lifecycle.
	NoticeClosed
)

func (n Notice) String() string {
	switch n {
	case NoticeConnected:
		return "connected"
	case NoticeClosed:
		return "closed"
	}
	return "unknown"
}

// Socket is the session transport.
type Socket interface {
	// Connect dials addr ("host:port"). Bounded by a handshake timeout;
	// the lifecycle machine retries on its own backoff, so a failed
	// attempt is simply reported, never retried here.
	Connect(addr string) error
	// Connected reports whether a session is currently open.
	Connected() bool
	// SendText transmits one structured text message.
	SendText(payload []byte) error
	// Notices is the single-consumer inbox of lifecycle notifications.
	Notices() <-chan Notice
	// Close tears down the active session, if any.
	Close() error
}

// ParseAddress normalizes an operator-entered target. A bare host gets
// the default port appended; anything containing a separator is used
// verbatim. There is deliberately no validation: a malformed address
// produces a connect attempt against the literal string, which fails and
// is retried like any other transient fault.
func ParseAddress(addr string, defaultPort string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return addr + ":" + defaultPort
}
