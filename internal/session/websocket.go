package session

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 2 * time.Second
	writeTimeout     = 2 * time.Second
	noticeBuffer     = 4
)

// WebSocket is the gorilla/websocket implementation of Socket. Binary
// messages are frame payloads and go straight to the onBinary callback
// on the read goroutine; everything else the control loop needs is
// funneled through the notice inbox.
type WebSocket struct {
	onBinary func([]byte)
	notices  chan Notice

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	connected bool
}

// NewWebSocket creates a disconnected socket. onBinary is invoked from
// the read goroutine for every binary message; it must confine itself to
// the frame pipeline's Submit, which carries its own synchronization.
func NewWebSocket(onBinary func([]byte)) *WebSocket {
	return &WebSocket{
		onBinary: onBinary,
		notices:  make(chan Notice, noticeBuffer),
	}
}

// Connect implements Socket. A previous session, if any, is torn down
// first; the new one gets a fresh session id for log correlation.
func (s *WebSocket) Connect(addr string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("session dial %s: %w", u.String(), err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.connected = true
	s.sessionID = uuid.NewString()
	id := s.sessionID
	s.mu.Unlock()

	slog.Info("session established", "addr", addr, "session_id", id)
	s.pushNotice(NoticeConnected)

	go s.readLoop(conn, id)
	return nil
}

// readLoop drains inbound messages until the connection dies, then posts
// a single NoticeClosed. It never blocks the control loop: frames are
// handed to onBinary, whose only shared state is the pipeline slot.
func (s *WebSocket) readLoop(conn *websocket.Conn, id string) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			// Only the still-active session may flip the flag; a
			// superseded session's read loop dies silently.
			stale := s.conn != conn
			if !stale {
				s.connected = false
			}
			s.mu.Unlock()

			if !stale {
				slog.Warn("session lost", "session_id", id, "error", err)
				s.pushNotice(NoticeClosed)
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			s.onBinary(data)
		}
	}
}

// Connected implements Socket.
func (s *WebSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SessionID returns the id of the current session, for telemetry.
func (s *WebSocket) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ""
	}
	return s.sessionID
}

// SendText implements Socket.
func (s *WebSocket) SendText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.conn == nil {
		return fmt.Errorf("session not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("session send: %w", err)
	}
	return nil
}

// Notices implements Socket.
func (s *WebSocket) Notices() <-chan Notice { return s.notices }

// Close implements Socket.
func (s *WebSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// pushNotice never blocks; if the inbox is full the oldest unprocessed
// notice already tells the control loop everything it needs.
func (s *WebSocket) pushNotice(n Notice) {
	select {
	case s.notices <- n:
	default:
		slog.Debug("notice inbox full, dropped", "notice", n)
	}
}
