// Package session provides the lifecycle-managed duplex websocket connection
// underlying the transcription, gesture and signaling clients: an explicit
// state machine, pluggable reconnect backoff with an attempt cap, and
// callback-based event dispatch.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultHandshakeTimeout = 10 * time.Second

var errNotOpen = errors.New("session is not open")

// Callbacks receives session events. Registration replaces any previous
// callbacks wholesale; replacing them never cancels already-scheduled work,
// only changes which handler it invokes.
type Callbacks struct {
	OnOpen   func()
	OnText   func(data []byte)
	OnBinary func(data []byte)
	// OnClose fires when the transport closes; err is nil for a deliberate
	// Close and a *ConnectionError otherwise.
	OnClose func(err error)
	// OnGiveUp fires once automatic reconnection is exhausted (or was never
	// configured) and no further attempts will be made.
	OnGiveUp func(err error)
}

// Config represents a config.
type Config struct {
	// Name tags log entries; sessions are otherwise anonymous.
	Name   string
	URL    string
	Header http.Header
	// Backoff is the reconnect delay policy. Nil disables automatic
	// reconnection entirely.
	Backoff Policy
	// MaxReconnectAttempts caps automatic reconnection. Ignored when
	// Backoff is nil.
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
}

// Session is one lifecycle-managed duplex network connection. It is owned
// exclusively by its client and never shared.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	machine *Machine

	mu         sync.Mutex
	cb         Callbacks
	conn       *websocket.Conn
	gen        int
	attempts   int
	retryTimer *time.Timer
	closed     bool

	writeMu sync.Mutex
}

// New creates a session. A missing target URL is fatal at construction.
func New(cfg Config, cb Callbacks, logger *zap.Logger) (*Session, error) {
	if cfg.URL == "" {
		return nil, &ConfigError{Field: "url"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Session{
		cfg:     cfg,
		logger:  logger.With(zap.String("session", cfg.Name)),
		machine: NewMachine(),
		cb:      cb,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.machine.State()
}

// IsOpen reports whether the session is currently open.
func (s *Session) IsOpen() bool {
	return s.machine.Is(StateOpen)
}

// SetCallbacks replaces the registered callbacks. Safe at any point.
func (s *Session) SetCallbacks(cb Callbacks) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

// Connect starts the asynchronous dial. Completion is signaled via OnOpen, or
// OnGiveUp once no further attempts will be made. Calling Connect while the
// session is already open is a no-op with a warning.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.machine.Is(StateOpen) {
		s.mu.Unlock()
		s.logger.Warn("connect ignored: session already open")
		return
	}
	if s.machine.Is(StateConnecting) {
		s.mu.Unlock()
		s.logger.Debug("connect ignored: session already connecting")
		return
	}
	s.closed = false
	s.attempts = 0
	s.gen++
	gen := s.gen
	_ = s.machine.Force(StateConnecting)
	s.mu.Unlock()

	go s.dial(ctx, gen)
}

// Close transitions through Closing to Closed, stops the reconnect timer and
// pins the attempt counter so no automatic reconnection survives it.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.attempts = s.cfg.MaxReconnectAttempts
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	conn := s.conn
	s.conn = nil
	_ = s.machine.Force(StateClosing)
	cb := s.cb
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	_ = s.machine.To(StateClosed)
	s.logger.Info("session closed")
	if cb.OnClose != nil {
		cb.OnClose(nil)
	}
}

// SendText writes a text message. Fails when the session is not open.
func (s *Session) SendText(data []byte) error {
	conn, err := s.openConn()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendJSON marshals and writes v as a text message.
func (s *Session) SendJSON(v any) error {
	conn, err := s.openConn()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// SendBinary writes a binary message. A zero-length payload is legal; the
// audio client uses it as its end-of-utterance sentinel.
func (s *Session) SendBinary(data []byte) error {
	conn, err := s.openConn()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Session) openConn() (*websocket.Conn, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !s.machine.Is(StateOpen) {
		return nil, &ConnectionError{Op: "send", Err: errNotOpen}
	}
	return conn, nil
}

func (s *Session) dial(ctx context.Context, gen int) {
	if s.stale(gen) {
		return
	}
	s.logger.Info("session connecting", zap.String("url", s.cfg.URL))

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.logger.Warn("session dial failed", zap.Error(err))
		s.handleFailure(ctx, gen, &ConnectionError{Op: "dial", Err: err})
		return
	}

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.attempts = 0
	_ = s.machine.To(StateOpen)
	cb := s.cb
	s.mu.Unlock()

	s.logger.Info("session open")
	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	s.readLoop(ctx, conn, gen)
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			deliberate := s.closed || gen != s.gen
			cb := s.cb
			s.mu.Unlock()

			if deliberate {
				return
			}
			connErr := &ConnectionError{Op: "read", Err: err}
			s.logger.Warn("session connection lost", zap.Error(err))
			if cb.OnClose != nil {
				cb.OnClose(connErr)
			}
			s.handleFailure(ctx, gen, connErr)
			return
		}

		s.mu.Lock()
		cb := s.cb
		s.mu.Unlock()

		switch msgType {
		case websocket.TextMessage:
			if cb.OnText != nil {
				cb.OnText(data)
			}
		case websocket.BinaryMessage:
			if cb.OnBinary != nil {
				cb.OnBinary(data)
			}
		}
	}
}

// handleFailure applies the reconnect policy after a dial failure or a lost
// connection. Attempts never exceed the configured cap; once it is reached the
// session goes Failed and stays there until an explicit Connect.
func (s *Session) handleFailure(ctx context.Context, gen int, cause error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}

	if s.cfg.Backoff == nil {
		_ = s.machine.Force(StateFailed)
		cb := s.cb
		s.mu.Unlock()
		if cb.OnGiveUp != nil {
			cb.OnGiveUp(cause)
		}
		return
	}

	s.attempts++
	attempt := s.attempts
	if attempt > s.cfg.MaxReconnectAttempts {
		_ = s.machine.Force(StateFailed)
		cb := s.cb
		s.mu.Unlock()
		s.logger.Error("session reconnect attempts exhausted",
			zap.Int("attempts", s.cfg.MaxReconnectAttempts),
			zap.Error(cause),
		)
		if cb.OnGiveUp != nil {
			cb.OnGiveUp(cause)
		}
		return
	}

	delay := s.cfg.Backoff.Delay(attempt)
	_ = s.machine.Force(StateConnecting)
	s.retryTimer = time.AfterFunc(delay, func() {
		s.dial(ctx, gen)
	})
	s.mu.Unlock()

	s.logger.Warn("session reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
}

func (s *Session) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || gen != s.gen
}
