// Package signaling provides the peer-signaling client: one session per
// room+participant, a heartbeat, linear reconnect backoff, and an outbound
// queue that holds messages while disconnected and flushes them in order
// after reconnect.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnitalk/stream-bridge/internal/session"
)

const (
	defaultHeartbeat     = 15 * time.Second
	defaultReconnectBase = 2 * time.Second
	defaultMaxReconnects = 5
)

// Client represents a client.
type Client struct {
	cfg    Config
	logger *zap.Logger
	sess   *session.Session

	mu       sync.Mutex
	cb       Callbacks
	queue    outboundQueue
	beatStop chan struct{}
}

// NewClient validates the configuration and builds the client.
func NewClient(cfg Config, cb Callbacks, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &session.ConfigError{Field: "signaling.base_url"}
	}
	if cfg.Room == "" {
		return nil, &session.ConfigError{Field: "signaling.room"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ParticipantID == "" {
		cfg.ParticipantID = uuid.NewString()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = defaultReconnectBase
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		cb:     cb,
	}

	// Linear backoff: this session is cheap to retry, so it ramps gently
	// instead of doubling like the gesture sessions.
	sess, err := session.New(session.Config{
		Name:                 "signaling",
		URL:                  fmt.Sprintf("%s/ws/signaling/%s/%s", cfg.BaseURL, cfg.Room, cfg.ParticipantID),
		Backoff:              session.LinearBackoff{Base: cfg.ReconnectBaseDelay},
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, session.Callbacks{
		OnOpen:   c.handleOpen,
		OnText:   c.handleMessage,
		OnClose:  c.handleClose,
		OnGiveUp: c.handleGiveUp,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	return c, nil
}

// ParticipantID returns this client's participant identity.
func (c *Client) ParticipantID() string {
	return c.cfg.ParticipantID
}

// Connect opens the session. Completion is signaled via OnOpen.
func (c *Client) Connect(ctx context.Context) {
	c.sess.Connect(ctx)
}

// Disconnect cancels the heartbeat, clears the outbound queue, suppresses any
// further automatic reconnection, and closes the transport.
func (c *Client) Disconnect() {
	c.stopHeartbeat()
	c.mu.Lock()
	c.queue.Clear()
	c.mu.Unlock()
	c.sess.Close()
}

// State returns the session lifecycle state.
func (c *Client) State() session.State {
	return c.sess.State()
}

// SetCallbacks replaces the registered callbacks.
func (c *Client) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *Client) callbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

// Send wraps payload in a timestamped envelope. When the session is open the
// envelope goes out immediately; otherwise it accumulates and is flushed, in
// submission order, right after the next successful reconnect.
func (c *Client) Send(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal signaling payload: %w", err)
	}
	env := Envelope{
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
		SenderID:  c.cfg.ParticipantID,
	}

	if c.sess.IsOpen() {
		if err := c.sess.SendJSON(env); err == nil {
			return nil
		}
	}

	c.mu.Lock()
	c.queue.Enqueue(env)
	depth := c.queue.Len()
	c.mu.Unlock()
	c.logger.Debug("signaling message queued", zap.String("type", msgType), zap.Int("depth", depth))
	return nil
}

// QueuedMessages reports how many envelopes await the next reconnect.
func (c *Client) QueuedMessages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

func (c *Client) handleOpen() {
	c.flushQueue()
	c.startHeartbeat()
	if cb := c.callbacks(); cb.OnOpen != nil {
		cb.OnOpen()
	}
}

func (c *Client) flushQueue() {
	c.mu.Lock()
	pending := c.queue.DrainAll()
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	for i, env := range pending {
		if err := c.sess.SendJSON(env); err != nil {
			// Connection lost mid-flush; keep the rest in order for the
			// next reconnect.
			c.mu.Lock()
			remaining := append(pending[i:], c.queue.DrainAll()...)
			for _, left := range remaining {
				c.queue.Enqueue(left)
			}
			c.mu.Unlock()
			c.logger.Warn("queue flush interrupted", zap.Int("remaining", len(remaining)))
			return
		}
	}
	c.logger.Info("outbound queue flushed", zap.Int("messages", len(pending)))
}

func (c *Client) startHeartbeat() {
	c.mu.Lock()
	if c.beatStop != nil {
		close(c.beatStop)
	}
	stop := make(chan struct{})
	c.beatStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Heartbeats are never queued; a ping for a dead
				// connection is worthless after reconnect.
				env := Envelope{
					Type:      TypePing,
					Timestamp: time.Now().UnixMilli(),
					SenderID:  c.cfg.ParticipantID,
				}
				if err := c.sess.SendJSON(env); err != nil {
					c.logger.Debug("heartbeat skipped: session not open")
				}
			}
		}
	}()
}

func (c *Client) stopHeartbeat() {
	c.mu.Lock()
	if c.beatStop != nil {
		close(c.beatStop)
		c.beatStop = nil
	}
	c.mu.Unlock()
}

func (c *Client) handleClose(err error) {
	c.stopHeartbeat()
	if cb := c.callbacks(); cb.OnClose != nil {
		cb.OnClose(err)
	}
}

func (c *Client) handleGiveUp(err error) {
	c.stopHeartbeat()
	if cb := c.callbacks(); cb.OnFatal != nil {
		cb.OnFatal(err)
	}
}

// handleMessage dispatches one inbound envelope against the closed type set.
// Liveness detection relies solely on transport-level close, not on matching
// pongs; pong receipt is deliberately not tracked.
func (c *Client) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		protoErr := &session.ProtocolError{Reason: "malformed signaling envelope", Err: err}
		c.logger.Warn("signaling message discarded", zap.Error(err))
		if cb := c.callbacks(); cb.OnError != nil {
			cb.OnError(protoErr)
		}
		return
	}

	cb := c.callbacks()
	switch env.Type {
	case TypeTranscript:
		if cb.OnTranscript != nil {
			cb.OnTranscript(env.Payload, env.SenderID)
		}
	case TypeGestureResult:
		if cb.OnGestureResult != nil {
			cb.OnGestureResult(env.Payload, env.SenderID)
		}
	case TypeParticipantJoined:
		if cb.OnParticipantJoined != nil {
			cb.OnParticipantJoined(env.SenderID)
		}
	case TypeParticipantLeft:
		if cb.OnParticipantLeft != nil {
			cb.OnParticipantLeft(env.SenderID)
		}
	case TypeSpeakerChange:
		if cb.OnSpeakerChange != nil {
			cb.OnSpeakerChange(env.Payload, env.SenderID)
		}
	case TypePing:
		pong := Envelope{
			Type:      TypePong,
			Timestamp: time.Now().UnixMilli(),
			SenderID:  c.cfg.ParticipantID,
		}
		if err := c.sess.SendJSON(pong); err != nil {
			c.logger.Debug("pong skipped: session not open")
		}
	case TypePong:
		// Ignored by design; see liveness note above.
	case TypeError:
		c.logger.Warn("signaling service error", zap.ByteString("payload", env.Payload))
		if cb.OnError != nil {
			cb.OnError(fmt.Errorf("signaling service error: %s", string(env.Payload)))
		}
	default:
		c.logger.Warn("unknown signaling type dropped", zap.String("type", env.Type))
	}
}
