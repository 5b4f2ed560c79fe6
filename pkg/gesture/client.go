// Package gesture provides the video-frame gesture recognition client: two
// sessions (frame ingestion, results), source-side frame-rate throttling, a
// bounded FIFO frame queue with a single drain loop, pending-frame tracking,
// typed result dispatch correlated by frame id, and temporal smoothing of
// noisy per-frame classifications.
package gesture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnitalk/stream-bridge/internal/session"
	"github.com/omnitalk/stream-bridge/internal/transport/gestureframe"
)

const (
	framesPath  = "/ws/frames"
	resultsPath = "/ws/results"

	defaultTargetFPS      = 15
	defaultMaxQueueLength = 30
	defaultSendInterval   = 10 * time.Millisecond
	defaultPendingTimeout = 5 * time.Second
	defaultSweepInterval  = time.Second
	defaultWindow         = time.Second
	defaultMinSupport     = 3
	defaultReconnectBase  = time.Second
	defaultMaxReconnects  = 5
)

// Client represents a client.
type Client struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	frames  *session.Session
	results *session.Session

	mu           sync.Mutex
	cb           Callbacks
	streaming    bool
	seq          uint64
	lastAccepted time.Time
	queue        *frameQueue
	pending      *pendingTracker
	smoother     *Smoother
	notify       chan struct{}
	stop         chan struct{}
}

// NewClient validates the configuration and builds the client. A missing base
// address is fatal here.
func NewClient(cfg Config, cb Callbacks, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &session.ConfigError{Field: "gesture.base_url"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	applyDefaults(&cfg)

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		cb:       cb,
		queue:    newFrameQueue(cfg.MaxQueueLength),
		pending:  newPendingTracker(cfg.PendingTimeout),
		smoother: newSmoother(cfg.SmoothingWindow, cfg.MinSupport),
		notify:   make(chan struct{}, 1),
	}

	backoff := session.ExponentialBackoff{Base: cfg.ReconnectBaseDelay}

	frames, err := session.New(session.Config{
		Name:                 "gesture-frames",
		URL:                  cfg.BaseURL + framesPath,
		Backoff:              backoff,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, session.Callbacks{
		OnOpen:   c.handleFramesOpen,
		OnGiveUp: c.handleGiveUp,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.frames = frames

	results, err := session.New(session.Config{
		Name:                 "gesture-results",
		URL:                  cfg.BaseURL + resultsPath,
		Backoff:              backoff,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, session.Callbacks{
		OnOpen:   c.handleResultsOpen,
		OnText:   c.handleResultMessage,
		OnGiveUp: c.handleGiveUp,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.results = results

	return c, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.Language == "" {
		cfg.Language = "ASL"
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = defaultTargetFPS
	}
	if cfg.MaxQueueLength <= 0 {
		cfg.MaxQueueLength = defaultMaxQueueLength
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = defaultSendInterval
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = defaultPendingTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = defaultWindow
	}
	if cfg.MinSupport <= 0 {
		cfg.MinSupport = defaultMinSupport
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = defaultReconnectBase
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}
}

// frameInterval is the minimum spacing between accepted frames.
func (c *Client) frameInterval() time.Duration {
	return time.Second / time.Duration(c.cfg.TargetFPS)
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

// StartRealTimeDetection opens both sessions and starts the drain and sweep
// loops. The start_stream control message goes out once the frame session
// opens.
func (c *Client) StartRealTimeDetection(ctx context.Context) {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		c.logger.Warn("real-time detection already running")
		return
	}
	c.streaming = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.frames.Connect(ctx)
	c.results.Connect(ctx)

	go c.drainLoop(stop)
	go c.sweepLoop(stop)
}

// StopRealTimeDetection tears streaming down: it stops the loops, closes both
// sessions, and unconditionally clears the frame queue, the pending map and
// the observation history.
func (c *Client) StopRealTimeDetection() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.streaming = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()

	_ = c.frames.SendJSON(map[string]any{
		"type":      "stop_stream",
		"clientId":  c.cfg.ClientID,
		"timestamp": c.now().UnixMilli(),
	})
	c.frames.Close()
	c.results.Close()

	c.mu.Lock()
	c.queue.Clear()
	c.smoother.Reset()
	c.lastAccepted = time.Time{}
	c.mu.Unlock()
	c.pending.Clear()

	c.logger.Info("real-time detection stopped")
}

// SendFrame submits one captured image. Frames arriving faster than the
// target rate are dropped silently, never queued: load is bounded at the
// source instead of buffering bursts. Returns the assigned frame id, or ""
// when the frame was dropped.
func (c *Client) SendFrame(payload []byte) string {
	now := c.now()

	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		c.logger.Warn("frame dropped: detection not running")
		return ""
	}
	if !c.lastAccepted.IsZero() && now.Sub(c.lastAccepted) < c.frameInterval() {
		c.mu.Unlock()
		return ""
	}
	c.lastAccepted = now
	c.seq++
	frame := Frame{
		ID:         fmt.Sprintf("%s-%d", c.cfg.ClientID, c.seq),
		Payload:    payload,
		CapturedAt: now,
	}
	evicted := c.queue.Push(frame)
	c.mu.Unlock()

	if evicted > 0 {
		capErr := &session.CapacityError{Dropped: evicted, Limit: c.cfg.MaxQueueLength}
		c.logger.Warn("frame queue overflow", zap.Int("evicted", evicted))
		if cb := c.callbacks(); cb.OnError != nil {
			cb.OnError(capErr)
		}
	}

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return frame.ID
}

// drainLoop dispatches one queued frame at a time with a small inter-send
// delay, preserving send order.
func (c *Client) drainLoop(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-c.notify:
		}
		for {
			select {
			case <-stop:
				return
			default:
			}
			c.mu.Lock()
			frame, ok := c.queue.Pop()
			c.mu.Unlock()
			if !ok {
				break
			}
			c.dispatchFrame(frame)
			select {
			case <-stop:
				return
			case <-time.After(c.cfg.SendInterval):
			}
		}
	}
}

func (c *Client) dispatchFrame(frame Frame) {
	var err error
	if c.cfg.UseBinaryFrames {
		var buf []byte
		buf, err = gestureframe.Encode(frame.ID, uint32(frame.CapturedAt.UnixMilli()), frame.Payload)
		if err != nil {
			c.logger.Warn("frame encode failed", zap.String("frame_id", frame.ID), zap.Error(err))
			if cb := c.callbacks(); cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		err = c.frames.SendBinary(buf)
	} else {
		err = c.frames.SendJSON(map[string]any{
			"type":      "frame",
			"frameId":   frame.ID,
			"data":      base64.StdEncoding.EncodeToString(frame.Payload),
			"timestamp": frame.CapturedAt.UnixMilli(),
		})
	}
	if err != nil {
		c.logger.Warn("frame dropped: session not open", zap.String("frame_id", frame.ID))
		return
	}
	c.pending.Add(frame.ID, c.now())
}

// sweepLoop periodically evicts pending records past the timeout, whether or
// not a result ever arrived. Eviction only forgets; it never retries.
func (c *Client) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, expired := range c.pending.Sweep(c.now()) {
				timeoutErr := &session.TimeoutError{FrameID: expired.frameID, Age: expired.age}
				c.logger.Warn("pending frame evicted", zap.String("frame_id", expired.frameID), zap.Duration("age", expired.age))
				if cb := c.callbacks(); cb.OnError != nil {
					cb.OnError(timeoutErr)
				}
			}
		}
	}
}

func (c *Client) handleFramesOpen() {
	err := c.frames.SendJSON(map[string]any{
		"type":      "init",
		"clientId":  c.cfg.ClientID,
		"language":  c.cfg.Language,
		"targetFps": c.cfg.TargetFPS,
		"useBinary": c.cfg.UseBinaryFrames,
	})
	if err != nil {
		c.logger.Warn("init message failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	streaming := c.streaming
	c.mu.Unlock()
	if streaming {
		_ = c.frames.SendJSON(map[string]any{
			"type":      "start_stream",
			"clientId":  c.cfg.ClientID,
			"timestamp": c.now().UnixMilli(),
		})
	}
}

func (c *Client) handleResultsOpen() {
	if err := c.results.SendJSON(map[string]any{
		"type":     "register",
		"clientId": c.cfg.ClientID,
	}); err != nil {
		c.logger.Warn("register message failed", zap.Error(err))
	}
}

func (c *Client) handleGiveUp(err error) {
	if cb := c.callbacks(); cb.OnFatal != nil {
		cb.OnFatal(err)
	}
}

type resultMessage struct {
	Type       string      `json:"type"`
	FrameID    string      `json:"frameId"`
	Landmarks  []Landmark  `json:"landmarks"`
	Handedness string      `json:"handedness"`
	Gesture    string      `json:"gesture"`
	Confidence float64     `json:"confidence"`
	Text       string      `json:"text"`
	Result     *TextResult `json:"result"`
	Error      string      `json:"error"`
}

// handleResultMessage routes one inbound result. Results may arrive out of
// frame-send order; the frame id is the only correlation. Unrecognized types
// are logged and dropped, never fatal.
func (c *Client) handleResultMessage(data []byte) {
	var msg resultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		protoErr := &session.ProtocolError{Reason: "malformed result message", Err: err}
		c.logger.Warn("result message discarded", zap.Error(err))
		if cb := c.callbacks(); cb.OnError != nil {
			cb.OnError(protoErr)
		}
		return
	}

	cb := c.callbacks()
	switch msg.Type {
	case "landmarks":
		if cb.OnLandmarks != nil {
			cb.OnLandmarks(msg.FrameID, msg.Landmarks, msg.Handedness)
		}
	case "gesture":
		c.handleGesture(msg, cb)
	case "partial_text":
		if cb.OnPartialText != nil {
			cb.OnPartialText(msg.Text)
		}
	case "final_text":
		if msg.Result != nil && cb.OnFinalText != nil {
			cb.OnFinalText(*msg.Result)
		}
	case "frame_processed":
		if latency, ok := c.pending.Resolve(msg.FrameID, c.now()); ok {
			if cb.OnFrameProcessed != nil {
				cb.OnFrameProcessed(msg.FrameID, latency)
			}
		}
	case "error":
		c.logger.Warn("gesture service error", zap.String("error", msg.Error))
		if cb.OnError != nil {
			cb.OnError(fmt.Errorf("gesture service error: %s", msg.Error))
		}
	default:
		c.logger.Warn("unknown result type dropped", zap.String("type", msg.Type))
	}
}

func (c *Client) handleGesture(msg resultMessage, cb Callbacks) {
	c.mu.Lock()
	stabilized := c.smoother.Observe(msg.Gesture, c.now())
	c.mu.Unlock()

	if cb.OnGesture != nil {
		cb.OnGesture(GestureResult{
			FrameID:     msg.FrameID,
			Label:       stabilized.Label,
			RawLabel:    msg.Gesture,
			Confidence:  msg.Confidence,
			Stable:      stabilized.Stable,
			Support:     stabilized.Support,
			StableSince: stabilized.StableSince,
		})
	}
}
