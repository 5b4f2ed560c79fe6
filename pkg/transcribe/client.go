// Package transcribe provides the live audio transcription client: one
// duplex session to the recognition service, fire-and-forget PCM streaming,
// periodic keepalive, and transcript event dispatch with speaker attribution.
package transcribe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omnitalk/stream-bridge/internal/session"
)

// keepaliveInterval stays under the remote service's ~10s silence timeout.
const keepaliveInterval = 8 * time.Second

// Client represents a client.
type Client struct {
	cfg    Config
	logger *zap.Logger

	// keepaliveEvery is keepaliveInterval in production; tests shorten it.
	keepaliveEvery time.Duration

	mu       sync.Mutex
	cb       Callbacks
	sess     *session.Session
	keepStop chan struct{}
}

// NewClient validates the configuration and builds the client. A missing
// endpoint or API key is fatal here, not at connect time.
func NewClient(cfg Config, cb Callbacks, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, &session.ConfigError{Field: "transcribe.endpoint"}
	}
	if cfg.APIKey == "" {
		return nil, &session.ConfigError{Field: "transcribe.api_key"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	c := &Client{
		cfg:            cfg,
		logger:         logger,
		keepaliveEvery: keepaliveInterval,
		cb:             cb,
	}

	target, err := c.buildURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	// Backoff deliberately absent: this client never reconnects on its own,
	// so a dropped session cannot silently resume mid-recording.
	sess, err := session.New(session.Config{
		Name:   "transcribe",
		URL:    target,
		Header: header,
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

func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", &session.ConfigError{Field: "transcribe.endpoint"}
	}
	q := u.Query()
	if c.cfg.Model != "" {
		q.Set("model", c.cfg.Model)
	}
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	q.Set("punctuate", strconv.FormatBool(c.cfg.Punctuate))
	q.Set("diarize", strconv.FormatBool(c.cfg.Diarize))
	q.Set("interim_results", strconv.FormatBool(c.cfg.InterimResults))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(c.cfg.Channels))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the session. Completion is signaled via OnOpen, failure via
// OnError.
func (c *Client) Connect(ctx context.Context) {
	c.sess.Connect(ctx)
}

// Close shuts the session down and cancels the keepalive timer.
func (c *Client) Close() {
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

// SendAudio forwards one raw PCM chunk, unbuffered. When the session is not
// open the chunk is dropped with a warning: audio cadence must stay real-time,
// so the contract is fire-and-forget, never queued.
func (c *Client) SendAudio(chunk []byte) {
	if err := c.sess.SendBinary(chunk); err != nil {
		c.logger.Warn("audio chunk dropped: session not open", zap.Int("bytes", len(chunk)))
	}
}

// FinishStream sends a single zero-length payload as the end-of-utterance
// sentinel. No further SendAudio calls are required to terminate cleanly.
func (c *Client) FinishStream() {
	if err := c.sess.SendBinary(nil); err != nil {
		c.logger.Warn("finish sentinel dropped: session not open")
	}
}

func (c *Client) handleOpen() {
	c.mu.Lock()
	if c.keepStop != nil {
		close(c.keepStop)
	}
	stop := make(chan struct{})
	c.keepStop = stop
	cb := c.cb
	c.mu.Unlock()

	go c.keepaliveLoop(stop)

	if cb.OnOpen != nil {
		cb.OnOpen()
	}
}

func (c *Client) keepaliveLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.keepaliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.sess.SendJSON(map[string]any{"type": "KeepAlive"}); err != nil {
				c.logger.Debug("keepalive skipped: session not open")
			}
		}
	}
}

func (c *Client) stopKeepalive() {
	c.mu.Lock()
	if c.keepStop != nil {
		close(c.keepStop)
		c.keepStop = nil
	}
	c.mu.Unlock()
}

func (c *Client) handleClose(err error) {
	c.stopKeepalive()

	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb.OnClose != nil {
		cb.OnClose(err)
	}
}

func (c *Client) handleGiveUp(err error) {
	c.stopKeepalive()

	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (c *Client) handleMessage(data []byte) {
	event, ok, err := parseResult(data)
	if err != nil {
		c.logger.Warn("transcript message discarded", zap.Error(err))
		c.mu.Lock()
		cb := c.cb
		c.mu.Unlock()
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if !ok {
		return
	}

	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb.OnTranscript != nil {
		cb.OnTranscript(event)
	}
}
