package gesture

import "time"

// Config represents a config.
type Config struct {
	// BaseURL is the gesture service base address, e.g. wss://host:8080.
	// The frame-ingestion and results paths live under it.
	BaseURL string
	// ClientID identifies this client to the service. Generated when empty.
	ClientID string
	Language string

	// TargetFPS bounds the outgoing frame rate; frames arriving faster than
	// 1000/TargetFPS ms apart are dropped at the source.
	TargetFPS int
	// MaxQueueLength caps the outgoing frame queue; oldest entries are
	// evicted first on overflow.
	MaxQueueLength  int
	UseBinaryFrames bool
	// SendInterval is the small delay between consecutive queue dispatches.
	SendInterval time.Duration

	PendingTimeout time.Duration
	SweepInterval  time.Duration

	SmoothingWindow time.Duration
	MinSupport      int

	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

// Frame is one captured image queued for classification.
type Frame struct {
	ID         string
	Payload    []byte
	CapturedAt time.Time
}

// Landmark is one hand landmark point.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// GestureResult is one smoothed classification surfaced to the caller.
type GestureResult struct {
	FrameID string
	// Label is the surfaced label after temporal smoothing; RawLabel is the
	// per-frame classification that produced it.
	Label       string
	RawLabel    string
	Confidence  float64
	Stable      bool
	Support     int
	StableSince time.Time
}

// TextResult is a completed sign-to-text translation.
type TextResult struct {
	Text        string   `json:"text"`
	Signs       []string `json:"signs"`
	Confidence  float64  `json:"confidence"`
	TimestampMs int64    `json:"timestamp"`
}

// Callbacks receives client events. Later registration fully replaces earlier.
type Callbacks struct {
	OnLandmarks      func(frameID string, landmarks []Landmark, handedness string)
	OnGesture        func(result GestureResult)
	OnPartialText    func(text string)
	OnFinalText      func(result TextResult)
	OnFrameProcessed func(frameID string, latency time.Duration)
	// OnError receives non-fatal degradations: queue overflow, pending-frame
	// timeouts, malformed messages, remote error messages.
	OnError func(err error)
	// OnFatal fires when a session's reconnect attempts are exhausted.
	OnFatal func(err error)
}
