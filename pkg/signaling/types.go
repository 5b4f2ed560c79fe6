package signaling

import (
	"encoding/json"
	"time"
)

// Message types in the closed dispatch set. Anything else is logged and
// dropped so newer servers can add types without breaking older clients.
const (
	TypeTranscript        = "transcript"
	TypeGestureResult     = "gesture_result"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeSpeakerChange     = "speaker_change"
	TypePing              = "ping"
	TypePong              = "pong"
	TypeError             = "error"
)

// Envelope is the wire format for every signaling message.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	SenderID  string          `json:"senderId"`
}

// Config represents a config.
type Config struct {
	// BaseURL is the signaling service base address, e.g. wss://host:9000.
	BaseURL string
	Room    string
	// ParticipantID identifies this participant. Generated when empty.
	ParticipantID string

	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

// Callbacks receives client events. Later registration fully replaces earlier.
type Callbacks struct {
	OnOpen              func()
	OnTranscript        func(payload json.RawMessage, senderID string)
	OnGestureResult     func(payload json.RawMessage, senderID string)
	OnParticipantJoined func(participantID string)
	OnParticipantLeft   func(participantID string)
	OnSpeakerChange     func(payload json.RawMessage, senderID string)
	OnClose             func(err error)
	// OnFatal fires when reconnect attempts are exhausted.
	OnFatal func(err error)
	OnError func(err error)
}
