package ws

import "encoding/json"

type incomingMessage struct {
	Type       string          `json:"type"`
	Room       string          `json:"room,omitempty"`
	AudioPCM   string          `json:"audio_pcm,omitempty"`
	AudioRate  int             `json:"audio_sample_rate,omitempty"`
	AudioCh    int             `json:"audio_channels,omitempty"`
	Image      string          `json:"image,omitempty"`
	SignalType string          `json:"signal_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
