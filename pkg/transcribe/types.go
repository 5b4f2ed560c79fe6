package transcribe

// Config represents a config.
type Config struct {
	// Endpoint is the recognition service base URL, e.g.
	// wss://api.deepgram.com/v1/listen.
	Endpoint string
	// APIKey is sent as a bearer token.
	APIKey string

	Model    string
	Language string
	// SampleRate and Channels describe the raw PCM the caller streams in.
	SampleRate int
	Channels   int

	Punctuate      bool
	Diarize        bool
	InterimResults bool
}

// Word is one recognized word with its speaker tag and time bounds.
type Word struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker int     `json:"speaker"`
}

// TranscriptEvent is one recognition result. Interim events may be revised by
// later events; IsFinal marks the segment as settled.
type TranscriptEvent struct {
	Text       string
	Confidence float64
	IsFinal    bool
	// Speaker is the dominant speaker index for this result: the speaker tag
	// with the highest occurrence count among the result's words, ties broken
	// by the speaker first encountered in word order.
	Speaker int
	Start   float64
	End     float64
	Words   []Word
}

// Callbacks receives client events. Later registration fully replaces earlier.
type Callbacks struct {
	OnOpen       func()
	OnTranscript func(event TranscriptEvent)
	// OnClose fires when the session closes; err is nil for a deliberate
	// Close. The client never reconnects on its own: re-establishing the
	// stream is the caller's decision, by calling Connect again.
	OnClose func(err error)
	OnError func(err error)
}
