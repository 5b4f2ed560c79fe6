package transcribe

import (
	"encoding/json"

	"github.com/omnitalk/stream-bridge/internal/session"
)

type resultMessage struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []Word  `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResult decodes one inbound message. ok is false for messages that are
// valid but carry no transcript (metadata, empty interim results).
func parseResult(data []byte) (TranscriptEvent, bool, error) {
	var msg resultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return TranscriptEvent{}, false, &session.ProtocolError{Reason: "malformed transcript message", Err: err}
	}

	switch msg.Type {
	case "Results", "":
	case "Metadata", "SpeechStarted", "UtteranceEnd":
		return TranscriptEvent{}, false, nil
	default:
		return TranscriptEvent{}, false, &session.ProtocolError{Reason: "unrecognized transcript message type " + msg.Type}
	}

	if len(msg.Channel.Alternatives) == 0 {
		return TranscriptEvent{}, false, nil
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return TranscriptEvent{}, false, nil
	}

	return TranscriptEvent{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		IsFinal:    msg.IsFinal,
		Speaker:    dominantSpeaker(alt.Words),
		Start:      msg.Start,
		End:        msg.Start + msg.Duration,
		Words:      alt.Words,
	}, true, nil
}

// dominantSpeaker returns the speaker tag with the highest occurrence count
// among the words. Ties break toward the speaker first encountered while
// scanning words in their given order, which keeps the result reproducible.
func dominantSpeaker(words []Word) int {
	if len(words) == 0 {
		return 0
	}

	counts := make(map[int]int, 4)
	order := make([]int, 0, 4)
	for _, w := range words {
		if _, seen := counts[w.Speaker]; !seen {
			order = append(order, w.Speaker)
		}
		counts[w.Speaker]++
	}

	best := order[0]
	for _, speaker := range order[1:] {
		if counts[speaker] > counts[best] {
			best = speaker
		}
	}
	return best
}
