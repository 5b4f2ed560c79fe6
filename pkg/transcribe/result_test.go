package transcribe

import (
	"errors"
	"testing"

	"github.com/omnitalk/stream-bridge/internal/session"
)

func TestParseResultFinalTranscript(t *testing.T) {
	data := []byte(`{
		"type": "Results",
		"is_final": true,
		"start": 1.5,
		"duration": 2.0,
		"channel": {
			"alternatives": [{
				"transcript": "hello world",
				"confidence": 0.97,
				"words": [
					{"word": "hello", "start": 1.5, "end": 2.1, "speaker": 0},
					{"word": "world", "start": 2.2, "end": 3.5, "speaker": 0}
				]
			}]
		}
	}`)

	event, ok, err := parseResult(data)
	if err != nil {
		t.Fatalf("parseResult returned error: %v", err)
	}
	if !ok {
		t.Fatal("parseResult ok = false, want true")
	}
	if event.Text != "hello world" {
		t.Fatalf("Text = %q, want %q", event.Text, "hello world")
	}
	if !event.IsFinal {
		t.Fatal("IsFinal = false, want true")
	}
	if event.Confidence != 0.97 {
		t.Fatalf("Confidence = %v, want 0.97", event.Confidence)
	}
	if event.Start != 1.5 || event.End != 3.5 {
		t.Fatalf("Start, End = %v, %v, want 1.5, 3.5", event.Start, event.End)
	}
	if len(event.Words) != 2 {
		t.Fatalf("len(Words) = %d, want 2", len(event.Words))
	}
}

func TestParseResultEmptyTranscriptSkipped(t *testing.T) {
	data := []byte(`{"type":"Results","channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
	_, ok, err := parseResult(data)
	if err != nil {
		t.Fatalf("parseResult returned error: %v", err)
	}
	if ok {
		t.Fatal("parseResult ok = true for empty transcript, want false")
	}
}

func TestParseResultControlMessagesSkipped(t *testing.T) {
	for _, msgType := range []string{"Metadata", "SpeechStarted", "UtteranceEnd"} {
		data := []byte(`{"type":"` + msgType + `"}`)
		_, ok, err := parseResult(data)
		if err != nil {
			t.Fatalf("parseResult(%s) returned error: %v", msgType, err)
		}
		if ok {
			t.Fatalf("parseResult(%s) ok = true, want false", msgType)
		}
	}
}

func TestParseResultUnknownType(t *testing.T) {
	_, _, err := parseResult([]byte(`{"type":"Mystery"}`))
	var protoErr *session.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("parseResult error = %v, want *ProtocolError", err)
	}
}

func TestParseResultMalformedJSON(t *testing.T) {
	_, _, err := parseResult([]byte(`{not json`))
	var protoErr *session.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("parseResult error = %v, want *ProtocolError", err)
	}
}

func TestDominantSpeaker(t *testing.T) {
	cases := []struct {
		name  string
		words []Word
		want  int
	}{
		{"empty", nil, 0},
		{"single speaker", []Word{{Speaker: 2}, {Speaker: 2}}, 2},
		{"majority wins", []Word{{Speaker: 0}, {Speaker: 1}, {Speaker: 1}}, 1},
		{"tie goes to first encountered", []Word{{Speaker: 1}, {Speaker: 0}, {Speaker: 1}, {Speaker: 0}}, 1},
	}
	for _, tc := range cases {
		if got := dominantSpeaker(tc.words); got != tc.want {
			t.Fatalf("%s: dominantSpeaker = %d, want %d", tc.name, got, tc.want)
		}
	}
}
