package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnitalk/stream-bridge/internal/session"
)

type recognizerMessage struct {
	msgType int
	data    []byte
}

// newRecognizerServer upgrades one connection and forwards every inbound
// message, text and binary alike.
func newRecognizerServer(t *testing.T) (*httptest.Server, chan recognizerMessage) {
	t.Helper()
	received := make(chan recognizerMessage, 16)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- recognizerMessage{msgType: msgType, data: data}
		}
	}))
	return server, received
}

func connectTestClient(t *testing.T, client *Client) {
	t.Helper()
	opened := make(chan struct{})
	client.SetCallbacks(Callbacks{OnOpen: func() { close(opened) }})
	client.Connect(context.Background())
	select {
	case <-opened:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for open")
	}
}

func TestNewClientRequiresEndpointAndKey(t *testing.T) {
	var cfgErr *session.ConfigError

	_, err := NewClient(Config{APIKey: "k"}, Callbacks{}, nil)
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewClient without endpoint = %v, want *ConfigError", err)
	}

	_, err = NewClient(Config{Endpoint: "wss://api.example.com/v1/listen"}, Callbacks{}, nil)
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewClient without api key = %v, want *ConfigError", err)
	}
}

func TestBuildURLQueryParameters(t *testing.T) {
	client, err := NewClient(Config{
		Endpoint:       "wss://api.example.com/v1/listen",
		APIKey:         "secret",
		Model:          "nova-2",
		Language:       "en",
		SampleRate:     16000,
		Channels:       1,
		Punctuate:      true,
		Diarize:        true,
		InterimResults: true,
	}, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	target, err := client.buildURL()
	if err != nil {
		t.Fatalf("buildURL returned error: %v", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("buildURL produced unparseable URL: %v", err)
	}
	q := u.Query()

	want := map[string]string{
		"model":           "nova-2",
		"language":        "en",
		"punctuate":       "true",
		"diarize":         "true",
		"interim_results": "true",
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
	}
	for key, value := range want {
		if got := q.Get(key); got != value {
			t.Fatalf("query %s = %q, want %q", key, got, value)
		}
	}
}

func TestBuildURLDefaultsAudioFormat(t *testing.T) {
	client, err := NewClient(Config{
		Endpoint: "wss://api.example.com/v1/listen",
		APIKey:   "secret",
	}, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	target, err := client.buildURL()
	if err != nil {
		t.Fatalf("buildURL returned error: %v", err)
	}
	u, _ := url.Parse(target)
	q := u.Query()
	if got := q.Get("sample_rate"); got != "16000" {
		t.Fatalf("default sample_rate = %q, want %q", got, "16000")
	}
	if got := q.Get("channels"); got != "1" {
		t.Fatalf("default channels = %q, want %q", got, "1")
	}
	if q.Has("model") {
		t.Fatal("model should be omitted when unset")
	}
}

func TestFinishStreamSendsZeroLengthSentinel(t *testing.T) {
	server, received := newRecognizerServer(t)
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
		APIKey:   "secret",
	}, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()
	connectTestClient(t, client)

	client.FinishStream()

	select {
	case msg := <-received:
		if msg.msgType != websocket.BinaryMessage {
			t.Fatalf("sentinel message type = %d, want %d", msg.msgType, websocket.BinaryMessage)
		}
		if len(msg.data) != 0 {
			t.Fatalf("sentinel payload length = %d, want 0", len(msg.data))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for finish sentinel")
	}

	// Exactly one: nothing else goes out after the sentinel.
	select {
	case msg := <-received:
		t.Fatalf("unexpected extra message after sentinel: type %d, %d bytes", msg.msgType, len(msg.data))
	case <-time.After(300 * time.Millisecond):
	}
}

func TestKeepaliveSentWhileOpen(t *testing.T) {
	server, received := newRecognizerServer(t)
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
		APIKey:   "secret",
	}, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	client.keepaliveEvery = 50 * time.Millisecond
	defer client.Close()
	connectTestClient(t, client)

	select {
	case msg := <-received:
		if msg.msgType != websocket.TextMessage {
			t.Fatalf("keepalive message type = %d, want %d", msg.msgType, websocket.TextMessage)
		}
		if got := string(msg.data); !strings.Contains(got, "KeepAlive") {
			t.Fatalf("keepalive payload = %q, want a KeepAlive control message", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for keepalive")
	}
}

func TestSendAudioWhileClosedDoesNotPanic(t *testing.T) {
	client, err := NewClient(Config{
		Endpoint: "wss://api.example.com/v1/listen",
		APIKey:   "secret",
	}, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	client.SendAudio([]byte{1, 2, 3})
	client.FinishStream()
	if got := client.State(); got != session.StateIdle {
		t.Fatalf("State() = %s, want %s", got, session.StateIdle)
	}
}
