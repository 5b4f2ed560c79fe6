package gesture

import (
	"errors"
	"testing"
	"time"

	"github.com/omnitalk/stream-bridge/internal/session"
)

func newTestClient(t *testing.T, cfg Config, cb Callbacks) *Client {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "ws://127.0.0.1:1"
	}
	client, err := NewClient(cfg, cb, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, Callbacks{}, nil)
	var cfgErr *session.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewClient without base URL = %v, want *ConfigError", err)
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	client := newTestClient(t, Config{}, Callbacks{})
	if client.cfg.TargetFPS != defaultTargetFPS {
		t.Fatalf("TargetFPS = %d, want %d", client.cfg.TargetFPS, defaultTargetFPS)
	}
	if client.cfg.MaxQueueLength != defaultMaxQueueLength {
		t.Fatalf("MaxQueueLength = %d, want %d", client.cfg.MaxQueueLength, defaultMaxQueueLength)
	}
	if client.cfg.ClientID == "" {
		t.Fatal("ClientID should be generated when empty")
	}
	if client.cfg.Language != "ASL" {
		t.Fatalf("Language = %q, want %q", client.cfg.Language, "ASL")
	}
}

func TestSendFrameRequiresStreaming(t *testing.T) {
	client := newTestClient(t, Config{}, Callbacks{})
	if id := client.SendFrame([]byte{1}); id != "" {
		t.Fatalf("SendFrame before start = %q, want empty", id)
	}
}

func TestSendFrameThrottlesToTargetRate(t *testing.T) {
	client := newTestClient(t, Config{TargetFPS: 10}, Callbacks{})

	base := time.Now()
	current := base
	client.now = func() time.Time { return current }

	client.mu.Lock()
	client.streaming = true
	client.mu.Unlock()

	if id := client.SendFrame([]byte{1}); id == "" {
		t.Fatal("first frame should be accepted")
	}

	// 50ms later: under the 100ms interval for 10 fps.
	current = base.Add(50 * time.Millisecond)
	if id := client.SendFrame([]byte{2}); id != "" {
		t.Fatalf("frame inside throttle interval accepted with id %q", id)
	}

	current = base.Add(100 * time.Millisecond)
	if id := client.SendFrame([]byte{3}); id == "" {
		t.Fatal("frame at the throttle interval should be accepted")
	}
}

func TestSendFrameAssignsSequentialIDs(t *testing.T) {
	client := newTestClient(t, Config{ClientID: "cam", TargetFPS: 10}, Callbacks{})

	base := time.Now()
	current := base
	client.now = func() time.Time { return current }

	client.mu.Lock()
	client.streaming = true
	client.mu.Unlock()

	first := client.SendFrame([]byte{1})
	current = base.Add(time.Second)
	second := client.SendFrame([]byte{2})

	if first != "cam-1" || second != "cam-2" {
		t.Fatalf("frame ids = %q, %q, want cam-1, cam-2", first, second)
	}
}

func TestSendFrameReportsQueueOverflow(t *testing.T) {
	overflow := make(chan error, 1)
	client := newTestClient(t, Config{TargetFPS: 1000, MaxQueueLength: 2}, Callbacks{
		OnError: func(err error) {
			select {
			case overflow <- err:
			default:
			}
		},
	})

	base := time.Now()
	current := base
	client.now = func() time.Time { return current }

	client.mu.Lock()
	client.streaming = true
	client.mu.Unlock()

	// No drain loop is running, so the queue fills and then overflows.
	for i := 0; i < 3; i++ {
		current = base.Add(time.Duration(i) * 10 * time.Millisecond)
		client.SendFrame([]byte{byte(i)})
	}

	select {
	case err := <-overflow:
		var capErr *session.CapacityError
		if !errors.As(err, &capErr) {
			t.Fatalf("overflow error type = %T, want *CapacityError", err)
		}
		if capErr.Dropped != 1 {
			t.Fatalf("Dropped = %d, want 1", capErr.Dropped)
		}
	default:
		t.Fatal("queue overflow should surface via OnError")
	}

	client.mu.Lock()
	length := client.queue.Len()
	client.mu.Unlock()
	if length != 2 {
		t.Fatalf("queue length = %d, want 2", length)
	}
}

func TestHandleResultMessageGestureSmoothing(t *testing.T) {
	results := make(chan GestureResult, 8)
	client := newTestClient(t, Config{MinSupport: 3}, Callbacks{
		OnGesture: func(result GestureResult) { results <- result },
	})

	for i := 0; i < 3; i++ {
		client.handleResultMessage([]byte(`{"type":"gesture","frameId":"f","gesture":"wave","confidence":0.9}`))
	}

	var last GestureResult
	for i := 0; i < 3; i++ {
		select {
		case last = <-results:
		default:
			t.Fatalf("missing gesture callback %d", i)
		}
	}
	if !last.Stable || last.Label != "wave" {
		t.Fatalf("result = %+v, want stable label %q", last, "wave")
	}
	if last.RawLabel != "wave" || last.Confidence != 0.9 {
		t.Fatalf("result raw fields = %q, %v, want wave, 0.9", last.RawLabel, last.Confidence)
	}
}

func TestHandleResultMessageFrameProcessed(t *testing.T) {
	processed := make(chan time.Duration, 1)
	client := newTestClient(t, Config{}, Callbacks{
		OnFrameProcessed: func(frameID string, latency time.Duration) { processed <- latency },
	})

	base := time.Now()
	client.now = func() time.Time { return base.Add(80 * time.Millisecond) }
	client.pending.Add("f-1", base)

	client.handleResultMessage([]byte(`{"type":"frame_processed","frameId":"f-1"}`))

	select {
	case latency := <-processed:
		if latency != 80*time.Millisecond {
			t.Fatalf("latency = %v, want %v", latency, 80*time.Millisecond)
		}
	default:
		t.Fatal("frame_processed should fire OnFrameProcessed for a tracked frame")
	}

	// Unknown frame ids resolve nothing and fire nothing.
	client.handleResultMessage([]byte(`{"type":"frame_processed","frameId":"ghost"}`))
	select {
	case <-processed:
		t.Fatal("untracked frame should not fire OnFrameProcessed")
	default:
	}
}

func TestHandleResultMessageUnknownTypeDropped(t *testing.T) {
	fired := false
	client := newTestClient(t, Config{}, Callbacks{
		OnError: func(err error) { fired = true },
	})
	client.handleResultMessage([]byte(`{"type":"telemetry"}`))
	if fired {
		t.Fatal("unknown result type should be dropped without OnError")
	}
}

func TestHandleResultMessageMalformed(t *testing.T) {
	errs := make(chan error, 1)
	client := newTestClient(t, Config{}, Callbacks{
		OnError: func(err error) { errs <- err },
	})
	client.handleResultMessage([]byte(`{broken`))

	select {
	case err := <-errs:
		var protoErr *session.ProtocolError
		if !errors.As(err, &protoErr) {
			t.Fatalf("error type = %T, want *ProtocolError", err)
		}
	default:
		t.Fatal("malformed result should surface via OnError")
	}
}

func TestHandleResultMessageServiceError(t *testing.T) {
	errs := make(chan error, 1)
	client := newTestClient(t, Config{}, Callbacks{
		OnError: func(err error) { errs <- err },
	})
	client.handleResultMessage([]byte(`{"type":"error","error":"model not loaded"}`))

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("service error surfaced as nil")
		}
	default:
		t.Fatal("service error message should surface via OnError")
	}
}

func TestHandleResultMessageFinalText(t *testing.T) {
	texts := make(chan TextResult, 1)
	client := newTestClient(t, Config{}, Callbacks{
		OnFinalText: func(result TextResult) { texts <- result },
	})
	client.handleResultMessage([]byte(`{"type":"final_text","result":{"text":"hello","signs":["h","i"],"confidence":0.8}}`))

	select {
	case result := <-texts:
		if result.Text != "hello" || len(result.Signs) != 2 {
			t.Fatalf("result = %+v, want text hello with 2 signs", result)
		}
	default:
		t.Fatal("final_text should fire OnFinalText")
	}
}
