// Package ws bridges the device capture page to the three streaming clients.
// Each device connection owns one transcription client, one gesture client
// and one signaling client; capture input flows in, recognition and presence
// events flow back out.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appconfig "github.com/omnitalk/stream-bridge/internal/config"
	"github.com/omnitalk/stream-bridge/pkg/audio"
	"github.com/omnitalk/stream-bridge/pkg/gesture"
	"github.com/omnitalk/stream-bridge/pkg/signaling"
	"github.com/omnitalk/stream-bridge/pkg/transcribe"
)

const targetSampleRate = 16000

// Handler represents a handler.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	config   appconfig.Config
	rooms    map[string]appconfig.RoomOverride
	sessions map[string]*session
	mu       sync.Mutex
}

type session struct {
	conn    *websocket.Conn
	sendMu  sync.Mutex
	logger  *zap.Logger
	handler *Handler

	clientUID string

	mu           sync.Mutex
	room         string
	transcriber  *transcribe.Client
	detector     *gesture.Client
	signaler     *signaling.Client
	resampler    *audio.StreamResampler
	resampleRate int
}

// NewHandler executes the newHandler function.
func NewHandler(logger *zap.Logger, cfg appconfig.Config, rooms map[string]appconfig.RoomOverride) *Handler {
	if rooms == nil {
		rooms = map[string]appconfig.RoomOverride{}
	}
	return &Handler{
		logger:   logger,
		config:   cfg,
		rooms:    rooms,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ActiveSessions reports the number of connected devices.
func (h *Handler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Handle executes the handle method.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		conn:      conn,
		logger:    h.logger,
		handler:   h,
		clientUID: uuid.NewString(),
	}

	sess.logger.Info("device session opened", zap.String("session_id", sess.clientUID))
	h.registerSession(sess)
	defer func() {
		h.unregisterSession(sess)
		sess.cleanup()
		sess.logger.Info("device session closed", zap.String("session_id", sess.clientUID))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg incomingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.logger.Warn("device message discarded", zap.Error(err))
			continue
		}
		sess.dispatchIncoming(ctx, msg)
	}
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.clientUID] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess.clientUID)
	h.mu.Unlock()
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("device send failed", zap.Error(err))
	}
}

func (s *session) cleanup() {
	s.mu.Lock()
	transcriber := s.transcriber
	detector := s.detector
	signaler := s.signaler
	resampler := s.resampler
	s.transcriber = nil
	s.detector = nil
	s.signaler = nil
	s.resampler = nil
	s.mu.Unlock()

	if transcriber != nil {
		transcriber.Close()
	}
	if detector != nil {
		detector.StopRealTimeDetection()
	}
	if signaler != nil {
		signaler.Disconnect()
	}
	if resampler != nil {
		resampler.Close()
	}
}

// roomOverride returns the per-room tuning for the session's current room.
func (s *session) roomOverride() appconfig.RoomOverride {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return s.handler.rooms[room]
}

func (s *session) ensureTranscriber(ctx context.Context) {
	s.mu.Lock()
	if s.transcriber != nil {
		s.mu.Unlock()
		s.transcriber.Connect(ctx)
		return
	}
	s.mu.Unlock()

	cfg := s.handler.config.Transcribe
	client, err := transcribe.NewClient(transcribe.Config{
		Endpoint:       cfg.Endpoint,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		Language:       cfg.Language,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		Punctuate:      cfg.Punctuate,
		Diarize:        cfg.Diarize,
		InterimResults: cfg.InterimResults,
	}, transcribe.Callbacks{
		OnOpen: func() {
			s.sendJSON(map[string]any{"type": "transcription-ready"})
		},
		OnTranscript: s.onTranscript,
		OnClose: func(err error) {
			if err != nil {
				s.sendJSON(map[string]any{"type": "transcription-closed", "message": err.Error()})
				return
			}
			s.sendJSON(map[string]any{"type": "transcription-closed"})
		},
		OnError: s.onClientError,
	}, s.logger)
	if err != nil {
		s.logger.Error("transcribe client init failed", zap.Error(err))
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.transcriber = client
	s.mu.Unlock()
	client.Connect(ctx)
}

func (s *session) ensureDetector(ctx context.Context) {
	s.mu.Lock()
	if s.detector != nil {
		s.mu.Unlock()
		s.detector.StartRealTimeDetection(ctx)
		return
	}
	s.mu.Unlock()

	cfg := s.handler.config.Gesture
	override := s.roomOverride()
	language := cfg.Language
	if override.Language != "" {
		language = override.Language
	}
	targetFPS := cfg.TargetFPS
	if override.TargetFPS > 0 {
		targetFPS = override.TargetFPS
	}

	client, err := gesture.NewClient(gesture.Config{
		BaseURL:              cfg.BaseURL,
		ClientID:             s.clientUID,
		Language:             language,
		TargetFPS:            targetFPS,
		MaxQueueLength:       cfg.MaxQueueLength,
		UseBinaryFrames:      cfg.UseBinaryFrames,
		ReconnectBaseDelay:   msDuration(cfg.ReconnectBaseDelayMs),
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, gesture.Callbacks{
		OnGesture:     s.onGesture,
		OnPartialText: s.onPartialText,
		OnFinalText:   s.onFinalText,
		OnError:       s.onClientError,
		OnFatal: func(err error) {
			s.sendJSON(map[string]any{"type": "detection-failed", "message": err.Error()})
		},
	}, s.logger)
	if err != nil {
		s.logger.Error("gesture client init failed", zap.Error(err))
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.detector = client
	s.mu.Unlock()
	client.StartRealTimeDetection(ctx)
}

func (s *session) joinRoom(ctx context.Context, room string) {
	if room == "" {
		s.sendJSON(map[string]any{"type": "error", "message": "room is required"})
		return
	}

	s.mu.Lock()
	previous := s.signaler
	s.signaler = nil
	s.room = room
	s.mu.Unlock()
	if previous != nil {
		previous.Disconnect()
	}

	cfg := s.handler.config.Signaling
	client, err := signaling.NewClient(signaling.Config{
		BaseURL:              cfg.BaseURL,
		Room:                 room,
		ParticipantID:        s.clientUID,
		HeartbeatInterval:    msDuration(cfg.HeartbeatIntervalMs),
		ReconnectBaseDelay:   msDuration(cfg.ReconnectBaseDelayMs),
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, signaling.Callbacks{
		OnOpen: func() {
			s.sendJSON(map[string]any{"type": "room-joined", "room": room})
		},
		OnTranscript: func(payload json.RawMessage, senderID string) {
			s.sendJSON(map[string]any{"type": "remote-transcript", "sender": senderID, "payload": payload})
		},
		OnGestureResult: func(payload json.RawMessage, senderID string) {
			s.sendJSON(map[string]any{"type": "remote-gesture", "sender": senderID, "payload": payload})
		},
		OnParticipantJoined: func(participantID string) {
			s.sendJSON(map[string]any{"type": "participant-joined", "participant": participantID})
		},
		OnParticipantLeft: func(participantID string) {
			s.sendJSON(map[string]any{"type": "participant-left", "participant": participantID})
		},
		OnSpeakerChange: func(payload json.RawMessage, senderID string) {
			s.sendJSON(map[string]any{"type": "speaker-change", "sender": senderID, "payload": payload})
		},
		OnFatal: func(err error) {
			s.sendJSON(map[string]any{"type": "room-lost", "room": room, "message": err.Error()})
		},
		OnError: s.onClientError,
	}, s.logger)
	if err != nil {
		s.logger.Error("signaling client init failed", zap.Error(err))
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.signaler = client
	s.mu.Unlock()
	client.Connect(ctx)
}

// handleMicAudio converts one capture chunk to 16 kHz mono PCM and forwards
// it. Conversion is the only buffering on the audio path.
func (s *session) handleMicAudio(msg incomingMessage) {
	s.mu.Lock()
	transcriber := s.transcriber
	s.mu.Unlock()
	if transcriber == nil {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(msg.AudioPCM)
	if err != nil {
		s.logger.Warn("mic audio discarded: bad base64", zap.Error(err))
		return
	}
	pcm := audio.BytesToPCM16(raw)
	if len(pcm) == 0 {
		return
	}

	channels := msg.AudioCh
	if channels <= 0 {
		channels = 1
	}
	pcm = audio.DownmixToMono(pcm, channels)

	rate := msg.AudioRate
	if rate <= 0 {
		rate = targetSampleRate
	}
	if rate != targetSampleRate {
		pcm = s.resample(pcm, rate)
		if len(pcm) == 0 {
			return
		}
	}

	transcriber.SendAudio(audio.PCM16ToBytes(pcm))
}

func (s *session) resample(pcm []int16, rate int) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resampler == nil || s.resampleRate != rate {
		if s.resampler != nil {
			s.resampler.Close()
		}
		resampler, err := audio.NewStreamResampler(rate, targetSampleRate)
		if err != nil {
			s.logger.Warn("resampler init failed", zap.Int("rate", rate), zap.Error(err))
			return nil
		}
		s.resampler = resampler
		s.resampleRate = rate
	}

	if err := s.resampler.AppendPCM(pcm); err != nil {
		s.logger.Warn("resample failed", zap.Error(err))
		return nil
	}
	return s.resampler.Drain()
}

func (s *session) finishAudio() {
	s.mu.Lock()
	transcriber := s.transcriber
	resampler := s.resampler
	s.mu.Unlock()
	if transcriber == nil {
		return
	}

	if resampler != nil {
		if err := resampler.Flush(); err == nil {
			if tail := resampler.Drain(); len(tail) > 0 {
				transcriber.SendAudio(audio.PCM16ToBytes(tail))
			}
		}
	}
	transcriber.FinishStream()
}

func (s *session) handleCameraFrame(msg incomingMessage) {
	s.mu.Lock()
	detector := s.detector
	s.mu.Unlock()
	if detector == nil {
		return
	}

	payload, err := base64.StdEncoding.DecodeString(msg.Image)
	if err != nil {
		s.logger.Warn("camera frame discarded: bad base64", zap.Error(err))
		return
	}
	detector.SendFrame(payload)
}

func (s *session) onTranscript(event transcribe.TranscriptEvent) {
	s.sendJSON(map[string]any{
		"type":       "transcript",
		"text":       event.Text,
		"is_final":   event.IsFinal,
		"confidence": event.Confidence,
		"speaker":    event.Speaker,
	})

	if !event.IsFinal {
		return
	}
	s.mu.Lock()
	signaler := s.signaler
	s.mu.Unlock()
	if signaler != nil {
		_ = signaler.Send(signaling.TypeTranscript, map[string]any{
			"text":    event.Text,
			"speaker": event.Speaker,
		})
	}
}

func (s *session) onGesture(result gesture.GestureResult) {
	s.sendJSON(map[string]any{
		"type":       "gesture",
		"gesture":    result.Label,
		"raw":        result.RawLabel,
		"confidence": result.Confidence,
		"stable":     result.Stable,
	})

	if !result.Stable {
		return
	}
	s.mu.Lock()
	signaler := s.signaler
	s.mu.Unlock()
	if signaler != nil {
		_ = signaler.Send(signaling.TypeGestureResult, map[string]any{
			"gesture":    result.Label,
			"confidence": result.Confidence,
		})
	}
}

func (s *session) onPartialText(text string) {
	s.sendJSON(map[string]any{"type": "sign-partial-text", "text": text})
}

func (s *session) onFinalText(result gesture.TextResult) {
	s.sendJSON(map[string]any{
		"type":       "sign-final-text",
		"text":       result.Text,
		"signs":      result.Signs,
		"confidence": result.Confidence,
	})
}

func (s *session) onClientError(err error) {
	s.logger.Warn("streaming degradation", zap.Error(err))
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
