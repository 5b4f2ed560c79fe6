package ws

import (
	"context"

	"go.uber.org/zap"
)

type incomingHandler func(context.Context, incomingMessage)

func (s *session) dispatchIncoming(ctx context.Context, msg incomingMessage) {
	handlers := map[string]incomingHandler{
		"start-transcription": s.onStartTranscription,
		"stop-transcription":  s.onStopTranscription,
		"mic-audio-data":      s.onMicAudioData,
		"mic-audio-end":       s.onMicAudioEnd,
		"start-detection":     s.onStartDetection,
		"stop-detection":      s.onStopDetection,
		"camera-frame":        s.onCameraFrame,
		"join-room":           s.onJoinRoom,
		"leave-room":          s.onLeaveRoom,
		"signal":              s.onSignal,
		"heartbeat":           s.onNoop,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.clientUID),
		zap.String("type", msg.Type),
	)
}

func (s *session) onStartTranscription(ctx context.Context, _ incomingMessage) {
	s.ensureTranscriber(ctx)
}

func (s *session) onStopTranscription(_ context.Context, _ incomingMessage) {
	s.mu.Lock()
	transcriber := s.transcriber
	s.mu.Unlock()
	if transcriber != nil {
		transcriber.Close()
	}
}

func (s *session) onMicAudioData(_ context.Context, msg incomingMessage) {
	s.handleMicAudio(msg)
}

func (s *session) onMicAudioEnd(_ context.Context, _ incomingMessage) {
	s.finishAudio()
}

func (s *session) onStartDetection(ctx context.Context, _ incomingMessage) {
	s.ensureDetector(ctx)
}

func (s *session) onStopDetection(_ context.Context, _ incomingMessage) {
	s.mu.Lock()
	detector := s.detector
	s.mu.Unlock()
	if detector != nil {
		detector.StopRealTimeDetection()
	}
}

func (s *session) onCameraFrame(_ context.Context, msg incomingMessage) {
	s.handleCameraFrame(msg)
}

func (s *session) onJoinRoom(ctx context.Context, msg incomingMessage) {
	s.joinRoom(ctx, msg.Room)
}

func (s *session) onLeaveRoom(_ context.Context, _ incomingMessage) {
	s.mu.Lock()
	signaler := s.signaler
	s.signaler = nil
	s.room = ""
	s.mu.Unlock()
	if signaler != nil {
		signaler.Disconnect()
	}
}

func (s *session) onSignal(_ context.Context, msg incomingMessage) {
	s.mu.Lock()
	signaler := s.signaler
	s.mu.Unlock()
	if signaler == nil {
		s.sendJSON(map[string]any{"type": "error", "message": "join a room before signaling"})
		return
	}
	if err := signaler.Send(msg.SignalType, msg.Payload); err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
	}
}

func (s *session) onNoop(_ context.Context, _ incomingMessage) {}
