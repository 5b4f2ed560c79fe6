package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "transcribe:\n  api_key: test-key\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Transcribe.Model != "nova-2" {
		t.Fatalf("Transcribe.Model = %q, want %q", cfg.Transcribe.Model, "nova-2")
	}
	if cfg.Transcribe.SampleRate != 16000 {
		t.Fatalf("Transcribe.SampleRate = %d, want %d", cfg.Transcribe.SampleRate, 16000)
	}
	if cfg.Transcribe.APIKey != "test-key" {
		t.Fatalf("Transcribe.APIKey = %q, want %q", cfg.Transcribe.APIKey, "test-key")
	}
	if cfg.Gesture.TargetFPS != 15 {
		t.Fatalf("Gesture.TargetFPS = %d, want %d", cfg.Gesture.TargetFPS, 15)
	}
	if cfg.Gesture.MaxQueueLength != 30 {
		t.Fatalf("Gesture.MaxQueueLength = %d, want %d", cfg.Gesture.MaxQueueLength, 30)
	}
	if cfg.Signaling.HeartbeatIntervalMs != 15000 {
		t.Fatalf("Signaling.HeartbeatIntervalMs = %d, want %d", cfg.Signaling.HeartbeatIntervalMs, 15000)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeTempConfig(t, `
transcribe:
  language: uk
  diarize: false
gesture:
  target_fps: 30
  use_binary_frames: false
signaling:
  max_reconnect_attempts: 9
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Transcribe.Language != "uk" {
		t.Fatalf("Transcribe.Language = %q, want %q", cfg.Transcribe.Language, "uk")
	}
	if cfg.Transcribe.Diarize {
		t.Fatal("Transcribe.Diarize = true, want false")
	}
	if cfg.Gesture.TargetFPS != 30 {
		t.Fatalf("Gesture.TargetFPS = %d, want %d", cfg.Gesture.TargetFPS, 30)
	}
	if cfg.Gesture.UseBinaryFrames {
		t.Fatal("Gesture.UseBinaryFrames = true, want false")
	}
	if cfg.Signaling.MaxReconnectAttempts != 9 {
		t.Fatalf("Signaling.MaxReconnectAttempts = %d, want %d", cfg.Signaling.MaxReconnectAttempts, 9)
	}
}

func TestLoadConfigDerivesHTTPAddr(t *testing.T) {
	path := writeTempConfig(t, "system_config:\n  host: 0.0.0.0\n  port: 9000\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "0.0.0.0:9000")
	}
}

func TestLoadConfigDefaultHTTPAddr(t *testing.T) {
	path := writeTempConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:8210" {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:8210")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("OMNI_TRANSCRIBE_LANGUAGE", "fr")
	path := writeTempConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Transcribe.Language != "fr" {
		t.Fatalf("Transcribe.Language = %q, want %q", cfg.Transcribe.Language, "fr")
	}
}

func TestReadRoomOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rooms.yaml")
	content := `
rooms:
  lobby:
    language: BSL
    target_fps: 10
  studio:
    target_fps: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rooms file: %v", err)
	}

	rooms, err := ReadRoomOverrides(path)
	if err != nil {
		t.Fatalf("ReadRoomOverrides returned error: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(rooms))
	}
	if rooms["lobby"].Language != "BSL" || rooms["lobby"].TargetFPS != 10 {
		t.Fatalf("lobby override = %+v, want {BSL 10}", rooms["lobby"])
	}
	if rooms["studio"].TargetFPS != 30 {
		t.Fatalf("studio target fps = %d, want 30", rooms["studio"].TargetFPS)
	}
}

func TestReadRoomOverridesMissingFile(t *testing.T) {
	rooms, err := ReadRoomOverrides(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("ReadRoomOverrides returned error: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("len(rooms) = %d, want 0", len(rooms))
	}
}
