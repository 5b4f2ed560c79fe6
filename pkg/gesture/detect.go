package gesture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const detectTimeout = 10 * time.Second

// DetectionResult is one classified hand from a single-frame request.
type DetectionResult struct {
	Gesture    string     `json:"gesture"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
	Handedness string     `json:"handedness"`
	Landmarks  []Landmark `json:"landmarks"`
}

// Detection is the response of the synchronous single-frame mode.
type Detection struct {
	HandsDetected int               `json:"hands_detected"`
	Results       []DetectionResult `json:"results"`
}

// DetectFrame classifies a single frame via the service's request/response
// path. It bypasses the queue, throttling and backoff machinery entirely: a
// simple point-in-time classification for non-streaming use.
func (c *Client) DetectFrame(ctx context.Context, image []byte) (*Detection, error) {
	body, err := json.Marshal(map[string]any{
		"image":    base64.StdEncoding.EncodeToString(image),
		"language": c.cfg.Language,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, httpBase(c.cfg.BaseURL)+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: detectTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var detection Detection
	if err := json.NewDecoder(resp.Body).Decode(&detection); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return &detection, nil
}

// httpBase rewrites a websocket base address to its sibling HTTP address.
func httpBase(base string) string {
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	default:
		return base
	}
}
