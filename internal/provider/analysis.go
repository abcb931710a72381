package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/examguard/platform/internal/guard"
	"github.com/examguard/platform/internal/signal"
)

const (
	capabilityFrames = "frame_analysis"
	capabilityAudio  = "audio_levels"
)

// AnalysisClient calls the media-analysis sidecar that runs the face and
// audio models next to the capture source. It implements both
// signal.FrameAnalyzer and signal.AudioLeveler, with a circuit breaker per
// capability so a crashed model process degrades to DOM-only monitoring
// instead of stalling every capture tick.
type AnalysisClient struct {
	baseURL string
	client  *http.Client
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewAnalysisClient creates a client for the given sidecar base URL.
func NewAnalysisClient(baseURL string, logger *slog.Logger) *AnalysisClient {
	return &AnalysisClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		breaker: guard.NewCircuitBreaker(3, 30*time.Second),
		logger:  logger,
	}
}

// AnalyzeFrame returns the faces detected in the current video frame.
func (c *AnalysisClient) AnalyzeFrame(ctx context.Context) (*signal.Frame, error) {
	var frame signal.Frame
	if err := c.get(ctx, capabilityFrames, "/v1/frame", &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// LevelSample returns frequency-band energy for the current audio window.
func (c *AnalysisClient) LevelSample(ctx context.Context) (*signal.AudioSample, error) {
	var sample signal.AudioSample
	if err := c.get(ctx, capabilityAudio, "/v1/audio", &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

func (c *AnalysisClient) get(ctx context.Context, capability, path string, out interface{}) error {
	if res := c.breaker.Check(ctx, capability); !res.Allowed {
		return fmt.Errorf("%s unavailable: %s", capability, res.Reason)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure(capability)
		return fmt.Errorf("%s call: %w", capability, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure(capability)
		return fmt.Errorf("%s returned %d", capability, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.RecordFailure(capability)
		return fmt.Errorf("decode %s response: %w", capability, err)
	}

	c.breaker.RecordSuccess(capability)
	return nil
}
