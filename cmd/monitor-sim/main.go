package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/examguard/platform/internal/detector"
	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/provider"
	sig "github.com/examguard/platform/internal/signal"
	"github.com/google/uuid"
)

// Simulates browser monitors for a batch of candidates: scripted camera,
// audio, and DOM signals run through the real detector, with every emitted
// event posted to a running API server. Useful for load checks and for
// watching the dashboard move without a real exam.
func main() {
	var (
		apiURL     = flag.String("api", "http://localhost:3200", "base URL of the API server")
		examIDStr  = flag.String("exam", "", "exam UUID (random if empty)")
		candidates = flag.Int("candidates", 5, "number of simulated candidates")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		sidecar    = flag.String("sidecar", "", "media-analysis sidecar URL; when set, one candidate runs live capture instead of a script")
		duration   = flag.Duration("duration", 2*time.Minute, "live capture duration (sidecar mode)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	examID := uuid.New()
	if *examIDStr != "" {
		parsed, err := uuid.Parse(*examIDStr)
		if err != nil {
			logger.Error("invalid exam id", "error", err)
			os.Exit(1)
		}
		examID = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(*seed))
	logger.Info("monitor-sim starting", "api", *apiURL, "exam_id", examID, "candidates", *candidates, "seed", *seed)

	if *sidecar != "" {
		if err := runLiveCandidate(ctx, *apiURL, *sidecar, examID, *duration, logger); err != nil {
			logger.Error("live candidate failed", "error", err)
			os.Exit(1)
		}
		return
	}

	for i := 0; i < *candidates; i++ {
		if err := runCandidate(ctx, *apiURL, examID, rng.Int63(), logger); err != nil {
			logger.Error("candidate run failed", "candidate", i, "error", err)
		}
	}
}

// runLiveCandidate drives one session from real sidecar capture: the signal
// adapter polls the analysis service on its cadence and the detector
// consumes the resulting stream until the duration elapses.
func runLiveCandidate(ctx context.Context, apiURL, sidecarURL string, examID uuid.UUID, duration time.Duration, logger *slog.Logger) error {
	client := &apiClient{base: apiURL, client: &http.Client{Timeout: 10 * time.Second}}

	startedAt := time.Now()
	var startResp struct {
		Session struct {
			ID uuid.UUID `json:"id"`
		} `json:"session"`
		Token string `json:"token"`
	}
	status, err := client.post(ctx, "/sessions", map[string]string{
		"exam_id":    examID.String(),
		"student_id": uuid.New().String(),
	}, &startResp)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("start session: status %d", status)
	}
	client.token = startResp.Token
	sessionID := startResp.Session.ID

	analysis := provider.NewAnalysisClient(sidecarURL, logger)
	adapter := sig.NewAdapter(sessionID, analysis, analysis, sig.DefaultCadence, logger)

	sink := newHTTPSink(client, sessionID, logger)
	det := detector.New(detector.DefaultConfig(), sink, logger)
	det.Start(sessionID, examID, startedAt)
	defer det.Stop(sessionID)

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	go adapter.Run(runCtx)
	if err := det.Consume(runCtx, adapter.Signals()); err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	_, err = client.post(ctx, "/sessions/"+sessionID.String()+"/end", nil, nil)
	return err
}

type apiClient struct {
	base   string
	client *http.Client
	token  string
}

func (c *apiClient) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// httpSink posts detector events to the ingestion endpoint and remembers
// whether the server terminated the session.
type httpSink struct {
	client     *apiClient
	sessionID  uuid.UUID
	terminated bool
	logger     *slog.Logger
}

func newHTTPSink(client *apiClient, sessionID uuid.UUID, logger *slog.Logger) *httpSink {
	return &httpSink{client: client, sessionID: sessionID, logger: logger}
}

func (s *httpSink) Record(ctx context.Context, event domain.ViolationEvent) error {
	var resp struct {
		Terminated bool   `json:"terminated"`
		Reason     string `json:"reason"`
	}
	status, err := s.client.post(ctx, "/sessions/"+s.sessionID.String()+"/events", map[string]interface{}{
		"event_type":     event.Type,
		"severity":       event.Severity,
		"description":    event.Description,
		"metadata":       event.Metadata,
		"time_into_exam": event.TimeIntoExam,
		"timestamp":      event.Timestamp.Format(time.RFC3339Nano),
	}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("ingest: status %d", status)
	}
	s.logger.Info("violation posted", "type", event.Type, "terminated", resp.Terminated)
	if resp.Terminated {
		s.terminated = true
	}
	return nil
}

func runCandidate(ctx context.Context, apiURL string, examID uuid.UUID, seed int64, logger *slog.Logger) error {
	client := &apiClient{base: apiURL, client: &http.Client{Timeout: 10 * time.Second}}

	startedAt := time.Now().Add(-30 * time.Minute)
	var startResp struct {
		Session struct {
			ID uuid.UUID `json:"id"`
		} `json:"session"`
		Token string `json:"token"`
	}
	status, err := client.post(ctx, "/sessions", map[string]string{
		"exam_id":    examID.String(),
		"student_id": uuid.New().String(),
		"started_at": startedAt.Format(time.RFC3339),
	}, &startResp)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("start session: status %d", status)
	}
	client.token = startResp.Token
	sessionID := startResp.Session.ID
	logger.Info("session started", "session_id", sessionID)

	sink := newHTTPSink(client, sessionID, logger)
	det := detector.New(detector.DefaultConfig(), sink, logger)
	det.Start(sessionID, examID, startedAt)
	defer det.Stop(sessionID)

	rng := rand.New(rand.NewSource(seed))
	for _, s := range buildScript(sessionID, startedAt, rng) {
		if sink.terminated {
			logger.Warn("session terminated by server, stopping monitor", "session_id", sessionID)
			return nil
		}
		if err := det.Tick(ctx, s); err != nil {
			return fmt.Errorf("tick: %w", err)
		}
	}

	status, err = client.post(ctx, "/sessions/"+sessionID.String()+"/end", nil, nil)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	logger.Info("session ended", "session_id", sessionID, "status", status)
	return nil
}

// buildScript produces a half-hour signal trace: mostly clean frames with
// randomly placed tab switches, gaze drifts, and clipboard attempts.
func buildScript(sessionID uuid.UUID, startedAt time.Time, rng *rand.Rand) []sig.Signal {
	descriptor := randomDescriptor(rng)
	var script []sig.Signal

	at := startedAt
	push := func(s sig.Signal) {
		s.SessionID = sessionID
		s.At = at
		script = append(script, s)
	}

	for step := 0; step < 600; step++ {
		at = at.Add(2 * time.Second)

		switch roll := rng.Float64(); {
		case roll < 0.02:
			push(sig.Signal{DOM: &sig.DOMSignal{Kind: sig.DOMVisibilityHidden}})
		case roll < 0.03:
			push(sig.Signal{DOM: &sig.DOMSignal{Kind: sig.DOMKeyCombo, Combo: sig.ComboCopy}})
		case roll < 0.04:
			// Gaze drift: away frames for the next few steps trip the
			// hold timer.
			for i := 0; i < 3; i++ {
				push(sig.Signal{Frame: frameWith(descriptor, 45)})
				at = at.Add(2 * time.Second)
			}
		case roll < 0.045:
			push(sig.Signal{Frame: &sig.Frame{CapturedAt: at}}) // empty frame, no face
		default:
			push(sig.Signal{Frame: frameWith(descriptor, 0)})
		}
	}
	return script
}

func frameWith(descriptor []float64, noseOffset float64) *sig.Frame {
	return &sig.Frame{
		Faces: []sig.FaceDetection{{
			Descriptor: descriptor,
			Landmarks: sig.Landmarks{
				LeftEye:  sig.Point{X: 90, Y: 100},
				RightEye: sig.Point{X: 110, Y: 100},
				Nose:     sig.Point{X: 100 + noseOffset, Y: 120},
			},
			Expressions: map[string]float64{"neutral": 0.9},
		}},
	}
}

func randomDescriptor(rng *rand.Rand) []float64 {
	d := make([]float64, 128)
	for i := range d {
		d[i] = rng.Float64()
	}
	return d
}
