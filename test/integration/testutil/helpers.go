//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
)

// StartSession registers a new monitored session and returns its ID and
// the candidate token minted for it.
func (env *TestEnv) StartSession(examID, studentID uuid.UUID, startedAt time.Time) (sessionID uuid.UUID, token string) {
	env.t.Helper()
	resp := env.POST("/sessions", map[string]interface{}{
		"exam_id":    examID,
		"student_id": studentID,
		"started_at": startedAt,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("StartSession: expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		Session domain.Session `json:"session"`
		Token   string         `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("StartSession: decode: %v", err)
	}
	return result.Session.ID, result.Token
}

// IngestEvent posts a violation event for the session and returns the
// termination outcome.
func (env *TestEnv) IngestEvent(sessionID uuid.UUID, token string, eventType domain.EventType, severity domain.Severity, at time.Time) (terminated bool, reason string) {
	env.t.Helper()
	resp := env.POST(fmt.Sprintf("/sessions/%s/events", sessionID), map[string]interface{}{
		"event_type":     eventType,
		"severity":       severity,
		"description":    string(eventType),
		"time_into_exam": 60,
		"timestamp":      at,
	}, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("IngestEvent: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Terminated bool   `json:"terminated"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("IngestEvent: decode: %v", err)
	}
	return result.Terminated, result.Reason
}

// ProctorToken mints a proctor-realm token with the given role.
func (env *TestEnv) ProctorToken(role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateProctorToken(uuid.New(), "proctor@examguard.test", role)
	if err != nil {
		env.t.Fatalf("ProctorToken: %v", err)
	}
	return token
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// AuthGET performs a GET request with a bearer token.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// POST performs a JSON POST request, with an optional bearer token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}
