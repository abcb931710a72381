//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/examguard/platform/internal/app"
	"github.com/examguard/platform/internal/auth"
	"github.com/examguard/platform/internal/policy"
	"github.com/examguard/platform/test/integration/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sessionStart() time.Time {
	return time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
}

func TestSessionFlow_StartIngestEnd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	examID, studentID := uuid.New(), uuid.New()

	sessionID, token := env.StartSession(examID, studentID, start)

	terminated, _ := env.IngestEvent(sessionID, token, "tab_switch", "warning", start.Add(2*time.Minute))
	assert.False(t, terminated)
	assert.Equal(t, 1, testutil.CountEvents(t, env, sessionID))

	resp := env.POST(fmt.Sprintf("/sessions/%s/end", sessionID), nil, token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "submitted", testutil.SessionStatus(t, env, sessionID))

	// Events after submission are rejected
	post := env.POST(fmt.Sprintf("/sessions/%s/events", sessionID), map[string]interface{}{
		"event_type":     "tab_switch",
		"severity":       "warning",
		"description":    "late event",
		"time_into_exam": 60,
		"timestamp":      start.Add(3 * time.Minute),
	}, token)
	testutil.AssertStatus(t, post, http.StatusConflict)
	testutil.AssertErrorCode(t, post, "SESSION_CLOSED")
}

func TestSessionFlow_RedeliveredEventIsNoOp(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	sessionID, token := env.StartSession(uuid.New(), uuid.New(), start)

	at := start.Add(5 * time.Minute)
	env.IngestEvent(sessionID, token, "copy_paste", "warning", at)
	env.IngestEvent(sessionID, token, "copy_paste", "warning", at)

	assert.Equal(t, 1, testutil.CountEvents(t, env, sessionID))
}

func TestSessionFlow_SynchronousTermination(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	sessionID, token := env.StartSession(uuid.New(), uuid.New(), start)

	var terminated bool
	var reason string
	for i := 0; i < 5 && !terminated; i++ {
		terminated, reason = env.IngestEvent(sessionID, token, "dev_tools_open", "critical",
			start.Add(time.Duration(i+1)*time.Minute))
	}

	require.True(t, terminated)
	assert.NotEmpty(t, reason)
	assert.Equal(t, "terminated", testutil.SessionStatus(t, env, sessionID))

	// Session start, each violation, and the termination all hit the outbox
	assert.GreaterOrEqual(t, testutil.CountOutboxEvents(t, env, sessionID), 3)
}

func TestSessionFlow_RehydratesAfterRestart(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	sessionID, token := env.StartSession(uuid.New(), uuid.New(), start)
	env.IngestEvent(sessionID, token, "face_mismatch", "critical", start.Add(3*time.Minute))
	env.IngestEvent(sessionID, token, "tab_switch", "warning", start.Add(8*time.Minute))

	// Simulate a process restart: a fresh router over the same database
	// has no in-memory state and must rebuild it from the persisted log.
	router, _ := app.NewRouter(app.RouterDeps{
		Pool:              env.Pool,
		JWTMgr:            env.JWTMgr,
		Logger:            testLogger(),
		TerminationPolicy: policy.DefaultTerminationPolicy(),
	})
	restarted := httptest.NewServer(router)
	defer restarted.Close()

	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/sessions/%s/summary", restarted.URL, sessionID), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.ProctorToken(auth.RoleProctor))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		TotalViolations int `json:"total_violations"`
		RiskScore       int `json:"risk_score"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 2, summary.TotalViolations)
	assert.Greater(t, summary.RiskScore, 0)
}

func TestDashboard_ReflectsLiveSessions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	examID := uuid.New()

	s1, t1 := env.StartSession(examID, uuid.New(), start)
	s2, t2 := env.StartSession(examID, uuid.New(), start)
	env.IngestEvent(s1, t1, "tab_switch", "warning", start.Add(2*time.Minute))
	env.IngestEvent(s2, t2, "multiple_faces", "critical", start.Add(4*time.Minute))
	env.IngestEvent(s2, t2, "no_face", "warning", start.Add(6*time.Minute))

	resp := env.AuthGET(fmt.Sprintf("/exams/%s/dashboard", examID), env.ProctorToken(auth.RoleViewer))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dash struct {
		Overview struct {
			ActiveStudents  int `json:"active_students"`
			TotalViolations int `json:"total_violations"`
		} `json:"overview"`
		Students []struct {
			SessionID uuid.UUID `json:"session_id"`
			RiskScore int       `json:"risk_score"`
		} `json:"students"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dash))
	assert.Equal(t, 2, dash.Overview.ActiveStudents)
	assert.Equal(t, 3, dash.Overview.TotalViolations)
	require.Len(t, dash.Students, 2)
	// Sorted riskiest first
	assert.Equal(t, s2, dash.Students[0].SessionID)
	assert.GreaterOrEqual(t, dash.Students[0].RiskScore, dash.Students[1].RiskScore)
}

func TestExport_RequiresReviewRole(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	examID := uuid.New()
	sessionID, token := env.StartSession(examID, uuid.New(), start)
	env.IngestEvent(sessionID, token, "copy_paste", "warning", start.Add(2*time.Minute))

	resp := env.AuthGET(fmt.Sprintf("/exams/%s/export?format=csv", examID), env.ProctorToken(auth.RoleViewer))
	testutil.AssertStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.AuthGET(fmt.Sprintf("/exams/%s/export?format=csv", examID), env.ProctorToken(auth.RoleProctor))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "copy_paste")
}

func TestAuth_CandidateTokenScopedToSession(t *testing.T) {
	env := testutil.NewTestEnv(t)
	start := sessionStart()
	sessionA, _ := env.StartSession(uuid.New(), uuid.New(), start)
	_, tokenB := env.StartSession(uuid.New(), uuid.New(), start)

	resp := env.POST(fmt.Sprintf("/sessions/%s/events", sessionA), map[string]interface{}{
		"event_type":     "tab_switch",
		"severity":       "warning",
		"description":    "cross session",
		"time_into_exam": 60,
		"timestamp":      start.Add(time.Minute),
	}, tokenB)
	testutil.AssertStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	// Proctor tokens cannot ingest either
	resp = env.POST(fmt.Sprintf("/sessions/%s/events", sessionA), map[string]interface{}{
		"event_type":     "tab_switch",
		"severity":       "warning",
		"description":    "wrong realm",
		"time_into_exam": 60,
		"timestamp":      start.Add(time.Minute),
	}, env.ProctorToken(auth.RoleAdmin))
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}
