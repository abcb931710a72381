package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret", time.Hour, 8*time.Hour)
}

func TestCandidateToken_RoundTrip(t *testing.T) {
	mgr := newTestManager()
	studentID := uuid.New()
	sessionID := uuid.New()

	token, err := mgr.GenerateCandidateToken(studentID, sessionID)
	require.NoError(t, err)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RealmCandidate, claims.Realm)
	assert.Equal(t, studentID.String(), claims.Subject)
	assert.Equal(t, sessionID.String(), claims.SessionID)
	assert.Empty(t, claims.Role)
}

func TestProctorToken_RoundTrip(t *testing.T) {
	mgr := newTestManager()
	proctorID := uuid.New()

	token, err := mgr.GenerateProctorToken(proctorID, "proctor@example.com", RoleProctor)
	require.NoError(t, err)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RealmProctor, claims.Realm)
	assert.Equal(t, "proctor@example.com", claims.Email)
	assert.Equal(t, RoleProctor, claims.Role)
	assert.Empty(t, claims.SessionID)
}

func TestValidateTokenForRealm_RejectsCrossRealm(t *testing.T) {
	mgr := newTestManager()

	token, err := mgr.GenerateCandidateToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmProctor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected realm")
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	token, err := newTestManager().GenerateCandidateToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	other := NewJWTManager("different-secret", time.Hour, time.Hour)
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute, -time.Minute)

	token, err := mgr.GenerateCandidateToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	_, err := newTestManager().ValidateToken("not-a-token")
	require.Error(t, err)
}
