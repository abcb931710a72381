package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm identifies the JWT authentication realm.
type Realm string

const (
	RealmCandidate Realm = "candidate"
	RealmProctor   Realm = "proctor"
)

// Claims holds the custom JWT claims for both realms.
type Claims struct {
	jwt.RegisteredClaims
	Realm Realm  `json:"realm"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"` // proctor realm: viewer, proctor, admin
	// SessionID scopes a candidate token to a single exam session.
	SessionID string `json:"sessionId,omitempty"`
}

// JWTManager handles token generation and validation for both realms.
type JWTManager struct {
	secret          []byte
	candidateExpiry time.Duration
	proctorExpiry   time.Duration
}

// NewJWTManager creates a JWT manager with realm-specific expiry durations.
func NewJWTManager(secret string, candidateExpiry, proctorExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:          []byte(secret),
		candidateExpiry: candidateExpiry,
		proctorExpiry:   proctorExpiry,
	}
}

// GenerateCandidateToken creates a signed JWT scoped to one exam session.
func (m *JWTManager) GenerateCandidateToken(studentID, sessionID uuid.UUID) (string, error) {
	return m.generate(RealmCandidate, studentID, "", "", sessionID.String(), m.candidateExpiry)
}

// GenerateProctorToken creates a signed JWT for proctor dashboard access.
func (m *JWTManager) GenerateProctorToken(proctorID uuid.UUID, email, role string) (string, error) {
	return m.generate(RealmProctor, proctorID, email, role, "", m.proctorExpiry)
}

func (m *JWTManager) generate(realm Realm, subjectID uuid.UUID, email, role, sessionID string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Realm:     realm,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateTokenForRealm validates a token and ensures it belongs to the expected realm.
func (m *JWTManager) ValidateTokenForRealm(tokenString string, expectedRealm Realm) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Realm != expectedRealm {
		return nil, fmt.Errorf("expected realm %s, got %s", expectedRealm, claims.Realm)
	}
	return claims, nil
}
