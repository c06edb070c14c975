package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-radar/internal/config"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	return NewJWTService(&config.AuthConfig{
		Secret:   "test-secret-key-for-jwt-signing",
		TokenTTL: 24 * time.Hour,
		Issuer:   "job-radar",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	s := newTestJWTService(t)

	token, err := s.GenerateToken("ops", 0)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "job-radar", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_CustomTTL(t *testing.T) {
	s := newTestJWTService(t)
	token, err := s.GenerateToken("ci", 2*time.Hour)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_UniqueTokens(t *testing.T) {
	s := newTestJWTService(t)
	a, err := s.GenerateToken("ops", 0)
	require.NoError(t, err)
	b, err := s.GenerateToken("ops", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWTService_EmptySubject(t *testing.T) {
	_, err := newTestJWTService(t).GenerateToken("", 0)
	assert.Error(t, err)
}

func TestJWTService_Rejects(t *testing.T) {
	s := newTestJWTService(t)
	good, err := s.GenerateToken("ops", 0)
	require.NoError(t, err)

	other := NewJWTService(&config.AuthConfig{Secret: "a-completely-different-secret", TokenTTL: time.Hour, Issuer: "job-radar"})
	forged, err := other.GenerateToken("ops", 0)
	require.NoError(t, err)

	foreign := NewJWTService(&config.AuthConfig{Secret: "test-secret-key-for-jwt-signing", TokenTTL: time.Hour, Issuer: "someone-else"})
	wrongIssuer, err := foreign.GenerateToken("ops", 0)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ops", Issuer: "job-radar"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "empty"},
		{"garbage", "not-a-token", "malformed"},
		{"wrong secret", forged, "signature"},
		{"wrong issuer", wrongIssuer, "failed to parse"},
		{"alg none", none, "signature"},
		{"tampered", good[:len(good)-2] + "xx", "signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	s := newTestJWTService(t)
	issued := time.Now().Add(-48 * time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_AsTokenValidator(t *testing.T) {
	s := newTestJWTService(t)
	token, err := s.GenerateToken("ops", 0)
	require.NoError(t, err)

	claims, err := s.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)
}
