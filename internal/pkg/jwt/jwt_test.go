package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:   "test-secret",
		Issuer:   "compatlab",
		Audience: "compatlab-users",
		TTL:      ttl,
	})
	require.NoError(t, err)
	return m
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.Generate(42, "ana@example.com", "comum")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "comum", claims.UserType)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t, -time.Minute)

	token, err := m.Generate(1, "x@example.com", "comum")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewManager(Config{Secret: "other", Issuer: "compatlab", Audience: "compatlab-users", TTL: time.Hour})
	require.NoError(t, err)

	token, err := m.Generate(1, "x@example.com", "administrativo")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}
