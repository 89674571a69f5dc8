package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime_go/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)

	token, err := svc.CreateForUser("alice")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
}

func TestTokenWrongSecret(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)
	other := security.NewTokenService("other-secret", time.Hour)

	token, err := svc.CreateForUser("alice")
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	svc := security.NewTokenService("test-secret", -time.Minute)

	token, err := svc.CreateForUser("alice")
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	svc := security.NewTokenService("test-secret", time.Hour)

	_, err := svc.Parse("not.a.token")
	assert.Error(t, err)
}
