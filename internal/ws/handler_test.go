package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOrigin(t *testing.T) {
	check := makeCheckOrigin([]string{"http://localhost:3000", "HTTPS://App.Example.com"})

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:3000", true},
		{"HTTP://LOCALHOST:3000", true},
		{"https://app.example.com", true},
		{"https://app.example.com/", true}, // scheme://host normalization
		{"http://evil.example.com", false},
		{"", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.allowed, check(r), "origin %q", tc.origin)
	}
}

func TestCheckOriginEmptyAllowList(t *testing.T) {
	check := makeCheckOrigin(nil)
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	assert.False(t, check(r))
}

func TestExtractToken(t *testing.T) {
	t.Run("AuthorizationHeader", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "Bearer abc123")

		token, err := extractTokenFromWSRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "abc123", token)
	})

	t.Run("Subprotocol", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Sec-WebSocket-Protocol", "bearer, abc123")

		token, err := extractTokenFromWSRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "abc123", token)
	})

	t.Run("Missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)

		_, err := extractTokenFromWSRequest(r)
		assert.Error(t, err)
	})
}
