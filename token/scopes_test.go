package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/token"
)

func TestSplitScopes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"space delimited string", "openid mcp:access", []string{"openid", "mcp:access"}},
		{"single scope string", "mcp:access", []string{"mcp:access"}},
		{"empty string", "", nil},
		{"string slice", []string{"openid", "profile"}, []string{"openid", "profile"}},
		{"json decoded list", []any{"openid", "mcp:access"}, []string{"openid", "mcp:access"}},
		{"nil", nil, nil},
		{"unsupported type", 42, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := token.SplitScopes(tc.in)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHasRequiredScopes(t *testing.T) {
	granted := []string{"openid", "mcp:access"}

	assert.True(t, token.HasRequiredScopes(granted, []string{"mcp:access"}))
	assert.False(t, token.HasRequiredScopes(granted, []string{"mcp:write"}))
	assert.True(t, token.HasRequiredScopes(granted, nil))
	assert.True(t, token.HasRequiredScopes(granted, []string{"openid", "mcp:access"}))
	assert.False(t, token.HasRequiredScopes(granted, []string{"mcp:access", "mcp:write"}))
}

func TestRequireScopes(t *testing.T) {
	granted := []string{"openid", "mcp:access"}

	require.NoError(t, token.RequireScopes(granted, []string{"mcp:access"}))

	err := token.RequireScopes(granted, []string{"mcp:write"})
	require.ErrorIs(t, err, token.ErrInsufficientScope)
	require.ErrorContains(t, err, "mcp:write")
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, token.IsUnauthorized(token.ErrTokenExpired))
	assert.True(t, token.IsUnauthorized(token.ErrInvalidToken))
	assert.True(t, token.IsUnauthorized(token.ErrKeyNotFound))
	assert.True(t, token.IsUnauthorized(token.ErrNotVerified))
	assert.False(t, token.IsUnauthorized(token.ErrInsufficientScope))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "[redacted]", token.Redact("short"))
	assert.Equal(t, "eyJhbGci...", token.Redact("eyJhbGciOiJSUzI1NiJ9.payload.sig"))
}
