package realtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csssit/club-api/pkg/auth"
	"github.com/csssit/club-api/pkg/logger"
)

func newTestResolver(t *testing.T, expiry time.Duration) (*Resolver, auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", expiry)
	return NewResolver(tokens, logger.Nop()), tokens
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: value})
	}
	return req
}

func TestResolveValidCredential(t *testing.T) {
	resolver, tokens := newTestResolver(t, time.Hour)
	userID := uuid.New()

	token, err := tokens.GenerateAccessToken(userID, "m@club.test", "Mina", "member")
	require.NoError(t, err)

	principal := resolver.Resolve(requestWithCookie(token))
	assert.False(t, principal.Anonymous)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "Mina", principal.Name)
	assert.Equal(t, "user_"+userID.String(), principal.GroupKey())
}

func TestResolveMissingCredentialDegradesToAnonymous(t *testing.T) {
	resolver, _ := newTestResolver(t, time.Hour)

	principal := resolver.Resolve(requestWithCookie(""))
	assert.True(t, principal.Anonymous)
	assert.Equal(t, "", principal.GroupKey())
}

func TestResolveGarbageCredentialDegradesToAnonymous(t *testing.T) {
	resolver, _ := newTestResolver(t, time.Hour)

	principal := resolver.Resolve(requestWithCookie("not-a-jwt"))
	assert.True(t, principal.Anonymous)
}

func TestResolveExpiredCredentialDegradesToAnonymous(t *testing.T) {
	resolver, tokens := newTestResolver(t, -time.Minute)

	token, err := tokens.GenerateAccessToken(uuid.New(), "m@club.test", "Mina", "member")
	require.NoError(t, err)

	principal := resolver.Resolve(requestWithCookie(token))
	assert.True(t, principal.Anonymous)
}

func TestResolveWrongSecretDegradesToAnonymous(t *testing.T) {
	resolver, _ := newTestResolver(t, time.Hour)
	otherTokens := auth.NewTokenService("other-secret", time.Hour)

	token, err := otherTokens.GenerateAccessToken(uuid.New(), "m@club.test", "Mina", "member")
	require.NoError(t, err)

	principal := resolver.Resolve(requestWithCookie(token))
	assert.True(t, principal.Anonymous)
}
