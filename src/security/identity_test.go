package security

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-that-is-long-enough-for-hs256"

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestCallerIdentity_PrefersTokenSubject(t *testing.T) {
	ids := NewIdentityService(testSecret)

	r := httptest.NewRequest("POST", "/api/prices", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "42"))
	r.Header.Set("User-Agent", "test-agent")
	r.RemoteAddr = "10.0.0.7:51234"

	assert.Equal(t, "user:42", ids.CallerIdentity(r))
}

func TestCallerIdentity_FallsBackToAddressComposite(t *testing.T) {
	ids := NewIdentityService(testSecret)

	r := httptest.NewRequest("POST", "/api/prices", nil)
	r.Header.Set("User-Agent", "test-agent")
	r.RemoteAddr = "10.0.0.7:51234"

	assert.Equal(t, "10.0.0.7|test-agent", ids.CallerIdentity(r))
}

func TestCallerIdentity_InvalidTokenDegradesToComposite(t *testing.T) {
	ids := NewIdentityService(testSecret)

	other := NewIdentityService("some-entirely-different-secret-value!!")
	r := httptest.NewRequest("POST", "/api/prices", nil)
	r.Header.Set("Authorization", "Bearer "+func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
		s, _ := token.SignedString([]byte(other.JWTSecret))
		return s
	}())
	r.Header.Set("User-Agent", "test-agent")
	r.RemoteAddr = "10.0.0.7:51234"

	assert.Equal(t, "10.0.0.7|test-agent", ids.CallerIdentity(r))
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "203.0.113.5", ClientIP(r))
}

func TestValidateToken_MissingSubject(t *testing.T) {
	ids := NewIdentityService(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"aud": "nothing"})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ids.ValidateToken(s)
	assert.Error(t, err)
}
