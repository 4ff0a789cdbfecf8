package security

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityService derives the caller identity used to key rate limiting.
// An authenticated subject is preferred over a network-address composite so
// callers behind shared NAT are not penalized for each other's traffic.
type IdentityService struct {
	JWTSecret string
}

func NewIdentityService(secret string) *IdentityService {
	return &IdentityService{JWTSecret: secret}
}

// CallerIdentity returns "user:<sub>" when the request carries a valid
// bearer token, otherwise "<ip>|<user-agent>". Invalid tokens degrade to the
// anonymous composite rather than rejecting the request; pricing is a
// read-only surface.
func (s *IdentityService) CallerIdentity(r *http.Request) string {
	if sub, err := s.subjectFromRequest(r); err == nil && sub != "" {
		return "user:" + sub
	}
	return ClientIP(r) + "|" + r.UserAgent()
}

// SubjectFromRequest extracts the validated token subject, for endpoints
// that require an authenticated user.
func (s *IdentityService) SubjectFromRequest(r *http.Request) (string, error) {
	return s.subjectFromRequest(r)
}

func (s *IdentityService) subjectFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}
	tokenString := authHeader
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if tokenString == "" {
		return "", errors.New("malformed token")
	}
	return s.ValidateToken(tokenString)
}

// ValidateToken parses an HS256 token and returns its 'sub' claim.
func (s *IdentityService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok {
			return "", errors.New("invalid token: 'sub' claim missing or not a string")
		}
		return sub, nil
	}

	return "", errors.New("invalid token")
}

// ClientIP returns the requester's address, preferring the first
// X-Forwarded-For hop when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
