package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	stateCookie  = "portfolio_oauth_state"
	ownerCookie  = "portfolio_owner"
	stateSubject = "oauth-state"
	ownerSubject = "owner"
	stateTTL     = 10 * time.Minute
	ownerTTL     = 30 * 24 * time.Hour
)

// sessionClaims is the payload of the signed cookies.
type sessionClaims struct {
	Value string `json:"val,omitempty"`
	jwt.RegisteredClaims
}

// sessionSigner signs and verifies cookie values with HS256.
type sessionSigner struct {
	secret []byte
}

func newSessionSigner(secret string) *sessionSigner {
	return &sessionSigner{secret: []byte(secret)}
}

func (s *sessionSigner) sign(subject, value string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Value: value,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify checks the signature, expiry and subject, and returns the value.
func (s *sessionSigner) verify(token, subject string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithSubject(subject), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid session token")
	}
	return claims.Value, nil
}

func (s *Server) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) expiredCookie(name, path string) *http.Cookie {
	c := s.cookie(name, "", path, 0)
	c.MaxAge = -1
	return c
}
