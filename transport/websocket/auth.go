package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("websocket: unauthorized")

// Authenticator resolves the identity behind an upgrade request.
type Authenticator func(r *http.Request) (subject string, err error)

// JWTAuthenticator accepts HS256 tokens signed with secret, passed either as
// the token query parameter or as a bearer Authorization header. The token
// subject becomes the session subject.
func JWTAuthenticator(secret []byte) Authenticator {
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }
	return func(r *http.Request) (string, error) {
		raw := tokenFromRequest(r)
		if raw == "" {
			return "", ErrUnauthorized
		}
		claims := &jwt.RegisteredClaims{}
		if _, err := jwt.ParseWithClaims(raw, claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return "", fmt.Errorf("%w: missing subject", ErrUnauthorized)
		}
		return sub, nil
	}
}

// SignToken issues an HS256 token for subject valid for ttl.
func SignToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
