// Package auth validates and issues session tokens. A token is accepted
// only when it both decodes as a valid HS512 JWT and is present in the
// sessions table, so logout revokes it immediately.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// Failure taxonomy. The session loop collapses all of these into one
// invalid outcome; the HTTPS layer distinguishes them for status codes.
var (
	ErrNoAuthHeader      = errors.New("auth: missing authorization header")
	ErrInvalidAuthHeader = errors.New("auth: malformed authorization header")
	ErrJWTDecode         = errors.New("auth: token decode failed")
	ErrNotInSessionTable = errors.New("auth: token not in session table")
)

const bearerPrefix = "Bearer "

// Claims is the JWT payload: subject (user UUID), role name, expiry.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionLookup resolves a token to the user it was issued to.
type SessionLookup interface {
	SelectUUIDByJWT(ctx context.Context, token string) (uuid.UUID, error)
}

// Gate authenticates tokens for the session loop and the HTTPS layer.
type Gate struct {
	secret   []byte
	ttl      time.Duration
	sessions SessionLookup
}

// NewGate creates a gate with the given signing secret and token TTL.
func NewGate(secret []byte, ttl time.Duration, sessions SessionLookup) *Gate {
	return &Gate{secret: secret, ttl: ttl, sessions: sessions}
}

// Verify decodes the token and confirms it is live in the session table.
// Returns the UUID of the user the session belongs to.
func (g *Gate) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Name}))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrJWTDecode
	}

	user, err := g.sessions.SelectUUIDByJWT(ctx, token)
	if err != nil {
		return uuid.Nil, ErrNotInSessionTable
	}
	return user, nil
}

// Issue signs a token for the given user.
func (g *Gate) Issue(user uuid.UUID, role protocol.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TokenFromHeader extracts the bearer token from an HTTP request.
func TokenFromHeader(h http.Header) (string, error) {
	value := h.Get("Authorization")
	if value == "" {
		return "", ErrNoAuthHeader
	}
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}
	return strings.TrimPrefix(value, bearerPrefix), nil
}
