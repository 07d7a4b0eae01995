package jwtmw

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSessionID は発行したセッションIDを運ぶクレーム名です。
const ClaimSessionID = "sid"

// Generator defines the interface for JWT token generation.
type Generator interface {
	// GenerateToken creates a signed JWT token bound to one client session.
	GenerateToken(sessionID, userID string) (string, error)
}

// generator implements the Generator interface.
type generator struct {
	secret     []byte
	expiration time.Duration
}

// NewGenerator creates a new JWT generator with the provided secret and expiration duration.
func NewGenerator(secret string, expiration time.Duration) *generator {
	return &generator{
		secret:     []byte(secret),
		expiration: expiration,
	}
}

var _ Generator = (*generator)(nil)

// GenerateToken creates a signed JWT token with standard claims plus the session id.
func (g *generator) GenerateToken(sessionID, userID string) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("session id and user id are required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          userID,
		ClaimSessionID: sessionID,
		"exp":          now.Add(g.expiration).Unix(),
		"iat":          now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
