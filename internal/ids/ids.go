// Package ids mints and verifies the opaque identifiers spec.md §6 requires:
// a signed player-id token (the sole proof of "possession-based identity")
// and plain random ids for games. Grounded on the JWT-based session tokens
// used across the retrieval pack (golang-jwt/jwt/v5) and google/uuid for
// unique id generation.
package ids

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by VerifyPlayerToken for any malformed,
// expired, or mis-signed token.
var ErrInvalidToken = errors.New("ids: invalid player token")

type playerClaims struct {
	jwt.RegisteredClaims
}

// NewPlayerToken mints a signed player-id token. The token's subject is a
// fresh UUID; the raw id is returned alongside the signed string so the
// caller can index its own state store by it without re-parsing the token.
// Player-id tokens carry no expiry: a player's token stays valid until the
// player itself is destroyed (unregistered, or swept up as inactive), not
// on a fixed clock.
func NewPlayerToken(secret []byte) (token string, playerID string, err error) {
	playerID = uuid.NewString()
	claims := playerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("ids: signing player token: %w", err)
	}
	return signed, playerID, nil
}

// VerifyPlayerToken validates a signed player-id token and returns the
// player-id it was issued for.
func VerifyPlayerToken(secret []byte, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &playerClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("ids: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*playerClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// NewGameID returns a fresh, unique game identifier.
func NewGameID() string {
	return uuid.NewString()
}
