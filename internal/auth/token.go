// Package auth issues and verifies the two credential kinds used by the API:
// session tokens for signed-in users and invitation tokens for collaboration
// invites. Each kind carries a tag and has its own typed decoder, so a token
// of the wrong kind is rejected during parsing rather than by convention.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	kindSession = "session"
	kindInvite  = "invite"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// SessionClaims identifies a signed-in user.
type SessionClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Kind string `json:"tok"`
	jwt.RegisteredClaims
}

// InviteClaims is a self-contained collaboration invitation: it names the
// document, the invited user, the offered role, and who issued the invite.
type InviteClaims struct {
	DocumentID    string `json:"did"`
	InvitedUserID string `json:"uid"`
	Role          string `json:"role"`
	InvitedBy     string `json:"inv"`
	Kind          string `json:"tok"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for a user.
func IssueSessionToken(secret []byte, userID, name, role, jti string, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		Name: name,
		Role: role,
		Kind: kindSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies a session token and returns its claims.
func ParseSessionToken(secret []byte, token string) (SessionClaims, error) {
	var claims SessionClaims
	if err := parse(secret, token, &claims); err != nil {
		return SessionClaims{}, err
	}
	if claims.Kind != kindSession || claims.Subject == "" || claims.ID == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// IssueInviteToken signs an invitation token.
func IssueInviteToken(secret []byte, claims InviteClaims, expiresAt time.Time) (string, error) {
	claims.Kind = kindInvite
	claims.IssuedAt = jwt.NewNumericDate(time.Now())
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign invite token: %w", err)
	}
	return signed, nil
}

// ParseInviteToken verifies an invitation token and returns its claims.
func ParseInviteToken(secret []byte, token string) (InviteClaims, error) {
	var claims InviteClaims
	if err := parse(secret, token, &claims); err != nil {
		return InviteClaims{}, err
	}
	if claims.Kind != kindInvite || claims.DocumentID == "" || claims.InvitedUserID == "" {
		return InviteClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func parse(secret []byte, token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the hex SHA-256 of an opaque token value. Refresh tokens
// and reset tokens are stored hashed, never verbatim.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
