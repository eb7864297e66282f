package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrMalformed  = errors.New("credential: malformed token")
	ErrNoExpiry   = errors.New("credential: missing exp claim")
	ErrNotFound   = errors.New("credential: not found")
	ErrNoAddress  = errors.New("credential: wallet address required")
	ErrEmptyToken = errors.New("credential: empty token")
)

// Claims is the typed view of a credential payload. The client never verifies
// the signature; it only needs the identity and lifetime facts.
type Claims struct {
	UserID    string
	Email     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasUserID reports whether the wallet behind the credential has completed signup.
func (c Claims) HasUserID() bool {
	return c.UserID != ""
}

type tokenClaims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// WellFormed reports whether token has three non-empty dot separated segments.
func WellFormed(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Decode extracts the claims without verifying the signature.
func Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrEmptyToken
	}
	if !WellFormed(token) {
		return Claims{}, ErrMalformed
	}

	var tc tokenClaims
	// An unknown alg leaves the payload decoded; the client has no key to check it with anyway.
	if _, _, err := parser.ParseUnverified(token, &tc); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims := Claims{UserID: tc.UserID, Email: tc.Email, Subject: tc.Subject}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt == nil {
		return claims, ErrNoExpiry
	}
	claims.ExpiresAt = tc.ExpiresAt.Time
	return claims, nil
}

// IsExpired fails closed: an undecodable token or one without exp is expired.
// A token stops being usable at the exact instant of its exp claim.
func IsExpired(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	return !now.Before(claims.ExpiresAt)
}

// HasUserID reports whether token decodes and carries a non-empty userId claim.
func HasUserID(token string) bool {
	claims, err := Decode(token)
	if err != nil && !errors.Is(err, ErrNoExpiry) {
		return false
	}
	return claims.HasUserID()
}

// Remaining returns how long until the credential expires, clamped at zero.
func Remaining(token string, now time.Time) (time.Duration, error) {
	claims, err := Decode(token)
	if err != nil {
		return 0, err
	}
	d := claims.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, nil
}
