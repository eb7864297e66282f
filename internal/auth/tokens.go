package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every rejected bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID  string
	Email   string
	Address string
}

// Registered reports whether the bearer completed signup.
func (i Identity) Registered() bool {
	return i.UserID != ""
}

type claims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer. A nil clock uses time.Now.
func NewIssuer(secret string, ttl time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue signs a token for id. The wallet address travels as the subject.
func (i *Issuer) Issue(id Identity) (string, error) {
	now := i.now()
	c := claims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

// Verify checks the signature and expiry of token.
func (i *Issuer) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" && c.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.UserID, Email: c.Email, Address: c.Subject}, nil
}
