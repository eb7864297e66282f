package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/congo-pay/walletgate/internal/identity"
	"github.com/congo-pay/walletgate/internal/siwe"
)

// Challenge errors
var (
	ErrMissingFields  = errors.New("message and signature are required")
	ErrInvalidMessage = errors.New("invalid sign-in message")
	ErrInvalidNonce   = errors.New("nonce is unknown, expired or already used")
	ErrMessageExpired = errors.New("sign-in message expired")
)

// Service runs the sign-in and signup flows.
type Service struct {
	issuer *Issuer
	nonces NonceStore
	users  *identity.Service
	domain string
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires the flows. An empty domain accepts messages for any domain.
func NewService(issuer *Issuer, nonces NonceStore, users *identity.Service, domain string, logger *slog.Logger) *Service {
	return &Service{issuer: issuer, nonces: nonces, users: users, domain: domain, now: issuer.now, logger: logger}
}

// Nonce issues a challenge nonce.
func (s *Service) Nonce(ctx context.Context) (string, error) {
	return s.nonces.Issue(ctx)
}

// Challenge verifies a signed sign-in message and issues a token. Wallets
// that have not signed up get a token without a user id.
func (s *Service) Challenge(ctx context.Context, message, signature string) (string, error) {
	if message == "" || signature == "" {
		return "", ErrMissingFields
	}
	msg, err := siwe.Parse(message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	address, err := siwe.ChecksumAddress(msg.Address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if s.domain != "" && !strings.EqualFold(msg.Domain, s.domain) {
		return "", fmt.Errorf("%w: domain %q", ErrInvalidMessage, msg.Domain)
	}
	now := s.now()
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return "", ErrMessageExpired
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return "", fmt.Errorf("%w: not valid yet", ErrInvalidMessage)
	}

	ok, err := s.nonces.Consume(ctx, msg.Nonce)
	if err != nil {
		return "", fmt.Errorf("consume nonce: %w", err)
	}
	if !ok {
		return "", ErrInvalidNonce
	}

	// Signatures are not recovered; the development backend trusts the wallet.
	id := Identity{Address: address}
	user, err := s.users.FindByAddress(ctx, address)
	switch {
	case err == nil:
		id.UserID, id.Email = user.ID, user.Email
	case !errors.Is(err, identity.ErrNotFound):
		return "", err
	}

	token, err := s.issuer.Issue(id)
	if err != nil {
		return "", err
	}
	s.logger.Info("wallet signed in", slog.String("address", address), slog.Bool("registered", id.Registered()))
	return token, nil
}

// Signup registers the signed-in wallet and issues a token carrying the new user id.
func (s *Service) Signup(ctx context.Context, bearer Identity, email, partnerID string) (string, error) {
	user, err := s.users.Signup(ctx, identity.SignupRequest{Address: bearer.Address, Email: email, PartnerID: partnerID})
	if err != nil {
		return "", err
	}
	s.logger.Info("wallet signed up", slog.String("address", bearer.Address), slog.String("user_id", user.ID))
	return s.issuer.Issue(Identity{UserID: user.ID, Email: user.Email, Address: bearer.Address})
}
