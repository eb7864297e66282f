package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/notification"
	"github.com/congo-pay/walletgate/internal/siwe"
	"github.com/congo-pay/walletgate/internal/wallet"
)

var (
	// ErrRenewalInFlight is returned when a challenge round is already running.
	ErrRenewalInFlight = errors.New("session: renewal already in flight")
	// ErrWalletNotReady is returned when address, chain or connection is missing.
	ErrWalletNotReady = errors.New("session: wallet not ready")
	// ErrNoSignature is returned when the wallet answered without a signature.
	ErrNoSignature = errors.New("session: no signature returned")
	// ErrAddressChanged is returned when the account switched during a renewal.
	ErrAddressChanged = errors.New("session: wallet address changed during renewal")
)

// AuthAPI is the part of the backend the challenge flow talks to.
type AuthAPI interface {
	Nonce(ctx context.Context) (string, error)
	Challenge(ctx context.Context, message, signature string) (string, error)
}

// MessageParams are the fixed parts of every sign-in message.
type MessageParams struct {
	Domain    string
	URI       string
	Statement string
}

// ChallengeSigner obtains a fresh credential through the sign-in-with-wallet
// challenge. At most one round runs at a time.
type ChallengeSigner struct {
	api      AuthAPI
	signer   wallet.Signer
	store    *credential.Store
	notifier notification.Notifier
	logger   *slog.Logger
	params   MessageParams
	now      func() time.Time

	inFlight atomic.Bool
	onChange func(inFlight bool)
}

// NewChallengeSigner wires the challenge flow.
func NewChallengeSigner(api AuthAPI, signer wallet.Signer, store *credential.Store, notifier notification.Notifier, params MessageParams, logger *slog.Logger) *ChallengeSigner {
	return &ChallengeSigner{
		api:      api,
		signer:   signer,
		store:    store,
		notifier: notifier,
		logger:   logger,
		params:   params,
		now:      time.Now,
	}
}

// InFlight reports whether a round is running.
func (s *ChallengeSigner) InFlight() bool {
	return s.inFlight.Load()
}

// Sign runs one challenge round for conn and persists the credential on
// success. Failures are reported to the notifier; a declined signature is
// only logged.
func (s *ChallengeSigner) Sign(ctx context.Context, conn wallet.Connection) (string, error) {
	if s.inFlight.Load() {
		return "", ErrRenewalInFlight
	}
	if !conn.Ready() {
		s.logger.Info("skipping sign-in, wallet not ready",
			slog.Bool("has_address", conn.Address != ""),
			slog.Int64("chain_id", conn.ChainID),
			slog.Int("connections", conn.Connections),
		)
		return "", ErrWalletNotReady
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return "", ErrRenewalInFlight
	}
	s.changed(true)
	defer func() {
		s.inFlight.Store(false)
		s.changed(false)
	}()

	address, err := siwe.ChecksumAddress(conn.Address)
	if err != nil {
		s.logger.Error("invalid address format", slog.String("address", conn.Address))
		notification.Error(ctx, s.notifier, "Invalid wallet address format", nil)
		return "", err
	}

	nonce, err := s.api.Nonce(ctx)
	if err != nil {
		s.logger.Error("get nonce", slog.Any("error", err))
		notification.Error(ctx, s.notifier, "Error getting nonce", err)
		return "", fmt.Errorf("get nonce: %w", err)
	}

	msg := siwe.Message{
		Domain:    s.params.Domain,
		Address:   address,
		Statement: s.params.Statement,
		URI:       s.params.URI,
		Version:   siwe.Version,
		ChainID:   conn.ChainID,
		Nonce:     nonce,
		IssuedAt:  s.now(),
	}
	if err := msg.Validate(); err != nil {
		s.logger.Error("build sign-in message", slog.Any("error", err))
		notification.Error(ctx, s.notifier, "Error preparing sign-in message", err)
		return "", err
	}
	text := msg.String()

	signature, err := s.signer.SignMessage(ctx, address, text)
	if err != nil {
		s.logger.Info("signing message aborted", slog.String("address", address), slog.Any("error", err))
		return "", fmt.Errorf("sign message: %w", err)
	}
	if signature == "" {
		s.logger.Info("no signature returned", slog.String("address", address))
		return "", ErrNoSignature
	}

	token, err := s.api.Challenge(ctx, text, signature)
	if err != nil {
		s.logger.Error("validate message", slog.Any("error", err))
		notification.Error(ctx, s.notifier, "Error validating message", err)
		return "", fmt.Errorf("submit challenge: %w", err)
	}

	if err := s.store.Save(ctx, conn.Address, token); err != nil {
		s.logger.Error("persist credential", slog.String("address", address), slog.Any("error", err))
		notification.Error(ctx, s.notifier, "Error saving session", err)
		return "", fmt.Errorf("persist credential: %w", err)
	}

	s.logger.Info("signed in", slog.String("address", address))
	return token, nil
}

func (s *ChallengeSigner) changed(inFlight bool) {
	if s.onChange != nil {
		s.onChange(inFlight)
	}
}
