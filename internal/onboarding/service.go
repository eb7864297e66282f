// Package onboarding submits the onboarding steps: signup and terms, KYC,
// source of funds and phone verification. Every successful step refetches
// the profile; progress is only ever read back from the backend.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/devmode"
)

// Step errors
var (
	ErrEmailRequired     = errors.New("onboarding: email is required")
	ErrAlreadyRegistered = errors.New("onboarding: email already registered")
	ErrIncompleteAnswers = errors.New("onboarding: every question needs an answer")
	ErrPhoneRequired     = errors.New("onboarding: phone number is required")
	ErrInvalidCode       = errors.New("onboarding: verification code must be 6 digits")
	ErrResendThrottled   = errors.New("onboarding: verification code was sent recently")
	ErrNotSignedUp       = errors.New("onboarding: credential has no user id")
)

// API is the backend surface of the onboarding steps.
type API interface {
	Signup(ctx context.Context, req api.SignupRequest) (string, error)
	Terms(ctx context.Context) ([]api.Term, error)
	UserTerms(ctx context.Context) ([]api.Term, error)
	AcceptTerms(ctx context.Context, termType, version string) error
	KycIntegration(ctx context.Context) (string, error)
	SourceOfFunds(ctx context.Context) ([]api.KycQuestion, error)
	SubmitSourceOfFunds(ctx context.Context, answers []api.KycQuestion) error
	RequestPhoneCode(ctx context.Context, phone string) error
	VerifyPhoneCode(ctx context.Context, code string) error
	DevSetKycStatus(ctx context.Context, userID string, status api.KycStatus) error
	DevApprove(ctx context.Context, helper, userID string) error
}

// Session is what the steps need from the session.
type Session interface {
	Credential(ctx context.Context) (string, error)
	UpdateCredential(ctx context.Context, token string) error
}

// Profile is refreshed after every successful step.
type Profile interface {
	RefreshUser(ctx context.Context) error
	RefreshSafeConfig(ctx context.Context) error
}

// Options tunes a Service.
type Options struct {
	PartnerID   string
	DevMode     bool
	ResendAfter time.Duration
	Now         func() time.Time
}

// Service runs the onboarding steps for the current session.
type Service struct {
	api     API
	session Session
	profile Profile
	logger  *slog.Logger
	opts    Options

	mu        sync.Mutex
	phoneSent time.Time
}

// NewService builds a step service.
func NewService(client API, sess Session, prof Profile, logger *slog.Logger, opts Options) *Service {
	if opts.ResendAfter <= 0 {
		opts.ResendAfter = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{api: client, session: sess, profile: prof, logger: logger, opts: opts}
}

// Terms lists the public terms shown before signup.
func (s *Service) Terms(ctx context.Context) ([]api.Term, error) {
	terms, err := s.api.Terms(ctx)
	if err != nil {
		s.logger.Error("get terms", slog.Any("error", err))
		return nil, err
	}
	return terms, nil
}

// Signup registers the connected wallet under email, adopts the credential
// carrying the new user id and accepts every outstanding term.
func (s *Service) Signup(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}

	token, err := s.api.Signup(ctx, api.SignupRequest{AuthEmail: email, PartnerID: s.opts.PartnerID})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "already registered") {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, email)
		}
		s.logger.Error("signup", slog.Any("error", err))
		return err
	}
	if err := s.session.UpdateCredential(ctx, token); err != nil {
		return fmt.Errorf("store signup credential: %w", err)
	}
	s.logger.Info("user signed up", slog.String("email", email))

	termsErr := s.AcceptAllTerms(ctx)
	s.refreshUser(ctx)
	return termsErr
}

// AcceptAllTerms accepts the current version of every term the user has not
// accepted yet. Failures for one term do not stop the others.
func (s *Service) AcceptAllTerms(ctx context.Context) error {
	terms, err := s.api.UserTerms(ctx)
	if err != nil {
		return fmt.Errorf("get user terms: %w", err)
	}
	var errs []error
	for _, term := range terms {
		if !term.NeedsAcceptance() || term.Type == "" || term.CurrentVersion == "" {
			continue
		}
		if err := s.api.AcceptTerms(ctx, term.Type, term.CurrentVersion); err != nil {
			s.logger.Error("accept terms", slog.String("terms", term.Type), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("accept terms (%s): %w", term.Type, err))
		}
	}
	return errors.Join(errs...)
}

// KycURL returns the identity provider page to send the user to.
func (s *Service) KycURL(ctx context.Context) (string, error) {
	return s.api.KycIntegration(ctx)
}

// SourceOfFundsQuestions lists the questions to answer.
func (s *Service) SourceOfFundsQuestions(ctx context.Context) ([]api.KycQuestion, error) {
	return s.api.SourceOfFunds(ctx)
}

// SubmitSourceOfFunds answers questions in order. There must be exactly one
// non-empty answer per question.
func (s *Service) SubmitSourceOfFunds(ctx context.Context, questions []api.KycQuestion, answers []string) error {
	if len(questions) == 0 || len(answers) != len(questions) {
		return ErrIncompleteAnswers
	}
	pairs := make([]api.KycQuestion, len(questions))
	for i, q := range questions {
		a := strings.TrimSpace(answers[i])
		if a == "" {
			return ErrIncompleteAnswers
		}
		pairs[i] = api.KycQuestion{Question: q.Question, Answer: a}
	}
	if err := s.api.SubmitSourceOfFunds(ctx, pairs); err != nil {
		return err
	}
	s.refreshUser(ctx)
	return nil
}

// RequestPhoneCode sends a verification code to phone. A new code can be
// requested once ResendIn reaches zero.
func (s *Service) RequestPhoneCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneRequired
	}
	if wait := s.ResendIn(); wait > 0 {
		return fmt.Errorf("%w: retry in %s", ErrResendThrottled, wait.Round(time.Second))
	}
	if err := s.api.RequestPhoneCode(ctx, phone); err != nil {
		return err
	}
	s.mu.Lock()
	s.phoneSent = s.opts.Now()
	s.mu.Unlock()
	return nil
}

// ResendIn is how long until another code may be requested.
func (s *Service) ResendIn() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phoneSent.IsZero() {
		return 0
	}
	wait := s.opts.ResendAfter - s.opts.Now().Sub(s.phoneSent)
	if wait < 0 {
		return 0
	}
	return wait
}

// VerifyPhoneCode checks the received code.
func (s *Service) VerifyPhoneCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if !validCode(code) {
		return ErrInvalidCode
	}
	if err := s.api.VerifyPhoneCode(ctx, code); err != nil {
		return err
	}
	s.refreshUser(ctx)
	return nil
}

// DevSetKycStatus sets the KYC status of the signed-up user on a
// development backend.
func (s *Service) DevSetKycStatus(ctx context.Context, status api.KycStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown kyc status %q", status)
	}
	userID, err := s.devUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.api.DevSetKycStatus(ctx, userID, status); err != nil {
		return err
	}
	s.refreshUser(ctx)
	return nil
}

// DevApprove runs one of the development backend's approve helpers
// (source-of-funds-approve, phone-verify-approve, safe-deploy-approve).
func (s *Service) DevApprove(ctx context.Context, helper string) error {
	userID, err := s.devUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.api.DevApprove(ctx, helper, userID); err != nil {
		return err
	}
	s.refreshUser(ctx)
	if err := s.profile.RefreshSafeConfig(ctx); err != nil {
		s.logger.Warn("refresh safe config", slog.Any("error", err))
	}
	return nil
}

func (s *Service) devUserID(ctx context.Context) (string, error) {
	if !s.opts.DevMode {
		return "", devmode.ErrDisabled
	}
	token, err := s.session.Credential(ctx)
	if err != nil {
		return "", err
	}
	claims, err := credential.Decode(token)
	if err != nil {
		return "", err
	}
	if !claims.HasUserID() {
		return "", ErrNotSignedUp
	}
	return claims.UserID, nil
}

func (s *Service) refreshUser(ctx context.Context) {
	if err := s.profile.RefreshUser(ctx); err != nil {
		s.logger.Warn("refresh user", slog.Any("error", err))
	}
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
