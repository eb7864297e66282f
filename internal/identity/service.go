package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/siwe"
)

// Validation errors
var (
	ErrEmailRequired     = errors.New("email is required")
	ErrAddressRequired   = errors.New("wallet address is required")
	ErrInvalidKycStatus  = errors.New("unknown kyc status")
	ErrUnknownTerms      = errors.New("unknown terms")
	ErrStaleTerms        = errors.New("terms version is not current")
	ErrIncompleteAnswers = errors.New("every source of funds question needs an answer")
	ErrPhoneRequired     = errors.New("phoneNumber is required")
	ErrInvalidCode       = errors.New("code must be 6 digits")
	ErrKycNotApproved    = errors.New("user is not KYC approved")
)

const defaultKycURL = "http://localhost:8080/kyc-iframe"

var termsCatalog = []api.Term{
	{Type: "general-tos", URL: "https://gnosispay.com/terms", Name: "Gnosis Pay Terms of Service", CurrentVersion: "v1"},
	{Type: "privacy-policy", URL: "https://gnosispay.com/privacy", Name: "Privacy Policy", CurrentVersion: "v1"},
}

var sourceOfFunds = []api.KycQuestion{
	{Question: "What is your primary source of funds?"},
	{Question: "How much do you plan to transfer annually?"},
}

// Options tunes a Service.
type Options struct {
	// DeployDelay is how long a requested deployment reports processing.
	DeployDelay time.Duration
	KycURL      string
	ChainID     int64
	Now         func() time.Time
}

// Service owns the onboarding state of backend users.
type Service struct {
	repo Repository
	opts Options

	// serializes read-modify-write cycles
	mu sync.Mutex
}

// NewService creates a new identity service.
func NewService(repo Repository, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.KycURL == "" {
		opts.KycURL = defaultKycURL
	}
	if opts.ChainID == 0 {
		opts.ChainID = 100
	}
	return &Service{repo: repo, opts: opts}
}

// Signup creates a user for a wallet that has signed in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return User{}, ErrEmailRequired
	}
	if req.Address == "" {
		return User{}, ErrAddressRequired
	}

	user := User{
		ID:            uuid.New().String(),
		Address:       strings.ToLower(req.Address),
		Email:         email,
		FirstName:     "Demo",
		LastName:      "User",
		PartnerID:     req.PartnerID,
		KycStatus:     api.KycNotStarted,
		Status:        api.AccountActive,
		AcceptedTerms: map[string]string{},
		CreatedAt:     s.opts.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Get returns a user by id with any due deployment applied.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.mutate(ctx, id, func(*User) error { return nil })
}

// FindByAddress returns the user registered for a wallet.
func (s *Service) FindByAddress(ctx context.Context, address string) (User, error) {
	return s.repo.FindByAddress(ctx, address)
}

// Terms lists the public terms.
func (s *Service) Terms() []api.Term {
	return append([]api.Term(nil), termsCatalog...)
}

// UserTerms lists the terms with the user's acceptance state.
func (s *Service) UserTerms(ctx context.Context, id string) ([]api.Term, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	terms := s.Terms()
	for i, term := range terms {
		if version, ok := user.AcceptedTerms[term.Type]; ok {
			v := version
			terms[i].Accepted = true
			terms[i].AcceptedVersion = &v
		}
	}
	return terms, nil
}

// AcceptTerms records acceptance of the current version of one document.
func (s *Service) AcceptTerms(ctx context.Context, id, termType, version string) error {
	var current *api.Term
	for i := range termsCatalog {
		if termsCatalog[i].Type == termType {
			current = &termsCatalog[i]
		}
	}
	if current == nil {
		return ErrUnknownTerms
	}
	if current.CurrentVersion != version {
		return ErrStaleTerms
	}
	_, err := s.mutate(ctx, id, func(u *User) error {
		if u.AcceptedTerms == nil {
			u.AcceptedTerms = map[string]string{}
		}
		u.AcceptedTerms[termType] = version
		return nil
	})
	return err
}

// KycURL is the hosted identity-verification page.
func (s *Service) KycURL() string {
	return s.opts.KycURL
}

// SubmitKyc stores the submitted identity and approves it.
func (s *Service) SubmitKyc(ctx context.Context, id, firstName, lastName string) (User, error) {
	return s.mutate(ctx, id, func(u *User) error {
		if firstName != "" {
			u.FirstName = firstName
		}
		if lastName != "" {
			u.LastName = lastName
		}
		u.KycStatus = api.KycApproved
		return nil
	})
}

// SetKycStatus forces the KYC status. An empty status resets it.
func (s *Service) SetKycStatus(ctx context.Context, id string, status api.KycStatus) (User, error) {
	if status == "" {
		status = api.KycNotStarted
	}
	if !status.Valid() {
		return User{}, ErrInvalidKycStatus
	}
	return s.mutate(ctx, id, func(u *User) error {
		u.KycStatus = status
		return nil
	})
}

// SourceOfFundsQuestions lists the unanswered questions.
func (s *Service) SourceOfFundsQuestions() []api.KycQuestion {
	return append([]api.KycQuestion(nil), sourceOfFunds...)
}

// AnswerSourceOfFunds accepts one non-empty answer per question.
func (s *Service) AnswerSourceOfFunds(ctx context.Context, id string, answers []api.KycQuestion) error {
	if len(answers) != len(sourceOfFunds) {
		return ErrIncompleteAnswers
	}
	for _, a := range answers {
		if strings.TrimSpace(a.Answer) == "" {
			return ErrIncompleteAnswers
		}
	}
	return s.ApproveSourceOfFunds(ctx, id)
}

// ApproveSourceOfFunds marks the questions answered.
func (s *Service) ApproveSourceOfFunds(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(u *User) error {
		u.IsSourceOfFundsAnswered = true
		return nil
	})
	return err
}

// RequestPhoneCode pretends to text a code and returns the request id.
func (s *Service) RequestPhoneCode(ctx context.Context, id, phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrPhoneRequired
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return "", err
	}
	return "req_" + uuid.NewString(), nil
}

// VerifyPhoneCode accepts any 6 digit code.
func (s *Service) VerifyPhoneCode(ctx context.Context, id, code string) error {
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		return ErrInvalidCode
	}
	return s.ApprovePhone(ctx, id)
}

// ApprovePhone marks the phone number validated.
func (s *Service) ApprovePhone(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(u *User) error {
		u.IsPhoneValidated = true
		return nil
	})
	return err
}

// DeployStatus reports the smart-contract deployment of a user.
func (s *Service) DeployStatus(ctx context.Context, id string) (api.DeployStatus, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return deployStatus(user), nil
}

// RequestDeploy starts a deployment. It reports processing until the
// configured delay has elapsed.
func (s *Service) RequestDeploy(ctx context.Context, id string) (api.DeployStatus, error) {
	user, err := s.mutate(ctx, id, func(u *User) error {
		if u.KycStatus != api.KycApproved {
			return ErrKycNotApproved
		}
		if u.SafeAddress == "" && u.DeployRequestedAt == nil {
			now := s.opts.Now().UTC()
			u.DeployRequestedAt = &now
			s.settleDeploy(u)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return deployStatus(user), nil
}

// ApproveSafeDeploy deploys the account immediately.
func (s *Service) ApproveSafeDeploy(ctx context.Context, id string) (User, error) {
	return s.mutate(ctx, id, func(u *User) error {
		if u.SafeAddress == "" {
			u.SafeAddress = newSafeAddress()
		}
		return nil
	})
}

// SafeConfig describes the user's account. Only Ok and NotDeployed are reported.
func (s *Service) SafeConfig(ctx context.Context, id string) (api.SafeConfig, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return api.SafeConfig{}, err
	}
	cfg := api.SafeConfig{
		Address:            "0x1234567890123456789012345678901234567890",
		ChainID:            s.opts.ChainID,
		AccountStatus:      api.IntegrityNotDeployed,
		FiatSymbol:         "EUR",
		DelayModuleAddress: "0x0987654321098765432109876543210987654321",
		IbanAddress:        "DE89370400440532013000",
		IbanCountry:        "DE",
	}
	if user.SafeAddress != "" {
		cfg.Address = user.SafeAddress
		cfg.AccountStatus = api.IntegrityOk
	}
	return cfg, nil
}

// Balances are always zero on the development backend.
func (s *Service) Balances(ctx context.Context, id string) (api.Balances, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return api.Balances{}, err
	}
	return api.Balances{Total: "0", Spendable: "0", Pending: "0"}, nil
}

// Reset clears every onboarding fact of a user.
func (s *Service) Reset(ctx context.Context, id string) (User, error) {
	return s.mutate(ctx, id, func(u *User) error {
		*u = u.reset()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	before := clone(user)
	s.settleDeploy(&user)
	if err := fn(&user); err != nil {
		return User{}, err
	}
	if changed(before, user) {
		if err := s.repo.Update(ctx, user); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// settleDeploy completes a requested deployment whose delay has elapsed.
func (s *Service) settleDeploy(u *User) {
	if u.SafeAddress != "" || u.DeployRequestedAt == nil {
		return
	}
	if s.opts.Now().Sub(*u.DeployRequestedAt) >= s.opts.DeployDelay {
		u.SafeAddress = newSafeAddress()
	}
}

func deployStatus(u User) api.DeployStatus {
	switch {
	case u.SafeAddress != "":
		return api.DeployOk
	case u.DeployRequestedAt != nil:
		return api.DeployProcessing
	default:
		return api.DeployNotDeployed
	}
}

func changed(a, b User) bool {
	if a.FirstName != b.FirstName || a.LastName != b.LastName || a.KycStatus != b.KycStatus ||
		a.IsSourceOfFundsAnswered != b.IsSourceOfFundsAnswered || a.IsPhoneValidated != b.IsPhoneValidated ||
		a.Status != b.Status || a.SafeAddress != b.SafeAddress || len(a.AcceptedTerms) != len(b.AcceptedTerms) {
		return true
	}
	if (a.DeployRequestedAt == nil) != (b.DeployRequestedAt == nil) {
		return true
	}
	for k, v := range a.AcceptedTerms {
		if b.AcceptedTerms[k] != v {
			return true
		}
	}
	return false
}

func newSafeAddress() string {
	var raw [20]byte
	_, _ = rand.Read(raw[:])
	addr, err := siwe.ChecksumAddress("0x" + hex.EncodeToString(raw[:]))
	if err != nil {
		return "0x" + hex.EncodeToString(raw[:])
	}
	return addr
}
