package identity

import (
	"time"

	"github.com/congo-pay/walletgate/internal/api"
)

// User is the backend record of a signed-up wallet.
type User struct {
	ID                      string
	Address                 string
	Email                   string
	FirstName               string
	LastName                string
	PartnerID               string
	KycStatus               api.KycStatus
	IsSourceOfFundsAnswered bool
	IsPhoneValidated        bool
	Status                  api.AccountStatus
	SafeAddress             string
	DeployRequestedAt       *time.Time
	AcceptedTerms           map[string]string
	CreatedAt               time.Time
}

// SignupRequest registers a wallet under an email address.
type SignupRequest struct {
	Address   string
	Email     string
	PartnerID string
}

// View renders the record the way GET /user returns it.
func (u User) View() api.User {
	view := api.User{
		ID:                      u.ID,
		Email:                   u.Email,
		FirstName:               u.FirstName,
		LastName:                u.LastName,
		KycStatus:               u.KycStatus,
		IsSourceOfFundsAnswered: u.IsSourceOfFundsAnswered,
		IsPhoneValidated:        u.IsPhoneValidated,
		Status:                  u.Status,
		SafeWallets:             []api.SafeWallet{},
	}
	if u.SafeAddress != "" {
		view.SafeWallets = append(view.SafeWallets, api.SafeWallet{Address: u.SafeAddress})
	}
	return view
}

// reset returns the record with every onboarding fact cleared.
func (u User) reset() User {
	return User{
		ID:        u.ID,
		Address:   u.Address,
		Email:     u.Email,
		PartnerID: u.PartnerID,
		KycStatus: api.KycNotStarted,
		Status:    api.AccountActive,
		CreatedAt: u.CreatedAt,
	}
}
