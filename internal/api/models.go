package api

// KycStatus is the identity-verification state reported by the backend.
type KycStatus string

const (
	KycNotStarted            KycStatus = "notStarted"
	KycDocumentsRequested    KycStatus = "documentsRequested"
	KycPending               KycStatus = "pending"
	KycProcessing            KycStatus = "processing"
	KycApproved              KycStatus = "approved"
	KycResubmissionRequested KycStatus = "resubmissionRequested"
	KycRejected              KycStatus = "rejected"
	KycRequiresAction        KycStatus = "requiresAction"
)

// Valid reports whether s is one of the known statuses.
func (s KycStatus) Valid() bool {
	switch s {
	case KycNotStarted, KycDocumentsRequested, KycPending, KycProcessing,
		KycApproved, KycResubmissionRequested, KycRejected, KycRequiresAction:
		return true
	}
	return false
}

// AccountStatus is the lifecycle state of the user record.
type AccountStatus string

const (
	AccountActive      AccountStatus = "ACTIVE"
	AccountDeactivated AccountStatus = "DEACTIVATED"
)

// SafeWallet is a deployed smart-contract account.
type SafeWallet struct {
	Address string `json:"address"`
}

// User is the remote profile driving onboarding decisions.
type User struct {
	ID                      string        `json:"userId"`
	Email                   string        `json:"email"`
	FirstName               string        `json:"firstName,omitempty"`
	LastName                string        `json:"lastName,omitempty"`
	KycStatus               KycStatus     `json:"kycStatus"`
	IsSourceOfFundsAnswered bool          `json:"isSourceOfFundsAnswered"`
	IsPhoneValidated        bool          `json:"isPhoneValidated"`
	Status                  AccountStatus `json:"status"`
	SafeWallets             []SafeWallet  `json:"safeWallet"`
}

// AccountIntegrity is the integrity status of the user's smart-contract account.
// Only Ok and NotDeployed are reported by the development backend.
type AccountIntegrity int

const (
	IntegrityOk AccountIntegrity = iota
	IntegrityBlocked
	IntegrityNotDeployed
	IntegrityMisconfigured
	IntegrityDelayQueueNotEmpty
	IntegrityUnexpectedError
)

// SafeConfig describes the user's smart-contract account. Fields other than
// AccountStatus are passed through untouched.
type SafeConfig struct {
	Address            string           `json:"address"`
	ChainID            int64            `json:"chainId"`
	AccountStatus      AccountIntegrity `json:"accountStatus"`
	FiatSymbol         string           `json:"fiatSymbol,omitempty"`
	AccountNonce       int64            `json:"accountNonce"`
	DelayModuleAddress string           `json:"delayModuleAddress,omitempty"`
	IbanAddress        string           `json:"ibanAddress,omitempty"`
	IbanCountry        string           `json:"ibanCountry,omitempty"`
}

// IsConfigured reports whether the account is usable.
func (c SafeConfig) IsConfigured() bool {
	return c.AccountStatus == IntegrityOk || c.AccountStatus == IntegrityDelayQueueNotEmpty
}

// Term is one legal document the user has to accept.
type Term struct {
	Type            string  `json:"type"`
	URL             string  `json:"url"`
	Name            string  `json:"name"`
	CurrentVersion  string  `json:"currentVersion"`
	Accepted        bool    `json:"accepted"`
	AcceptedVersion *string `json:"acceptedVersion"`
}

// NeedsAcceptance reports whether the current version is not yet accepted.
func (t Term) NeedsAcceptance() bool {
	return !t.Accepted || t.AcceptedVersion == nil || *t.AcceptedVersion != t.CurrentVersion
}

// KycQuestion is a source-of-funds question with its answer.
type KycQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DeployStatus is the smart-contract deployment state.
type DeployStatus string

const (
	DeployOk          DeployStatus = "ok"
	DeployProcessing  DeployStatus = "processing"
	DeployNotDeployed DeployStatus = "not_deployed"
	DeployFailed      DeployStatus = "failed"
)

// Balances are the account balances, as decimal strings in minor units.
type Balances struct {
	Total     string `json:"total"`
	Spendable string `json:"spendable"`
	Pending   string `json:"pending"`
}

// SignupRequest registers the connected wallet.
type SignupRequest struct {
	AuthEmail string `json:"authEmail"`
	PartnerID string `json:"partnerId,omitempty"`
}

// ChallengeRequest submits a signed sign-in message.
type ChallengeRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// TokenResponse carries a freshly issued credential.
type TokenResponse struct {
	Token string `json:"token"`
}

// TermsResponse wraps a list of terms.
type TermsResponse struct {
	Terms []Term `json:"terms"`
}

// AcceptTermsRequest accepts one version of one document.
type AcceptTermsRequest struct {
	Terms   string `json:"terms"`
	Version string `json:"version"`
}

// PhoneRequest asks for a one-time code.
type PhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// PhoneCheckRequest submits a one-time code.
type PhoneCheckRequest struct {
	Code string `json:"code"`
}

// OKResponse is the generic acknowledgement body.
type OKResponse struct {
	OK        bool   `json:"ok"`
	Success   bool   `json:"success"`
	RequestID string `json:"requestId,omitempty"`
}

// Acknowledged reports whether either acknowledgement flag is set.
func (r OKResponse) Acknowledged() bool {
	return r.OK || r.Success
}

// DeployResponse carries a deployment status.
type DeployResponse struct {
	Status DeployStatus `json:"status"`
}

// KycIntegration points at the hosted identity-verification flow.
type KycIntegration struct {
	URL string `json:"url"`
}

// DevUserRequest targets a user in the development helpers.
type DevUserRequest struct {
	UserID string    `json:"userId"`
	Status KycStatus `json:"status,omitempty"`
}
