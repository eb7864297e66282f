package api

import (
	"context"
	"fmt"
)

// Nonce fetches a one-time challenge nonce. The backend answers with a bare
// JSON string.
func (c *Client) Nonce(ctx context.Context) (string, error) {
	var nonce string
	if err := c.get(ctx, "api/v1/auth/nonce", &nonce); err != nil {
		return "", err
	}
	if nonce == "" {
		return "", fmt.Errorf("nonce: %w", ErrEmptyResponse)
	}
	return nonce, nil
}

// Challenge submits a signed sign-in message and returns the issued credential.
func (c *Client) Challenge(ctx context.Context, message, signature string) (string, error) {
	var resp TokenResponse
	if err := c.post(ctx, "api/v1/auth/challenge", ChallengeRequest{Message: message, Signature: signature}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("challenge token: %w", ErrEmptyResponse)
	}
	return resp.Token, nil
}

// Signup registers the wallet and returns a credential carrying a userId.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	var resp TokenResponse
	if err := c.post(ctx, "api/v1/auth/signup", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("signup token: %w", ErrEmptyResponse)
	}
	return resp.Token, nil
}

// User fetches the profile of the authenticated user.
func (c *Client) User(ctx context.Context) (User, error) {
	var u User
	err := c.get(ctx, "api/v1/user", &u)
	return u, err
}

// SafeConfig fetches the smart-contract account configuration.
func (c *Client) SafeConfig(ctx context.Context) (SafeConfig, error) {
	var cfg SafeConfig
	err := c.get(ctx, "api/v1/safe-config", &cfg)
	return cfg, err
}

// Balances fetches the account balances.
func (c *Client) Balances(ctx context.Context) (Balances, error) {
	var b Balances
	err := c.get(ctx, "api/v1/account/balances", &b)
	return b, err
}

// Terms lists the public terms documents.
func (c *Client) Terms(ctx context.Context) ([]Term, error) {
	var resp TermsResponse
	err := c.get(ctx, "api/v1/terms", &resp)
	return resp.Terms, err
}

// UserTerms lists the terms with the user's acceptance state.
func (c *Client) UserTerms(ctx context.Context) ([]Term, error) {
	var resp TermsResponse
	err := c.get(ctx, "api/v1/user/terms", &resp)
	return resp.Terms, err
}

// AcceptTerms records acceptance of one version of one document.
func (c *Client) AcceptTerms(ctx context.Context, termType, version string) error {
	return c.post(ctx, "api/v1/user/terms", AcceptTermsRequest{Terms: termType, Version: version}, nil)
}

// KycIntegration returns the hosted identity-verification URL.
func (c *Client) KycIntegration(ctx context.Context) (string, error) {
	var resp KycIntegration
	if err := c.get(ctx, "api/v1/kyc/integration", &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("kyc url: %w", ErrEmptyResponse)
	}
	return resp.URL, nil
}

// SourceOfFunds lists the source-of-funds questions.
func (c *Client) SourceOfFunds(ctx context.Context) ([]KycQuestion, error) {
	var qs []KycQuestion
	err := c.get(ctx, "api/v1/source-of-funds", &qs)
	return qs, err
}

// SubmitSourceOfFunds submits answered questions.
func (c *Client) SubmitSourceOfFunds(ctx context.Context, answers []KycQuestion) error {
	return c.post(ctx, "api/v1/source-of-funds", answers, nil)
}

// RequestPhoneCode asks the backend to text a one-time code.
func (c *Client) RequestPhoneCode(ctx context.Context, phone string) error {
	var resp OKResponse
	if err := c.post(ctx, "api/v1/verification", PhoneRequest{PhoneNumber: phone}, &resp); err != nil {
		return err
	}
	if !resp.Acknowledged() {
		return ErrNotAcknowledged
	}
	return nil
}

// VerifyPhoneCode submits the one-time code.
func (c *Client) VerifyPhoneCode(ctx context.Context, code string) error {
	var resp OKResponse
	if err := c.post(ctx, "api/v1/verification/check", PhoneCheckRequest{Code: code}, &resp); err != nil {
		return err
	}
	if !resp.Acknowledged() {
		return ErrNotAcknowledged
	}
	return nil
}

// DeployStatus polls the smart-contract deployment.
func (c *Client) DeployStatus(ctx context.Context) (DeployStatus, error) {
	var resp DeployResponse
	if err := c.get(ctx, "api/v1/safe/deploy", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// DeploySafe requests the smart-contract deployment.
func (c *Client) DeploySafe(ctx context.Context) error {
	return c.post(ctx, "api/v1/safe/deploy", nil, nil)
}

// DevSetKycStatus forces the KYC status of a user on a development backend.
func (c *Client) DevSetKycStatus(ctx context.Context, userID string, status KycStatus) error {
	return c.post(ctx, "dev/set-kyc-status", DevUserRequest{UserID: userID, Status: status}, nil)
}

// DevApprove calls one of the development approval helpers, e.g.
// "source-of-funds-approve" or "safe-deploy-approve".
func (c *Client) DevApprove(ctx context.Context, helper, userID string) error {
	return c.post(ctx, "dev/"+helper, DevUserRequest{UserID: userID}, nil)
}
