package gate

import (
	"sync"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/profile"
)

// Step is a step of the safe-deployment flow.
type Step string

const (
	StepSourceOfFunds Step = "answer-source-of-funds"
	StepVerifyPhone   Step = "verify-phone-number"
	StepDeploySafe    Step = "deploy-safe"
)

// SafeFlow is the linear safe-deployment flow. It follows fetched profile
// facts, never the local outcome of a step.
type SafeFlow struct {
	mu   sync.Mutex
	step Step
}

// NewSafeFlow starts at the source-of-funds step.
func NewSafeFlow() *SafeFlow {
	return &SafeFlow{step: StepSourceOfFunds}
}

// Step returns the current step.
func (f *SafeFlow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Observe sets the step from the fetched profile and returns it. The step is
// the first one whose fact is still false, so a different account or a reset
// user starts over and no step is ever skipped. Until both the user and the
// account configuration are known the flow sits at the first step.
func (f *SafeFlow) Observe(st profile.State) Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = stepFor(st)
	return f.step
}

func stepFor(st profile.State) Step {
	switch {
	case st.User == nil || st.SafeConfig == nil:
		return StepSourceOfFunds
	case !st.User.IsSourceOfFundsAnswered:
		return StepSourceOfFunds
	case !st.User.IsPhoneValidated:
		return StepVerifyPhone
	}
	return StepDeploySafe
}

// Back moves one step back until the next observed profile. From the first
// step it returns the route to leave the flow for.
func (f *SafeFlow) Back() (Step, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.step {
	case StepVerifyPhone:
		f.step = StepSourceOfFunds
	case StepSourceOfFunds:
		return f.step, RouteKyc
	}
	return f.step, ""
}

// SafeDeploymentRedirect is the guard of the safe-deployment page: users that
// have not signed up or whose KYC is not approved are sent back. The bypass
// disables it.
func SafeDeploymentRedirect(st profile.State, bypass bool) (string, bool) {
	if bypass {
		return "", false
	}
	if !st.IsSignedUp {
		return RouteRegister, true
	}
	if st.User == nil {
		return "", false
	}
	if st.User.KycStatus != api.KycApproved {
		return RouteKyc, true
	}
	return "", false
}
