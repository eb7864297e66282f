// Package gate decides which single onboarding screen, or the application
// itself, the connected user sees.
package gate

import "github.com/congo-pay/walletgate/internal/profile"

// Phase is the outcome of the gate decision.
type Phase string

const (
	Loading             Phase = "loading"
	Connecting          Phase = "connecting"
	Deactivated         Phase = "deactivated"
	SigningIn           Phase = "signing_in"
	NeedsSignup         Phase = "needs_signup"
	NeedsKyc            Phase = "needs_kyc"
	NeedsSafeDeployment Phase = "needs_safe_deployment"
	Ready               Phase = "ready"
)

// Input is every fact the decision reads.
type Input struct {
	Connected      bool
	SessionLoading bool
	Authenticated  bool
	HasUserID      bool

	IsDeactivated          bool
	IsKycApproved          profile.Flag
	IsSafeConfigured       profile.Flag
	IsOnboarded            profile.Flag
	ShowInitializingLoader bool

	// OnboardingRoute is set when the current route is itself an onboarding
	// step, which suppresses the redirects into onboarding.
	OnboardingRoute bool
	Bypass          bool
	SkipSafeSetup   bool
}

// Derive maps in to a phase. Rules are evaluated in order and the first
// match wins.
func Derive(in Input) Phase {
	switch {
	case !in.Connected:
		return Connecting
	case in.IsDeactivated:
		return Deactivated
	case in.SessionLoading:
		return Loading
	case !in.Authenticated:
		return SigningIn
	case !in.HasUserID && !in.OnboardingRoute:
		return NeedsSignup
	case in.ShowInitializingLoader && !in.OnboardingRoute:
		return Loading
	case in.IsKycApproved.IsFalse() && !in.OnboardingRoute:
		return NeedsKyc
	case in.IsSafeConfigured.IsFalse() && !in.OnboardingRoute && !in.Bypass && !in.SkipSafeSetup:
		return NeedsSafeDeployment
	case in.IsOnboarded.IsFalse() && !in.OnboardingRoute && !in.Bypass && !in.SkipSafeSetup:
		return NeedsSignup
	}
	return Ready
}

// Redirects reports whether entering p moves the user to another route.
func (p Phase) Redirects() bool {
	switch p {
	case NeedsSignup, NeedsKyc, NeedsSafeDeployment:
		return true
	}
	return false
}
