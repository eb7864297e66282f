package gate

// Routes of the application the gate knows about.
const (
	RouteHome           = "/"
	RouteRegister       = "/register"
	RouteKyc            = "/kyc"
	RouteSafeDeployment = "/safe-deployment"
	RouteWithdraw       = "/withdraw"
)

var onboardingRoutes = map[string]bool{
	RouteRegister:       true,
	RouteKyc:            true,
	RouteSafeDeployment: true,
}

// IsOnboardingRoute reports whether route is one of the onboarding steps.
func IsOnboardingRoute(route string) bool {
	return onboardingRoutes[route]
}

// Screen describes what to show for a phase.
type Screen struct {
	Phase       Phase
	Title       string
	Description string
	Action      string
	// Route is where Action leads; empty when the action is not navigation.
	Route     string
	Busy      bool
	DevAction string
	HelpLink  bool
}

// ScreenFor returns the screen of p. busy marks a running connection or
// signature request.
func ScreenFor(p Phase, busy, dev bool) Screen {
	s := Screen{Phase: p, Busy: busy}
	switch p {
	case Loading:
		s.Title = "Loading"
		s.Description = "Initializing your account..."
	case Connecting:
		s.Title = "Connect your wallet"
		s.Description = "Please connect your wallet to continue."
		s.Action = "Connect wallet"
		if busy {
			s.Action = "Connecting..."
		}
	case Deactivated:
		s.Title = "Account deactivated"
		s.Description = "Your account has been deactivated."
		s.Action = "Withdraw funds"
		s.Route = RouteWithdraw
		s.HelpLink = true
	case SigningIn:
		s.Title = "Login"
		s.Description = "Please sign the message request to login."
		s.Action = "Sign message"
		if busy {
			s.Action = "Signing message..."
		}
	case NeedsSignup:
		s.Title = "Welcome to Gnosis Pay"
		s.Description = "You need to complete the signup process to use the app."
		s.Action = "Complete Signup"
		s.Route = RouteRegister
		s.HelpLink = true
	case NeedsKyc:
		s.Title = "Identity Verification"
		s.Description = "We need to verify your identity to comply with regulations."
		s.Action = "Complete KYC Verification"
		s.Route = RouteKyc
	case NeedsSafeDeployment:
		s.Title = "Safe Setup"
		s.Description = "We need to deploy your Safe to secure your funds."
		s.Action = "Setup Safe"
		s.Route = RouteSafeDeployment
		if dev {
			s.DevAction = "Skip Safe Setup (Dev)"
		}
	case Ready:
		s.Route = RouteHome
	}
	return s
}
