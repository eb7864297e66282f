package gate

import (
	"log/slog"
	"sync"

	"github.com/congo-pay/walletgate/internal/profile"
	"github.com/congo-pay/walletgate/internal/session"
)

// SessionView is the read side of a session.
type SessionView interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
}

// ProfileView is the read side of the profile cache.
type ProfileView interface {
	State() profile.State
	Subscribe(fn func(profile.State)) func()
}

// DevFlags are the developer navigation switches.
type DevFlags interface {
	Enabled() bool
	Bypass() bool
	SkipSafeSetup() bool
	SetSkipSafeSetup(on bool) error
	Subscribe(fn func()) func()
}

// Navigator moves the application to a route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Gate re-derives the phase on every change of its inputs and performs the
// redirect of a phase when it is entered.
type Gate struct {
	session SessionView
	profile ProfileView
	flags   DevFlags
	nav     Navigator
	logger  *slog.Logger

	evalMu  sync.Mutex
	mu      sync.RWMutex
	route   string
	phase   Phase
	started bool
	unwatch []func()

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(prev, next Phase)
}

// New builds a gate. flags and nav may be nil.
func New(sess SessionView, prof ProfileView, flags DevFlags, nav Navigator, logger *slog.Logger) *Gate {
	return &Gate{
		session: sess,
		profile: prof,
		flags:   flags,
		nav:     nav,
		logger:  logger,
		route:   RouteHome,
		subs:    make(map[int]func(prev, next Phase)),
	}
}

// Start follows the inputs and evaluates the current phase.
func (g *Gate) Start() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	unwatch := []func(){
		g.session.Subscribe(func(session.Snapshot) { g.Evaluate() }),
		g.profile.Subscribe(func(profile.State) { g.Evaluate() }),
	}
	if g.flags != nil {
		unwatch = append(unwatch, g.flags.Subscribe(g.Evaluate))
	}
	g.mu.Lock()
	g.unwatch = unwatch
	g.mu.Unlock()
	g.Evaluate()
}

// Stop detaches the gate from its inputs.
func (g *Gate) Stop() {
	g.mu.Lock()
	unwatch := g.unwatch
	g.unwatch = nil
	g.mu.Unlock()
	for _, fn := range unwatch {
		fn()
	}
}

// OnPhase registers fn for every phase change.
func (g *Gate) OnPhase(fn func(prev, next Phase)) func() {
	g.subMu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.subMu.Unlock()
	return func() {
		g.subMu.Lock()
		delete(g.subs, id)
		g.subMu.Unlock()
	}
}

// Phase returns the last derived phase.
func (g *Gate) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// Route returns the current route.
func (g *Gate) Route() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.route
}

// Screen describes what to show now.
func (g *Gate) Screen() Screen {
	dev := g.flags != nil && g.flags.Enabled()
	return ScreenFor(g.Phase(), g.session.Snapshot().IsAuthenticating, dev)
}

// SetRoute records that the application moved to route and re-evaluates.
func (g *Gate) SetRoute(route string) {
	g.mu.Lock()
	g.route = route
	g.mu.Unlock()
	g.Evaluate()
}

// SkipSafeSetup turns on the in-process developer skip and goes home.
func (g *Gate) SkipSafeSetup() error {
	if g.flags == nil {
		return nil
	}
	if err := g.flags.SetSkipSafeSetup(true); err != nil {
		return err
	}
	g.navigate(RouteHome)
	return nil
}

// Input gathers the facts the decision reads right now.
func (g *Gate) Input() Input {
	snap := g.session.Snapshot()
	st := g.profile.State()
	// Records fetched for another session state are not trusted.
	if st.Generation != snap.Generation || st.IsAuthenticated != snap.IsAuthenticated || st.IsSignedUp != snap.HasUserID {
		st = profile.Derive(snap, nil, nil)
	}

	in := Input{
		Connected:              snap.Connected,
		SessionLoading:         snap.Loading,
		Authenticated:          snap.IsAuthenticated,
		HasUserID:              snap.HasUserID,
		IsDeactivated:          st.IsDeactivated,
		IsKycApproved:          st.IsKycApproved,
		IsSafeConfigured:       st.IsSafeConfigured,
		IsOnboarded:            st.IsOnboarded,
		ShowInitializingLoader: st.ShowInitializingLoader,
		OnboardingRoute:        IsOnboardingRoute(g.Route()),
	}
	if g.flags != nil {
		in.Bypass = g.flags.Bypass()
		in.SkipSafeSetup = g.flags.SkipSafeSetup()
	}
	return in
}

// Evaluate re-derives the phase and, if it changed, notifies and redirects.
func (g *Gate) Evaluate() {
	g.evalMu.Lock()
	in := g.Input()
	next := Derive(in)

	g.mu.Lock()
	prev := g.phase
	g.phase = next
	g.mu.Unlock()
	g.evalMu.Unlock()

	if prev == next {
		return
	}
	g.logger.Info("onboarding phase changed", slog.String("from", string(prev)), slog.String("to", string(next)))

	g.subMu.Lock()
	fns := make([]func(prev, next Phase), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subMu.Unlock()
	for _, fn := range fns {
		fn(prev, next)
	}

	if next.Redirects() {
		g.navigate(ScreenFor(next, false, false).Route)
	}
}

func (g *Gate) navigate(route string) {
	if g.nav == nil {
		return
	}
	g.nav.Navigate(route)
}
