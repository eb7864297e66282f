package gate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/devmode"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/profile"
	"github.com/congo-pay/walletgate/internal/session"
	"github.com/congo-pay/walletgate/internal/storage"
)

type observable[T any] struct {
	mu   sync.Mutex
	v    T
	subs []func(T)
}

func (o *observable[T]) get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

func (o *observable[T]) subscribe(fn func(T)) func() {
	o.mu.Lock()
	o.subs = append(o.subs, fn)
	o.mu.Unlock()
	return func() {}
}

func (o *observable[T]) set(v T) {
	o.mu.Lock()
	o.v = v
	subs := append([]func(T){}, o.subs...)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

type fakeSession struct{ observable[session.Snapshot] }

func (f *fakeSession) Snapshot() session.Snapshot { return f.get() }
func (f *fakeSession) Subscribe(fn func(session.Snapshot)) func() { return f.subscribe(fn) }

type fakeProfile struct{ observable[profile.State] }

func (f *fakeProfile) State() profile.State { return f.get() }
func (f *fakeProfile) Subscribe(fn func(profile.State)) func() { return f.subscribe(fn) }

type routeRecorder struct {
	mu     sync.Mutex
	routes []string
	gate   *Gate
}

func (r *routeRecorder) Navigate(route string) {
	r.mu.Lock()
	r.routes = append(r.routes, route)
	g := r.gate
	r.mu.Unlock()
	if g != nil {
		g.SetRoute(route)
	}
}

func (r *routeRecorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

var signedIn = session.Snapshot{Address: "0xabc", Connected: true, IsAuthenticated: true, HasUserID: true}

func setup(t *testing.T, flags *devmode.Flags) (*Gate, *fakeSession, *fakeProfile, *routeRecorder) {
	t.Helper()
	sess, prof := &fakeSession{}, &fakeProfile{}
	nav := &routeRecorder{}
	var df DevFlags
	if flags != nil {
		df = flags
	}
	g := New(sess, prof, df, nav, logging.Discard())
	nav.gate = g
	g.Start()
	t.Cleanup(g.Stop)
	return g, sess, prof, nav
}

func TestGateFollowsOnboarding(t *testing.T) {
	g, sess, prof, nav := setup(t, nil)
	assert.Equal(t, Connecting, g.Phase())

	var seen []Phase
	g.OnPhase(func(_, next Phase) { seen = append(seen, next) })

	sess.set(session.Snapshot{Address: "0xabc", Connected: true, Loading: true})
	assert.Equal(t, Loading, g.Phase())

	sess.set(session.Snapshot{Address: "0xabc", Connected: true})
	assert.Equal(t, SigningIn, g.Phase())
	assert.Equal(t, "Login", g.Screen().Title)

	sess.set(signedIn)
	assert.Equal(t, Loading, g.Phase(), "profile not fetched yet")

	user := &api.User{KycStatus: api.KycPending}
	safe := &api.SafeConfig{AccountStatus: api.IntegrityNotDeployed}
	prof.set(profile.Derive(signedIn, user, safe))
	// The redirect moved the application onto the KYC route itself.
	assert.Equal(t, []string{RouteKyc}, nav.Routes())
	assert.Equal(t, RouteKyc, g.Route())
	assert.Equal(t, Ready, g.Phase())

	assert.Equal(t, []Phase{Loading, SigningIn, Loading, NeedsKyc, Ready}, seen)
}

func TestGateIgnoresRecordsOfAnotherSession(t *testing.T) {
	g, sess, prof, _ := setup(t, nil)

	prof.set(profile.Derive(signedIn, &api.User{Status: api.AccountDeactivated}, nil))
	sess.set(signedIn)
	assert.Equal(t, Deactivated, g.Phase())

	switched := signedIn
	switched.Address = "0xdef"
	switched.Generation++
	switched.IsAuthenticated = false
	sess.set(switched)
	assert.Equal(t, SigningIn, g.Phase(), "deactivation of the previous account must not leak")
}

func TestGateSkipSafeSetup(t *testing.T) {
	flags := devmode.Load(context.Background(), storage.NewMemory(), true, logging.Discard())
	g, sess, prof, nav := setup(t, flags)

	sess.set(signedIn)
	prof.set(profile.Derive(signedIn, &api.User{KycStatus: api.KycApproved}, &api.SafeConfig{AccountStatus: api.IntegrityNotDeployed}))
	require.Equal(t, []string{RouteSafeDeployment}, nav.Routes())
	assert.Equal(t, Ready, g.Phase())

	assert.Equal(t, RouteSafeDeployment, g.Route())

	require.NoError(t, g.SkipSafeSetup())
	assert.Equal(t, []string{RouteSafeDeployment, RouteHome}, nav.Routes())
	assert.Equal(t, RouteHome, g.Route())
	assert.Equal(t, Ready, g.Phase())
}

func TestGateWithoutNavigatorShowsScreen(t *testing.T) {
	flags := devmode.Load(context.Background(), storage.NewMemory(), true, logging.Discard())
	sess, prof := &fakeSession{}, &fakeProfile{}
	g := New(sess, prof, flags, nil, logging.Discard())
	g.Start()
	defer g.Stop()

	sess.set(signedIn)
	prof.set(profile.Derive(signedIn, &api.User{KycStatus: api.KycApproved}, &api.SafeConfig{AccountStatus: api.IntegrityNotDeployed}))
	assert.Equal(t, NeedsSafeDeployment, g.Phase())
	screen := g.Screen()
	assert.Equal(t, "Safe Setup", screen.Title)
	assert.Equal(t, "Skip Safe Setup (Dev)", screen.DevAction)

	require.NoError(t, g.SkipSafeSetup())
	assert.Equal(t, Ready, g.Phase())
}

func TestGateBypass(t *testing.T) {
	flags := devmode.Load(context.Background(), storage.NewMemory(), true, logging.Discard())
	g, sess, prof, nav := setup(t, flags)
	require.NoError(t, flags.SetBypass(context.Background(), true))

	sess.set(signedIn)
	prof.set(profile.Derive(signedIn, &api.User{KycStatus: api.KycApproved}, &api.SafeConfig{AccountStatus: api.IntegrityNotDeployed}))
	assert.Equal(t, Ready, g.Phase())
	assert.Empty(t, nav.Routes())

	require.NoError(t, flags.SetBypass(context.Background(), false))
	assert.Equal(t, []string{RouteSafeDeployment}, nav.Routes())
}
