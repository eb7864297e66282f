// Package profile caches the remote user profile and account configuration
// that drive onboarding decisions, and polls balances once onboarding is done.
package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/notification"
	"github.com/congo-pay/walletgate/internal/session"
)

// API is the subset of the backend the cache reads.
type API interface {
	User(ctx context.Context) (api.User, error)
	SafeConfig(ctx context.Context) (api.SafeConfig, error)
	Balances(ctx context.Context) (api.Balances, error)
}

// SessionSource exposes session snapshots and their changes. Invalidate is
// called when the backend refuses the current credential.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
	Invalidate(ctx context.Context)
}

// State is the cached records plus the flags derived from them. Nil records
// have not been fetched for the current session.
type State struct {
	User       *api.User
	SafeConfig *api.SafeConfig
	Balances   *api.Balances

	// Generation is the session generation the records were fetched under.
	Generation      uint64
	IsAuthenticated bool
	IsSignedUp      bool
	UserLoading     bool

	IsKycApproved    Flag
	IsSafeConfigured Flag
	IsOnboarded      Flag
	IsDeactivated    bool

	// ShowInitializingLoader is true while a signed-up user's records needed
	// for the next decision are still on their way.
	ShowInitializingLoader bool
}

// Derive computes the flags of a state from the session facts and records.
func Derive(snap session.Snapshot, user *api.User, safe *api.SafeConfig) State {
	st := State{
		User:            user,
		SafeConfig:      safe,
		Generation:      snap.Generation,
		IsAuthenticated: snap.IsAuthenticated,
		IsSignedUp:      snap.HasUserID,
	}
	if snap.IsAuthenticated && snap.HasUserID && user != nil {
		st.IsKycApproved = FlagOf(user.KycStatus == api.KycApproved)
	}
	if safe != nil {
		st.IsSafeConfigured = FlagOf(safe.IsConfigured())
	}
	st.IsOnboarded = and(FlagOf(snap.IsAuthenticated), FlagOf(snap.HasUserID), st.IsKycApproved, st.IsSafeConfigured)
	st.IsDeactivated = user != nil && user.Status == api.AccountDeactivated

	switch {
	case !snap.HasUserID:
	case user == nil, st.IsKycApproved == Unknown:
		st.ShowInitializingLoader = true
	case st.IsKycApproved == True && safe == nil:
		st.ShowInitializingLoader = true
	}
	return st
}

// Options tunes a Cache.
type Options struct {
	// BalanceInterval is the delay between balance polls once onboarded.
	BalanceInterval time.Duration
}

// Cache follows a session and keeps the profile records of its user.
type Cache struct {
	api      API
	session  SessionSource
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	snap     session.Snapshot
	user     *api.User
	safe     *api.SafeConfig
	balances *api.Balances
	pending  int
	// epoch changes whenever cached records stop belonging to the current
	// session; fetches started under another epoch are dropped.
	epoch   uint64
	poller  context.CancelFunc
	unwatch func()
	closed  bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

// New builds a cache. Call Start to begin following the session. notifier
// may be nil.
func New(client API, source SessionSource, notifier notification.Notifier, logger *slog.Logger, opts Options) *Cache {
	if opts.BalanceInterval <= 0 {
		opts.BalanceInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		api:      client,
		session:  source,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]func(State)),
	}
}

// Start subscribes to the session and applies its current state.
func (c *Cache) Start() {
	unwatch := c.session.Subscribe(c.onSession)
	c.mu.Lock()
	c.unwatch = unwatch
	c.mu.Unlock()
	c.onSession(c.session.Snapshot())
}

// Close stops following the session and any polling.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unwatch := c.unwatch
	poller := c.poller
	c.poller = nil
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if poller != nil {
		poller()
	}
	c.cancel()
}

// State returns the cached records and derived flags.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// Subscribe registers fn for every state change.
func (c *Cache) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// RefreshUser refetches the profile. It does nothing unless the session is
// authenticated as a signed-up user.
func (c *Cache) RefreshUser(ctx context.Context) error {
	c.mu.RLock()
	ok := c.signedInLocked()
	epoch := c.epoch
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.fetchUser(ctx, epoch)
}

// RefreshSafeConfig refetches the account configuration. It does nothing
// unless the session is authenticated as a signed-up user; the backend
// answers 401 for anyone else.
func (c *Cache) RefreshSafeConfig(ctx context.Context) error {
	c.mu.RLock()
	ok := c.signedInLocked()
	epoch := c.epoch
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.fetchSafeConfig(ctx, epoch)
}

func (c *Cache) onSession(snap session.Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasSignedIn := c.signedInLocked()
	prevGen := c.snap.Generation
	c.snap = snap
	signedIn := c.signedInLocked()

	reset := wasSignedIn != signedIn || prevGen != snap.Generation
	if reset {
		c.epoch++
		c.user, c.safe, c.balances = nil, nil, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	if reset && signedIn {
		c.logger.Debug("session signed in, loading profile", slog.String("address", snap.Address))
		go func() { _ = c.fetchUser(c.ctx, epoch) }()
		go func() { _ = c.fetchSafeConfig(c.ctx, epoch) }()
	}
	c.changed()
}

func (c *Cache) fetchUser(ctx context.Context, epoch uint64) error {
	c.track(1)
	defer c.track(-1)
	user, err := c.api.User(ctx)
	if err != nil {
		c.fetchFailed(ctx, epoch, "user", err)
		return err
	}
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.user = &user
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Cache) fetchSafeConfig(ctx context.Context, epoch uint64) error {
	cfg, err := c.api.SafeConfig(ctx)
	if err != nil {
		c.fetchFailed(ctx, epoch, "safe config", err)
		return err
	}
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.safe = &cfg
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Cache) track(delta int) {
	c.mu.Lock()
	c.pending += delta
	c.mu.Unlock()
	if delta < 0 {
		c.changed()
	}
}

// fetchFailed handles a failed fetch made under epoch. A refused credential
// signs the session out; other failures are shown to the user. Records of a
// superseded session are ignored either way.
func (c *Cache) fetchFailed(ctx context.Context, epoch uint64, what string, err error) {
	c.mu.RLock()
	current := c.epoch == epoch && !c.closed
	c.mu.RUnlock()
	if !current || ctx.Err() != nil {
		return
	}
	if api.IsUnauthorized(err) {
		c.logger.Warn("fetch "+what+": session no longer accepted", slog.Any("error", err))
		c.session.Invalidate(ctx)
		return
	}
	c.logger.Error("fetch "+what, slog.Any("error", err))
	if c.notifier != nil {
		notification.Error(ctx, c.notifier, "Error fetching "+what, err)
	}
}

func (c *Cache) signedInLocked() bool {
	return c.snap.IsAuthenticated && c.snap.HasUserID
}

func (c *Cache) stateLocked() State {
	st := Derive(c.snap, c.user, c.safe)
	st.Balances = c.balances
	st.UserLoading = c.pending > 0
	return st
}

// changed starts or stops the balance poller to match the onboarding flag
// and notifies subscribers.
func (c *Cache) changed() {
	c.mu.Lock()
	st := c.stateLocked()
	var stop context.CancelFunc
	start := false
	switch {
	case c.closed:
	case st.IsOnboarded.IsTrue() && c.poller == nil:
		ctx, cancel := context.WithCancel(c.ctx)
		c.poller = cancel
		go c.pollBalances(ctx, c.epoch)
		start = true
	case !st.IsOnboarded.IsTrue() && c.poller != nil:
		stop = c.poller
		c.poller = nil
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
		c.logger.Debug("balance polling stopped")
	}
	if start {
		c.logger.Debug("balance polling started", slog.Duration("every", c.opts.BalanceInterval))
	}

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
