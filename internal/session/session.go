// Package session owns the authenticated session of the connected wallet:
// the credential for the current address, its proactive renewal and the
// derived authentication flags everything else reads.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/wallet"
)

// ConnectionSource supplies wallet connection facts and their changes.
type ConnectionSource interface {
	Current() wallet.Connection
	Subscribe(fn func(wallet.Connection)) func()
}

// BearerSetter receives the credential to attach to authenticated requests.
type BearerSetter interface {
	SetBearer(token string)
}

// Snapshot is the derived session state at one instant.
type Snapshot struct {
	Address          string
	Connected        bool
	IsAuthenticated  bool
	IsAuthenticating bool
	HasUserID        bool
	Loading          bool
	// Generation increases whenever the connected account switches between
	// two addresses; consumers drop everything they cached for the old one.
	Generation uint64
}

// Options tunes a Session.
type Options struct {
	// AutoRenew starts a challenge as soon as the stored credential for a
	// freshly connected address turns out to be absent or expired.
	AutoRenew bool
	Now       func() time.Time
}

// Session is the composition root of the authentication layer. Construct one
// per application instance and pass it to whatever needs session state.
type Session struct {
	wallet  ConnectionSource
	store   *credential.Store
	signer  *ChallengeSigner
	bearer  BearerSetter
	sched   *RenewalScheduler
	logger  *slog.Logger
	opts    Options
	renewal singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	conn       wallet.Connection
	token      string
	loading    bool
	generation uint64
	started    bool
	closed     bool
	unwatch    func()

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// New builds a session. Call Start to begin following the wallet.
func New(source ConnectionSource, store *credential.Store, signer *ChallengeSigner, bearer BearerSetter, logger *slog.Logger, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		wallet: source,
		store:  store,
		signer: signer,
		bearer: bearer,
		logger: logger,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]func(Snapshot)),
	}
	s.sched = NewRenewalScheduler(func() { _, _ = s.Renew(s.ctx) }, logger)
	s.sched.now = opts.Now
	signer.now = opts.Now
	signer.onChange = func(bool) { s.publish() }
	return s
}

// Start loads the credential of the currently connected address using ctx and
// follows subsequent wallet changes until Close.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unwatch := s.wallet.Subscribe(func(conn wallet.Connection) { s.onConnection(s.ctx, conn) })
	s.mu.Lock()
	s.unwatch = unwatch
	s.mu.Unlock()

	s.onConnection(ctx, s.wallet.Current())
}

// Close stops following the wallet and cancels any pending renewal.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	s.sched.Stop()
	s.cancel()
}

// Subscribe registers fn for every change of the derived state.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Snapshot returns the derived state now.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether the current credential may be used.
func (s *Session) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated }

// IsAuthenticating reports whether a challenge round is running.
func (s *Session) IsAuthenticating() bool { return s.signer.InFlight() }

// HasUserID reports whether the current credential belongs to a signed-up user.
func (s *Session) HasUserID() bool { return s.Snapshot().HasUserID }

// Loading reports whether the stored credential for the current address is
// still being read.
func (s *Session) Loading() bool { return s.Snapshot().Loading }

// Credential returns the current credential when it is still valid, and
// otherwise renews it. Concurrent callers share a single renewal.
func (s *Session) Credential(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, conn := s.token, s.conn
	s.mu.RUnlock()

	if token != "" && !credential.IsExpired(token, s.opts.Now()) {
		return token, nil
	}
	return s.renew(ctx, conn)
}

// Renew starts a challenge round unless one is already running, in which case
// it returns ErrRenewalInFlight without doing anything.
func (s *Session) Renew(ctx context.Context) (string, error) {
	if s.signer.InFlight() {
		return "", ErrRenewalInFlight
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	return s.renew(ctx, conn)
}

// UpdateCredential persists token for the current address and adopts it.
func (s *Session) UpdateCredential(ctx context.Context, token string) error {
	s.mu.RLock()
	address := s.conn.Address
	s.mu.RUnlock()
	if address == "" {
		return credential.ErrNoAddress
	}
	if err := s.store.Save(ctx, address, token); err != nil {
		return err
	}
	return s.adopt(address, token)
}

// Invalidate forgets the current credential after the backend refused it.
// The session reads as signed out until the next Credential or Renew call
// signs in again; nothing is retried on its own.
func (s *Session) Invalidate(ctx context.Context) {
	s.mu.Lock()
	address, token := s.conn.Address, s.token
	if token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.mu.Unlock()

	s.logger.Warn("credential rejected by backend", slog.String("address", address))
	if address != "" {
		if err := s.store.Delete(ctx, address); err != nil {
			s.logger.Error("delete rejected credential", slog.String("address", address), slog.Any("error", err))
		}
	}
	s.credentialChanged("")
}

func (s *Session) renew(ctx context.Context, conn wallet.Connection) (string, error) {
	key := strings.ToLower(conn.Address)
	ch := s.renewal.DoChan(key, func() (any, error) {
		token, err := s.signer.Sign(s.ctx, conn)
		if err != nil {
			return "", err
		}
		if err := s.adopt(conn.Address, token); err != nil {
			return "", err
		}
		return token, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// adopt installs token as the in-memory credential if address is still the
// connected one.
func (s *Session) adopt(address, token string) error {
	s.mu.Lock()
	if !strings.EqualFold(s.conn.Address, address) {
		s.mu.Unlock()
		s.logger.Info("discarding credential for previous address", slog.String("address", address))
		return ErrAddressChanged
	}
	s.token = token
	s.loading = false
	s.mu.Unlock()

	s.credentialChanged(token)
	return nil
}

func (s *Session) onConnection(ctx context.Context, conn wallet.Connection) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.conn
	s.conn = conn
	switched := !strings.EqualFold(prev.Address, conn.Address)
	if switched {
		// Cleared before any I/O so the previous account's credential is never
		// observed under the new one.
		s.token = ""
		s.loading = conn.Address != ""
		if prev.Address != "" && conn.Address != "" {
			s.generation++
		}
	}
	s.mu.Unlock()

	if !switched {
		s.publish()
		return
	}

	s.logger.Info("wallet account changed", slog.String("address", conn.Address))
	s.credentialChanged("")
	if conn.Address != "" {
		s.load(ctx, conn.Address)
	}
}

func (s *Session) load(ctx context.Context, address string) {
	token, err := s.store.Load(ctx, address)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		s.logger.Error("load credential", slog.String("address", address), slog.Any("error", err))
	}

	s.mu.Lock()
	if !strings.EqualFold(s.conn.Address, address) {
		s.mu.Unlock()
		return
	}
	s.token = token
	s.loading = false
	conn := s.conn
	s.mu.Unlock()

	s.credentialChanged(token)

	if s.opts.AutoRenew && (token == "" || credential.IsExpired(token, s.opts.Now())) {
		go func() {
			if _, err := s.renew(s.ctx, conn); err != nil && !errors.Is(err, ErrWalletNotReady) {
				s.logger.Info("automatic sign-in did not complete", slog.Any("error", err))
			}
		}()
	}
}

func (s *Session) credentialChanged(token string) {
	if s.bearer != nil {
		s.bearer.SetBearer(token)
	}
	s.sched.Reschedule(token)
	s.publish()
}

func (s *Session) snapshotLocked() Snapshot {
	now := s.opts.Now()
	authenticating := s.signer.InFlight()
	return Snapshot{
		Address:          s.conn.Address,
		Connected:        s.conn.IsConnected(),
		IsAuthenticated:  s.token != "" && !s.loading && !authenticating && !credential.IsExpired(s.token, now) && s.conn.Ready(),
		IsAuthenticating: authenticating,
		HasUserID:        s.token != "" && credential.HasUserID(s.token),
		Loading:          s.loading,
		Generation:       s.generation,
	}
}

func (s *Session) publish() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
