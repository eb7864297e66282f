// Package app assembles the client side: wallet, session, profile cache,
// developer flags, gate and onboarding steps, all talking to one backend.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/config"
	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/devmode"
	"github.com/congo-pay/walletgate/internal/gate"
	"github.com/congo-pay/walletgate/internal/notification"
	"github.com/congo-pay/walletgate/internal/onboarding"
	"github.com/congo-pay/walletgate/internal/profile"
	"github.com/congo-pay/walletgate/internal/session"
	"github.com/congo-pay/walletgate/internal/storage"
	"github.com/congo-pay/walletgate/internal/wallet"
)

// App is the composition root of the client.
type App struct {
	Config     config.Config
	API        *api.Client
	Wallet     *wallet.Provider
	Session    *session.Session
	Profile    *profile.Cache
	Flags      *devmode.Flags
	Gate       *gate.Gate
	Onboarding *onboarding.Service
	Deploy     *gate.DeployPoller
	SafeFlow   *gate.SafeFlow

	logger  *slog.Logger
	mu      sync.Mutex
	nav     gate.Navigator
	unwatch []func()
}

// New wires every component. signer answers sign-in requests on behalf of
// the wallet; nav may be nil when nothing renders routes.
func New(ctx context.Context, cfg config.Config, kv storage.KV, signer wallet.Signer, nav gate.Navigator, notifier notification.Notifier, logger *slog.Logger) *App {
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logger)
	}
	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	provider := wallet.NewProvider()
	store := credential.NewStore(kv, logger)
	challenge := session.NewChallengeSigner(client, signer, store, notifier, session.MessageParams{
		Domain:    cfg.SIWEDomain,
		URI:       cfg.SIWEURI,
		Statement: cfg.SIWEStatement,
	}, logger)
	sess := session.New(provider, store, challenge, client, logger, session.Options{AutoRenew: true})
	prof := profile.New(client, sess, notifier, logger, profile.Options{BalanceInterval: cfg.BalancePoll})
	flags := devmode.Load(ctx, kv, cfg.DevMode, logger)

	a := &App{
		Config:   cfg,
		API:      client,
		Wallet:   provider,
		Session:  sess,
		Profile:  prof,
		Flags:    flags,
		SafeFlow: gate.NewSafeFlow(),
		logger:   logger,
		nav:      nav,
	}
	a.Gate = gate.New(sess, prof, flags, gate.NavigatorFunc(a.navigate), logger)
	a.Onboarding = onboarding.NewService(client, sess, prof, logger, onboarding.Options{DevMode: cfg.DevMode})
	a.Deploy = gate.NewDeployPoller(client, cfg.DeployPoll, a.refreshAll, notifier, logger)
	a.Deploy.OnStep(func(step gate.DeployStep) {
		logger.Debug("safe deployment status", slog.String("step", string(step)))
	})
	return a
}

// Start follows the wallet and connects it when an address is configured.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.unwatch = append(a.unwatch,
		a.Profile.Subscribe(func(st profile.State) { a.SafeFlow.Observe(st) }),
	)
	a.mu.Unlock()

	a.Session.Start(ctx)
	a.Profile.Start()
	a.Gate.Start()

	if a.Config.WalletAddress != "" {
		a.Wallet.Connect(a.Config.WalletAddress, a.Config.WalletChainID)
	}
}

// Close stops every component.
func (a *App) Close() {
	a.mu.Lock()
	unwatch := a.unwatch
	a.unwatch = nil
	a.mu.Unlock()
	for _, fn := range unwatch {
		fn()
	}
	a.Gate.Stop()
	a.Profile.Close()
	a.Session.Close()
}

// Navigate moves to route, as a page would after completing its step.
func (a *App) Navigate(route string) {
	a.navigate(route)
}

func (a *App) navigate(route string) {
	a.mu.Lock()
	nav := a.nav
	a.mu.Unlock()
	if nav != nil {
		nav.Navigate(route)
	}
	a.Gate.SetRoute(route)
}

func (a *App) refreshAll(ctx context.Context) error {
	if err := a.Profile.RefreshSafeConfig(ctx); err != nil {
		return err
	}
	return a.Profile.RefreshUser(ctx)
}
