package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/notification"
)

// DeployStep is the state of the deployment polling sub-flow.
type DeployStep string

const (
	DeployInitializing DeployStep = "initializing"
	DeployDeploying    DeployStep = "deploying"
	DeployDone         DeployStep = "done"
)

// Deployment errors
var (
	ErrDeployFailed  = errors.New("gate: safe deployment failed")
	ErrDeployRunning = errors.New("gate: deployment polling already running")
)

// DeployAPI is the backend surface of the deployment flow.
type DeployAPI interface {
	DeployStatus(ctx context.Context) (api.DeployStatus, error)
	DeploySafe(ctx context.Context) error
}

// DeployPoller drives Initializing -> Deploying -> Done by polling the
// deployment status. At most one poll loop runs at a time.
type DeployPoller struct {
	api      DeployAPI
	interval time.Duration
	onDone   func(ctx context.Context) error
	notifier notification.Notifier
	logger   *slog.Logger

	running atomic.Bool

	mu       sync.Mutex
	step     DeployStep
	err      error
	posted   bool
	observer func(DeployStep)
}

// NewDeployPoller builds a poller. onDone runs once the account is deployed,
// typically to refetch the profile.
func NewDeployPoller(client DeployAPI, interval time.Duration, onDone func(ctx context.Context) error, notifier notification.Notifier, logger *slog.Logger) *DeployPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &DeployPoller{
		api:      client,
		interval: interval,
		onDone:   onDone,
		notifier: notifier,
		logger:   logger,
		step:     DeployInitializing,
	}
}

// OnStep registers fn to receive the step after every status check.
func (p *DeployPoller) OnStep(fn func(DeployStep)) {
	p.mu.Lock()
	p.observer = fn
	p.mu.Unlock()
}

// Step returns the current step.
func (p *DeployPoller) Step() DeployStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step
}

// Err returns the error that stopped the last run, if any.
func (p *DeployPoller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Running reports whether a poll loop is active.
func (p *DeployPoller) Running() bool { return p.running.Load() }

// Run checks the status right away and then every interval until the
// account is deployed, deployment fails, a request fails or ctx ends.
func (p *DeployPoller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrDeployRunning
	}
	defer p.running.Store(false)

	// Every run starts over: a new account may be behind the same poller.
	p.mu.Lock()
	p.err = nil
	p.posted = false
	p.step = DeployInitializing
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		stop, err := p.Check(ctx)
		if err != nil {
			p.fail(ctx, err)
			return err
		}
		if stop {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check performs one status check and applies its transition. It reports
// whether polling should stop.
func (p *DeployPoller) Check(ctx context.Context) (bool, error) {
	status, err := p.api.DeployStatus(ctx)
	if err != nil {
		return true, fmt.Errorf("deployment status: %w", err)
	}

	switch status {
	case api.DeployFailed:
		return true, ErrDeployFailed

	case api.DeployOk:
		p.setStep(DeployDone)
		if p.onDone != nil {
			if err := p.onDone(ctx); err != nil {
				p.logger.Warn("refresh after deployment", slog.Any("error", err))
			}
		}
		return true, nil

	case api.DeployNotDeployed:
		p.setStep(DeployDeploying)
		p.mu.Lock()
		post := !p.posted
		p.posted = true
		p.mu.Unlock()
		if post {
			p.logger.Info("requesting safe deployment")
			if err := p.api.DeploySafe(ctx); err != nil {
				p.mu.Lock()
				p.posted = false
				p.mu.Unlock()
				return true, fmt.Errorf("request deployment: %w", err)
			}
		}
		return false, nil

	default:
		p.setStep(DeployDeploying)
		return false, nil
	}
}

func (p *DeployPoller) setStep(step DeployStep) {
	p.mu.Lock()
	p.step = step
	fn := p.observer
	p.mu.Unlock()
	if fn != nil {
		fn(step)
	}
}

func (p *DeployPoller) fail(ctx context.Context, err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	if p.notifier == nil {
		return
	}
	title := "An error occurred"
	if errors.Is(err, ErrDeployFailed) {
		title = "An error occurred while deploying your Safe"
	}
	notification.Error(ctx, p.notifier, title, err)
}
