package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/notification"
)

type scriptedDeploy struct {
	mu        sync.Mutex
	statuses  []api.DeployStatus
	statusErr error
	deployErr error
	checks    int
	posts     int
}

func (s *scriptedDeploy) DeployStatus(context.Context) (api.DeployStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	if s.statusErr != nil {
		return "", s.statusErr
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	return status, nil
}

func (s *scriptedDeploy) DeploySafe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts++
	return s.deployErr
}

func (s *scriptedDeploy) counts() (checks, posts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks, s.posts
}

func TestDeployPollingStopsAtDone(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{
		api.DeployNotDeployed, api.DeployProcessing, api.DeployProcessing, api.DeployOk,
	}}
	refreshed := 0
	notes := &notification.Recorder{}
	p := NewDeployPoller(script, 5*time.Millisecond, func(context.Context) error {
		refreshed++
		return nil
	}, notes, logging.Discard())

	var steps []DeployStep
	p.OnStep(func(s DeployStep) { steps = append(steps, s) })
	assert.Equal(t, DeployInitializing, p.Step())

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []DeployStep{DeployDeploying, DeployDeploying, DeployDeploying, DeployDone}, steps)
	checks, posts := script.counts()
	assert.Equal(t, 4, checks, "no poll after done")
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, refreshed)
	assert.False(t, p.Running())
	assert.Empty(t, notes.Messages())
}

func TestDeployRunsAgainFromScratch(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{api.DeployNotDeployed, api.DeployOk}}
	p := NewDeployPoller(script, 5*time.Millisecond, nil, &notification.Recorder{}, logging.Discard())
	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, DeployDone, p.Step())

	// Another account behind the same poller is not deployed yet.
	script.mu.Lock()
	script.statuses = []api.DeployStatus{api.DeployNotDeployed, api.DeployProcessing, api.DeployOk}
	script.mu.Unlock()

	var first DeployStep
	p.OnStep(func(s DeployStep) {
		if first == "" {
			first = s
		}
	})
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, DeployDeploying, first, "a second run does not start at done")
	assert.Equal(t, DeployDone, p.Step())
	checks, posts := script.counts()
	assert.Equal(t, 5, checks)
	assert.Equal(t, 2, posts, "the second run requests its own deployment")
}

func TestDeployFailedIsTerminal(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{api.DeployProcessing, api.DeployFailed, api.DeployOk}}
	notes := &notification.Recorder{}
	p := NewDeployPoller(script, 5*time.Millisecond, nil, notes, logging.Discard())

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrDeployFailed)
	assert.ErrorIs(t, p.Err(), ErrDeployFailed)
	assert.Equal(t, DeployDeploying, p.Step())
	checks, _ := script.counts()
	assert.Equal(t, 2, checks)
	assert.Equal(t, []string{"An error occurred while deploying your Safe"}, notes.Titles(notification.KindError))
}

func TestDeployAlreadyDone(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{api.DeployOk}}
	p := NewDeployPoller(script, time.Hour, nil, &notification.Recorder{}, logging.Discard())

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, DeployDone, p.Step())
	_, posts := script.counts()
	assert.Zero(t, posts)
}

func TestDeployRequestFailureIsRetryable(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{api.DeployNotDeployed}, deployErr: errors.New("forbidden")}
	notes := &notification.Recorder{}
	p := NewDeployPoller(script, time.Hour, nil, notes, logging.Discard())

	assert.Error(t, p.Run(context.Background()))
	assert.Len(t, notes.Titles(notification.KindError), 1)

	script.mu.Lock()
	script.deployErr = nil
	script.statuses = []api.DeployStatus{api.DeployNotDeployed, api.DeployOk}
	script.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)
	_, posts := script.counts()
	assert.Equal(t, 2, posts, "a failed request is sent again on retry")
}

func TestDeploySingleRun(t *testing.T) {
	script := &scriptedDeploy{statuses: []api.DeployStatus{api.DeployProcessing}}
	p := NewDeployPoller(script, 5*time.Millisecond, nil, &notification.Recorder{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, p.Running, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.Run(context.Background()), ErrDeployRunning)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, p.Running())
}

func TestDeployStatusErrorStops(t *testing.T) {
	script := &scriptedDeploy{statusErr: &api.Error{Status: 500, Message: "boom"}}
	notes := &notification.Recorder{}
	p := NewDeployPoller(script, 5*time.Millisecond, nil, notes, logging.Discard())

	err := p.Run(context.Background())
	assert.Equal(t, 500, api.StatusCode(err))
	checks, _ := script.counts()
	assert.Equal(t, 1, checks)
	assert.Equal(t, []string{"An error occurred"}, notes.Titles(notification.KindError))
}
