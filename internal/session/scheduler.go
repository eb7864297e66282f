package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/walletgate/internal/credential"
)

// RenewalScheduler keeps at most one pending renewal, due when the active
// credential expires.
type RenewalScheduler struct {
	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	due    time.Time
	renew  func()
	now    func() time.Time
	logger *slog.Logger
}

// NewRenewalScheduler calls renew when a scheduled credential expires.
func NewRenewalScheduler(renew func(), logger *slog.Logger) *RenewalScheduler {
	return &RenewalScheduler{renew: renew, now: time.Now, logger: logger}
}

// Reschedule cancels any pending renewal and, when token is present and still
// valid, schedules a new one at its expiry.
func (r *RenewalScheduler) Reschedule(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()

	now := r.now()
	if token == "" || credential.IsExpired(token, now) {
		return
	}
	claims, err := credential.Decode(token)
	if err != nil {
		r.logger.Warn("cannot schedule renewal", slog.Any("error", err))
		return
	}

	delay := claims.ExpiresAt.Sub(now)
	if delay < 0 {
		delay = 0
	}
	gen := r.gen
	r.due = claims.ExpiresAt
	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		current := r.gen == gen
		if current {
			r.timer = nil
			r.due = time.Time{}
		}
		r.mu.Unlock()
		if !current {
			return
		}
		r.logger.Info("credential renewal timer fired")
		r.renew()
	})
	r.logger.Debug("credential renewal scheduled", slog.Duration("in", delay))
}

// Stop cancels any pending renewal.
func (r *RenewalScheduler) Stop() {
	r.mu.Lock()
	r.cancelLocked()
	r.mu.Unlock()
}

// Pending reports whether a renewal is scheduled and when it is due.
func (r *RenewalScheduler) Pending() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.due, r.timer != nil
}

func (r *RenewalScheduler) cancelLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.due = time.Time{}
}
