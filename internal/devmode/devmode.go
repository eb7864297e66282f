// Package devmode holds the developer navigation switches. They are advisory
// only and never take part in authentication.
package devmode

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/congo-pay/walletgate/internal/storage"
)

// BypassKey is where the navigation bypass is persisted.
const BypassKey = "gp-ui.dev-bypass-navigation"

// ErrDisabled is returned when a developer switch is flipped outside dev mode.
var ErrDisabled = errors.New("devmode: not running in development mode")

// Flags are the developer switches of one application instance.
type Flags struct {
	kv      storage.KV
	enabled bool
	logger  *slog.Logger

	mu       sync.RWMutex
	bypass   bool
	skipSafe bool
	nextID   int
	subs     map[int]func()
}

// Load builds the flags. The persisted bypass is read only when enabled is
// set; otherwise every switch starts and stays off.
func Load(ctx context.Context, kv storage.KV, enabled bool, logger *slog.Logger) *Flags {
	f := &Flags{kv: kv, enabled: enabled, logger: logger, subs: make(map[int]func())}
	if !enabled || kv == nil {
		return f
	}
	v, err := kv.Get(ctx, BypassKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		logger.Warn("read navigation bypass", slog.Any("error", err))
	default:
		f.bypass = v == "true"
	}
	if f.bypass {
		logger.Warn("navigation bypass is on")
	}
	return f
}

// Enabled reports whether developer switches may be used.
func (f *Flags) Enabled() bool { return f.enabled }

// Bypass reports whether safe-deployment navigation checks are suppressed.
func (f *Flags) Bypass() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled && f.bypass
}

// SetBypass flips the navigation bypass and persists it.
func (f *Flags) SetBypass(ctx context.Context, on bool) error {
	if !f.enabled {
		return ErrDisabled
	}
	f.mu.Lock()
	f.bypass = on
	f.mu.Unlock()

	if f.kv != nil {
		v := "false"
		if on {
			v = "true"
		}
		if err := f.kv.Set(ctx, BypassKey, v); err != nil {
			f.logger.Error("persist navigation bypass", slog.Any("error", err))
			f.notify()
			return err
		}
	}
	f.notify()
	return nil
}

// SkipSafeSetup reports whether the safe setup step was skipped in this process.
func (f *Flags) SkipSafeSetup() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled && f.skipSafe
}

// SetSkipSafeSetup skips the safe setup step until the process ends.
func (f *Flags) SetSkipSafeSetup(on bool) error {
	if !f.enabled {
		return ErrDisabled
	}
	f.mu.Lock()
	f.skipSafe = on
	f.mu.Unlock()
	f.notify()
	return nil
}

// Subscribe registers fn for every switch change.
func (f *Flags) Subscribe(fn func()) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Flags) notify() {
	f.mu.RLock()
	fns := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
