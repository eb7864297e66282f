package profile

import (
	"context"
	"log/slog"
	"time"
)

// pollBalances fetches balances right away and then on every tick until ctx
// ends. Only one poller is held by the cache at a time.
func (c *Cache) pollBalances(ctx context.Context, epoch uint64) {
	ticker := time.NewTicker(c.opts.BalanceInterval)
	defer ticker.Stop()

	for {
		c.fetchBalances(ctx, epoch)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Cache) fetchBalances(ctx context.Context, epoch uint64) {
	balances, err := c.api.Balances(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Error("fetch account balances", slog.Any("error", err))
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.balances = &balances
	c.mu.Unlock()

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	st := c.State()
	for _, fn := range fns {
		fn(st)
	}
}

// Polling reports whether the balance poller is running.
func (c *Cache) Polling() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poller != nil
}
