// Package ratelimit enforces per-(caller, endpoint) request quotas over a
// fixed 60-second window. Counters live in a shared store with atomic
// increment-or-create semantics.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/assistdeck/gateway/internal/errors"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/trust"
)

// Window is the rate-limit accounting window.
const Window = 60 * time.Second

// Limiter answers allow/deny per (identifier, endpoint) pair and counts
// every request it sees, including the rejected ones: with tier limit L,
// request L+1 in a window is the first to be denied.
type Limiter struct {
	store    CounterStore
	registry *trust.Registry
	logger   *logging.Logger
}

// NewLimiter creates a rate limiter over the given counter store.
func NewLimiter(store CounterStore, registry *trust.Registry, logger *logging.Logger) *Limiter {
	return &Limiter{store: store, registry: registry, logger: logger}
}

// Allow checks and increments the counter for the caller on the endpoint.
// It returns nil when the request is within the tier limit and a
// RateLimitExceeded error otherwise. A store failure allows the request
// through with a logged warning rather than failing the pipeline.
func (l *Limiter) Allow(ctx context.Context, identifier, endpoint string, tier trust.Tier) error {
	limit := l.registry.LimitFor(tier)
	key := fmt.Sprintf("%s:%s", identifier, endpoint)

	count, err := l.store.Incr(ctx, key, Window)
	if err != nil {
		// Fail open: losing the counter store must not take down every
		// caller. The gap is visible in logs and metrics.
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"identifier": identifier,
			"endpoint":   endpoint,
		}).Warn("rate limit store unavailable, allowing request")
		return nil
	}

	if count > int64(limit) {
		l.logger.LogSecurityEvent(ctx, "rate_limit_exceeded", map[string]interface{}{
			"identifier": identifier,
			"endpoint":   endpoint,
			"tier":       string(tier),
			"count":      count,
			"limit":      limit,
		})
		return errors.RateLimitExceeded(limit, "minute")
	}

	return nil
}
