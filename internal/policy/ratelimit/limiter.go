// Package ratelimit enforces a minimum interval between page fetches using
// token buckets keyed by scope.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/realtime-search/internal/metrics"
)

// Scope selects how fetches share an interval budget.
type Scope string

const (
	// ScopeGlobal spaces every fetch of the run, whatever its host.
	ScopeGlobal Scope = "global"
	// ScopeDomain spaces fetches per host only.
	ScopeDomain Scope = "domain"
)

const globalKey = "*"

// ParseScope converts a configuration string into a Scope. Empty means global.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeDomain:
		return ScopeDomain, nil
	default:
		return "", fmt.Errorf("unknown throttle scope %q", raw)
	}
}

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the minimum spacing between fetch starts. Zero disables throttling.
	Interval time.Duration
	Scope    Scope
}

// Limiter spaces fetches by at least Config.Interval.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	scope    Scope
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		scope:    scope,
	}
}

// Wait blocks until a fetch of rawURL may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	key := l.key(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.limit, 1)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(string(l.scope), waited)
	}
	return nil
}

func (l *Limiter) key(rawURL string) string {
	if l.scope == ScopeGlobal {
		return globalKey
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
