package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/metrics"
)

const (
	defaultRobotsTimeout = 10 * time.Second
	maxRobotsBytes       = 1 << 20
)

// RobotsEnforcer enforces robots.txt directives per scheme+host. Policies are
// fetched once per site and cached for the lifetime of the enforcer. A site
// whose policy cannot be retrieved is cached as unrestricted.
type RobotsEnforcer struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// RobotsOption customizes a RobotsEnforcer.
type RobotsOption func(*RobotsEnforcer)

// WithRobotsClient overrides the HTTP client used to fetch robots.txt.
func WithRobotsClient(client *http.Client) RobotsOption {
	return func(r *RobotsEnforcer) {
		if client != nil {
			r.client = client
		}
	}
}

// NewRobotsEnforcer builds a RobotsPolicy respecting the config toggle.
func NewRobotsEnforcer(respect bool, userAgent string, logger *zap.Logger, opts ...RobotsOption) RobotsPolicy {
	if !respect {
		return allowAllPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	enforcer := &RobotsEnforcer{
		client: &http.Client{
			Timeout: defaultRobotsTimeout,
		},
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
	for _, opt := range opts {
		opt(enforcer)
	}
	return enforcer
}

// Allowed implements RobotsPolicy. URLs that cannot be parsed are denied.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	if r == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data := r.policyFor(ctx, parsed)
	if data == nil {
		return true
	}
	return data.TestAgent(parsed.RequestURI(), r.userAgent)
}

func (r *RobotsEnforcer) policyFor(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	key := siteKey(parsed)

	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.cache[key]; ok {
		return data
	}

	data, err := r.fetch(ctx, key)
	if err != nil {
		r.logger.Warn("robots policy unavailable; allowing access",
			zap.String("site", key),
			zap.Error(&PolicyUnavailableError{Domain: key, Err: err}))
		metrics.ObserveRobots(key, "unavailable")
		r.cache[key] = nil
		return nil
	}
	metrics.ObserveRobots(key, "loaded")
	r.cache[key] = data
	return data
}

func (r *RobotsEnforcer) fetch(ctx context.Context, site string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fetch robots: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }
