package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config captures the knobs that shape one crawl run. Fetch timeouts and the
// inter-fetch delay live on the Fetcher and Throttle implementations.
type Config struct {
	Seeds          []string
	MaxPages       int
	AllowedDomains []string
	UserAgent      string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if len(c.Seeds) == 0 {
		return errors.New("crawler.seeds must include at least one seed URL")
	}
	for _, seed := range c.Seeds {
		u, err := url.Parse(strings.TrimSpace(seed))
		if err != nil {
			return fmt.Errorf("crawler.seeds: parse %q: %w", seed, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("crawler.seeds: %q must be an http or https URL", seed)
		}
		if u.Host == "" {
			return fmt.Errorf("crawler.seeds: %q has no host", seed)
		}
	}
	if c.MaxPages < 0 {
		return errors.New("crawler.max_pages must be >= 0")
	}
	if c.UserAgent == "" {
		return errors.New("crawler.user_agent must be set")
	}
	return nil
}

// allowedDomains returns the configured allow-list, falling back to the seed hosts.
func (c Config) allowedDomains() []string {
	if len(c.AllowedDomains) > 0 {
		return c.AllowedDomains
	}
	out := make([]string, 0, len(c.Seeds))
	for _, seed := range c.Seeds {
		if u, err := url.Parse(strings.TrimSpace(seed)); err == nil && u.Hostname() != "" {
			out = append(out, u.Hostname())
		}
	}
	return out
}
