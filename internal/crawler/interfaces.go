package crawler

import (
	"context"
	"net/url"
	"time"

	"github.com/JakeFAU/realtime-search/internal/extract"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Throttle blocks until the next fetch of rawURL may start.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// FetchLog records the outcome of every processed URL.
type FetchLog interface {
	RecordFetch(ctx context.Context, record FetchRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// PageParser turns a fetched HTML body into title, text and outbound links.
type PageParser interface {
	Parse(base *url.URL, body []byte) (extract.Page, error)
}

// RunLog records the lifecycle of a crawl run.
type RunLog interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats Stats, runErr error) error
}
