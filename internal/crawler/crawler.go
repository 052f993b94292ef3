package crawler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/extract"
	"github.com/JakeFAU/realtime-search/internal/metrics"
)

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1"

// Dependencies bundles the collaborators a Crawler needs.
type Dependencies struct {
	Fetcher  Fetcher
	Robots   RobotsPolicy
	Throttle Throttle
	Parser   PageParser
	Clock    Clock
	IDGen    IDGenerator
	// FetchLog and RunLog are optional.
	FetchLog FetchLog
	RunLog   RunLog
}

// Crawler walks the frontier breadth-first, one fetch in flight at a time.
type Crawler struct {
	cfg     Config
	deps    Dependencies
	allowed *domainAllowlist
	logger  *zap.Logger
}

// New validates the configuration and wires the crawler.
func New(cfg Config, deps Dependencies, logger *zap.Logger) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("crawler: fetcher is required")
	case deps.Robots == nil:
		return nil, errors.New("crawler: robots policy is required")
	case deps.Throttle == nil:
		return nil, errors.New("crawler: throttle is required")
	case deps.Parser == nil:
		return nil, errors.New("crawler: page parser is required")
	case deps.Clock == nil:
		return nil, errors.New("crawler: clock is required")
	case deps.IDGen == nil:
		return nil, errors.New("crawler: id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:     cfg,
		deps:    deps,
		allowed: newDomainAllowlist(cfg.allowedDomains()),
		logger:  logger,
	}, nil
}

// Run crawls until the frontier is exhausted, MaxPages documents are stored or
// ctx is cancelled. Per-URL failures are classified and counted, never returned.
// The returned error is non-nil only when ctx ended the run early; the partial
// corpus is still returned in that case.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	runID, err := c.deps.IDGen.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	result := Result{RunID: runID, Corpus: Corpus{}}
	logger := c.logger.With(zap.String("run_id", runID))

	front := newFrontier()
	for _, seed := range c.cfg.Seeds {
		key, err := NormalizeURL(seed)
		if err != nil {
			logger.Warn("Skipping invalid seed", zap.String("url", seed), zap.Error(err))
			continue
		}
		front.Push(key)
	}
	c.startRun(ctx, logger, runID)
	logger.Info("Crawl started",
		zap.Int("seeds", front.Len()),
		zap.Int("max_pages", c.cfg.MaxPages))

	var runErr error
	for front.Len() > 0 && len(result.Corpus) < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("crawl interrupted: %w", err)
			break
		}
		target, _ := front.Pop()
		metrics.SetFrontierPending(front.Len())

		doc, links, record, err := c.visit(ctx, target)
		if err != nil && ctx.Err() != nil {
			runErr = fmt.Errorf("crawl interrupted: %w", ctx.Err())
			break
		}
		outcome := ClassifyError(err)
		result.Stats.add(outcome)
		metrics.ObserveCrawl(target, string(outcome), record.ContentLength)
		c.logOutcome(logger, target, outcome, err)

		record.RunID = runID
		record.Outcome = outcome
		if err != nil {
			record.ErrorText = err.Error()
		}
		c.recordFetch(ctx, logger, record)

		switch outcome {
		case OutcomeStored:
			result.Corpus = append(result.Corpus, doc)
		case OutcomeRedirected:
			// links holds the redirect target.
		default:
			continue
		}
		for _, link := range links {
			c.enqueue(front, link)
		}
	}

	result.Stats.Pending = front.Len()
	metrics.SetFrontierPending(0)
	c.finishRun(ctx, logger, runID, result.Stats, runErr)
	logger.Info("Crawl finished",
		zap.Int("visited", result.Stats.Visited),
		zap.Int("stored", result.Stats.Stored),
		zap.Int("disallowed", result.Stats.Disallowed),
		zap.Int("fetch_error", result.Stats.FetchError),
		zap.Int("rejected", result.Stats.Rejected),
		zap.Int("redirected", result.Stats.Redirected),
		zap.Int("pending", result.Stats.Pending))
	return result, runErr
}

// visit processes one URL. The returned record is always populated with what
// is known about the fetch, even when err is non-nil.
func (c *Crawler) visit(ctx context.Context, target string) (Document, []string, FetchRecord, error) {
	record := FetchRecord{URL: target, FetchedAt: c.deps.Clock.Now()}

	if !c.deps.Robots.Allowed(ctx, target) {
		return Document{}, nil, record, ErrDisallowed
	}
	if err := c.deps.Throttle.Wait(ctx, target); err != nil {
		return Document{}, nil, record, fmt.Errorf("throttle wait: %w", err)
	}

	resp, err := c.deps.Fetcher.Fetch(ctx, FetchRequest{
		URL:     target,
		Headers: http.Header{"Accept": []string{acceptHTML}},
	})
	record.StatusCode = resp.StatusCode
	record.ContentType = resp.ContentType()
	record.Duration = resp.Duration
	record.ContentLength = len(resp.Body)
	record.FetchedAt = c.deps.Clock.Now()
	if err != nil {
		return Document{}, nil, record, &TransientFetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	base, err := url.Parse(target)
	if err != nil {
		return Document{}, nil, record, &ContentRejectedError{URL: target, Reason: ReasonUnparseable}
	}
	if isRedirect(resp.StatusCode) {
		// The target goes through the frontier like any discovered link, so
		// it is gated, deduplicated and fetched at most once.
		location, ok := extract.ResolveLink(base, resp.Location())
		if !ok {
			return Document{}, nil, record, &TransientFetchError{URL: target, StatusCode: resp.StatusCode}
		}
		return Document{}, []string{location}, record, &RedirectError{URL: target, StatusCode: resp.StatusCode, Location: location}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Document{}, nil, record, &TransientFetchError{URL: target, StatusCode: resp.StatusCode}
	}
	if !isHTML(resp.ContentType()) {
		return Document{}, nil, record, &ContentRejectedError{URL: target, Reason: ReasonNotHTML}
	}
	page, err := c.deps.Parser.Parse(base, resp.Body)
	if err != nil {
		return Document{}, nil, record, &ContentRejectedError{URL: target, Reason: ReasonUnparseable}
	}
	if strings.TrimSpace(page.Text) == "" {
		return Document{}, nil, record, &ContentRejectedError{URL: target, Reason: ReasonEmptyText}
	}

	doc := Document{
		URL:       target,
		Title:     page.Title,
		Text:      page.Text,
		FetchedAt: record.FetchedAt,
	}
	return doc, page.Links, record, nil
}

func (c *Crawler) enqueue(front *frontier, link string) {
	key, err := NormalizeURL(link)
	if err != nil {
		return
	}
	u, err := url.Parse(key)
	if err != nil || !c.allowed.Allows(u.Hostname()) {
		return
	}
	front.Push(key)
}

func (c *Crawler) recordFetch(ctx context.Context, logger *zap.Logger, record FetchRecord) {
	if c.deps.FetchLog == nil {
		return
	}
	// The fetch log must still be written when the run is winding down.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.deps.FetchLog.RecordFetch(writeCtx, record); err != nil {
		logger.Error("Failed to record fetch", zap.String("url", record.URL), zap.Error(err))
	}
}

func (c *Crawler) startRun(ctx context.Context, logger *zap.Logger, runID string) {
	if c.deps.RunLog == nil {
		return
	}
	if err := c.deps.RunLog.StartRun(ctx, runID, c.deps.Clock.Now()); err != nil {
		logger.Error("Failed to record run start", zap.Error(err))
	}
}

func (c *Crawler) finishRun(ctx context.Context, logger *zap.Logger, runID string, stats Stats, runErr error) {
	if c.deps.RunLog == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.deps.RunLog.FinishRun(writeCtx, runID, c.deps.Clock.Now(), stats, runErr); err != nil {
		logger.Error("Failed to record run completion", zap.Error(err))
	}
}

func (c *Crawler) logOutcome(logger *zap.Logger, target string, outcome Outcome, err error) {
	switch outcome {
	case OutcomeStored:
		logger.Debug("Stored page", zap.String("url", target))
	case OutcomeDisallowed:
		logger.Info("Skipping URL disallowed by robots", zap.String("url", target))
	case OutcomeRejected:
		logger.Debug("Rejected page content", zap.String("url", target), zap.Error(err))
	case OutcomeRedirected:
		logger.Debug("Queued redirect target", zap.String("url", target), zap.Error(err))
	default:
		logger.Warn("Fetch failed", zap.String("url", target), zap.Error(err))
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
