package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/clock/system"
	"github.com/JakeFAU/realtime-search/internal/config"
	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/docstore"
	"github.com/JakeFAU/realtime-search/internal/extract"
	collyfetcher "github.com/JakeFAU/realtime-search/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-search/internal/id/uuid"
	"github.com/JakeFAU/realtime-search/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-search/internal/publisher"
)

type crawlOptions struct {
	seeds    []string
	maxPages int
	output   string
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from the configured seeds and store the document corpus",
		Long: `Walks the link graph breadth-first from the seed URLs, one fetch at a
time, honouring robots.txt, the inter-fetch delay and the domain allow-list.
The collected pages are written to the document store, also when the crawl
is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.seeds, "seed", nil, "seed URL (repeatable); overrides crawler.seeds")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", -1, "page cap; overrides crawler.max_pages")
	cmd.Flags().StringVar(&opts.output, "output", "", "document store path; overrides crawler.document_path")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	crawlCfg := crawler.Config{
		Seeds:          cfg.Crawler.Seeds,
		MaxPages:       cfg.Crawler.MaxPages,
		AllowedDomains: cfg.Crawler.AllowedDomains,
		UserAgent:      cfg.Crawler.UserAgent,
	}
	if len(opts.seeds) > 0 {
		crawlCfg.Seeds = opts.seeds
	}
	if opts.maxPages >= 0 {
		crawlCfg.MaxPages = opts.maxPages
	}
	path := cfg.Crawler.DocumentPath
	if opts.output != "" {
		path = opts.output
	}

	c, err := crawler.New(crawlCfg, crawlDependencies(cfg, appInstance), logger.Named("crawler"))
	if err != nil {
		return fmt.Errorf("init crawler: %w", err)
	}

	result, runErr := c.Run(ctx)

	// The partial corpus of an interrupted crawl is still worth keeping.
	saveCtx := context.WithoutCancel(ctx)
	uri, err := docstore.Save(saveCtx, appInstance.Store(), path, result.Corpus)
	if err != nil {
		return fmt.Errorf("store corpus: %w", err)
	}
	logger.Info("Corpus stored", zap.String("uri", uri), zap.Int("documents", len(result.Corpus)))

	publisher.Announce(saveCtx, appInstance.Publisher(), logger, publisher.CrawlCompleted, publisher.CrawlCompletedEvent{
		RunID:         result.RunID,
		Documents:     len(result.Corpus),
		Stats:         result.Stats,
		DocumentStore: uri,
		FinishedAt:    system.New().Now(),
	})

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: stored %d documents (visited %d, disallowed %d, fetch errors %d, rejected %d, redirected %d, pending %d) at %s\n",
		result.RunID, len(result.Corpus), result.Stats.Visited, result.Stats.Disallowed,
		result.Stats.FetchError, result.Stats.Rejected, result.Stats.Redirected, result.Stats.Pending, uri)

	return runErr
}

func crawlDependencies(cfg config.Config, appInstance App) crawler.Dependencies {
	logger := appInstance.Logger()
	return crawler.Dependencies{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Crawler.UserAgent,
			Timeout:     cfg.Crawler.RequestTimeout,
			MaxBodySize: cfg.Crawler.MaxBodyBytes,
		}),
		Robots: crawler.NewRobotsEnforcer(
			cfg.Crawler.RespectRobots,
			cfg.Crawler.UserAgent,
			logger.Named("robots"),
			crawler.WithRobotsClient(&http.Client{Timeout: cfg.Crawler.RequestTimeout}),
		),
		Throttle: ratelimit.New(ratelimit.Config{
			Interval: cfg.Crawler.Delay,
			Scope:    cfg.Crawler.Scope(),
		}),
		Parser:   extract.New(cfg.Crawler.TextSelector),
		Clock:    system.New(),
		IDGen:    uuid.New(),
		FetchLog: appInstance.FetchLog(),
		RunLog:   appInstance.RunLog(),
	}
}
