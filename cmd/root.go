// Package cmd defines and implements the CLI commands for the websearch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/app"
	"github.com/JakeFAU/realtime-search/internal/config"
	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/logging"
	"github.com/JakeFAU/realtime-search/internal/publisher"
	"github.com/JakeFAU/realtime-search/internal/storage"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use, so tests can inject their own.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Store() storage.BlobStore
	FetchLog() crawler.FetchLog
	RunLog() crawler.RunLog
	Publisher() publisher.Publisher
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. The returned release
// func closes the application services opened by PersistentPreRunE; cobra
// skips post-run hooks when a command fails, so callers run it themselves
// once execution returns.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		opened  App
	)
	release := func() {
		if opened == nil {
			return
		}
		opened.Close()
		_ = opened.Logger().Sync()
		opened = nil
	}
	cmd := &cobra.Command{
		Use:   "websearch",
		Short: "Crawl, index and search a bounded set of web pages.",
		Long: `websearch crawls pages reachable from a set of seed URLs, politely and
within an allow-list of domains, builds a tf-idf index over their text and
ranks documents against free-text queries by cosine similarity.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opened = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newCrawlCmd(), newIndexCmd(), newSearchCmd(), newServeCmd())
	return cmd, release
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root, release := newRootCmd()
	err := root.ExecuteContext(ctx)
	release()
	stop()
	if err != nil {
		zap.L().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
