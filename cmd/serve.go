package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-search/internal/api"
)

type serveOptions struct {
	port   int
	prefix string
}

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Loads the index once, then serves GET /v1/search. When the index cannot
be loaded the server still starts, /readyz reports 503 and queries fail
with "search engine not ready".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port; overrides server.port")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "artifact prefix; overrides index.prefix")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	// The engine is fully loaded before the listener opens.
	engine := loadEngine(cmd, appInstance, valueOr(opts.prefix, cfg.Index.Prefix))

	port := cfg.Server.Port
	if opts.port > 0 {
		port = opts.port
	}
	apiServer := api.NewServer(engine, api.Config{
		DefaultLimit:   cfg.Search.DefaultLimit,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server started", zap.Int("port", port), zap.Bool("ready", engine.Ready() == nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
