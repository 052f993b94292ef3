package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/clock/system"
	"github.com/JakeFAU/realtime-search/internal/docstore"
	"github.com/JakeFAU/realtime-search/internal/id/uuid"
	"github.com/JakeFAU/realtime-search/internal/index"
	"github.com/JakeFAU/realtime-search/internal/indexer"
	"github.com/JakeFAU/realtime-search/internal/publisher"
	"github.com/JakeFAU/realtime-search/internal/textproc"
)

type indexOptions struct {
	documents string
	prefix    string
}

// newIndexCmd creates the 'index' subcommand.
func newIndexCmd() *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the tf-idf index from the stored document corpus",
		Long: `Reads the document store, prunes the vocabulary by document frequency,
weights every document by tf-idf and writes the index artifact. Parts go under a
per-build directory and the manifest is written last, so a failed build never
replaces a good index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.documents, "documents", "", "document store path; overrides crawler.document_path")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "artifact prefix; overrides index.prefix")
	return cmd
}

func runIndex(cmd *cobra.Command, opts *indexOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	docPath := valueOr(opts.documents, cfg.Crawler.DocumentPath)
	prefix := valueOr(opts.prefix, cfg.Index.Prefix)

	docs, err := docstore.Load(ctx, appInstance.Store(), docPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	stopwords, err := textproc.ResolveStopwords(cfg.Index.Stopwords, logger)
	if err != nil {
		return fmt.Errorf("load stopwords: %w", err)
	}

	builder, err := indexer.New(cfg.Index.BuilderConfig(stopwords), system.New(), uuid.New(), logger.Named("indexer"))
	if err != nil {
		return fmt.Errorf("init indexer: %w", err)
	}
	artifact, err := builder.Build(ctx, docs)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	manifest, err := index.Save(ctx, appInstance.Store(), prefix, artifact)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	logger.Info("Index saved", zap.String("prefix", prefix), zap.String("build_id", manifest.BuildID))

	publisher.Announce(ctx, appInstance.Publisher(), logger, publisher.IndexBuilt, publisher.IndexBuiltEvent{
		BuildID:        manifest.BuildID,
		Documents:      manifest.Documents,
		Terms:          manifest.Terms,
		ArtifactPrefix: prefix,
		CreatedAt:      manifest.CreatedAt,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "build %s: %d documents, %d terms, %d non-zero weights under %q\n",
		manifest.BuildID, manifest.Documents, manifest.Terms, manifest.NNZ, prefix)
	return nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
