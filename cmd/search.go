package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-search/internal/config"
	"github.com/JakeFAU/realtime-search/internal/search"
)

type searchOptions struct {
	limit  int
	prefix string
	json   bool
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   `search "<query>"`,
		Short: "Rank indexed documents against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum results; defaults to search.default_limit")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "artifact prefix; overrides index.prefix")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts *searchOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()

	engine := loadEngine(cmd, appInstance, valueOr(opts.prefix, cfg.Index.Prefix))
	if err := engine.Ready(); err != nil {
		return err
	}
	limit := opts.limit
	if limit == 0 {
		limit = cfg.Search.DefaultLimit
	}
	resp, err := engine.Search(query, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":      query,
			"results":    resp.Results,
			"elapsed_ms": float64(resp.Elapsed.Microseconds()) / 1000,
		})
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	fmt.Fprintf(out, "%d results in %.2f ms\n", len(resp.Results), float64(resp.Elapsed.Microseconds())/1000)
	for _, r := range resp.Results {
		fmt.Fprintf(out, "\n%d. %s (score %.4f)\n   %s\n   %s\n", r.Rank, r.Title, r.Score, r.URL, r.Snippet)
	}
	return nil
}

func loadEngine(cmd *cobra.Command, appInstance App, prefix string) *search.Engine {
	cfg := appInstance.Config()
	return search.Load(cmd.Context(), appInstance.Store(), prefix, appInstance.Logger().Named("search"), engineOptions(cfg)...)
}

func engineOptions(cfg config.Config) []search.Option {
	return []search.Option{
		search.WithMinScore(cfg.Search.MinScore),
		search.WithSnippetLength(cfg.Search.SnippetLength),
	}
}
