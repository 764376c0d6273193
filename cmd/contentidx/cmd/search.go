package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentidx/internal/config"
	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/internal/index"
	"github.com/Aman-CERP/contentidx/internal/store"
	"github.com/Aman-CERP/contentidx/internal/ui"
)

type searchOptions struct {
	limit   int
	jsonOut bool
	dir     string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search indexed file contents. Every word of the query must match;
results are ranked by relevance.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dirArgs []string
			if opts.dir != "" {
				dirArgs = []string{opts.dir}
			}
			root, cfg, err := loadProject(dirArgs)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), root, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().StringVarP(&opts.dir, "dir", "C", "", "Project directory (default: nearest project root)")

	return cmd
}

func runSearch(ctx context.Context, out io.Writer, root string, cfg *config.Config, query string, opts searchOptions) error {
	if opts.limit <= 0 {
		return cerrors.ValidationError("--limit must be positive", nil).
			WithDetail("limit", fmt.Sprint(opts.limit))
	}

	st, err := openIndex(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	results, err := st.Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		if results == nil {
			results = []store.SearchResult{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	styles := ui.GetStyles(noColor || ui.DetectNoColor())
	for i, r := range results {
		_, _ = fmt.Fprintf(out, "%2d. %s %s\n", i+1, styles.Header.Render(r.Path), styles.Dim.Render(fmt.Sprintf("(%.2f)", r.Score)))
		if r.Snippet != "" {
			_, _ = fmt.Fprintf(out, "    %s\n", strings.Join(strings.Fields(r.Snippet), " "))
		}
	}
	return nil
}

// openIndex opens an existing index without taking the lock, so it can be
// read while another process indexes.
func openIndex(root string, cfg *config.Config) (*store.Store, error) {
	path := filepath.Join(cfg.ResolveDataDir(root), index.DatabaseFile)
	if _, err := os.Stat(path); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreOpen, "no index found", err).
			WithDetail("path", path).
			WithSuggestion("Run 'contentidx index' first")
	}
	return store.Open(path, store.Options{CacheSize: cfg.Store.CacheSize})
}
