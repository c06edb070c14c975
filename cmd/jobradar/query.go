package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/observability"
)

var (
	queryLimit         int
	queryIncludeHidden bool
	queryJSON          bool
	topMinScore        float64
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently seen postings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, store *db.DB) error {
			postings, err := store.ListRecent(ctx, listOptions())
			if err != nil {
				return err
			}
			return printPostings(cmd.OutOrStdout(), "RECENT POSTINGS", postings)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search postings by title, company or description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.Join(args, " ")
		return withStore(cmd, func(ctx context.Context, store *db.DB) error {
			postings, err := store.Search(ctx, q, listOptions())
			if err != nil {
				return err
			}
			return printPostings(cmd.OutOrStdout(), fmt.Sprintf("SEARCH %q", q), postings)
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List postings at or above a score, best first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if topMinScore < 0 || topMinScore > 1 {
			return fmt.Errorf("--min-score must be between 0 and 1, got %v", topMinScore)
		}
		return withStore(cmd, func(ctx context.Context, store *db.DB) error {
			postings, err := store.ListByScoreThreshold(ctx, topMinScore, listOptions())
			if err != nil {
				return err
			}
			return printPostings(cmd.OutOrStdout(), fmt.Sprintf("TOP POSTINGS ≥ %.2f", topMinScore), postings)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <fingerprint>",
	Short: "Show one posting with its score breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *db.DB) error {
			posting, err := store.GetPosting(ctx, args[0])
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), posting)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintPosting(posting)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-wide posting statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, store *db.DB) error {
			stats, err := store.Statistics(ctx)
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintStatistics(stats)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{recentCmd, searchCmd, topCmd} {
		c.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of postings")
		c.Flags().BoolVar(&queryIncludeHidden, "include-hidden", false, "Include postings marked hidden")
	}
	for _, c := range []*cobra.Command{recentCmd, searchCmd, topCmd, showCmd, statsCmd} {
		c.Flags().BoolVar(&queryJSON, "json", false, "Print JSON instead of a table")
		rootCmd.AddCommand(c)
	}
	topCmd.Flags().Float64Var(&topMinScore, "min-score", 0.7, "Minimum score between 0 and 1")
}

func listOptions() db.ListOptions {
	return db.ListOptions{Limit: queryLimit, IncludeHidden: queryIncludeHidden}
}

// withStore loads the config, opens the store for the duration of fn and
// closes it afterwards.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *db.DB) error) error {
	a, err := loadApp(cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func printPostings(w io.Writer, title string, postings []db.Posting) error {
	if queryJSON {
		if postings == nil {
			postings = []db.Posting{}
		}
		return writeJSON(w, postings)
	}
	observability.NewPrinter(w).PrintPostings(title, postings)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
