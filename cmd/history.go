package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/history"
	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	"github.com/spf13/cobra"
)

const shortDigestLen = 12

// historyOptions selects what the history command lists.
type historyOptions struct {
	Limit     int
	Source    string
	Format    string
	PruneDays int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded scan results",
	Long: `List scans recorded with 'scan --history', most recent first.
Only scores and counts are stored, never the scanned markup.`,
	Example: `  seca-markup history
  seca-markup history --source index.html --limit 5
  seca-markup history --prune-days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		opts := historyOptions{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Source, _ = cmd.Flags().GetString("source")
		opts.Format, _ = cmd.Flags().GetString("format")
		opts.PruneDays, _ = cmd.Flags().GetInt("prune-days")

		resultsDir := ""
		if appCtx != nil {
			resultsDir = appCtx.ResultsDir
		}
		store, err := history.Open(cliConfig.History.historyPath(resultsDir))
		if err != nil {
			return err
		}
		defer store.Close()

		return runHistory(cmd.Context(), cmd.OutOrStdout(), store, opts)
	},
}

func init() {
	historyCmd.Flags().Int("limit", consts.DefaultHistoryLimit, "maximum number of entries to show (0 = all)")
	historyCmd.Flags().String("source", "", "only entries for this source")
	historyCmd.Flags().String("format", defaultHistoryListFormat, "output format (table, json)")
	historyCmd.Flags().Int("prune-days", 0, "delete entries older than this many days before listing")
}

// historyReader is the part of *history.Store the command needs.
type historyReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	BySource(ctx context.Context, source string, limit int) ([]history.Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

func runHistory(ctx context.Context, out io.Writer, store historyReader, opts historyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format := strings.ToLower(opts.Format)
	if format != "table" && format != "json" && format != "" {
		return &UnsupportedFormatError{Format: opts.Format, Supported: []string{"table", "json"}}
	}

	if opts.PruneDays > 0 {
		deleted, err := store.Prune(ctx, time.Duration(opts.PruneDays)*24*time.Hour)
		if err != nil {
			return err
		}
		if format != "json" {
			fmt.Fprintf(out, "%s Pruned %d entries older than %d days\n", colorInfo("→"), deleted, opts.PruneDays)
		}
	}

	var (
		entries []history.Entry
		err     error
	)
	if opts.Source != "" {
		entries, err = store.BySource(ctx, opts.Source, opts.Limit)
	} else {
		entries, err = store.Recent(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}

	if format == "json" {
		if entries == nil {
			entries = []history.Entry{}
		}
		return writeIndentedJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No scans recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCANNED AT\tSOURCE\tSCORE\tLEVEL\tE/W/S\tSHA256")
	for _, e := range entries {
		digest := e.InputSHA256
		if len(digest) > shortDigestLen {
			digest = digest[:shortDigestLen]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d/%d/%d\t%s\n",
			e.ScannedAt.UTC().Format(time.RFC3339), e.Source, e.Score, formatRiskWithColor(e.RiskLevel),
			e.Errors, e.Warnings, e.Suggestions, digest)
	}
	return tw.Flush()
}
