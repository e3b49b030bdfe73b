package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eringen/mdblog/analytics"
)

var errNoAnalytics = errors.New("analytics is disabled: set analytics_db in the config or ANALYTICS_DB")

func newStatsCmd(c *cli) *cobra.Command {
	var (
		days  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the most viewed posts and crawler traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openAnalytics()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			since := time.Now().AddDate(0, 0, -days)
			pages, err := store.TopPages(ctx, since, limit)
			if err != nil {
				return err
			}
			bots, err := store.TopBots(ctx, since, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Top pages (last %d days)", days)))
			rows := make([][2]string, 0, len(pages))
			for _, p := range pages {
				rows = append(rows, [2]string{p.Path, fmt.Sprint(p.Views)})
			}
			printCounts(out, rows)

			fmt.Fprintln(out)
			fmt.Fprintln(out, headerStyle.Render("Crawlers"))
			rows = rows[:0]
			for _, b := range bots {
				rows = append(rows, [2]string{b.Name, fmt.Sprint(b.Count)})
			}
			printCounts(out, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days to include")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows per table (0 for all)")
	cmd.AddCommand(newStatsPruneCmd(c))
	return cmd
}

func newStatsPruneCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete counters older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			store, err := c.openAnalytics()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rows older than %d days\n", n, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 365, "Keep this many days of counters")
	return cmd
}

func (c *cli) openAnalytics() (*analytics.Store, error) {
	if c.cfg.AnalyticsDatabasePath == "" {
		return nil, errNoAnalytics
	}
	return analytics.NewStore(c.cfg.AnalyticsDatabasePath)
}

func printCounts(w io.Writer, rows [][2]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no data"))
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	col := lipgloss.NewStyle().Width(width + 4).PaddingLeft(2)
	for _, r := range rows {
		fmt.Fprintln(w, col.Render(r[0])+r[1])
	}
}
