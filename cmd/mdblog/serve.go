package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/mdblog"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the blog server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			fs := cmd.Flags()
			overrideString(fs, "addr", &cfg.Addr)
			overrideString(fs, "content", &cfg.ContentDir)
			overrideString(fs, "static", &cfg.StaticDir)
			overrideString(fs, "analytics-db", &cfg.AnalyticsDatabasePath)
			overrideBool(fs, "drafts", &cfg.Drafts)

			app := mdblog.New(cfg, mdblog.DefaultViews(), mdblog.WithLogger(c.logger))
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	cmd.Flags().String("content", "", "Directory of markdown posts (overrides config)")
	cmd.Flags().String("static", "", "Directory of static assets (overrides config)")
	cmd.Flags().String("analytics-db", "", "Analytics SQLite path (overrides config)")
	cmd.Flags().Bool("drafts", false, "Serve posts marked draft")
	return cmd
}
