package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/eringen/mdblog"
	"github.com/eringen/mdblog/internal/logger"
)

// cli carries state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	configPath string
	verbose    bool

	cfg    mdblog.SiteConfig
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "mdblog",
		Short: "A markdown blog server built with Go, Echo, and templ",
		Long: `mdblog serves a personal blog from a directory of markdown posts with
YAML front matter. Posts are read from disk on every request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", mdblog.EnvOr("MDBLOG_CONFIG", ""), "Path to a YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(c),
		newBuildCmd(c),
		newPostsCmd(c),
		newStatsCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := mdblog.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	c.cfg = cfg
	c.logger = logger.New(cmd.ErrOrStderr(), level)

	// Only fails on an invalid GOMAXPROCS value, in which case the runtime
	// default stays in effect.
	_, _ = maxprocs.Set(maxprocs.Logger(c.logger.Debugf))
	return nil
}

// overrideString copies a flag's value into dst when the user set it.
func overrideString(fs *pflag.FlagSet, name string, dst *string) {
	if fs.Changed(name) {
		v, _ := fs.GetString(name)
		*dst = v
	}
}

func overrideBool(fs *pflag.FlagSet, name string, dst *bool) {
	if fs.Changed(name) {
		v, _ := fs.GetBool(name)
		*dst = v
	}
}
