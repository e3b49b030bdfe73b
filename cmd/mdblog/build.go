package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eringen/mdblog/images"
)

func newBuildCmd(c *cli) *cobra.Command {
	var (
		maxWidth int
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Copy post images into the static directory",
		Long: `build replaces <static_dir>/images with a copy of <content_dir>/<image_dir>,
downscaling images wider than --max-width. With --watch it keeps running and
copies again whenever the source images change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := filepath.Join(c.cfg.ContentDir, c.cfg.ImageDir)
			dst := filepath.Join(c.cfg.StaticDir, "images")
			opts := images.Options{MaxWidth: maxWidth, Logger: c.logger}

			copyOnce := func() error {
				_, err := images.Copy(src, dst, opts)
				return err
			}
			if err := copyOnce(); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return images.Watch(cmd.Context(), src, images.WatchOptions{Logger: c.logger}, copyOnce)
		},
	}
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "Downscale images wider than this many pixels (0 keeps originals)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Copy again when source images change")
	return cmd
}
