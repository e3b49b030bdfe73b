package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eringen/mdblog/content"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6188"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#727072"))
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#78DCE8"))
)

func newPostsCmd(c *cli) *cobra.Command {
	var (
		tag    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List published posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := content.NewLoader(c.cfg.ContentDir, nil,
				content.WithPattern(c.cfg.Pattern),
				content.WithImageDir(c.cfg.ImageDir),
				content.WithDrafts(c.cfg.Drafts),
			)
			posts, err := loader.PostsByTag(cmd.Context(), tag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(posts)
			}
			if len(posts) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No posts found."))
				return nil
			}

			slugWidth := len("SLUG")
			for _, p := range posts {
				slugWidth = max(slugWidth, lipgloss.Width(p.Slug))
			}
			dateCol := lipgloss.NewStyle().Width(len("2006-01-02") + 2)
			slugCol := lipgloss.NewStyle().Width(slugWidth + 2)

			fmt.Fprintln(out, headerStyle.Render(dateCol.Render("DATE")+slugCol.Render("SLUG")+"TITLE"))
			for _, p := range posts {
				line := dimStyle.Render(dateCol.Render(shortDate(p.Date))) + slugCol.Render(p.Slug) + p.Title
				if len(p.Tags) > 0 {
					line += " " + tagStyle.Render("#"+strings.Join(p.Tags, " #"))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Only list posts with this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func shortDate(date string) string {
	if len(date) > len("2006-01-02") {
		return date[:len("2006-01-02")]
	}
	return date
}
