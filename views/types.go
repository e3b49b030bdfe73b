package views

import "github.com/eringen/mdblog/reltime"

// SiteConfig holds the site-wide settings templates need.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
	Locale      string // "ja" or "en"
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
}

// Theme values stored in the session.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Page is the per-request state every page template receives.
type Page struct {
	Site      SiteConfig
	Meta      PageMeta
	Path      string // request path, used as the theme form redirect
	Theme     string
	CSRFToken string
	Dates     reltime.Formatter
}

// NextTheme returns the theme the toggle button switches to.
func (p Page) NextTheme() string {
	if p.Theme == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func (p Page) title() string {
	if p.Meta.Title != "" && p.Meta.Title != p.Site.Name {
		return p.Meta.Title + " | " + p.Site.Name
	}
	return p.Site.Name
}

func (p Page) description() string {
	if p.Meta.Description != "" {
		return p.Meta.Description
	}
	return p.Site.Description
}

func (p Page) ogType() string {
	if p.Meta.OGType == "" {
		return "website"
	}
	return p.Meta.OGType
}

func (p Page) activeTheme() string {
	if p.Theme == "" {
		return ThemeLight
	}
	return p.Theme
}

func (p Page) footer() string {
	if p.Site.Author != "" {
		return p.Site.Author
	}
	return p.Site.Name
}

func (p Page) lang() string {
	if p.Site.Locale == "" {
		return reltime.LocaleJapanese
	}
	return p.Site.Locale
}
