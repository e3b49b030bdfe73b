package mdblog

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/mdblog/content"
	"github.com/eringen/mdblog/reltime"
	"github.com/eringen/mdblog/views"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []urlLoc `xml:"url"`
}

type urlLoc struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// formatDate reformats a front matter date with layout, or returns "" when
// the date cannot be parsed.
func formatDate(date, layout string) string {
	t, ok := reltime.Parse(date)
	if !ok {
		return ""
	}
	return t.UTC().Format(layout)
}

// newest returns the date of the first post, which is the latest since posts
// arrive sorted.
func newest(posts []content.Post) string {
	if len(posts) == 0 {
		return ""
	}
	return posts[0].Date
}

func (a *App) renderRSS(c echo.Context, posts []content.Post) error {
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		link := views.BuildURL(a.Config.URL, "blog", p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Summary,
			Categories:  p.Tags,
			PubDate:     formatDate(p.Date, time.RFC1123Z),
			GUID:        link,
		})
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:         a.Config.Name,
			Link:          views.BuildURL(a.Config.URL),
			Description:   a.Config.Description,
			Language:      a.Config.Locale,
			LastBuildDate: formatDate(newest(posts), time.RFC1123Z),
			Items:         items,
		},
	})
}

func (a *App) renderSitemap(c echo.Context, posts []content.Post) error {
	latest := formatDate(newest(posts), time.DateOnly)
	urls := []urlLoc{
		{Loc: views.BuildURL(a.Config.URL), LastMod: latest},
		{Loc: views.BuildURL(a.Config.URL, "blog"), LastMod: latest},
	}
	for _, p := range posts {
		urls = append(urls, urlLoc{
			Loc:     views.BuildURL(a.Config.URL, "blog", p.Slug),
			LastMod: formatDate(p.Date, time.DateOnly),
		})
	}
	return writeXML(c, "application/xml; charset=utf-8", urlSet{XMLNS: sitemapNS, URLs: urls})
}

func writeXML(c echo.Context, contentType string, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}
