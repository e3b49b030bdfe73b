package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/mdblog/content"
)

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// TagLink returns the blog list URL filtered by tag.
func TagLink(tag string) string {
	return "/blog/?tag=" + url.QueryEscape(tag)
}

// HomeLatest is how many posts the home page lists.
const HomeLatest = 5

func latestPosts(posts []content.Post) []content.Post {
	if len(posts) > HomeLatest {
		return posts[:HomeLatest]
	}
	return posts
}

func isActiveTag(tag, active string) bool {
	return active != "" && content.NormalizeTag(tag) == content.NormalizeTag(active)
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	if active {
		return "tag tag-active"
	}
	return "tag"
}

type ldThing struct {
	Type string `json:"@type"`
	Name string `json:"name,omitempty"`
	ID   string `json:"@id,omitempty"`
}

type ldWebsite struct {
	Context     string   `json:"@context"`
	Type        string   `json:"@type"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description,omitempty"`
	InLanguage  string   `json:"inLanguage,omitempty"`
	Author      *ldThing `json:"author,omitempty"`
}

type ldBlogPosting struct {
	Context          string   `json:"@context"`
	Type             string   `json:"@type"`
	Headline         string   `json:"headline"`
	Description      string   `json:"description,omitempty"`
	DatePublished    string   `json:"datePublished,omitempty"`
	URL              string   `json:"url"`
	InLanguage       string   `json:"inLanguage,omitempty"`
	Keywords         string   `json:"keywords,omitempty"`
	Author           *ldThing `json:"author,omitempty"`
	Publisher        ldThing  `json:"publisher"`
	MainEntityOfPage ldThing  `json:"mainEntityOfPage"`
}

func ldPerson(name string) *ldThing {
	if name == "" {
		return nil
	}
	return &ldThing{Type: "Person", Name: name}
}

func marshalLD(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	return marshalLD(ldWebsite{
		Context:     "https://schema.org",
		Type:        "WebSite",
		Name:        cfg.Name,
		URL:         BuildURL(cfg.URL),
		Description: cfg.Description,
		InLanguage:  cfg.Locale,
		Author:      ldPerson(cfg.Author),
	})
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post content.Post) string {
	postURL := BuildURL(cfg.URL, "blog", post.Slug)
	return marshalLD(ldBlogPosting{
		Context:          "https://schema.org",
		Type:             "BlogPosting",
		Headline:         post.Title,
		Description:      post.Summary,
		DatePublished:    post.Date,
		URL:              postURL,
		InLanguage:       cfg.Locale,
		Keywords:         strings.Join(post.Tags, ", "),
		Author:           ldPerson(cfg.Author),
		Publisher:        ldThing{Type: "Organization", Name: cfg.Name},
		MainEntityOfPage: ldThing{Type: "WebPage", ID: postURL},
	})
}
