// Package content reads blog posts from markdown files with front matter.
package content

import (
	"net/url"
	"strings"
)

// Tags is the list of free-text labels attached to a post.
type Tags = []string

// Post is a blog post read from a markdown file.
type Post struct {
	ID      string // file path relative to the content dir, without extension
	Path    string // file path relative to the content dir
	Title   string
	Date    string // as written in front matter, expected ISO 8601
	Slug    string
	Tags    Tags
	Summary string
	Body    string // markdown after the front matter
	HTML    string // rendered body, only set by Loader.Post
}

// Link returns the site-relative URL of the post page.
func (p Post) Link() string {
	return "/blog/" + url.PathEscape(p.Slug) + "/"
}

// HasTag reports whether the post carries tag, ignoring case and surrounding
// whitespace.
func (p Post) HasTag(tag string) bool {
	want := NormalizeTag(tag)
	for _, t := range p.Tags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}

// NormalizeTag lowercases and trims a tag for comparisons.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// RelatedPosts returns posts that share at least one tag with current.
func RelatedPosts(current Post, posts []Post) []Post {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		if tag := NormalizeTag(t); tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []Post
	for _, p := range posts {
		if p.Slug == current.Slug {
			continue
		}
		for _, t := range p.Tags {
			if _, ok := tagSet[NormalizeTag(t)]; ok {
				related = append(related, p)
				break
			}
		}
	}
	return related
}
