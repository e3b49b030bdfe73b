package views

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/mdblog/content"
	"github.com/eringen/mdblog/reltime"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return b.String()
}

func fixedDates(now string) reltime.Formatter {
	tm, err := time.Parse(time.RFC3339, now)
	if err != nil {
		panic(err)
	}
	return reltime.Formatter{Locale: reltime.LocaleJapanese, Now: func() time.Time { return tm }}
}

var samplePost = content.Post{
	ID:      "hello",
	Title:   "Hello <World>",
	Date:    "2024-01-01T00:00:00Z",
	Slug:    "hello",
	Tags:    content.Tags{"go", "web"},
	Summary: "A first post",
	HTML:    "<p>rendered</p>",
}

func TestPostCassette(t *testing.T) {
	got := render(t, PostCassette(samplePost, fixedDates("2024-01-01T00:00:30Z")))
	for _, want := range []string{
		`href="/blog/hello/"`,
		"Hello &lt;World&gt;",
		`<time datetime="2024-01-01T00:00:00Z">1分前</time>`,
		"A first post",
		`aria-label="Read more about Hello &lt;World&gt;"`,
		`href="/blog/?tag=go"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("PostCassette output missing %q:\n%s", want, got)
		}
	}
}

func TestPostCassetteDays(t *testing.T) {
	got := render(t, PostCassette(samplePost, fixedDates("2024-01-08T00:00:00Z")))
	if !strings.Contains(got, "7日前") {
		t.Errorf("PostCassette should show 7日前: %s", got)
	}
}

func TestAllTagsActive(t *testing.T) {
	got := render(t, AllTags([]string{"Go", "web"}, "go"))
	if strings.Count(got, `aria-current="true"`) != 1 {
		t.Errorf("exactly one tag should be active: %s", got)
	}
	if render(t, AllTags(nil, "")) != "" {
		t.Errorf("AllTags with no tags should render nothing")
	}
}

func TestTagEscapesQuery(t *testing.T) {
	got := render(t, Tag("c++ & go", false))
	if !strings.Contains(got, `href="/blog/?tag=c%2B%2B+%26+go"`) {
		t.Errorf("tag link should query-escape the tag: %s", got)
	}
	if !strings.Contains(got, ">c++ &amp; go</a>") {
		t.Errorf("tag text should be escaped: %s", got)
	}
}

func TestBlogList(t *testing.T) {
	p := Page{Site: SiteConfig{Name: "Site", Description: "notes"}, Dates: fixedDates("2024-01-02T00:00:00Z")}
	got := render(t, BlogList(p, []content.Post{samplePost}, []string{"go", "web"}, ""))
	for _, want := range []string{"<h2 class=\"page-title\">Blog</h2>", "<h3>Tags</h3>", "<h3>Articles</h3>", "1日前", "notes"} {
		if !strings.Contains(got, want) {
			t.Errorf("BlogList output missing %q", want)
		}
	}
	if strings.Contains(got, "Show all posts") {
		t.Errorf("unfiltered list should not offer to clear the filter")
	}
}

func TestPostPage(t *testing.T) {
	p := Page{Site: SiteConfig{Name: "Site"}, Dates: fixedDates("2024-01-01T05:00:00Z")}
	related := []content.Post{{Title: "Other", Slug: "other", Date: "2023-12-01"}}
	got := render(t, PostPage(p, samplePost, related))
	for _, want := range []string{"<p>rendered</p>", "5時間前", "Related posts", `href="/blog/other/"`} {
		if !strings.Contains(got, want) {
			t.Errorf("PostPage output missing %q", want)
		}
	}
}

func TestLayoutHead(t *testing.T) {
	p := Page{
		Site:      SiteConfig{Name: "Site", Description: "desc", Author: "Me"},
		Meta:      PageMeta{Title: "Post", URL: "https://example.com/blog/post/", OGType: "article", JSONLD: `{"a":1}`},
		Theme:     ThemeDark,
		CSRFToken: "tok",
		Path:      "/blog/post/",
	}
	got := render(t, Layout(p))
	for _, want := range []string{
		`<html lang="ja" data-theme="dark">`,
		"<title>Post | Site</title>",
		`<meta name="description" content="desc">`,
		`<link rel="canonical" href="https://example.com/blog/post/">`,
		`<meta property="og:type" content="article">`,
		"<script type=\"application/ld+json\">{\"a\":1}\n</script>",
		`name="_csrf" value="tok"`,
		`name="redirect" value="/blog/post/"`,
		`name="theme" value="light"`,
		"&copy; Me",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Layout output missing %q:\n%s", want, got)
		}
	}
}

func TestHomeLimitsPosts(t *testing.T) {
	var posts []content.Post
	for i := 0; i < HomeLatest+2; i++ {
		posts = append(posts, content.Post{Title: "p", Slug: "p", Date: "2024-01-01"})
	}
	got := render(t, Home(Page{Site: SiteConfig{Name: "Site"}}, posts))
	if n := strings.Count(got, `<li class="post-item">`); n != HomeLatest {
		t.Errorf("Home lists %d posts, want %d", n, HomeLatest)
	}
	if !strings.Contains(got, "All posts") {
		t.Errorf("Home should link to all posts when truncated")
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		expected string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"blog", "hello"}, "https://example.com/blog/hello/"},
		{"https://example.com/sub/", []string{"blog"}, "https://example.com/sub/blog/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.expected {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.expected)
		}
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	got := BlogPostingJsonLD(SiteConfig{Name: "Site", URL: "https://example.com", Author: "Me"}, samplePost)
	for _, want := range []string{
		`"@type":"BlogPosting"`,
		`"url":"https://example.com/blog/hello/"`,
		`"keywords":"go, web"`,
		`"headline":"Hello \u003cWorld\u003e"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BlogPostingJsonLD missing %q: %s", want, got)
		}
	}
}

func TestLayoutWrapsPage(t *testing.T) {
	p := Page{Site: SiteConfig{Name: "Site"}}
	got := render(t, NotFound(p))
	for _, want := range []string{
		"<!doctype html>",
		`<main class="container"><section class="error-page"><h1>404</h1>`,
		`<html lang="ja" data-theme="light">`,
		"<title>Site</title>",
		"&copy; Site",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("NotFound output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, `name="description"`) {
		t.Errorf("NotFound without a description should omit the meta tag:\n%s", got)
	}
}
