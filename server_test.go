package mdblog

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/mdblog/internal/logger"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testSite struct {
	app     *App
	content string
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestSite(t *testing.T, mutate func(*SiteConfig)) *testSite {
	t.Helper()
	root := t.TempDir()
	contentDir := filepath.Join(root, "posts")

	writeTestFile(t, filepath.Join(contentDir, "hello.md"), []byte(`---
slug: hello
title: Hello World
date: "2024-06-01T11:30:00Z"
tags: [go, web]
summary: First post
---
# Heading

![cat](images/cat.png)

`+"```go\nfmt.Println(\"hi\")\n```\n"))
	writeTestFile(t, filepath.Join(contentDir, "second.md"), []byte(`---
slug: second
title: Second Post
date: 2024-05-01
tags: [life]
summary: Another
---
body
`))
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	writeTestFile(t, filepath.Join(contentDir, "images", "cat.png"), img.Bytes())
	writeTestFile(t, filepath.Join(contentDir, "images", "nested", "notes.txt"), []byte("notes"))
	writeTestFile(t, filepath.Join(contentDir, "images-private", "secret.png"), []byte("secret"))

	cfg := SiteConfig{
		Name:          "Test Blog",
		URL:           "https://example.com",
		Description:   "notes",
		ContentDir:    contentDir,
		StaticDir:     filepath.Join(root, "public"),
		SessionSecret: "test-secret-test-secret-test-sec",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	app := New(cfg, ViewFuncs{}, WithLogger(logger.Discard()), WithClock(func() time.Time { return testNow }))
	require.NoError(t, app.Setup())
	t.Cleanup(func() { app.Close() })
	return &testSite{app: app, content: contentDir}
}

func (s *testSite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.app.Echo.ServeHTTP(rec, req)
	return rec
}

func (s *testSite) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body jsonError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHomeListsPosts(t *testing.T) {
	s := newTestSite(t, nil)
	rec := s.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome to my Website")
	assert.Contains(t, body, `href="/blog/hello/"`)
	assert.Contains(t, body, "30分前")
	assert.Less(t, strings.Index(body, "Hello World"), strings.Index(body, "Second Post"))
	assert.Contains(t, body, `"@type":"WebSite"`)
}

func TestBlogListAndTagFilter(t *testing.T) {
	s := newTestSite(t, nil)

	rec := s.get("/blog/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{"Hello World", "Second Post", `href="/blog/?tag=go"`, `href="/blog/?tag=life"`} {
		assert.Contains(t, body, want)
	}

	rec = s.get("/blog/?tag=LIFE")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "Second Post")
	assert.NotContains(t, body, `aria-label="Read more about Hello World"`)
	assert.Contains(t, body, "Show all posts")
}

func TestBlogRedirect(t *testing.T) {
	s := newTestSite(t, nil)
	rec := s.get("/blog")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/blog/", rec.Header().Get(echo.HeaderLocation))

	rec = s.get("/blog/hello")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/blog/hello/", rec.Header().Get(echo.HeaderLocation))
}

func TestPostPage(t *testing.T) {
	s := newTestSite(t, nil)
	rec := s.get("/blog/hello/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Hello World | Test Blog</title>")
	assert.Contains(t, body, `<h1 id="heading">Heading</h1>`)
	assert.Contains(t, body, `src="/images/cat.png"`)
	assert.Contains(t, body, `width="2"`)
	assert.Contains(t, body, `class="chroma"`)
	assert.Contains(t, body, `"@type":"BlogPosting"`)
	assert.Contains(t, body, `<link rel="canonical" href="https://example.com/blog/hello/">`)
}

func TestPostNotFound(t *testing.T) {
	s := newTestSite(t, nil)
	rec := s.get("/blog/missing/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404")

	rec = s.get("/no/such/route/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedPostIsServerError(t *testing.T) {
	s := newTestSite(t, nil)
	writeTestFile(t, filepath.Join(s.content, "broken.md"), []byte("---\ntitle: [oops\n---\n"))

	rec := s.get("/blog/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "500")
}

func TestPostsAreReadFresh(t *testing.T) {
	s := newTestSite(t, nil)
	require.Equal(t, http.StatusNotFound, s.get("/blog/later/").Code)

	writeTestFile(t, filepath.Join(s.content, "later.md"), []byte("---\nslug: later\ntitle: Later\n---\nnew\n"))
	assert.Equal(t, http.StatusOK, s.get("/blog/later/").Code)
}

func TestFeedAndSitemap(t *testing.T) {
	s := newTestSite(t, nil)

	rec := s.get("/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, rec.Body.String(), "<link>https://example.com/blog/hello/</link>")
	assert.Contains(t, rec.Body.String(), "<category>go</category>")

	rec = s.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://example.com/blog/second/</loc>")
	assert.Contains(t, rec.Body.String(), "<lastmod>2024-05-01</lastmod>")
}

func TestStaticAssets(t *testing.T) {
	s := newTestSite(t, nil)

	rec := s.get("/public/chroma.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".chroma")

	rec = s.get("/public/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data-theme")

	rec = s.get("/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/sitemap.xml")
}

func TestPostsImageServesFile(t *testing.T) {
	s := newTestSite(t, nil)
	rec := s.get("/api/posts-images/cat.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, rec.Header().Get("Content-Length"), strconv.Itoa(rec.Body.Len()))

	writeTestFile(t, filepath.Join(s.content, "images", "100%.png"), []byte("percent"))
	rec = s.get("/api/posts-images/100%25.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "percent", rec.Body.String())

	rec = s.get("/api/posts-images/nested/notes.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestPostsImageErrors(t *testing.T) {
	s := newTestSite(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		code   int
		msg    string
	}{
		{"post not allowed", http.MethodPost, "/api/posts-images/cat.png", http.StatusMethodNotAllowed, "Method not allowed"},
		{"delete not allowed", http.MethodDelete, "/api/posts-images/cat.png", http.StatusMethodNotAllowed, "Method not allowed"},
		{"missing file", http.MethodGet, "/api/posts-images/missing.png", http.StatusNotFound, "File not found"},
		{"directory", http.MethodGet, "/api/posts-images/nested", http.StatusNotFound, "File not found"},
		{"dot dot", http.MethodGet, "/api/posts-images/../hello.md", http.StatusForbidden, "Access denied"},
		{"encoded dot dot", http.MethodGet, "/api/posts-images/%2e%2e/hello.md", http.StatusForbidden, "Access denied"},
		{"file used as directory", http.MethodGet, "/api/posts-images/cat.png/x", http.StatusInternalServerError, "Internal server error"},
		{"sibling prefix", http.MethodGet, "/api/posts-images/../images-private/secret.png", http.StatusForbidden, "Access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
			if tt.code == http.StatusMethodNotAllowed {
				assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
			}
		})
	}
}

func TestResolveUnder(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "srv", "posts", "images")
	tests := []struct {
		rel string
		ok  bool
	}{
		{"cat.png", true},
		{"a/b/c.png", true},
		{"a/../cat.png", true},
		{"", true},
		{"../cat.png", false},
		{"../images-private/cat.png", false},
		{"a/../../cat.png", false},
		{"cat\x00.png", false},
	}
	for _, tt := range tests {
		if _, ok := resolveUnder(base, tt.rel); ok != tt.ok {
			t.Errorf("resolveUnder(%q) ok = %v, want %v", tt.rel, ok, tt.ok)
		}
	}
}

func TestThemeToggle(t *testing.T) {
	s := newTestSite(t, nil)

	rec := s.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-theme="light"`)
	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_csrf" {
			csrf = c
		}
	}
	require.NotNil(t, csrf)

	form := url.Values{"_csrf": {csrf.Value}, "theme": {"dark"}, "redirect": {"/blog/hello/"}}
	req := httptest.NewRequest(http.MethodPost, "/theme/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(csrf)
	rec = s.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/blog/hello/", rec.Header().Get(echo.HeaderLocation))

	req = httptest.NewRequest(http.MethodGet, "/blog/hello/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-theme="dark"`)
}

func TestThemeRequiresCSRF(t *testing.T) {
	s := newTestSite(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/theme/", strings.NewReader("theme=dark"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/blog/", "/blog/"},
		{"", "/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{`/\evil.example`, "/"},
		{"relative", "/"},
	}
	for _, tt := range tests {
		if got := safeRedirect(tt.input); got != tt.expected {
			t.Errorf("safeRedirect(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPageViewsRecorded(t *testing.T) {
	s := newTestSite(t, func(c *SiteConfig) {
		c.AnalyticsDatabasePath = filepath.Join(t.TempDir(), "data", "analytics.db")
	})
	require.NotNil(t, s.app.Analytics)

	require.Equal(t, http.StatusOK, s.get("/blog/hello/").Code)
	require.Equal(t, http.StatusOK, s.get("/blog/hello/").Code)
	require.Equal(t, http.StatusOK, s.get("/").Code)
	require.Equal(t, http.StatusNotFound, s.get("/blog/missing/").Code)

	dnt := httptest.NewRequest(http.MethodGet, "/blog/second/", nil)
	dnt.Header.Set("DNT", "1")
	require.Equal(t, http.StatusOK, s.do(dnt).Code)

	bot := httptest.NewRequest(http.MethodGet, "/blog/second/", nil)
	bot.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1)")
	require.Equal(t, http.StatusOK, s.do(bot).Code)

	ctx := context.Background()
	top, err := s.app.Analytics.TopPages(ctx, testNow.AddDate(0, 0, -1), 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "/blog/hello/", top[0].Path)
	assert.Equal(t, 2, top[0].Views)

	bots, err := s.app.Analytics.TopBots(ctx, testNow.AddDate(0, 0, -1), 0)
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "Googlebot", bots[0].Name)
}

func TestCustomRoutes(t *testing.T) {
	root := t.TempDir()
	app := New(SiteConfig{ContentDir: root, SessionSecret: "x"}, ViewFuncs{},
		WithLogger(logger.Discard()),
		WithCustomRoutes(func(a *App) {
			a.Echo.GET("/ping/", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
		}),
	)
	require.NoError(t, app.Setup())
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	assert.Equal(t, "pong", rec.Body.String())
}
