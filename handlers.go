package mdblog

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/mdblog/content"
	"github.com/eringen/mdblog/reltime"
	"github.com/eringen/mdblog/views"
)

const (
	// imagesURL is where the build copy of the content image dir is served.
	imagesURL = "/images"
	// postsImagesURL serves the content image dir directly.
	postsImagesURL = "/api/posts-images"
)

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets, with the user's static dir as a fallback for the rest.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/site.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/chroma.css", a.handleChromaCSS)
	e.Static("/public", a.Config.StaticDir)
	e.Static(imagesURL, filepath.Join(a.Config.StaticDir, "images"))
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.Any(postsImagesURL+"/*", a.handlePostsImage)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blog/", a.handleBlogList)
	e.GET("/blog/:slug/", a.handlePost)
	e.POST("/theme/", a.handleTheme, a.themeLimiter.Middleware)
}

// page builds the per-request template state.
func (a *App) page(c echo.Context, meta views.PageMeta) views.Page {
	return views.Page{
		Site:      a.Config.View(),
		Meta:      meta,
		Path:      c.Request().URL.Path,
		Theme:     Theme(c),
		CSRFToken: CsrfToken(c),
		Dates:     reltime.Formatter{Locale: a.Config.Locale, Now: a.now},
	}
}

func (a *App) handleHome(c echo.Context) error {
	posts, err := a.Posts.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	p := a.page(c, views.PageMeta{
		Title:  a.Config.Name,
		URL:    views.BuildURL(a.Config.URL),
		OGType: "website",
		JSONLD: views.WebsiteJsonLD(a.Config.View()),
	})
	return Render(c, a.Views.Home(p, posts))
}

func (a *App) handleBlogList(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Posts.AllPosts(ctx)
	if err != nil {
		return err
	}
	tag := strings.TrimSpace(c.QueryParam("tag"))
	tags := content.UniqueTags(posts)
	p := a.page(c, views.PageMeta{
		Title:  "Blog",
		URL:    views.BuildURL(a.Config.URL, "blog"),
		OGType: "website",
	})
	return Render(c, a.Views.BlogList(p, content.FilterByTag(posts, tag), tags, tag))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	post, err := a.Posts.Post(ctx, slug)
	if err != nil {
		if errors.Is(err, content.ErrPostNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, views.PageMeta{Title: "Not Found"})))
		}
		return err
	}
	posts, err := a.Posts.AllPosts(ctx)
	if err != nil {
		return err
	}
	p := a.page(c, views.PageMeta{
		Title:       post.Title,
		Description: post.Summary,
		URL:         views.BuildURL(a.Config.URL, "blog", post.Slug),
		OGType:      "article",
		JSONLD:      views.BlogPostingJsonLD(a.Config.View(), post),
	})
	return Render(c, a.Views.Post(p, post, content.RelatedPosts(post, posts)))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Posts.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Posts.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleChromaCSS(c echo.Context) error {
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", []byte(a.chromaCSS))
}

func handleBlogRedirect(c echo.Context) error {
	target := "/blog/"
	if q := c.Request().URL.RawQuery; q != "" {
		target += "?" + q
	}
	return c.Redirect(http.StatusMovedPermanently, target)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	if err := c.File(filepath.Join(a.Config.StaticDir, "robots.txt")); err == nil {
		return nil
	}
	body := "User-agent: *\nAllow: /\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

// errorPage is used by the error handler, where the request may not have
// passed through the session and CSRF middleware.
func (a *App) errorPage(c echo.Context, title string) views.Page {
	return a.page(c, views.PageMeta{Title: title})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.errorPage(c, "Not Found")))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "method", c.Request().Method, "path", c.Request().URL.Path, "err", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.errorPage(c, "Server Error")))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
