// Package mdblog is a personal blog server built with Go, Echo, and templ.
// Posts are markdown files with front matter, read from disk on every
// request and rendered through templ components.
//
// Templates are supplied through the ViewFuncs struct; DefaultViews wires
// the components from the views package.
package mdblog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/eringen/mdblog/analytics"
	"github.com/eringen/mdblog/content"
	"github.com/eringen/mdblog/markdown"
	"github.com/eringen/mdblog/views"
)

// ViewFuncs holds the templ components the server calls when rendering
// pages.
type ViewFuncs struct {
	Home        func(p views.Page, posts []content.Post) templ.Component
	BlogList    func(p views.Page, posts []content.Post, tags []string, activeTag string) templ.Component
	Post        func(p views.Page, post content.Post, related []content.Post) templ.Component
	NotFound    func(p views.Page) templ.Component
	ServerError func(p views.Page) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:        views.Home,
		BlogList:    views.BlogList,
		Post:        views.PostPage,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

// App is the central mdblog application. It wires together the content
// loader, handlers, middleware, and templates.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Posts     *content.Loader
	Converter *markdown.Converter
	Views     ViewFuncs
	Logger    *log.Logger
	Analytics *analytics.Store

	themeLimiter *RateLimiter
	customRoutes []func(*App)
	now          func() time.Time
	chromaCSS    string
	ready        bool
}

// New creates an App with the given configuration and view functions. Zero
// fields of views fall back to DefaultViews.
func New(cfg SiteConfig, vf ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  withDefaultViews(vf),
		Logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	return a
}

func withDefaultViews(vf ViewFuncs) ViewFuncs {
	def := DefaultViews()
	if vf.Home == nil {
		vf.Home = def.Home
	}
	if vf.BlogList == nil {
		vf.BlogList = def.BlogList
	}
	if vf.Post == nil {
		vf.Post = def.Post
	}
	if vf.NotFound == nil {
		vf.NotFound = def.NotFound
	}
	if vf.ServerError == nil {
		vf.ServerError = def.ServerError
	}
	return vf
}

// Setup builds the content pipeline, opens the analytics store when
// configured, and registers middleware and routes. It is called by Start
// and may be called directly to serve requests through a.Echo in tests.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.ensureSessionSecret(a.Logger); err != nil {
		return fmt.Errorf("mdblog: %w", err)
	}

	a.Converter = markdown.NewConverter(
		markdown.WithHighlightStyle(a.Config.HighlightStyle),
		markdown.WithUnsafeHTML(a.Config.UnsafeHTML),
		markdown.WithImages(markdown.ImageOptions{
			ContentDir: a.Config.ContentDir,
			ImageDir:   a.Config.ImageDir,
			BaseURL:    imagesURL,
		}),
	)
	a.Posts = content.NewLoader(a.Config.ContentDir, a.Converter,
		content.WithPattern(a.Config.Pattern),
		content.WithImageDir(a.Config.ImageDir),
		content.WithDrafts(a.Config.Drafts),
	)

	css, err := markdown.StyleCSS(a.Converter.Style())
	if err != nil {
		return fmt.Errorf("mdblog: highlight css: %w", err)
	}
	a.chromaCSS = css

	if a.Config.AnalyticsDatabasePath != "" && a.Analytics == nil {
		store, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("mdblog: init analytics: %w", err)
		}
		a.Analytics = store
	}

	a.themeLimiter = NewRateLimiter(30, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets up the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "content", a.Config.ContentDir)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down gracefully when ctx is cancelled
// or the process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mdblog: shutdown: %w", err)
	}
	return <-errCh
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.themeLimiter != nil {
		a.themeLimiter.Stop()
	}
	if a.Analytics != nil {
		return a.Analytics.Close()
	}
	return nil
}
