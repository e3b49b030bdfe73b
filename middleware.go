package mdblog

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/mdblog/analytics"
	"github.com/eringen/mdblog/views"
)

const sessionName = "mdblog_session"

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.Logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") ||
				strings.HasPrefix(path, imagesURL+"/") ||
				strings.HasPrefix(path, postsImagesURL+"/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:  middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup: "header:X-CSRF-Token,form:_csrf",
		CookieName:  "_csrf",
		CookiePath:  "/",
		CookieSameSite: func() http.SameSite {
			return http.SameSiteLaxMode
		}(),
		CookieSecure: a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, postsImagesURL+"/")
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, imagesURL+"/") ||
				strings.HasPrefix(path, "/api/") ||
				path == "/favicon.svg" ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt"
		},
	}))

	e.Use(cacheControlMiddleware)

	if a.Analytics != nil {
		e.Use(a.pageViewMiddleware)
	}
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasPrefix(path, imagesURL+"/"), strings.HasPrefix(path, postsImagesURL+"/"):
			c.Response().Header().Set("Cache-Control", imageCacheControl)
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
		case path == "/theme/":
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			// Pages carry a per-visitor CSRF token and theme.
			c.Response().Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
		}
		return next(c)
	}
}

// pageViewMiddleware counts successful GET requests for post pages. Requests
// with DNT: 1 are not counted; crawlers are counted separately by name.
func (a *App) pageViewMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		req := c.Request()
		if err != nil || req.Method != http.MethodGet || c.Response().Status != http.StatusOK {
			return err
		}
		if c.Path() != "/blog/:slug/" || req.Header.Get("DNT") == "1" {
			return nil
		}
		ctx := req.Context()
		now := a.now()
		if ua := req.UserAgent(); analytics.IsBot(ua) {
			if rerr := a.Analytics.RecordBotView(ctx, analytics.BotName(ua), now); rerr != nil {
				a.Logger.Warn("record bot view", "err", rerr)
			}
			return nil
		}
		if rerr := a.Analytics.RecordView(ctx, req.URL.Path, now); rerr != nil {
			a.Logger.Warn("record page view", "path", req.URL.Path, "err", rerr)
		}
		return nil
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 365,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// Theme returns the visitor's colour theme from the session, "light" by
// default.
func Theme(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return views.ThemeLight
	}
	if theme, ok := sess.Values["theme"].(string); ok && theme == views.ThemeDark {
		return views.ThemeDark
	}
	return views.ThemeLight
}

func setTheme(c echo.Context, theme string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["theme"] = theme
	return sess.Save(c.Request(), c.Response())
}

// handleTheme stores the requested theme (or toggles the current one) and
// redirects back to the page the form was posted from.
func (a *App) handleTheme(c echo.Context) error {
	theme := c.FormValue("theme")
	if theme != views.ThemeLight && theme != views.ThemeDark {
		theme = views.ThemeDark
		if Theme(c) == views.ThemeDark {
			theme = views.ThemeLight
		}
	}
	if err := setTheme(c, theme); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, safeRedirect(c.FormValue("redirect")))
}

// safeRedirect keeps redirects on this site.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	if u, err := url.Parse(target); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return target
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
