package mdblog

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/eringen/mdblog/internal/yamlutil"
	"github.com/eringen/mdblog/reltime"
	"github.com/eringen/mdblog/views"
)

// SiteConfig holds all configuration for an mdblog site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD
	Locale      string `yaml:"locale"`      // Relative date language, "ja" (default) or "en"

	Addr       string `yaml:"addr"`        // Listen address (default ":3000")
	ContentDir string `yaml:"content_dir"` // Markdown posts (default "posts")
	ImageDir   string `yaml:"image_dir"`   // Images relative to ContentDir (default "images")
	StaticDir  string `yaml:"static_dir"`  // User-owned static assets (default "public")
	Pattern    string `yaml:"pattern"`     // Post glob relative to ContentDir (default "*.md")

	HighlightStyle string `yaml:"highlight_style"` // Chroma style (default "github")
	UnsafeHTML     bool   `yaml:"unsafe_html"`     // Pass raw HTML in posts through
	Drafts         bool   `yaml:"drafts"`          // Serve posts marked draft

	AnalyticsDatabasePath string `yaml:"analytics_db"` // Analytics SQLite path; empty disables analytics

	SessionSecret string `yaml:"session_secret"` // Cookie session secret; random per process when empty
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default "info")

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown limit (default 10s)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Locale == "" {
		c.Locale = reltime.LocaleJapanese
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentDir == "" {
		c.ContentDir = "posts"
	}
	if c.ImageDir == "" {
		c.ImageDir = "images"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// View returns the subset of the configuration templates need.
func (c SiteConfig) View() views.SiteConfig {
	return views.SiteConfig{
		Name:        c.Name,
		URL:         c.URL,
		Description: c.Description,
		Author:      c.Author,
		Locale:      c.Locale,
	}
}

// LoadConfig reads an optional YAML file, applies environment overrides and
// fills defaults. An empty path skips the file; an empty file sets nothing.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("read config: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
				return SiteConfig{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return SiteConfig{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	strVars := map[string]*string{
		"SITE_NAME":        &c.Name,
		"SITE_URL":         &c.URL,
		"SITE_DESCRIPTION": &c.Description,
		"SITE_AUTHOR":      &c.Author,
		"SITE_LOCALE":      &c.Locale,
		"ADDR":             &c.Addr,
		"CONTENT_DIR":      &c.ContentDir,
		"STATIC_DIR":       &c.StaticDir,
		"SESSION_SECRET":   &c.SessionSecret,
		"ANALYTICS_DB":     &c.AnalyticsDatabasePath,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = secure
	}
	return nil
}

// ensureSessionSecret generates a random secret when none is configured.
// Sessions then do not survive a restart.
func (c *SiteConfig) ensureSessionSecret(logger *log.Logger) error {
	if c.SessionSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generate session secret: %w", err)
	}
	c.SessionSecret = hex.EncodeToString(b)
	logger.Warn("SESSION_SECRET not set, using a random secret for this process")
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir overrides the directory for user-owned static assets.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		if dir != "" {
			a.Config.StaticDir = dir
		}
	}
}

// WithLogger sets the logger used by the server.
func WithLogger(logger *log.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

// WithClock overrides the clock used for relative dates and analytics.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
