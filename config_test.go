package mdblog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/mdblog/internal/logger"
)

var configEnv = []string{
	"SITE_NAME", "SITE_URL", "SITE_DESCRIPTION", "SITE_AUTHOR", "SITE_LOCALE",
	"ADDR", "CONTENT_DIR", "STATIC_DIR", "SESSION_SECRET", "ANALYTICS_DB",
	"LOG_LEVEL", "COOKIE_SECURE",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "Blog", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.URL)
	assert.Equal(t, "ja", cfg.Locale)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "posts", cfg.ContentDir)
	assert.Equal(t, "images", cfg.ImageDir)
	assert.Equal(t, "public", cfg.StaticDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.AnalyticsDatabasePath)
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "mdblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Notes
url: https://example.com/
locale: en
content_dir: content
pattern: "**/*.md"
highlight_style: monokai
drafts: true
analytics_db: data/analytics.db
shutdown_timeout: 3s
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Notes", cfg.Name)
	assert.Equal(t, "https://example.com", cfg.URL)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "content", cfg.ContentDir)
	assert.Equal(t, "**/*.md", cfg.Pattern)
	assert.Equal(t, "monokai", cfg.HighlightStyle)
	assert.True(t, cfg.Drafts)
	assert.Equal(t, "data/analytics.db", cfg.AnalyticsDatabasePath)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "mdblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Notes\ntilte: typo\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfigEmptyFile(t *testing.T) {
	clearConfigEnv(t)
	for _, data := range []string{"", "\n  \n"} {
		path := filepath.Join(t.TempDir(), "mdblog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "Blog", cfg.Name)
		assert.Equal(t, ":3000", cfg.Addr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "mdblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: From File\naddr: :8080\n"), 0o644))
	t.Setenv("SITE_NAME", "From Env")
	t.Setenv("CONTENT_DIR", "/srv/posts")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "From Env", cfg.Name)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/srv/posts", cfg.ContentDir)
	assert.True(t, cfg.CookieSecure)
}

func TestLoadConfigBadCookieSecure(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("COOKIE_SECURE", "sometimes")
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COOKIE_SECURE")
}

func TestEnsureSessionSecret(t *testing.T) {
	var buf bytes.Buffer
	cfg := SiteConfig{}
	require.NoError(t, cfg.ensureSessionSecret(logger.New(&buf, "warn")))
	assert.Len(t, cfg.SessionSecret, 64)
	assert.Contains(t, buf.String(), "SESSION_SECRET")

	buf.Reset()
	cfg = SiteConfig{SessionSecret: "keep"}
	require.NoError(t, cfg.ensureSessionSecret(logger.New(&buf, "warn")))
	assert.Equal(t, "keep", cfg.SessionSecret)
	assert.Empty(t, buf.String())
}

func TestEnvOr(t *testing.T) {
	t.Setenv("MDBLOG_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOr("MDBLOG_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", EnvOr("MDBLOG_TEST_UNSET", "fallback"))
}
