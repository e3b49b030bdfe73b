package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const dayLayout = "2006-01-02"

// Store keeps per-day counters in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS page_views (
			path TEXT NOT NULL,
			day TEXT NOT NULL,
			views INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (path, day)
		);
		CREATE INDEX IF NOT EXISTS idx_page_views_day ON page_views(day);

		CREATE TABLE IF NOT EXISTS bot_views (
			bot TEXT NOT NULL,
			day TEXT NOT NULL,
			views INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (bot, day)
		);
		CREATE INDEX IF NOT EXISTS idx_bot_views_day ON bot_views(day);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	return s.SetSetting("schema_version", strconv.Itoa(currentSchemaVersion))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// RecordView counts one view of path on the UTC day of at.
func (s *Store) RecordView(ctx context.Context, path string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_views (path, day, views) VALUES (?, ?, 1)
		ON CONFLICT(path, day) DO UPDATE SET views = views + 1`,
		path, at.UTC().Format(dayLayout))
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// RecordBotView counts one crawler request by bot on the UTC day of at.
func (s *Store) RecordBotView(ctx context.Context, bot string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_views (bot, day, views) VALUES (?, ?, 1)
		ON CONFLICT(bot, day) DO UPDATE SET views = views + 1`,
		bot, at.UTC().Format(dayLayout))
	if err != nil {
		return fmt.Errorf("record bot view: %w", err)
	}
	return nil
}

// TopPages returns the most viewed paths since the given day, most views
// first, ties broken by path.
func (s *Store) TopPages(ctx context.Context, since time.Time, limit int) ([]PageStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, SUM(views) AS total FROM page_views
		WHERE day >= ?
		GROUP BY path
		ORDER BY total DESC, path ASC
		LIMIT ?`, since.UTC().Format(dayLayout), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	defer rows.Close()

	stats := []PageStat{}
	for rows.Next() {
		var ps PageStat
		if err := rows.Scan(&ps.Path, &ps.Views); err != nil {
			return nil, err
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

// TopBots returns crawler request counts since the given day.
func (s *Store) TopBots(ctx context.Context, since time.Time, limit int) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot, SUM(views) AS total FROM bot_views
		WHERE day >= ?
		GROUP BY bot
		ORDER BY total DESC, bot ASC
		LIMIT ?`, since.UTC().Format(dayLayout), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("top bots: %w", err)
	}
	defer rows.Close()

	stats := []DimensionStat{}
	for rows.Next() {
		var ds DimensionStat
		if err := rows.Scan(&ds.Name, &ds.Count); err != nil {
			return nil, err
		}
		stats = append(stats, ds)
	}
	return stats, rows.Err()
}

// DailyViews returns total page views per day since the given day, oldest
// first. Days without views are omitted.
func (s *Store) DailyViews(ctx context.Context, since time.Time) ([]DailyView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, SUM(views) FROM page_views
		WHERE day >= ?
		GROUP BY day
		ORDER BY day ASC`, since.UTC().Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	defer rows.Close()

	days := []DailyView{}
	for rows.Next() {
		var dv DailyView
		if err := rows.Scan(&dv.Date, &dv.Views); err != nil {
			return nil, err
		}
		days = append(days, dv)
	}
	return days, rows.Err()
}

// Prune deletes counters for days before the given day and returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	day := before.UTC().Format(dayLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"page_views", "bot_views"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE day < ?`, day)
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
