package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.Add(12 * time.Hour)
}

func TestRecordViewAndTopPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []struct {
		path string
		at   string
	}{
		{"/blog/a/", "2024-05-01"},
		{"/blog/a/", "2024-05-01"},
		{"/blog/a/", "2024-05-02"},
		{"/blog/b/", "2024-05-02"},
		{"/blog/c/", "2024-04-01"},
	} {
		require.NoError(t, s.RecordView(ctx, v.path, day(v.at)))
	}

	top, err := s.TopPages(ctx, day("2024-05-01"), 10)
	require.NoError(t, err)
	assert.Equal(t, []PageStat{{Path: "/blog/a/", Views: 3}, {Path: "/blog/b/", Views: 1}}, top)

	top, err = s.TopPages(ctx, day("2024-01-01"), 1)
	require.NoError(t, err)
	assert.Equal(t, []PageStat{{Path: "/blog/a/", Views: 3}}, top)

	daily, err := s.DailyViews(ctx, day("2024-04-01"))
	require.NoError(t, err)
	assert.Equal(t, []DailyView{
		{Date: "2024-04-01", Views: 1},
		{Date: "2024-05-01", Views: 2},
		{Date: "2024-05-02", Views: 2},
	}, daily)
}

func TestTopPagesEmpty(t *testing.T) {
	s := newTestStore(t)
	top, err := s.TopPages(context.Background(), day("2024-01-01"), 0)
	require.NoError(t, err)
	assert.Equal(t, []PageStat{}, top)
}

func TestBotViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordBotView(ctx, "Googlebot", day("2024-05-01")))
	require.NoError(t, s.RecordBotView(ctx, "Googlebot", day("2024-05-02")))
	require.NoError(t, s.RecordBotView(ctx, "Bingbot", day("2024-05-02")))

	bots, err := s.TopBots(ctx, day("2024-05-01"), 0)
	require.NoError(t, err)
	assert.Equal(t, []DimensionStat{{Name: "Googlebot", Count: 2}, {Name: "Bingbot", Count: 1}}, bots)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordView(ctx, "/old/", day("2024-01-01")))
	require.NoError(t, s.RecordView(ctx, "/new/", day("2024-06-01")))
	require.NoError(t, s.RecordBotView(ctx, "Googlebot", day("2024-01-01")))

	n, err := s.Prune(ctx, day("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	top, err := s.TopPages(ctx, day("2000-01-01"), 0)
	require.NoError(t, err)
	assert.Equal(t, []PageStat{{Path: "/new/", Views: 1}}, top)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordView(context.Background(), "/blog/a/", day("2024-05-01")))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.GetSetting("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	top, err := s.TopPages(context.Background(), day("2024-01-01"), 0)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		ua   string
		bot  bool
		name string
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true, "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", true, "Bingbot"},
		{"facebookexternalhit/1.1", true, "Facebook"},
		{"SomeNewBot/1.0", true, "Other Bot"},
		{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", false, "Unknown"},
	}
	for _, tt := range tests {
		if got := IsBot(tt.ua); got != tt.bot {
			t.Errorf("IsBot(%q) = %v, want %v", tt.ua, got, tt.bot)
		}
		if got := BotName(tt.ua); got != tt.name {
			t.Errorf("BotName(%q) = %q, want %q", tt.ua, got, tt.name)
		}
	}
}
