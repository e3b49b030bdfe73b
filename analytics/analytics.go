// Package analytics counts page views per path and day. No IP addresses,
// cookies or visitor identifiers are stored.
package analytics

import (
	"strings"
)

// PageStat represents page view statistics.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DimensionStat represents a named count, such as requests per crawler.
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyView represents views per day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// botPatterns maps lowercase User-Agent fragments to display names. More
// specific entries come first.
var botPatterns = []struct {
	pattern string
	name    string
}{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"yandex", "Yandex"},
	{"baidu", "Baidu"},
	{"duckduckbot", "DuckDuckBot"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedIn"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"mj12bot", "Majestic"},
	{"dotbot", "Moz"},
	{"slurp", "Yahoo Slurp"},
	{"crawler", "Generic Crawler"},
	{"spider", "Generic Spider"},
}

var botMarkers = []string{"bot", "crawl", "spider", "slurp", "scrape", "yandex", "baidu", "facebookexternalhit"}

// IsBot checks if the User-Agent is likely a bot/crawler.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// BotName extracts a display name for the crawler in ua.
func BotName(ua string) string {
	ua = strings.ToLower(ua)
	for _, p := range botPatterns {
		if strings.Contains(ua, p.pattern) {
			return p.name
		}
	}
	if IsBot(ua) {
		return "Other Bot"
	}
	return "Unknown"
}
