package volleystation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	playerIDRegex = regexp.MustCompile(`/players/(\d+)/`)
	teamIDRegex   = regexp.MustCompile(`/teams/([\da-zA-Z-]+)/`)
	matchIDRegex  = regexp.MustCompile(`/matches/(\d+)`)
)

// Date headings come in three shapes depending on whether the match has a
// start time and on the site's clock format.
var matchDateLayouts = []string{
	"02 January 2006, Monday 15:04",
	"02 January 2006, Monday 03:04 PM",
	"02 January 2006, Monday",
}

// parseMatchDate combines the group heading with the per-row time text and
// tries every known layout. A zero time with ok=false means the heading was
// malformed; callers log it and keep the entry.
func parseMatchDate(dateText, timeText string) (time.Time, bool) {
	full := strings.TrimSpace(dateText)
	if timeText = strings.TrimSpace(timeText); timeText != "" {
		full = full + " " + timeText
	}
	for _, layout := range matchDateLayouts {
		if ts, err := time.Parse(layout, full); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseIntDefault(text string, def int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return def
	}
	return n
}

func parseFloatDefault(text string, def float64) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(text, "%"), 64)
	if err != nil {
		return def
	}
	return f
}

// resolveURL expands a possibly relative href against the page origin, the
// way browsers resolve anchor links.
func resolveURL(origin *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || origin == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return origin.ResolveReference(ref).String()
}

func matchID(href string) int {
	m := matchIDRegex.FindStringSubmatch(href)
	if m == nil {
		return 0
	}
	return parseIntDefault(m[1], 0)
}

func playerID(href string) int {
	m := playerIDRegex.FindStringSubmatch(href)
	if m == nil {
		return 0
	}
	return parseIntDefault(m[1], 0)
}

func teamID(href string) string {
	m := teamIDRegex.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}
