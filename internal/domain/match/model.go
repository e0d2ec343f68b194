package match

import (
	"strings"
	"time"
)

// ListType selects which match list page of a competition is scraped.
type ListType string

const (
	ListTypeResults  ListType = "results"
	ListTypeSchedule ListType = "schedule"
)

func (t ListType) Valid() bool {
	return t == ListTypeResults || t == ListTypeSchedule
}

// Status is the live state of a match as reported by the live feed.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusLive     Status = "live"
	StatusFinished Status = "finished"
)

func NormalizeStatus(value string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusLive:
		return StatusLive
	case StatusFinished:
		return StatusFinished
	default:
		return StatusUpcoming
	}
}

// TeamSummary is the short home/away block on a match list row.
type TeamSummary struct {
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
}

// ListEntry is one scheduled or completed match reference scraped from a list
// page. Date may be the zero time when the page carried a malformed date; the
// consumer treats that as "unknown", not as a failure.
type ListEntry struct {
	ID       int         `json:"id"`
	Date     time.Time   `json:"date"`
	MatchURL string      `json:"matchUrl"`
	Home     TeamSummary `json:"home"`
	Away     TeamSummary `json:"away"`
}

func (e ListEntry) Valid() bool {
	return e.ID > 0
}

// SameDay reports whether the entry kicks off on the same calendar day as now
// in now's location.
func (e ListEntry) SameDay(now time.Time) bool {
	if e.Date.IsZero() {
		return false
	}
	y1, m1, d1 := e.Date.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
