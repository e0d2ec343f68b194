package player

import (
	"strings"

	"github.com/volleystats/parser/internal/domain/skills"
)

// Player is one roster entry scraped from a competition players page.
type Player struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position"`
	URL      string `json:"url"`
	PhotoURL string `json:"photoUrl"`
}

func (p Player) Valid() bool {
	return p.ID > 0
}

// SummaryStatistics are the headline boxes on a player detail page.
type SummaryStatistics struct {
	MatchesPlayed int `json:"matchesPlayed"`
	SetsPlayed    int `json:"setsPlayed"`
	PointsScored  int `json:"pointsScored"`
	NumberOfAces  int `json:"numberOfAces"`
	PointsByBlock int `json:"pointsByBlock"`
}

// Profile is the richer per-player entity with skill statistics.
type Profile struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	Number    int               `json:"number"`
	Country   string            `json:"country"`
	Position  string            `json:"position"`
	Statistic SummaryStatistics `json:"statistic"`
	Skills    skills.Statistics `json:"skills"`
}

func (p Profile) Empty() bool {
	return p.ID <= 0 || strings.TrimSpace(p.Name) == ""
}
