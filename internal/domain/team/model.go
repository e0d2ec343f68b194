package team

import (
	"strings"

	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/skills"
)

// Team is one entry from a competition teams page. The id is a site-assigned
// string (often "<clubId>-<seasonId>") rather than a number.
type Team struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
	URL     string `json:"url"`
}

func (t Team) Valid() bool {
	return strings.TrimSpace(t.ID) != ""
}

// Roster is the team detail entity: season record, skill tables and squad.
type Roster struct {
	PlayedMatches int               `json:"playedMatches"`
	WonMatches    int               `json:"wonMatches"`
	LostMatches   int               `json:"lostMatches"`
	Skills        skills.Statistics `json:"skills"`
	Players       []player.Player   `json:"players"`
}

func (r Roster) Empty() bool {
	return r.PlayedMatches == 0 && r.WonMatches == 0 && r.LostMatches == 0 && len(r.Players) == 0
}
