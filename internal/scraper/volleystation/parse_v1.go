package volleystation

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/match"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/skills"
	"github.com/volleystats/parser/internal/domain/team"
)

// Original markup generation. Selectors here mirror the site before its
// redesign; parse_v2.go covers the current markup.

func parseCompetitionV1(doc *goquery.Document, _ *url.URL) (competition.Competition, bool) {
	section := doc.Find("section.competition-detail")
	if section.Length() == 0 {
		return competition.Competition{}, false
	}
	name := strings.TrimSpace(section.Find("h1.name").Text())
	if name == "" {
		return competition.Competition{}, false
	}
	return competition.Competition{Name: name}, true
}

func parseTeamsV1(doc *goquery.Document, origin *url.URL) ([]team.Team, bool) {
	boxes := doc.Find("section.teams div.team-list a.team-box")
	if boxes.Length() == 0 {
		return nil, false
	}

	teams := make([]team.Team, 0, boxes.Length())
	boxes.Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := teamID(href)
		if id == "" {
			return
		}
		logoURL, _ := sel.Find("div.logo img").Attr("src")
		teams = append(teams, team.Team{
			ID:      id,
			Name:    strings.TrimSpace(sel.Find("div.text-title").Text()),
			LogoURL: strings.TrimSpace(logoURL),
			URL:     resolveURL(origin, href),
		})
	})
	if len(teams) == 0 {
		return nil, false
	}
	return teams, true
}

func parsePlayersV1(doc *goquery.Document, origin *url.URL) ([]player.Player, bool) {
	return playerBoxes(doc.Find("a.player-box"), origin)
}

// playerBoxes extracts roster entries from a.player-box anchors, shared
// between the players page and the squad section of a team page.
func playerBoxes(boxes *goquery.Selection, origin *url.URL) ([]player.Player, bool) {
	if boxes.Length() == 0 {
		return nil, false
	}

	players := make([]player.Player, 0, boxes.Length())
	boxes.Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := playerID(href)
		if id == 0 {
			return
		}
		photoURL, _ := sel.Find("div.image-photo img").Attr("src")
		players = append(players, player.Player{
			ID:       id,
			Name:     strings.TrimSpace(sel.Find("div.text-name").Text()),
			Number:   parseIntDefault(sel.Find("div.number").Text(), 0),
			Position: strings.TrimSpace(sel.Find("div.text-position").Text()),
			URL:      resolveURL(origin, href),
			PhotoURL: strings.TrimSpace(photoURL),
		})
	})
	if len(players) == 0 {
		return nil, false
	}
	return players, true
}

func parseRosterV1(doc *goquery.Document, origin *url.URL) (team.Roster, bool) {
	section := doc.Find("section.team-detail")
	if section.Length() == 0 {
		return team.Roster{}, false
	}

	boxes := statBoxNumbers(section, 3)
	roster := team.Roster{
		PlayedMatches: boxes[0],
		WonMatches:    boxes[1],
		LostMatches:   boxes[2],
		Skills:        parseSkillTables(section),
	}
	roster.Players, _ = playerBoxes(section.Find("section#team-detail-squad a.player-box"), origin)

	if roster.Empty() {
		return team.Roster{}, false
	}
	return roster, true
}

func parseProfileV1(doc *goquery.Document, _ *url.URL) (player.Profile, bool) {
	section := doc.Find("section.player-detail")
	if section.Length() == 0 {
		return player.Profile{}, false
	}

	boxes := statBoxNumbers(section, 5)
	country, position := splitDetail(doc.Find("div.player-detail-data-item.detail").Text())

	profile := player.Profile{
		Name:     strings.TrimSpace(doc.Find("h1.player-detail-data-item.name").Text()),
		Number:   parseIntDefault(doc.Find("div.player-detail-data-item.number").Text(), 0),
		Country:  country,
		Position: position,
		Statistic: player.SummaryStatistics{
			MatchesPlayed: boxes[0],
			SetsPlayed:    boxes[1],
			PointsScored:  boxes[2],
			NumberOfAces:  boxes[3],
			PointsByBlock: boxes[4],
		},
		Skills: parseSkillTables(section),
	}
	if profile.Name == "" {
		return player.Profile{}, false
	}
	return profile, true
}

// parseMatchesV1 gates list parsing on the per-type section so a results
// page never yields schedule rows and vice versa.
func parseMatchesV1(listType match.ListType) func(*goquery.Document, *url.URL) ([]match.ListEntry, bool) {
	return func(doc *goquery.Document, origin *url.URL) ([]match.ListEntry, bool) {
		if doc.Find("section.match-" + string(listType)).Length() == 0 {
			return nil, false
		}

		rows := doc.Find("div.matches a.table-row")
		entries := make([]match.ListEntry, 0, rows.Length())
		rows.Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			id := matchID(href)
			if id == 0 {
				return
			}

			dateText := sel.Parent().Find("h3").Text()
			timeText := sel.Find("div.status.upcoming").Text()
			date, _ := parseMatchDate(dateText, timeText)

			entries = append(entries, match.ListEntry{
				ID:       id,
				Date:     date,
				MatchURL: resolveURL(origin, href),
				Home:     teamSummary(sel.Find("div.home")),
				Away:     teamSummary(sel.Find("div.away")),
			})
		})
		if len(entries) == 0 {
			return nil, false
		}
		return entries, true
	}
}

func teamSummary(sel *goquery.Selection) match.TeamSummary {
	logoURL, _ := sel.Find("div.logo img").Attr("src")
	return match.TeamSummary{
		Name:    strings.TrimSpace(sel.Find("div.name").Text()),
		LogoURL: strings.TrimSpace(logoURL),
	}
}

// statBoxNumbers reads the headline stat boxes in document order, padding
// with zeros so callers can index positionally.
func statBoxNumbers(section *goquery.Selection, want int) []int {
	out := make([]int, want)
	section.Find("div.stats-boxes div.box div.number").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= want {
			return false
		}
		out[i] = parseIntDefault(sel.Text(), 0)
		return true
	})
	return out
}

// parseSkillTables walks the general stats table groups (serve, reception,
// spike, block) shared by team and player detail pages.
func parseSkillTables(section *goquery.Selection) skills.Statistics {
	var stats skills.Statistics

	section.Find("section#team-detail-general-stats-table div.row").Children().Each(func(_ int, table *goquery.Selection) {
		title := strings.ToLower(strings.TrimSpace(table.Find("div.title").Text()))
		switch title {
		case "serve":
			stats.Serve = skills.Serve{
				Total:      statValue(table, "sum"),
				Aces:       statValue(table, "aces"),
				Errors:     statValue(table, "errors"),
				AcesPerSet: statValue(table, "aces per set"),
			}
		case "reception":
			stats.Reception = skills.Reception{
				Total:          statValue(table, "sum"),
				Errors:         statValue(table, "errors"),
				Negative:       statValue(table, "negative"),
				Perfect:        statValue(table, "perfect"),
				PercentPerfect: statValue(table, "% perfect"),
			}
		case "spike":
			stats.Spike = skills.Spike{
				Total:          statValue(table, "sum"),
				Errors:         statValue(table, "errors"),
				Blocked:        statValue(table, "blocked"),
				Perfect:        statValue(table, "perfect"),
				PercentPerfect: statValue(table, "% perfect"),
			}
		case "block":
			stats.Block = skills.Block{
				Points:       statValue(table, "points"),
				PointsPerSet: statValue(table, "points per set"),
			}
		}
	})

	return stats
}

// statValue finds the row whose label matches (case-insensitive) and returns
// its numeric value, zero when absent.
func statValue(table *goquery.Selection, label string) float64 {
	var value float64
	table.Find("div.general-stats-table-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(row.Find("div.label").Text())) != label {
			return true
		}
		value = parseFloatDefault(row.Find("div.value").Text(), 0)
		return false
	})
	return value
}

// splitDetail breaks the "Country - Position" line on a player page.
func splitDetail(text string) (country, position string) {
	parts := strings.SplitN(strings.TrimSpace(text), " - ", 2)
	country = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		position = strings.TrimSpace(parts[1])
	}
	return country, position
}
