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

// Redesigned markup generation. The site moved to card grids and data
// attributes; entity ids still live in the hrefs.

func parseCompetitionV2(doc *goquery.Document, _ *url.URL) (competition.Competition, bool) {
	header := doc.Find("header.league-header")
	if header.Length() == 0 {
		return competition.Competition{}, false
	}
	name := strings.TrimSpace(header.Find("h1.league-name").Text())
	if name == "" {
		return competition.Competition{}, false
	}
	return competition.Competition{Name: name}, true
}

func parseTeamsV2(doc *goquery.Document, origin *url.URL) ([]team.Team, bool) {
	cards := doc.Find("div.teams-grid a.team-card")
	if cards.Length() == 0 {
		return nil, false
	}

	teams := make([]team.Team, 0, cards.Length())
	cards.Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := teamID(href)
		if id == "" {
			return
		}
		logoURL, _ := sel.Find("figure.team-card-logo img").Attr("src")
		teams = append(teams, team.Team{
			ID:      id,
			Name:    strings.TrimSpace(sel.Find("span.team-card-name").Text()),
			LogoURL: strings.TrimSpace(logoURL),
			URL:     resolveURL(origin, href),
		})
	})
	if len(teams) == 0 {
		return nil, false
	}
	return teams, true
}

func parsePlayersV2(doc *goquery.Document, origin *url.URL) ([]player.Player, bool) {
	return playerCards(doc.Find("div.players-grid a.player-card"), origin)
}

func playerCards(cards *goquery.Selection, origin *url.URL) ([]player.Player, bool) {
	if cards.Length() == 0 {
		return nil, false
	}

	players := make([]player.Player, 0, cards.Length())
	cards.Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := playerID(href)
		if id == 0 {
			return
		}
		photoURL, _ := sel.Find("figure.player-card-photo img").Attr("src")
		players = append(players, player.Player{
			ID:       id,
			Name:     strings.TrimSpace(sel.Find("span.player-card-name").Text()),
			Number:   parseIntDefault(sel.Find("span.player-card-number").Text(), 0),
			Position: strings.TrimSpace(sel.Find("span.player-card-position").Text()),
			URL:      resolveURL(origin, href),
			PhotoURL: strings.TrimSpace(photoURL),
		})
	})
	if len(players) == 0 {
		return nil, false
	}
	return players, true
}

func parseRosterV2(doc *goquery.Document, origin *url.URL) (team.Roster, bool) {
	section := doc.Find("section.team-profile")
	if section.Length() == 0 {
		return team.Roster{}, false
	}

	tiles := summaryTiles(section, 3)
	roster := team.Roster{
		PlayedMatches: tiles[0],
		WonMatches:    tiles[1],
		LostMatches:   tiles[2],
		Skills:        parseStatGroups(section),
	}
	roster.Players, _ = playerCards(section.Find("div.roster-grid a.player-card"), origin)

	if roster.Empty() {
		return team.Roster{}, false
	}
	return roster, true
}

func parseProfileV2(doc *goquery.Document, _ *url.URL) (player.Profile, bool) {
	section := doc.Find("section.player-profile")
	if section.Length() == 0 {
		return player.Profile{}, false
	}

	tiles := summaryTiles(section, 5)
	header := section.Find("header.player-header")
	country, position := splitDetail(header.Find("p.player-meta").Text())

	profile := player.Profile{
		Name:     strings.TrimSpace(header.Find("h1.player-name").Text()),
		Number:   parseIntDefault(header.Find("span.player-number").Text(), 0),
		Country:  country,
		Position: position,
		Statistic: player.SummaryStatistics{
			MatchesPlayed: tiles[0],
			SetsPlayed:    tiles[1],
			PointsScored:  tiles[2],
			NumberOfAces:  tiles[3],
			PointsByBlock: tiles[4],
		},
		Skills: parseStatGroups(section),
	}
	if profile.Name == "" {
		return player.Profile{}, false
	}
	return profile, true
}

func parseMatchesV2(listType match.ListType) func(*goquery.Document, *url.URL) ([]match.ListEntry, bool) {
	return func(doc *goquery.Document, origin *url.URL) ([]match.ListEntry, bool) {
		section := doc.Find(`section.fixtures[data-tab="` + string(listType) + `"]`)
		if section.Length() == 0 {
			return nil, false
		}

		rows := section.Find("div.fixtures-list a.fixture-row")
		entries := make([]match.ListEntry, 0, rows.Length())
		rows.Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			id := matchID(href)
			if id == 0 {
				return
			}

			dateText := sel.Parent().Find("h4.fixture-date").Text()
			timeText := sel.Find("span.fixture-time").Text()
			date, _ := parseMatchDate(dateText, timeText)

			entries = append(entries, match.ListEntry{
				ID:       id,
				Date:     date,
				MatchURL: resolveURL(origin, href),
				Home:     sideSummary(sel.Find("div.side.home")),
				Away:     sideSummary(sel.Find("div.side.away")),
			})
		})
		if len(entries) == 0 {
			return nil, false
		}
		return entries, true
	}
}

func sideSummary(sel *goquery.Selection) match.TeamSummary {
	logoURL, _ := sel.Find("img.side-logo").Attr("src")
	return match.TeamSummary{
		Name:    strings.TrimSpace(sel.Find("span.side-name").Text()),
		LogoURL: strings.TrimSpace(logoURL),
	}
}

func summaryTiles(section *goquery.Selection, want int) []int {
	out := make([]int, want)
	section.Find("ul.summary-tiles li.tile span.tile-value").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= want {
			return false
		}
		out[i] = parseIntDefault(sel.Text(), 0)
		return true
	})
	return out
}

func parseStatGroups(section *goquery.Selection) skills.Statistics {
	var stats skills.Statistics

	section.Find("div.stat-groups section.stat-group").Each(func(_ int, group *goquery.Selection) {
		title := strings.ToLower(strings.TrimSpace(group.Find("h3.stat-group-title").Text()))
		switch title {
		case "serve":
			stats.Serve = skills.Serve{
				Total:      groupValue(group, "sum"),
				Aces:       groupValue(group, "aces"),
				Errors:     groupValue(group, "errors"),
				AcesPerSet: groupValue(group, "aces per set"),
			}
		case "reception":
			stats.Reception = skills.Reception{
				Total:          groupValue(group, "sum"),
				Errors:         groupValue(group, "errors"),
				Negative:       groupValue(group, "negative"),
				Perfect:        groupValue(group, "perfect"),
				PercentPerfect: groupValue(group, "% perfect"),
			}
		case "spike":
			stats.Spike = skills.Spike{
				Total:          groupValue(group, "sum"),
				Errors:         groupValue(group, "errors"),
				Blocked:        groupValue(group, "blocked"),
				Perfect:        groupValue(group, "perfect"),
				PercentPerfect: groupValue(group, "% perfect"),
			}
		case "block":
			stats.Block = skills.Block{
				Points:       groupValue(group, "points"),
				PointsPerSet: groupValue(group, "points per set"),
			}
		}
	})

	return stats
}

func groupValue(group *goquery.Selection, label string) float64 {
	var value float64
	group.Find("li.stat-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(row.Find("span.stat-label").Text())) != label {
			return true
		}
		value = parseFloatDefault(row.Find("span.stat-value").Text(), 0)
		return false
	})
	return value
}
