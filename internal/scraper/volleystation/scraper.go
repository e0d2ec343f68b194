package volleystation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"

	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/match"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/team"
	"github.com/volleystats/parser/internal/platform/logging"
)

// PageFetcher is the download half of the pipeline.
type PageFetcher interface {
	Document(ctx context.Context, pageURL string) (*goquery.Document, error)
}

const defaultSiteBaseURL = "https://panel.volleystation.com/website"

type Config struct {
	// BaseURL roots competition probe URLs: <BaseURL>/<id>/.
	BaseURL string
	Logger  *logging.Logger
}

// Scraper turns catalog pages into typed entities, trying each layout
// generation in order. An empty result after both layouts means the entity
// is absent, not that the scrape failed.
type Scraper struct {
	fetcher PageFetcher
	baseURL string
	logger  *logging.Logger
}

func NewScraper(fetcher PageFetcher, cfg Config) *Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultSiteBaseURL
	}
	return &Scraper{fetcher: fetcher, baseURL: baseURL, logger: logger}
}

// CompetitionURL is the canonical base URL for one competition id.
func (s *Scraper) CompetitionURL(id int) string {
	return fmt.Sprintf("%s/%d/", s.baseURL, id)
}

// Competition probes a competition page by id. Returns nil when no layout
// recognizes the page; the reported layout names the strategy that parsed it.
func (s *Scraper) Competition(ctx context.Context, id int) (*competition.Competition, Layout, error) {
	pageURL := s.CompetitionURL(id)
	doc, origin, err := s.page(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	strategies := []strategy[competition.Competition]{
		{layout: LayoutV1, parse: parseCompetitionV1},
		{layout: LayoutV2, parse: parseCompetitionV2},
	}
	comp, layout, ok := applyStrategies(strategies, doc, origin)
	if !ok {
		return nil, "", nil
	}
	comp.ID = id
	comp.URL = pageURL
	return &comp, layout, nil
}

// Teams scrapes the teams page of a competition. An empty slice means the
// competition currently lists no teams.
func (s *Scraper) Teams(ctx context.Context, comp competition.Competition) ([]team.Team, error) {
	doc, origin, err := s.page(ctx, comp.PageURL("teams"))
	if err != nil {
		return nil, err
	}

	strategies := []strategy[[]team.Team]{
		{layout: LayoutV1, parse: parseTeamsV1},
		{layout: LayoutV2, parse: parseTeamsV2},
	}
	teams, _, _ := applyStrategies(strategies, doc, origin)
	return teams, nil
}

// Players scrapes the players page of a competition.
func (s *Scraper) Players(ctx context.Context, comp competition.Competition) ([]player.Player, error) {
	doc, origin, err := s.page(ctx, comp.PageURL("players"))
	if err != nil {
		return nil, err
	}

	strategies := []strategy[[]player.Player]{
		{layout: LayoutV1, parse: parsePlayersV1},
		{layout: LayoutV2, parse: parsePlayersV2},
	}
	players, _, _ := applyStrategies(strategies, doc, origin)
	return players, nil
}

// TeamRoster scrapes one team detail page. Returns nil when the page exists
// but no layout yields a roster.
func (s *Scraper) TeamRoster(ctx context.Context, comp competition.Competition, teamID string) (*team.Roster, error) {
	doc, origin, err := s.page(ctx, comp.PageURL("teams/"+teamID))
	if err != nil {
		return nil, err
	}

	strategies := []strategy[team.Roster]{
		{layout: LayoutV1, parse: parseRosterV1},
		{layout: LayoutV2, parse: parseRosterV2},
	}
	roster, _, ok := applyStrategies(strategies, doc, origin)
	if !ok {
		return nil, nil
	}
	return &roster, nil
}

// PlayerProfile scrapes one player detail page.
func (s *Scraper) PlayerProfile(ctx context.Context, comp competition.Competition, playerID int) (*player.Profile, error) {
	doc, origin, err := s.page(ctx, comp.PageURL(fmt.Sprintf("players/%d", playerID)))
	if err != nil {
		return nil, err
	}

	strategies := []strategy[player.Profile]{
		{layout: LayoutV1, parse: parseProfileV1},
		{layout: LayoutV2, parse: parseProfileV2},
	}
	profile, _, ok := applyStrategies(strategies, doc, origin)
	if !ok {
		return nil, nil
	}
	profile.ID = playerID
	return &profile, nil
}

// Matches scrapes the results or schedule list of a competition. Entries
// with malformed dates are kept with a zero date and logged.
func (s *Scraper) Matches(ctx context.Context, comp competition.Competition, listType match.ListType) ([]match.ListEntry, error) {
	if !listType.Valid() {
		return nil, crerr.Newf("unknown match list type %q", listType)
	}
	pageURL := comp.PageURL(string(listType))
	doc, origin, err := s.page(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	strategies := []strategy[[]match.ListEntry]{
		{layout: LayoutV1, parse: parseMatchesV1(listType)},
		{layout: LayoutV2, parse: parseMatchesV2(listType)},
	}
	entries, _, ok := applyStrategies(strategies, doc, origin)
	if !ok {
		s.logger.WarnContext(ctx, "match list section missing", "url", pageURL, "type", listType)
		return nil, nil
	}

	for _, entry := range entries {
		if entry.Date.IsZero() {
			s.logger.WarnContext(ctx, "match date unparsable", "url", pageURL, "match_id", entry.ID)
		}
	}
	return entries, nil
}

func (s *Scraper) page(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	doc, err := s.fetcher.Document(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, crerr.Wrapf(err, "parse page url %s", pageURL)
	}
	origin := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return doc, origin, nil
}
