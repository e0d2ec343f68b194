package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/live"
	"github.com/volleystats/parser/internal/domain/match"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/team"
	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/scraper"
	"github.com/volleystats/parser/internal/scraper/volleystation"
)

// CatalogScraper is the fetch+parse pipeline behind cache misses.
type CatalogScraper interface {
	Competition(ctx context.Context, id int) (*competition.Competition, volleystation.Layout, error)
	Teams(ctx context.Context, comp competition.Competition) ([]team.Team, error)
	TeamRoster(ctx context.Context, comp competition.Competition, teamID string) (*team.Roster, error)
	Players(ctx context.Context, comp competition.Competition) ([]player.Player, error)
	PlayerProfile(ctx context.Context, comp competition.Competition, playerID int) (*player.Profile, error)
	Matches(ctx context.Context, comp competition.Competition, listType match.ListType) ([]match.ListEntry, error)
}

// LiveProvider supplies play-by-play snapshots for match detail reads.
type LiveProvider interface {
	MatchSnapshot(ctx context.Context, matchID int) (*live.MatchDetail, error)
}

var competitionLayouts = []volleystation.Layout{volleystation.LayoutV1, volleystation.LayoutV2}

// CatalogService is the cache-aside read path for every catalog entity. A
// read returns the cached entry when present, otherwise computes it through
// the scraper or live feed and populates the cache. Confirmed-absent
// entities leave a negative tombstone so repeated reads skip the upstream.
//
// Concurrent misses for the same key intentionally race: each computes and
// the last write wins. Coalescing would serialize the scheduler's workers
// behind the slowest fetch for no correctness gain.
type CatalogService struct {
	store   cache.Store
	scraper CatalogScraper
	live    LiveProvider
	logger  *logging.Logger
}

func NewCatalogService(store cache.Store, sc CatalogScraper, lp LiveProvider, logger *logging.Logger) *CatalogService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogService{store: store, scraper: sc, live: lp, logger: logger}
}

// Competition reads one competition, checking both layout namespaces before
// probing the page. Returns (nil, nil) when the id is confirmed absent.
func (s *CatalogService) Competition(ctx context.Context, id int) (*competition.Competition, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Competition")
	defer span.End()

	if id <= 0 {
		return nil, fmt.Errorf("%w: competition id must be positive", ErrInvalidInput)
	}

	allNegative := true
	for _, layout := range competitionLayouts {
		key := cache.CompetitionKey(id, string(layout))
		if s.isAbsent(ctx, key) {
			continue
		}
		allNegative = false
		if comp, ok := readCachedOne[competition.Competition](s, ctx, key); ok {
			return comp, nil
		}
	}
	if allNegative {
		return nil, nil
	}

	comp, layout, err := s.scraper.Competition(ctx, id)
	if err != nil {
		if scraper.IsNotFound(err) {
			s.tombstoneCompetition(ctx, id)
			return nil, nil
		}
		return nil, fmt.Errorf("probe competition id=%d: %w", id, err)
	}
	if comp == nil {
		s.tombstoneCompetition(ctx, id)
		return nil, nil
	}

	key := cache.CompetitionKey(id, string(layout))
	s.writeCache(ctx, key, comp, cache.Buckets[cache.ClassCompetition].Cache())
	return comp, nil
}

// Competitions returns every known competition. On an aggregate-key miss the
// set is reconstructed by scanning both layout namespaces and deduplicating
// by id.
func (s *CatalogService) Competitions(ctx context.Context) ([]competition.Competition, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Competitions")
	defer span.End()

	key := cache.CompetitionsKey()
	if list, ok := readCachedList[competition.Competition](s, ctx, key); ok {
		return list, nil
	}

	var keys []string
	for _, layout := range competitionLayouts {
		batch, err := s.store.ScanKeys(ctx, cache.CompetitionLayoutPattern(string(layout)))
		if err != nil {
			return nil, fmt.Errorf("scan competitions %s: %w", layout, err)
		}
		keys = append(keys, batch...)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docs, err := s.store.MGetJSON(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("mget competitions: %w", err)
	}

	byID := make(map[int]competition.Competition, len(docs))
	for _, doc := range docs {
		var comp competition.Competition
		if err := sonic.Unmarshal(doc, &comp); err != nil {
			s.logger.WarnContext(ctx, "skip undecodable competition entry", "error", err)
			continue
		}
		if !comp.Valid() {
			continue
		}
		if _, seen := byID[comp.ID]; !seen {
			byID[comp.ID] = comp
		}
	}

	list := make([]competition.Competition, 0, len(byID))
	for _, comp := range byID {
		list = append(list, comp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	if len(list) > 0 {
		s.writeCache(ctx, key, list, cache.AggregateCompetitionsTTL())
	}
	return list, nil
}

// Teams lists the teams of a competition. A confirmed-absent teams page
// yields an empty slice and a tombstone, not an error.
func (s *CatalogService) Teams(ctx context.Context, comp competition.Competition) ([]team.Team, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Teams")
	defer span.End()

	return fetchList(s, ctx, cache.TeamsKey(comp.ID), cache.Buckets[cache.ClassTeams].Cache(),
		func(ctx context.Context) ([]team.Team, error) {
			return s.scraper.Teams(ctx, comp)
		})
}

// Team reads one team roster.
func (s *CatalogService) Team(ctx context.Context, comp competition.Competition, teamID string) (*team.Roster, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Team")
	defer span.End()

	return fetchOne(s, ctx, cache.TeamKey(comp.ID, teamID), cache.Buckets[cache.ClassTeam].Cache(),
		func(ctx context.Context) (*team.Roster, error) {
			return s.scraper.TeamRoster(ctx, comp, teamID)
		})
}

// Players lists the players of a competition.
func (s *CatalogService) Players(ctx context.Context, comp competition.Competition) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Players")
	defer span.End()

	return fetchList(s, ctx, cache.PlayersKey(comp.ID), cache.Buckets[cache.ClassPlayers].Cache(),
		func(ctx context.Context) ([]player.Player, error) {
			return s.scraper.Players(ctx, comp)
		})
}

// Player reads one player profile.
func (s *CatalogService) Player(ctx context.Context, comp competition.Competition, playerID int) (*player.Profile, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Player")
	defer span.End()

	return fetchOne(s, ctx, cache.PlayerKey(comp.ID, playerID), cache.Buckets[cache.ClassPlayer].Cache(),
		func(ctx context.Context) (*player.Profile, error) {
			return s.scraper.PlayerProfile(ctx, comp, playerID)
		})
}

// Matches lists the results or schedule entries of a competition.
func (s *CatalogService) Matches(ctx context.Context, comp competition.Competition, listType match.ListType) ([]match.ListEntry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Matches")
	defer span.End()

	if !listType.Valid() {
		return nil, fmt.Errorf("%w: unknown match list type %q", ErrInvalidInput, listType)
	}

	return fetchList(s, ctx, cache.MatchesKey(comp.ID, string(listType)), cache.Buckets[cache.ListClass(listType)].Cache(),
		func(ctx context.Context) ([]match.ListEntry, error) {
			return s.scraper.Matches(ctx, comp, listType)
		})
}

// Match reads one play-by-play snapshot. The TTL written depends on the
// match status at compute time: live matches expire in seconds, upcoming in
// minutes, finished in days.
func (s *CatalogService) Match(ctx context.Context, matchID int) (*live.MatchDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.Match")
	defer span.End()

	if matchID <= 0 {
		return nil, fmt.Errorf("%w: match id must be positive", ErrInvalidInput)
	}

	key := cache.MatchKey(matchID)
	if s.isAbsent(ctx, key) {
		return nil, nil
	}
	if detail, ok := readCachedOne[live.MatchDetail](s, ctx, key); ok {
		return detail, nil
	}

	detail, err := s.live.MatchSnapshot(ctx, matchID)
	if err != nil {
		return nil, crerr.Mark(fmt.Errorf("match snapshot match_id=%d: %w", matchID, err), ErrDependencyUnavailable)
	}
	if detail == nil {
		s.markAbsent(ctx, key)
		return nil, nil
	}

	s.writeCache(ctx, key, detail, cache.Buckets[cache.MatchClass(detail.Status)].Cache())
	return detail, nil
}

// fetchList is the cache-aside skeleton for array-shaped entities.
func fetchList[T any](s *CatalogService, ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]T, error)) ([]T, error) {
	if s.isAbsent(ctx, key) {
		return nil, nil
	}
	if list, ok := readCachedList[T](s, ctx, key); ok {
		return list, nil
	}

	list, err := compute(ctx)
	if err != nil {
		if scraper.IsNotFound(err) {
			s.markAbsent(ctx, key)
			return nil, nil
		}
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	if len(list) == 0 {
		s.markAbsent(ctx, key)
		return nil, nil
	}

	s.writeCache(ctx, key, list, ttl)
	return list, nil
}

// fetchOne is the cache-aside skeleton for single-object entities.
func fetchOne[T any](s *CatalogService, ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (*T, error)) (*T, error) {
	if s.isAbsent(ctx, key) {
		return nil, nil
	}
	if value, ok := readCachedOne[T](s, ctx, key); ok {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		if scraper.IsNotFound(err) {
			s.markAbsent(ctx, key)
			return nil, nil
		}
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	if value == nil {
		s.markAbsent(ctx, key)
		return nil, nil
	}

	s.writeCache(ctx, key, value, ttl)
	return value, nil
}

// readCachedList reads an array entry, coercing a stray single object into a
// one-element slice with a warning. Cache read errors degrade to a miss.
func readCachedList[T any](s *CatalogService, ctx context.Context, key string) ([]T, bool) {
	raw := s.readRaw(ctx, key)
	if raw == nil {
		return nil, false
	}

	var list []T
	if err := sonic.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var single T
	if err := sonic.Unmarshal(raw, &single); err == nil {
		s.logger.WarnContext(ctx, "expected array in cache, got single object", "key", key)
		return []T{single}, true
	}

	s.logger.WarnContext(ctx, "undecodable cache entry, treating as miss", "key", key)
	return nil, false
}

// readCachedOne is the mirror of readCachedList for object entries: a stray
// array is coerced to its first element.
func readCachedOne[T any](s *CatalogService, ctx context.Context, key string) (*T, bool) {
	raw := s.readRaw(ctx, key)
	if raw == nil {
		return nil, false
	}

	var single T
	if err := sonic.Unmarshal(raw, &single); err == nil {
		return &single, true
	}
	var list []T
	if err := sonic.Unmarshal(raw, &list); err == nil {
		s.logger.WarnContext(ctx, "expected single object in cache, got array", "key", key)
		if len(list) == 0 {
			return nil, false
		}
		return &list[0], true
	}

	s.logger.WarnContext(ctx, "undecodable cache entry, treating as miss", "key", key)
	return nil, false
}

func (s *CatalogService) readRaw(ctx context.Context, key string) []byte {
	raw, err := s.store.GetJSON(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed, treating as miss", "key", key, "error", err)
		return nil
	}
	return raw
}

func (s *CatalogService) isAbsent(ctx context.Context, key string) bool {
	negative, err := cache.IsNegative(ctx, s.store, key)
	if err != nil {
		s.logger.WarnContext(ctx, "negative cache check failed", "key", key, "error", err)
		return false
	}
	return negative
}

// markAbsent and writeCache are best-effort: a cache write failure is logged
// and the freshly computed value still flows to the caller. Each clears the
// opposite entry so a key and its tombstone are never readable together.
func (s *CatalogService) markAbsent(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "stale cache delete failed", "key", key, "error", err)
	}
	if err := cache.MarkNegative(ctx, s.store, key); err != nil {
		s.logger.WarnContext(ctx, "negative cache write failed", "key", key, "error", err)
	}
}

func (s *CatalogService) writeCache(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := sonic.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.store.SetJSON(ctx, key, raw, ttl); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		return
	}
	if err := cache.ClearNegative(ctx, s.store, key); err != nil {
		s.logger.WarnContext(ctx, "tombstone clear failed", "key", key, "error", err)
	}
}

func (s *CatalogService) tombstoneCompetition(ctx context.Context, id int) {
	for _, layout := range competitionLayouts {
		s.markAbsent(ctx, cache.CompetitionKey(id, string(layout)))
	}
}
