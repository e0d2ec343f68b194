package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

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

type stubScraper struct {
	mu               sync.Mutex
	competition      *competition.Competition
	competitionLayout volleystation.Layout
	competitionErr   error
	teams            []team.Team
	teamsErr         error
	roster           *team.Roster
	players          []player.Player
	profile          *player.Profile
	matches          map[match.ListType][]match.ListEntry

	competitionCalls int
	teamsCalls       int
	teamsHook        func()
}

func (s *stubScraper) Competition(_ context.Context, id int) (*competition.Competition, volleystation.Layout, error) {
	s.competitionCalls++
	if s.competitionErr != nil {
		return nil, "", s.competitionErr
	}
	if s.competition == nil {
		return nil, "", nil
	}
	comp := *s.competition
	comp.ID = id
	return &comp, s.competitionLayout, nil
}

func (s *stubScraper) Teams(context.Context, competition.Competition) ([]team.Team, error) {
	s.mu.Lock()
	s.teamsCalls++
	s.mu.Unlock()
	if s.teamsHook != nil {
		s.teamsHook()
	}
	return s.teams, s.teamsErr
}

func (s *stubScraper) TeamRoster(context.Context, competition.Competition, string) (*team.Roster, error) {
	return s.roster, nil
}

func (s *stubScraper) Players(context.Context, competition.Competition) ([]player.Player, error) {
	return s.players, nil
}

func (s *stubScraper) PlayerProfile(context.Context, competition.Competition, int) (*player.Profile, error) {
	return s.profile, nil
}

func (s *stubScraper) Matches(_ context.Context, _ competition.Competition, listType match.ListType) ([]match.ListEntry, error) {
	return s.matches[listType], nil
}

type stubLive struct {
	detail *live.MatchDetail
	err    error
	calls  int
}

func (s *stubLive) MatchSnapshot(context.Context, int) (*live.MatchDetail, error) {
	s.calls++
	return s.detail, s.err
}

func newTestService(sc *stubScraper, lp *stubLive) (*CatalogService, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return NewCatalogService(store, sc, lp, logging.NewNop()), store
}

func testComp() competition.Competition {
	return competition.Competition{ID: 7, Name: "PlusLiga", URL: "https://panel.volleystation.com/website/7/"}
}

func TestCatalogService_TeamsCachesAfterFirstRead(t *testing.T) {
	sc := &stubScraper{teams: []team.Team{{ID: "12-3", Name: "Skra"}}}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	got, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, sc.teamsCalls)

	again, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Equal(t, got, again)
	require.Equal(t, 1, sc.teamsCalls, "second read must hit the cache")

	raw, err := store.GetJSON(ctx, cache.TeamsKey(7))
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestCatalogService_EmptyListLeavesTombstone(t *testing.T) {
	sc := &stubScraper{}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	got, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Nil(t, got)

	negative, err := cache.IsNegative(ctx, store, cache.TeamsKey(7))
	require.NoError(t, err)
	require.True(t, negative)

	// Subsequent reads short-circuit on the tombstone.
	_, err = svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Equal(t, 1, sc.teamsCalls)
}

func TestCatalogService_NotFoundLeavesTombstone(t *testing.T) {
	sc := &stubScraper{teamsErr: scraper.ErrNotFound}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	got, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Nil(t, got)

	negative, err := cache.IsNegative(ctx, store, cache.TeamsKey(7))
	require.NoError(t, err)
	require.True(t, negative)
}

func TestCatalogService_TransientErrorDoesNotTombstone(t *testing.T) {
	sc := &stubScraper{teamsErr: crerr.New("connection reset")}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	_, err := svc.Teams(ctx, testComp())
	require.Error(t, err)

	negative, err := cache.IsNegative(ctx, store, cache.TeamsKey(7))
	require.NoError(t, err)
	require.False(t, negative)
}

func TestCatalogService_ListShapeCoercion(t *testing.T) {
	svc, store := newTestService(&stubScraper{}, &stubLive{})
	ctx := context.Background()

	// A stray single object in an array slot is wrapped, not discarded.
	raw, err := sonic.Marshal(team.Team{ID: "9-1", Name: "Resovia"})
	require.NoError(t, err)
	require.NoError(t, store.SetJSON(ctx, cache.TeamsKey(7), raw, 0))

	got, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "9-1", got[0].ID)
}

func TestCatalogService_SingleShapeCoercion(t *testing.T) {
	svc, store := newTestService(&stubScraper{}, &stubLive{})
	ctx := context.Background()

	raw, err := sonic.Marshal([]player.Profile{{ID: 4, Name: "Ivan Petrov"}})
	require.NoError(t, err)
	require.NoError(t, store.SetJSON(ctx, cache.PlayerKey(7, 4), raw, 0))

	got, err := svc.Player(ctx, testComp(), 4)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Ivan Petrov", got.Name)
}

func TestCatalogService_CompetitionStoresUnderWinningLayout(t *testing.T) {
	sc := &stubScraper{
		competition:      &competition.Competition{Name: "PlusLiga", URL: "https://panel.volleystation.com/website/7/"},
		competitionLayout: volleystation.LayoutV2,
	}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	got, err := svc.Competition(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 7, got.ID)

	raw, err := store.GetJSON(ctx, cache.CompetitionKey(7, "v2"))
	require.NoError(t, err)
	require.NotNil(t, raw)

	raw, err = store.GetJSON(ctx, cache.CompetitionKey(7, "v1"))
	require.NoError(t, err)
	require.Nil(t, raw)

	again, err := svc.Competition(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, got, again)
	require.Equal(t, 1, sc.competitionCalls)
}

func TestCatalogService_CompetitionAbsentTombstonesBothLayouts(t *testing.T) {
	sc := &stubScraper{}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	got, err := svc.Competition(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, got)

	for _, layout := range []string{"v1", "v2"} {
		negative, err := cache.IsNegative(ctx, store, cache.CompetitionKey(99, layout))
		require.NoError(t, err)
		require.True(t, negative, "layout %s must be tombstoned", layout)
	}

	_, err = svc.Competition(ctx, 99)
	require.NoError(t, err)
	require.Equal(t, 1, sc.competitionCalls)
}

func TestCatalogService_CompetitionRejectsBadID(t *testing.T) {
	svc, _ := newTestService(&stubScraper{}, &stubLive{})

	_, err := svc.Competition(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalogService_CompetitionsAggregatesBothLayouts(t *testing.T) {
	svc, store := newTestService(&stubScraper{}, &stubLive{})
	ctx := context.Background()

	seed := func(id int, layout string) {
		comp := competition.Competition{ID: id, Name: "League", URL: "https://panel.volleystation.com/website/"}
		raw, err := sonic.Marshal(comp)
		require.NoError(t, err)
		require.NoError(t, store.SetJSON(ctx, cache.CompetitionKey(id, layout), raw, 0))
	}
	seed(3, "v1")
	seed(5, "v2")
	// Same id cached under both layouts appears once.
	seed(3, "v2")

	got, err := svc.Competitions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 3, got[0].ID)
	require.Equal(t, 5, got[1].ID)

	// Aggregate entry written for the next read.
	raw, err := store.GetJSON(ctx, cache.CompetitionsKey())
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestCatalogService_CompetitionsEmptyWhenNothingCached(t *testing.T) {
	svc, _ := newTestService(&stubScraper{}, &stubLive{})

	got, err := svc.Competitions(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCatalogService_MatchesRejectsUnknownListType(t *testing.T) {
	svc, _ := newTestService(&stubScraper{}, &stubLive{})

	_, err := svc.Matches(context.Background(), testComp(), match.ListType("highlights"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalogService_MatchesCachesPerListType(t *testing.T) {
	sc := &stubScraper{matches: map[match.ListType][]match.ListEntry{
		match.ListTypeResults:  {{ID: 101, Home: match.TeamSummary{Name: "Skra"}}},
		match.ListTypeSchedule: {{ID: 202, Date: time.Now().Add(time.Hour)}},
	}}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()

	results, err := svc.Matches(ctx, testComp(), match.ListTypeResults)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 101, results[0].ID)

	schedule, err := svc.Matches(ctx, testComp(), match.ListTypeSchedule)
	require.NoError(t, err)
	require.Equal(t, 202, schedule[0].ID)

	raw, err := store.GetJSON(ctx, cache.MatchesKey(7, "results"))
	require.NoError(t, err)
	require.NotNil(t, raw)
	raw, err = store.GetJSON(ctx, cache.MatchesKey(7, "schedule"))
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestCatalogService_MatchCachesSnapshot(t *testing.T) {
	lp := &stubLive{detail: &live.MatchDetail{MatchID: 44, Status: match.StatusFinished}}
	svc, store := newTestService(&stubScraper{}, lp)
	ctx := context.Background()

	got, err := svc.Match(ctx, 44)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, match.StatusFinished, got.Status)

	again, err := svc.Match(ctx, 44)
	require.NoError(t, err)
	require.Equal(t, got.MatchID, again.MatchID)
	require.Equal(t, 1, lp.calls)

	raw, err := store.GetJSON(ctx, cache.MatchKey(44))
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestCatalogService_MatchAbsentTombstones(t *testing.T) {
	lp := &stubLive{}
	svc, store := newTestService(&stubScraper{}, lp)
	ctx := context.Background()

	got, err := svc.Match(ctx, 44)
	require.NoError(t, err)
	require.Nil(t, got)

	negative, err := cache.IsNegative(ctx, store, cache.MatchKey(44))
	require.NoError(t, err)
	require.True(t, negative)

	_, err = svc.Match(ctx, 44)
	require.NoError(t, err)
	require.Equal(t, 1, lp.calls)
}

func TestCatalogService_MatchFeedErrorMarksDependency(t *testing.T) {
	lp := &stubLive{err: crerr.New("socket closed")}
	svc, _ := newTestService(&stubScraper{}, lp)

	_, err := svc.Match(context.Background(), 44)
	require.Error(t, err)
	require.True(t, crerr.Is(err, ErrDependencyUnavailable))
}

func TestCatalogService_ConcurrentMissesBothCompute(t *testing.T) {
	barrier := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	sc := &stubScraper{teams: []team.Team{{ID: "12-3", Name: "Skra"}}}
	sc.teamsHook = func() {
		entered.Done()
		<-barrier
	}
	svc, _ := newTestService(sc, &stubLive{})
	ctx := context.Background()

	results := make(chan []team.Team, 2)
	for i := 0; i < 2; i++ {
		go func() {
			got, err := svc.Teams(ctx, testComp())
			require.NoError(t, err)
			results <- got
		}()
	}
	// Both reads miss and reach compute before either write lands.
	entered.Wait()
	close(barrier)

	first, second := <-results, <-results
	require.Equal(t, first, second)
	require.Equal(t, 2, sc.teamsCalls)
}

func TestCatalogService_TombstoneNeverCoexistsWithEntry(t *testing.T) {
	sc := &stubScraper{teams: []team.Team{{ID: "12-3"}}}
	svc, store := newTestService(sc, &stubLive{})
	ctx := context.Background()
	key := cache.TeamsKey(7)

	// Absent upstream: tombstone set, entry gone.
	sc.teams = nil
	_, err := svc.Teams(ctx, testComp())
	require.NoError(t, err)
	negative, err := cache.IsNegative(ctx, store, key)
	require.NoError(t, err)
	require.True(t, negative)

	// Entity reappears after the tombstone expires: writing the entry
	// clears the tombstone.
	require.NoError(t, cache.ClearNegative(ctx, store, key))
	sc.teams = []team.Team{{ID: "12-3"}}
	_, err = svc.Teams(ctx, testComp())
	require.NoError(t, err)

	raw, err := store.GetJSON(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, raw)
	negative, err = cache.IsNegative(ctx, store, key)
	require.NoError(t, err)
	require.False(t, negative)
}

func TestCatalogService_RosterReads(t *testing.T) {
	sc := &stubScraper{roster: &team.Roster{PlayedMatches: 20, WonMatches: 14, LostMatches: 6}}
	svc, _ := newTestService(sc, &stubLive{})

	got, err := svc.Team(context.Background(), testComp(), "12-3")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 20, got.PlayedMatches)
}
