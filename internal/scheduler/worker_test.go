package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/live"
	"github.com/volleystats/parser/internal/domain/match"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/team"
	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/scraper"
)

type fakeCatalog struct {
	mu           sync.Mutex
	competitions map[int]competition.Competition
	teams        []team.Team
	players      []player.Player
	matches      map[match.ListType][]match.ListEntry
	matchReads   []int
	teamReads    []string
	playerReads  []int
	fetchBudgets []int
}

func (f *fakeCatalog) Competitions(context.Context) ([]competition.Competition, error) {
	list := make([]competition.Competition, 0, len(f.competitions))
	for _, comp := range f.competitions {
		list = append(list, comp)
	}
	return list, nil
}

func (f *fakeCatalog) Competition(ctx context.Context, id int) (*competition.Competition, error) {
	if budget, ok := scraper.AttemptBudget(ctx); ok {
		f.mu.Lock()
		f.fetchBudgets = append(f.fetchBudgets, budget)
		f.mu.Unlock()
	}
	comp, ok := f.competitions[id]
	if !ok {
		return nil, nil
	}
	return &comp, nil
}

func (f *fakeCatalog) Teams(context.Context, competition.Competition) ([]team.Team, error) {
	return f.teams, nil
}

func (f *fakeCatalog) Team(_ context.Context, _ competition.Competition, teamID string) (*team.Roster, error) {
	f.mu.Lock()
	f.teamReads = append(f.teamReads, teamID)
	f.mu.Unlock()
	return &team.Roster{}, nil
}

func (f *fakeCatalog) Players(context.Context, competition.Competition) ([]player.Player, error) {
	return f.players, nil
}

func (f *fakeCatalog) Player(_ context.Context, _ competition.Competition, playerID int) (*player.Profile, error) {
	f.mu.Lock()
	f.playerReads = append(f.playerReads, playerID)
	f.mu.Unlock()
	return &player.Profile{ID: playerID}, nil
}

func (f *fakeCatalog) Matches(_ context.Context, _ competition.Competition, listType match.ListType) ([]match.ListEntry, error) {
	return f.matches[listType], nil
}

func (f *fakeCatalog) Match(_ context.Context, matchID int) (*live.MatchDetail, error) {
	f.mu.Lock()
	f.matchReads = append(f.matchReads, matchID)
	f.mu.Unlock()
	return &live.MatchDetail{MatchID: matchID}, nil
}

type fakeRepo struct {
	mu           sync.Mutex
	competitions []competition.Competition
	teams        map[int][]team.Team
	players      map[int][]player.Player
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{teams: map[int][]team.Team{}, players: map[int][]player.Player{}}
}

func (r *fakeRepo) SaveCompetition(_ context.Context, comp competition.Competition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.competitions = append(r.competitions, comp)
	return nil
}

func (r *fakeRepo) SaveTeams(_ context.Context, competitionID int, teams []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[competitionID] = teams
	return nil
}

func (r *fakeRepo) SavePlayers(_ context.Context, competitionID int, players []player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[competitionID] = players
	return nil
}

type captureQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func (q *captureQueue) Enqueue(job Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true, nil
}

func (q *captureQueue) byType(jobType JobType) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for _, job := range q.jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

func newTestWorker(catalog Catalog, repo SnapshotWriter, cfg WorkerConfig) (*Worker, *captureQueue) {
	cfg.Logger = logging.NewNop()
	w := NewWorker(catalog, repo, cfg)
	queue := &captureQueue{}
	w.Attach(queue)
	return w, queue
}

func TestWorker_CompetitionCascadesToAllDescendants(t *testing.T) {
	catalog := &fakeCatalog{competitions: map[int]competition.Competition{
		7: {ID: 7, Name: "PlusLiga", URL: "https://panel.volleystation.com/website/7/"},
	}}
	repo := newFakeRepo()
	w, queue := newTestWorker(catalog, repo, WorkerConfig{})

	require.NoError(t, w.Handle(context.Background(), competitionJob(7)))

	for _, childType := range []JobType{JobTeams, JobPlayers, JobScheduledMatches, JobResultsMatches} {
		children := queue.byType(childType)
		require.Len(t, children, 1, "expected one %s child", childType)
		require.Equal(t, 7, children[0].CompetitionID)
	}
	require.Len(t, repo.competitions, 1)
}

func TestWorker_AbsentCompetitionEndsCascade(t *testing.T) {
	w, queue := newTestWorker(&fakeCatalog{competitions: map[int]competition.Competition{}}, nil, WorkerConfig{})

	require.NoError(t, w.Handle(context.Background(), competitionJob(99)))
	require.Empty(t, queue.jobs)
}

func TestWorker_TeamsFanOutPerTeam(t *testing.T) {
	catalog := &fakeCatalog{
		competitions: map[int]competition.Competition{7: {ID: 7, URL: "https://panel.volleystation.com/website/7/"}},
		teams:        []team.Team{{ID: "12-3", Name: "Skra"}, {ID: "9-1", Name: "Resovia"}},
	}
	repo := newFakeRepo()
	w, queue := newTestWorker(catalog, repo, WorkerConfig{})

	job := NewJob(JobTeams)
	job.CompetitionID = 7
	require.NoError(t, w.Handle(context.Background(), job))

	children := queue.byType(JobTeam)
	require.Len(t, children, 2)
	require.Equal(t, "12-3", children[0].TeamID)
	require.Equal(t, "9-1", children[1].TeamID)
	require.Len(t, repo.teams[7], 2)
}

func TestWorker_PlayersFanOutPerPlayer(t *testing.T) {
	catalog := &fakeCatalog{
		competitions: map[int]competition.Competition{7: {ID: 7, URL: "https://panel.volleystation.com/website/7/"}},
		players:      []player.Player{{ID: 4, Name: "Ivan Petrov"}},
	}
	w, queue := newTestWorker(catalog, nil, WorkerConfig{})

	job := NewJob(JobPlayers)
	job.CompetitionID = 7
	require.NoError(t, w.Handle(context.Background(), job))

	children := queue.byType(JobPlayer)
	require.Len(t, children, 1)
	require.Equal(t, 4, children[0].PlayerID)
}

func TestWorker_ScheduleTunesFirstTodayMatchToLiveCadence(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{
		competitions: map[int]competition.Competition{7: {ID: 7, URL: "https://panel.volleystation.com/website/7/"}},
		matches: map[match.ListType][]match.ListEntry{
			match.ListTypeSchedule: {
				{ID: 100, Date: now.Add(26 * time.Hour)},
				{ID: 101, Date: now.Add(2 * time.Hour)},
				{ID: 102, Date: now.Add(5 * time.Hour)},
			},
		},
	}
	w, queue := newTestWorker(catalog, nil, WorkerConfig{now: func() time.Time { return now }})

	job := NewJob(JobScheduledMatches)
	job.CompetitionID = 7
	require.NoError(t, w.Handle(context.Background(), job))

	children := queue.byType(JobMatch)
	require.Len(t, children, 3)
	require.Equal(t, cache.ClassScheduledMatch, children[0].Class)
	require.Equal(t, cache.ClassOnlineMatch, children[1].Class, "first same-day entry runs live")
	require.Equal(t, cache.ClassScheduledMatch, children[2].Class, "only one entry gets the live cadence")
}

func TestWorker_ResultsTuneToCompletedCadence(t *testing.T) {
	catalog := &fakeCatalog{
		competitions: map[int]competition.Competition{7: {ID: 7, URL: "https://panel.volleystation.com/website/7/"}},
		matches: map[match.ListType][]match.ListEntry{
			match.ListTypeResults: {{ID: 200}, {ID: 201}},
		},
	}
	w, queue := newTestWorker(catalog, nil, WorkerConfig{})

	job := NewJob(JobResultsMatches)
	job.CompetitionID = 7
	require.NoError(t, w.Handle(context.Background(), job))

	children := queue.byType(JobMatch)
	require.Len(t, children, 2)
	for _, child := range children {
		require.Equal(t, cache.ClassCompletedMatch, child.Class)
	}
}

func TestWorker_LeafJobsForceReads(t *testing.T) {
	catalog := &fakeCatalog{
		competitions: map[int]competition.Competition{7: {ID: 7, URL: "https://panel.volleystation.com/website/7/"}},
	}
	w, _ := newTestWorker(catalog, nil, WorkerConfig{})
	ctx := context.Background()

	teamJob := NewJob(JobTeam)
	teamJob.CompetitionID = 7
	teamJob.TeamID = "12-3"
	require.NoError(t, w.Handle(ctx, teamJob))

	playerJob := NewJob(JobPlayer)
	playerJob.CompetitionID = 7
	playerJob.PlayerID = 4
	require.NoError(t, w.Handle(ctx, playerJob))

	require.NoError(t, w.Handle(ctx, matchJob(101, cache.ClassOnlineMatch)))

	require.Equal(t, []string{"12-3"}, catalog.teamReads)
	require.Equal(t, []int{4}, catalog.playerReads)
	require.Equal(t, []int{101}, catalog.matchReads)
}

func TestWorker_ProbeFindsCompetitions(t *testing.T) {
	catalog := &fakeCatalog{competitions: map[int]competition.Competition{
		2: {ID: 2, URL: "https://panel.volleystation.com/website/2/"},
		4: {ID: 4, URL: "https://panel.volleystation.com/website/4/"},
	}}
	w, queue := newTestWorker(catalog, nil, WorkerConfig{ProbeMaxID: 5})

	require.NoError(t, w.Handle(context.Background(), NewJob(JobCompetitionProbe)))

	children := queue.byType(JobCompetition)
	require.Len(t, children, 2)
	ids := []int{children[0].CompetitionID, children[1].CompetitionID}
	require.ElementsMatch(t, []int{2, 4}, ids)
}

func TestWorker_ProbeReadsCarryFiniteFetchBudget(t *testing.T) {
	catalog := &fakeCatalog{competitions: map[int]competition.Competition{
		2: {ID: 2, URL: "https://panel.volleystation.com/website/2/"},
	}}
	w, _ := newTestWorker(catalog, nil, WorkerConfig{ProbeMaxID: 3, ProbeFetchAttempts: 2})

	require.NoError(t, w.Handle(context.Background(), NewJob(JobCompetitionProbe)))

	require.Len(t, catalog.fetchBudgets, 3)
	for _, budget := range catalog.fetchBudgets {
		require.Equal(t, 2, budget)
	}

	// A refresh job for the same competition keeps the fetcher unbounded.
	catalog.fetchBudgets = nil
	job := NewJob(JobCompetition)
	job.CompetitionID = 2
	require.NoError(t, w.Handle(context.Background(), job))
	require.Empty(t, catalog.fetchBudgets)
}

func TestWorker_RunSeedsKnownCompetitionsAndProbe(t *testing.T) {
	catalog := &fakeCatalog{competitions: map[int]competition.Competition{
		2: {ID: 2, URL: "https://panel.volleystation.com/website/2/"},
		4: {ID: 4, URL: "https://panel.volleystation.com/website/4/"},
	}}
	w, queue := newTestWorker(catalog, nil, WorkerConfig{})

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, queue.byType(JobCompetition), 2)
	require.Len(t, queue.byType(JobCompetitionProbe), 1)
}

func TestWorker_UnknownJobTypeErrors(t *testing.T) {
	w, _ := newTestWorker(&fakeCatalog{}, nil, WorkerConfig{})

	err := w.Handle(context.Background(), Job{Type: JobType("mystery")})
	require.Error(t, err)
}
