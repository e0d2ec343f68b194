package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/live"
	"github.com/volleystats/parser/internal/domain/match"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/team"
	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/scraper"
)

// Catalog is the read side the worker refreshes through. Every read is
// cache-aside, so running a job right after the entity's TTL lapsed is what
// keeps the cache warm.
type Catalog interface {
	Competitions(ctx context.Context) ([]competition.Competition, error)
	Competition(ctx context.Context, id int) (*competition.Competition, error)
	Teams(ctx context.Context, comp competition.Competition) ([]team.Team, error)
	Team(ctx context.Context, comp competition.Competition, teamID string) (*team.Roster, error)
	Players(ctx context.Context, comp competition.Competition) ([]player.Player, error)
	Player(ctx context.Context, comp competition.Competition, playerID int) (*player.Profile, error)
	Matches(ctx context.Context, comp competition.Competition, listType match.ListType) ([]match.ListEntry, error)
	Match(ctx context.Context, matchID int) (*live.MatchDetail, error)
}

// SnapshotWriter persists refreshed entities. Optional; a nil writer skips
// persistence and the worker only maintains the cache.
type SnapshotWriter interface {
	SaveCompetition(ctx context.Context, comp competition.Competition) error
	SaveTeams(ctx context.Context, competitionID int, teams []team.Team) error
	SavePlayers(ctx context.Context, competitionID int, players []player.Player) error
}

// Enqueuer is the slice of the scheduler the worker needs for fan-out.
type Enqueuer interface {
	Enqueue(job Job) (bool, error)
}

type WorkerConfig struct {
	// ProbeMaxID bounds the competition id sweep of probe jobs.
	ProbeMaxID int
	// ProbeFetchAttempts is the finite per-page retry budget probe reads
	// carry. Refresh jobs keep the fetcher's own budget.
	ProbeFetchAttempts int
	Logger             *logging.Logger
	// now is injectable for tests.
	now func() time.Time
}

// Worker turns queued jobs into catalog reads and cascade enqueues. One
// competition job fans out into team, player and match list jobs; each list
// job fans out into per-entity jobs; leaf jobs force a single read.
type Worker struct {
	catalog       Catalog
	repo          SnapshotWriter
	queue         Enqueuer
	probe         int
	probeAttempts int
	log           *logging.Logger
	now           func() time.Time
}

func NewWorker(catalog Catalog, repo SnapshotWriter, cfg WorkerConfig) *Worker {
	if cfg.ProbeMaxID <= 0 {
		cfg.ProbeMaxID = 50
	}
	if cfg.ProbeFetchAttempts <= 0 {
		cfg.ProbeFetchAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Worker{
		catalog:       catalog,
		repo:          repo,
		probe:         cfg.ProbeMaxID,
		probeAttempts: cfg.ProbeFetchAttempts,
		log:           cfg.Logger,
		now:           cfg.now,
	}
}

// Attach wires the queue the worker fans out into. Must be called before the
// scheduler starts dispatching.
func (w *Worker) Attach(queue Enqueuer) { w.queue = queue }

// Run seeds the queue: one competition job per known competition, plus a
// probe sweep that discovers competitions the cache has never seen.
func (w *Worker) Run(ctx context.Context) error {
	comps, err := w.catalog.Competitions(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap competitions: %w", err)
	}
	for _, comp := range comps {
		job := NewJob(JobCompetition)
		job.CompetitionID = comp.ID
		w.enqueue(job)
	}
	w.enqueue(NewJob(JobCompetitionProbe))
	w.log.Info("scheduler bootstrapped", "known_competitions", len(comps))
	return nil
}

// Handle executes one job. It is the scheduler's Handler.
func (w *Worker) Handle(ctx context.Context, job Job) error {
	switch job.Type {
	case JobCompetitionProbe:
		return w.handleProbe(ctx)
	case JobCompetition:
		return w.handleCompetition(ctx, job)
	case JobTeams:
		return w.handleTeams(ctx, job)
	case JobPlayers:
		return w.handlePlayers(ctx, job)
	case JobScheduledMatches, JobResultsMatches:
		return w.handleMatchList(ctx, job)
	case JobTeam:
		return w.handleTeam(ctx, job)
	case JobPlayer:
		return w.handlePlayer(ctx, job)
	case JobMatch:
		_, err := w.catalog.Match(ctx, job.MatchID)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// handleProbe sweeps competition ids concurrently and enqueues a refresh for
// every competition that exists. Absent ids end up negatively cached, so the
// next sweep skips their upstream probes. Probe reads carry a finite fetch
// budget: an id that keeps failing must not pin the sweep until the next
// probe stacks on top of it.
func (w *Worker) handleProbe(ctx context.Context) error {
	ctx = scraper.WithAttemptBudget(ctx, w.probeAttempts)
	var (
		mu    sync.Mutex
		found []int
	)
	var wg conc.WaitGroup
	for id := 1; id <= w.probe; id++ {
		id := id
		wg.Go(func() {
			comp, err := w.catalog.Competition(ctx, id)
			if err != nil {
				w.log.Warn("competition probe failed", "competition_id", id, "error", err)
				return
			}
			if comp == nil {
				return
			}
			mu.Lock()
			found = append(found, comp.ID)
			mu.Unlock()
		})
	}
	wg.Wait()

	for _, id := range found {
		job := NewJob(JobCompetition)
		job.CompetitionID = id
		w.enqueue(job)
	}
	return nil
}

// handleCompetition refreshes the competition entry and fans out all four
// descendant refreshes.
func (w *Worker) handleCompetition(ctx context.Context, job Job) error {
	comp, err := w.catalog.Competition(ctx, job.CompetitionID)
	if err != nil {
		return err
	}
	if comp == nil {
		w.log.Info("competition absent, cascade skipped", "competition_id", job.CompetitionID)
		return nil
	}
	if w.repo != nil {
		if err := w.repo.SaveCompetition(ctx, *comp); err != nil {
			w.log.Warn("persist competition failed", "competition_id", comp.ID, "error", err)
		}
	}

	for _, childType := range []JobType{JobResultsMatches, JobScheduledMatches, JobPlayers, JobTeams} {
		child := NewJob(childType)
		child.CompetitionID = comp.ID
		w.enqueue(child)
	}
	return nil
}

func (w *Worker) handleTeams(ctx context.Context, job Job) error {
	comp, err := w.resolveCompetition(ctx, job.CompetitionID)
	if err != nil || comp == nil {
		return err
	}
	teams, err := w.catalog.Teams(ctx, *comp)
	if err != nil {
		return err
	}
	if w.repo != nil && len(teams) > 0 {
		if err := w.repo.SaveTeams(ctx, comp.ID, teams); err != nil {
			w.log.Warn("persist teams failed", "competition_id", comp.ID, "error", err)
		}
	}
	for _, t := range teams {
		child := NewJob(JobTeam)
		child.CompetitionID = comp.ID
		child.TeamID = t.ID
		w.enqueue(child)
	}
	return nil
}

func (w *Worker) handlePlayers(ctx context.Context, job Job) error {
	comp, err := w.resolveCompetition(ctx, job.CompetitionID)
	if err != nil || comp == nil {
		return err
	}
	players, err := w.catalog.Players(ctx, *comp)
	if err != nil {
		return err
	}
	if w.repo != nil && len(players) > 0 {
		if err := w.repo.SavePlayers(ctx, comp.ID, players); err != nil {
			w.log.Warn("persist players failed", "competition_id", comp.ID, "error", err)
		}
	}
	for _, p := range players {
		child := NewJob(JobPlayer)
		child.CompetitionID = comp.ID
		child.PlayerID = p.ID
		w.enqueue(child)
	}
	return nil
}

// handleMatchList refreshes one match list page and enqueues a per-match job
// for every entry. Results entries run on the finished-match cadence. On the
// schedule page the first entry kicking off today runs on the live cadence,
// the rest on the upcoming cadence.
func (w *Worker) handleMatchList(ctx context.Context, job Job) error {
	comp, err := w.resolveCompetition(ctx, job.CompetitionID)
	if err != nil || comp == nil {
		return err
	}
	entries, err := w.catalog.Matches(ctx, *comp, job.listType())
	if err != nil {
		return err
	}

	now := w.now()
	liveAssigned := false
	for _, entry := range entries {
		if !entry.Valid() {
			continue
		}
		child := NewJob(JobMatch)
		child.MatchID = entry.ID
		switch {
		case job.Type == JobResultsMatches:
			child.Class = cache.ClassCompletedMatch
		case !liveAssigned && entry.SameDay(now):
			child.Class = cache.ClassOnlineMatch
			liveAssigned = true
		default:
			child.Class = cache.ClassScheduledMatch
		}
		w.enqueue(child)
	}
	return nil
}

func (w *Worker) handleTeam(ctx context.Context, job Job) error {
	comp, err := w.resolveCompetition(ctx, job.CompetitionID)
	if err != nil || comp == nil {
		return err
	}
	_, err = w.catalog.Team(ctx, *comp, job.TeamID)
	return err
}

func (w *Worker) handlePlayer(ctx context.Context, job Job) error {
	comp, err := w.resolveCompetition(ctx, job.CompetitionID)
	if err != nil || comp == nil {
		return err
	}
	_, err = w.catalog.Player(ctx, *comp, job.PlayerID)
	return err
}

// resolveCompetition looks the parent competition up, normally from cache. A
// nil result means the competition vanished between cascade levels; the job
// logs and ends without error.
func (w *Worker) resolveCompetition(ctx context.Context, id int) (*competition.Competition, error) {
	comp, err := w.catalog.Competition(ctx, id)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		w.log.Info("parent competition no longer present", "competition_id", id)
	}
	return comp, nil
}

func (w *Worker) enqueue(job Job) {
	if w.queue == nil {
		return
	}
	accepted, err := w.queue.Enqueue(job)
	if err != nil {
		if err != ErrSchedulerClosed {
			w.log.Warn("enqueue failed", "type", string(job.Type), "error", err)
		}
		return
	}
	if !accepted {
		w.log.Debug("cascade job suppressed", "dedup_id", job.DedupID())
	}
}
