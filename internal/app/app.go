package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/config"
	"github.com/volleystats/parser/internal/domain/competition"
	"github.com/volleystats/parser/internal/domain/player"
	"github.com/volleystats/parser/internal/domain/team"
	"github.com/volleystats/parser/internal/infrastructure/repository/memory"
	"github.com/volleystats/parser/internal/infrastructure/repository/postgres"
	"github.com/volleystats/parser/internal/livefeed"
	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/platform/resilience"
	"github.com/volleystats/parser/internal/scheduler"
	"github.com/volleystats/parser/internal/scraper"
	"github.com/volleystats/parser/internal/scraper/volleystation"
	"github.com/volleystats/parser/internal/usecase"
)

// App bundles the wired components of a parser process.
type App struct {
	Catalog   *usecase.CatalogService
	Live      *livefeed.Client
	Scheduler *scheduler.Scheduler
	Worker    *scheduler.Worker

	redis  *redis.Client
	logger *logging.Logger
}

// New wires every component from configuration. Redis must be reachable; the
// monitoring database is optional.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := cache.NewRedisStore(redisClient, logger)
	if err := store.Ping(ctx); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		HTTPClient:  &http.Client{Timeout: cfg.FetchTimeout},
		MaxAttempts: cfg.FetchMaxAttempts,
		Logger:      logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FetchCircuitEnabled,
			FailureThreshold: cfg.FetchCircuitFailures,
			OpenTimeout:      cfg.FetchCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FetchCircuitHalfOpenReq,
		},
	})
	siteScraper := volleystation.NewScraper(fetcher, volleystation.Config{
		BaseURL: cfg.SiteBaseURL,
		Logger:  logger,
	})

	live := livefeed.NewClient(livefeed.Config{
		URL:            cfg.LiveURL,
		Path:           cfg.LiveSocketPath,
		Token:          cfg.LiveToken,
		Origin:         cfg.LiveOrigin,
		RequestTimeout: cfg.LiveRequestTimeout,
		Logger:         logger,
	})

	catalog := usecase.NewCatalogService(store, siteScraper, live, logger)

	repos, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		live.Close()
		_ = redisClient.Close()
		return nil, err
	}

	worker := scheduler.NewWorker(catalog, repos, scheduler.WorkerConfig{
		ProbeMaxID:         cfg.ProbeMaxID,
		ProbeFetchAttempts: cfg.ProbeFetchAttempts,
		Logger:             logger,
	})
	sched := scheduler.NewScheduler(scheduler.Config{
		Workers:       cfg.Workers,
		RetryAttempts: cfg.JobRetryAttempts,
		RetryDelay:    cfg.JobRetryDelay,
		Logger:        logger,
	}, worker.Handle)
	worker.Attach(sched)

	return &App{
		Catalog:   catalog,
		Live:      live,
		Scheduler: sched,
		Worker:    worker,
		redis:     redisClient,
		logger:    logger,
	}, nil
}

// Start launches the queue and seeds the bootstrap jobs.
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	return a.Worker.Run(ctx)
}

// Close shuts components down in dependency order.
func (a *App) Close() {
	a.Scheduler.Close()
	a.Live.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("close redis", "error", err)
	}
}

// snapshotRepos adapts the three domain repositories to the scheduler's
// persistence hook.
type snapshotRepos struct {
	competitions competition.Repository
	teams        team.Repository
	players      player.Repository
}

func (r *snapshotRepos) SaveCompetition(ctx context.Context, comp competition.Competition) error {
	return r.competitions.Upsert(ctx, comp)
}

func (r *snapshotRepos) SaveTeams(ctx context.Context, competitionID int, teams []team.Team) error {
	for _, t := range teams {
		if err := r.teams.Upsert(ctx, competitionID, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *snapshotRepos) SavePlayers(ctx context.Context, competitionID int, players []player.Player) error {
	for _, p := range players {
		if err := r.players.Upsert(ctx, competitionID, p); err != nil {
			return err
		}
	}
	return nil
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *logging.Logger) (scheduler.SnapshotWriter, error) {
	if !cfg.DBEnabled {
		logger.Info("monitoring db disabled, using in-memory repositories")
		return &snapshotRepos{
			competitions: memory.NewCompetitionRepository(),
			teams:        memory.NewTeamRepository(),
			players:      memory.NewPlayerRepository(),
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DBURL)
	if err != nil {
		return nil, err
	}
	return &snapshotRepos{
		competitions: postgres.NewCompetitionRepository(db),
		teams:        postgres.NewTeamRepository(db),
		players:      postgres.NewPlayerRepository(db),
	}, nil
}
