package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/platform/logging"
)

func matchJob(matchID int, class cache.EntityClass) Job {
	job := NewJob(JobMatch)
	job.MatchID = matchID
	job.Class = class
	return job
}

func competitionJob(id int) Job {
	job := NewJob(JobCompetition)
	job.CompetitionID = id
	return job
}

func TestScheduler_RunsByPriority(t *testing.T) {
	var (
		mu    sync.Mutex
		order []JobType
	)
	done := make(chan struct{}, 3)
	s := NewScheduler(Config{Workers: 1, Logger: logging.NewNop()}, func(_ context.Context, job Job) error {
		mu.Lock()
		order = append(order, job.Type)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	defer s.Close()

	// Enqueue before Start so the heap decides the execution order.
	teams := NewJob(JobTeams)
	teams.CompetitionID = 7
	_, err := s.Enqueue(teams)
	require.NoError(t, err)
	_, err = s.Enqueue(matchJob(1, cache.ClassOnlineMatch))
	require.NoError(t, err)
	_, err = s.Enqueue(competitionJob(7))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []JobType{JobMatch, JobCompetition, JobTeams}, order)
}

func TestScheduler_DedupWindowSuppressesDuplicates(t *testing.T) {
	s := NewScheduler(Config{Logger: logging.NewNop()}, func(context.Context, Job) error { return nil })
	defer s.Close()

	accepted, err := s.Enqueue(competitionJob(7))
	require.NoError(t, err)
	require.True(t, accepted)

	// Same logical job inside the window, different instance id.
	accepted, err = s.Enqueue(competitionJob(7))
	require.NoError(t, err)
	require.False(t, accepted)

	// A different entity is unaffected.
	accepted, err = s.Enqueue(competitionJob(8))
	require.NoError(t, err)
	require.True(t, accepted)

	require.Equal(t, 2, s.Len())
}

func TestScheduler_DedupClearsOnceJobStarts(t *testing.T) {
	started := make(chan struct{}, 2)
	s := NewScheduler(Config{Workers: 1, Logger: logging.NewNop()}, func(context.Context, Job) error {
		started <- struct{}{}
		return nil
	})
	defer s.Close()
	require.NoError(t, s.Start())

	_, err := s.Enqueue(competitionJob(7))
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	accepted, err := s.Enqueue(competitionJob(7))
	require.NoError(t, err)
	require.True(t, accepted, "dedup must release once the held job runs")
}

func TestScheduler_RetriesOnFixedDelay(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	s := NewScheduler(Config{
		Workers:       1,
		RetryAttempts: 5,
		RetryDelay:    10 * time.Millisecond,
		Logger:        logging.NewNop(),
	}, func(context.Context, Job) error {
		if calls.Add(1) < 3 {
			return crerr.New("upstream hiccup")
		}
		close(done)
		return nil
	})
	defer s.Close()
	require.NoError(t, s.Start())

	_, err := s.Enqueue(matchJob(9, cache.ClassScheduledMatch))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never recovered")
	}
	require.Equal(t, int32(3), calls.Load())
}

func TestScheduler_DropsJobAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(Config{
		Workers:       1,
		RetryAttempts: 2,
		RetryDelay:    5 * time.Millisecond,
		Logger:        logging.NewNop(),
	}, func(context.Context, Job) error {
		calls.Add(1)
		return crerr.New("always failing")
	})
	defer s.Close()
	require.NoError(t, s.Start())

	_, err := s.Enqueue(matchJob(9, cache.ClassScheduledMatch))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(2), calls.Load(), "no attempts past the budget")
}

func TestScheduler_RepeatReenqueues(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out a live-match repeat interval")
	}
	var calls atomic.Int32
	s := NewScheduler(Config{Workers: 1, Logger: logging.NewNop()}, func(context.Context, Job) error {
		calls.Add(1)
		return nil
	})
	defer s.Close()
	require.NoError(t, s.Start())

	// Live matches repeat every 2 to 4 seconds.
	_, err := s.Enqueue(matchJob(5, cache.ClassOnlineMatch))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 6*time.Second, 50*time.Millisecond)
}

func TestScheduler_CloseRefusesEnqueue(t *testing.T) {
	s := NewScheduler(Config{Logger: logging.NewNop()}, func(context.Context, Job) error { return nil })
	require.NoError(t, s.Start())
	s.Close()
	s.Close() // idempotent

	_, err := s.Enqueue(competitionJob(7))
	require.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestJob_DedupIDs(t *testing.T) {
	team := NewJob(JobTeam)
	team.CompetitionID = 7
	team.TeamID = "12-3"
	require.Equal(t, "team:7:12-3", team.DedupID())

	player := NewJob(JobPlayer)
	player.CompetitionID = 7
	player.PlayerID = 42
	require.Equal(t, "player:7:42", player.DedupID())

	m := matchJob(101, cache.ClassOnlineMatch)
	require.Equal(t, "match:101", m.DedupID())

	require.Equal(t, "competition_probe", NewJob(JobCompetitionProbe).DedupID())
}

func TestJob_PayloadRoundTrip(t *testing.T) {
	job := matchJob(101, cache.ClassOnlineMatch)
	payload, err := encodeJob(job)
	require.NoError(t, err)

	decoded, err := decodeJob(payload)
	require.NoError(t, err)
	require.Equal(t, job, decoded)
	require.Equal(t, cache.Priorities[cache.ClassOnlineMatch], decoded.priority())
}

func TestJob_MatchWithoutClassUsesUpcomingCadence(t *testing.T) {
	job := NewJob(JobMatch)
	job.MatchID = 101
	require.Equal(t, cache.ClassScheduledMatch, job.class())

	s := NewScheduler(Config{Logger: logging.NewNop()}, func(context.Context, Job) error { return nil })
	defer s.Close()

	accepted, err := s.Enqueue(job)
	require.NoError(t, err)
	require.True(t, accepted)
}
