package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/platform/logging"
)

// ErrSchedulerClosed is returned by Enqueue after Close.
var ErrSchedulerClosed = fmt.Errorf("scheduler closed")

const (
	defaultWorkers       = 3
	defaultRetryAttempts = 30
	defaultRetryDelay    = 5 * time.Second
)

// Handler executes one decoded job.
type Handler func(ctx context.Context, job Job) error

type Config struct {
	// Workers bounds concurrent job execution.
	Workers int
	// RetryAttempts is how many times a failing job re-runs before it is
	// dropped. RetryDelay is the fixed pause between attempts.
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *logging.Logger
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// queueItem is one serialized queue entry with its routing metadata. The
// payload stays encoded while queued and is decoded at execution time.
type queueItem struct {
	payload  []byte
	priority int
	seq      uint64
	attempt  int
	dedupID  string
	class    cache.EntityClass
}

// jobHeap orders by priority ascending, then by enqueue order.
type jobHeap []*queueItem

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler is an in-process priority job queue. Jobs carry a class-derived
// priority, duplicates inside a dedup window are suppressed, every started
// job re-arms itself at its class repeat interval, and failures retry on a
// fixed delay. A small worker pool bounds concurrent execution.
type Scheduler struct {
	cfg     Config
	handler Handler
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	queue  jobHeap
	dedup  map[string]time.Time
	timers map[*time.Timer]struct{}
	seq    uint64
	closed bool

	pool       *ants.Pool
	dispatcher sync.WaitGroup
	running    sync.WaitGroup
}

func NewScheduler(cfg Config, handler Handler) *Scheduler {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:     cfg,
		handler: handler,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		dedup:   make(map[string]time.Time),
		timers:  make(map[*time.Timer]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start spins up the worker pool and dispatcher. It must be called once
// before Enqueue.
func (s *Scheduler) Start() error {
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool
	s.dispatcher.Add(1)
	go s.dispatch()
	return nil
}

// Enqueue adds a job unless an entry with the same DedupID is already inside
// its dedup window. Returns whether the job was accepted.
func (s *Scheduler) Enqueue(job Job) (bool, error) {
	payload, err := encodeJob(job)
	if err != nil {
		return false, fmt.Errorf("encode job %s: %w", job.Type, err)
	}

	dedupID := job.DedupID()
	class := job.class()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSchedulerClosed
	}

	now := time.Now()
	if until, held := s.dedup[dedupID]; held && now.Before(until) {
		s.log.Debug("job suppressed by dedup window", "dedup_id", dedupID)
		return false, nil
	}
	s.dedup[dedupID] = now.Add(cache.Buckets[class].Deduplication())

	s.pushLocked(&queueItem{
		payload:  payload,
		priority: job.priority(),
		dedupID:  dedupID,
		class:    class,
	})
	return true, nil
}

// pushLocked appends an item and wakes the dispatcher. Caller holds s.mu.
func (s *Scheduler) pushLocked(item *queueItem) {
	s.seq++
	item.seq = s.seq
	heap.Push(&s.queue, item)
	s.cond.Signal()
}

// Len reports the number of queued, not yet dispatched jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close stops the dispatcher, cancels running jobs and discards the queue.
// Safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	s.dispatcher.Wait()
	s.running.Wait()
	if s.pool != nil {
		s.pool.Release()
	}
}

func (s *Scheduler) dispatch() {
	defer s.dispatcher.Done()
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		item := heap.Pop(&s.queue).(*queueItem)
		// The dedup window protects queued entries. Once the job starts,
		// a fresh enqueue for the same entity is legitimate again.
		delete(s.dedup, item.dedupID)
		s.running.Add(1)
		s.mu.Unlock()

		if err := s.pool.Submit(func() {
			defer s.running.Done()
			s.execute(item)
		}); err != nil {
			s.running.Done()
			s.log.Error("submit job to worker pool", "error", err)
			return
		}
	}
}

func (s *Scheduler) execute(item *queueItem) {
	job, err := decodeJob(item.payload)
	if err != nil {
		s.log.Error("drop undecodable job payload", "error", err)
		return
	}

	// Re-arm on start, not on completion, so a wedged job cannot stall
	// its own cadence.
	if item.attempt == 0 {
		s.armRepeat(job, item.class)
	}

	if err := s.handler(s.ctx, job); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		attempt := item.attempt + 1
		s.log.Warn("job failed",
			"job_id", job.ID,
			"type", string(job.Type),
			"attempt", attempt,
			"error", err,
		)
		if attempt < s.cfg.RetryAttempts {
			s.afterFunc(s.cfg.RetryDelay, func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				if s.closed {
					return
				}
				item.attempt = attempt
				s.pushLocked(item)
			})
		} else {
			s.log.Error("job dropped after retry budget",
				"job_id", job.ID,
				"type", string(job.Type),
				"attempts", attempt,
			)
		}
	}
}

// armRepeat schedules the next run of the same logical job.
func (s *Scheduler) armRepeat(job Job, class cache.EntityClass) {
	s.afterFunc(cache.Buckets[class].Repeat(), func() {
		renewed := NewJob(job.Type)
		renewed.CompetitionID = job.CompetitionID
		renewed.TeamID = job.TeamID
		renewed.PlayerID = job.PlayerID
		renewed.MatchID = job.MatchID
		renewed.Class = job.Class
		if _, err := s.Enqueue(renewed); err != nil && err != ErrSchedulerClosed {
			s.log.Warn("repeat enqueue failed", "type", string(renewed.Type), "error", err)
		}
	})
}

// afterFunc runs fn after d unless the scheduler closes first.
func (s *Scheduler) afterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers != nil {
			delete(s.timers, timer)
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		fn()
	})
	s.timers[timer] = struct{}{}
}
