package resilience

import "sync"

// SingleFlight deduplicates concurrent calls for the same key. Unlike a
// classic flight group, completed calls can be pinned with DoKeep so later
// callers reuse the result until Forget drops it. The live feed uses this to
// memoize its connection handshake.
type SingleFlight[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

type call[T any] struct {
	wg   sync.WaitGroup
	val  T
	err  error
	keep bool
}

// Do runs fn once per key among concurrent callers. The boolean reports
// whether the result was shared from another caller's execution.
func (g *SingleFlight[T]) Do(key string, fn func() (T, error)) (T, error, bool) {
	return g.do(key, fn, false)
}

// DoKeep behaves like Do but retains the result after completion. Successive
// callers get the memoized value without re-running fn until Forget is
// called. A failed call is never retained.
func (g *SingleFlight[T]) DoKeep(key string, fn func() (T, error)) (T, error, bool) {
	return g.do(key, fn, true)
}

func (g *SingleFlight[T]) do(key string, fn func() (T, error), keep bool) (T, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[T])
	}

	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := &call[T]{keep: keep}
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	c.wg.Done()

	g.mu.Lock()
	if !c.keep || c.err != nil {
		delete(g.calls, key)
	}
	g.mu.Unlock()

	return c.val, c.err, false
}

// Forget drops a pinned result so the next Do runs fn again.
func (g *SingleFlight[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}
