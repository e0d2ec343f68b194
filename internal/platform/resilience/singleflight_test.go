package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight[string]
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err, _ := g.Do("token-key", func() (string, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "ok", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
}

func TestSingleFlight_DoKeepMemoizesUntilForget(t *testing.T) {
	var g SingleFlight[int]
	var counter int32

	load := func() (int, error) {
		return int(atomic.AddInt32(&counter, 1)), nil
	}

	v, err, _ := g.DoKeep("conn", load)
	if err != nil || v != 1 {
		t.Fatalf("first call: v=%d err=%v", v, err)
	}

	v, err, shared := g.DoKeep("conn", load)
	if err != nil || v != 1 || !shared {
		t.Fatalf("memoized call: v=%d shared=%v err=%v", v, shared, err)
	}

	g.Forget("conn")

	v, err, _ = g.DoKeep("conn", load)
	if err != nil || v != 2 {
		t.Fatalf("call after forget: v=%d err=%v", v, err)
	}
}

func TestSingleFlight_DoKeepDropsFailedCall(t *testing.T) {
	var g SingleFlight[int]
	var counter int32

	fail := func() (int, error) {
		atomic.AddInt32(&counter, 1)
		return 0, errors.New("dial refused")
	}

	if _, err, _ := g.DoKeep("conn", fail); err == nil {
		t.Fatal("expected error from first call")
	}
	if _, err, _ := g.DoKeep("conn", fail); err == nil {
		t.Fatal("expected error from second call")
	}

	if got := atomic.LoadInt32(&counter); got != 2 {
		t.Fatalf("failed call was memoized, runs=%d", got)
	}
}
