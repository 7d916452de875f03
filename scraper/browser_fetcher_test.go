package scraper

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCloseOnce_ConcurrentCallsCloseOnce(t *testing.T) {
	var closes atomic.Int32
	closeFn := closeOnce(func() error {
		closes.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeFn()
		}()
	}
	wg.Wait()
	closeFn()

	if n := closes.Load(); n != 1 {
		t.Fatalf("expected one close, got %d", n)
	}
}
