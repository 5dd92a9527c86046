package server

import (
	"sync"
	"testing"
)

func TestConnectionLimiterTryAcquire(t *testing.T) {
	t.Run("succeeds up to max", func(t *testing.T) {
		limiter := NewConnectionLimiter(3)

		for i := 0; i < 3; i++ {
			if !limiter.TryAcquire() {
				t.Errorf("TryAcquire %d should succeed", i+1)
			}
		}
		if limiter.Current() != 3 {
			t.Errorf("Current() = %d, want 3", limiter.Current())
		}
	})

	t.Run("fails at capacity", func(t *testing.T) {
		limiter := NewConnectionLimiter(2)

		limiter.TryAcquire()
		limiter.TryAcquire()

		if limiter.TryAcquire() {
			t.Error("TryAcquire should fail at capacity")
		}
	})

	t.Run("release frees a slot", func(t *testing.T) {
		limiter := NewConnectionLimiter(1)

		if !limiter.TryAcquire() {
			t.Fatal("first TryAcquire should succeed")
		}
		if limiter.TryAcquire() {
			t.Fatal("second TryAcquire should fail")
		}

		limiter.Release()

		if !limiter.TryAcquire() {
			t.Error("TryAcquire after Release should succeed")
		}
	})
}

func TestConnectionLimiterConcurrent(t *testing.T) {
	limiter := NewConnectionLimiter(100)
	var wg sync.WaitGroup

	successCount := make(chan int, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire() {
				successCount <- 1
			}
		}()
	}

	wg.Wait()
	close(successCount)

	count := 0
	for range successCount {
		count++
	}

	if count != 100 {
		t.Errorf("successful acquisitions = %d, want 100", count)
	}
	if limiter.Current() != 100 {
		t.Errorf("Current() = %d, want 100", limiter.Current())
	}
}

func TestConnectionLimiterAcquireReleaseCycles(t *testing.T) {
	limiter := NewConnectionLimiter(10)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if limiter.TryAcquire() {
					limiter.Release()
				}
			}
		}()
	}

	wg.Wait()

	if limiter.Current() != 0 {
		t.Errorf("Current() after all releases = %d, want 0", limiter.Current())
	}
}
