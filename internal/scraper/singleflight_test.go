package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheWrapperSingleExecution(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	ctx := context.Background()

	var execCount int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := wrapper.DoScrape(ctx, "navbar", func() (string, error) {
				atomic.AddInt32(&execCount, 1)
				time.Sleep(100 * time.Millisecond)
				return "<html></html>", nil
			})
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if result != "<html></html>" {
				t.Errorf("Unexpected result %q", result)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&execCount); got != 1 {
		t.Errorf("Expected function to execute once, but executed %d times", got)
	}
}

func TestCacheWrapperDifferentKeys(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	ctx := context.Background()

	var execCount int32
	var wg sync.WaitGroup
	keys := []string{"01/c/c00001.htm", "01/c/c00002.htm", "02/c/c00001.htm"}

	for _, key := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := wrapper.DoScrape(ctx, k, func() (string, error) {
				atomic.AddInt32(&execCount, 1)
				time.Sleep(50 * time.Millisecond)
				return k, nil
			})
			if err != nil {
				t.Errorf("Unexpected error for key %s: %v", k, err)
			}
		}(key)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&execCount); got != int32(len(keys)) {
		t.Errorf("Expected %d executions, got %d", len(keys), got)
	}
}

func TestCacheWrapperError(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	expectedErr := errors.New("fetch failed")

	result, err := wrapper.DoScrape(context.Background(), "error-key", func() (string, error) {
		return "", expectedErr
	})

	if err != expectedErr {
		t.Errorf("Expected error %v, got %v", expectedErr, err)
	}
	if result != "" {
		t.Errorf("Expected empty result, got %q", result)
	}
}

func TestCacheWrapperContextCancellation(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wrapper.DoScrape(ctx, "cancelled-key", func() (string, error) {
		t.Error("Function should not execute when context is cancelled")
		return "", nil
	})

	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestCacheWrapperCallerTimeout(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := wrapper.DoScrape(ctx, "slow-key", func() (string, error) {
		<-release
		return "late", nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCacheWrapperForget(t *testing.T) {
	t.Parallel()
	wrapper := NewCacheWrapper()
	ctx := context.Background()

	var execCount int32
	key := "forget-key"

	if _, err := wrapper.DoScrape(ctx, key, func() (string, error) {
		atomic.AddInt32(&execCount, 1)
		return "first", nil
	}); err != nil {
		t.Fatalf("First execution failed: %v", err)
	}

	wrapper.Forget(key)

	if _, err := wrapper.DoScrape(ctx, key, func() (string, error) {
		atomic.AddInt32(&execCount, 1)
		return "second", nil
	}); err != nil {
		t.Fatalf("Second execution failed: %v", err)
	}

	if got := atomic.LoadInt32(&execCount); got != 2 {
		t.Errorf("Expected 2 executions after forget, got %d", got)
	}
}
