package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tesoreria/internal/core"
	"tesoreria/internal/ledger"
	"tesoreria/internal/storage/memory"
)

type fakeRetrier struct {
	mu      sync.Mutex
	dirty   bool
	gen     uint64
	err     error
	retries int
}

func (f *fakeRetrier) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

func (f *fakeRetrier) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeRetrier) Retry(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	if f.err != nil {
		return f.err
	}
	f.dirty = false
	return nil
}

func TestDefaultRetryProcessorConfig(t *testing.T) {
	config := DefaultRetryProcessorConfig()

	if config.Interval != 10*time.Second {
		t.Errorf("expected Interval 10s, got %v", config.Interval)
	}
	if config.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts 5, got %d", config.MaxAttempts)
	}
}

func TestRetryProcessorConfig_CustomValues(t *testing.T) {
	processor := NewRetryProcessor(nil, RetryProcessorConfig{Interval: 5 * time.Second, MaxAttempts: 2})

	if processor.config.Interval != 5*time.Second {
		t.Errorf("expected custom Interval 5s, got %v", processor.config.Interval)
	}
	if processor.config.MaxAttempts != 2 {
		t.Errorf("expected custom MaxAttempts 2, got %d", processor.config.MaxAttempts)
	}

	processor = NewRetryProcessor(nil, RetryProcessorConfig{})
	if processor.config != DefaultRetryProcessorConfig() {
		t.Errorf("zero config should fall back to defaults, got %+v", processor.config)
	}
}

func TestRetryProcessor_IsRunning(t *testing.T) {
	processor := NewRetryProcessor(&fakeRetrier{}, DefaultRetryProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestRetryProcessor_StartTwice(t *testing.T) {
	processor := NewRetryProcessor(&fakeRetrier{}, DefaultRetryProcessorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestRetryProcessor_StopNotRunning(t *testing.T) {
	processor := NewRetryProcessor(&fakeRetrier{}, DefaultRetryProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestRetryProcessor_ConcurrentStop(t *testing.T) {
	processor := NewRetryProcessor(&fakeRetrier{}, DefaultRetryProcessorConfig())
	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- processor.Stop(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Stop: %v", err)
		}
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}

	// A stopped processor can be started again
	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.attempt); got != tt.expected {
			t.Errorf("retryBackoff(%d) = %v, expected %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestRetryProcessor_ProcessOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("clean store is left alone", func(t *testing.T) {
		r := &fakeRetrier{}
		p := NewRetryProcessor(r, DefaultRetryProcessorConfig())
		if p.processOnce(ctx) || r.retries != 0 {
			t.Fatal("expected no retry when clean")
		}
	})

	t.Run("backs off between failures and gives up", func(t *testing.T) {
		r := &fakeRetrier{dirty: true, gen: 1, err: errors.New("disk full")}
		p := NewRetryProcessor(r, RetryProcessorConfig{Interval: time.Second, MaxAttempts: 3})
		p.now = func() time.Time { return now }

		if !p.processOnce(ctx) {
			t.Fatal("first retry should run")
		}
		// Still within the 1s backoff.
		if p.processOnce(ctx) {
			t.Fatal("retry should wait for the backoff")
		}

		now = now.Add(time.Second)
		p.processOnce(ctx)
		now = now.Add(2 * time.Second)
		p.processOnce(ctx)
		if r.retries != 3 || !p.exhausted {
			t.Fatalf("expected 3 retries then give up, got %d exhausted=%v", r.retries, p.exhausted)
		}

		now = now.Add(time.Hour)
		if p.processOnce(ctx) {
			t.Fatal("exhausted processor must wait for the next failed mutation")
		}

		// A new failed mutation starts the cycle again.
		r.mu.Lock()
		r.gen++
		r.err = nil
		r.mu.Unlock()
		if !p.processOnce(ctx) || r.Dirty() {
			t.Fatal("expected a successful retry after the new failure")
		}
		if p.attempts != 0 || p.exhausted {
			t.Errorf("state should reset after success, attempts=%d", p.attempts)
		}
	})
}

func TestRetryProcessor_HealsLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.Open(ctx, store)

	store.FailWith(errors.New("locked"))
	l.Add(ctx, core.NewMovement(core.Income, jan1, "sales", core.MoneyFromCents(500)))
	if !l.Reconciler().Dirty() {
		t.Fatal("ledger should be dirty after a failed write")
	}

	p := NewRetryProcessor(l.Reconciler(), DefaultRetryProcessorConfig())
	p.processOnce(ctx)
	if !l.Reconciler().Dirty() || p.attempts != 1 {
		t.Fatalf("retry against a failing store should keep it dirty")
	}

	store.FailWith(nil)
	p.nextAttempt = time.Time{}
	p.processOnce(ctx)
	if l.Reconciler().Dirty() || store.Len() != 1 {
		t.Fatalf("expected store healed, len=%d", store.Len())
	}
}
