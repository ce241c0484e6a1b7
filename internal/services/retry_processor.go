package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Retrier is the part of the ledger reconciler the processor drives.
type Retrier interface {
	Dirty() bool
	Generation() uint64
	Retry(ctx context.Context) error
}

// RetryProcessorConfig holds configuration for the retry processor
type RetryProcessorConfig struct {
	// Interval is how often to check whether the store lags behind (default: 10s)
	Interval time.Duration

	// MaxAttempts is how many failed retries are made before giving up until
	// the next failed mutation (default: 5)
	MaxAttempts int
}

// DefaultRetryProcessorConfig returns sensible defaults
func DefaultRetryProcessorConfig() RetryProcessorConfig {
	return RetryProcessorConfig{
		Interval:    10 * time.Second,
		MaxAttempts: 5,
	}
}

const maxRetryBackoff = 30 * time.Second

// RetryProcessor re-applies ledger state the store failed to persist.
type RetryProcessor struct {
	retrier Retrier
	config  RetryProcessorConfig
	now     func() time.Time

	// Retry bookkeeping, only touched by the loop goroutine
	attempts     int
	nextAttempt  time.Time
	exhausted    bool
	exhaustedGen uint64

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopping bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRetryProcessor creates a new retry processor
func NewRetryProcessor(retrier Retrier, config RetryProcessorConfig) *RetryProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRetryProcessorConfig().Interval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryProcessorConfig().MaxAttempts
	}
	return &RetryProcessor{
		retrier: retrier,
		config:  config,
		now:     time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *RetryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("retry processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Retry processor started",
		"component", "ledger",
		"interval", p.config.Interval,
		"max_attempts", p.config.MaxAttempts)

	return nil
}

// Stop gracefully stops the processor and waits for completion. Concurrent
// calls all wait for the same loop to exit.
func (p *RetryProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	if !p.stopping {
		p.stopping = true
		close(p.stopCh)
	}
	done := p.doneCh
	p.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Retry processor stopped gracefully", "component", "ledger")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Retry processor stop timed out", "component", "ledger")
		return ctx.Err()
	}

	p.mu.Lock()
	if p.doneCh == done {
		p.running = false
		p.stopping = false
	}
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RetryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RetryProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.processOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processOnce(ctx)
		}
	}
}

// processOnce makes at most one retry. It reports whether a retry was made.
func (p *RetryProcessor) processOnce(ctx context.Context) bool {
	if !p.retrier.Dirty() {
		p.attempts = 0
		p.exhausted = false
		return false
	}

	gen := p.retrier.Generation()
	if p.exhausted {
		if gen == p.exhaustedGen {
			return false
		}
		// A new mutation failed since we gave up: start over.
		p.exhausted = false
		p.attempts = 0
		p.nextAttempt = time.Time{}
	}

	now := p.now()
	if now.Before(p.nextAttempt) {
		return false
	}

	if err := p.retrier.Retry(ctx); err != nil {
		p.attempts++
		if p.attempts >= p.config.MaxAttempts {
			p.exhausted = true
			p.exhaustedGen = gen
			slog.ErrorContext(ctx, "Giving up persisting ledger until the next change",
				"component", "ledger",
				"attempts", p.attempts,
				"error", err)
			return true
		}
		wait := retryBackoff(p.attempts - 1)
		p.nextAttempt = now.Add(wait)
		slog.WarnContext(ctx, "Ledger persistence retry failed",
			"component", "ledger",
			"attempt", p.attempts,
			"next_in", wait,
			"error", err)
		return true
	}

	slog.InfoContext(ctx, "Ledger persistence retry succeeded",
		"component", "ledger",
		"attempts", p.attempts+1)
	p.attempts = 0
	p.nextAttempt = time.Time{}
	return true
}

// retryBackoff returns 1s, 2s, 4s... capped at 30s.
func retryBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxRetryBackoff
	}
	d := time.Second << attempt
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}
