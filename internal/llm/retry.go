package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RetryConfig holds retry configuration for backend calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-attempt timeout (default: 5m, local models are slow)

	// Circuit breaker settings
	CircuitBreakerEnabled bool          // Enable circuit breaker (default: true)
	FailureThreshold      int           // Failures before opening circuit (default: 5)
	SuccessThreshold      int           // Successes in half-open before closing (default: 1)
	OpenTimeout           time.Duration // How long to keep circuit open (default: 30s)

	MaxConcurrentCalls int     // Maximum concurrent calls (default: 2, 0 = unlimited)
	RequestsPerSecond  float64 // Pacing across attempts (default: 1, 0 = unlimited)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               5 * time.Minute,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      1,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    2,
		RequestsPerSecond:     1,
	}
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Too many failures, fail fast
	CircuitHalfOpen                     // Probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a backend that keeps failing.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
	}
}

// Allow returns ErrCircuitOpen while the circuit is open and the open
// timeout has not elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(CircuitClosed)
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure while probing reopens the circuit.
		cb.transition(CircuitOpen)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// must be called with lock held
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if to == CircuitClosed {
		cb.failureCount = 0
	}
	slog.Debug("Circuit breaker state transition",
		"from", from.String(),
		"to", to.String(),
		"failures", cb.failureCount)
}

// Retrier runs backend calls with exponential backoff, a circuit breaker,
// a concurrency limit and request pacing.
type Retrier struct {
	cfg     RetryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier from cfg.
func NewRetrier(cfg RetryConfig) *Retrier {
	r := &Retrier{cfg: cfg, sleep: sleepContext}
	if cfg.CircuitBreakerEnabled {
		r.breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout)
	}
	if cfg.MaxConcurrentCalls > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}
	if cfg.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return r
}

// Breaker returns the circuit breaker, or nil when disabled.
func (r *Retrier) Breaker() *CircuitBreaker {
	return r.breaker
}

// Do runs fn until it succeeds, fails with a non-retriable error, or the
// retry budget is spent.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer r.sem.Release(1)
	}

	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.breaker != nil {
			if err := r.breaker.Allow(); err != nil {
				slog.Warn("LLM call blocked by circuit breaker", "operation", operation)
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}

		attemptCtx := ctx
		cancel := func() {}
		if r.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			if attempt > 0 {
				slog.Info("LLM call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}
		lastErr = err

		// Auth and request errors don't count against the breaker.
		if !isRetriableError(err) {
			return err
		}
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		if attempt == r.cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: context canceled: %w", operation, ctx.Err())
		}

		slog.Warn("LLM call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.cfg.MaxRetries+1,
			"backoff", backoff,
			"error", err)

		if err := r.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.cfg.MaxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRetriableError reports whether err looks transient.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoAPIKey) {
		return false
	}

	// The SDKs wrap status codes in their error text.
	msg := strings.ToLower(err.Error())

	for _, s := range []string{"400", "401", "403", "404", "invalid api key", "unauthorized"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{
		"429", "rate limit",
		"500", "502", "503", "504", "529", "overloaded",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"connection refused", "connection reset", "timeout", "temporary failure", "eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
