package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"compliance-backend/internal/shared/metrics"
	"compliance-backend/internal/shared/telemetry"
)

const (
	windowLength     = 60 * time.Second
	maxAdmitRetries  = 3
	backoffBase      = 2
	maxBackoff       = 60 * time.Second
	breakerThreshold = 10
	breakerCooldown  = 5 * time.Minute
)

// ErrRateLimited is returned when admission retries are exhausted.
var ErrRateLimited = errors.New("rate limit retries exhausted")

// ErrCircuitOpen is returned while the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Governor is process-wide admission control for outbound model calls: a
// sliding-window request/token budget, a consecutive-failure circuit breaker,
// and per-document duplicate-question suppression. It is the single point of
// contention shared by every concurrently-scheduled question task, so all
// state lives behind one mutex.
type Governor struct {
	requestsPerMinute int
	tokensPerMinute   int

	mu                  sync.Mutex
	windowStart         time.Time
	requestCount        int
	tokenCount          int
	consecutiveFailures int
	breakerOpen         bool
	breakerOpenedAt     time.Time
	processed           map[string]map[uint64]struct{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor constructs a Governor with the given per-minute ceilings.
func NewGovernor(requestsPerMinute, tokensPerMinute int) *Governor {
	g := &Governor{
		requestsPerMinute: requestsPerMinute,
		tokensPerMinute:   tokensPerMinute,
		processed:         make(map[string]map[uint64]struct{}),
		now:               time.Now,
	}
	g.windowStart = g.now()
	g.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g
}

// Admit blocks until the call fits the current window or retries run out.
// When the window is full it backs off for
// max(exponential_backoff(attempt), time remaining in the window), resets the
// window, and tries again, up to a bounded retry count.
func (g *Governor) Admit(ctx context.Context, estimatedTokens int) error {
	for attempt := 0; ; attempt++ {
		if err := g.checkBreaker(); err != nil {
			return err
		}

		g.mu.Lock()
		now := g.now()
		elapsed := now.Sub(g.windowStart)
		if elapsed >= windowLength {
			g.windowStart = now
			g.requestCount = 0
			g.tokenCount = 0
			elapsed = 0
		}

		if g.requestCount+1 <= g.requestsPerMinute && g.tokenCount+estimatedTokens <= g.tokensPerMinute {
			g.requestCount++
			g.tokenCount += estimatedTokens
			g.mu.Unlock()
			return nil
		}

		if attempt >= maxAdmitRetries {
			g.consecutiveFailures++
			g.mu.Unlock()
			return ErrRateLimited
		}

		backoff := backoffDelay(attempt)
		remaining := windowLength - elapsed
		wait := backoff
		if remaining > wait {
			wait = remaining
		}
		g.mu.Unlock()

		telemetry.Warn("ratelimit.backoff", map[string]any{
			"wait_seconds": wait.Seconds(),
			"attempt":      attempt + 1,
			"max_attempts": maxAdmitRetries,
		})
		metrics.IncLLMRateLimited()
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}

		g.mu.Lock()
		g.windowStart = g.now()
		g.requestCount = 0
		g.tokenCount = 0
		g.mu.Unlock()
	}
}

// checkBreaker opens the breaker past the failure threshold and auto-closes
// it once the cooldown has elapsed.
func (g *Governor) checkBreaker() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.breakerOpen {
		if g.now().Sub(g.breakerOpenedAt) > breakerCooldown {
			telemetry.Info("ratelimit.breaker_closed", map[string]any{
				"cooldown_seconds": breakerCooldown.Seconds(),
			})
			g.breakerOpen = false
			g.consecutiveFailures = 0
			return nil
		}
		return ErrCircuitOpen
	}

	if g.consecutiveFailures >= breakerThreshold {
		g.breakerOpen = true
		g.breakerOpenedAt = g.now()
		metrics.IncCircuitBreakerTrip()
		telemetry.Error("ratelimit.breaker_opened", map[string]any{
			"consecutive_failures": g.consecutiveFailures,
		})
		return ErrCircuitOpen
	}
	return nil
}

// BreakerOpen reports whether calls would currently be rejected.
func (g *Governor) BreakerOpen() bool {
	return errors.Is(g.checkBreaker(), ErrCircuitOpen)
}

// RecordFailure bumps the consecutive-failure counter feeding the breaker.
func (g *Governor) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consecutiveFailures++
}

// RecordSuccess resets the consecutive-failure counter and closes the breaker.
func (g *Governor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consecutiveFailures = 0
	g.breakerOpen = false
	g.breakerOpenedAt = time.Time{}
}

// IsDuplicate reports whether question has already been seen for documentID,
// recording it on first sight. The first call for a given (document,
// question) pair returns false; subsequent calls return true until
// ClearDocument resets the set.
func (g *Governor) IsDuplicate(documentID, question string) bool {
	key := questionHash(question)

	g.mu.Lock()
	defer g.mu.Unlock()
	seen, ok := g.processed[documentID]
	if !ok {
		seen = make(map[uint64]struct{})
		g.processed[documentID] = seen
	}
	if _, dup := seen[key]; dup {
		return true
	}
	seen[key] = struct{}{}
	return false
}

// ClearDocument resets duplicate suppression for documentID. Called at the
// start of each new analysis run.
func (g *Governor) ClearDocument(documentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.processed, documentID)
}

// Status returns a monitoring snapshot of the governor state.
func (g *Governor) Status() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	elapsed := g.now().Sub(g.windowStart)
	remaining := windowLength - elapsed
	if remaining < 0 {
		remaining = 0
	}
	processedCount := 0
	for _, seen := range g.processed {
		processedCount += len(seen)
	}
	return map[string]any{
		"requests_used":             g.requestCount,
		"requests_limit":            g.requestsPerMinute,
		"tokens_used":               g.tokenCount,
		"tokens_limit":              g.tokensPerMinute,
		"window_elapsed_seconds":    elapsed.Seconds(),
		"window_remaining_seconds":  remaining.Seconds(),
		"consecutive_failures":      g.consecutiveFailures,
		"circuit_breaker_open":      g.breakerOpen,
		"processed_questions_count": processedCount,
	}
}

func backoffDelay(attempt int) time.Duration {
	d := backoffBase * time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// questionHash hashes normalized question text so duplicates survive
// whitespace and case differences.
func questionHash(question string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(question))))
	return h.Sum64()
}
