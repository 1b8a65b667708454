package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestGovernor(requests, tokens int) (*Governor, *time.Time) {
	g := NewGovernor(requests, tokens)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	g.windowStart = now
	g.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return g, &now
}

func TestAdmitWithinBudget(t *testing.T) {
	g, _ := newTestGovernor(30, 40000)

	for i := 0; i < 30; i++ {
		if err := g.Admit(context.Background(), 100); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}

	status := g.Status()
	if got := status["requests_used"].(int); got != 30 {
		t.Fatalf("requests_used = %d, want 30", got)
	}
	if got := status["tokens_used"].(int); got != 3000 {
		t.Fatalf("tokens_used = %d, want 3000", got)
	}
}

func TestAdmitBacksOffWhenWindowFull(t *testing.T) {
	g, _ := newTestGovernor(2, 40000)

	for i := 0; i < 2; i++ {
		if err := g.Admit(context.Background(), 10); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}

	// Third call overflows the request ceiling; the fake sleep advances the
	// clock past the window so the retry succeeds.
	if err := g.Admit(context.Background(), 10); err != nil {
		t.Fatalf("admit after backoff: %v", err)
	}
	status := g.Status()
	if got := status["requests_used"].(int); got != 1 {
		t.Fatalf("requests_used after window reset = %d, want 1", got)
	}
}

func TestAdmitRejectsOversizedCall(t *testing.T) {
	g, _ := newTestGovernor(30, 100)

	// A single call larger than the whole token budget can never fit, so
	// retries exhaust.
	err := g.Admit(context.Background(), 500)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestDuplicateSuppression(t *testing.T) {
	g, _ := newTestGovernor(30, 40000)

	if g.IsDuplicate("doc1", "Has the entity disclosed fair value?") {
		t.Fatal("first occurrence flagged as duplicate")
	}
	if !g.IsDuplicate("doc1", "Has the entity disclosed fair value?") {
		t.Fatal("second occurrence not flagged as duplicate")
	}
	// Normalization: case and surrounding whitespace do not defeat the hash.
	if !g.IsDuplicate("doc1", "  has the entity disclosed FAIR VALUE?  ") {
		t.Fatal("normalized duplicate not flagged")
	}
	// Different document, independent set.
	if g.IsDuplicate("doc2", "Has the entity disclosed fair value?") {
		t.Fatal("duplicate leaked across documents")
	}

	g.ClearDocument("doc1")
	if g.IsDuplicate("doc1", "Has the entity disclosed fair value?") {
		t.Fatal("duplicate set not cleared")
	}
}

func TestCircuitBreakerRoundTrip(t *testing.T) {
	g, now := newTestGovernor(30, 40000)

	for i := 0; i < breakerThreshold; i++ {
		g.RecordFailure()
	}

	err := g.Admit(context.Background(), 10)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if !g.BreakerOpen() {
		t.Fatal("breaker should report open")
	}

	// After the cooldown the breaker auto-closes and one fresh attempt is
	// permitted.
	*now = now.Add(breakerCooldown + time.Second)
	if err := g.Admit(context.Background(), 10); err != nil {
		t.Fatalf("admit after cooldown: %v", err)
	}
	if g.BreakerOpen() {
		t.Fatal("breaker should be closed after cooldown")
	}
}

func TestRecordSuccessResetsFailures(t *testing.T) {
	g, _ := newTestGovernor(30, 40000)

	for i := 0; i < breakerThreshold-1; i++ {
		g.RecordFailure()
	}
	g.RecordSuccess()
	g.RecordFailure()

	if err := g.Admit(context.Background(), 10); err != nil {
		t.Fatalf("admit: %v", err)
	}
}

func TestEstimateTokensFallback(t *testing.T) {
	text := "The entity discloses investment property at fair value."
	if got := EstimateTokens(text); got <= 0 {
		t.Fatalf("EstimateTokens = %d, want > 0", got)
	}
}
