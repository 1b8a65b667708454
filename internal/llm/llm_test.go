package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"sentinel", ErrRateLimited, true},
		{"wrapped sentinel", fmt.Errorf("complete: %w", ErrRateLimited), true},
		{"status code in message", errors.New("unexpected status 429"), true},
		{"provider wording", errors.New("Rate limit reached for gpt-4o"), true},
		{"nil", nil, false},
		{"unrelated", errors.New("invalid request"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Fatalf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout sentinel", ErrTimeout, true},
		{"wrapped timeout", fmt.Errorf("complete: %w", ErrTimeout), true},
		{"deadline", context.DeadlineExceeded, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"nil", nil, false},
		{"bad request", errors.New("400 bad request"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
