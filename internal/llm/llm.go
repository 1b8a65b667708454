package llm

import (
	"context"
	"errors"
	"strings"
)

// Client produces a completion for a system/user prompt pair.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrRateLimited marks a provider-side rate limit response.
var ErrRateLimited = errors.New("llm: rate limited")

// ErrTimeout marks a request that exceeded the client deadline.
var ErrTimeout = errors.New("llm: request timed out")

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// IsTransient reports whether err looks like a connection-level failure
// worth retrying, as opposed to a permanent request error.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(errMessage(err))
	for _, hint := range []string{"timeout", "connection", "temporarily", "unavailable", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
