package analysis

import (
	"fmt"
	"strings"
)

// Mode selects the scheduling policy for dispatching question work.
type Mode string

const (
	// ModeSmart processes sections sequentially against a targeted,
	// segment-selected context.
	ModeSmart Mode = "smart"
	// ModeZap dispatches every question concurrently with the full
	// document text as context.
	ModeZap Mode = "zap"
	// ModeComparison runs both policies and reports which was faster.
	ModeComparison Mode = "comparison"
)

// ParseMode normalizes a client-supplied mode string. Empty input defaults
// to smart.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "smart", "sequential":
		return ModeSmart, nil
	case "zap":
		return ModeZap, nil
	case "comparison", "compare":
		return ModeComparison, nil
	default:
		return "", fmt.Errorf("unsupported processing mode %q", raw)
	}
}
