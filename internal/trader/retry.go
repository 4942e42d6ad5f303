package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// retryWithBackoff retries op up to maxAttempts times with linear backoff
// (attempt * unit) between attempts. Bounded, unlike the balance and
// price wait loops, which run until the context is cancelled.
func retryWithBackoff[T any](ctx context.Context, logger *zap.Logger, label string, maxAttempts int, unit time.Duration, op func() (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err
		logger.Warn("Attempt failed",
			zap.String("operation", label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * unit):
			}
		}
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", label, maxAttempts, lastErr)
}

// classifyError maps an error to a trade result category by substring
// matching on the error text. Heuristic, but the upstream clients do not
// expose typed errors.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "not enough"):
		return ErrCategoryInsufficientFunds
	case strings.Contains(msg, "slippage"):
		return ErrCategorySlippageExceeded
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return ErrCategoryTimeout
	case strings.Contains(msg, "no route"):
		return ErrCategoryNoRoute
	default:
		return ErrCategoryUnknown
	}
}
