/**
 * @description
 * This file implements the attempt limiter guarding sign-in, sign-up and
 * checkout. Attempts are counted per key in a sliding window that restarts
 * from the most recent attempt once it has lapsed. State lives in an
 * AttemptStore so several instances can share one counter.
 */
package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/seacatering/subscription-service/internal/clock"
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 300 * time.Second
)

// RejectedMessage is shown for every security token failure so callers cannot
// tell a forged token from a throttled identity.
const RejectedMessage = "Request rejected for security reasons. Please wait a few minutes and try again."

// AttemptStore keeps per-key attempt counters.
type AttemptStore interface {
	// Hit records an attempt at now and returns the number of attempts in the
	// current window, including this one.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	// Clear forgets every attempt recorded for key.
	Clear(ctx context.Context, key string) error
}

// AttemptLimiter rejects a key once it exceeds maxAttempts within window.
type AttemptLimiter struct {
	store       AttemptStore
	clock       clock.Clock
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewAttemptLimiter creates a limiter. Non-positive limits fall back to the defaults.
func NewAttemptLimiter(store AttemptStore, clk clock.Clock, maxAttempts int, window time.Duration, logger *slog.Logger) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptLimiter{
		store:       store,
		clock:       clk,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Window is how long a rejected key has to stay quiet before it is allowed again.
func (l *AttemptLimiter) Window() time.Duration {
	return l.window
}

// Allow records an attempt for key and returns ErrSecurityToken when the key
// is over its limit. A failing store lets the attempt through.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) error {
	count, err := l.store.Hit(ctx, key, l.clock.Now(), l.window)
	if err != nil {
		l.logger.Warn("attempt store unavailable; allowing attempt", "key", key, "error", err)
		return nil
	}
	if count > l.maxAttempts {
		l.logger.Warn("attempt limit exceeded", "key", key, "count", count, "max_attempts", l.maxAttempts)
		return Rejected("attempt limit exceeded")
	}
	return nil
}

// Reset clears the counter for key, typically after a successful attempt.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Clear(ctx, key); err != nil {
		return ierr.WithError(err).WithMessage("clear attempts").Mark(ierr.ErrSystem)
	}
	return nil
}

// Rejected builds the uniform security token error. reason is kept for logs only.
func Rejected(reason string) error {
	return ierr.NewError(reason).
		WithHint(RejectedMessage).
		Mark(ierr.ErrSecurityToken)
}

// AuthKey is the limiter key for sign-in and sign-up attempts.
func AuthKey(email string) string {
	return "auth_" + SanitizeEmail(email)
}

// SubscribeKey is the limiter key for checkout submissions.
func SubscribeKey(userID string) string {
	return "subscribe_" + userID
}
