// Package transport defines the outbound messaging interface consumed by the
// delivery pipeline and the periodic jobs, together with the typed failure
// taxonomy the retry logic dispatches on.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MediaItem is one attachment of a media-group send. Caption is only honored
// on the first item of a group.
type MediaItem struct {
	URL         string
	ContentType string
	Caption     string
}

// Sender delivers rendered content to an external channel.
//
// chatID is a numeric chat id or an "@username" handle. Failures are reported
// through the typed errors below; anything else is a generic send error.
type Sender interface {
	SendMediaGroup(ctx context.Context, chatID string, items []MediaItem) error
	SendText(ctx context.Context, chatID string, text string) error
}

// RateLimitedError signals upstream flood control. RetryAfter carries the
// server-suggested wait; the pipeline suspends for exactly that duration.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TimeoutError signals that the attempt timed out without a definite answer.
// The message may or may not have been delivered.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return "send timed out: " + e.Cause.Error()
	}
	return "send timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// IsRateLimited extracts the retry-after hint when err is a flood signal.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsTimeout reports whether err is a send timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
