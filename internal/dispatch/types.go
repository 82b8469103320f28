package dispatch

import (
	"errors"

	"github.com/rentsearchrs/lviv-pject/internal/model"
)

// ErrAlreadyInFlight reports that another caller holds the dispatch lock for
// the listing. It is a benign skip, not a failure: the scheduler logs it at
// debug level, manual triggers surface it to the operator.
var ErrAlreadyInFlight = errors.New("listing dispatch already in flight")

// Outcome is the terminal result of delivering to one channel.
type Outcome int

const (
	// OutcomeSuccess: the transport confirmed the send.
	OutcomeSuccess Outcome = iota
	// OutcomeTimeout: the attempt timed out without a definite answer.
	// Terminal for bookkeeping — a best-effort channel is still marked sent.
	OutcomeTimeout
	// OutcomeFailed: retries exhausted or a non-retryable send error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ChannelResult records one channel's delivery attempt.
type ChannelResult struct {
	Channel  model.Channel
	Outcome  Outcome
	Attempts int
	Err      error
}

// Result summarizes one listing dispatch across all eligible channels.
type Result struct {
	ListingID int64
	Channels  []ChannelResult
}

// Sent reports whether at least one channel confirmed delivery.
func (r *Result) Sent() bool {
	for _, c := range r.Channels {
		if c.Outcome == OutcomeSuccess {
			return true
		}
	}
	return false
}
