package dispatch

import (
	"context"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// sendWithRetry delivers one media batch to one channel.
//
// Flood signals suspend for exactly the server-suggested duration and retry;
// any other failure backs off exponentially from the base delay, doubling per
// attempt, up to the configured attempt cap. A timeout is terminal for this
// channel. Attempts are strictly sequential.
func (p *Pipeline) sendWithRetry(ctx context.Context, ch model.Channel, text string, items []transport.MediaItem) (Outcome, int, error) {
	maxAttempts := p.cfg.RetryMax
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMax
	}
	base := p.cfg.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return OutcomeFailed, attempt, err
			}
		}

		var err error
		if len(items) > 0 {
			err = p.sender.SendMediaGroup(ctx, ch.ChatID, items)
		} else {
			err = p.sender.SendText(ctx, ch.ChatID, text)
		}
		if err == nil {
			return OutcomeSuccess, attempt + 1, nil
		}
		lastErr = err

		if transport.IsTimeout(err) {
			p.log.Error("send timed out", logx.String("chat", ch.ChatID), logx.Err(err))
			return OutcomeTimeout, attempt + 1, err
		}

		delay := base << attempt
		if wait, ok := transport.IsRateLimited(err); ok {
			if wait > 0 {
				delay = wait
			}
			p.log.Warn("flood control triggered",
				logx.String("chat", ch.ChatID), logx.Duration("delay", delay), logx.Int("attempt", attempt+1))
		} else {
			p.log.Error("send failed",
				logx.String("chat", ch.ChatID), logx.Duration("delay", delay), logx.Int("attempt", attempt+1), logx.Err(err))
		}

		if attempt == maxAttempts-1 {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return OutcomeFailed, attempt + 1, err
		}
	}
	return OutcomeFailed, maxAttempts, lastErr
}
