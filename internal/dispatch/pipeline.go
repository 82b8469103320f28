// Package dispatch implements the delivery pipeline: per-listing locking,
// template rendering, media batching, and per-channel sends with retry and
// backoff under upstream rate limiting.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/storage"
	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

const (
	defaultRetryMax  = 5
	defaultRetryBase = 5 * time.Second

	// mediaLimit caps the media group size per send.
	mediaLimit = 5
)

// Config tunes the pipeline.
type Config struct {
	RetryMax   int           // attempts per channel; 0 means 5
	RetryBase  time.Duration // first backoff delay; 0 means 5s
	RatePerSec int           // outbound send cap; 0 means 1
}

// Store is the record-store subset the pipeline consumes.
type Store interface {
	LockStore
	Listing(ctx context.Context, id int64) (*model.Listing, error)
	TemplateByName(ctx context.Context, name string) (*model.Template, error)
}

// Matcher re-derives channel eligibility for one listing after the lock is
// acquired.
type Matcher interface {
	ChannelsFor(ctx context.Context, l *model.Listing) ([]model.Channel, error)
}

type Pipeline struct {
	cfg     Config
	store   Store
	locker  *Locker
	matcher Matcher
	sender  transport.Sender
	limiter *rate.Limiter
	log     logx.Logger

	// sleep and now are injection points for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg Config, store Store, matcher Matcher, sender transport.Sender, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		locker:  NewLocker(store, log),
		matcher: matcher,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Dispatch delivers one listing to every channel it is currently eligible
// for, then finalizes bookkeeping.
//
// Returns ErrAlreadyInFlight when the listing is locked by another caller (no
// send is performed). Per-channel failures never abort sibling channels; they
// are recorded in the result. The lock is released on every exit path.
func (p *Pipeline) Dispatch(ctx context.Context, listingID int64) (*Result, error) {
	if err := p.locker.Acquire(ctx, listingID); err != nil {
		if errors.Is(err, ErrAlreadyInFlight) {
			p.log.Debug("listing already in flight", logx.Int64("listing", listingID))
		}
		return nil, err
	}

	var bk storage.Bookkeeping
	defer func() {
		if err := p.locker.Release(ctx, listingID, bk); err != nil {
			p.log.Error("lock release failed", logx.Int64("listing", listingID), logx.Err(err))
		}
	}()

	// Re-read state and re-check eligibility under the lock: matching reads
	// are unsynchronized and may have been stale.
	listing, err := p.store.Listing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	channels, err := p.matcher.ChannelsFor(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("recheck eligibility: %w", err)
	}

	res := &Result{ListingID: listingID}
	if len(channels) == 0 {
		p.log.Warn("no eligible channels", logx.Int64("listing", listingID))
		return res, nil
	}

	for _, ch := range channels {
		text := p.renderFor(ctx, ch.Category, listing)
		items := mediaBatch(listing, text)

		outcome, attempts, sendErr := p.sendWithRetry(ctx, ch, text, items)
		res.Channels = append(res.Channels, ChannelResult{
			Channel: ch, Outcome: outcome, Attempts: attempts, Err: sendErr,
		})

		switch ch.Category.Policy() {
		case model.BestEffortOnce:
			// Mark as handled whatever the attempt's outcome: this channel
			// type trades guaranteed delivery for never re-spamming on future
			// ticks. Zero attempts means the transport was never reached
			// (e.g. cancellation at the limiter), so the listing stays fresh.
			if attempts > 0 {
				bk.MarkBroadcastSent = true
			}
		case model.ConfirmedOnly:
			if outcome == OutcomeSuccess {
				t := p.now().UTC()
				bk.PostedChannelID = ch.ChatID
				bk.PostedAt = &t
			}
		}

		if outcome == OutcomeSuccess {
			p.log.Info("listing delivered",
				logx.Int64("listing", listingID), logx.String("chat", ch.ChatID), logx.Int("attempts", attempts))
		} else {
			p.log.Warn("listing delivery not confirmed",
				logx.Int64("listing", listingID), logx.String("chat", ch.ChatID),
				logx.String("outcome", outcome.String()), logx.Err(sendErr))
		}
	}
	return res, nil
}

// renderFor resolves the category template and binds the listing attributes.
// A missing template falls back to the built-in default body.
func (p *Pipeline) renderFor(ctx context.Context, cat model.Category, l *model.Listing) string {
	name := model.TemplateBroadcast
	if cat == model.CategorySuccessful {
		name = model.TemplateSuccessful
	}
	body := defaultTemplate
	tpl, err := p.store.TemplateByName(ctx, name)
	switch {
	case err == nil:
		body = tpl.Body
	case errors.Is(err, storage.ErrNotFound):
		p.log.Warn("template not configured, using default", logx.String("template", name))
	default:
		p.log.Error("template lookup failed, using default", logx.String("template", name), logx.Err(err))
	}
	return renderTemplate(body, l.Attributes())
}

// mediaBatch selects up to mediaLimit attachments in display order, captioning
// the first one with the rendered text.
func mediaBatch(l *model.Listing, caption string) []transport.MediaItem {
	n := len(l.Media)
	if n > mediaLimit {
		n = mediaLimit
	}
	items := make([]transport.MediaItem, 0, n)
	for i := 0; i < n; i++ {
		m := l.Media[i]
		it := transport.MediaItem{URL: m.URL, ContentType: m.ContentType}
		if i == 0 {
			it.Caption = caption
		}
		items = append(items, it)
	}
	return items
}
