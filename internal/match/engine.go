// Package match computes which listings are eligible for which channels.
//
// Rules are applied in order: category base filter and exact deal/object
// match (pushed into the store query), then the inclusive price range, then
// the location rule. Reads are unsynchronized by design; the dispatch lock
// re-validates eligibility at execution time.
package match

import (
	"context"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

// Config tunes the filter rule set.
type Config struct {
	// UAHRate is the fixed UAH→USD conversion rate. 0 means DefaultUAHRate.
	UAHRate float64
	// CityAnchor is the token "city" channels look for in location text.
	// Empty means DefaultCityAnchor.
	CityAnchor string
}

// Store is the subset of the record store the engine reads.
type Store interface {
	Channels(ctx context.Context) ([]model.Channel, error)
	MatchCandidates(ctx context.Context, ch model.Channel) ([]model.Listing, error)
}

// Batch is one channel together with its eligible listings.
type Batch struct {
	Channel  model.Channel
	Listings []model.Listing
}

type Engine struct {
	cfg   Config
	store Store
	log   logx.Logger
}

func New(cfg Config, store Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{cfg: cfg, store: store, log: log}
}

// Eligible reports whether the listing passes the channel's price and
// location rules. The category base filter and deal/object match are assumed
// to hold already (the store query enforces them).
func (e *Engine) Eligible(ch model.Channel, l *model.Listing) bool {
	if ch.PriceFrom != nil || ch.PriceTo != nil {
		usd, err := ParsePrice(l.Price, e.cfg.UAHRate)
		if err != nil {
			// Parse failures are non-fatal: drop this listing from this
			// channel's set only.
			e.log.Error("price parse failed; listing excluded",
				logx.Int64("listing", l.ID), logx.Int64("channel", ch.ID), logx.Err(err))
			return false
		}
		if ch.PriceFrom != nil && usd < float64(*ch.PriceFrom) {
			return false
		}
		if ch.PriceTo != nil && usd > float64(*ch.PriceTo) {
			return false
		}
	}
	return matchLocation(ch.LocationType, l.Location, e.cfg.CityAnchor)
}

// matches reports whether the listing satisfies the full filter spec of the
// channel, including the category base filter (used for post-lock re-checks).
func (e *Engine) matches(ch model.Channel, l *model.Listing) bool {
	if l.DealType != ch.DealType || l.ObjectType != ch.ObjectType {
		return false
	}
	switch ch.Category {
	case model.CategoryBroadcast:
		if l.Status != model.StatusNone || l.SentToBroadcast {
			return false
		}
	case model.CategorySuccessful:
		if l.Status != model.StatusSuccessful || l.LastPostedChannelID == ch.ChatID {
			return false
		}
	default:
		return false
	}
	return e.Eligible(ch, l)
}

// PendingByChannel returns, per channel, the listings currently eligible for
// it. Channels with zero eligible listings are omitted.
func (e *Engine) PendingByChannel(ctx context.Context) ([]Batch, error) {
	channels, err := e.store.Channels(ctx)
	if err != nil {
		return nil, err
	}

	var out []Batch
	for _, ch := range channels {
		candidates, err := e.store.MatchCandidates(ctx, ch)
		if err != nil {
			// One broken channel must not starve the others.
			e.log.Error("candidate query failed", logx.Int64("channel", ch.ID), logx.Err(err))
			continue
		}
		var eligible []model.Listing
		for i := range candidates {
			if e.Eligible(ch, &candidates[i]) {
				eligible = append(eligible, candidates[i])
			}
		}
		if len(eligible) > 0 {
			out = append(out, Batch{Channel: ch, Listings: eligible})
		}
	}
	return out, nil
}

// ChannelsFor re-derives the channels eligible for one listing. The delivery
// pipeline calls it after acquiring the dispatch lock, so eligibility is
// validated against current state even when the matching read was stale.
func (e *Engine) ChannelsFor(ctx context.Context, l *model.Listing) ([]model.Channel, error) {
	channels, err := e.store.Channels(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Channel
	for _, ch := range channels {
		if e.matches(ch, l) {
			out = append(out, ch)
		}
	}
	return out, nil
}
