// Package jobs runs the cron-scheduled maintenance work: the daily posting
// digest, the relevance sweep, and periodic order distribution.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type JobConfig struct {
	Enabled bool
	// Spec is a cron expression (5-field, or a descriptor like "@daily").
	Spec string
}

type Config struct {
	Digest    JobConfig
	Relevance JobConfig
	Orders    JobConfig

	// RelevanceWindow is how far back a scrape still counts as "recent" for
	// the relevance sweep. 0 means 24h.
	RelevanceWindow time.Duration
}

// Store is the record-store subset the jobs read and mutate.
type Store interface {
	Channels(ctx context.Context) ([]model.Channel, error)
	CountPostedSince(ctx context.Context, t time.Time) (int, error)
	SuccessfulListings(ctx context.Context) ([]model.Listing, error)
	RecentURLs(ctx context.Context, since time.Time) (map[string]struct{}, error)
	MarkNotRelevant(ctx context.Context, ids []int64) error
}

// Distributor assigns unassigned orders (the assignment engine).
type Distributor interface {
	DistributeOrders(ctx context.Context) (int, error)
}

type Service struct {
	cfg   Config
	store Store
	send  transport.Sender
	dist  Distributor
	log   logx.Logger

	// adminChat receives sweep notifications; empty disables them.
	adminChat string

	mu sync.Mutex
	c  *cron.Cron

	now func() time.Time
}

func New(cfg Config, store Store, send transport.Sender, dist Distributor, adminChat string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		send:      send,
		dist:      dist,
		adminChat: adminChat,
		log:       log,
		now:       time.Now,
	}
}

// Start registers the enabled jobs and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New()

	add := func(jc JobConfig, name, defSpec string, run func(ctx context.Context)) error {
		if !jc.Enabled {
			return nil
		}
		spec := jc.Spec
		if spec == "" {
			spec = defSpec
		}
		_, err := c.AddFunc(spec, func() { run(ctx) })
		if err != nil {
			return fmt.Errorf("job %s: bad spec %q: %w", name, spec, err)
		}
		s.log.Info("job scheduled", logx.String("job", name), logx.String("spec", spec))
		return nil
	}

	if err := add(s.cfg.Digest, "digest", "0 9 * * *", s.RunDigest); err != nil {
		return err
	}
	if err := add(s.cfg.Relevance, "relevance", "30 7 * * *", s.RunRelevanceSweep); err != nil {
		return err
	}
	if err := add(s.cfg.Orders, "orders", "*/5 * * * *", s.RunOrderDistribution); err != nil {
		return err
	}

	c.Start()
	s.c = c
	return nil
}

// Stop halts the cron runner without interrupting a running job.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// RunDigest broadcasts the count of listings posted since UTC midnight to
// every configured channel. Posted timestamps are stored in UTC, so the
// window is computed in UTC too. Per-channel failures never abort the rest.
func (s *Service) RunDigest(ctx context.Context) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	total, err := s.store.CountPostedSince(ctx, midnight)
	if err != nil {
		s.log.Error("digest count failed", logx.Err(err))
		return
	}
	channels, err := s.store.Channels(ctx)
	if err != nil {
		s.log.Error("digest channel list failed", logx.Err(err))
		return
	}

	text := fmt.Sprintf(
		"Today the RentSearch team added another %d exclusive objects. Hurry up and sign up for a review 🧐!", total)
	for _, ch := range channels {
		if err := s.send.SendText(ctx, ch.ChatID, text); err != nil {
			s.log.Error("digest send failed", logx.String("chat", ch.ChatID), logx.Err(err))
			continue
		}
		s.log.Debug("digest sent", logx.String("chat", ch.ChatID))
	}
}

// RunRelevanceSweep retires successful listings whose URL no longer appears
// among recently scraped records, then notifies the admin chat.
func (s *Service) RunRelevanceSweep(ctx context.Context) {
	window := s.cfg.RelevanceWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	listings, err := s.store.SuccessfulListings(ctx)
	if err != nil {
		s.log.Error("relevance sweep query failed", logx.Err(err))
		return
	}
	if len(listings) == 0 {
		return
	}
	recent, err := s.store.RecentURLs(ctx, s.now().Add(-window))
	if err != nil {
		s.log.Error("relevance sweep url fetch failed", logx.Err(err))
		return
	}

	var gone []model.Listing
	for _, l := range listings {
		if _, ok := recent[l.URL]; !ok {
			gone = append(gone, l)
		}
	}
	if len(gone) == 0 {
		return
	}

	ids := make([]int64, len(gone))
	for i, l := range gone {
		ids[i] = l.ID
	}
	if err := s.store.MarkNotRelevant(ctx, ids); err != nil {
		s.log.Error("relevance sweep update failed", logx.Err(err))
		return
	}
	s.log.Info("listings marked not relevant", logx.Int("count", len(gone)))

	if s.adminChat == "" {
		return
	}
	msg := "🚨 The following listings are no longer available:\n\n"
	for i, l := range gone {
		if i == 10 { // cap the message to avoid spam
			break
		}
		msg += fmt.Sprintf("🏠 %s - %s\n", l.Title, l.URL)
	}
	if err := s.send.SendText(ctx, s.adminChat, msg); err != nil {
		s.log.Error("admin notification failed", logx.Err(err))
	}
}

// RunOrderDistribution assigns pending orders to team leads.
func (s *Service) RunOrderDistribution(ctx context.Context) {
	if _, err := s.dist.DistributeOrders(ctx); err != nil {
		s.log.Error("order distribution failed", logx.Err(err))
	}
}
