package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type fakeStore struct {
	channels   []model.Channel
	posted     int
	successful []model.Listing
	recent     map[string]struct{}

	markedIDs []int64
	sinceSeen time.Time
}

func (f *fakeStore) Channels(ctx context.Context) ([]model.Channel, error) {
	return f.channels, nil
}

func (f *fakeStore) CountPostedSince(ctx context.Context, t time.Time) (int, error) {
	f.sinceSeen = t
	return f.posted, nil
}

func (f *fakeStore) SuccessfulListings(ctx context.Context) ([]model.Listing, error) {
	return f.successful, nil
}

func (f *fakeStore) RecentURLs(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	f.sinceSeen = since
	return f.recent, nil
}

func (f *fakeStore) MarkNotRelevant(ctx context.Context, ids []int64) error {
	f.markedIDs = append(f.markedIDs, ids...)
	return nil
}

type sentMessage struct {
	chat string
	text string
}

type fakeSender struct {
	sent    []sentMessage
	failFor map[string]error
}

func (f *fakeSender) SendMediaGroup(ctx context.Context, chatID string, items []transport.MediaItem) error {
	return nil
}

func (f *fakeSender) SendText(ctx context.Context, chatID string, text string) error {
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{chat: chatID, text: text})
	return nil
}

type fakeDistributor struct {
	calls int
	n     int
}

func (f *fakeDistributor) DistributeOrders(ctx context.Context) (int, error) {
	f.calls++
	return f.n, nil
}

func TestRunDigestBroadcastsDailyCount(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		posted: 7,
		channels: []model.Channel{
			{ChatID: "-100"}, {ChatID: "-200"},
		},
	}
	sender := &fakeSender{}
	s := New(Config{}, store, sender, &fakeDistributor{}, "", logx.Nop())
	s.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }

	s.RunDigest(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "another 7 exclusive objects") {
		t.Fatalf("unexpected digest text: %q", sender.sent[0].text)
	}
	wantMidnight := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !store.sinceSeen.Equal(wantMidnight) {
		t.Fatalf("counted since %v, want UTC midnight %v", store.sinceSeen, wantMidnight)
	}
}

func TestRunDigestCountsFromUTCMidnight(t *testing.T) {
	t.Parallel()
	store := &fakeStore{channels: []model.Channel{{ChatID: "-100"}}}
	s := New(Config{}, store, &fakeSender{}, &fakeDistributor{}, "", logx.Nop())
	// 01:00 local in UTC+3 is still the previous day in UTC; the window
	// must follow the stored timestamps' zone, not the host's.
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 1, 0, 0, 0, time.FixedZone("EEST", 3*3600))
	}

	s.RunDigest(context.Background())

	wantMidnight := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if !store.sinceSeen.Equal(wantMidnight) {
		t.Fatalf("counted since %v, want UTC midnight %v", store.sinceSeen, wantMidnight)
	}
}

func TestRunDigestChannelFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	store := &fakeStore{channels: []model.Channel{{ChatID: "-100"}, {ChatID: "-200"}}}
	sender := &fakeSender{failFor: map[string]error{"-100": errors.New("boom")}}
	s := New(Config{}, store, sender, &fakeDistributor{}, "", logx.Nop())

	s.RunDigest(context.Background())
	if len(sender.sent) != 1 || sender.sent[0].chat != "-200" {
		t.Fatalf("sent = %+v, want only -200", sender.sent)
	}
}

func TestRunRelevanceSweep(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		successful: []model.Listing{
			{ID: 1, Title: "gone flat", URL: "u-gone"},
			{ID: 2, Title: "live flat", URL: "u-live"},
		},
		recent: map[string]struct{}{"u-live": {}},
	}
	sender := &fakeSender{}
	s := New(Config{RelevanceWindow: 24 * time.Hour}, store, sender, &fakeDistributor{}, "admin", logx.Nop())
	now := time.Date(2026, 8, 29, 7, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RunRelevanceSweep(context.Background())

	if len(store.markedIDs) != 1 || store.markedIDs[0] != 1 {
		t.Fatalf("marked %v, want [1]", store.markedIDs)
	}
	if !store.sinceSeen.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("recency cutoff = %v, want %v", store.sinceSeen, now.Add(-24*time.Hour))
	}
	if len(sender.sent) != 1 || sender.sent[0].chat != "admin" {
		t.Fatalf("admin notification = %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].text, "u-gone") || strings.Contains(sender.sent[0].text, "u-live") {
		t.Fatalf("unexpected notification: %q", sender.sent[0].text)
	}
}

func TestRunRelevanceSweepNothingToRetire(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		successful: []model.Listing{{ID: 1, URL: "u1"}},
		recent:     map[string]struct{}{"u1": {}},
	}
	sender := &fakeSender{}
	s := New(Config{}, store, sender, &fakeDistributor{}, "admin", logx.Nop())

	s.RunRelevanceSweep(context.Background())
	if len(store.markedIDs) != 0 {
		t.Fatalf("marked %v, want none", store.markedIDs)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no notification expected, got %+v", sender.sent)
	}
}

func TestRunRelevanceSweepNotificationCap(t *testing.T) {
	t.Parallel()
	store := &fakeStore{recent: map[string]struct{}{}}
	for i := 0; i < 15; i++ {
		store.successful = append(store.successful, model.Listing{
			ID: int64(i + 1), Title: "t", URL: "u" + string(rune('a'+i)),
		})
	}
	sender := &fakeSender{}
	s := New(Config{}, store, sender, &fakeDistributor{}, "admin", logx.Nop())

	s.RunRelevanceSweep(context.Background())
	if len(store.markedIDs) != 15 {
		t.Fatalf("marked %d listings, want all 15", len(store.markedIDs))
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one admin message, got %d", len(sender.sent))
	}
	lines := strings.Count(sender.sent[0].text, "🏠")
	if lines != 10 {
		t.Fatalf("notification lists %d listings, want 10", lines)
	}
}

func TestRunOrderDistribution(t *testing.T) {
	t.Parallel()
	dist := &fakeDistributor{n: 2}
	s := New(Config{}, &fakeStore{}, &fakeSender{}, dist, "", logx.Nop())

	s.RunOrderDistribution(context.Background())
	if dist.calls != 1 {
		t.Fatalf("DistributeOrders called %d times, want 1", dist.calls)
	}
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{Digest: JobConfig{Enabled: true, Spec: "nonsense"}},
		&fakeStore{}, &fakeSender{}, &fakeDistributor{}, "", logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartStopWithDefaults(t *testing.T) {
	t.Parallel()
	s := New(Config{
		Digest:    JobConfig{Enabled: true},
		Relevance: JobConfig{Enabled: true},
		Orders:    JobConfig{Enabled: true},
	}, &fakeStore{}, &fakeSender{}, &fakeDistributor{}, "", logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop(context.Background())
}
