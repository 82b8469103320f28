package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/storage"
	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type fakeStore struct {
	listing  *model.Listing
	template *model.Template

	locked   bool
	released int
	lastBK   storage.Bookkeeping
}

func (f *fakeStore) TryAcquireSendLock(ctx context.Context, id int64) (bool, error) {
	if f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeStore) ReleaseSendLock(ctx context.Context, id int64, bk storage.Bookkeeping) error {
	f.locked = false
	f.released++
	f.lastBK = bk
	return nil
}

func (f *fakeStore) Listing(ctx context.Context, id int64) (*model.Listing, error) {
	if f.listing == nil {
		return nil, storage.ErrNotFound
	}
	return f.listing, nil
}

func (f *fakeStore) TemplateByName(ctx context.Context, name string) (*model.Template, error) {
	if f.template == nil {
		return nil, storage.ErrNotFound
	}
	return f.template, nil
}

type fakeMatcher struct {
	channels []model.Channel
}

func (f *fakeMatcher) ChannelsFor(ctx context.Context, l *model.Listing) ([]model.Channel, error) {
	return f.channels, nil
}

// fakeSender returns errs[chatID] responses in order; nil means success.
type fakeSender struct {
	errs  map[string][]error
	calls []string
	texts []string
}

func (f *fakeSender) next(chatID string) error {
	f.calls = append(f.calls, chatID)
	q := f.errs[chatID]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	f.errs[chatID] = q[1:]
	return err
}

func (f *fakeSender) SendMediaGroup(ctx context.Context, chatID string, items []transport.MediaItem) error {
	return f.next(chatID)
}

func (f *fakeSender) SendText(ctx context.Context, chatID string, text string) error {
	f.texts = append(f.texts, text)
	return f.next(chatID)
}

func newTestPipeline(cfg Config, store *fakeStore, matcher *fakeMatcher, sender *fakeSender) (*Pipeline, *[]time.Duration) {
	p := New(cfg, store, matcher, sender, logx.Nop())
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	// The limiter's initial burst covers test volumes without waiting.
	return p, &slept
}

func broadcastChannel(id int64, chatID string) model.Channel {
	return model.Channel{ID: id, Category: model.CategoryBroadcast, ChatID: chatID, LocationType: model.LocationAll}
}

func TestDispatchAlreadyInFlight(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}, locked: true}
	p, _ := newTestPipeline(Config{RatePerSec: 100}, store, &fakeMatcher{}, &fakeSender{})

	_, err := p.Dispatch(context.Background(), 1)
	if !errors.Is(err, ErrAlreadyInFlight) {
		t.Fatalf("expected ErrAlreadyInFlight, got %v", err)
	}
	if store.released != 0 {
		t.Fatal("lock must not be released by the caller that failed to acquire it")
	}
}

func TestDispatchNoEligibleChannelsReleasesLock(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	p, _ := newTestPipeline(Config{RatePerSec: 100}, store, &fakeMatcher{}, &fakeSender{})

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(res.Channels) != 0 || res.Sent() {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if store.locked || store.released != 1 {
		t.Fatalf("lock not released: locked=%v released=%d", store.locked, store.released)
	}
	if store.lastBK.MarkBroadcastSent {
		t.Fatal("no-channel dispatch must not mark the listing as broadcast")
	}
}

func TestDispatchBestEffortOnceMarksSentOnFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	sender := &fakeSender{errs: map[string][]error{
		"-100": {errors.New("boom"), errors.New("boom")},
	}}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	p, _ := newTestPipeline(Config{RetryMax: 2, RetryBase: time.Second, RatePerSec: 100}, store, matcher, sender)

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Sent() {
		t.Fatal("all attempts failed, result must not report success")
	}
	if res.Channels[0].Outcome != OutcomeFailed || res.Channels[0].Attempts != 2 {
		t.Fatalf("unexpected channel result: %+v", res.Channels[0])
	}
	if !store.lastBK.MarkBroadcastSent {
		t.Fatal("broadcast channel must be marked handled even after failure")
	}
}

func TestDispatchCanceledBeforeSendLeavesBookkeepingUntouched(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	sender := &fakeSender{}
	p, _ := newTestPipeline(Config{RetryMax: 3, RetryBase: time.Second, RatePerSec: 100}, store, matcher, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Dispatch(ctx, 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("transport reached %d times, want 0", len(sender.calls))
	}
	if res.Channels[0].Attempts != 0 || res.Channels[0].Outcome != OutcomeFailed {
		t.Fatalf("unexpected channel result: %+v", res.Channels[0])
	}
	if store.lastBK.MarkBroadcastSent {
		t.Fatal("listing must stay fresh when no send was ever attempted")
	}
	if store.locked || store.released != 1 {
		t.Fatalf("lock not released: locked=%v released=%d", store.locked, store.released)
	}
}

func TestDispatchTimeoutIsTerminalAndStillMarks(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	sender := &fakeSender{errs: map[string][]error{
		"-100": {&transport.TimeoutError{Cause: context.DeadlineExceeded}},
	}}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	p, slept := newTestPipeline(Config{RetryMax: 5, RetryBase: time.Second, RatePerSec: 100}, store, matcher, sender)

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	cr := res.Channels[0]
	if cr.Outcome != OutcomeTimeout || cr.Attempts != 1 {
		t.Fatalf("timeout must be terminal after one attempt, got %+v", cr)
	}
	if len(*slept) != 0 {
		t.Fatalf("timeout must not back off and retry, slept %v", *slept)
	}
	if !store.lastBK.MarkBroadcastSent {
		t.Fatal("undetermined outcome still advances best-effort bookkeeping")
	}
}

func TestDispatchFloodDelayOverridesBackoff(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	sender := &fakeSender{errs: map[string][]error{
		"-100": {&transport.RateLimitedError{RetryAfter: 8 * time.Second}, nil},
	}}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	p, slept := newTestPipeline(Config{RetryMax: 5, RetryBase: time.Second, RatePerSec: 100}, store, matcher, sender)

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if !res.Sent() || res.Channels[0].Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %+v", res.Channels[0])
	}
	if len(*slept) != 1 || (*slept)[0] != 8*time.Second {
		t.Fatalf("expected one 8s suspension, slept %v", *slept)
	}
}

func TestDispatchExponentialBackoff(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	sender := &fakeSender{errs: map[string][]error{
		"-100": {errors.New("e1"), errors.New("e2"), nil},
	}}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	p, slept := newTestPipeline(Config{RetryMax: 5, RetryBase: 2 * time.Second, RatePerSec: 100}, store, matcher, sender)

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if !res.Sent() || res.Channels[0].Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", res.Channels[0])
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("backoff = %v, want %v", *slept, want)
	}
}

func TestDispatchChannelFailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()
	store := &fakeStore{listing: &model.Listing{ID: 1}}
	sender := &fakeSender{errs: map[string][]error{
		"-100": {errors.New("boom")},
	}}
	matcher := &fakeMatcher{channels: []model.Channel{
		broadcastChannel(1, "-100"),
		broadcastChannel(2, "-200"),
	}}
	p, _ := newTestPipeline(Config{RetryMax: 1, RetryBase: time.Second, RatePerSec: 100}, store, matcher, sender)

	res, err := p.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(res.Channels) != 2 {
		t.Fatalf("expected both channels attempted, got %d", len(res.Channels))
	}
	if res.Channels[0].Outcome != OutcomeFailed {
		t.Fatalf("first channel should fail, got %+v", res.Channels[0])
	}
	if res.Channels[1].Outcome != OutcomeSuccess {
		t.Fatalf("second channel should succeed, got %+v", res.Channels[1])
	}
}

func TestDispatchConfirmedOnlyBookkeeping(t *testing.T) {
	t.Parallel()
	successCh := model.Channel{ID: 1, Category: model.CategorySuccessful, ChatID: "-300", LocationType: model.LocationAll}
	listing := &model.Listing{ID: 1, Status: model.StatusSuccessful}

	// Failure: no posting recorded.
	store := &fakeStore{listing: listing}
	sender := &fakeSender{errs: map[string][]error{"-300": {errors.New("boom")}}}
	p, _ := newTestPipeline(Config{RetryMax: 1, RetryBase: time.Second, RatePerSec: 100}, store, &fakeMatcher{channels: []model.Channel{successCh}}, sender)
	if _, err := p.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if store.lastBK.MarkBroadcastSent || store.lastBK.PostedChannelID != "" || store.lastBK.PostedAt != nil {
		t.Fatalf("failed confirmed-only send must not record bookkeeping: %+v", store.lastBK)
	}

	// Success: posting advances.
	store = &fakeStore{listing: listing}
	p, _ = newTestPipeline(Config{RetryMax: 1, RetryBase: time.Second, RatePerSec: 100}, store, &fakeMatcher{channels: []model.Channel{successCh}}, &fakeSender{})
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	if _, err := p.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if store.lastBK.PostedChannelID != "-300" {
		t.Fatalf("PostedChannelID = %q, want -300", store.lastBK.PostedChannelID)
	}
	if store.lastBK.PostedAt == nil || !store.lastBK.PostedAt.Equal(fixed) {
		t.Fatalf("PostedAt = %v, want %v", store.lastBK.PostedAt, fixed)
	}
	if store.lastBK.MarkBroadcastSent {
		t.Fatal("confirmed-only channel must not touch the broadcast flag")
	}
}

func TestDispatchRendersTemplateWithSentinel(t *testing.T) {
	t.Parallel()
	store := &fakeStore{
		listing:  &model.Listing{ID: 1, Title: "Оренда 2к", Price: "15000 грн"},
		template: &model.Template{Name: model.TemplateBroadcast, Body: "{title} / {price} / {owner}"},
	}
	sender := &fakeSender{}
	matcher := &fakeMatcher{channels: []model.Channel{broadcastChannel(1, "-100")}}
	p, _ := newTestPipeline(Config{RatePerSec: 100}, store, matcher, sender)

	if _, err := p.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("expected one text send, got %d", len(sender.texts))
	}
	want := "Оренда 2к / 15000 грн / N/A"
	if sender.texts[0] != want {
		t.Fatalf("rendered = %q, want %q", sender.texts[0], want)
	}
}

func TestMediaBatchLimitAndCaption(t *testing.T) {
	t.Parallel()
	l := &model.Listing{}
	for i := 0; i < 8; i++ {
		l.Media = append(l.Media, model.MediaFile{URL: "u", Position: i})
	}
	items := mediaBatch(l, "caption")
	if len(items) != mediaLimit {
		t.Fatalf("expected %d items, got %d", mediaLimit, len(items))
	}
	if items[0].Caption != "caption" {
		t.Fatal("first item must carry the caption")
	}
	for _, it := range items[1:] {
		if it.Caption != "" {
			t.Fatal("only the first item may carry a caption")
		}
	}
}
