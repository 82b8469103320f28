package autopost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/dispatch"
	"github.com/rentsearchrs/lviv-pject/internal/match"
	"github.com/rentsearchrs/lviv-pject/internal/model"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type fakeMatcher struct {
	batches []match.Batch
	err     error
}

func (f *fakeMatcher) PendingByChannel(ctx context.Context) ([]match.Batch, error) {
	return f.batches, f.err
}

type fakeDispatcher struct {
	dispatched []int64
	errFor     map[int64]error
	onDispatch func(id int64)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, listingID int64) (*dispatch.Result, error) {
	if f.onDispatch != nil {
		f.onDispatch(listingID)
	}
	if err := f.errFor[listingID]; err != nil {
		return nil, err
	}
	f.dispatched = append(f.dispatched, listingID)
	return &dispatch.Result{ListingID: listingID}, nil
}

func newTestController(m Matcher, d Dispatcher) *Controller {
	c := New(Config{Enabled: true, Interval: time.Hour, PaceDelay: time.Hour}, m, d, logx.Nop())
	c.sleep = func(ctx context.Context, dur time.Duration) error { return ctx.Err() }
	return c
}

func batchOf(ids ...int64) []match.Batch {
	listings := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		listings = append(listings, model.Listing{ID: id})
	}
	return []match.Batch{{
		Channel:  model.Channel{ID: 1, Category: model.CategoryBroadcast, ChatID: "-100"},
		Listings: listings,
	}}
}

func TestRunTickDispatchesAllPending(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{}
	c := newTestController(&fakeMatcher{batches: batchOf(1, 2, 3)}, d)

	c.runTick(context.Background(), make(chan struct{}))
	if len(d.dispatched) != 3 {
		t.Fatalf("dispatched %v, want all three listings", d.dispatched)
	}
}

func TestRunTickSkipsInFlightListings(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{errFor: map[int64]error{2: dispatch.ErrAlreadyInFlight}}
	c := newTestController(&fakeMatcher{batches: batchOf(1, 2, 3)}, d)

	c.runTick(context.Background(), make(chan struct{}))
	if len(d.dispatched) != 2 || d.dispatched[0] != 1 || d.dispatched[1] != 3 {
		t.Fatalf("dispatched %v, want [1 3]", d.dispatched)
	}
}

func TestRunTickContinuesPastDispatchErrors(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{errFor: map[int64]error{1: errors.New("boom")}}
	c := newTestController(&fakeMatcher{batches: batchOf(1, 2)}, d)

	c.runTick(context.Background(), make(chan struct{}))
	if len(d.dispatched) != 1 || d.dispatched[0] != 2 {
		t.Fatalf("dispatched %v, want [2]", d.dispatched)
	}
}

func TestPauseWinsMidTick(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{}
	c := newTestController(&fakeMatcher{batches: batchOf(1, 2, 3)}, d)
	// Pause after the first dispatch: the remaining queued work must not run.
	d.onDispatch = func(id int64) {
		if id == 1 {
			c.Pause()
		}
	}

	c.runTick(context.Background(), make(chan struct{}))
	if len(d.dispatched) != 1 || d.dispatched[0] != 1 {
		t.Fatalf("dispatched %v, want only [1]", d.dispatched)
	}
}

func TestStopWinsMidTick(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{}
	c := newTestController(&fakeMatcher{batches: batchOf(1, 2, 3)}, d)
	stopCh := make(chan struct{})
	d.onDispatch = func(id int64) {
		if id == 1 {
			close(stopCh)
		}
	}

	c.runTick(context.Background(), stopCh)
	if len(d.dispatched) != 1 {
		t.Fatalf("dispatched %v, want only the first listing", d.dispatched)
	}
}

func TestPausedControllerSkipsTick(t *testing.T) {
	t.Parallel()
	d := &fakeDispatcher{}
	c := newTestController(&fakeMatcher{batches: batchOf(1)}, d)
	c.Pause()

	if c.Running() {
		t.Fatal("paused controller must not report running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	c.Stop(context.Background())
	cancel()

	if len(d.dispatched) != 0 {
		t.Fatalf("paused controller dispatched %v", d.dispatched)
	}
}

func TestStartReturnsPromptly(t *testing.T) {
	t.Parallel()
	c := newTestController(&fakeMatcher{}, &fakeDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return within 2s")
	}
	c.Stop(context.Background())
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestController(&fakeMatcher{}, &fakeDispatcher{})
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx) // second start is a no-op
	if !c.Running() {
		t.Fatal("controller should be running after Start")
	}
	c.Stop(ctx)
	c.Stop(ctx) // second stop is a no-op
	if c.Running() {
		t.Fatal("controller should not be running after Stop")
	}
}

func TestResumeAfterPause(t *testing.T) {
	t.Parallel()
	c := newTestController(&fakeMatcher{}, &fakeDispatcher{})
	c.Start(context.Background())
	defer c.Stop(context.Background())

	c.Pause()
	if c.Running() {
		t.Fatal("expected paused")
	}
	c.Resume()
	if !c.Running() {
		t.Fatal("expected running after resume")
	}
}
