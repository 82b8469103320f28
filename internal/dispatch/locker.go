package dispatch

import (
	"context"

	"github.com/rentsearchrs/lviv-pject/internal/storage"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

// LockStore is the store subset backing the lock manager.
type LockStore interface {
	TryAcquireSendLock(ctx context.Context, listingID int64) (bool, error)
	ReleaseSendLock(ctx context.Context, listingID int64, bk storage.Bookkeeping) error
}

// Locker guards against concurrent dispatch of the same listing across
// overlapping scheduler ticks and manual triggers.
type Locker struct {
	store LockStore
	log   logx.Logger
}

func NewLocker(store LockStore, log logx.Logger) *Locker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Locker{store: store, log: log}
}

// Acquire takes the dispatch lock. ErrAlreadyInFlight means another caller
// holds it; any other error is a store failure and counts as not-acquired.
func (l *Locker) Acquire(ctx context.Context, listingID int64) error {
	ok, err := l.store.TryAcquireSendLock(ctx, listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyInFlight
	}
	return nil
}

// Release clears the lock and applies the accumulated bookkeeping. It is
// called on every pipeline exit path; cancellation of the dispatch context
// must not leave the listing locked, so the release itself is not cancelable.
func (l *Locker) Release(ctx context.Context, listingID int64, bk storage.Bookkeeping) error {
	return l.store.ReleaseSendLock(context.WithoutCancel(ctx), listingID, bk)
}
