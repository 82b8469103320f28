package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

// Bookkeeping is the state update applied together with a lock release.
type Bookkeeping struct {
	// MarkBroadcastSent ORs sent_to_broadcast to true. The column is
	// monotonic: nothing ever resets it.
	MarkBroadcastSent bool

	// PostedChannelID/PostedAt record a confirmed posting to a successful-
	// category channel. Empty/nil leaves the previous values in place.
	PostedChannelID string
	PostedAt        *time.Time
}

// TryAcquireSendLock attempts to take the per-listing dispatch lock.
//
// Within one transaction it reads sending_lock with the store-wide write lock
// held (SQLite write transactions are exclusive) and sets it if clear.
// Returns (false, nil) when the listing is already in flight — a benign skip,
// not an error. A failed transaction counts as "not acquired" and leaves the
// prior state intact.
func (s *Store) TryAcquireSendLock(ctx context.Context, listingID int64) (bool, error) {
	acquired := false
	err := s.InTx(ctx, func(tx *Tx) error {
		var locked int
		err := tx.tx.QueryRowContext(ctx,
			`SELECT sending_lock FROM listings WHERE id = ?`, listingID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if locked != 0 {
			return nil
		}
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE listings SET sending_lock = 1 WHERE id = ? AND sending_lock = 0`, listingID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		acquired = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// ReleaseSendLock clears the dispatch lock and applies the bookkeeping update
// in one transaction. It must run on every exit path of the delivery
// pipeline; a listing is never left locked after a finished dispatch.
func (s *Store) ReleaseSendLock(ctx context.Context, listingID int64, bk Bookkeeping) error {
	err := s.InTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `UPDATE listings SET sending_lock = 0 WHERE id = ?`, listingID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
		}
		if bk.MarkBroadcastSent {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE listings SET sent_to_broadcast = 1 WHERE id = ?`, listingID); err != nil {
				return err
			}
		}
		if bk.PostedChannelID != "" && bk.PostedAt != nil {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE listings SET last_posted_channel_id = ?, last_posted_at = ? WHERE id = ?`,
				bk.PostedChannelID, timeStr(*bk.PostedAt), listingID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("release send lock failed", logx.Int64("listing", listingID), logx.Err(err))
	}
	return err
}
