package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/model"
)

const listingCols = `id, deal_type, object_type, title, price, location, description,
	owner, rooms, floor, square, phone, url, status, sending_lock, sent_to_broadcast,
	last_posted_channel_id, last_posted_at, agent_id, scraped_at`

func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	var (
		l        model.Listing
		status   string
		lock     int
		sent     int
		postedAt sql.NullString
		agentID  sql.NullInt64
		scraped  string
	)
	err := row.Scan(&l.ID, &l.DealType, &l.ObjectType, &l.Title, &l.Price, &l.Location,
		&l.Description, &l.Owner, &l.Rooms, &l.Floor, &l.Square, &l.Phone, &l.URL,
		&status, &lock, &sent, &l.LastPostedChannelID, &postedAt, &agentID, &scraped)
	if err != nil {
		return nil, err
	}
	l.Status = model.Status(status)
	l.SendingLock = lock != 0
	l.SentToBroadcast = sent != 0
	if postedAt.Valid && postedAt.String != "" {
		t := parseTime(postedAt.String)
		l.LastPostedAt = &t
	}
	if agentID.Valid {
		id := agentID.Int64
		l.AgentID = &id
	}
	l.ScrapedAt = parseTime(scraped)
	return &l, nil
}

// Listing loads one listing with its media, ordered by position.
func (s *Store) Listing(ctx context.Context, id int64) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingCols+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if l.Media, err = s.listingMedia(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) listingMedia(ctx context.Context, listingID int64) ([]model.MediaFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, url, content_type, position
		 FROM media WHERE listing_id = ? ORDER BY position, id`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MediaFile
	for rows.Next() {
		var m model.MediaFile
		if err := rows.Scan(&m.ID, &m.ListingID, &m.URL, &m.ContentType, &m.Position); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertListing inserts the listing or updates it in place when a record with
// the same URL already exists (ingestion collaborator contract). Dispatch
// bookkeeping columns are never touched by the upsert.
func (s *Store) UpsertListing(ctx context.Context, l *model.Listing) (int64, error) {
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (deal_type, object_type, title, price, location, description,
			owner, rooms, floor, square, phone, url, status, scraped_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(url) DO UPDATE SET
			deal_type=excluded.deal_type, object_type=excluded.object_type,
			title=excluded.title, price=excluded.price, location=excluded.location,
			description=excluded.description, owner=excluded.owner, rooms=excluded.rooms,
			floor=excluded.floor, square=excluded.square, phone=excluded.phone,
			scraped_at=excluded.scraped_at`,
		l.DealType, l.ObjectType, l.Title, l.Price, l.Location, l.Description,
		l.Owner, l.Rooms, l.Floor, l.Square, l.Phone, l.URL, string(l.Status), timeStr(l.ScrapedAt))
	if err != nil {
		return 0, err
	}
	// Resolve by URL: LastInsertId is not meaningful on the conflict-update path.
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM listings WHERE url = ?`, l.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert listing %q: %w", l.URL, err)
	}
	return id, nil
}

// AddMedia appends a media file for a listing.
func (s *Store) AddMedia(ctx context.Context, m model.MediaFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (listing_id, url, content_type, position) VALUES (?,?,?,?)`,
		m.ListingID, m.URL, m.ContentType, m.Position)
	return err
}

// SetListingStatus moves a listing to a new lifecycle status.
func (s *Store) SetListingStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	return nil
}

// MatchCandidates returns listings passing the channel's category base filter
// and the exact deal/object match. Price and location rules are applied by the
// matching engine on top of this set.
func (s *Store) MatchCandidates(ctx context.Context, ch model.Channel) ([]model.Listing, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch ch.Category {
	case model.CategoryBroadcast:
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+listingCols+` FROM listings
			 WHERE (status IS NULL OR status = '') AND sent_to_broadcast = 0
			   AND deal_type = ? AND object_type = ?
			 ORDER BY id`, ch.DealType, ch.ObjectType)
	case model.CategorySuccessful:
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+listingCols+` FROM listings
			 WHERE status = ? AND last_posted_channel_id <> ?
			   AND deal_type = ? AND object_type = ?
			 ORDER BY id`, string(model.StatusSuccessful), ch.ChatID, ch.DealType, ch.ObjectType)
	default:
		return nil, fmt.Errorf("channel %d: unknown category %q", ch.ID, ch.Category)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// CountPostedSince counts listings whose last posting happened at or after t.
func (s *Store) CountPostedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE last_posted_at IS NOT NULL AND last_posted_at >= ?`,
		timeStr(t)).Scan(&n)
	return n, err
}

// SuccessfulListings returns all listings currently in the successful status.
func (s *Store) SuccessfulListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingCols+` FROM listings WHERE status = ? ORDER BY id`,
		string(model.StatusSuccessful))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// RecentURLs returns the URLs of listings scraped at or after the cutoff.
// The relevance sweep compares the successful set against it.
func (s *Store) RecentURLs(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url FROM listings WHERE scraped_at >= ?`, timeStr(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out[u] = struct{}{}
	}
	return out, rows.Err()
}
