package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rentsearchrs/lviv-pject/internal/model"
)

// Channels returns all configured channels.
func (s *Store) Channels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, deal_type, object_type, chat_id, price_from, price_to, location_type
		 FROM channels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		var (
			ch       model.Channel
			category string
			locType  string
			from, to sql.NullInt64
		)
		if err := rows.Scan(&ch.ID, &category, &ch.DealType, &ch.ObjectType, &ch.ChatID,
			&from, &to, &locType); err != nil {
			return nil, err
		}
		if ch.Category, err = model.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
		}
		if ch.LocationType, err = model.ParseLocationType(locType); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
		}
		if from.Valid {
			v := int(from.Int64)
			ch.PriceFrom = &v
		}
		if to.Valid {
			v := int(to.Int64)
			ch.PriceTo = &v
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// AddChannel registers a channel and returns its id.
func (s *Store) AddChannel(ctx context.Context, ch model.Channel) (int64, error) {
	var from, to any
	if ch.PriceFrom != nil {
		from = *ch.PriceFrom
	}
	if ch.PriceTo != nil {
		to = *ch.PriceTo
	}
	lt := ch.LocationType
	if lt == "" {
		lt = model.LocationAll
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (category, deal_type, object_type, chat_id, price_from, price_to, location_type)
		 VALUES (?,?,?,?,?,?,?)`,
		string(ch.Category), ch.DealType, ch.ObjectType, ch.ChatID, from, to, string(lt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteChannel removes a channel.
func (s *Store) DeleteChannel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return nil
}

// TemplateByName resolves a template.
func (s *Store) TemplateByName(ctx context.Context, name string) (*model.Template, error) {
	var t model.Template
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, body FROM templates WHERE name = ?`, name).
		Scan(&t.ID, &t.Name, &t.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTemplate creates or replaces a template body by name.
func (s *Store) UpsertTemplate(ctx context.Context, name, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (name, body) VALUES (?,?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body`, name, body)
	return err
}
