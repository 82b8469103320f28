package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rentsearchrs/lviv-pject/internal/model"
)

// AddAgent registers an operator and returns its id.
func (s *Store) AddAgent(ctx context.Context, a model.Agent) (int64, error) {
	var lead any
	if a.TeamLeadID != nil {
		lead = *a.TeamLeadID
	}
	role := a.Role
	if role == "" {
		role = model.RoleAgent
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (username, name, role, team_lead_id) VALUES (?,?,?,?)`,
		a.Username, a.Name, string(role), lead)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AddOrder stores a client order and returns its id.
func (s *Store) AddOrder(ctx context.Context, o model.Order) (int64, error) {
	var listing, lead any
	if o.ListingID != nil {
		listing = *o.ListingID
	}
	if o.TeamLeadID != nil {
		lead = *o.TeamLeadID
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (name, phone, username, wishes, budget, district, rooms, listing_id, team_lead_id, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		o.Name, o.Phone, o.Username, o.Wishes, o.Budget, o.District, o.Rooms, listing, lead, timeStr(o.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Order loads one order.
func (s *Store) Order(ctx context.Context, id int64) (*model.Order, error) {
	var (
		o       model.Order
		listing sql.NullInt64
		lead    sql.NullInt64
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, username, wishes, budget, district, rooms, listing_id, team_lead_id, created_at
		 FROM orders WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &o.Phone, &o.Username, &o.Wishes, &o.Budget, &o.District,
			&o.Rooms, &listing, &lead, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if listing.Valid {
		v := listing.Int64
		o.ListingID = &v
	}
	if lead.Valid {
		v := lead.Int64
		o.TeamLeadID = &v
	}
	o.CreatedAt = parseTime(created)
	return &o, nil
}

// ---- transactional primitives used by the assignment engine ----
//
// The round-robin cursor is derived from the most recent assignment record.
// Reading the cursor and writing the assignment happen inside one write
// transaction (see assign.Service), so sequential fairness holds and
// concurrent calls serialize on the store's single writer.

// AgentIDs returns ids of all operators with the given role, sorted ascending.
func (t *Tx) AgentIDs(ctx context.Context, role model.Role) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM agents WHERE role = ? ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LastAssignedAgentID returns the agent id of the most recently assigned
// listing (the round-robin cursor), ok=false when nothing was assigned yet.
func (t *Tx) LastAssignedAgentID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT agent_id FROM listings WHERE agent_id IS NOT NULL ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LastAssignedLeadID returns the team lead id of the most recently assigned
// order, ok=false when nothing was assigned yet.
func (t *Tx) LastAssignedLeadID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT team_lead_id FROM orders WHERE team_lead_id IS NOT NULL ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// SetListingAgent assigns a listing to an agent.
func (t *Tx) SetListingAgent(ctx context.Context, listingID, agentID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE listings SET agent_id = ? WHERE id = ?`, agentID, listingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
	}
	return nil
}

// SetOrderLead assigns an order to a team lead.
func (t *Tx) SetOrderLead(ctx context.Context, orderID, leadID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET team_lead_id = ? WHERE id = ?`, leadID, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return nil
}

// UnassignedOrderIDs lists orders without a team lead, oldest first.
func (t *Tx) UnassignedOrderIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM orders WHERE team_lead_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkNotRelevant moves the given listings to the not_relevant status.
func (s *Store) MarkNotRelevant(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.InTx(ctx, func(tx *Tx) error {
		for _, id := range ids {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE listings SET status = ? WHERE id = ?`,
				string(model.StatusNotRelevant), id); err != nil {
				return err
			}
		}
		return nil
	})
}
