// Package assign distributes listings to agents and orders to team leads in
// round-robin order.
//
// The cursor is the assignee of the most recent assignment record; the next
// assignee is the one whose id follows the cursor in sorted-id order, wrapping
// at the end. Cursor read and assignment write happen inside one store
// transaction, so sequential calls are strictly fair and concurrent calls
// serialize on the store's single writer.
package assign

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentsearchrs/lviv-pject/internal/model"
	"github.com/rentsearchrs/lviv-pject/internal/storage"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

// ErrNoAssignees is returned when no operator with the required role exists.
// The operation aborts with no partial state change.
var ErrNoAssignees = errors.New("no assignees available")

// Store is the transactional store surface the engine uses.
type Store interface {
	InTx(ctx context.Context, fn func(tx *storage.Tx) error) error
}

type Service struct {
	store Store
	log   logx.Logger
}

func New(store Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, log: log}
}

// nextAfter picks the id following cursor in ids (sorted ascending), wrapping
// to the first id when the cursor is last, unknown, or absent.
func nextAfter(ids []int64, cursor int64, haveCursor bool) int64 {
	if !haveCursor {
		return ids[0]
	}
	for i, id := range ids {
		if id == cursor {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

// AssignListing assigns the listing to the next agent in round-robin order
// and returns the chosen agent id.
func (s *Service) AssignListing(ctx context.Context, listingID int64) (int64, error) {
	var chosen int64
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		ids, err := tx.AgentIDs(ctx, model.RoleAgent)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("assign listing %d: %w", listingID, ErrNoAssignees)
		}
		cursor, ok, err := tx.LastAssignedAgentID(ctx)
		if err != nil {
			return err
		}
		chosen = nextAfter(ids, cursor, ok)
		return tx.SetListingAgent(ctx, listingID, chosen)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("listing assigned", logx.Int64("listing", listingID), logx.Int64("agent", chosen))
	return chosen, nil
}

// AssignOrder assigns one order to the next team lead in round-robin order.
func (s *Service) AssignOrder(ctx context.Context, orderID int64) (int64, error) {
	var chosen int64
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		ids, err := tx.AgentIDs(ctx, model.RoleTeamLead)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("assign order %d: %w", orderID, ErrNoAssignees)
		}
		cursor, ok, err := tx.LastAssignedLeadID(ctx)
		if err != nil {
			return err
		}
		chosen = nextAfter(ids, cursor, ok)
		return tx.SetOrderLead(ctx, orderID, chosen)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("order assigned", logx.Int64("order", orderID), logx.Int64("lead", chosen))
	return chosen, nil
}

// DistributeOrders assigns every unassigned order, continuing the cycle from
// the current cursor. Returns the number of orders assigned.
func (s *Service) DistributeOrders(ctx context.Context) (int, error) {
	assigned := 0
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		orders, err := tx.UnassignedOrderIDs(ctx)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		ids, err := tx.AgentIDs(ctx, model.RoleTeamLead)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("distribute orders: %w", ErrNoAssignees)
		}
		cursor, ok, err := tx.LastAssignedLeadID(ctx)
		if err != nil {
			return err
		}
		for _, orderID := range orders {
			next := nextAfter(ids, cursor, ok)
			if err := tx.SetOrderLead(ctx, orderID, next); err != nil {
				return err
			}
			cursor, ok = next, true
			assigned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if assigned > 0 {
		s.log.Info("orders distributed", logx.Int("count", assigned))
	}
	return assigned, nil
}
