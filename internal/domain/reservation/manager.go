// Package reservation tracks soft holds that customer orders place on stock.
package reservation

import (
	"context"
	"fmt"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/stock"
)

// Stock is the part of the stock service reservations need.
type Stock interface {
	Load(ctx context.Context, productID id.ID) (*stock.Record, error)
	Reserve(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error
	Release(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error
}

// Manager drives the reservation side of the customer order state machine:
//
//	pending -> reserve -> confirmed -> unreserve -> pending
//	confirmed -> shipment -> fulfilled
//	any -> cancelled
//
// It runs inside the caller's transaction and never takes locks of its own.
type Manager struct {
	stock Stock
}

// NewManager creates a reservation manager.
func NewManager(stock Stock) *Manager {
	return &Manager{stock: stock}
}

// Reserve holds the order's quantities and confirms it. Holding more than is
// available is allowed; each shortfall becomes a warning.
func (m *Manager) Reserve(ctx context.Context, order *documents.Document) ([]string, error) {
	if err := order.RequireKind(documents.KindCustomerOrder); err != nil {
		return nil, err
	}
	if order.Reserved {
		return nil, apperror.NewPrecondition("order is already reserved").
			WithDetail("order_id", order.ID.String())
	}
	if err := documents.CheckTransition(order.Kind, order.Status, documents.StatusConfirmed); err != nil {
		return nil, err
	}

	var warnings []string
	for i := range order.Items {
		line := &order.Items[i]
		rec, err := m.stock.Load(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		available := rec.Available()
		if available.LessThan(line.Quantity) {
			warnings = append(warnings, fmt.Sprintf("line %d (%s): available %s, requested %s",
				line.LineNo, rec.Name, available, line.Quantity))
		}
		if err := m.stock.Reserve(ctx, line.ProductID, order.LineWarehouse(line), line.Quantity); err != nil {
			return nil, fmt.Errorf("reserve line %d: %w", line.LineNo, err)
		}
	}

	order.Reserved = true
	if err := order.Transition(documents.StatusConfirmed); err != nil {
		return nil, err
	}
	return warnings, nil
}

// Unreserve drops the order's holds and returns it to pending.
func (m *Manager) Unreserve(ctx context.Context, order *documents.Document) error {
	if err := order.RequireKind(documents.KindCustomerOrder); err != nil {
		return err
	}
	if !order.Reserved {
		return apperror.NewPrecondition("order is not reserved").
			WithDetail("order_id", order.ID.String())
	}
	if err := documents.CheckTransition(order.Kind, order.Status, documents.StatusPending); err != nil {
		return err
	}
	if err := m.release(ctx, order); err != nil {
		return err
	}
	return order.Transition(documents.StatusPending)
}

// Fulfill releases the holds of a confirmed order once its goods have shipped.
func (m *Manager) Fulfill(ctx context.Context, order *documents.Document) error {
	if err := order.RequireKind(documents.KindCustomerOrder); err != nil {
		return err
	}
	if err := documents.CheckTransition(order.Kind, order.Status, documents.StatusFulfilled); err != nil {
		return err
	}
	if order.Reserved {
		if err := m.release(ctx, order); err != nil {
			return err
		}
	}
	return order.Transition(documents.StatusFulfilled)
}

// Cancel releases any holds and cancels the order.
func (m *Manager) Cancel(ctx context.Context, order *documents.Document) error {
	if err := order.RequireKind(documents.KindCustomerOrder); err != nil {
		return err
	}
	if err := documents.CheckTransition(order.Kind, order.Status, documents.StatusCancelled); err != nil {
		return err
	}
	if order.Reserved {
		if err := m.release(ctx, order); err != nil {
			return err
		}
	}
	return order.Transition(documents.StatusCancelled)
}

// Discard prepares an order for deletion, releasing its holds if it has any.
func (m *Manager) Discard(ctx context.Context, order *documents.Document) error {
	if err := order.RequireKind(documents.KindCustomerOrder); err != nil {
		return err
	}
	if err := order.CanModify(); err != nil {
		return err
	}
	if order.Reserved {
		if err := m.release(ctx, order); err != nil {
			return err
		}
	}
	order.MarkDeleted()
	order.Touch()
	return nil
}

func (m *Manager) release(ctx context.Context, order *documents.Document) error {
	for i := range order.Items {
		line := &order.Items[i]
		if _, err := m.stock.Load(ctx, line.ProductID); err != nil {
			return err
		}
		if err := m.stock.Release(ctx, line.ProductID, order.LineWarehouse(line), line.Quantity); err != nil {
			return fmt.Errorf("release line %d: %w", line.LineNo, err)
		}
	}
	order.Reserved = false
	return nil
}
