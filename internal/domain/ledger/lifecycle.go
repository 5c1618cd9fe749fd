package ledger

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/domain/documents"
	"merchledger/pkg/logger"
)

// Transition moves a document to status to and applies the effects bound to
// that step: completing a transfer moves stock, approving an internal order
// spawns a transfer, confirming an inventory count spawns a write-off and a
// warehouse receipt. Order statuses go through the reservation manager.
func (m *Mutator) Transition(ctx context.Context, docID id.ID, to documents.Status) (*Result, error) {
	return m.changeStatus(ctx, docID, to, "")
}

// ReserveOrder places the soft hold of a pending customer order.
func (m *Mutator) ReserveOrder(ctx context.Context, orderID id.ID) (*Result, error) {
	return m.changeStatus(ctx, orderID, documents.StatusConfirmed, documents.KindCustomerOrder)
}

// UnreserveOrder drops the hold of a reserved order.
func (m *Mutator) UnreserveOrder(ctx context.Context, orderID id.ID) (*Result, error) {
	return m.changeStatus(ctx, orderID, documents.StatusPending, documents.KindCustomerOrder)
}

// changeStatus runs a transition; a non-empty kind restricts it to documents of that kind.
func (m *Mutator) changeStatus(ctx context.Context, docID id.ID, to documents.Status, kind documents.Kind) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ledger.transition",
		trace.WithAttributes(
			attribute.String("document.id", docID.String()),
			attribute.String("document.status", string(to)),
		))
	defer span.End()

	u := &unit{}
	doc, err := m.mutateDocument(ctx, docID, func(ctx context.Context, doc *documents.Document) error {
		if kind != "" {
			if err := doc.RequireKind(kind); err != nil {
				return err
			}
		}
		if !documents.KnownStatus(doc.Kind, to) {
			return apperror.NewInvalidTransition(string(doc.Kind), string(doc.Status), string(to))
		}
		return m.transition(ctx, u, doc, to)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}
	return m.finish(ctx, "document status changed", doc, u), nil
}

// DeleteOrder marks a customer order deleted, releasing its reservation in the
// same transaction. The order keeps its number.
func (m *Mutator) DeleteOrder(ctx context.Context, orderID id.ID) error {
	doc, err := m.mutateDocument(ctx, orderID, func(ctx context.Context, doc *documents.Document) error {
		return m.reservations.Discard(ctx, doc)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "order deleted", "id", doc.ID, "number", doc.Number)
	return nil
}

func (m *Mutator) mutateDocument(ctx context.Context, docID id.ID, fn func(ctx context.Context, doc *documents.Document) error) (*documents.Document, error) {
	var doc *documents.Document
	err := m.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = m.docs.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if err := fn(ctx, doc); err != nil {
			return err
		}
		return m.docs.Update(ctx, doc)
	})
	return doc, err
}

func (m *Mutator) transition(ctx context.Context, u *unit, doc *documents.Document, to documents.Status) error {
	switch doc.Kind {
	case documents.KindCustomerOrder:
		return m.transitionOrder(ctx, u, doc, to)

	case documents.KindWarehouseTransfer:
		if err := doc.Transition(to); err != nil {
			return err
		}
		if to == documents.StatusCompleted {
			return m.completeTransfer(ctx, doc)
		}
		return nil

	case documents.KindInternalOrder:
		if err := doc.Transition(to); err != nil {
			return err
		}
		if to == documents.StatusApproved {
			return m.spawnTransfer(ctx, u, doc)
		}
		return nil

	case documents.KindInventoryCount:
		if err := doc.Transition(to); err != nil {
			return err
		}
		if to == documents.StatusConfirmed {
			return m.confirmCount(ctx, u, doc)
		}
		return nil
	}
	return doc.Transition(to)
}

func (m *Mutator) transitionOrder(ctx context.Context, u *unit, order *documents.Document, to documents.Status) error {
	switch to {
	case documents.StatusConfirmed:
		warnings, err := m.reservations.Reserve(ctx, order)
		if err != nil {
			return err
		}
		u.warnings = append(u.warnings, warnings...)
		return nil
	case documents.StatusPending:
		return m.reservations.Unreserve(ctx, order)
	case documents.StatusFulfilled:
		return m.reservations.Fulfill(ctx, order)
	case documents.StatusCancelled:
		return m.reservations.Cancel(ctx, order)
	}
	return apperror.NewInvalidTransition(string(order.Kind), string(order.Status), string(to))
}

// completeTransfer takes the goods out of the source warehouse and credits
// the destination, if any. Stock is not re-checked here.
func (m *Mutator) completeTransfer(ctx context.Context, doc *documents.Document) error {
	if doc.WarehouseID == nil {
		return apperror.NewValidation("transfer has no source warehouse").
			WithDetail("document_id", doc.ID.String())
	}
	for _, line := range doc.Items {
		if _, err := m.stock.Load(ctx, line.ProductID); err != nil {
			return err
		}
		if err := m.stock.Move(ctx, line.ProductID, *doc.WarehouseID, doc.DestinationWarehouseID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mutator) spawnTransfer(ctx context.Context, u *unit, order *documents.Document) error {
	payload := Payload{
		WarehouseID:            order.WarehouseID,
		DestinationWarehouseID: order.DestinationWarehouseID,
		SourceDocumentID:       &order.ID,
		Comment:                "internal order " + order.Number,
	}
	for _, line := range order.Items {
		payload.Items = append(payload.Items, ItemInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	transfer, err := m.create(ctx, u, m.policies[documents.KindWarehouseTransfer], payload, createOptions{skipPreconditions: true})
	if err != nil {
		return err
	}
	u.spawned = append(u.spawned, transfer)
	return nil
}

// confirmCount records book quantities and books the differences: a write-off
// for shortages and a warehouse receipt at current cost for surpluses.
func (m *Mutator) confirmCount(ctx context.Context, u *unit, count *documents.Document) error {
	var shortages, surpluses []ItemInput
	for i := range count.Items {
		line := &count.Items[i]
		if line.CountedQuantity == nil {
			continue
		}
		rec, err := m.stock.Load(ctx, line.ProductID)
		if err != nil {
			return err
		}
		book := rec.QuantityAt(count.WarehouseID)
		line.BookQuantity = &book

		diff := line.CountedQuantity.Sub(book)
		item := ItemInput{ProductID: line.ProductID, UnitPrice: rec.CostPrice}
		switch {
		case diff.IsNegative():
			item.Quantity = diff.Neg()
			shortages = append(shortages, item)
		case diff.IsPositive():
			item.Quantity = diff
			surpluses = append(surpluses, item)
		}
	}

	spawn := func(kind documents.Kind, items []ItemInput) error {
		if len(items) == 0 {
			return nil
		}
		doc, err := m.create(ctx, u, m.policies[kind], Payload{
			Items:            items,
			WarehouseID:      count.WarehouseID,
			SourceDocumentID: &count.ID,
			Comment:          "inventory count " + count.Number,
		}, createOptions{})
		if err != nil {
			return err
		}
		u.spawned = append(u.spawned, doc)
		return nil
	}

	if err := spawn(documents.KindWriteoff, shortages); err != nil {
		return err
	}
	return spawn(documents.KindWarehouseReceipt, surpluses)
}
