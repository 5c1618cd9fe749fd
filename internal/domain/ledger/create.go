package ledger

import (
	"context"
	"fmt"

	"merchledger/internal/core/apperror"
	appctx "merchledger/internal/core/context"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/stock"
)

type createOptions struct {
	// skipPreconditions is set for documents spawned from an approved
	// internal order, whose stock was checked when the order was created.
	skipPreconditions bool
}

// create numbers, checks, applies and persists one document inside the
// caller's transaction.
func (m *Mutator) create(ctx context.Context, u *unit, policy Policy, payload Payload, opts createOptions) (*documents.Document, error) {
	number, err := m.numbers.Next(ctx, policy.Prefix, policy.Numbering)
	if err != nil {
		return nil, fmt.Errorf("resolve document number: %w", err)
	}

	doc := documents.New(policy.Kind)
	doc.Number = number
	doc.CreatedBy = appctx.GetActor(ctx)
	doc.Comment = payload.Comment
	doc.WarehouseID = payload.WarehouseID
	doc.DestinationWarehouseID = payload.DestinationWarehouseID
	doc.CounterpartyID = payload.CounterpartyID
	doc.SourceDocumentID = payload.SourceDocumentID

	source, err := m.loadSource(ctx, policy, payload.SourceDocumentID)
	if err != nil {
		return nil, err
	}

	for _, item := range payload.Items {
		if err := m.applyLine(ctx, u, policy, doc, source, item, opts); err != nil {
			return nil, err
		}
	}

	if err := m.afterLines(ctx, u, doc, source, payload); err != nil {
		return nil, err
	}

	if err := m.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist %s: %w", doc.Number, err)
	}
	return doc, nil
}

func (m *Mutator) loadSource(ctx context.Context, policy Policy, sourceID *id.ID) (*documents.Document, error) {
	if sourceID == nil {
		return nil, nil
	}
	src, err := m.docs.GetForUpdate(ctx, *sourceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("source document does not exist").
				WithDetail("source_document_id", sourceID.String())
		}
		return nil, err
	}
	if src.DeletionMark {
		return nil, apperror.NewValidation("source document is deleted").
			WithDetail("source_document_id", sourceID.String())
	}
	if policy.Source != "" {
		if err := src.RequireKind(policy.Source); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func (m *Mutator) applyLine(ctx context.Context, u *unit, policy Policy, doc, source *documents.Document, item ItemInput, opts createOptions) error {
	lineNo := len(doc.Items) + 1

	rec, err := m.stock.Load(ctx, item.ProductID)
	if err != nil {
		return err
	}

	line := documents.LineItem{
		ProductID:       rec.ProductID,
		WarehouseID:     item.WarehouseID,
		CostPriceAtTime: rec.CostPrice,
	}
	if policy.RequiresSourceWarehouse {
		line.WarehouseID = nil
	}

	if policy.Counted {
		counted := rec.UnitType.Normalize(*item.CountedQuantity)
		line.CountedQuantity = &counted
		line.Quantity = types.Zero()
		line.UnitPrice = rec.CostPrice
		doc.AddLine(line)
		return nil
	}

	qty := rec.UnitType.Normalize(item.Quantity)
	if !qty.IsPositive() {
		return apperror.NewValidation(fmt.Sprintf("line %d: quantity rounds to zero for a discrete product", lineNo)).
			WithDetail("line", lineNo).
			WithDetail("product_id", rec.ProductID.String())
	}
	line.Quantity = qty
	line.UnitPrice = unitPrice(policy, rec, item)

	var invoiced *documents.LineItem
	if policy.Precondition == CheckReturnLimit && source != nil {
		invoiced = findLine(source, rec.ProductID)
		if invoiced != nil {
			if !item.UnitPrice.IsPositive() {
				line.UnitPrice = invoiced.UnitPrice
			}
			line.CostPriceAtTime = invoiced.CostPriceAtTime
			if line.WarehouseID == nil && doc.WarehouseID == nil {
				line.WarehouseID = source.LineWarehouse(invoiced)
			}
		}
	}
	if policy.Reweights {
		line.CostPriceAtTime = line.UnitPrice
	}

	warehouse := doc.LineWarehouse(&line)

	if !opts.skipPreconditions {
		switch policy.Precondition {
		case CheckStock:
			if err := stock.RequireQuantity(rec, warehouse, lineNo, qty); err != nil {
				return err
			}
		case CheckOversell:
			if available := rec.QuantityAt(warehouse); available.LessThan(qty) {
				u.warn("line %d (%s): available %s, requested %s", lineNo, rec.Name, available, qty)
				line.CostPricePending = policy.MarksPendingCost
			}
		case CheckReturnLimit:
			if err := m.checkReturnLimit(ctx, doc, source, invoiced, lineNo, qty); err != nil {
				return err
			}
		}
	}

	if err := m.applyEffect(ctx, u, policy, rec, warehouse, &line); err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}

	doc.AddLine(line)
	return nil
}

func (m *Mutator) applyEffect(ctx context.Context, u *unit, policy Policy, rec *stock.Record, warehouse *id.ID, line *documents.LineItem) error {
	switch policy.Effect {
	case EffectIncrease:
		if warehouse == nil && len(rec.StockByWarehouse) > 0 {
			warehouse = &rec.StockByWarehouse[0].WarehouseID
		}
		if policy.Reweights {
			if _, err := m.costing.ReceiveStock(ctx, rec.ProductID, line.Quantity, line.UnitPrice); err != nil {
				return err
			}
		}
		if err := m.stock.Increase(ctx, rec.ProductID, warehouse, line.Quantity); err != nil {
			return err
		}
		if policy.SweepsCost {
			u.needsSweep(rec.ProductID)
		}
	case EffectDecrease:
		return m.stock.Decrease(ctx, rec.ProductID, warehouse, line.Quantity)
	case EffectDecreaseOversell:
		if warehouse == nil {
			_, err := m.stock.DecreaseDistributed(ctx, rec, line.Quantity)
			return err
		}
		return m.stock.DecreaseAllowingOversell(ctx, rec.ProductID, warehouse, line.Quantity)
	case EffectDecreaseDistributed:
		if warehouse != nil {
			return m.stock.Decrease(ctx, rec.ProductID, warehouse, line.Quantity)
		}
		_, err := m.stock.DecreaseDistributed(ctx, rec, line.Quantity)
		return err
	}
	return nil
}

// checkReturnLimit caps what has been returned against an invoice, this
// document included, at the invoiced quantity of the product.
func (m *Mutator) checkReturnLimit(ctx context.Context, doc, invoice *documents.Document, invoiced *documents.LineItem, lineNo int, qty types.Quantity) error {
	if invoiced == nil {
		return apperror.NewPrecondition(fmt.Sprintf("line %d: product was not invoiced", lineNo)).
			WithDetail("line", lineNo).
			WithDetail("invoice_id", invoice.ID.String())
	}
	productID := invoiced.ProductID

	prior, err := m.docs.List(ctx, documents.ListFilter{
		Kind:             documents.KindCustomerReturn,
		SourceDocumentID: &invoice.ID,
	})
	if err != nil {
		return fmt.Errorf("load previous returns: %w", err)
	}

	returned := doc.QuantityOf(productID)
	for _, r := range prior.Items {
		returned = returned.Add(r.QuantityOf(productID))
	}

	limit := invoice.QuantityOf(productID)
	if returned.Add(qty).GreaterThan(limit) {
		return apperror.NewPrecondition(fmt.Sprintf("line %d: returned quantity exceeds invoiced quantity", lineNo)).
			WithDetail("line", lineNo).
			WithDetail("product_id", productID.String()).
			WithDetail("invoiced", limit.String()).
			WithDetail("already_returned", returned.String()).
			WithDetail("requested", qty.String())
	}
	return nil
}

// afterLines runs kind-specific steps that touch documents other than the new one.
func (m *Mutator) afterLines(ctx context.Context, u *unit, doc, source *documents.Document, payload Payload) error {
	switch doc.Kind {
	case documents.KindShipment:
		if source == nil {
			return nil
		}
		if err := m.reservations.Fulfill(ctx, source); err != nil {
			return err
		}
		return m.docs.Update(ctx, source)
	case documents.KindCustomerOrder:
		if !payload.Reserve {
			return nil
		}
		warnings, err := m.reservations.Reserve(ctx, doc)
		if err != nil {
			return err
		}
		u.warnings = append(u.warnings, warnings...)
	}
	return nil
}

func unitPrice(policy Policy, rec *stock.Record, item ItemInput) types.Money {
	if item.UnitPrice.IsPositive() {
		return item.UnitPrice
	}
	if policy.PricedAtCost {
		return rec.CostPrice
	}
	return rec.SellingPrice
}

func findLine(doc *documents.Document, productID id.ID) *documents.LineItem {
	for i := range doc.Items {
		if doc.Items[i].ProductID == productID {
			return &doc.Items[i]
		}
	}
	return nil
}
