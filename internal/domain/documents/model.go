package documents

import (
	"merchledger/internal/core/apperror"
	"merchledger/internal/core/entity"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
)

// Document is a stock-affecting business document of any kind.
// Fields that do not apply to a kind stay empty.
type Document struct {
	entity.Document

	Kind   Kind   `db:"kind" json:"kind"`
	Status Status `db:"status" json:"status"`

	// WarehouseID is the warehouse of the document; the source for transfers and internal orders.
	WarehouseID *id.ID `db:"warehouse_id" json:"warehouseId,omitempty"`
	// DestinationWarehouseID is the receiving side of transfers and internal orders.
	DestinationWarehouseID *id.ID `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`
	// CounterpartyID is the customer or supplier.
	CounterpartyID *id.ID `db:"counterparty_id" json:"counterpartyId,omitempty"`
	// SourceDocumentID links returns to invoices, shipments to orders and spawned documents to their origin.
	SourceDocumentID *id.ID `db:"source_document_id" json:"sourceDocumentId,omitempty"`

	// Reserved is set while a customer order holds stock.
	Reserved bool `db:"reserved" json:"reserved"`
	// IsMinusCorrection marks an invoice whose oversold lines were re-costed. Never cleared.
	IsMinusCorrection bool `db:"is_minus_correction" json:"isMinusCorrection"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	TotalCost   types.Money `db:"total_cost" json:"totalCost"`

	Items []LineItem `db:"-" json:"items"`
}

// LineItem is one product line of a document.
type LineItem struct {
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	// UnitPrice is the selling price on sales documents and the purchase cost on inbound ones.
	UnitPrice       types.Money `db:"unit_price" json:"unitPrice"`
	CostPriceAtTime types.Money `db:"cost_price_at_time" json:"costPriceAtTime"`
	Total           types.Money `db:"total" json:"total"`
	WarehouseID     *id.ID      `db:"warehouse_id" json:"warehouseId,omitempty"`

	// CostPricePending marks an oversold invoice line recorded at a stale cost.
	CostPricePending bool `db:"cost_price_pending" json:"costPricePending"`

	// CountedQuantity and BookQuantity are used by inventory counts.
	CountedQuantity *types.Quantity `db:"counted_quantity" json:"countedQuantity,omitempty"`
	BookQuantity    *types.Quantity `db:"book_quantity" json:"bookQuantity,omitempty"`
}

// New creates an empty document of kind k in its initial status.
func New(k Kind) *Document {
	return &Document{
		Document:    entity.NewDocument(),
		Kind:        k,
		Status:      InitialStatus(k),
		TotalAmount: types.Zero(),
		TotalCost:   types.Zero(),
	}
}

// AddLine appends a line and refreshes its total and the document totals.
func (d *Document) AddLine(item LineItem) *LineItem {
	item.LineNo = len(d.Items) + 1
	item.Total = item.Quantity.Mul(item.UnitPrice)
	d.Items = append(d.Items, item)
	d.RecalculateTotals()
	return &d.Items[len(d.Items)-1]
}

// RecalculateTotals sums line totals and line costs.
func (d *Document) RecalculateTotals() {
	amount, cost := types.Zero(), types.Zero()
	for i := range d.Items {
		line := &d.Items[i]
		line.Total = line.Quantity.Mul(line.UnitPrice)
		amount = amount.Add(line.Total)
		cost = cost.Add(line.Quantity.Mul(line.CostPriceAtTime))
	}
	d.TotalAmount = amount
	d.TotalCost = cost
}

// LineWarehouse returns the warehouse a line moves stock in: its own, or the header's.
func (d *Document) LineWarehouse(line *LineItem) *id.ID {
	if line.WarehouseID != nil {
		return line.WarehouseID
	}
	return d.WarehouseID
}

// QuantityOf sums the quantity of all lines for productID.
func (d *Document) QuantityOf(productID id.ID) types.Quantity {
	total := types.Zero()
	for _, line := range d.Items {
		if line.ProductID == productID {
			total = total.Add(line.Quantity)
		}
	}
	return total
}

// HasPendingCost reports whether any line waits for a cost correction.
func (d *Document) HasPendingCost(productID id.ID) bool {
	for _, line := range d.Items {
		if line.CostPricePending && line.ProductID == productID {
			return true
		}
	}
	return false
}

// CorrectPendingCost rewrites pending lines of productID to cost.
// It returns the number of lines changed; zero means nothing was pending.
func (d *Document) CorrectPendingCost(productID id.ID, cost types.Money) int {
	changed := 0
	for i := range d.Items {
		line := &d.Items[i]
		if !line.CostPricePending || line.ProductID != productID {
			continue
		}
		line.CostPriceAtTime = cost
		line.CostPricePending = false
		changed++
	}
	if changed > 0 {
		d.IsMinusCorrection = true
		d.RecalculateTotals()
		d.Touch()
	}
	return changed
}

// Transition moves the document to status to, checking the state machine.
func (d *Document) Transition(to Status) error {
	if err := d.CanModify(); err != nil {
		return err
	}
	if err := CheckTransition(d.Kind, d.Status, to); err != nil {
		return err
	}
	d.Status = to
	d.Touch()
	return nil
}

// RequireKind fails when d is not of kind k.
func (d *Document) RequireKind(k Kind) error {
	if d.Kind != k {
		return apperror.NewValidation("document has the wrong kind").
			WithDetail("document_id", d.ID.String()).
			WithDetail("expected", string(k)).
			WithDetail("actual", string(d.Kind))
	}
	return nil
}
