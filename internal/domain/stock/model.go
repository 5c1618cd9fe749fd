// Package stock holds the per-product Stock Record and its mutation primitives.
package stock

import (
	"fmt"
	"time"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
)

// UnitType tells whether a product is counted in whole units or measured.
type UnitType string

const (
	UnitDiscrete   UnitType = "discrete"
	UnitContinuous UnitType = "continuous"
)

// Valid reports whether u is a known unit type.
func (u UnitType) Valid() bool {
	return u == UnitDiscrete || u == UnitContinuous
}

// Normalize rounds q to whole units for discrete products.
func (u UnitType) Normalize(q types.Quantity) types.Quantity {
	if u == UnitContinuous {
		return q
	}
	return types.RoundWhole(q)
}

// WarehouseStock is one entry of the per-warehouse split.
type WarehouseStock struct {
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Reserved    types.Quantity `db:"reserved" json:"reserved"`
}

// Record is the per-product stock aggregate.
//
// GlobalQuantity equals the sum of warehouse quantities and GlobalReserved the
// sum of warehouse reservations once warehouse-scoped mutations are used.
// Quantities may be negative after an oversell.
type Record struct {
	ProductID      id.ID          `db:"product_id" json:"productId"`
	Name           string         `db:"name" json:"name"`
	Unit           string         `db:"unit" json:"unit"`
	UnitType       UnitType       `db:"unit_type" json:"unitType"`
	GlobalQuantity types.Quantity `db:"global_quantity" json:"globalQuantity"`
	GlobalReserved types.Quantity `db:"global_reserved" json:"globalReserved"`
	CostPrice      types.Money    `db:"cost_price" json:"costPrice"`
	SellingPrice   types.Money    `db:"selling_price" json:"sellingPrice"`
	MinStock       types.Quantity `db:"min_stock" json:"minStock"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`

	// StockByWarehouse keeps insertion order; greedy decrements walk it front to back.
	StockByWarehouse []WarehouseStock `db:"-" json:"stockByWarehouse"`
}

// NewRecord creates an empty stock record for a product.
func NewRecord(name, unit string, unitType UnitType) *Record {
	now := time.Now().UTC()
	return &Record{
		ProductID:      id.New(),
		Name:           name,
		Unit:           unit,
		UnitType:       unitType,
		GlobalQuantity: types.Zero(),
		GlobalReserved: types.Zero(),
		CostPrice:      types.Zero(),
		SellingPrice:   types.Zero(),
		MinStock:       types.Zero(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks the record before it is stored.
func (r *Record) Validate() error {
	if r.Name == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	if !r.UnitType.Valid() {
		return apperror.NewValidation("unit type must be discrete or continuous").
			WithDetail("field", "unitType").
			WithDetail("value", string(r.UnitType))
	}
	if r.SellingPrice.IsNegative() || r.MinStock.IsNegative() {
		return apperror.NewValidation("selling price and minimum stock must not be negative")
	}
	return nil
}

// Warehouse returns the entry for warehouseID.
func (r *Record) Warehouse(warehouseID id.ID) (*WarehouseStock, bool) {
	for i := range r.StockByWarehouse {
		if r.StockByWarehouse[i].WarehouseID == warehouseID {
			return &r.StockByWarehouse[i], true
		}
	}
	return nil, false
}

// QuantityAt returns the quantity held in warehouseID, or the global quantity when nil.
func (r *Record) QuantityAt(warehouseID *id.ID) types.Quantity {
	if warehouseID == nil {
		return r.GlobalQuantity
	}
	if ws, ok := r.Warehouse(*warehouseID); ok {
		return ws.Quantity
	}
	return types.Zero()
}

// Available is physical quantity minus reservations.
func (r *Record) Available() types.Quantity {
	return r.GlobalQuantity.Sub(r.GlobalReserved)
}

// IsBelowMinimum reports whether the record fell under its minimum stock level.
func (r *Record) IsBelowMinimum() bool {
	return r.MinStock.IsPositive() && r.GlobalQuantity.LessThan(r.MinStock)
}

// CheckBalanced verifies the global counters against the warehouse split.
func (r *Record) CheckBalanced() error {
	qty, reserved := types.Zero(), types.Zero()
	for _, ws := range r.StockByWarehouse {
		qty = qty.Add(ws.Quantity)
		reserved = reserved.Add(ws.Reserved)
	}
	if !qty.Equal(r.GlobalQuantity) {
		return fmt.Errorf("product %s: global quantity %s, warehouses hold %s", r.ProductID, r.GlobalQuantity, qty)
	}
	if !reserved.Equal(r.GlobalReserved) {
		return fmt.Errorf("product %s: global reserved %s, warehouses reserve %s", r.ProductID, r.GlobalReserved, reserved)
	}
	return nil
}

// --- In-place primitives. Storage implementations without native atomic
// updates apply these under their own isolation. ---

// ApplyGlobal adds delta to the global quantity.
func (r *Record) ApplyGlobal(delta types.Quantity) {
	r.GlobalQuantity = r.GlobalQuantity.Add(delta)
}

// ApplyReserved adds delta to the global reservation counter.
func (r *Record) ApplyReserved(delta types.Quantity) {
	r.GlobalReserved = r.GlobalReserved.Add(delta)
}

// ApplyWarehouse adds delta to the warehouse entry, appending one for a
// non-negative delta. A negative delta against a missing entry fails.
func (r *Record) ApplyWarehouse(warehouseID id.ID, delta types.Quantity) error {
	ws, err := r.entryFor(warehouseID, delta)
	if err != nil {
		return err
	}
	ws.Quantity = ws.Quantity.Add(delta)
	return nil
}

// ApplyWarehouseReserved is ApplyWarehouse for the reservation counter.
func (r *Record) ApplyWarehouseReserved(warehouseID id.ID, delta types.Quantity) error {
	ws, err := r.entryFor(warehouseID, delta)
	if err != nil {
		return err
	}
	ws.Reserved = ws.Reserved.Add(delta)
	return nil
}

func (r *Record) entryFor(warehouseID id.ID, delta types.Quantity) (*WarehouseStock, error) {
	if ws, ok := r.Warehouse(warehouseID); ok {
		return ws, nil
	}
	if delta.IsNegative() {
		return nil, ErrNoWarehouseEntry(r.ProductID, warehouseID)
	}
	r.StockByWarehouse = append(r.StockByWarehouse, WarehouseStock{
		WarehouseID: warehouseID,
		Quantity:    types.Zero(),
		Reserved:    types.Zero(),
	})
	return &r.StockByWarehouse[len(r.StockByWarehouse)-1], nil
}

// ErrNoWarehouseEntry is the precondition failure for decrementing a warehouse
// the product was never stocked in.
func ErrNoWarehouseEntry(productID, warehouseID id.ID) *apperror.AppError {
	return apperror.NewPrecondition("product has no stock entry in warehouse").
		WithDetail("product_id", productID.String()).
		WithDetail("warehouse_id", warehouseID.String())
}

// Allocation is the part of a warehouse-agnostic decrement taken from one warehouse.
type Allocation struct {
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
}

// PlanGreedy splits qty over warehouses with positive stock in stored order.
// Whatever positive stock cannot cover lands on the first entry, so the
// warehouse sum moves by exactly qty whenever the record has entries.
func (r *Record) PlanGreedy(qty types.Quantity) []Allocation {
	remaining := qty
	var plan []Allocation
	for _, ws := range r.StockByWarehouse {
		if !remaining.IsPositive() {
			break
		}
		if !ws.Quantity.IsPositive() {
			continue
		}
		take := types.MinQuantity(ws.Quantity, remaining)
		plan = append(plan, Allocation{WarehouseID: ws.WarehouseID, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if !remaining.IsPositive() || len(r.StockByWarehouse) == 0 {
		return plan
	}

	first := r.StockByWarehouse[0].WarehouseID
	for i := range plan {
		if plan[i].WarehouseID == first {
			plan[i].Quantity = plan[i].Quantity.Add(remaining)
			return plan
		}
	}
	return append([]Allocation{{WarehouseID: first, Quantity: remaining}}, plan...)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.StockByWarehouse = append([]WarehouseStock(nil), r.StockByWarehouse...)
	return &c
}
