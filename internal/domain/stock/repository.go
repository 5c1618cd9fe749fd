package stock

import (
	"context"

	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
)

// Repository persists Stock Records. Every Adjust call is a single atomic
// update at the storage layer; callers run them inside one transaction.
type Repository interface {
	Create(ctx context.Context, rec *Record) error

	// Get loads a record with its warehouse split.
	Get(ctx context.Context, productID id.ID) (*Record, error)

	// GetForUpdate loads a record and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, productID id.ID) (*Record, error)

	// AdjustGlobal changes globalQuantity by delta; the result may cross zero.
	AdjustGlobal(ctx context.Context, productID id.ID, delta types.Quantity) error

	// AdjustWarehouse changes one warehouse quantity. A missing entry is created
	// for non-negative deltas; a negative delta against it is a precondition failure.
	AdjustWarehouse(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error

	// AdjustReserved changes globalReserved by delta.
	AdjustReserved(ctx context.Context, productID id.ID, delta types.Quantity) error

	// AdjustWarehouseReserved follows AdjustWarehouse for the reserved counter.
	AdjustWarehouseReserved(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error

	// SetCostPrice stores a new weighted-average cost.
	SetCostPrice(ctx context.Context, productID id.ID, cost types.Money) error
}
