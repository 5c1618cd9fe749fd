package memory

import (
	"context"
	"time"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	store *Store
}

var _ stock.Repository = (*StockRepo)(nil)

// Create implements stock.Repository.
func (r *StockRepo) Create(ctx context.Context, rec *stock.Record) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.records[rec.ProductID]; ok {
			return apperror.NewDuplicate("product", "id", rec.ProductID.String())
		}
		r.store.records[rec.ProductID] = rec.Clone()
		return nil
	})
}

// Get implements stock.Repository.
func (r *StockRepo) Get(ctx context.Context, productID id.ID) (*stock.Record, error) {
	var out *stock.Record
	err := r.store.read(ctx, func() error {
		rec, ok := r.store.records[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate implements stock.Repository. Writers are serialized already.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID id.ID) (*stock.Record, error) {
	return r.Get(ctx, productID)
}

func (r *StockRepo) update(ctx context.Context, productID id.ID, fn func(rec *stock.Record) error) error {
	return r.store.write(ctx, func() error {
		rec, ok := r.store.records[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		next := rec.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()
		r.store.records[productID] = next
		return nil
	})
}

// AdjustGlobal implements stock.Repository.
func (r *StockRepo) AdjustGlobal(ctx context.Context, productID id.ID, delta types.Quantity) error {
	return r.update(ctx, productID, func(rec *stock.Record) error {
		rec.ApplyGlobal(delta)
		return nil
	})
}

// AdjustWarehouse implements stock.Repository.
func (r *StockRepo) AdjustWarehouse(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error {
	return r.update(ctx, productID, func(rec *stock.Record) error {
		return rec.ApplyWarehouse(warehouseID, delta)
	})
}

// AdjustReserved implements stock.Repository.
func (r *StockRepo) AdjustReserved(ctx context.Context, productID id.ID, delta types.Quantity) error {
	return r.update(ctx, productID, func(rec *stock.Record) error {
		rec.ApplyReserved(delta)
		return nil
	})
}

// AdjustWarehouseReserved implements stock.Repository.
func (r *StockRepo) AdjustWarehouseReserved(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error {
	return r.update(ctx, productID, func(rec *stock.Record) error {
		return rec.ApplyWarehouseReserved(warehouseID, delta)
	})
}

// SetCostPrice implements stock.Repository.
func (r *StockRepo) SetCostPrice(ctx context.Context, productID id.ID, cost types.Money) error {
	return r.update(ctx, productID, func(rec *stock.Record) error {
		rec.CostPrice = cost
		return nil
	})
}
