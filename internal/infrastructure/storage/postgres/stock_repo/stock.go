// Package stock_repo provides the PostgreSQL implementation of the stock record repository.
package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/stock"
	"merchledger/internal/infrastructure/storage/postgres"
)

const (
	recordsTable   = "stock_records"
	warehouseTable = "stock_by_warehouse"
)

// StockRepo implements stock.Repository.
//
// Every adjustment is one UPDATE of the form col = col + delta, so concurrent
// writers never lose an increment. Warehouse entries keep insertion order
// through their position column.
type StockRepo struct {
	txm        *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock record repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:        txm,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[stock.Record](),
	}
}

// Create inserts a new record. Warehouse entries are created by adjustments.
func (r *StockRepo) Create(ctx context.Context, rec *stock.Record) error {
	sql, args, err := r.builder.Insert(recordsTable).SetMap(postgres.StructToMap(rec)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("product", "id", rec.ProductID.String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", recordsTable, err)
	}
	return nil
}

// Get loads a record with its warehouse split.
func (r *StockRepo) Get(ctx context.Context, productID id.ID) (*stock.Record, error) {
	return r.get(ctx, r.builder.Select(r.selectCols...).From(recordsTable).
		Where(squirrel.Eq{"product_id": productID}), productID)
}

// GetForUpdate loads a record with a row lock on the product.
// Warehouse rows are only written under this lock.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID id.ID) (*stock.Record, error) {
	return r.get(ctx, r.builder.Select(r.selectCols...).From(recordsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Suffix("FOR UPDATE"), productID)
}

func (r *StockRepo) get(ctx context.Context, q squirrel.SelectBuilder, productID id.ID) (*stock.Record, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	rec := &stock.Record{}
	if err := pgxscan.Get(ctx, querier, rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}

	sql, args, err = r.builder.
		Select("warehouse_id", "quantity", "reserved").
		From(warehouseTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build warehouse query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &rec.StockByWarehouse, sql, args...); err != nil {
		return nil, fmt.Errorf("select warehouse stock: %w", err)
	}
	return rec, nil
}

// AdjustGlobal changes global_quantity by delta.
func (r *StockRepo) AdjustGlobal(ctx context.Context, productID id.ID, delta types.Quantity) error {
	return r.adjustRecord(ctx, productID, "global_quantity", delta)
}

// AdjustReserved changes global_reserved by delta.
func (r *StockRepo) AdjustReserved(ctx context.Context, productID id.ID, delta types.Quantity) error {
	return r.adjustRecord(ctx, productID, "global_reserved", delta)
}

// AdjustWarehouse changes the quantity of one warehouse entry.
func (r *StockRepo) AdjustWarehouse(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error {
	return r.adjustWarehouse(ctx, productID, warehouseID, "quantity", delta)
}

// AdjustWarehouseReserved changes the reservation of one warehouse entry.
func (r *StockRepo) AdjustWarehouseReserved(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity) error {
	return r.adjustWarehouse(ctx, productID, warehouseID, "reserved", delta)
}

// SetCostPrice stores a new weighted-average cost.
func (r *StockRepo) SetCostPrice(ctx context.Context, productID id.ID, cost types.Money) error {
	sql, args, err := r.builder.Update(recordsTable).
		Set("cost_price", cost).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.exec(ctx, productID, sql, args)
}

func (r *StockRepo) adjustRecord(ctx context.Context, productID id.ID, column string, delta types.Quantity) error {
	sql, args, err := r.recordDelta(productID, column, delta).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.exec(ctx, productID, sql, args)
}

func (r *StockRepo) exec(ctx context.Context, productID id.ID, sql string, args []any) error {
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", recordsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID.String())
	}
	return nil
}

// adjustWarehouse upserts for non-negative deltas. A negative delta only
// updates an existing entry.
func (r *StockRepo) adjustWarehouse(ctx context.Context, productID, warehouseID id.ID, column string, delta types.Quantity) error {
	sql, args, err := r.warehouseDelta(productID, warehouseID, column, delta).ToSql()
	if err != nil {
		return fmt.Errorf("build warehouse adjustment: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("adjust %s: %w", warehouseTable, err)
	}
	if delta.IsNegative() && result.RowsAffected() == 0 {
		return stock.ErrNoWarehouseEntry(productID, warehouseID)
	}
	return nil
}

func (r *StockRepo) warehouseDelta(productID, warehouseID id.ID, column string, delta types.Quantity) squirrel.Sqlizer {
	if !delta.IsNegative() {
		return r.builder.Insert(warehouseTable).
			Columns("product_id", "warehouse_id", column).
			Values(productID, warehouseID, delta).
			Suffix("ON CONFLICT (product_id, warehouse_id) DO UPDATE SET " +
				column + " = " + warehouseTable + "." + column + " + EXCLUDED." + column)
	}
	return r.builder.Update(warehouseTable).
		Set(column, squirrel.Expr(column+" + ?", delta)).
		Where(squirrel.Eq{"product_id": productID, "warehouse_id": warehouseID})
}

func (r *StockRepo) recordDelta(productID id.ID, column string, delta types.Quantity) squirrel.UpdateBuilder {
	return r.builder.Update(recordsTable).
		Set(column, squirrel.Expr(column+" + ?", delta)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"product_id": productID})
}
