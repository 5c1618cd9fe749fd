package stock

import (
	"context"
	"fmt"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/pkg/logger"
)

// Service composes repository primitives into the stock movements documents need.
// It never opens transactions: callers run it inside the mutator's transaction.
type Service struct {
	repo Repository
}

// NewService creates a new stock service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput describes a new product.
type RegisterInput struct {
	Name         string
	Unit         string
	UnitType     UnitType
	SellingPrice types.Money
	MinStock     types.Quantity
}

// Register creates a product with zero stock and zero cost.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Record, error) {
	rec := NewRecord(in.Name, in.Unit, in.UnitType)
	rec.SellingPrice = in.SellingPrice
	rec.MinStock = in.MinStock
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create stock record: %w", err)
	}

	logger.Info(ctx, "product registered", "product_id", rec.ProductID, "name", rec.Name)
	return rec, nil
}

// Get returns the current record of a product.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Record, error) {
	return s.repo.Get(ctx, productID)
}

// Load locks a product referenced by a document line. A missing product is a
// validation error of the payload, not a lookup failure.
func (s *Service) Load(ctx context.Context, productID id.ID) (*Record, error) {
	rec, err := s.repo.GetForUpdate(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("referenced product does not exist").
				WithDetail("product_id", productID.String())
		}
		return nil, err
	}
	return rec, nil
}

// Increase adds qty globally and, when warehouseID is set, to that warehouse.
func (s *Service) Increase(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error {
	if warehouseID != nil {
		if err := s.repo.AdjustWarehouse(ctx, productID, *warehouseID, qty); err != nil {
			return err
		}
	}
	return s.repo.AdjustGlobal(ctx, productID, qty)
}

// Decrease removes qty globally and, when warehouseID is set, from that warehouse.
// The warehouse must already hold an entry for the product.
func (s *Service) Decrease(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error {
	if warehouseID != nil {
		if err := s.repo.AdjustWarehouse(ctx, productID, *warehouseID, qty.Neg()); err != nil {
			return err
		}
	}
	return s.repo.AdjustGlobal(ctx, productID, qty.Neg())
}

// DecreaseAllowingOversell is Decrease for kinds that may drive stock below zero,
// including in a warehouse the product never entered.
func (s *Service) DecreaseAllowingOversell(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error {
	if warehouseID != nil {
		if err := s.repo.AdjustWarehouse(ctx, productID, *warehouseID, types.Zero()); err != nil {
			return err
		}
	}
	return s.Decrease(ctx, productID, warehouseID, qty)
}

// DecreaseDistributed removes qty from rec without a known warehouse: warehouse
// entries are drained greedily in stored order, then global drops by the full qty.
// The per-warehouse split is best effort; the global decrement is exact. Any
// shortfall drives the first entry negative, so oversold records stay balanced.
func (s *Service) DecreaseDistributed(ctx context.Context, rec *Record, qty types.Quantity) ([]Allocation, error) {
	plan := rec.PlanGreedy(qty)
	for _, a := range plan {
		if err := s.repo.AdjustWarehouse(ctx, rec.ProductID, a.WarehouseID, a.Quantity.Neg()); err != nil {
			return nil, err
		}
	}
	if err := s.repo.AdjustGlobal(ctx, rec.ProductID, qty.Neg()); err != nil {
		return nil, err
	}
	return plan, nil
}

// Move shifts qty between warehouses. Without a destination the goods leave
// the ledger and global quantity drops.
func (s *Service) Move(ctx context.Context, productID, from id.ID, to *id.ID, qty types.Quantity) error {
	if err := s.repo.AdjustWarehouse(ctx, productID, from, types.Zero()); err != nil {
		return err
	}
	if err := s.repo.AdjustWarehouse(ctx, productID, from, qty.Neg()); err != nil {
		return err
	}
	if to == nil {
		return s.repo.AdjustGlobal(ctx, productID, qty.Neg())
	}
	return s.repo.AdjustWarehouse(ctx, productID, *to, qty)
}

// Reserve adds a soft hold globally and, when known, in the warehouse.
func (s *Service) Reserve(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error {
	if warehouseID != nil {
		if err := s.repo.AdjustWarehouseReserved(ctx, productID, *warehouseID, qty); err != nil {
			return err
		}
	}
	return s.repo.AdjustReserved(ctx, productID, qty)
}

// Release removes a hold previously added by Reserve.
func (s *Service) Release(ctx context.Context, productID id.ID, warehouseID *id.ID, qty types.Quantity) error {
	if warehouseID != nil {
		if err := s.repo.AdjustWarehouseReserved(ctx, productID, *warehouseID, qty.Neg()); err != nil {
			return err
		}
	}
	return s.repo.AdjustReserved(ctx, productID, qty.Neg())
}

// SetCostPrice stores a recomputed cost.
func (s *Service) SetCostPrice(ctx context.Context, productID id.ID, cost types.Money) error {
	return s.repo.SetCostPrice(ctx, productID, cost)
}

// RequireQuantity fails when the stock at warehouseID (global when nil) is
// below requested. Equal stock is enough.
func RequireQuantity(rec *Record, warehouseID *id.ID, line int, requested types.Quantity) error {
	available := rec.QuantityAt(warehouseID)
	if available.LessThan(requested) {
		err := apperror.NewInsufficientStock(line, rec.ProductID.String(), requested.String(), available.String())
		if warehouseID != nil {
			err = err.WithDetail("warehouse_id", warehouseID.String())
		}
		return err
	}
	return nil
}
