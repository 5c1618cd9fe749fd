// Package costing keeps weighted-average cost prices and re-costs oversold invoice lines.
package costing

import (
	"context"
	"errors"
	"fmt"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/tx"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/stock"
	"merchledger/pkg/logger"
)

// Records is the part of the stock service costing needs.
type Records interface {
	Get(ctx context.Context, productID id.ID) (*stock.Record, error)
	Load(ctx context.Context, productID id.ID) (*stock.Record, error)
	SetCostPrice(ctx context.Context, productID id.ID, cost types.Money) error
}

// Invoices is the part of the document store the correction sweep needs.
type Invoices interface {
	ListPendingCost(ctx context.Context, productID id.ID) ([]*documents.Document, error)
	GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error)
	Update(ctx context.Context, doc *documents.Document) error
}

// Service recomputes costs on inbound stock and runs the deferred correction sweep.
type Service struct {
	records  Records
	invoices Invoices
	txm      tx.Manager
}

// NewService creates a new costing service.
func NewService(records Records, invoices Invoices, txm tx.Manager) *Service {
	return &Service{records: records, invoices: invoices, txm: txm}
}

// WeightedAverage blends incoming stock into the current cost:
//
//	(oldQty*oldCost + inQty*inCost) / (oldQty + inQty)
//
// When the combined quantity is not positive the old cost is kept and ok is false.
func WeightedAverage(oldQty types.Quantity, oldCost types.Money, inQty types.Quantity, inCost types.Money) (cost types.Money, ok bool) {
	denominator := oldQty.Add(inQty)
	if !denominator.IsPositive() {
		return oldCost, false
	}
	numerator := oldQty.Mul(oldCost).Add(inQty.Mul(inCost))
	return numerator.Div(denominator).Round(types.CostScale), true
}

// ReceiveStock reweights the product cost for qty arriving at unitCost.
// It must run before the quantity itself is added, inside the inbound transaction.
func (s *Service) ReceiveStock(ctx context.Context, productID id.ID, qty types.Quantity, unitCost types.Money) (types.Money, error) {
	if !qty.IsPositive() {
		return types.Zero(), apperror.NewValidation("received quantity must be positive").
			WithDetail("product_id", productID.String())
	}
	if unitCost.IsNegative() {
		return types.Zero(), apperror.NewValidation("unit cost must not be negative").
			WithDetail("product_id", productID.String())
	}

	rec, err := s.records.Load(ctx, productID)
	if err != nil {
		return types.Zero(), err
	}

	cost, ok := WeightedAverage(rec.GlobalQuantity, rec.CostPrice, qty, unitCost)
	if !ok {
		logger.Warn(ctx, "cost kept, combined quantity not positive",
			"product_id", productID,
			"quantity", rec.GlobalQuantity.String(),
			"incoming", qty.String(),
		)
		return cost, nil
	}
	if cost.Equal(rec.CostPrice) {
		return cost, nil
	}

	if err := s.records.SetCostPrice(ctx, productID, cost); err != nil {
		return types.Zero(), fmt.Errorf("set cost price: %w", err)
	}
	return cost, nil
}

// SweepReport summarizes one correction sweep.
type SweepReport struct {
	ProductID id.ID       `json:"productId"`
	Cost      types.Money `json:"cost"`
	Invoices  int         `json:"invoices"`
	Corrected int         `json:"corrected"`
	Lines     int         `json:"lines"`
	Failed    int         `json:"failed"`
}

// CorrectPending re-costs every pending invoice line of productID to newCost.
//
// Each invoice is corrected in its own transaction, separate from the inbound
// document that triggered the sweep. Failures are logged and counted; the
// affected invoices stay pending until the next sweep. Corrected lines are no
// longer pending, so running the sweep again is harmless.
func (s *Service) CorrectPending(ctx context.Context, productID id.ID, newCost types.Money) (SweepReport, error) {
	report := SweepReport{ProductID: productID, Cost: newCost}

	pending, err := s.invoices.ListPendingCost(ctx, productID)
	if err != nil {
		return report, fmt.Errorf("list pending invoices: %w", err)
	}
	report.Invoices = len(pending)

	var errs []error
	for _, inv := range pending {
		lines, err := s.correctInvoice(ctx, inv.ID, productID, newCost)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.Number, err))
			logger.Error(ctx, "cost correction failed",
				"product_id", productID,
				"invoice_id", inv.ID,
				"invoice_number", inv.Number,
				"error", err,
			)
			continue
		}
		if lines > 0 {
			report.Corrected++
			report.Lines += lines
		}
	}

	if report.Corrected > 0 {
		logger.Info(ctx, "pending costs corrected",
			"product_id", productID,
			"cost", newCost.String(),
			"invoices", report.Corrected,
			"lines", report.Lines,
		)
	}
	return report, errors.Join(errs...)
}

func (s *Service) correctInvoice(ctx context.Context, invoiceID, productID id.ID, cost types.Money) (int, error) {
	var changed int
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		changed = inv.CorrectPendingCost(productID, cost)
		if changed == 0 {
			return nil
		}
		return s.invoices.Update(ctx, inv)
	})
	return changed, err
}

// Resweep re-runs the correction sweep at the product's current cost.
func (s *Service) Resweep(ctx context.Context, productID id.ID) (SweepReport, error) {
	rec, err := s.records.Get(ctx, productID)
	if err != nil {
		return SweepReport{ProductID: productID}, err
	}
	return s.CorrectPending(ctx, productID, rec.CostPrice)
}
