// Package ledger applies documents to stock: one transaction per document,
// driven by the per-kind policy table.
package ledger

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/numerator"
	"merchledger/internal/core/tx"
	"merchledger/internal/domain/costing"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/reservation"
	"merchledger/internal/domain/stock"
	"merchledger/pkg/logger"
)

var tracer = otel.Tracer("merchledger/ledger")

// Result is a committed document plus the non-fatal output of the operation.
type Result struct {
	Document *documents.Document   `json:"document"`
	Warnings []string              `json:"warnings,omitempty"`
	Spawned  []*documents.Document `json:"spawned,omitempty"`
}

// unit collects what one transaction produced besides its main document.
type unit struct {
	warnings []string
	spawned  []*documents.Document
	sweep    []id.ID
}

func (u *unit) warn(format string, args ...any) {
	u.warnings = append(u.warnings, fmt.Sprintf(format, args...))
}

func (u *unit) needsSweep(productID id.ID) {
	for _, p := range u.sweep {
		if p == productID {
			return
		}
	}
	u.sweep = append(u.sweep, productID)
}

// Mutator is the single entry point for every stock-affecting document.
type Mutator struct {
	txm          tx.Manager
	numbers      numerator.Generator
	stock        *stock.Service
	costing      *costing.Service
	reservations *reservation.Manager
	docs         documents.Repository
	validate     *validator.Validate
	policies     map[documents.Kind]Policy
}

// NewMutator wires the mutator with the default policy table.
func NewMutator(
	txm tx.Manager,
	numbers numerator.Generator,
	stockSvc *stock.Service,
	costSvc *costing.Service,
	reservations *reservation.Manager,
	docs documents.Repository,
) *Mutator {
	return &Mutator{
		txm:          txm,
		numbers:      numbers,
		stock:        stockSvc,
		costing:      costSvc,
		reservations: reservations,
		docs:         docs,
		validate:     newValidator(),
		policies:     DefaultPolicies(),
	}
}

// Policy returns the table row for kind.
func (m *Mutator) Policy(kind documents.Kind) (Policy, bool) {
	p, ok := m.policies[kind]
	return p, ok
}

// Apply creates a document of kind from payload and applies its stock effects
// atomically. Any error leaves stock and documents untouched; the document
// number drawn for the attempt is not reused.
func (m *Mutator) Apply(ctx context.Context, kind documents.Kind, payload Payload) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ledger.apply",
		trace.WithAttributes(attribute.String("document.kind", string(kind))))
	defer span.End()

	policy, ok := m.policies[kind]
	if !ok {
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", string(kind))
	}
	if err := m.checkPayload(policy, payload); err != nil {
		return nil, err
	}

	var (
		doc *documents.Document
		u   = &unit{}
	)
	err := m.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = m.create(ctx, u, policy, payload, createOptions{})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("document.number", doc.Number))
	return m.finish(ctx, "document created", doc, u), nil
}

// Get returns a document by id.
func (m *Mutator) Get(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return m.docs.GetByID(ctx, docID)
}

// List returns documents matching filter.
func (m *Mutator) List(ctx context.Context, filter documents.ListFilter) (documents.ListResult, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return documents.ListResult{}, apperror.NewValidation("unknown document kind").WithDetail("kind", string(filter.Kind))
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = documents.DefaultListFilter().Limit
	}
	return m.docs.List(ctx, filter)
}

func (m *Mutator) finish(ctx context.Context, msg string, doc *documents.Document, u *unit) *Result {
	logger.Info(ctx, msg,
		"kind", doc.Kind,
		"number", doc.Number,
		"id", doc.ID,
		"status", doc.Status,
		"warnings", len(u.warnings),
		"spawned", len(u.spawned),
	)
	m.sweep(ctx, u.sweep)
	return &Result{Document: doc, Warnings: u.warnings, Spawned: u.spawned}
}

// sweep re-costs pending invoice lines after inbound stock committed.
// A failed sweep does not fail the inbound document.
func (m *Mutator) sweep(ctx context.Context, products []id.ID) {
	for _, productID := range products {
		if _, err := m.costing.Resweep(ctx, productID); err != nil {
			logger.Warn(ctx, "cost correction sweep incomplete",
				"product_id", productID,
				"error", err,
			)
		}
	}
}

func (m *Mutator) checkPayload(policy Policy, payload Payload) error {
	if err := m.validate.Struct(payload); err != nil {
		return validationError(err)
	}

	if payload.Reserve && policy.Kind != documents.KindCustomerOrder {
		return apperror.NewValidation("only customer orders can be reserved on creation")
	}
	if policy.SourceRequired && payload.SourceDocumentID == nil {
		return apperror.NewValidation("source document is required").
			WithDetail("field", "sourceDocumentId").
			WithDetail("kind", string(policy.Source))
	}
	if policy.RequiresSourceWarehouse && payload.WarehouseID == nil {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if policy.RequiresDestination && payload.DestinationWarehouseID == nil {
		return apperror.NewValidation("destination warehouse is required").
			WithDetail("field", "destinationWarehouseId")
	}
	if payload.DestinationWarehouseID != nil && id.Equal(payload.DestinationWarehouseID, payload.WarehouseID) {
		return apperror.NewValidation("destination must differ from source warehouse").
			WithDetail("field", "destinationWarehouseId")
	}

	seen := make(map[id.ID]struct{}, len(payload.Items))
	for i, item := range payload.Items {
		lineNo := i + 1
		if policy.Counted {
			if item.CountedQuantity == nil || item.CountedQuantity.IsNegative() {
				return apperror.NewValidation(fmt.Sprintf("line %d: counted quantity is required and must not be negative", lineNo)).
					WithDetail("line", lineNo)
			}
			if _, dup := seen[item.ProductID]; dup {
				return apperror.NewValidation(fmt.Sprintf("line %d: product counted twice", lineNo)).
					WithDetail("line", lineNo)
			}
			seen[item.ProductID] = struct{}{}
			continue
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("line %d: quantity must be positive", lineNo)).
				WithDetail("line", lineNo)
		}
		if policy.RequiresLineWarehouse && item.WarehouseID == nil && payload.WarehouseID == nil {
			return apperror.NewValidation(fmt.Sprintf("line %d: warehouse is required", lineNo)).
				WithDetail("line", lineNo)
		}
	}
	return nil
}

// PolicyByPrefix returns the table row whose documents are numbered with prefix.
func (m *Mutator) PolicyByPrefix(prefix string) (Policy, bool) {
	for _, p := range m.policies {
		if p.Prefix == prefix {
			return p, true
		}
	}
	return Policy{}, false
}
