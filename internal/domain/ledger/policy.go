package ledger

import (
	"merchledger/internal/core/numerator"
	"merchledger/internal/domain/documents"
)

// Precondition is the check a line must pass before its stock effect.
type Precondition int

const (
	// CheckNone lets every line through.
	CheckNone Precondition = iota
	// CheckStock fails when the line's warehouse (global when none) holds less than requested.
	CheckStock
	// CheckOversell never fails; a shortfall yields a warning and a pending cost.
	CheckOversell
	// CheckReturnLimit caps returns at the invoiced quantity.
	CheckReturnLimit
)

// Effect is what a line does to stock when the document is created.
type Effect int

const (
	EffectNone Effect = iota
	// EffectIncrease adds stock globally and to the line warehouse.
	EffectIncrease
	// EffectDecrease removes stock globally and from the line warehouse, which must exist.
	EffectDecrease
	// EffectDecreaseOversell removes stock and may open a negative warehouse entry.
	EffectDecreaseOversell
	// EffectDecreaseDistributed removes stock from the line warehouse or, without one,
	// greedily across warehouses.
	EffectDecreaseDistributed
)

// Policy is one row of the per-kind precondition and effect table.
type Policy struct {
	Kind      documents.Kind
	Prefix    string
	Numbering numerator.Options

	Precondition Precondition
	Effect       Effect

	// Reweights recomputes the weighted-average cost before stock is added.
	Reweights bool
	// SweepsCost runs the deferred cost correction after commit.
	SweepsCost bool
	// MarksPendingCost flags oversold lines for later re-costing.
	MarksPendingCost bool

	// RequiresLineWarehouse needs a warehouse on every line, own or inherited.
	RequiresLineWarehouse bool
	// RequiresSourceWarehouse needs the header warehouse, used as the source.
	RequiresSourceWarehouse bool
	// RequiresDestination needs a destination warehouse different from the source.
	RequiresDestination bool
	// Source is the kind a SourceDocumentID must reference; Required makes it mandatory.
	Source         documents.Kind
	SourceRequired bool
	// Counted lines carry a counted quantity instead of a movement.
	Counted bool
	// PricedAtCost defaults unit prices to the current cost instead of the selling price.
	PricedAtCost bool
}

// DefaultPolicies returns the policy table for all eleven kinds.
func DefaultPolicies() map[documents.Kind]Policy {
	yearly := numerator.DefaultOptions()
	table := []Policy{
		{
			Kind: documents.KindReceipt, Prefix: "RC", Numbering: yearly,
			Precondition: CheckNone, Effect: EffectIncrease,
			Reweights: true, SweepsCost: true, RequiresLineWarehouse: true, PricedAtCost: true,
		},
		{
			Kind: documents.KindWarehouseReceipt, Prefix: "WR",
			Numbering:    numerator.Options{WithYear: false, PadWidth: 6, Separator: "-"},
			Precondition: CheckNone, Effect: EffectIncrease,
			Reweights: true, SweepsCost: true, RequiresLineWarehouse: true, PricedAtCost: true,
		},
		{
			Kind: documents.KindCustomerInvoice, Prefix: "CF", Numbering: yearly,
			Precondition: CheckOversell, Effect: EffectDecreaseOversell, MarksPendingCost: true,
		},
		{
			Kind: documents.KindShipment, Prefix: "SH", Numbering: yearly,
			Precondition: CheckStock, Effect: EffectDecrease,
			Source: documents.KindCustomerOrder,
		},
		{
			Kind: documents.KindCustomerOrder, Prefix: "CO", Numbering: yearly,
			Precondition: CheckNone, Effect: EffectNone,
		},
		{
			Kind: documents.KindCustomerReturn, Prefix: "CR", Numbering: yearly,
			Precondition: CheckReturnLimit, Effect: EffectIncrease,
			Source: documents.KindCustomerInvoice, SourceRequired: true,
		},
		{
			Kind: documents.KindSupplierReturn, Prefix: "SR", Numbering: yearly,
			Precondition: CheckStock, Effect: EffectDecreaseDistributed, PricedAtCost: true,
		},
		{
			Kind: documents.KindWriteoff, Prefix: "WO", Numbering: yearly,
			Precondition: CheckStock, Effect: EffectDecreaseDistributed, PricedAtCost: true,
		},
		{
			Kind: documents.KindWarehouseTransfer, Prefix: "WT", Numbering: yearly,
			Precondition: CheckStock, Effect: EffectNone,
			RequiresSourceWarehouse: true, PricedAtCost: true,
		},
		{
			Kind: documents.KindInternalOrder, Prefix: "IO", Numbering: yearly,
			Precondition: CheckStock, Effect: EffectNone,
			RequiresSourceWarehouse: true, RequiresDestination: true, PricedAtCost: true,
		},
		{
			Kind: documents.KindInventoryCount, Prefix: "IC", Numbering: yearly,
			Precondition: CheckNone, Effect: EffectNone,
			RequiresSourceWarehouse: true, Counted: true, PricedAtCost: true,
		},
	}

	policies := make(map[documents.Kind]Policy, len(table))
	for _, p := range table {
		policies[p.Kind] = p
	}
	return policies
}
