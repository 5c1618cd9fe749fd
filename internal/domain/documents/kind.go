// Package documents models the eleven business documents that move stock.
package documents

import (
	"merchledger/internal/core/apperror"
)

// Kind is the document type tag.
type Kind string

const (
	KindReceipt           Kind = "receipt"
	KindCustomerInvoice   Kind = "customer_invoice"
	KindShipment          Kind = "shipment"
	KindCustomerOrder     Kind = "customer_order"
	KindCustomerReturn    Kind = "customer_return"
	KindSupplierReturn    Kind = "supplier_return"
	KindWriteoff          Kind = "writeoff"
	KindWarehouseReceipt  Kind = "warehouse_receipt"
	KindWarehouseTransfer Kind = "warehouse_transfer"
	KindInternalOrder     Kind = "internal_order"
	KindInventoryCount    Kind = "inventory_count"
)

// AllKinds lists every document kind.
var AllKinds = []Kind{
	KindReceipt,
	KindCustomerInvoice,
	KindShipment,
	KindCustomerOrder,
	KindCustomerReturn,
	KindSupplierReturn,
	KindWriteoff,
	KindWarehouseReceipt,
	KindWarehouseTransfer,
	KindInternalOrder,
	KindInventoryCount,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := lifecycles[k]
	return ok
}

// ParseKind converts a path or payload value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", apperror.NewValidation("unknown document kind").WithDetail("kind", s)
	}
	return k, nil
}

// IsInbound reports whether documents of this kind bring new stock at a cost.
func (k Kind) IsInbound() bool {
	return k == KindReceipt || k == KindWarehouseReceipt
}
