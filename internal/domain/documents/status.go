package documents

import (
	"merchledger/internal/core/apperror"
)

// Status is a kind-specific document state.
type Status string

const (
	StatusPosted    Status = "posted"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDraft     Status = "draft"
)

// lifecycle is the state machine of one kind.
type lifecycle struct {
	initial     Status
	transitions map[Status][]Status
}

var lifecycles = map[Kind]lifecycle{
	KindReceipt:          {initial: StatusPosted},
	KindWarehouseReceipt: {initial: StatusPosted},
	KindShipment:         {initial: StatusPosted},
	KindCustomerReturn:   {initial: StatusPosted},
	KindSupplierReturn:   {initial: StatusPosted},
	KindWriteoff:         {initial: StatusPosted},
	KindCustomerInvoice: {
		initial: StatusIssued,
		transitions: map[Status][]Status{
			StatusIssued: {StatusPaid},
		},
	},
	KindCustomerOrder: {
		initial: StatusPending,
		transitions: map[Status][]Status{
			StatusPending:   {StatusConfirmed, StatusCancelled},
			StatusConfirmed: {StatusPending, StatusFulfilled, StatusCancelled},
			StatusFulfilled: {StatusCancelled},
		},
	},
	KindWarehouseTransfer: {
		initial: StatusPending,
		transitions: map[Status][]Status{
			StatusPending:   {StatusInTransit, StatusCompleted, StatusCancelled},
			StatusInTransit: {StatusCompleted, StatusCancelled},
		},
	},
	KindInternalOrder: {
		initial: StatusPending,
		transitions: map[Status][]Status{
			StatusPending: {StatusApproved, StatusRejected, StatusCancelled},
		},
	},
	KindInventoryCount: {
		initial: StatusDraft,
		transitions: map[Status][]Status{
			StatusDraft: {StatusConfirmed, StatusCancelled},
		},
	},
}

// InitialStatus is the state a new document of kind k starts in.
func InitialStatus(k Kind) Status {
	return lifecycles[k].initial
}

// KnownStatus reports whether s belongs to kind k's state machine.
func KnownStatus(k Kind, s Status) bool {
	lc, ok := lifecycles[k]
	if !ok {
		return false
	}
	if lc.initial == s {
		return true
	}
	for from, targets := range lc.transitions {
		if from == s {
			return true
		}
		for _, t := range targets {
			if t == s {
				return true
			}
		}
	}
	return false
}

// CheckTransition rejects a status change the kind's state machine does not allow.
func CheckTransition(k Kind, from, to Status) error {
	for _, allowed := range lifecycles[k].transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return apperror.NewInvalidTransition(string(k), string(from), string(to))
}
