package documents

import (
	"context"

	"merchledger/internal/core/id"
)

// ListFilter narrows document listings.
type ListFilter struct {
	Kind             Kind
	Status           Status
	SourceDocumentID *id.ID
	IncludeDeleted   bool
	Limit            int
	Offset           int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: 50}
}

// ListResult contains paginated results.
type ListResult struct {
	Items      []*Document `json:"items"`
	TotalCount int64       `json:"totalCount"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Repository persists documents with their lines.
type Repository interface {
	// Create inserts header and lines. A duplicate number is a conflict.
	Create(ctx context.Context, doc *Document) error

	// Update rewrites header and lines with optimistic locking on Version.
	Update(ctx context.Context, doc *Document) error

	// GetByID loads a document with its lines.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate loads and locks a document until the transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// GetByNumber loads a document by its unique number.
	GetByNumber(ctx context.Context, number string) (*Document, error)

	// List returns headers and lines matching filter, newest first.
	List(ctx context.Context, filter ListFilter) (ListResult, error)

	// ListPendingCost returns customer invoices with a pending-cost line for productID.
	ListPendingCost(ctx context.Context, productID id.ID) ([]*Document, error)
}
