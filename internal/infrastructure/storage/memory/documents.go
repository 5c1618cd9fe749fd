package memory

import (
	"context"
	"sort"
	"time"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/domain/documents"
)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	store *Store
}

var _ documents.Repository = (*DocumentRepo)(nil)

// Create implements documents.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.docs[doc.ID]; ok {
			return apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		if _, ok := r.store.numbers[doc.Number]; ok {
			return apperror.NewDuplicate("document", "number", doc.Number)
		}
		r.store.docs[doc.ID] = cloneDocument(doc)
		r.store.numbers[doc.Number] = doc.ID
		return nil
	})
}

// Update implements documents.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	return r.store.write(ctx, func() error {
		stored, ok := r.store.docs[doc.ID]
		if !ok {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		if stored.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		doc.Version++
		doc.UpdatedAt = time.Now().UTC()
		r.store.docs[doc.ID] = cloneDocument(doc)
		return nil
	})
}

// GetByID implements documents.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	var out *documents.Document
	err := r.store.read(ctx, func() error {
		doc, ok := r.store.docs[docID]
		if !ok {
			return apperror.NewNotFound("document", docID.String())
		}
		out = cloneDocument(doc)
		return nil
	})
	return out, err
}

// GetForUpdate implements documents.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.GetByID(ctx, docID)
}

// GetByNumber implements documents.Repository.
func (r *DocumentRepo) GetByNumber(ctx context.Context, number string) (*documents.Document, error) {
	var (
		docID id.ID
		ok    bool
	)
	_ = r.store.read(ctx, func() error {
		docID, ok = r.store.numbers[number]
		return nil
	})
	if !ok {
		return nil, apperror.NewNotFound("document", number)
	}
	return r.GetByID(ctx, docID)
}

// List implements documents.Repository.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (documents.ListResult, error) {
	var matched []*documents.Document
	_ = r.store.read(ctx, func() error {
		for _, doc := range r.store.docs {
			if matches(doc, filter) {
				matched = append(matched, cloneDocument(doc))
			}
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	result := documents.ListResult{
		TotalCount: int64(len(matched)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		Items:      []*documents.Document{},
	}
	if filter.Offset >= len(matched) {
		return result, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	result.Items = matched[filter.Offset:end]
	return result, nil
}

// ListPendingCost implements documents.Repository.
func (r *DocumentRepo) ListPendingCost(ctx context.Context, productID id.ID) ([]*documents.Document, error) {
	var out []*documents.Document
	_ = r.store.read(ctx, func() error {
		for _, doc := range r.store.docs {
			if doc.Kind == documents.KindCustomerInvoice && !doc.DeletionMark && doc.HasPendingCost(productID) {
				out = append(out, cloneDocument(doc))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func matches(doc *documents.Document, f documents.ListFilter) bool {
	if doc.DeletionMark && !f.IncludeDeleted {
		return false
	}
	if f.Kind != "" && doc.Kind != f.Kind {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	if f.SourceDocumentID != nil && !id.Equal(doc.SourceDocumentID, f.SourceDocumentID) {
		return false
	}
	return true
}
