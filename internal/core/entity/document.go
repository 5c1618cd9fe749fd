package entity

import (
	"merchledger/internal/core/apperror"
)

// Document is the header shared by every business document.
type Document struct {
	BaseDocument

	// Number is the human-readable document number, unique across all kinds.
	Number string `db:"number" json:"documentNumber"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{BaseDocument: NewBaseDocument()}
}

// CanModify rejects changes to documents that were deleted.
func (d *Document) CanModify() error {
	if d.DeletionMark {
		return apperror.NewPrecondition("document is deleted").
			WithDetail("document_id", d.ID.String())
	}
	return nil
}
