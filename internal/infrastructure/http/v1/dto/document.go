package dto

import (
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/ledger"
)

// TransitionRequest moves a document to another status.
type TransitionRequest struct {
	Status documents.Status `json:"status" binding:"required"`
}

// MutationResponse is returned by every document mutation.
type MutationResponse struct {
	Document *documents.Document   `json:"document"`
	Warnings []string              `json:"warnings"`
	Spawned  []*documents.Document `json:"spawned,omitempty"`
}

// FromResult creates MutationResponse from a ledger result.
// Warnings are always present so clients can rely on the field.
func FromResult(r *ledger.Result) MutationResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return MutationResponse{
		Document: r.Document,
		Warnings: warnings,
		Spawned:  r.Spawned,
	}
}
