package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"merchledger/internal/core/numerator"
	"merchledger/internal/domain/ledger"
	"merchledger/internal/infrastructure/http/v1/dto"
)

// SequenceHandler exposes counter maintenance.
type SequenceHandler struct {
	*BaseHandler
	numbers numerator.Generator
	mutator *ledger.Mutator
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(base *BaseHandler, numbers numerator.Generator, mutator *ledger.Mutator) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler: base,
		numbers:     numbers,
		mutator:     mutator,
	}
}

// Sync handles POST /sequences/:prefix/sync
// The counter is only ever raised. Formatting options default to those of the
// document kind using the prefix.
func (h *SequenceHandler) Sync(c *gin.Context) {
	prefix := strings.ToUpper(strings.TrimSpace(c.Param("prefix")))

	var req dto.SyncSequenceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	opts := numerator.DefaultOptions()
	if policy, ok := h.mutator.PolicyByPrefix(prefix); ok {
		opts = policy.Numbering
	}
	if req.WithYear != nil {
		opts.WithYear = *req.WithYear
	}
	if req.PadWidth != nil {
		opts.PadWidth = *req.PadWidth
	}

	current, err := h.numbers.SyncTo(c.Request.Context(), prefix, opts, req.Minimum)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SyncSequenceResponse{Prefix: prefix, Current: current})
}
