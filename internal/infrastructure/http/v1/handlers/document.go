package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/ledger"
	"merchledger/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles HTTP requests for all document kinds.
type DocumentHandler struct {
	*BaseHandler
	mutator *ledger.Mutator
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, mutator *ledger.Mutator) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		mutator:     mutator,
	}
}

// Create handles POST /documents?kind=
func (h *DocumentHandler) Create(c *gin.Context) {
	kind, err := documents.ParseKind(c.Query("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var payload ledger.Payload
	if !h.BindJSON(c, &payload) {
		return
	}

	result, err := h.mutator.Apply(c.Request.Context(), kind, payload)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromResult(result))
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	filter := documents.DefaultListFilter()
	filter.Kind = documents.Kind(c.Query("kind"))
	filter.Status = documents.Status(c.Query("status"))
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if src := c.Query("sourceDocumentId"); src != "" {
		sourceID, err := id.ParseOptional(src)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid sourceDocumentId format"))
			return
		}
		filter.SourceDocumentID = sourceID
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	result, err := h.mutator.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocumentList(result))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.mutator.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, doc)
}

// Transition handles POST /documents/:id/transition
func (h *DocumentHandler) Transition(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.mutator.Transition(c.Request.Context(), docID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromResult(result))
}

// Reserve handles POST /orders/:id/reserve
func (h *DocumentHandler) Reserve(c *gin.Context) {
	h.orderAction(c, h.mutator.ReserveOrder)
}

// Unreserve handles POST /orders/:id/unreserve
func (h *DocumentHandler) Unreserve(c *gin.Context) {
	h.orderAction(c, h.mutator.UnreserveOrder)
}

// DeleteOrder handles DELETE /orders/:id
func (h *DocumentHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.mutator.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

func (h *DocumentHandler) orderAction(c *gin.Context, action func(ctx context.Context, orderID id.ID) (*ledger.Result, error)) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := action(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromResult(result))
}
