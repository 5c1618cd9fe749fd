package handlers

import (
	"github.com/gin-gonic/gin"

	"merchledger/internal/domain/costing"
	"merchledger/internal/domain/stock"
	"merchledger/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for products and their stock records.
type ProductHandler struct {
	*BaseHandler
	stock   *stock.Service
	costing *costing.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, stockSvc *stock.Service, costSvc *costing.Service) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		stock:       stockSvc,
		costing:     costSvc,
	}
}

// Register handles POST /products
func (h *ProductHandler) Register(c *gin.Context) {
	var req dto.RegisterProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.stock.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromRecord(rec))
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.stock.Get(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromRecord(rec))
}

// CorrectCosts handles POST /products/:id/cost-corrections
// It re-runs the pending-cost sweep at the product's current cost.
func (h *ProductHandler) CorrectCosts(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.costing.Resweep(c.Request.Context(), productID)
	if err != nil && report.Invoices == 0 {
		h.Error(c, err)
		return
	}

	// Partially failed sweeps still report what was corrected.
	h.OK(c, report)
}
