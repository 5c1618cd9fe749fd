package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the interface for document handlers.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Transition(c *gin.Context)
}

// OrderRouteHandler defines the reservation endpoints of customer orders.
type OrderRouteHandler interface {
	Reserve(c *gin.Context)
	Unreserve(c *gin.Context)
	DeleteOrder(c *gin.Context)
}

// RegisterDocumentRoutes registers creation, lookup and status routes.
// Creation takes the kind as a query parameter so every path segment after
// the group is a document id.
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.POST("/:id/transition", handler.Transition)
}

// RegisterOrderRoutes registers the customer order reservation routes.
func RegisterOrderRoutes(group *gin.RouterGroup, handler OrderRouteHandler) {
	group.POST("/:id/reserve", handler.Reserve)
	group.POST("/:id/unreserve", handler.Unreserve)
	group.DELETE("/:id", handler.DeleteOrder)
}
