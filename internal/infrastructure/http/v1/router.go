// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"merchledger/internal/core/numerator"
	"merchledger/internal/domain/costing"
	"merchledger/internal/domain/ledger"
	"merchledger/internal/domain/stock"
	"merchledger/internal/infrastructure/http/v1/handlers"
	"merchledger/internal/infrastructure/http/v1/middleware"
	"merchledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Mutator applies and transitions documents
	Mutator *ledger.Mutator

	// Stock registers and reads products
	Stock *stock.Service

	// Costing runs manual cost correction sweeps
	Costing *costing.Service

	// Numbers is the document number generator (for counter sync)
	Numbers numerator.Generator

	// DB is pinged by the health check; nil for the in-memory store
	DB handlers.Pinger

	// Storage names the configured storage driver
	Storage string

	// Debug switches gin into debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Storage)
	router.GET("/health", healthHandler.Health)

	base := handlers.NewBaseHandler()
	productHandler := handlers.NewProductHandler(base, cfg.Stock, cfg.Costing)
	documentHandler := handlers.NewDocumentHandler(base, cfg.Mutator)
	sequenceHandler := handlers.NewSequenceHandler(base, cfg.Numbers, cfg.Mutator)

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.POST("", productHandler.Register)
		products.GET("/:id", productHandler.Get)
		products.POST("/:id/cost-corrections", productHandler.CorrectCosts)

		RegisterDocumentRoutes(v1.Group("/documents"), documentHandler)
		RegisterOrderRoutes(v1.Group("/orders"), documentHandler)

		v1.POST("/sequences/:prefix/sync", sequenceHandler.Sync)
	}

	return router
}
