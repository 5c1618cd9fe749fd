// Package main is the entry point for the merchledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchledger/internal/config"
	corenumerator "merchledger/internal/core/numerator"
	"merchledger/internal/core/tx"
	"merchledger/internal/domain/costing"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/ledger"
	"merchledger/internal/domain/reservation"
	"merchledger/internal/domain/stock"
	v1 "merchledger/internal/infrastructure/http/v1"
	"merchledger/internal/infrastructure/http/v1/handlers"
	"merchledger/internal/infrastructure/numerator"
	"merchledger/internal/infrastructure/storage/memory"
	"merchledger/internal/infrastructure/storage/postgres"
	"merchledger/internal/infrastructure/storage/postgres/document_repo"
	"merchledger/internal/infrastructure/storage/postgres/sequence_repo"
	"merchledger/internal/infrastructure/storage/postgres/stock_repo"
	"merchledger/pkg/logger"
)

// backend is one storage driver's implementation of the domain contracts.
type backend struct {
	txm      tx.Manager
	stock    stock.Repository
	docs     documents.Repository
	counters corenumerator.CounterStore
	db       handlers.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Component:   "server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting merchledger server", "storage", cfg.StorageDriver)

	store, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.close()

	// --- Domain services ---
	numbers := numerator.New(store.counters)
	stockSvc := stock.NewService(store.stock)
	costSvc := costing.NewService(stockSvc, store.docs, store.txm)
	mutator := ledger.NewMutator(
		store.txm,
		numbers,
		stockSvc,
		costSvc,
		reservation.NewManager(stockSvc),
		store.docs,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:  log,
		Mutator: mutator,
		Stock:   stockSvc,
		Costing: costSvc,
		Numbers: numbers,
		DB:      store.db,
		Storage: cfg.StorageDriver,
		Debug:   cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.StorageDriver == config.DriverMemory {
		store := memory.NewStore()
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		return &backend{
			txm:      store.TxManager(),
			stock:    store.Stock(),
			docs:     store.Documents(),
			counters: store.Counters(),
			close:    func() {},
		}, nil
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns))
	if err != nil {
		return nil, err
	}
	postgres.LogPoolStats(ctx, pool.Pool)

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.DBStatementTimeout)
	return &backend{
		txm:      txm,
		stock:    stock_repo.NewStockRepo(txm),
		docs:     document_repo.NewDocumentRepo(txm),
		counters: sequence_repo.NewCounterStore(txm),
		db:       pool,
		close:    pool.Close,
	}, nil
}
