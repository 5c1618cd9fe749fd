// Package main runs schema migrations against the ledger database.
//
//	migrate up
//	migrate down [steps]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"merchledger/internal/config"
	"merchledger/internal/infrastructure/storage/postgres"
	"merchledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		fmt.Println("migrations only apply to the postgres driver")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment(), Component: "migrate"})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log)

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = postgres.Migrate(ctx, cfg.MigrationsPath, cfg.DatabaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil || steps <= 0 {
				log.Fatalw("invalid steps", "value", os.Args[2])
			}
		}
		err = postgres.MigrateDown(ctx, cfg.MigrationsPath, cfg.DatabaseURL, steps)
	default:
		fmt.Printf("unknown command %q, expected up or down\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalw("migration failed", "command", cmd, "error", err)
	}
}
