package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/xtrntr/cadran/internal/auction"
	"github.com/xtrntr/cadran/internal/config"
	"github.com/xtrntr/cadran/internal/db"
)

// Seed the database with the default catalog
func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		slog.Error("database-url is required")
		os.Exit(1)
	}

	// Connect to database
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close(ctx)

	// First check if we already have lots
	n, err := database.CountLots(ctx)
	if err != nil {
		slog.Error("failed to check lots", slog.Any("error", err))
		os.Exit(1)
	}
	if n > 0 {
		fmt.Printf("Database already has %d lots. No need to seed.\n", n)
		return
	}

	// Spread creation times so listing order follows the catalog
	base := time.Now().UTC()
	for i, d := range auction.DefaultCatalog {
		lot, err := auction.NewLot(uuid.NewString(), d, cfg.BudgetTicks(), base.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			slog.Error("invalid catalog entry", slog.String("product", d.Product), slog.Any("error", err))
			os.Exit(1)
		}
		created, err := database.CreateLot(ctx, lot)
		if err != nil {
			slog.Error("failed to create lot", slog.String("product", d.Product), slog.Any("error", err))
			os.Exit(1)
		}
		if created {
			fmt.Printf("Created lot %s: %s (%s) %d -> %d\n", lot.ID, lot.Product, lot.Quantity, lot.StartPrice, lot.FloorPrice)
		}
	}

	fmt.Println("Database seeded successfully!")
}
