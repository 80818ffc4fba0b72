package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"

	"travel-backend/internal/auth"
	"travel-backend/internal/config"
	"travel-backend/internal/db"
	"travel-backend/internal/models"
	"travel-backend/internal/repositories"
)

// Tables in dependency order, children first.
var resetTables = []string{
	"merge_audits",
	"bookings",
	"travellers",
	"users",
	"organizations",
}

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset Database for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL DATA, including the merge audit ledger.")
	fmt.Println()

	if !*yes {
		fmt.Print("Type 'yes' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD must be set for the bootstrap admin user")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	err = repositories.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		for _, table := range resetTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
			fmt.Printf("  - Cleared %s\n", table)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		admin := &models.User{
			Username:     "admin",
			PasswordHash: hash,
			UserType:     models.UserTypeAdmin,
			IsActive:     true,
		}
		if err := repositories.NewUserRepository(tx).Create(ctx, admin); err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		fmt.Println("  - Created admin user")
		return nil
	})
	if err != nil {
		log.Fatalf("Reset failed: %v", err)
	}

	fmt.Println()
	fmt.Println("Database reset successful. Log in as 'admin' with ADMIN_PASSWORD.")
}
