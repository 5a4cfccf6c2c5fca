package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/repository/postgres"
	"github.com/pratik-mahalle/tocguard/migrations"
)

const usage = `usage: migrate [up|status]

  up       apply pending migrations (default)
  status   list migrations that have not been applied
`

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command != "up" && command != "status" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())

	schema, err := migrations.GetFS(db.Driver())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load migrations: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if command == "status" {
		pending, err := postgres.PendingMigrations(ctx, db, schema)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to check migration status: %v\n", err)
			os.Exit(1)
		}
		if len(pending) == 0 {
			fmt.Println("Schema is up to date")
			return
		}
		for _, name := range pending {
			fmt.Printf("Pending: %s\n", name)
		}
		return
	}

	applied, err := postgres.RunMigrations(ctx, db, schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	if len(applied) == 0 {
		fmt.Println("No pending migrations")
		return
	}
	for _, name := range applied {
		fmt.Printf("✓ Migration %s completed successfully\n", name)
	}
	fmt.Println("\nAll migrations completed successfully!")
}
