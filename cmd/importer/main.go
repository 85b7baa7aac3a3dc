// Command importer loads an inventory spreadsheet straight into the
// database, bypassing the HTTP upload limit. Useful for the initial
// stock load or nightly bulk refreshes.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"ncpharmacy/backend/internal/config"
	"ncpharmacy/backend/internal/db"
	"ncpharmacy/backend/internal/excel"
	"ncpharmacy/backend/internal/repository"
)

func main() {
	path := flag.String("file", "inventory.xlsx", "path to the .xlsx or .csv inventory file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	file, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer file.Close()

	rows, warnings, err := excel.ParseInventoryFile(filepath.Base(*path), file)
	if err != nil {
		log.Fatalf("parse %s: %v", *path, err)
	}
	for _, warning := range warnings {
		log.Printf("warning: %s", warning)
	}

	repo := repository.New(pool)
	created, updated, err := repo.UpsertImportRows(ctx, rows)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("import complete: rows=%d created=%d updated=%d skipped=%d", len(rows), created, updated, len(warnings))
}
