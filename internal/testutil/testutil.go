package testutil

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/migrations"
)

var dbSeq atomic.Int64

// NewTestDB creates an in-memory SQLite database with the embedded schema applied
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// A named shared-cache database keeps every pooled connection on the same data
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_time_format=sqlite", dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema, err := migrations.GetFS("sqlite")
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}

	files, err := fs.Glob(schema, "*.sql")
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(schema, name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			t.Fatalf("Failed to create test schema from %s: %v", name, err)
		}
	}

	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// NewTestLogger returns a logger that only reports errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}
