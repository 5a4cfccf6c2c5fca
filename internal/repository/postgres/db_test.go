package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
	"github.com/pratik-mahalle/tocguard/migrations"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	raw := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(raw) })
	return Wrap(raw, DriverSQLite)
}

func TestDB_Rebind(t *testing.T) {
	tests := []struct {
		driver string
		query  string
		want   string
	}{
		{DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
		{DriverSQLite, "SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = ?"},
	}

	for _, tt := range tests {
		db := Wrap(nil, tt.driver)
		if got := db.Rebind(tt.query); got != tt.want {
			t.Errorf("Rebind(%q) on %s = %q, want %q", tt.query, tt.driver, got, tt.want)
		}
	}
}

func TestDB_WithinTx(t *testing.T) {
	db := newTestDB(t)
	repo := NewDrumRepository(db)
	ctx := context.Background()

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.CreateResource(ctx, &drum.Resource{Name: "rolled back"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatal("WithinTx() expected error")
	}

	err = db.WithinTx(ctx, func(ctx context.Context) error {
		// Nested calls join the outer transaction
		return db.WithinTx(ctx, func(ctx context.Context) error {
			return repo.CreateResource(ctx, &drum.Resource{Name: "committed"})
		})
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}

	util, err := repo.ListUtilization(ctx)
	if err != nil {
		t.Fatalf("ListUtilization() error = %v", err)
	}
	if len(util) != 1 || util[0].ResourceName != "committed" {
		t.Errorf("resources after transactions = %+v, want only the committed one", util)
	}
}

func TestNullTime_Scan(t *testing.T) {
	want := time.Date(2026, 5, 4, 10, 30, 0, 500, time.UTC)
	tests := []struct {
		name  string
		value interface{}
		valid bool
	}{
		{name: "time value", value: want, valid: true},
		{name: "driver text", value: "2026-05-04 10:30:00.0000005+00:00", valid: true},
		{name: "go time string", value: "2026-05-04 10:30:00.0000005 +0000 UTC", valid: true},
		{name: "go time string offset", value: "2026-05-04 12:30:00.0000005 +0200 CEST", valid: true},
		{name: "rfc3339 bytes", value: []byte("2026-05-04T10:30:00.0000005Z"), valid: true},
		{name: "null", value: nil, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n nullTime
			if err := n.Scan(tt.value); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if n.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v", n.Valid, tt.valid)
			}
			if tt.valid && !n.Time.Equal(want) {
				t.Errorf("Time = %v, want %v", n.Time, want)
			}
		})
	}

	var n nullTime
	if err := n.Scan("yesterday"); err == nil {
		t.Error("Scan() accepted an unparseable timestamp")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"data/toc.db", "data/toc.db?_time_format=sqlite"},
		{"file:toc.db?cache=shared", "file:toc.db?cache=shared&_time_format=sqlite"},
		{"toc.db?_time_format=sqlite", "toc.db?_time_format=sqlite"},
	}

	for _, tt := range tests {
		if got := SQLiteDSN(tt.path); got != tt.want {
			t.Errorf("SQLiteDSN(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSQLiteTimestampsRoundTrip(t *testing.T) {
	for _, dsn := range []string{
		fmt.Sprintf("file:ts%d?mode=memory&cache=shared", time.Now().UnixNano()),
		SQLiteDSN(fmt.Sprintf("file:ts%d?mode=memory&cache=shared", time.Now().UnixNano()+1)),
	} {
		t.Run(dsn, func(t *testing.T) {
			raw, err := sql.Open("sqlite", dsn)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer raw.Close()

			if _, err := raw.Exec(`CREATE TABLE stamps (at TIMESTAMP NOT NULL)`); err != nil {
				t.Fatalf("create: %v", err)
			}
			want := time.Date(2026, 10, 17, 18, 41, 44, 416569433, time.UTC)
			if _, err := raw.Exec(`INSERT INTO stamps (at) VALUES (?)`, timeArg(want)); err != nil {
				t.Fatalf("insert: %v", err)
			}

			var got nullTime
			if err := raw.QueryRow(`SELECT at FROM stamps`).Scan(&got); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if !got.Valid || !got.Time.Equal(want) {
				t.Errorf("read back %v, want %v", got.Time, want)
			}
		})
	}
}

func TestRunMigrations(t *testing.T) {
	raw, err := sql.Open("sqlite", fmt.Sprintf("file:migrate%d?mode=memory&cache=shared&_time_format=sqlite", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw.SetMaxOpenConns(1)
	defer raw.Close()

	db := Wrap(raw, DriverSQLite)
	schema, err := migrations.GetFS(DriverSQLite)
	if err != nil {
		t.Fatalf("GetFS() error = %v", err)
	}
	ctx := context.Background()

	pending, err := PendingMigrations(ctx, db, schema)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("PendingMigrations() on empty database returned nothing")
	}

	applied, err := RunMigrations(ctx, db, schema)
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if len(applied) != len(pending) {
		t.Errorf("RunMigrations() applied %v, want %v", applied, pending)
	}

	again, err := RunMigrations(ctx, db, schema)
	if err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("RunMigrations() reapplied %v", again)
	}

	if _, err := NewDrumRepository(db).ListUtilization(ctx); err != nil {
		t.Errorf("schema unusable after migration: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header
CREATE TABLE a (
    id INTEGER
);

CREATE INDEX i ON a(id);
`
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("splitStatements() = %d statements, want 2: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX i ON a(id);" {
		t.Errorf("second statement = %q", stmts[1])
	}
}
