package sqldb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/bankflow/internal/dataset"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE transactions (
			transaction_id TEXT,
			customer_id TEXT,
			amount REAL,
			status TEXT
		)`,
		`INSERT INTO transactions VALUES ('T1', 'C1', 100.5, 'completed')`,
		`INSERT INTO transactions VALUES ('T2', 'C2', NULL, 'pending')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestProviderQuery(t *testing.T) {
	path := seedDB(t)

	p := NewProvider("sqlite3", 5*time.Second)
	columns, rows, err := p.Query(context.Background(), path, "SELECT * FROM transactions ORDER BY transaction_id")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	want := []string{"transaction_id", "customer_id", "amount", "status"}
	if len(columns) != len(want) {
		t.Fatalf("columns = %v, want %v", columns, want)
	}
	for i, c := range want {
		if columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, columns[i], c)
		}
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["transaction_id"] != "T1" {
		t.Errorf("transaction_id = %v, want T1", rows[0]["transaction_id"])
	}
	if rows[0]["amount"] != 100.5 {
		t.Errorf("amount = %v (%T), want float64 100.5", rows[0]["amount"], rows[0]["amount"])
	}
	if !dataset.IsNull(rows[1]["amount"]) {
		t.Errorf("NULL cell = %v, want null", rows[1]["amount"])
	}
}

func TestProviderDefaultQuery(t *testing.T) {
	path := seedDB(t)

	p := NewProvider("sqlite3", 5*time.Second)
	_, rows, err := p.Query(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("default query returned %d rows, want 2", len(rows))
	}
}

func TestProviderBadQuery(t *testing.T) {
	path := seedDB(t)

	p := NewProvider("sqlite3", 5*time.Second)
	if _, _, err := p.Query(context.Background(), path, "SELECT * FROM missing_table"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}
