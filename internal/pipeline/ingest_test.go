package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dvloznov/bankflow/internal/dataset"
)

func TestStandardizeColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "synonyms",
			in:   []string{"txn_id", "cust_id", "amt", "trans_date"},
			want: []string{"transaction_id", "customer_id", "amount", "transaction_date"},
		},
		{
			name: "case and separators",
			in:   []string{"Transaction ID", "CUSTOMER-ID", "Amount"},
			want: []string{"transaction_id", "customer_id", "amount"},
		},
		{
			name: "already canonical",
			in:   []string{"transaction_id", "amount", "status"},
			want: []string{"transaction_id", "amount", "status"},
		},
		{
			name: "id maps to transaction_id",
			in:   []string{"id", "status"},
			want: []string{"transaction_id", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := dataset.New(tt.in...)
			StandardizeColumns(ds)
			if got := ds.Columns(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("columns = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStandardizeColumnsIdempotent(t *testing.T) {
	ds := dataset.New("Txn ID", "amt")
	ds.Append(dataset.Row{"Txn ID": "T1", "amt": 10.0})

	StandardizeColumns(ds)
	first := append([]string(nil), ds.Columns()...)
	StandardizeColumns(ds)

	if !reflect.DeepEqual(ds.Columns(), first) {
		t.Errorf("second pass changed columns: %v != %v", ds.Columns(), first)
	}
	if v := ds.Get(0, "transaction_id"); v != "T1" {
		t.Errorf("transaction_id = %v, want T1", v)
	}
}

func TestStandardizeColumnsSynonymCollision(t *testing.T) {
	// Both "id" and "transaction_id" present: values merge, non-null wins.
	ds := dataset.New("id", "transaction_id")
	ds.Append(dataset.Row{"id": "A", "transaction_id": nil})
	ds.Append(dataset.Row{"id": nil, "transaction_id": "B"})

	StandardizeColumns(ds)

	if got := len(ds.Columns()); got != 1 {
		t.Fatalf("column count = %d, want 1", got)
	}
	if v := ds.Get(0, "transaction_id"); v != "A" {
		t.Errorf("row 0 transaction_id = %v, want A", v)
	}
	if v := ds.Get(1, "transaction_id"); v != "B" {
		t.Errorf("row 1 transaction_id = %v, want B", v)
	}
}

func TestDatasetFromJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRows int
		wantErr  bool
	}{
		{name: "top-level list", body: `[{"transaction_id":"T1"},{"transaction_id":"T2"}]`, wantRows: 2},
		{name: "data wrapper", body: `{"data":[{"transaction_id":"T1"}]}`, wantRows: 1},
		{name: "records wrapper", body: `{"records":[{"transaction_id":"T1"},{"transaction_id":"T2"},{"transaction_id":"T3"}]}`, wantRows: 3},
		{name: "single object", body: `{"transaction_id":"T1","amount":42.5}`, wantRows: 1},
		{name: "empty list", body: `[]`, wantRows: 0},
		{name: "data is not a list", body: `{"data":"nope"}`, wantErr: true},
		{name: "list of scalars", body: `[1,2,3]`, wantErr: true},
		{name: "top-level scalar", body: `42`, wantErr: true},
		{name: "invalid JSON", body: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := DatasetFromJSON([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DatasetFromJSON() error = %v", err)
			}
			if ds.Len() != tt.wantRows {
				t.Errorf("rows = %d, want %d", ds.Len(), tt.wantRows)
			}
		})
	}
}

func TestIngestCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transactions.csv")
	csv := "Txn ID,cust_id,amt,trans_date,status\n" +
		"T1,C1,100.50,2024-01-15,completed\n" +
		"T2,C2,,2024-01-16,pending\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	in := NewIngestor(nil, nil, time.Second)
	ds, err := in.Ingest(context.Background(), Source{Kind: SourceFile, Path: path})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if ds.Len() != 2 {
		t.Fatalf("rows = %d, want 2", ds.Len())
	}
	want := []string{"transaction_id", "customer_id", "amount", "transaction_date", "status"}
	if !reflect.DeepEqual(ds.Columns(), want) {
		t.Errorf("columns = %v, want %v", ds.Columns(), want)
	}
	if v := ds.Get(0, "amount"); v != 100.50 {
		t.Errorf("amount = %v (%T), want float64 100.50", v, v)
	}
	if v := ds.Get(1, "amount"); !dataset.IsNull(v) {
		t.Errorf("empty cell = %v, want null", v)
	}
	if v := ds.Get(0, "transaction_id"); v != "T1" {
		t.Errorf("transaction_id = %v, want T1", v)
	}
}

func TestIngestLatin1File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.csv")
	// "café" with 0xE9 is invalid UTF-8, so decoding falls through to latin-1.
	data := append([]byte("transaction_id,description\nT1,caf"), 0xE9, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	in := NewIngestor(nil, nil, time.Second)
	ds, err := in.Ingest(context.Background(), Source{Kind: SourceFile, Path: path})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if v := ds.Get(0, "description"); v != "café" {
		t.Errorf("description = %q, want %q", v, "café")
	}
}

func TestIngestMissingFile(t *testing.T) {
	in := NewIngestor(nil, nil, time.Second)
	_, err := in.Ingest(context.Background(), Source{Kind: SourceFile, Path: "/nonexistent/file.csv"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIngestHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"txn_id":"T1","amount":10},{"txn_id":"T2","amount":20}]}`))
	}))
	defer server.Close()

	in := NewIngestor(nil, nil, time.Second)
	ds, err := in.Ingest(context.Background(), Source{Kind: SourceHTTP, Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d, want 2", ds.Len())
	}
	if !ds.HasColumn("transaction_id") {
		t.Errorf("txn_id not standardized: columns = %v", ds.Columns())
	}
	// JSON numbers arrive as float64.
	if v := ds.Get(1, "amount"); v != 20.0 {
		t.Errorf("amount = %v (%T), want float64 20", v, v)
	}
}

func TestIngestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	in := NewIngestor(nil, nil, time.Second)
	if _, err := in.Ingest(context.Background(), Source{Kind: SourceHTTP, Endpoint: server.URL}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

type fakeProvider struct {
	columns []string
	rows    []dataset.Row
	err     error

	gotConn  string
	gotQuery string
}

func (p *fakeProvider) Query(ctx context.Context, connString, query string) ([]string, []dataset.Row, error) {
	p.gotConn = connString
	p.gotQuery = query
	return p.columns, p.rows, p.err
}

func TestIngestQuery(t *testing.T) {
	provider := &fakeProvider{
		columns: []string{"txn_id", "amount"},
		rows: []dataset.Row{
			{"txn_id": "T1", "amount": 10.0},
		},
	}

	in := NewIngestor(nil, provider, time.Second)
	ds, err := in.Ingest(context.Background(), Source{Kind: SourceQuery, ConnString: "proj.dataset", Query: "SELECT 1"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if provider.gotConn != "proj.dataset" || provider.gotQuery != "SELECT 1" {
		t.Errorf("provider got (%q, %q)", provider.gotConn, provider.gotQuery)
	}
	if !ds.HasColumn("transaction_id") {
		t.Errorf("txn_id not standardized: columns = %v", ds.Columns())
	}
}

func TestIngestQueryWithoutProvider(t *testing.T) {
	in := NewIngestor(nil, nil, time.Second)
	if _, err := in.Ingest(context.Background(), Source{Kind: SourceQuery, ConnString: "x"}); err == nil {
		t.Fatal("expected error without a connection provider")
	}
}

func TestIngestUnsupportedKind(t *testing.T) {
	in := NewIngestor(nil, nil, time.Second)
	if _, err := in.Ingest(context.Background(), Source{Kind: "ftp"}); err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}
