package dataset

import (
	"testing"
	"time"
)

func TestAppendAndGet(t *testing.T) {
	d := New("transaction_id", "amount")
	d.Append(Row{"transaction_id": "TXN001", "amount": 100})
	d.Append(Row{"transaction_id": "TXN002", "amount": 49.5, "currency": "EUR"})

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	// int widened to float64 on append.
	if f, ok := AsFloat(d.Get(0, "amount")); !ok || f != 100 {
		t.Errorf("Get(0, amount) = %v, want 100.0", d.Get(0, "amount"))
	}
	// Column declared by second row.
	if !d.HasColumn("currency") {
		t.Error("currency column should exist after append")
	}
	// First row never wrote currency: reads as null.
	if !IsNull(d.Get(0, "currency")) {
		t.Errorf("Get(0, currency) = %v, want null", d.Get(0, "currency"))
	}
}

func TestAddColumnFillsDefault(t *testing.T) {
	d := New("transaction_id")
	d.Append(Row{"transaction_id": "A"})
	d.Append(Row{"transaction_id": "B"})

	d.AddColumn("is_valid", true)
	for i := 0; i < d.Len(); i++ {
		if b, ok := AsBool(d.Get(i, "is_valid")); !ok || !b {
			t.Errorf("row %d is_valid = %v, want true", i, d.Get(i, "is_valid"))
		}
	}

	// Re-declaring must not clobber values.
	if err := d.Set(0, "is_valid", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	d.AddColumn("is_valid", true)
	if b, _ := AsBool(d.Get(0, "is_valid")); b {
		t.Error("AddColumn on existing column overwrote a cell")
	}
}

func TestSetErrors(t *testing.T) {
	d := New("a")
	d.Append(Row{"a": "x"})

	if err := d.Set(5, "a", "y"); err == nil {
		t.Error("Set with out-of-range index should fail")
	}
	if err := d.Set(0, "nope", "y"); err == nil {
		t.Error("Set with unknown column should fail")
	}
}

func TestRenameColumnsIdempotent(t *testing.T) {
	mapping := map[string]string{"txn_id": "transaction_id", "amt": "amount"}

	d := New("txn_id", "amt", "status")
	d.Append(Row{"txn_id": "T1", "amt": 10.0, "status": "completed"})

	d.RenameColumns(mapping)
	first := append([]string(nil), d.Columns()...)

	d.RenameColumns(mapping)
	second := d.Columns()

	if len(first) != len(second) {
		t.Fatalf("column count changed on second rename: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("column %d changed on second rename: %q vs %q", i, first[i], second[i])
		}
	}
	if v := d.Get(0, "transaction_id"); v != "T1" {
		t.Errorf("transaction_id = %v, want T1", v)
	}
}

func TestRenameColumnsMerge(t *testing.T) {
	// "id" renames onto an already-canonical "transaction_id": existing
	// non-null cells win.
	d := New("transaction_id", "id")
	d.Append(Row{"transaction_id": "KEEP", "id": "LOSE"})
	d.Append(Row{"id": "FILL"})

	d.RenameColumns(map[string]string{"id": "transaction_id"})

	if d.HasColumn("id") {
		t.Error("id column should be gone after merge")
	}
	if v := d.Get(0, "transaction_id"); v != "KEEP" {
		t.Errorf("row 0 transaction_id = %v, want KEEP", v)
	}
	if v := d.Get(1, "transaction_id"); v != "FILL" {
		t.Errorf("row 1 transaction_id = %v, want FILL", v)
	}
}

func TestNullCellCount(t *testing.T) {
	d := New("a", "b")
	d.Append(Row{"a": "x"})
	d.Append(Row{"a": nil, "b": 1.0})

	if got := d.NullCellCount(); got != 2 {
		t.Errorf("NullCellCount() = %d, want 2", got)
	}
	if got := d.CellCount(); got != 4 {
		t.Errorf("CellCount() = %d, want 4", got)
	}
}

func TestValueHelpers(t *testing.T) {
	now := time.Now()

	if s, ok := AsString("hi"); !ok || s != "hi" {
		t.Errorf("AsString(hi) = %q, %v", s, ok)
	}
	if s, ok := AsString(float64(42)); !ok || s != "42" {
		t.Errorf("AsString(42.0) = %q, %v", s, ok)
	}
	if _, ok := AsString(nil); ok {
		t.Error("AsString(nil) should report false")
	}
	if ts, ok := AsTime(now); !ok || !ts.Equal(now) {
		t.Errorf("AsTime round trip failed")
	}
	if IsNull("") {
		t.Error("empty string must not be null")
	}
	if !IsNull(nil) {
		t.Error("nil must be null")
	}
}

func TestRowCopy(t *testing.T) {
	d := New("a")
	d.Append(Row{"a": "x"})

	row := d.Row(0)
	row["a"] = "mutated"

	if v := d.Get(0, "a"); v != "x" {
		t.Errorf("Row() must return a copy; dataset cell = %v", v)
	}
}
