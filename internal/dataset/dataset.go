// Package dataset implements the in-memory tabular structure the pipeline
// stages operate on: an ordered sequence of rows with named, dynamically
// typed columns. Row positions are stable for the lifetime of a dataset so
// diagnostics keyed by row index stay valid across stages.
package dataset

import (
	"fmt"
	"time"
)

// Value is a single cell. Supported concrete types are string, float64,
// time.Time, bool and nil. Normalize converts other numeric widths on entry.
type Value interface{}

// Row maps column names to cell values.
type Row map[string]Value

// Dataset is an ordered collection of rows with a declared column order.
// Columns may be added after construction; rows are never removed or
// reordered.
type Dataset struct {
	columns []string
	colSet  map[string]struct{}
	rows    []Row
}

// New creates an empty dataset with the given column order.
func New(columns ...string) *Dataset {
	d := &Dataset{
		colSet: make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		d.addColumnName(c)
	}
	return d
}

func (d *Dataset) addColumnName(name string) {
	if _, ok := d.colSet[name]; ok {
		return
	}
	d.columns = append(d.columns, name)
	d.colSet[name] = struct{}{}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns the column names in declaration order. The returned slice
// must not be mutated by the caller.
func (d *Dataset) Columns() []string { return d.columns }

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.colSet[name]
	return ok
}

// AddColumn declares a new column and fills every existing row with the
// given default. Declaring an existing column is a no-op.
func (d *Dataset) AddColumn(name string, def Value) {
	if d.HasColumn(name) {
		return
	}
	d.addColumnName(name)
	for _, row := range d.rows {
		row[name] = def
	}
}

// Append adds a row at the end of the dataset. Cells for columns the row
// does not mention are left null; cells for columns the dataset has not seen
// yet declare those columns. Values are normalized on the way in.
func (d *Dataset) Append(row Row) {
	r := make(Row, len(row))
	for k, v := range row {
		d.addColumnName(k)
		r[k] = Normalize(v)
	}
	d.rows = append(d.rows, r)
}

// Get returns the cell at (row index, column). A missing column or a cell
// never written reads as nil.
func (d *Dataset) Get(i int, col string) Value {
	if i < 0 || i >= len(d.rows) {
		return nil
	}
	return d.rows[i][col]
}

// Set writes the cell at (row index, column). The column must have been
// declared; out-of-range indexes and unknown columns are errors.
func (d *Dataset) Set(i int, col string, v Value) error {
	if i < 0 || i >= len(d.rows) {
		return fmt.Errorf("row index %d out of range [0,%d)", i, len(d.rows))
	}
	if !d.HasColumn(col) {
		return fmt.Errorf("unknown column %q", col)
	}
	d.rows[i][col] = Normalize(v)
	return nil
}

// Row returns a copy of the row at the given index, with every declared
// column present (missing cells read as nil).
func (d *Dataset) Row(i int) Row {
	if i < 0 || i >= len(d.rows) {
		return nil
	}
	out := make(Row, len(d.columns))
	for _, c := range d.columns {
		out[c] = d.rows[i][c]
	}
	return out
}

// RenameColumns applies the given old->new mapping to column names, keeping
// declaration order. Renaming onto an existing column merges cell values,
// with the renamed column winning only where the target cell is null.
// Applying the same mapping twice is a no-op the second time.
func (d *Dataset) RenameColumns(mapping map[string]string) {
	for _, old := range append([]string(nil), d.columns...) {
		nu, ok := mapping[old]
		if !ok || nu == old {
			continue
		}
		if d.HasColumn(nu) {
			// Merge into the existing target column.
			for _, row := range d.rows {
				if v, present := row[old]; present {
					if IsNull(row[nu]) {
						row[nu] = v
					}
					delete(row, old)
				}
			}
			d.dropColumnName(old)
			continue
		}
		for _, row := range d.rows {
			if v, present := row[old]; present {
				row[nu] = v
				delete(row, old)
			}
		}
		for idx, c := range d.columns {
			if c == old {
				d.columns[idx] = nu
			}
		}
		delete(d.colSet, old)
		d.colSet[nu] = struct{}{}
	}
}

func (d *Dataset) dropColumnName(name string) {
	delete(d.colSet, name)
	for idx, c := range d.columns {
		if c == name {
			d.columns = append(d.columns[:idx], d.columns[idx+1:]...)
			return
		}
	}
}

// CellCount returns rows x columns.
func (d *Dataset) CellCount() int {
	return len(d.rows) * len(d.columns)
}

// NullCellCount counts cells that are null (or never written) across all
// rows and declared columns.
func (d *Dataset) NullCellCount() int {
	n := 0
	for _, row := range d.rows {
		for _, c := range d.columns {
			if IsNull(row[c]) {
				n++
			}
		}
	}
	return n
}

// Normalize widens numeric values to float64 and byte slices to string so a
// cell only ever holds one of the supported concrete types.
func Normalize(v Value) Value {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	default:
		return v
	}
}

// IsNull reports whether a cell is null. Empty strings are values, not nulls.
func IsNull(v Value) bool { return v == nil }

// AsString returns the cell as a string. Non-string scalars are formatted;
// nulls report false.
func AsString(v Value) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return trimFloat(val), true
	case bool:
		return fmt.Sprintf("%t", val), true
	case time.Time:
		return val.Format(time.RFC3339), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// AsFloat returns the cell as a float64 if it holds a number.
func AsFloat(v Value) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// AsTime returns the cell as a time.Time if it holds a timestamp.
func AsTime(v Value) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// AsBool returns the cell as a bool if it holds one.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
