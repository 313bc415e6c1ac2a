// Package sqldb materializes query-source results from any database/sql
// driver. The cmd binaries register the sqlite3 driver; other drivers work
// the same way once imported.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/bankflow/internal/dataset"
)

// DefaultQuery is used when a query source gives no query of its own.
const DefaultQuery = "SELECT * FROM transactions"

// Provider runs queries through database/sql.
type Provider struct {
	driver  string
	timeout time.Duration
}

// NewProvider creates a provider for the given registered driver name.
func NewProvider(driver string, timeout time.Duration) *Provider {
	return &Provider{driver: driver, timeout: timeout}
}

// Query opens a connection for the duration of one query and returns the
// result rows with their column names. The caller's connection string is
// never retained.
func (p *Provider) Query(ctx context.Context, connString, query string) ([]string, []dataset.Row, error) {
	db, err := sql.Open(p.driver, connString)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s connection: %w", p.driver, err)
	}
	defer db.Close()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if query == "" {
		query = DefaultQuery
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read result columns: %w", err)
	}

	var out []dataset.Row
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(dataset.Row, len(columns))
		for i, c := range columns {
			row[c] = dataset.Normalize(cells[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate results: %w", err)
	}

	return columns, out, nil
}
