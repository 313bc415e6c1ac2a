// Package bigquery materializes query-source results from BigQuery into
// pipeline rows. The connection string is the GCP project id, optionally
// suffixed with the default dataset ("project" or "project.dataset").
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/bankflow/internal/dataset"
)

// DefaultQuery is used when a query source gives no query of its own.
const DefaultQuery = "SELECT * FROM transactions"

// Provider runs queries against BigQuery.
type Provider struct{}

// NewProvider creates a BigQuery connection provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Query executes the given query (or DefaultQuery when empty) and returns the
// result rows with their column names in select order.
func (p *Provider) Query(ctx context.Context, connString, query string) ([]string, []dataset.Row, error) {
	project, defaultDataset := splitConnString(connString)
	if project == "" {
		return nil, nil, fmt.Errorf("bigquery connection string must name a project, got %q", connString)
	}

	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, nil, fmt.Errorf("bigquery client: %w", err)
	}
	defer client.Close()

	if query == "" {
		query = DefaultQuery
	}

	q := client.Query(query)
	if defaultDataset != "" {
		q.DefaultDatasetID = defaultDataset
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("run query: %w", err)
	}

	var (
		columns []string
		rows    []dataset.Row
	)
	for {
		var vals []bigquery.Value
		err := it.Next(&vals)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("iterate results: %w", err)
		}

		if columns == nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
		}

		row := make(dataset.Row, len(vals))
		for i, v := range vals {
			if i >= len(columns) {
				break
			}
			row[columns[i]] = convertValue(v)
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}

func splitConnString(conn string) (project, ds string) {
	parts := strings.SplitN(strings.TrimSpace(conn), ".", 2)
	project = parts[0]
	if len(parts) == 2 {
		ds = parts[1]
	}
	return project, ds
}

// convertValue maps BigQuery cell types onto the dataset value set. NUMERIC
// comes back as *big.Rat; it is narrowed to float64 like every other number.
func convertValue(v bigquery.Value) dataset.Value {
	switch val := v.(type) {
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	default:
		return dataset.Normalize(val)
	}
}
