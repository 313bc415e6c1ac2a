package pipeline

import (
	"context"

	"github.com/dvloznov/bankflow/internal/dataset"
)

// ConnectionProvider executes a query against an external store and returns
// the result as rows plus their column names in select order. The provider
// must not retain or mutate the connection string.
type ConnectionProvider interface {
	Query(ctx context.Context, connString, query string) ([]string, []dataset.Row, error)
}

// FileFetcher resolves non-local file sources (gs:// URIs) to raw bytes.
type FileFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}
