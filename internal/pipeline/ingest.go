package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/gcs"
)

// SourceKind selects how a source is read.
type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourceQuery SourceKind = "query"
	SourceHTTP  SourceKind = "http"
)

// Source locates raw transaction data.
type Source struct {
	Kind       SourceKind `json:"kind"`
	Path       string     `json:"path,omitempty"`     // file: local path or gs:// URI
	ConnString string     `json:"conn,omitempty"`     // query: connection string
	Query      string     `json:"query,omitempty"`    // query: optional SQL, provider default otherwise
	Endpoint   string     `json:"endpoint,omitempty"` // http: URL returning JSON
}

// Ingestor reads a source into a standardized dataset. It owns no caller
// connections; query sources go through the injected ConnectionProvider.
type Ingestor struct {
	fetcher  FileFetcher
	provider ConnectionProvider
	client   *http.Client
}

// NewIngestor wires an ingestor. fetcher and provider may be nil when the
// corresponding source kinds are not used.
func NewIngestor(fetcher FileFetcher, provider ConnectionProvider, timeout time.Duration) *Ingestor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ingestor{
		fetcher:  fetcher,
		provider: provider,
		client:   &http.Client{Timeout: timeout},
	}
}

// Ingest materializes the source into a dataset with standardized column
// names.
func (in *Ingestor) Ingest(ctx context.Context, src Source) (*dataset.Dataset, error) {
	var (
		ds  *dataset.Dataset
		err error
	)

	switch src.Kind {
	case SourceFile:
		ds, err = in.ingestFile(ctx, src.Path)
	case SourceQuery:
		ds, err = in.ingestQuery(ctx, src.ConnString, src.Query)
	case SourceHTTP:
		ds, err = in.ingestHTTP(ctx, src.Endpoint)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}
	if err != nil {
		return nil, err
	}

	StandardizeColumns(ds)
	return ds, nil
}

// fileEncodings is the fixed attempt order for decoding flat files. latin-1
// covers the iso-8859-1 alias; cp1252 differs from it only in the 0x80-0x9F
// range.
var fileEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

func (in *Ingestor) ingestFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	var (
		raw []byte
		err error
	)
	if gcs.IsGCSURI(path) {
		if in.fetcher == nil {
			return nil, fmt.Errorf("no file fetcher configured for %s", path)
		}
		raw, err = in.fetcher.Fetch(ctx, path)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read source file %s: %w", path, err)
	}

	var lastErr error
	for _, e := range fileEncodings {
		if e.name == "utf-8" && !utf8.Valid(raw) {
			continue
		}
		decoded, decErr := e.enc.NewDecoder().Bytes(raw)
		if decErr != nil {
			lastErr = decErr
			continue
		}
		ds, parseErr := parseCSV(decoded)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}
		return ds, nil
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, lastErr)
}

func parseCSV(data []byte) (*dataset.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	ds := dataset.New(headers...)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV record: %w", err)
		}
		row := make(dataset.Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = parseCell(record[i])
			}
		}
		ds.Append(row)
	}
	return ds, nil
}

// parseCell infers a cell type from CSV text: empty cells are null, numbers
// become float64, everything else stays a string.
func parseCell(s string) dataset.Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}

func (in *Ingestor) ingestQuery(ctx context.Context, connString, query string) (*dataset.Dataset, error) {
	if in.provider == nil {
		return nil, fmt.Errorf("no connection provider configured for query sources")
	}
	columns, rows, err := in.provider.Query(ctx, connString, query)
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	ds := dataset.New(columns...)
	for _, row := range rows {
		ds.Append(row)
	}
	return ds, nil
}

func (in *Ingestor) ingestHTTP(ctx context.Context, endpoint string) (*dataset.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
	}

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return DatasetFromJSON(body)
}

// DatasetFromJSON accepts a top-level JSON list, an object with a "data" or
// "records" list, or a single object treated as one row.
func DatasetFromJSON(body []byte) (*dataset.Dataset, error) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnsupportedResponseShape, err)
	}

	switch v := parsed.(type) {
	case []any:
		return datasetFromObjects(v)
	case map[string]any:
		if list, ok := v["data"].([]any); ok {
			return datasetFromObjects(list)
		}
		if list, ok := v["records"].([]any); ok {
			return datasetFromObjects(list)
		}
		if _, hasData := v["data"]; hasData {
			return nil, fmt.Errorf("%w: \"data\" is not a list", ErrUnsupportedResponseShape)
		}
		if _, hasRecords := v["records"]; hasRecords {
			return nil, fmt.Errorf("%w: \"records\" is not a list", ErrUnsupportedResponseShape)
		}
		return datasetFromObjects([]any{v})
	default:
		return nil, fmt.Errorf("%w: top-level %T", ErrUnsupportedResponseShape, parsed)
	}
}

func datasetFromObjects(items []any) (*dataset.Dataset, error) {
	ds := dataset.New()
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T, want object", ErrUnsupportedResponseShape, i, item)
		}
		row := make(dataset.Row, len(obj))
		for k, v := range obj {
			row[k] = v
		}
		ds.Append(row)
	}
	return ds, nil
}

// columnSynonyms maps source column name variants to canonical names.
var columnSynonyms = map[string]string{
	"txn_id":     "transaction_id",
	"trans_id":   "transaction_id",
	"id":         "transaction_id",
	"cust_id":    "customer_id",
	"customer":   "customer_id",
	"amt":        "amount",
	"txn_amount": "amount",
	"trans_date": "transaction_date",
	"txn_date":   "transaction_date",
	"date":       "transaction_date",
	"type":       "transaction_type",
	"txn_type":   "transaction_type",
	"desc":       "description",
	"txn_desc":   "description",
}

// StandardizeColumns lower-cases column names, replaces spaces and hyphens
// with underscores and applies the synonym table. Running it on an already
// standardized dataset changes nothing.
func StandardizeColumns(ds *dataset.Dataset) {
	rename := make(map[string]string)
	for _, c := range ds.Columns() {
		canonical := strings.ToLower(c)
		canonical = strings.ReplaceAll(canonical, " ", "_")
		canonical = strings.ReplaceAll(canonical, "-", "_")
		if mapped, ok := columnSynonyms[canonical]; ok {
			canonical = mapped
		}
		if canonical != c {
			rename[c] = canonical
		}
	}
	ds.RenameColumns(rename)
}
