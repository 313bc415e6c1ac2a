package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/domain"
)

// maxTransactionAge is how far back a transaction date may lie.
const maxTransactionAge = 3650 * 24 * time.Hour

// Validator applies the banking schema checks row by row. Rows that fail are
// annotated, never dropped.
type Validator struct {
	RequiredColumns []string

	// now is swappable for tests of the date checks.
	now func() time.Time
}

// NewValidator creates a validator for the given required columns.
func NewValidator(requiredColumns []string) *Validator {
	return &Validator{
		RequiredColumns: requiredColumns,
		now:             time.Now,
	}
}

// Validate annotates every row with is_valid/validation_errors and returns
// the stage metrics plus the per-row error list (capped for reporting; the
// metrics carry the full count). A non-nil error is a structural failure:
// required columns are missing and no row was scanned.
func (v *Validator) Validate(ds *dataset.Dataset) (ValidationMetrics, []RowError, error) {
	if missing := v.missingColumns(ds); len(missing) > 0 {
		return ValidationMetrics{}, nil, &MissingColumnsError{Columns: missing}
	}

	ds.AddColumn(domain.ColIsValid, true)
	ds.AddColumn(domain.ColValidationErrors, nil)

	var (
		rowErrors   []RowError
		invalidRows int
		errorCount  int
	)

	for i := 0; i < ds.Len(); i++ {
		errs := v.validateRow(ds, i)
		if len(errs) == 0 {
			continue
		}

		invalidRows++
		errorCount += len(errs)

		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Field+": "+e.Message)
			if len(rowErrors) < maxReportedEntries {
				rowErrors = append(rowErrors, e)
			}
		}
		_ = ds.Set(i, domain.ColIsValid, false)
		_ = ds.Set(i, domain.ColValidationErrors, strings.Join(msgs, "; "))
	}

	total := ds.Len()
	valid := total - invalidRows
	rate := 0.0
	if total > 0 {
		rate = round2(float64(valid) / float64(total) * 100)
	}

	metrics := ValidationMetrics{
		TotalRows:      total,
		ValidRows:      valid,
		InvalidRows:    invalidRows,
		ValidationRate: rate,
		ErrorCount:     errorCount,
	}
	return metrics, rowErrors, nil
}

func (v *Validator) missingColumns(ds *dataset.Dataset) []string {
	var missing []string
	for _, c := range v.RequiredColumns {
		if !ds.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

func (v *Validator) validateRow(ds *dataset.Dataset, i int) []RowError {
	var errs []RowError

	addErr := func(field, msg string, value dataset.Value) {
		s, _ := dataset.AsString(value)
		errs = append(errs, RowError{RowIndex: i, Field: field, Message: msg, Value: s})
	}

	if !nonEmptyString(ds.Get(i, domain.ColTransactionID)) {
		addErr(domain.ColTransactionID, "invalid or missing transaction ID", ds.Get(i, domain.ColTransactionID))
	}
	if !nonEmptyString(ds.Get(i, domain.ColCustomerID)) {
		addErr(domain.ColCustomerID, "invalid or missing customer ID", ds.Get(i, domain.ColCustomerID))
	}

	if msg := v.validateAmount(ds.Get(i, domain.ColAmount)); msg != "" {
		addErr(domain.ColAmount, msg, ds.Get(i, domain.ColAmount))
	}
	if msg := v.validateDate(ds.Get(i, domain.ColTransactionDate)); msg != "" {
		addErr(domain.ColTransactionDate, msg, ds.Get(i, domain.ColTransactionDate))
	}
	if !v.validStatus(ds.Get(i, domain.ColStatus)) {
		addErr(domain.ColStatus, "invalid or missing status", ds.Get(i, domain.ColStatus))
	}

	return errs
}

func nonEmptyString(v dataset.Value) bool {
	s, ok := dataset.AsString(v)
	return ok && len(s) > 0
}

// validateAmount accepts any nonzero number. Negative amounts are fine:
// refunds and withdrawals are legitimately negative.
func (v *Validator) validateAmount(val dataset.Value) string {
	if dataset.IsNull(val) {
		return "amount is missing"
	}

	f, ok := dataset.AsFloat(val)
	if !ok {
		s, _ := dataset.AsString(val)
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return "amount is not a valid number"
		}
		f = parsed
	}
	if f == 0 {
		return "amount is zero"
	}
	return ""
}

func (v *Validator) validateDate(val dataset.Value) string {
	if dataset.IsNull(val) {
		return "date is missing"
	}

	t, ok := dataset.AsTime(val)
	if !ok {
		s, _ := dataset.AsString(val)
		parsed, ok := ParseTimestamp(s)
		if !ok {
			return "invalid date format"
		}
		t = parsed
	}

	now := v.now()
	if t.After(now) {
		return "date is in the future"
	}
	if now.Sub(t) > maxTransactionAge {
		return "date is more than 10 years old"
	}
	return ""
}

func (v *Validator) validStatus(val dataset.Value) bool {
	s, ok := dataset.AsString(val)
	if !ok {
		return false
	}
	_, known := domain.CanonicalStatuses[strings.ToLower(strings.TrimSpace(s))]
	return known
}

// timestampLayouts is the fixed list of accepted date formats.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// ParseTimestamp tries each accepted layout in order.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
