package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/domain"
)

// Cleaner canonicalizes field values row by row and then runs the
// dataset-level repairs: duplicate flagging, missing-value imputation and
// date coercion, in that order.
type Cleaner struct{}

// NewCleaner creates a cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

var (
	idJunkRe       = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	currencyJunkRe = regexp.MustCompile(`[$€£¥,]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	descJunkRe     = regexp.MustCompile(`[^\w\s\-.,!?()]`)
)

// statusSynonyms folds status variants down to the canonical values.
// Unrecognized statuses pass through lower-cased.
var statusSynonyms = map[string]string{
	"complete":   "completed",
	"success":    "completed",
	"successful": "completed",
	"approved":   "completed",
	"done":       "completed",
	"fail":       "failed",
	"failure":    "failed",
	"declined":   "failed",
	"rejected":   "failed",
	"cancel":     "cancelled",
	"canceled":   "cancelled",
	"process":    "processing",
	"processing": "processing",
	"pend":       "pending",
	"waiting":    "pending",
}

// typeSynonyms folds transaction type variants to the canonical enumeration.
var typeSynonyms = map[string]string{
	"dep":        "deposit",
	"credit":     "deposit",
	"withdraw":   "withdrawal",
	"withdrawal": "withdrawal",
	"debit":      "withdrawal",
	"transfer":   "transfer",
	"xfer":       "transfer",
	"payment":    "payment",
	"pay":        "payment",
	"purchase":   "payment",
	"refund":     "refund",
	"return":     "refund",
}

// Clean runs the per-row pass and the three dataset-level passes. Every field
// change is recorded; a row with at least one change is flagged was_cleaned.
func (c *Cleaner) Clean(ds *dataset.Dataset) (CleaningMetrics, []CleaningEntry) {
	ds.AddColumn(domain.ColWasCleaned, false)
	ds.AddColumn(domain.ColCleaningActions, nil)
	ds.AddColumn(domain.ColOriginalValues, nil)

	var (
		log          []CleaningEntry
		rowsModified int
		totalActions int
	)

	for i := 0; i < ds.Len(); i++ {
		actions, originals := c.cleanRow(ds, i)
		if len(actions) == 0 {
			continue
		}

		rowsModified++
		totalActions += len(actions)

		_ = ds.Set(i, domain.ColWasCleaned, true)
		_ = ds.Set(i, domain.ColCleaningActions, strings.Join(actions, "; "))
		_ = ds.Set(i, domain.ColOriginalValues, formatOriginals(originals))

		if len(log) < maxReportedEntries {
			log = append(log, CleaningEntry{
				RowIndex:       i,
				Actions:        actions,
				OriginalValues: originals,
			})
		}
	}

	c.flagDuplicates(ds)
	c.imputeMissing(ds)
	c.coerceDates(ds)

	rate := 0.0
	if ds.Len() > 0 {
		rate = round2(float64(rowsModified) / float64(ds.Len()) * 100)
	}

	metrics := CleaningMetrics{
		TotalRows:            ds.Len(),
		RowsModified:         rowsModified,
		ModificationRate:     rate,
		CleaningActionsCount: totalActions,
	}
	return metrics, log
}

func (c *Cleaner) cleanRow(ds *dataset.Dataset, i int) (actions []string, originals map[string]string) {
	originals = make(map[string]string)

	change := func(col string, old dataset.Value, nu dataset.Value, action string) {
		s, _ := dataset.AsString(old)
		originals[col] = s
		_ = ds.Set(i, col, nu)
		actions = append(actions, action)
	}

	if v := ds.Get(i, domain.ColTransactionID); !dataset.IsNull(v) {
		old, _ := dataset.AsString(v)
		if cleaned := CleanIdentifier(old); cleaned != old || !isString(v) {
			change(domain.ColTransactionID, v, cleaned, "cleaned transaction_id format")
		}
	}

	if v := ds.Get(i, domain.ColAmount); !dataset.IsNull(v) {
		cleaned := CleanAmount(v)
		if old, isNum := dataset.AsFloat(v); !isNum || old != cleaned {
			change(domain.ColAmount, v, cleaned, "normalized amount value")
		}
	}

	if v := ds.Get(i, domain.ColStatus); !dataset.IsNull(v) {
		old, _ := dataset.AsString(v)
		if cleaned := CleanStatus(old); cleaned != old {
			change(domain.ColStatus, v, cleaned, "standardized status value")
		}
	}

	if ds.HasColumn(domain.ColTransactionType) {
		if v := ds.Get(i, domain.ColTransactionType); !dataset.IsNull(v) {
			old, _ := dataset.AsString(v)
			if cleaned := CleanTransactionType(old); cleaned != old {
				change(domain.ColTransactionType, v, cleaned, "standardized transaction_type")
			}
		}
	}

	if ds.HasColumn(domain.ColDescription) {
		if v := ds.Get(i, domain.ColDescription); !dataset.IsNull(v) {
			old, _ := dataset.AsString(v)
			if cleaned := CleanDescription(old); cleaned != old {
				change(domain.ColDescription, v, cleaned, "cleaned description text")
			}
		}
	}

	ds.AddColumn(domain.ColCurrency, nil)
	if dataset.IsNull(ds.Get(i, domain.ColCurrency)) {
		_ = ds.Set(i, domain.ColCurrency, "USD")
		actions = append(actions, "imputed missing currency with USD")
	}

	if v := ds.Get(i, domain.ColCustomerID); !dataset.IsNull(v) {
		old, _ := dataset.AsString(v)
		if cleaned := CleanIdentifier(old); cleaned != old || !isString(v) {
			change(domain.ColCustomerID, v, cleaned, "cleaned customer_id format")
		}
	}

	return actions, originals
}

func isString(v dataset.Value) bool {
	_, ok := v.(string)
	return ok
}

// CleanIdentifier strips surrounding whitespace, drops everything outside
// alphanumerics, hyphen and underscore, and upper-cases the rest. Running it
// on an already-canonical identifier returns it unchanged.
func CleanIdentifier(s string) string {
	return strings.ToUpper(idJunkRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// CleanAmount parses a raw amount cell to a number with two decimal places.
// Currency symbols and thousands separators are stripped; accounting
// parenthesis notation becomes a minus sign. Unparsable values coerce to 0.0
// deliberately: a lossy default, not an error.
func CleanAmount(v dataset.Value) float64 {
	if f, ok := dataset.AsFloat(v); ok {
		return roundCents(f)
	}

	s, ok := dataset.AsString(v)
	if !ok {
		return 0.0
	}
	s = currencyJunkRe.ReplaceAllString(strings.TrimSpace(s), "")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return roundCents(f)
}

func roundCents(f float64) float64 {
	return math.Round(f*100) / 100
}

// CleanStatus lower-cases and folds known synonyms onto the canonical status
// set; unknown statuses pass through lower-cased.
func CleanStatus(s string) string {
	status := strings.ToLower(strings.TrimSpace(s))
	if mapped, ok := statusSynonyms[status]; ok {
		return mapped
	}
	return status
}

// CleanTransactionType does the same for transaction types.
func CleanTransactionType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	if mapped, ok := typeSynonyms[t]; ok {
		return mapped
	}
	return t
}

// CleanDescription collapses whitespace runs and strips special characters,
// keeping word characters, spaces and -.,!?().
func CleanDescription(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return descJunkRe.ReplaceAllString(s, "")
}

// flagDuplicates marks every row whose transaction_id was already seen on an
// earlier row. First occurrences stay unflagged.
func (c *Cleaner) flagDuplicates(ds *dataset.Dataset) {
	ds.AddColumn(domain.ColIsDuplicate, false)

	seen := make(map[string]struct{}, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		id, ok := dataset.AsString(ds.Get(i, domain.ColTransactionID))
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			_ = ds.Set(i, domain.ColIsDuplicate, true)
			continue
		}
		seen[id] = struct{}{}
	}
}

// imputeMissing fills defaults for description and transaction_type and
// forward-fills balance from the nearest preceding non-null value.
func (c *Cleaner) imputeMissing(ds *dataset.Dataset) {
	if ds.HasColumn(domain.ColDescription) {
		for i := 0; i < ds.Len(); i++ {
			if dataset.IsNull(ds.Get(i, domain.ColDescription)) {
				_ = ds.Set(i, domain.ColDescription, "No description")
			}
		}
	}

	if ds.HasColumn(domain.ColTransactionType) {
		for i := 0; i < ds.Len(); i++ {
			if dataset.IsNull(ds.Get(i, domain.ColTransactionType)) {
				_ = ds.Set(i, domain.ColTransactionType, "unknown")
			}
		}
	}

	if ds.HasColumn(domain.ColBalance) {
		var last dataset.Value
		for i := 0; i < ds.Len(); i++ {
			v := ds.Get(i, domain.ColBalance)
			if dataset.IsNull(v) {
				if !dataset.IsNull(last) {
					_ = ds.Set(i, domain.ColBalance, last)
				}
				continue
			}
			last = v
		}
	}
}

// coerceDates parses transaction_date cells into timestamps; unparsable
// values become null, not errors.
func (c *Cleaner) coerceDates(ds *dataset.Dataset) {
	if !ds.HasColumn(domain.ColTransactionDate) {
		return
	}
	for i := 0; i < ds.Len(); i++ {
		v := ds.Get(i, domain.ColTransactionDate)
		if dataset.IsNull(v) {
			continue
		}
		if _, ok := dataset.AsTime(v); ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			_ = ds.Set(i, domain.ColTransactionDate, nil)
			continue
		}
		if t, parsed := ParseTimestamp(s); parsed {
			_ = ds.Set(i, domain.ColTransactionDate, t)
		} else {
			_ = ds.Set(i, domain.ColTransactionDate, nil)
		}
	}
}

func formatOriginals(originals map[string]string) string {
	if len(originals) == 0 {
		return ""
	}
	keys := make([]string, 0, len(originals))
	for k := range originals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, originals[k]))
	}
	return strings.Join(parts, "; ")
}
