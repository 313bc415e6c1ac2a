package domain

import (
	"time"
)

// Canonical column names after source standardization. Later stages key all
// reads and writes off these.
const (
	ColTransactionID   = "transaction_id"
	ColCustomerID      = "customer_id"
	ColAmount          = "amount"
	ColBalance         = "balance"
	ColCurrency        = "currency"
	ColTransactionDate = "transaction_date"
	ColTransactionType = "transaction_type"
	ColStatus          = "status"
	ColDescription     = "description"

	// Columns added by pipeline stages.
	ColIsValid          = "is_valid"
	ColValidationErrors = "validation_errors"
	ColWasCleaned       = "was_cleaned"
	ColCleaningActions  = "cleaning_actions"
	ColOriginalValues   = "original_values"
	ColIsDuplicate      = "is_duplicate"
	ColIsAnomaly        = "is_anomaly"
)

// Transaction is the logical shape of one standardized row, used when a row
// has to leave the tabular world, e.g. to be described to the completion
// service.
type Transaction struct {
	TransactionID string
	CustomerID    string
	Amount        float64
	Balance       *float64
	Currency      string
	Date          *time.Time
	Type          string
	Status        string
	Description   string
}

// CanonicalStatuses is the set of status values accepted by validation,
// matched case-insensitively. Cleaning later folds the synonyms down to the
// canonical five.
var CanonicalStatuses = map[string]struct{}{
	"completed":  {},
	"pending":    {},
	"failed":     {},
	"cancelled":  {},
	"success":    {},
	"approved":   {},
	"declined":   {},
	"processing": {},
}
