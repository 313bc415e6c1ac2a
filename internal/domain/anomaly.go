package domain

// AnomalyType classifies a detected anomaly.
type AnomalyType string

const (
	AnomalyNegativeBalance       AnomalyType = "negative_balance"
	AnomalyDuplicateTransaction  AnomalyType = "duplicate_transaction"
	AnomalyInvalidDate           AnomalyType = "invalid_date"
	AnomalySuspiciousAmount      AnomalyType = "suspicious_amount"
	AnomalyStatusMismatch        AnomalyType = "status_mismatch"
	AnomalyMissingRequiredField  AnomalyType = "missing_required_field"
	AnomalyInvalidFormat         AnomalyType = "invalid_format"
	AnomalyOutlier               AnomalyType = "outlier"
	AnomalySemanticInconsistency AnomalyType = "semantic_inconsistency"
	AnomalyOther                 AnomalyType = "other"
)

// Severity grades how serious an anomaly is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Detector names which pass produced an anomaly.
type Detector string

const (
	DetectedByRules Detector = "rule-based"
	DetectedByModel Detector = "generative-model"
)

// Anomaly is one flagged finding against a single row. Created during the
// anomaly detection stage and immutable afterward.
type Anomaly struct {
	RowIndex      int         `json:"row_index"`
	TransactionID string      `json:"transaction_id"`
	Type          AnomalyType `json:"anomaly_type"`
	Severity      Severity    `json:"severity"`
	Confidence    float64     `json:"confidence"`
	DetectedBy    Detector    `json:"detected_by"`
	Description   string      `json:"description"`
	FieldName     string      `json:"field_name,omitempty"`
	OriginalValue string      `json:"original_value,omitempty"`
	ExpectedValue string      `json:"expected_value,omitempty"`
	Explanation   string      `json:"explanation,omitempty"`
}

// ValidSeverity reports whether s is one of the known grades.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ValidAnomalyType reports whether t is one of the known classifications.
func ValidAnomalyType(t AnomalyType) bool {
	switch t {
	case AnomalyNegativeBalance, AnomalyDuplicateTransaction, AnomalyInvalidDate,
		AnomalySuspiciousAmount, AnomalyStatusMismatch, AnomalyMissingRequiredField,
		AnomalyInvalidFormat, AnomalyOutlier, AnomalySemanticInconsistency, AnomalyOther:
		return true
	}
	return false
}
