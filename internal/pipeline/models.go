package pipeline

import (
	"math"

	"github.com/dvloznov/bankflow/internal/domain"
)

// Stage names in execution order.
const (
	StageIngestion        = "ingestion"
	StageValidation       = "validation"
	StageCleaning         = "cleaning"
	StageAnomalyDetection = "anomaly_detection"
	StageReview           = "review"
	StagePublishing       = "publishing"
)

// Run statuses for both a whole run and an individual stage.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// maxReportedEntries caps diagnostic lists attached to stage results. Metrics
// always reflect the uncapped totals.
const maxReportedEntries = 100

// IngestionMetrics summarizes the ingestion stage.
type IngestionMetrics struct {
	RowsIngested int      `json:"rows_ingested"`
	ColumnCount  int      `json:"column_count"`
	Columns      []string `json:"columns"`
}

// RowError is one failed validation check on one row.
type RowError struct {
	RowIndex int    `json:"row_index"`
	Field    string `json:"field"`
	Message  string `json:"error"`
	Value    string `json:"value,omitempty"`
}

// ValidationMetrics summarizes the validation stage.
type ValidationMetrics struct {
	TotalRows      int     `json:"total_rows"`
	ValidRows      int     `json:"valid_rows"`
	InvalidRows    int     `json:"invalid_rows"`
	ValidationRate float64 `json:"validation_rate"`
	ErrorCount     int     `json:"error_count"`
}

// CleaningEntry records what cleaning changed on one row.
type CleaningEntry struct {
	RowIndex       int               `json:"row_index"`
	Actions        []string          `json:"actions"`
	OriginalValues map[string]string `json:"original_values"`
}

// CleaningMetrics summarizes the cleaning stage.
type CleaningMetrics struct {
	TotalRows            int     `json:"total_rows"`
	RowsModified         int     `json:"rows_modified"`
	ModificationRate     float64 `json:"modification_rate"`
	CleaningActionsCount int     `json:"cleaning_actions_count"`
}

// AnomalyMetrics summarizes the anomaly detection stage.
type AnomalyMetrics struct {
	TotalRows         int     `json:"total_rows"`
	AnomaliesDetected int     `json:"anomalies_detected"`
	AnomalyRate       float64 `json:"anomaly_rate"`
	RuleBasedCount    int     `json:"rule_based_count"`
	ModelBasedCount   int     `json:"model_based_count"`
}

// ReviewMetrics is the derived quality summary computed once the first four
// stages have all completed.
type ReviewMetrics struct {
	QualityScore          float64 `json:"quality_score"`
	CompletenessScore     float64 `json:"completeness_score"`
	ValidationRate        float64 `json:"validation_rate"`
	AnomalyRate           float64 `json:"anomaly_rate"`
	CleaningRate          float64 `json:"cleaning_rate"`
	TotalErrors           int     `json:"total_errors"`
	ImprovementPercentage float64 `json:"improvement_percentage"`
}

// PublishingMetrics summarizes the final stage.
type PublishingMetrics struct {
	RowsPublished int `json:"rows_published"`
}

// StageResult is the per-stage slot in a pipeline result.
type StageResult struct {
	Status           string           `json:"status"`
	Metrics          any              `json:"metrics,omitempty"`
	ValidationErrors []RowError       `json:"validation_errors,omitempty"`
	CleaningLog      []CleaningEntry  `json:"cleaning_log,omitempty"`
	Anomalies        []domain.Anomaly `json:"anomalies,omitempty"`
}

// StageError names the stage a run failed in.
type StageError struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// OverallMetrics aggregates the whole run.
type OverallMetrics struct {
	TotalRowsIngested int     `json:"total_rows_ingested"`
	ValidRows         int     `json:"valid_rows"`
	InvalidRows       int     `json:"invalid_rows"`
	CleanedRows       int     `json:"cleaned_rows"`
	AnomaliesDetected int     `json:"anomalies_detected"`
	QualityScore      float64 `json:"quality_score"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

// round2 keeps reported rates and scores at two decimal places, matching the
// precision of the result contract.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
