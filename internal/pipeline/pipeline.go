package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/logger"
)

// Result is the stable contract a run produces: per-stage status and
// metrics, overall metrics and the failure list. The final dataset rides
// along for callers that want the rows; it is not part of the JSON shape.
type Result struct {
	PipelineID     string                  `json:"pipeline_id"`
	Status         string                  `json:"status"`
	Stages         map[string]*StageResult `json:"stages"`
	OverallMetrics *OverallMetrics         `json:"overall_metrics,omitempty"`
	Errors         []StageError            `json:"errors"`

	Dataset *dataset.Dataset `json:"-"`
}

// Runner owns one pipeline execution: it sequences the six stages, collects
// their diagnostics and converts every failure mode into a terminal result.
// The dataset is handed to exactly one stage at a time.
type Runner struct {
	ingestor  *Ingestor
	validator *Validator
	cleaner   *Cleaner
	detector  *Detector
	log       zerolog.Logger
}

// NewRunner wires a runner from its stage implementations.
func NewRunner(ingestor *Ingestor, validator *Validator, cleaner *Cleaner, detector *Detector, log zerolog.Logger) *Runner {
	return &Runner{
		ingestor:  ingestor,
		validator: validator,
		cleaner:   cleaner,
		detector:  detector,
		log:       log,
	}
}

// Run executes the full pipeline against one source. It never panics and
// never returns an error: every outcome, including internal faults, is a
// terminal Result with status completed or failed.
func (r *Runner) Run(ctx context.Context, src Source) (result *Result) {
	pipelineID := uuid.NewString()
	start := time.Now()

	result = &Result{
		PipelineID: pipelineID,
		Status:     StatusRunning,
		Stages:     make(map[string]*StageResult),
		Errors:     []StageError{},
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("pipeline_id", pipelineID).Msg("pipeline execution panicked")
			result.Status = StatusFailed
			result.Errors = append(result.Errors, StageError{
				Stage: "pipeline",
				Error: fmt.Sprintf("internal fault: %v", rec),
			})
		}
	}()

	fail := func(stage string, err error) *Result {
		r.log.Error().Err(err).Str("pipeline_id", pipelineID).Str("stage", stage).Msg("stage failed")
		result.Status = StatusFailed
		result.Stages[stage] = &StageResult{Status: StatusFailed}
		result.Errors = append(result.Errors, StageError{Stage: stage, Error: err.Error()})
		return result
	}

	// Stage 1: ingestion. Adapter failure is fatal: there is no dataset to
	// proceed with.
	log := logger.ForStage(r.log, pipelineID, StageIngestion)
	log.Info().Str("source_kind", string(src.Kind)).Msg("starting ingestion")

	ds, err := r.ingestor.Ingest(ctx, src)
	if err != nil {
		return fail(StageIngestion, err)
	}

	ingestionMetrics := IngestionMetrics{
		RowsIngested: ds.Len(),
		ColumnCount:  len(ds.Columns()),
		Columns:      append([]string(nil), ds.Columns()...),
	}
	result.Stages[StageIngestion] = &StageResult{Status: StatusCompleted, Metrics: ingestionMetrics}
	log.Info().Int("rows", ds.Len()).Int("columns", len(ds.Columns())).Msg("ingestion complete")

	// Stage 2: validation.
	log = logger.ForStage(r.log, pipelineID, StageValidation)
	log.Info().Int("rows", ds.Len()).Msg("starting validation")

	validationMetrics, rowErrors, err := r.validator.Validate(ds)
	if err != nil {
		return fail(StageValidation, err)
	}
	result.Stages[StageValidation] = &StageResult{
		Status:           StatusCompleted,
		Metrics:          validationMetrics,
		ValidationErrors: rowErrors,
	}
	log.Info().
		Int("valid", validationMetrics.ValidRows).
		Int("invalid", validationMetrics.InvalidRows).
		Msg("validation complete")

	// Stage 3: cleaning.
	log = logger.ForStage(r.log, pipelineID, StageCleaning)
	log.Info().Int("rows", ds.Len()).Msg("starting cleaning")

	cleaningMetrics, cleaningLog := r.cleaner.Clean(ds)
	result.Stages[StageCleaning] = &StageResult{
		Status:      StatusCompleted,
		Metrics:     cleaningMetrics,
		CleaningLog: cleaningLog,
	}
	log.Info().Int("rows_modified", cleaningMetrics.RowsModified).Msg("cleaning complete")

	// Stage 4: anomaly detection.
	log = logger.ForStage(r.log, pipelineID, StageAnomalyDetection)
	log.Info().Int("rows", ds.Len()).Msg("starting anomaly detection")

	anomalyMetrics, anomalies := r.detector.Detect(ctx, ds)
	result.Stages[StageAnomalyDetection] = &StageResult{
		Status:    StatusCompleted,
		Metrics:   anomalyMetrics,
		Anomalies: anomalies,
	}
	log.Info().Int("anomalies", len(anomalies)).Msg("anomaly detection complete")

	// Stage 5: review. Unconditional once reached.
	review := computeReviewMetrics(ds, validationMetrics, cleaningMetrics, anomalyMetrics)
	result.Stages[StageReview] = &StageResult{Status: StatusCompleted, Metrics: review}

	// Stage 6: publishing.
	result.Stages[StagePublishing] = &StageResult{
		Status:  StatusCompleted,
		Metrics: PublishingMetrics{RowsPublished: ds.Len()},
	}
	result.Dataset = ds

	duration := time.Since(start).Seconds()
	result.Status = StatusCompleted
	result.OverallMetrics = &OverallMetrics{
		TotalRowsIngested: ingestionMetrics.RowsIngested,
		ValidRows:         validationMetrics.ValidRows,
		InvalidRows:       validationMetrics.InvalidRows,
		CleanedRows:       cleaningMetrics.RowsModified,
		AnomaliesDetected: anomalyMetrics.AnomaliesDetected,
		QualityScore:      review.QualityScore,
		DurationSeconds:   round2(duration),
	}

	r.log.Info().
		Str("pipeline_id", pipelineID).
		Float64("duration_seconds", result.OverallMetrics.DurationSeconds).
		Msg("pipeline execution completed")
	return result
}

// computeReviewMetrics derives the quality summary from the stage metrics.
// quality_score is clamped to [0, 100]: anomaly rate can exceed validation
// rate when rows trigger several findings each.
func computeReviewMetrics(ds *dataset.Dataset, vm ValidationMetrics, cm CleaningMetrics, am AnomalyMetrics) ReviewMetrics {
	totalRows := ds.Len()

	validationScore := 0.0
	anomalyPenalty := 0.0
	if totalRows > 0 {
		validationScore = float64(vm.ValidRows) / float64(totalRows) * 100
		anomalyPenalty = float64(am.AnomaliesDetected) / float64(totalRows) * 100
	}
	quality := validationScore - anomalyPenalty
	if quality < 0 {
		quality = 0
	}

	completeness := 0.0
	if cells := ds.CellCount(); cells > 0 {
		completeness = float64(cells-ds.NullCellCount()) / float64(cells) * 100
	}

	return ReviewMetrics{
		QualityScore:          round2(quality),
		CompletenessScore:     round2(completeness),
		ValidationRate:        vm.ValidationRate,
		AnomalyRate:           am.AnomalyRate,
		CleaningRate:          cm.ModificationRate,
		TotalErrors:           vm.ErrorCount + am.AnomaliesDetected,
		ImprovementPercentage: cm.ModificationRate,
	}
}
