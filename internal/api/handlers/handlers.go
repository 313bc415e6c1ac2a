package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/bankflow/internal/api/middleware"
	"github.com/dvloznov/bankflow/internal/domain"
	"github.com/dvloznov/bankflow/internal/pipeline"
	"github.com/dvloznov/bankflow/internal/runs"
)

// PipelinesHandler exposes the run registry over HTTP and launches new
// pipeline executions.
type PipelinesHandler struct {
	runner *pipeline.Runner
	store  runs.Store
	log    zerolog.Logger
}

// NewPipelinesHandler creates a new pipelines handler.
func NewPipelinesHandler(runner *pipeline.Runner, store runs.Store, log zerolog.Logger) *PipelinesHandler {
	return &PipelinesHandler{
		runner: runner,
		store:  store,
		log:    log,
	}
}

// launchRequest is the POST /api/pipelines body.
type launchRequest struct {
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Conn     string `json:"conn,omitempty"`
	Query    string `json:"query,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

func (req *launchRequest) source() (pipeline.Source, string) {
	switch pipeline.SourceKind(req.Kind) {
	case pipeline.SourceFile:
		if req.Path == "" {
			return pipeline.Source{}, "path is required for file sources"
		}
		return pipeline.Source{Kind: pipeline.SourceFile, Path: req.Path}, ""
	case pipeline.SourceQuery:
		if req.Conn == "" {
			return pipeline.Source{}, "conn is required for query sources"
		}
		return pipeline.Source{Kind: pipeline.SourceQuery, ConnString: req.Conn, Query: req.Query}, ""
	case pipeline.SourceHTTP:
		if req.Endpoint == "" {
			return pipeline.Source{}, "endpoint is required for http sources"
		}
		return pipeline.Source{Kind: pipeline.SourceHTTP, Endpoint: req.Endpoint}, ""
	default:
		return pipeline.Source{}, "kind must be one of: file, query, http"
	}
}

func sourceLabel(src pipeline.Source) string {
	switch src.Kind {
	case pipeline.SourceFile:
		return src.Path
	case pipeline.SourceQuery:
		return src.ConnString
	case pipeline.SourceHTTP:
		return src.Endpoint
	}
	return ""
}

// LaunchPipeline handles POST /api/pipelines. The run executes in the
// background; the response carries the run id for polling.
func (h *PipelinesHandler) LaunchPipeline(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	src, problem := req.source()
	if problem != "" {
		middleware.WriteError(w, http.StatusBadRequest, problem)
		return
	}

	run := &runs.Run{
		RunID:      uuid.NewString(),
		Status:     runs.StatusPending,
		SourceKind: string(src.Kind),
		Source:     sourceLabel(src),
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), run); err != nil {
		h.log.Error().Err(err).Msg("Failed to register run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to register run")
		return
	}

	// The run outlives the request, so it gets its own context.
	go h.execute(context.Background(), run.RunID, src)

	h.log.Info().
		Str("run_id", run.RunID).
		Str("source_kind", run.SourceKind).
		Msg("Pipeline run launched")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.RunID,
		"status": string(runs.StatusPending),
	})
}

func (h *PipelinesHandler) execute(ctx context.Context, runID string, src pipeline.Source) {
	run, err := h.store.Get(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Run vanished before execution")
		return
	}

	run.Status = runs.StatusRunning
	if err := h.store.Update(ctx, run); err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to mark run running")
		return
	}

	result := h.runner.Run(ctx, src)

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.Result = result
	if result.Status == pipeline.StatusCompleted {
		run.Status = runs.StatusCompleted
	} else {
		run.Status = runs.StatusFailed
		if len(result.Errors) > 0 {
			run.Error = result.Errors[len(result.Errors)-1].Error
		}
	}

	if err := h.store.Update(ctx, run); err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to record run result")
	}
}

// ListPipelines handles GET /api/pipelines.
func (h *PipelinesHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := runs.Filter{
		Status: runs.Status(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

// GetPipeline handles GET /api/pipelines/{id}.
func (h *PipelinesHandler) GetPipeline(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.store.Get(r.Context(), runID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// DeletePipeline handles DELETE /api/pipelines/{id}.
func (h *PipelinesHandler) DeletePipeline(w http.ResponseWriter, r *http.Request, runID string) {
	if err := h.store.Delete(r.Context(), runID); err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"run_id": runID,
		"status": "deleted",
	})
}

// defaultAnomalyLimit caps the cross-run anomaly listing unless the caller
// asks for less.
const defaultAnomalyLimit = 100

// anomalyRecord is one anomaly annotated with the run it came from.
type anomalyRecord struct {
	domain.Anomaly
	RunID string `json:"run_id"`
}

// AnomaliesHandler exposes anomalies across all registered runs.
type AnomaliesHandler struct {
	store runs.Store
	log   zerolog.Logger
}

// NewAnomaliesHandler creates a new anomalies handler.
func NewAnomaliesHandler(store runs.Store, log zerolog.Logger) *AnomaliesHandler {
	return &AnomaliesHandler{store: store, log: log}
}

// ListAnomalies handles GET /api/anomalies. Supports ?severity= and ?limit=.
func (h *AnomaliesHandler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	severity := strings.ToLower(query.Get("severity"))

	limit := defaultAnomalyLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := h.store.List(r.Context(), runs.Filter{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	anomalies := []anomalyRecord{}
	for _, run := range list {
		if run.Result == nil {
			continue
		}
		stage, ok := run.Result.Stages[pipeline.StageAnomalyDetection]
		if !ok {
			continue
		}
		for _, a := range stage.Anomalies {
			if severity != "" && string(a.Severity) != severity {
				continue
			}
			anomalies = append(anomalies, anomalyRecord{Anomaly: a, RunID: run.RunID})
		}
	}
	if len(anomalies) > limit {
		anomalies = anomalies[:limit]
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":     len(anomalies),
		"anomalies": anomalies,
	})
}

// MetricsHandler aggregates metrics across all registered runs.
type MetricsHandler struct {
	store runs.Store
	log   zerolog.Logger
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(store runs.Store, log zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{store: store, log: log}
}

// GetOverallMetrics handles GET /api/metrics.
func (h *MetricsHandler) GetOverallMetrics(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), runs.Filter{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	var completed, failed, running int
	var totalRows, totalAnomalies, totalCleaned int
	for _, run := range list {
		switch run.Status {
		case runs.StatusCompleted:
			completed++
		case runs.StatusFailed:
			failed++
		case runs.StatusRunning:
			running++
		}
		if run.Result == nil || run.Result.OverallMetrics == nil {
			continue
		}
		om := run.Result.OverallMetrics
		totalRows += om.TotalRowsIngested
		totalAnomalies += om.AnomaliesDetected
		totalCleaned += om.CleanedRows
	}

	successRate := 0.0
	if len(list) > 0 {
		successRate = math.Round(float64(completed)/float64(len(list))*100*100) / 100
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_runs":               len(list),
		"completed_runs":           completed,
		"failed_runs":              failed,
		"running_runs":             running,
		"total_rows_processed":     totalRows,
		"total_anomalies_detected": totalAnomalies,
		"total_rows_cleaned":       totalCleaned,
		"success_rate":             successRate,
	})
}

// datasetSummary is the per-run entry in the datasets listing.
type datasetSummary struct {
	RunID          string  `json:"run_id"`
	SourceKind     string  `json:"source_kind"`
	Source         string  `json:"source,omitempty"`
	Status         string  `json:"status"`
	TotalRows      int     `json:"total_rows"`
	ValidRows      int     `json:"valid_rows"`
	QualityScore   float64 `json:"quality_score"`
	ProcessingTime float64 `json:"processing_time"`
}

// DatasetsHandler lists per-run dataset summaries.
type DatasetsHandler struct {
	store runs.Store
	log   zerolog.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(store runs.Store, log zerolog.Logger) *DatasetsHandler {
	return &DatasetsHandler{store: store, log: log}
}

// ListDatasets handles GET /api/datasets.
func (h *DatasetsHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), runs.Filter{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	datasets := []datasetSummary{}
	for _, run := range list {
		entry := datasetSummary{
			RunID:      run.RunID,
			SourceKind: run.SourceKind,
			Source:     run.Source,
			Status:     string(run.Status),
		}
		if run.Result != nil && run.Result.OverallMetrics != nil {
			om := run.Result.OverallMetrics
			entry.TotalRows = om.TotalRowsIngested
			entry.ValidRows = om.ValidRows
			entry.QualityScore = om.QualityScore
			entry.ProcessingTime = om.DurationSeconds
		}
		datasets = append(datasets, entry)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(datasets),
		"datasets": datasets,
	})
}
