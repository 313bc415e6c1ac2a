package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/bankflow/internal/api/handlers"
	"github.com/dvloznov/bankflow/internal/api/middleware"
	"github.com/dvloznov/bankflow/internal/bigquery"
	"github.com/dvloznov/bankflow/internal/completion"
	"github.com/dvloznov/bankflow/internal/config"
	"github.com/dvloznov/bankflow/internal/gcs"
	"github.com/dvloznov/bankflow/internal/logger"
	"github.com/dvloznov/bankflow/internal/pipeline"
	"github.com/dvloznov/bankflow/internal/runs/inmemory"
	"github.com/dvloznov/bankflow/internal/sqldb"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (optional)")
		provider   = flag.String("provider", "bigquery", "Query source provider: bigquery or sqlite")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallbackLog := logger.New("info")
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	var connProvider pipeline.ConnectionProvider
	switch *provider {
	case "bigquery":
		connProvider = bigquery.NewProvider()
	case "sqlite":
		connProvider = sqldb.NewProvider("sqlite3", cfg.SourceTimeout)
	default:
		log.Fatal().Str("provider", *provider).Msg("Unknown query provider")
	}

	service, err := completion.NewGeminiService(ctx, cfg.Model.Name, cfg.Model.MaxTokens, cfg.Model.Temperature, cfg.Model.CallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completion service")
	}

	runner := pipeline.NewRunner(
		pipeline.NewIngestor(gcs.NewStorageFetcher(), connProvider, cfg.SourceTimeout),
		pipeline.NewValidator(cfg.Pipeline.RequiredColumns),
		pipeline.NewCleaner(),
		pipeline.NewDetector(service, cfg.Pipeline.ConfidenceThreshold, cfg.Pipeline.SampleSize, cfg.Pipeline.SampleSeed, log),
		log,
	)

	store := inmemory.NewStore()
	pipelinesHandler := handlers.NewPipelinesHandler(runner, store, log)
	anomaliesHandler := handlers.NewAnomaliesHandler(store, log)
	metricsHandler := handlers.NewMetricsHandler(store, log)
	datasetsHandler := handlers.NewDatasetsHandler(store, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/pipelines", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			pipelinesHandler.LaunchPipeline(w, r)
		case http.MethodGet:
			pipelinesHandler.ListPipelines(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/pipelines/", func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimPrefix(r.URL.Path, "/api/pipelines/")
		if runID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			pipelinesHandler.GetPipeline(w, r, runID)
		case http.MethodDelete:
			pipelinesHandler.DeletePipeline(w, r, runID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/anomalies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			anomaliesHandler.ListAnomalies(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			metricsHandler.GetOverallMetrics(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/datasets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			datasetsHandler.ListDatasets(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("provider", *provider).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
