package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/bankflow/internal/bigquery"
	"github.com/dvloznov/bankflow/internal/completion"
	"github.com/dvloznov/bankflow/internal/config"
	"github.com/dvloznov/bankflow/internal/gcs"
	"github.com/dvloznov/bankflow/internal/logger"
	"github.com/dvloznov/bankflow/internal/pipeline"
	"github.com/dvloznov/bankflow/internal/sqldb"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (optional)")
		source     = flag.String("source", "file", "Source kind: file, query or http")
		path       = flag.String("path", "", "File path or gs:// URI (file sources)")
		conn       = flag.String("conn", "", "Connection string (query sources)")
		query      = flag.String("query", "", "SQL query (query sources, provider default if empty)")
		endpoint   = flag.String("endpoint", "", "HTTP endpoint returning JSON (http sources)")
		provider   = flag.String("provider", "bigquery", "Query source provider: bigquery or sqlite")
		threshold  = flag.Float64("threshold", 0, "Model confidence threshold override (0 keeps the configured value)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallbackLog := logger.New("info")
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)

	src, err := buildSource(*source, *path, *conn, *query, *endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid source arguments")
	}

	if *threshold > 0 {
		cfg.Pipeline.ConfidenceThreshold = *threshold
	}

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

	result := runner.Run(ctx, src)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))

	if result.Status != pipeline.StatusCompleted {
		os.Exit(1)
	}
}

func buildSource(kind, path, conn, query, endpoint string) (pipeline.Source, error) {
	switch pipeline.SourceKind(kind) {
	case pipeline.SourceFile:
		if path == "" {
			return pipeline.Source{}, fmt.Errorf("-path is required for file sources")
		}
		return pipeline.Source{Kind: pipeline.SourceFile, Path: path}, nil
	case pipeline.SourceQuery:
		if conn == "" {
			return pipeline.Source{}, fmt.Errorf("-conn is required for query sources")
		}
		return pipeline.Source{Kind: pipeline.SourceQuery, ConnString: conn, Query: query}, nil
	case pipeline.SourceHTTP:
		if endpoint == "" {
			return pipeline.Source{}, fmt.Errorf("-endpoint is required for http sources")
		}
		return pipeline.Source{Kind: pipeline.SourceHTTP, Endpoint: endpoint}, nil
	default:
		return pipeline.Source{}, fmt.Errorf("unknown source kind %q", kind)
	}
}
