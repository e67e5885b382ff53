package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/insightctl/retail-insights/internal/config"
	"github.com/insightctl/retail-insights/internal/dataset"
	"github.com/insightctl/retail-insights/internal/llm"
	"github.com/insightctl/retail-insights/internal/pipeline"
	"github.com/insightctl/retail-insights/internal/server"
	"github.com/insightctl/retail-insights/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("LOG_LEVEL") == "debug")
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := dataset.Open(logger)
	if err != nil {
		log.Fatalf("failed to open tabular engine: %v", err)
	}
	defer db.Close()

	if err := db.Ingest(ctx, cfg.Dataset.Path, cfg.Dataset.Table); err != nil {
		log.Fatalf("failed to ingest dataset: %v", err)
	}

	snapshot, err := db.Snapshot(ctx, cfg.Dataset.Table)
	if err != nil {
		log.Fatalf("failed to snapshot dataset: %v", err)
	}

	schemaDescription, err := db.SchemaDescription(ctx, cfg.Dataset.Table)
	if err != nil {
		log.Fatalf("failed to describe dataset schema: %v", err)
	}

	provider, err := llm.NewOpenAI(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("failed to create LLM provider: %v", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewIntentResolver(provider, schemaDescription, cfg.Dataset.Table, logger),
		pipeline.NewExtractor(db, snapshot, cfg.Dataset.Table, logger),
		pipeline.NewValidator(provider, logger),
		pipeline.NewSynthesizer(provider, logger),
		logger,
	)

	// Semantic search runs beside the pipeline, seeded with the schema
	// description so column-level questions can be located by similarity.
	store := vectorstore.New(provider, logger)
	if err := store.Add(ctx, schemaDocuments(schemaDescription)); err != nil {
		slog.Warn("failed to seed vector store, search disabled", "error", err)
		store = nil
	}

	srv := server.New(*cfg, orchestrator, searcher(store))
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
	}))
}

func schemaDocuments(schemaDescription string) []vectorstore.Document {
	var docs []vectorstore.Document
	for _, line := range strings.Split(schemaDescription, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		docs = append(docs, vectorstore.Document{
			Content:  line,
			Metadata: map[string]string{"source": "schema"},
		})
	}
	return docs
}

// searcher keeps the Searcher interface nil when the store is nil, so the
// handler reports search as unconfigured instead of panicking.
func searcher(store *vectorstore.Store) server.Searcher {
	if store == nil {
		return nil
	}
	return store
}
