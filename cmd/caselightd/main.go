// Caselightd is a legal document search daemon.
//
// It ingests PDF contracts and correspondence (with an OCR fallback for
// scanned pages), indexes them per owner in a vector store, and serves
// semantic search with optional cross-encoder reranking and grounded
// answer synthesis over HTTP.
//
// Usage:
//
//	# Start with defaults (embedded chromem index)
//	caselightd
//
//	# Start with a config file
//	caselightd -config /etc/caselight/config.yaml
//
//	# Configure via environment
//	CASELIGHT_SERVER_PORT=9090 CASELIGHT_VECTORSTORE_PROVIDER=qdrant caselightd
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/caselight/caselight/internal/catalog"
	"github.com/caselight/caselight/internal/config"
	"github.com/caselight/caselight/internal/embeddings"
	"github.com/caselight/caselight/internal/ingest"
	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/reranker"
	"github.com/caselight/caselight/internal/search"
	"github.com/caselight/caselight/internal/server"
	"github.com/caselight/caselight/internal/services"
	"github.com/caselight/caselight/internal/settings"
	"github.com/caselight/caselight/internal/synthesis"
	"github.com/caselight/caselight/internal/telemetry"
	"github.com/caselight/caselight/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  caselightd           Start the caselight daemon\n")
			fmt.Fprintf(os.Stderr, "  caselightd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("caselightd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all services and blocks until the context is cancelled.
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.VectorStore.VectorSize,
	})
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer func() { _ = store.Close() }()
	logger.Info(ctx, "vector store ready",
		zap.String("provider", cfg.VectorStore.Provider),
		zap.String("collection", cfg.VectorStore.Collection))

	rr := newReranker(ctx, cfg, logger)
	if rr != nil {
		defer func() { _ = rr.Close() }()
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening metadata database: %w", err)
	}
	defer func() { _ = db.Close() }()

	cat, err := catalog.New(ctx, db)
	if err != nil {
		return err
	}
	prefs, err := settings.NewStore(ctx, db)
	if err != nil {
		return err
	}

	ocr := newOCR(ctx, cfg, logger)

	ingestSvc := ingest.NewService(ingest.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	}, ingest.NewExtractor(), ocr, embedder, store, cat, logger.Named("ingest"))

	engine := search.NewEngine(embedder, store, rr, logger.Named("search"))

	synth := synthesis.NewSynthesizer(synthesis.Config{
		MaxTokens:   cfg.Synthesis.MaxTokens,
		Temperature: cfg.Synthesis.Temperature,
	}, newCompletionClient(ctx, cfg, logger), logger.Named("synthesis"))

	registry := services.NewRegistry(services.Options{
		Ingest:      ingestSvc,
		Search:      engine,
		Synthesizer: synth,
		Catalog:     cat,
		Settings:    prefs,
		VectorStore: store,
		Embedder:    embedder,
	})

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		AuthSecret:      cfg.Server.AuthSecret.Value(),
		UploadDir:       cfg.Server.UploadDir,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, registry, logger.Named("http"))

	logger.Info(ctx, "starting caselightd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))
	return srv.Start(ctx)
}

// newStore builds the configured vector store backend.
func newStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant":
		return vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Host:           cfg.VectorStore.Qdrant.Host,
			Port:           cfg.VectorStore.Qdrant.Port,
			UseTLS:         cfg.VectorStore.Qdrant.UseTLS,
			CollectionName: cfg.VectorStore.Collection,
			VectorSize:     uint64(cfg.VectorStore.VectorSize),
		})
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:           cfg.VectorStore.Chromem.Path,
			Compress:       cfg.VectorStore.Chromem.Compress,
			CollectionName: cfg.VectorStore.Collection,
			VectorSize:     cfg.VectorStore.VectorSize,
		})
	default:
		return nil, fmt.Errorf("unknown vectorstore provider %q", cfg.VectorStore.Provider)
	}
}

// newReranker probes the configured scoring oracle once at startup. A
// failed probe downgrades the daemon to similarity-only ranking for its
// lifetime instead of failing per request.
func newReranker(ctx context.Context, cfg *config.Config, logger *logging.Logger) reranker.Reranker {
	if !cfg.Reranker.Enabled {
		return nil
	}

	switch cfg.Reranker.Provider {
	case "lexical":
		return reranker.NewCrossEncoder(reranker.NewLexicalScorer())
	case "tei":
		scorer, err := reranker.NewTEIScorer(reranker.TEIConfig{BaseURL: cfg.Reranker.BaseURL})
		if err != nil {
			logger.Warn(ctx, "reranker misconfigured, using similarity-only ranking", zap.Error(err))
			return nil
		}
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := scorer.Probe(probeCtx); err != nil {
			logger.Warn(ctx, "reranker unreachable, using similarity-only ranking",
				zap.String("base_url", cfg.Reranker.BaseURL), zap.Error(err))
			return nil
		}
		logger.Info(ctx, "reranker ready", zap.String("base_url", cfg.Reranker.BaseURL))
		return reranker.NewCrossEncoder(scorer)
	default:
		logger.Warn(ctx, "unknown reranker provider, using similarity-only ranking",
			zap.String("provider", cfg.Reranker.Provider))
		return nil
	}
}

// newOCR builds the OCR engine, or nil when disabled or the external
// binaries are missing.
func newOCR(ctx context.Context, cfg *config.Config, logger *logging.Logger) *ingest.OCREngine {
	if !cfg.Ingest.OCR.Enabled {
		return nil
	}
	ocr, err := ingest.NewOCREngine(ingest.OCRConfig{
		TesseractPath: cfg.Ingest.OCR.TesseractPath,
		PdftoppmPath:  cfg.Ingest.OCR.PdftoppmPath,
		DPI:           cfg.Ingest.OCR.DPI,
	}, logger.Named("ocr"))
	if err != nil {
		logger.Warn(ctx, "OCR unavailable, scanned pages will not be indexed", zap.Error(err))
		return nil
	}
	return ocr
}

// newCompletionClient builds the synthesis client, or nil when no API key
// is configured.
func newCompletionClient(ctx context.Context, cfg *config.Config, logger *logging.Logger) synthesis.CompletionClient {
	if !cfg.Synthesis.APIKey.IsSet() {
		logger.Warn(ctx, "completion API key not configured, answer synthesis disabled")
		return nil
	}
	client, err := synthesis.NewClient(synthesis.ClientConfig{
		APIKey:  cfg.Synthesis.APIKey.Value(),
		BaseURL: cfg.Synthesis.BaseURL,
		Model:   cfg.Synthesis.Model,
	})
	if err != nil {
		logger.Warn(ctx, "completion client misconfigured, answer synthesis disabled", zap.Error(err))
		return nil
	}
	return client
}
