// Package config provides configuration loading for caselightd.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for the caselight daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Reranker    RerankerConfig    `koanf:"reranker"`
	Synthesis   SynthesisConfig   `koanf:"synthesis"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Database    DatabaseConfig    `koanf:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: "0.0.0.0"
	Host string `koanf:"host"`

	// Port is the HTTP listen port. Default: 8080
	Port int `koanf:"port"`

	// AuthSecret is the HMAC secret used to verify bearer tokens.
	// Requests without a verifiable token are rejected.
	AuthSecret Secret `koanf:"auth_secret"`

	// UploadDir is where uploaded documents are stored before indexing.
	// Default: "./uploads"
	UploadDir string `koanf:"upload_dir"`

	// MaxUploadBytes caps the accepted upload size. Default: 50MB.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: "info"
	Level string `koanf:"level"`

	// Format is "json" or "console". Default: "json"
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// Enabled turns on trace export. Default: false (spans become no-ops).
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `koanf:"endpoint"`

	// ServiceName identifies this service in traces. Default: "caselightd"
	ServiceName string `koanf:"service_name"`

	// Insecure disables TLS on the exporter connection. Default: true.
	Insecure bool `koanf:"insecure"`
}

// EmbeddingConfig holds embedding oracle settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend. Default: "tei"
	Provider string `koanf:"provider"`

	// BaseURL is the TEI server URL. Default: "http://localhost:8081"
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	// Default: "sentence-transformers/all-MiniLM-L6-v2"
	Model string `koanf:"model"`
}

// RerankerConfig holds reranking oracle settings.
type RerankerConfig struct {
	// Enabled controls whether reranking is attempted at all.
	// Default: true. If the oracle is unreachable at startup the
	// daemon degrades to similarity-only ranking for its lifetime.
	Enabled bool `koanf:"enabled"`

	// Provider is "tei" (cross-encoder server) or "lexical" (in-process
	// term overlap, for offline use). Default: "tei"
	Provider string `koanf:"provider"`

	// BaseURL is the TEI reranker URL. Default: "http://localhost:8082"
	BaseURL string `koanf:"base_url"`
}

// SynthesisConfig holds completion oracle settings.
type SynthesisConfig struct {
	// APIKey authenticates against the completion API. Empty disables
	// synthesis (requests get a fixed error string, never a failure).
	APIKey Secret `koanf:"api_key"`

	// BaseURL is an OpenAI-compatible endpoint.
	// Default: "https://api.groq.com/openai"
	BaseURL string `koanf:"base_url"`

	// Model is the completion model. Default: "llama-3.3-70b-versatile"
	Model string `koanf:"model"`

	// MaxTokens bounds answer length. Default: 500.
	MaxTokens int `koanf:"max_tokens"`

	// Temperature biases toward factual output. Default: 0.3.
	Temperature float64 `koanf:"temperature"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	// Provider is "qdrant" or "chromem". Default: "chromem"
	Provider string `koanf:"provider"`

	// Collection is the collection name. Default: "legal_documents"
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimension. Must match the embedding
	// model for the lifetime of the index. Default: 384.
	VectorSize int `koanf:"vector_size"`

	Qdrant  QdrantConfig  `koanf:"qdrant"`
	Chromem ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC client settings.
type QdrantConfig struct {
	// Host is the Qdrant hostname. Default: "localhost"
	Host string `koanf:"host"`

	// Port is the gRPC port (not the HTTP REST port). Default: 6334
	Port int `koanf:"port"`

	// UseTLS enables TLS on the gRPC connection. Default: false.
	UseTLS bool `koanf:"use_tls"`
}

// ChromemConfig holds chromem-go embedded store settings.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps the store in memory.
	Path string `koanf:"path"`

	// Compress enables gzip compression of persisted data.
	Compress bool `koanf:"compress"`
}

// IngestConfig holds document processing settings.
type IngestConfig struct {
	// ChunkSize is the word-window size. Default: 250.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkOverlap is the word overlap between windows. Default: 25.
	ChunkOverlap int `koanf:"chunk_overlap"`

	OCR OCRConfig `koanf:"ocr"`
}

// OCRConfig holds OCR fallback settings.
type OCRConfig struct {
	// Enabled controls the OCR fallback for pages without a text layer.
	// Default: true.
	Enabled bool `koanf:"enabled"`

	// TesseractPath is the tesseract binary. Default: "tesseract"
	TesseractPath string `koanf:"tesseract_path"`

	// PdftoppmPath is the poppler rasterizer binary. Default: "pdftoppm"
	PdftoppmPath string `koanf:"pdftoppm_path"`

	// DPI is the rasterization resolution. Default: 300.
	DPI int `koanf:"dpi"`
}

// DatabaseConfig holds the sqlite metadata database settings.
type DatabaseConfig struct {
	// Path is the sqlite file. Default: "./caselight.db"
	Path string `koanf:"path"`
}

// NewDefault returns a Config populated with defaults.
func NewDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			UploadDir:       "./uploads",
			MaxUploadBytes:  50 * 1024 * 1024,
			ShutdownTimeout: Duration(10e9),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "caselightd",
			Insecure:    true,
		},
		Embedding: EmbeddingConfig{
			Provider: "tei",
			BaseURL:  "http://localhost:8081",
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
		},
		Reranker: RerankerConfig{
			Enabled:  true,
			Provider: "tei",
			BaseURL:  "http://localhost:8082",
		},
		Synthesis: SynthesisConfig{
			BaseURL:     "https://api.groq.com/openai",
			Model:       "llama-3.3-70b-versatile",
			MaxTokens:   500,
			Temperature: 0.3,
		},
		VectorStore: VectorStoreConfig{
			Provider:   "chromem",
			Collection: "legal_documents",
			VectorSize: 384,
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Chromem: ChromemConfig{
				Path: "./chromem_db",
			},
		},
		Ingest: IngestConfig{
			ChunkSize:    250,
			ChunkOverlap: 25,
			OCR: OCRConfig{
				Enabled:       true,
				TesseractPath: "tesseract",
				PdftoppmPath:  "pdftoppm",
				DPI:           300,
			},
		},
		Database: DatabaseConfig{
			Path: "./caselight.db",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.VectorStore.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if c.Ingest.OCR.DPI <= 0 {
		return fmt.Errorf("%w: ocr dpi must be positive", ErrInvalidConfig)
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 2 {
		return fmt.Errorf("%w: synthesis temperature must be in [0, 2]", ErrInvalidConfig)
	}
	if c.Synthesis.MaxTokens <= 0 {
		return fmt.Errorf("%w: synthesis max_tokens must be positive", ErrInvalidConfig)
	}
	return nil
}
