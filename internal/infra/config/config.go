package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EmbedderConfig selects and configures the embedding provider. The provider
// is resolved once at startup; there is no per-call dispatch.
type EmbedderConfig struct {
	Provider  string // "local" or "hosted"
	URL       string
	Model     string
	APIKey    string
	Dimension int
	Timeout   int // seconds
}

// RerankConfig configures the cross-encoder scoring service.
type RerankConfig struct {
	Enabled bool
	URL     string
	Model   string
	Timeout int // seconds
}

// GenerationConfig configures the text-generation service.
type GenerationConfig struct {
	URL               string
	Model             string
	Timeout           int // seconds
	MaxTokens         int
	RequestsPerSecond float64
}

// ChatConfig holds conversational memory tunables.
type ChatConfig struct {
	TokenBudget    int
	HistoryWindow  int
	RewriteTimeout int // seconds
}

// PipelineConfig holds the retrieval stage sizes and cache settings.
type PipelineConfig struct {
	TopK         int
	RerankK      int
	FinalK       int
	CacheSize    int
	CacheTTLMin  int
	EmbedTimeout int // seconds
	IndexTimeout int // seconds
}

type Config struct {
	Env        string
	Port       string
	OTelLogs   bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	Embedder   EmbedderConfig
	Rerank     RerankConfig
	Generation GenerationConfig
	Chat       ChatConfig
	Pipeline   PipelineConfig
}

func Load() *Config {
	return &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "9020"),
		OTelLogs:   getEnvBool("OTEL_LOGS_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "passage-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "chat_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "chat_password"),
		DBName:     getEnv("DB_NAME", "chat_db"),

		Embedder: EmbedderConfig{
			Provider:  getEnv("EMBEDDER_PROVIDER", "local"),
			URL:       getEnv("EMBEDDER_URL", "http://embedder:11434"),
			Model:     getEnv("EMBEDDER_MODEL", "all-minilm"),
			APIKey:    getSecret("EMBEDDER_API_KEY", "EMBEDDER_API_KEY_FILE", ""),
			Dimension: getEnvInt("EMBEDDER_DIMENSION", 384),
			Timeout:   getEnvInt("EMBEDDER_TIMEOUT", 15),
		},
		Rerank: RerankConfig{
			Enabled: getEnvBool("RERANK_ENABLED", true),
			URL:     getEnv("RERANK_URL", "http://reranker:8001"),
			Model:   getEnv("RERANK_MODEL", "ms-marco-MiniLM-L-6-v2"),
			Timeout: getEnvInt("RERANK_TIMEOUT", 30),
		},
		Generation: GenerationConfig{
			URL:               getEnvWithAlt("GENERATION_URL", "EMBEDDER_URL", "http://generator:11434"),
			Model:             getEnv("GENERATION_MODEL", "gemma3:4b"),
			Timeout:           getEnvInt("GENERATION_TIMEOUT", 120),
			MaxTokens:         getEnvInt("GENERATION_MAX_TOKENS", 768),
			RequestsPerSecond: getEnvFloat("GENERATION_RPS", 0),
		},
		Chat: ChatConfig{
			TokenBudget:    getEnvInt("CHAT_TOKEN_BUDGET", 2048),
			HistoryWindow:  getEnvInt("CHAT_HISTORY_WINDOW", 6),
			RewriteTimeout: getEnvInt("CHAT_REWRITE_TIMEOUT", 20),
		},
		Pipeline: PipelineConfig{
			TopK:         getEnvInt("RETRIEVAL_TOP_K", 10),
			RerankK:      getEnvInt("RETRIEVAL_RERANK_K", 5),
			FinalK:       getEnvInt("RETRIEVAL_FINAL_K", 5),
			CacheSize:    getEnvInt("EMBEDDING_CACHE_SIZE", 256),
			CacheTTLMin:  getEnvInt("EMBEDDING_CACHE_TTL_MIN", 10),
			EmbedTimeout: getEnvInt("RETRIEVAL_EMBED_TIMEOUT", 15),
			IndexTimeout: getEnvInt("RETRIEVAL_INDEX_TIMEOUT", 10),
		},
	}
}

// DSN renders the passage database connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Validate rejects configurations that would otherwise only fail at query time.
func (c *Config) Validate() error {
	switch c.Embedder.Provider {
	case "local":
	case "hosted":
		if c.Embedder.APIKey == "" {
			return fmt.Errorf("hosted embedder requires EMBEDDER_API_KEY")
		}
	default:
		return fmt.Errorf("unknown embedder provider: %q", c.Embedder.Provider)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive, got %d", c.Embedder.Dimension)
	}
	if c.Pipeline.RerankK > c.Pipeline.TopK {
		return fmt.Errorf("rerank_k (%d) must not exceed top_k (%d)", c.Pipeline.RerankK, c.Pipeline.TopK)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
