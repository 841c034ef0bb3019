package usecase

import (
	"fmt"
	"time"
)

// PipelineConfig holds the tunable parameters of the retrieval pipeline.
type PipelineConfig struct {
	// TopK is the number of candidates fetched from the vector index by
	// coarse retrieval (high recall, low precision).
	TopK int

	// RerankK is the number of cosine-rescored candidates handed to the
	// cross-encoder. Must not exceed TopK.
	RerankK int

	// FinalK caps the ranked result returned to the composer.
	FinalK int

	// EmbedTimeout, IndexTimeout and RerankTimeout bound the external calls
	// of the corresponding stages. A timeout is that stage's failure mode,
	// never a silent hang.
	EmbedTimeout  time.Duration
	IndexTimeout  time.Duration
	RerankTimeout time.Duration

	// EmbeddingCacheSize and EmbeddingCacheTTL size the LRU cache of
	// standalone-query embeddings. Zero disables the cache.
	EmbeddingCacheSize int
	EmbeddingCacheTTL  time.Duration
}

// DefaultPipelineConfig fetches 10 coarse candidates, rescores them locally
// and reranks the top 5.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TopK:               10,
		RerankK:            5,
		FinalK:             5,
		EmbedTimeout:       15 * time.Second,
		IndexTimeout:       10 * time.Second,
		RerankTimeout:      30 * time.Second,
		EmbeddingCacheSize: 256,
		EmbeddingCacheTTL:  10 * time.Minute,
	}
}

// Validate checks the configuration at startup so bad values never reach a
// live request.
func (c PipelineConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", c.TopK)
	}
	if c.RerankK <= 0 {
		return fmt.Errorf("rerankK must be positive, got %d", c.RerankK)
	}
	if c.RerankK > c.TopK {
		return fmt.Errorf("rerankK (%d) must not exceed topK (%d)", c.RerankK, c.TopK)
	}
	if c.FinalK <= 0 {
		return fmt.Errorf("finalK must be positive, got %d", c.FinalK)
	}
	if c.EmbedTimeout <= 0 || c.IndexTimeout <= 0 || c.RerankTimeout <= 0 {
		return fmt.Errorf("stage timeouts must be positive")
	}
	if c.EmbeddingCacheSize < 0 {
		return fmt.Errorf("embeddingCacheSize must be non-negative, got %d", c.EmbeddingCacheSize)
	}
	return nil
}
