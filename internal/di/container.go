package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chat-orchestrator/internal/adapter/chat_http"
	"chat-orchestrator/internal/adapter/embedder"
	"chat-orchestrator/internal/adapter/generator"
	"chat-orchestrator/internal/adapter/reranker"
	"chat-orchestrator/internal/adapter/vectorindex"
	"chat-orchestrator/internal/conversation"
	"chat-orchestrator/internal/domain"
	"chat-orchestrator/internal/infra/config"
	"chat-orchestrator/internal/infra/httpclient"
	"chat-orchestrator/internal/infra/logger"
	"chat-orchestrator/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Store     *conversation.Store
	Embedder  domain.EmbeddingProvider
	Index     domain.VectorIndex
	Retriever usecase.HybridRetriever
	Chat      usecase.ChatUsecase
	Handler   *chat_http.Handler
}

// NewApplicationComponents wires all dependencies from config and database
// pool. The embedding provider is selected here, once; nothing downstream
// dispatches on provider kind.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedder.Timeout) * time.Second)
	rerankHTTP := httpclient.NewPooledClient(time.Duration(cfg.Rerank.Timeout) * time.Second)
	generatorHTTP := httpclient.NewPooledClient(time.Duration(cfg.Generation.Timeout) * time.Second)

	// Embedding provider
	var embeddingProvider domain.EmbeddingProvider
	switch cfg.Embedder.Provider {
	case "hosted":
		hosted, err := embedder.NewHostedApiEmbedder(
			cfg.Embedder.URL, cfg.Embedder.Model, cfg.Embedder.APIKey,
			cfg.Embedder.Dimension, time.Duration(cfg.Embedder.Timeout)*time.Second,
			embedderHTTP,
		)
		if err != nil {
			return nil, fmt.Errorf("wiring hosted embedder: %w", err)
		}
		embeddingProvider = hosted
	case "local":
		embeddingProvider = embedder.NewLocalModelEmbedder(
			cfg.Embedder.URL, cfg.Embedder.Model,
			cfg.Embedder.Dimension, time.Duration(cfg.Embedder.Timeout)*time.Second,
			embedderHTTP,
		)
	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.Embedder.Provider)
	}
	log.Info("embedder_selected",
		slog.String("provider", cfg.Embedder.Provider),
		slog.String("model", cfg.Embedder.Model),
		slog.Int("dimension", cfg.Embedder.Dimension))

	// Vector index over the passage store
	index := vectorindex.NewPgvectorIndex(pool)

	// Optional cross-encoder
	var scorer domain.CrossEncoderScorer
	if cfg.Rerank.Enabled {
		scorer = reranker.NewCrossEncoderClient(
			cfg.Rerank.URL, cfg.Rerank.Model,
			time.Duration(cfg.Rerank.Timeout)*time.Second,
			log, rerankHTTP,
		)
		log.Info("reranker_enabled",
			slog.String("url", cfg.Rerank.URL),
			slog.String("model", cfg.Rerank.Model))
	}

	// Generator shared by the rewriter and the composer
	llm := generator.NewChatGenerator(
		cfg.Generation.URL, cfg.Generation.Model,
		time.Duration(cfg.Generation.Timeout)*time.Second,
		cfg.Generation.RequestsPerSecond,
		generatorHTTP,
	)

	pipelineCfg := usecase.PipelineConfig{
		TopK:               cfg.Pipeline.TopK,
		RerankK:            cfg.Pipeline.RerankK,
		FinalK:             cfg.Pipeline.FinalK,
		EmbedTimeout:       time.Duration(cfg.Pipeline.EmbedTimeout) * time.Second,
		IndexTimeout:       time.Duration(cfg.Pipeline.IndexTimeout) * time.Second,
		RerankTimeout:      time.Duration(cfg.Rerank.Timeout) * time.Second,
		EmbeddingCacheSize: cfg.Pipeline.CacheSize,
		EmbeddingCacheTTL:  time.Duration(cfg.Pipeline.CacheTTLMin) * time.Minute,
	}
	if err := pipelineCfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	store := conversation.NewStore(cfg.Chat.TokenBudget)
	rewriter := usecase.NewQueryRewriter(
		llm, time.Duration(cfg.Chat.RewriteTimeout)*time.Second, log,
		usecase.WithHistoryWindow(cfg.Chat.HistoryWindow),
	)
	retriever := usecase.NewHybridRetriever(embeddingProvider, index, scorer, pipelineCfg, log)
	composer := usecase.NewAnswerComposer(
		usecase.NewPassagePromptBuilder(), llm,
		cfg.Generation.MaxTokens,
		time.Duration(cfg.Generation.Timeout)*time.Second,
		log,
	)
	chat := usecase.NewChatUsecase(store, rewriter, retriever, composer, log)

	handler := chat_http.NewHandler(chat, logger.NewContextLogger("chat-orchestrator"))

	return &ApplicationComponents{
		Store:     store,
		Embedder:  embeddingProvider,
		Index:     index,
		Retriever: retriever,
		Chat:      chat,
		Handler:   handler,
	}, nil
}
