package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex serves nearest-neighbor queries from a pgvector-backed
// passages table. The table is populated by the ingestion pipeline and is
// read-only here.
type PgvectorIndex struct {
	pool *pgxpool.Pool
}

// NewPgvectorIndex creates the index adapter over a shared connection pool.
func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

// Query returns up to topK passages ordered by cosine distance to the query
// vector. The stored embedding is returned with each match so the pipeline
// can rescore locally. Fewer than topK matches, including zero, is valid.
func (idx *PgvectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.IndexMatch, error) {
	query := `
		SELECT id, content, embedding, metadata, 1 - (embedding <=> $1) AS score
		FROM passages
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := idx.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	var matches []domain.IndexMatch
	for rows.Next() {
		var (
			id        string
			content   string
			embedding pgvector.Vector
			metaRaw   []byte
			score     float64
		)
		if err := rows.Scan(&id, &content, &embedding, &metaRaw, &score); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}

		metadata := map[string]string{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &metadata); err != nil {
				return nil, fmt.Errorf("failed to decode passage metadata: %w", err)
			}
		}

		matches = append(matches, domain.IndexMatch{
			Passage: domain.Passage{
				ID:        id,
				Text:      content,
				Embedding: embedding.Slice(),
				Metadata:  metadata,
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return matches, nil
}

// Dimension reads the declared dimension of the embedding column so startup
// can verify it against the embedding provider.
func (idx *PgvectorIndex) Dimension(ctx context.Context) (int, error) {
	query := `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'passages'::regclass AND attname = 'embedding'
	`
	var dim int
	if err := idx.pool.QueryRow(ctx, query).Scan(&dim); err != nil {
		return 0, fmt.Errorf("failed to read index dimension: %w", err)
	}
	if dim <= 0 {
		return 0, fmt.Errorf("passages.embedding has no declared dimension")
	}
	return dim, nil
}

var _ domain.VectorIndex = (*PgvectorIndex)(nil)
