package vector

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// PgvectorIndex keeps chunk vectors in a pgvector table on the catalog
// database. Cosine distance from the <=> operator is mapped to the same
// [0, 1] similarity scale the hosted backend reports.
type PgvectorIndex struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *slog.Logger
}

var _ Store = (*PgvectorIndex)(nil)

func NewPgvectorIndex(pool *pgxpool.Pool, namespace string, logger *slog.Logger) *PgvectorIndex {
	return &PgvectorIndex{
		pool:      pool,
		namespace: namespace,
		logger:    logger.With("component", "pgvector_index"),
	}
}

func (p *PgvectorIndex) Upsert(ctx context.Context, entries []ingest.VectorEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO chunk_vectors (id, namespace, file_id, chunk_index, chunk_text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET chunk_text = EXCLUDED.chunk_text, embedding = EXCLUDED.embedding`,
			e.ID, p.namespace, e.Metadata.FileID, e.Metadata.ChunkIndex, e.Metadata.ChunkText, pgvector.NewVector(e.Vector),
		)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return apperrors.Wrap(apperrors.CodeVectorUpsertFailure, "vector upsert failed", err)
		}
	}

	p.logger.Debug("vectors upserted", "count", len(entries))
	return nil
}

func (p *PgvectorIndex) Query(ctx context.Context, vector []float32, topK int, fileIDs []uuid.UUID) ([]retrieval.Match, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, file_id, chunk_text, (2 - (embedding <=> $1)) / 2 AS score
		 FROM chunk_vectors
		 WHERE namespace = $2 AND file_id = ANY($3)
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(vector), p.namespace, fileIDs, topK)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVectorQueryFailure, "vector query failed", err)
	}
	defer rows.Close()

	matches := []retrieval.Match{}
	for rows.Next() {
		var m retrieval.Match
		if err := rows.Scan(&m.ChunkID, &m.FileID, &m.ChunkText, &m.Score); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeVectorQueryFailure, "failed to scan match row", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVectorQueryFailure, "failed to iterate match rows", err)
	}
	return matches, nil
}

func (p *PgvectorIndex) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE namespace = $1 AND file_id = $2`,
		p.namespace, fileID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeVectorUpsertFailure, "vector delete failed", err)
	}
	return nil
}
