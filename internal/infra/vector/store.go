// Package vector implements the chunk vector index on two interchangeable
// backends: the Upstash Vector REST API and a pgvector table on the catalog
// database. The hosted backend is used when a vector URL is configured.
package vector

import (
	"context"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
)

// Store is the union of the index operations the domain layers need. Both
// backends implement it; similarity scores are normalized to [0, 1] where 1
// means identical direction.
type Store interface {
	Upsert(ctx context.Context, entries []ingest.VectorEntry) error
	Query(ctx context.Context, vector []float32, topK int, fileIDs []uuid.UUID) ([]retrieval.Match, error)
	DeleteByFile(ctx context.Context, fileID uuid.UUID) error
}
