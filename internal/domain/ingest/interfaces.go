package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BlobStore abstracts the S3-compatible object store.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	SignedPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// FileRepository persists file records in the catalog.
type FileRepository interface {
	Create(ctx context.Context, file File) error
	Get(ctx context.Context, id uuid.UUID) (File, bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status IngestionStatus, errorMessage *string) error
	List(ctx context.Context, limit, offset int) ([]File, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Extractor pulls plain text out of PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, pdfBytes []byte) (string, error)
}

// Chunker splits cleaned text into token windows.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
}

// Embedder produces embeddings for free form text, preserving input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunk vectors for later similarity search.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []VectorEntry) error
	DeleteByFile(ctx context.Context, fileID uuid.UUID) error
}
