// Package retrieval answers semantic search queries scoped to a set of
// already-ingested files.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// Match is one scored chunk returned by a similarity search.
type Match struct {
	FileID    uuid.UUID `json:"file_id"`
	ChunkID   uuid.UUID `json:"chunk_id"`
	ChunkText string    `json:"chunk_text"`
	Score     float64   `json:"similarity_score"`
}

// Embedder produces embeddings for free form text, preserving input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorQuerier runs a filtered nearest-neighbor search.
type VectorQuerier interface {
	Query(ctx context.Context, vector []float32, topK int, fileIDs []uuid.UUID) ([]Match, error)
}

// Service embeds the query text and searches the vector index.
type Service struct {
	embedder Embedder
	index    VectorQuerier
	logger   *slog.Logger
}

func NewService(embedder Embedder, index VectorQuerier, logger *slog.Logger) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		logger:   logger.With("component", "retrieval_service"),
	}
}

// Search returns up to topK chunks from the given files, ordered by
// descending similarity. Callers must scope the search to at least one file;
// an unscoped search would leak content across conversations, so an empty
// fileIDs slice is treated as a caller bug.
func (s *Service) Search(ctx context.Context, query string, topK int, fileIDs []uuid.UUID) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "query cannot be empty", nil)
	}
	if len(fileIDs) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "at least one file id is required", nil)
	}
	if topK <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "top_k must be positive", nil)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingFailure, "embedding provider returned an unexpected batch size", nil)
	}

	matches, err := s.index.Query(ctx, vectors[0], topK, fileIDs)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("semantic search finished", "files", len(fileIDs), "top_k", topK, "matches", len(matches))
	return matches, nil
}
