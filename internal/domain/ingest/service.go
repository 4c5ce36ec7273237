package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// Service runs the ingestion pipeline and the file-facing read operations.
type Service struct {
	files      FileRepository
	blob       BlobStore
	extractor  Extractor
	chunker    Chunker
	embedder   Embedder
	index      VectorIndex
	presignTTL time.Duration
	logger     *slog.Logger
}

func NewService(
	files FileRepository,
	blob BlobStore,
	extractor Extractor,
	chunker Chunker,
	embedder Embedder,
	index VectorIndex,
	presignTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		files:      files,
		blob:       blob,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		presignTTL: presignTTL,
		logger:     logger.With("component", "ingest_service"),
	}
}

// Presign allocates a file ID and returns a one-hour upload URL for it. The
// file record is not created here; the webhook does that once the object
// actually lands in the bucket.
func (s *Service) Presign(ctx context.Context, filename string) (PresignGrant, error) {
	if err := ValidateFilename(filename); err != nil {
		return PresignGrant{}, err
	}

	fileID := uuid.New()
	key := BuildStorageKey(fileID)

	url, err := s.blob.SignedPut(ctx, key, s.presignTTL)
	if err != nil {
		return PresignGrant{}, err
	}

	s.logger.Info("presigned upload url issued", "file_id", fileID, "filename", filename)

	return PresignGrant{
		FileID:           fileID,
		PresignedURL:     url,
		ExpiresInSeconds: int(s.presignTTL.Seconds()),
	}, nil
}

// Ingest processes one webhook delivery. A malformed key or a catalog
// failure is returned as an error; every content-level failure inside the
// pipeline is absorbed into a failed report so the webhook caller still gets
// an acknowledgement and does not retry a hopeless object.
func (s *Service) Ingest(ctx context.Context, blobKey string) (Report, error) {
	fileID, err := ParseStorageKey(blobKey)
	if err != nil {
		return Report{}, err
	}

	existing, found, err := s.files.Get(ctx, fileID)
	if err != nil {
		return Report{}, err
	}
	if found {
		s.logger.Info("duplicate webhook delivery", "file_id", fileID, "status", existing.Status)
		return Report{
			FileID:        fileID,
			Status:        existing.Status,
			AlreadyExists: true,
			Message:       "file already exists",
		}, nil
	}

	now := time.Now().UTC()
	file := File{
		ID:         fileID,
		StorageKey: blobKey,
		Status:     StatusUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return Report{}, err
	}

	summary, err := s.process(ctx, fileID, blobKey)
	if err != nil {
		msg := err.Error()
		s.logger.Warn("ingestion failed", "file_id", fileID, "error", msg)
		if updateErr := s.files.UpdateStatus(ctx, fileID, StatusFailed, &msg); updateErr != nil {
			return Report{}, updateErr
		}
		return Report{
			FileID:     fileID,
			Status:     StatusFailed,
			Message:    msg,
			Suggestion: suggestionFor(err),
		}, nil
	}

	if err := s.files.UpdateStatus(ctx, fileID, StatusCompleted, nil); err != nil {
		return Report{}, err
	}

	s.logger.Info("ingestion completed",
		"file_id", fileID,
		"chunks", summary.ChunksCreated,
		"vectors", summary.VectorsStored,
	)

	return Report{
		FileID:  fileID,
		Status:  StatusCompleted,
		Message: "file ingested successfully",
		Summary: summary,
	}, nil
}

func (s *Service) process(ctx context.Context, fileID uuid.UUID, blobKey string) (*Summary, error) {
	pdfBytes, err := s.blob.Fetch(ctx, blobKey)
	if err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(ctx, pdfBytes)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunker.Chunk(text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeExtractionFailure, "no chunks produced from extracted text", nil)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, apperrors.WithDetail(
			apperrors.CodeEmbeddingFailure,
			"embedding count does not match chunk count",
			map[string]any{"chunks": len(chunks), "embeddings": len(vectors)},
			nil,
		)
	}

	entries := make([]VectorEntry, len(chunks))
	for i, c := range chunks {
		chunkID := ChunkVectorID(fileID, c.Index)
		entries[i] = VectorEntry{
			ID:     chunkID,
			Vector: vectors[i],
			Metadata: VectorMetadata{
				FileID:     fileID,
				ChunkID:    chunkID,
				ChunkIndex: c.Index,
				ChunkText:  c.Text,
			},
		}
	}

	if err := s.index.Upsert(ctx, entries); err != nil {
		// Best effort cleanup; stable chunk IDs make a later retry
		// overwrite whatever this pass managed to store anyway.
		if delErr := s.index.DeleteByFile(ctx, fileID); delErr != nil {
			s.logger.Warn("vector cleanup after failed upsert", "file_id", fileID, "error", delErr)
		}
		return nil, err
	}

	return &Summary{
		PDFSizeBytes:  len(pdfBytes),
		TextChars:     len(text),
		ChunksCreated: len(chunks),
		VectorsStored: len(entries),
	}, nil
}

// ChunkVectorID derives a deterministic vector ID from the file ID and the
// chunk index, so re-ingesting the same object overwrites rather than
// duplicates.
func ChunkVectorID(fileID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(fileID, []byte(fmt.Sprintf("chunk:%d", index)))
}

// ListFiles returns a page of file records, newest first, plus the total count.
func (s *Service) ListFiles(ctx context.Context, limit, offset int) ([]File, int, error) {
	files, err := s.files.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.files.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// GetFile returns one file record together with a fresh download URL.
func (s *Service) GetFile(ctx context.Context, id uuid.UUID) (File, string, int, error) {
	file, found, err := s.files.Get(ctx, id)
	if err != nil {
		return File{}, "", 0, err
	}
	if !found {
		return File{}, "", 0, apperrors.Wrap(apperrors.CodeRecordNotFound, "file not found", nil)
	}
	url, err := s.blob.SignedGet(ctx, file.StorageKey, s.presignTTL)
	if err != nil {
		return File{}, "", 0, err
	}
	return file, url, int(s.presignTTL.Seconds()), nil
}

// DeleteFile removes the file record and its chunk vectors. Messages that
// referenced the file keep their text; the catalog sets their file_id to
// NULL. Vectors go first so a crash between the two steps never strands
// vectors behind a deleted record.
func (s *Service) DeleteFile(ctx context.Context, id uuid.UUID) error {
	_, found, err := s.files.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "file not found", nil)
	}
	if err := s.index.DeleteByFile(ctx, id); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("file deleted", "file_id", id)
	return nil
}

func suggestionFor(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeExtractionFailure:
		if strings.Contains(err.Error(), "no text") {
			return "the PDF contains no extractable text; scanned documents need OCR before upload"
		}
		return "verify the file is a valid, uncorrupted PDF"
	case apperrors.CodeBlobNotFound:
		return "the object was deleted before ingestion could read it; upload it again"
	case apperrors.CodeEmbeddingFailure:
		return "the embedding provider rejected the request; retry the webhook later"
	case apperrors.CodeVectorUpsertFailure:
		return "the vector index rejected the write; retry the webhook later"
	default:
		return ""
	}
}
