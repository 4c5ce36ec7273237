package ingest

import (
	"time"

	"github.com/google/uuid"
)

// IngestionStatus tracks pipeline progress. Transitions are
// uploaded -> completed or uploaded -> failed; both end states are terminal.
type IngestionStatus string

const (
	StatusUploaded  IngestionStatus = "uploaded"
	StatusCompleted IngestionStatus = "completed"
	StatusFailed    IngestionStatus = "failed"
)

// File represents an uploaded PDF tracked through ingestion.
type File struct {
	ID           uuid.UUID       `json:"file_id"`
	StorageKey   string          `json:"storage_key"`
	Status       IngestionStatus `json:"ingestion_status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Chunk is one token window produced by the chunker.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
	StartChar  int
	EndChar    int
}

// VectorMetadata is stored alongside each chunk vector.
type VectorMetadata struct {
	FileID     uuid.UUID `json:"file_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
}

// VectorEntry is one upsert unit for the vector index.
type VectorEntry struct {
	ID       uuid.UUID
	Vector   []float32
	Metadata VectorMetadata
}

// Report summarizes one webhook-triggered ingestion run.
type Report struct {
	FileID        uuid.UUID
	Status        IngestionStatus
	AlreadyExists bool
	Message       string
	Suggestion    string
	Summary       *Summary
}

// Summary carries the processing counters returned to the webhook caller.
type Summary struct {
	PDFSizeBytes  int `json:"pdf_size_bytes"`
	TextChars     int `json:"text_chars"`
	ChunksCreated int `json:"chunks_created"`
	VectorsStored int `json:"vectors_stored"`
}

// PresignGrant is returned by the presign operation.
type PresignGrant struct {
	FileID           uuid.UUID `json:"file_id"`
	PresignedURL     string    `json:"presigned_url"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}
