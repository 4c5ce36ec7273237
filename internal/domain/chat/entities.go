package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// RetrievalMode records how an assistant turn was grounded: inline means the
// raw PDF bytes were in the prompt, rag means chunks came back from the
// vector index.
type RetrievalMode string

const (
	ModeInline RetrievalMode = "inline"
	ModeRAG    RetrievalMode = "rag"
)

// Conversation groups an ordered sequence of messages.
type Conversation struct {
	ID        uuid.UUID `json:"conversation_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a Conversation plus its message count, for listings.
type ConversationSummary struct {
	ID           uuid.UUID `json:"conversation_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// RetrievedChunk is the evidence stored with a rag assistant message.
type RetrievedChunk struct {
	ChunkText       string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Message is one conversation turn. File is the eagerly loaded catalog
// record for FileID; it stays nil when the message has no file or the file
// row has since been removed.
type Message struct {
	ID              uuid.UUID        `json:"message_id"`
	ConversationID  uuid.UUID        `json:"conversation_id"`
	Role            MessageRole      `json:"role"`
	Content         string           `json:"content"`
	FileID          *uuid.UUID       `json:"file_id,omitempty"`
	File            *ingest.File     `json:"-"`
	RetrievalMode   *RetrievalMode   `json:"retrieval_mode,omitempty"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Request is one chat turn from the client.
type Request struct {
	Message        string
	ConversationID *uuid.UUID
	FileID         *uuid.UUID
}

// Response is the completed turn returned to the client.
type Response struct {
	ConversationID  uuid.UUID        `json:"conversation_id"`
	Response        string           `json:"response"`
	RetrievalMode   RetrievalMode    `json:"retrieval_mode"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
}
