package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
)

// ConversationRepository persists conversation records.
type ConversationRepository interface {
	Create(ctx context.Context, conv Conversation) error
	Get(ctx context.Context, id uuid.UUID) (Conversation, bool, error)
	List(ctx context.Context, limit, offset int) ([]Conversation, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository persists messages. GetByConversation returns all
// messages in ascending creation order with their file records attached.
// CreateTurn writes the user and assistant messages atomically.
type MessageRepository interface {
	GetByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	CountByConversation(ctx context.Context, conversationID uuid.UUID) (int, error)
	CreateTurn(ctx context.Context, userMsg, assistantMsg Message) error
}

// FileGetter looks up file records; satisfied by the catalog file repository.
type FileGetter interface {
	Get(ctx context.Context, id uuid.UUID) (ingest.File, bool, error)
}

// BlobFetcher downloads object bytes; satisfied by the blob store.
type BlobFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Retriever runs a file-scoped semantic search.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, fileIDs []uuid.UUID) ([]retrieval.Match, error)
}

// FileAttachment is a raw PDF handed to the model inline.
type FileAttachment struct {
	Filename string
	Data     []byte
}

// LLMMessage is one prompt message in provider-neutral form.
type LLMMessage struct {
	Role        string
	Content     string
	Attachments []FileAttachment
}

// ToolSpec describes one tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	Name      string
	Arguments string
}

// ToolOutcome is the first-pass completion result: either plain text or a
// tool call, never both.
type ToolOutcome struct {
	Text string
	Call *ToolCall
}

// LLM is the chat completion boundary.
type LLM interface {
	Complete(ctx context.Context, messages []LLMMessage) (string, error)
	CompleteWithTools(ctx context.Context, messages []LLMMessage, tools []ToolSpec) (ToolOutcome, error)
}

// ConversationLocker serializes concurrent turns on one conversation.
// Release must always be called once the turn is persisted or abandoned.
type ConversationLocker interface {
	Lock(ctx context.Context, conversationID uuid.UUID) (release func(), err error)
}
