package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	"github.com/yanqian/pdfchat/internal/domain/ingest"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// MemoryFileRepository is the in-memory FileRepository used in tests.
type MemoryFileRepository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]ingest.File
}

var _ ingest.FileRepository = (*MemoryFileRepository)(nil)

func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{files: make(map[uuid.UUID]ingest.File)}
}

func (r *MemoryFileRepository) Create(_ context.Context, file ingest.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[file.ID] = file
	return nil
}

func (r *MemoryFileRepository) Get(_ context.Context, id uuid.UUID) (ingest.File, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.files[id]
	return file, ok, nil
}

func (r *MemoryFileRepository) UpdateStatus(_ context.Context, id uuid.UUID, status ingest.IngestionStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[id]
	if !ok {
		return nil
	}
	file.Status = status
	file.ErrorMessage = errorMessage
	file.UpdatedAt = time.Now().UTC()
	r.files[id] = file
	return nil
}

func (r *MemoryFileRepository) List(_ context.Context, limit, offset int) ([]ingest.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]ingest.File, 0, len(r.files))
	for _, f := range r.files {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *MemoryFileRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "file not found", nil)
	}
	delete(r.files, id)
	return nil
}

func (r *MemoryFileRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files), nil
}

// MemoryConversationRepository is the in-memory ConversationRepository.
type MemoryConversationRepository struct {
	mu    sync.RWMutex
	convs map[uuid.UUID]chat.Conversation
}

var _ chat.ConversationRepository = (*MemoryConversationRepository)(nil)

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{convs: make(map[uuid.UUID]chat.Conversation)}
}

func (r *MemoryConversationRepository) Create(_ context.Context, conv chat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID] = conv
	return nil
}

func (r *MemoryConversationRepository) Get(_ context.Context, id uuid.UUID) (chat.Conversation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[id]
	return conv, ok, nil
}

func (r *MemoryConversationRepository) List(_ context.Context, limit, offset int) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]chat.Conversation, 0, len(r.convs))
	for _, c := range r.convs {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *MemoryConversationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[id]; !ok {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "conversation not found", nil)
	}
	delete(r.convs, id)
	return nil
}

func (r *MemoryConversationRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs), nil
}

// MemoryMessageRepository is the in-memory MessageRepository. A FileRepository
// can be attached so GetByConversation resolves file records the way the
// Postgres join does.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID][]chat.Message
	files    *MemoryFileRepository
}

var _ chat.MessageRepository = (*MemoryMessageRepository)(nil)

func NewMemoryMessageRepository(files *MemoryFileRepository) *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[uuid.UUID][]chat.Message),
		files:    files,
	}
}

func (r *MemoryMessageRepository) GetByConversation(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.messages[conversationID]
	out := make([]chat.Message, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if r.files != nil {
		for i := range out {
			if out[i].FileID == nil {
				continue
			}
			if file, ok, _ := r.files.Get(ctx, *out[i].FileID); ok {
				f := file
				out[i].File = &f
			}
		}
	}
	return out, nil
}

func (r *MemoryMessageRepository) CountByConversation(_ context.Context, conversationID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages[conversationID]), nil
}

func (r *MemoryMessageRepository) CreateTurn(_ context.Context, userMsg, assistantMsg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	convID := userMsg.ConversationID
	r.messages[convID] = append(r.messages[convID], userMsg, assistantMsg)
	return nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
