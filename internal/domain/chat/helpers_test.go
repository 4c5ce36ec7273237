package chat

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fileRecord(status ingest.IngestionStatus) *ingest.File {
	id := uuid.New()
	return &ingest.File{
		ID:         id,
		StorageKey: ingest.BuildStorageKey(id),
		Status:     status,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func userMsg(content string, file *ingest.File, at time.Time) Message {
	msg := Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: at,
	}
	if file != nil {
		msg.FileID = &file.ID
		msg.File = file
	}
	return msg
}

func assistantMsg(content string, at time.Time) Message {
	return Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: at,
	}
}

type fakeBlobFetcher struct {
	objects map[string][]byte
	errKeys map[string]error
	fetches []string
}

func newFakeBlobFetcher() *fakeBlobFetcher {
	return &fakeBlobFetcher{objects: make(map[string][]byte), errKeys: make(map[string]error)}
}

func (f *fakeBlobFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	f.fetches = append(f.fetches, key)
	if err, ok := f.errKeys[key]; ok {
		return nil, err
	}
	return f.objects[key], nil
}

type fakeConvRepo struct {
	convs map[uuid.UUID]Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: make(map[uuid.UUID]Conversation)}
}

func (f *fakeConvRepo) Create(_ context.Context, conv Conversation) error {
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConvRepo) Get(_ context.Context, id uuid.UUID) (Conversation, bool, error) {
	conv, ok := f.convs[id]
	return conv, ok, nil
}

func (f *fakeConvRepo) List(context.Context, int, int) ([]Conversation, error) { return nil, nil }
func (f *fakeConvRepo) Count(context.Context) (int, error)                    { return len(f.convs), nil }

func (f *fakeConvRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.convs[id]; !ok {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "conversation not found", nil)
	}
	delete(f.convs, id)
	return nil
}

type fakeMsgRepo struct {
	history map[uuid.UUID][]Message
	turns   [][2]Message
	err     error
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{history: make(map[uuid.UUID][]Message)}
}

func (f *fakeMsgRepo) GetByConversation(_ context.Context, id uuid.UUID) ([]Message, error) {
	return f.history[id], nil
}

func (f *fakeMsgRepo) CountByConversation(_ context.Context, id uuid.UUID) (int, error) {
	return len(f.history[id]), nil
}

func (f *fakeMsgRepo) CreateTurn(_ context.Context, userMsg, assistantMsg Message) error {
	if f.err != nil {
		return f.err
	}
	f.turns = append(f.turns, [2]Message{userMsg, assistantMsg})
	f.history[userMsg.ConversationID] = append(f.history[userMsg.ConversationID], userMsg, assistantMsg)
	return nil
}

type fakeFileGetter struct {
	files map[uuid.UUID]ingest.File
}

func newFakeFileGetter(files ...*ingest.File) *fakeFileGetter {
	g := &fakeFileGetter{files: make(map[uuid.UUID]ingest.File)}
	for _, f := range files {
		g.files[f.ID] = *f
	}
	return g
}

func (f *fakeFileGetter) Get(_ context.Context, id uuid.UUID) (ingest.File, bool, error) {
	file, ok := f.files[id]
	return file, ok, nil
}

type fakeRetriever struct {
	matches []retrieval.Match
	err     error

	gotQuery   string
	gotTopK    int
	gotFileIDs []uuid.UUID
	calls      int
}

func (f *fakeRetriever) Search(_ context.Context, query string, topK int, fileIDs []uuid.UUID) ([]retrieval.Match, error) {
	f.calls++
	f.gotQuery = query
	f.gotTopK = topK
	f.gotFileIDs = fileIDs
	return f.matches, f.err
}

// scriptedLLM answers Complete calls from answers in order and returns the
// configured outcome for the tools call.
type scriptedLLM struct {
	answers  []string
	outcome  ToolOutcome
	err      error
	toolsErr error

	completeCalls  int
	toolCalls      int
	lastPrompt     []LLMMessage
	lastToolPrompt []LLMMessage
	lastTools      []ToolSpec
}

func (f *scriptedLLM) Complete(_ context.Context, messages []LLMMessage) (string, error) {
	f.completeCalls++
	f.lastPrompt = messages
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", nil
	}
	answer := f.answers[0]
	f.answers = f.answers[1:]
	return answer, nil
}

func (f *scriptedLLM) CompleteWithTools(_ context.Context, messages []LLMMessage, tools []ToolSpec) (ToolOutcome, error) {
	f.toolCalls++
	f.lastToolPrompt = messages
	f.lastTools = tools
	if f.toolsErr != nil {
		return ToolOutcome{}, f.toolsErr
	}
	return f.outcome, nil
}

type trackingLocker struct {
	locks    []uuid.UUID
	releases int
}

func (l *trackingLocker) Lock(_ context.Context, id uuid.UUID) (func(), error) {
	l.locks = append(l.locks, id)
	return func() { l.releases++ }, nil
}
