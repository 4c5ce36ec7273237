package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

const noResultsNote = "The document search returned no relevant passages. Answer from the conversation so far and say so if you are unsure."

// Config carries the tunables for the turn controller.
type Config struct {
	DefaultTopK int
	MaxTopK     int
}

// Service orchestrates one chat turn: classify the referenced files, build
// the prompt, run one or two completions depending on whether the model
// calls the search tool, then persist the turn.
type Service struct {
	cfg           Config
	conversations ConversationRepository
	messages      MessageRepository
	files         FileGetter
	assembler     *Assembler
	retriever     Retriever
	llm           LLM
	locker        ConversationLocker
	logger        *slog.Logger
}

func NewService(
	cfg Config,
	conversations ConversationRepository,
	messages MessageRepository,
	files FileGetter,
	assembler *Assembler,
	retriever Retriever,
	llm LLM,
	locker ConversationLocker,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		conversations: conversations,
		messages:      messages,
		files:         files,
		assembler:     assembler,
		retriever:     retriever,
		llm:           llm,
		locker:        locker,
		logger:        logger.With("component", "chat_service"),
	}
}

// HandleTurn runs one full chat turn. Nothing is persisted until the final
// completion succeeds; a failed turn leaves the conversation exactly as it
// was.
func (s *Service) HandleTurn(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, apperrors.Wrap(apperrors.CodeValidationFailure, "message cannot be empty", nil)
	}

	conv, err := s.ensureConversation(ctx, req.ConversationID)
	if err != nil {
		return Response{}, err
	}

	release, err := s.locker.Lock(ctx, conv.ID)
	if err != nil {
		return Response{}, err
	}
	defer release()

	history, err := s.messages.GetByConversation(ctx, conv.ID)
	if err != nil {
		return Response{}, err
	}

	pending := Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        req.Message,
		FileID:         req.FileID,
		CreatedAt:      time.Now().UTC(),
	}
	if req.FileID != nil {
		pending.File = s.resolveFile(ctx, history, *req.FileID)
	}

	turn := append(history, pending)
	cls := ClassifyFiles(turn)

	prompt, err := s.assembler.Assemble(ctx, turn, cls.InlineIDs)
	if err != nil {
		return Response{}, err
	}

	answer, mode, evidence, err := s.complete(ctx, prompt, cls.RAGIDs)
	if err != nil {
		return Response{}, err
	}

	if err := s.persistTurn(ctx, conv.ID, pending, answer, mode, evidence); err != nil {
		return Response{}, err
	}

	if evidence == nil {
		evidence = []RetrievedChunk{}
	}
	return Response{
		ConversationID:  conv.ID,
		Response:        answer,
		RetrievalMode:   mode,
		RetrievedChunks: evidence,
	}, nil
}

func (s *Service) ensureConversation(ctx context.Context, id *uuid.UUID) (Conversation, error) {
	if id != nil {
		conv, found, err := s.conversations.Get(ctx, *id)
		if err != nil {
			return Conversation{}, err
		}
		if !found {
			return Conversation{}, apperrors.Wrap(apperrors.CodeRecordNotFound, "conversation not found", nil)
		}
		return conv, nil
	}

	conv := Conversation{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// resolveFile finds the record for a newly referenced file. History is
// checked first so re-mentioning a known file costs no catalog read; only a
// genuinely new file hits the catalog. A missing file resolves to nil and
// the classifier skips it.
func (s *Service) resolveFile(ctx context.Context, history []Message, fileID uuid.UUID) *ingest.File {
	for _, msg := range history {
		if msg.File != nil && msg.File.ID == fileID {
			return msg.File
		}
	}
	file, found, err := s.files.Get(ctx, fileID)
	if err != nil || !found {
		if err != nil {
			s.logger.Warn("file lookup failed", "file_id", fileID, "error", err)
		}
		return nil
	}
	return &file
}

// complete decides between the inline and rag paths. With no rag-eligible
// files the model gets no tools and the turn is inline. Otherwise the model
// is offered the search tool; if it calls the tool, the results are fed back
// for a grounded second completion.
func (s *Service) complete(ctx context.Context, prompt []LLMMessage, ragIDs []uuid.UUID) (string, RetrievalMode, []RetrievedChunk, error) {
	if len(ragIDs) == 0 {
		answer, err := s.llm.Complete(ctx, prompt)
		if err != nil {
			return "", "", nil, err
		}
		return answer, ModeInline, nil, nil
	}

	outcome, err := s.llm.CompleteWithTools(ctx, prompt, []ToolSpec{s.searchToolSpec()})
	if err != nil {
		return "", "", nil, err
	}
	if outcome.Call == nil {
		return outcome.Text, ModeInline, nil, nil
	}

	query, topK, err := s.parseSearchArgs(outcome.Call.Arguments)
	if err != nil {
		return "", "", nil, err
	}

	matches, err := s.retriever.Search(ctx, query, topK, ragIDs)
	if err != nil {
		return "", "", nil, err
	}

	evidence := make([]RetrievedChunk, len(matches))
	for i, m := range matches {
		evidence[i] = RetrievedChunk{ChunkText: m.ChunkText, SimilarityScore: m.Score}
	}

	note := noResultsNote
	if len(evidence) > 0 {
		note = FormatEvidenceBlock(evidence)
	}
	followUp := append(prompt, LLMMessage{Role: "system", Content: note})

	answer, err := s.llm.Complete(ctx, followUp)
	if err != nil {
		return "", "", nil, err
	}

	s.logger.Info("rag turn completed", "query", query, "top_k", topK, "matches", len(matches))
	return answer, ModeRAG, evidence, nil
}

func (s *Service) searchToolSpec() ToolSpec {
	return ToolSpec{
		Name: "semantic_search",
		Description: "Search the user's uploaded documents for passages relevant to a question. " +
			"Call this whenever the answer may be found in the uploaded documents.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query, phrased as a standalone question.",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "How many passages to retrieve.",
					"default":     s.cfg.DefaultTopK,
					"minimum":     1,
					"maximum":     s.cfg.MaxTopK,
				},
			},
			"required": []string{"query"},
		},
	}
}

func (s *Service) parseSearchArgs(raw string) (string, int, error) {
	var args struct {
		Query string `json:"query"`
		TopK  *int   `json:"top_k"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", 0, apperrors.Wrap(apperrors.CodeLLMFailure, "model produced unparsable tool arguments", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", 0, apperrors.Wrap(apperrors.CodeLLMFailure, "model produced an empty search query", nil)
	}

	topK := s.cfg.DefaultTopK
	if args.TopK != nil {
		topK = *args.TopK
		if topK < 1 {
			topK = 1
		}
		if topK > s.cfg.MaxTopK {
			topK = s.cfg.MaxTopK
		}
	}
	return args.Query, topK, nil
}

// persistTurn writes the user and assistant messages as one transaction.
// The parent context may already be cancelled by a disconnecting client;
// the answer exists, so the write proceeds regardless.
func (s *Service) persistTurn(ctx context.Context, convID uuid.UUID, pending Message, answer string, mode RetrievalMode, evidence []RetrievedChunk) error {
	pctx := context.WithoutCancel(ctx)

	if mode == ModeRAG && evidence == nil {
		evidence = []RetrievedChunk{}
	}
	assistant := Message{
		ID:              uuid.New(),
		ConversationID:  convID,
		Role:            RoleAssistant,
		Content:         answer,
		RetrievalMode:   &mode,
		RetrievedChunks: evidence,
		CreatedAt:       time.Now().UTC(),
	}
	if !assistant.CreatedAt.After(pending.CreatedAt) {
		assistant.CreatedAt = pending.CreatedAt.Add(time.Millisecond)
	}

	return s.messages.CreateTurn(pctx, pending, assistant)
}

// ListConversations returns a page of conversation summaries, newest first.
func (s *Service) ListConversations(ctx context.Context, limit, offset int) ([]ConversationSummary, int, error) {
	convs, err := s.conversations.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.conversations.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]ConversationSummary, len(convs))
	for i, conv := range convs {
		count, err := s.messages.CountByConversation(ctx, conv.ID)
		if err != nil {
			return nil, 0, err
		}
		summaries[i] = ConversationSummary{ID: conv.ID, CreatedAt: conv.CreatedAt, MessageCount: count}
	}
	return summaries, total, nil
}

// GetConversation returns one conversation with its full message history.
func (s *Service) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, []Message, error) {
	conv, found, err := s.conversations.Get(ctx, id)
	if err != nil {
		return Conversation{}, nil, err
	}
	if !found {
		return Conversation{}, nil, apperrors.Wrap(apperrors.CodeRecordNotFound, "conversation not found", nil)
	}
	messages, err := s.messages.GetByConversation(ctx, id)
	if err != nil {
		return Conversation{}, nil, err
	}
	return conv, messages, nil
}

// DeleteConversation removes a conversation; the catalog cascades its
// messages away with it.
func (s *Service) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}
