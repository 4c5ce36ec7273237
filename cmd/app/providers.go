package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	"github.com/yanqian/pdfchat/internal/infra/blob"
	"github.com/yanqian/pdfchat/internal/infra/catalog"
	"github.com/yanqian/pdfchat/internal/infra/chunker"
	"github.com/yanqian/pdfchat/internal/infra/config"
	"github.com/yanqian/pdfchat/internal/infra/embedder"
	"github.com/yanqian/pdfchat/internal/infra/extract"
	"github.com/yanqian/pdfchat/internal/infra/llm/openai"
	"github.com/yanqian/pdfchat/internal/infra/lock"
	"github.com/yanqian/pdfchat/internal/infra/vector"
)

func provideCatalogPool(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx := context.Background()
	pool, err := catalog.NewPool(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	if err := catalog.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func provideBlobStore(cfg *config.Config, logger *slog.Logger) (*blob.S3Store, error) {
	return blob.NewS3Store(cfg.Blob, logger)
}

func provideOpenAIClient(cfg *config.Config) (*openai.Client, error) {
	return openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func provideEmbedder(client *openai.Client, cfg *config.Config, logger *slog.Logger) *embedder.OpenAIEmbedder {
	return embedder.NewOpenAIEmbedder(client, cfg.LLM.EmbeddingModel, cfg.LLM.EmbedTimeout, logger)
}

func provideExtractor(logger *slog.Logger) *extract.PDFExtractor {
	return extract.NewPDFExtractor(logger)
}

func provideChunker(cfg *config.Config) (*chunker.TokenChunker, error) {
	tok, err := chunker.NewTokenizer(cfg.LLM.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return chunker.NewTokenChunker(tok, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
}

// provideVectorStore picks the hosted index when a vector URL is configured,
// otherwise vectors live in a pgvector table on the catalog database.
func provideVectorStore(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) vector.Store {
	if cfg.Vector.URL != "" {
		return vector.NewUpstashIndex(cfg.Vector.URL, cfg.Vector.Token, cfg.Vector.Namespace, cfg.Vector.CallTimeout, logger)
	}
	return vector.NewPgvectorIndex(pool, cfg.Vector.Namespace, logger)
}

func provideFileRepository(pool *pgxpool.Pool, logger *slog.Logger) *catalog.PostgresFileRepository {
	return catalog.NewPostgresFileRepository(pool, logger)
}

func provideConversationRepository(pool *pgxpool.Pool) *catalog.PostgresConversationRepository {
	return catalog.NewPostgresConversationRepository(pool)
}

func provideMessageRepository(pool *pgxpool.Pool) *catalog.PostgresMessageRepository {
	return catalog.NewPostgresMessageRepository(pool)
}

func provideLocker(cfg *config.Config, logger *slog.Logger) (chat.ConversationLocker, error) {
	if cfg.Lock.ValkeyAddr == "" {
		logger.Info("no valkey address configured, conversation turns are not serialized")
		return lock.NoopLocker{}, nil
	}
	return lock.NewValkeyLocker(cfg.Lock.ValkeyAddr, cfg.Lock.TTL, logger)
}

func provideIngestService(
	cfg *config.Config,
	files *catalog.PostgresFileRepository,
	store *blob.S3Store,
	extractor *extract.PDFExtractor,
	chk *chunker.TokenChunker,
	emb *embedder.OpenAIEmbedder,
	index vector.Store,
	logger *slog.Logger,
) *ingest.Service {
	return ingest.NewService(files, store, extractor, chk, emb, index, cfg.Blob.PresignTTL, logger)
}

func provideRetrievalService(emb *embedder.OpenAIEmbedder, index vector.Store, logger *slog.Logger) *retrieval.Service {
	return retrieval.NewService(emb, index, logger)
}

func provideChatLLM(client *openai.Client, cfg *config.Config, logger *slog.Logger) *openai.ChatAdapter {
	return openai.NewChatAdapter(client, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.CallTimeout, logger)
}

func provideAssembler(cfg *config.Config, store *blob.S3Store, logger *slog.Logger) *chat.Assembler {
	return chat.NewAssembler(store, cfg.Chat.MaxContextMessages, cfg.Chat.MaxFileBytes, cfg.Chat.MaxInlineBytes, logger)
}

func provideChatService(
	cfg *config.Config,
	conversations *catalog.PostgresConversationRepository,
	messages *catalog.PostgresMessageRepository,
	files *catalog.PostgresFileRepository,
	assembler *chat.Assembler,
	retriever *retrieval.Service,
	llm *openai.ChatAdapter,
	locker chat.ConversationLocker,
	logger *slog.Logger,
) *chat.Service {
	chatCfg := chat.Config{DefaultTopK: cfg.Chat.DefaultTopK, MaxTopK: cfg.Chat.MaxTopK}
	return chat.NewService(chatCfg, conversations, messages, files, assembler, retriever, llm, locker, logger)
}
