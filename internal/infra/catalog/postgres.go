// Package catalog implements the relational persistence boundary on
// PostgreSQL, plus in-memory equivalents for tests.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/infra/config"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// NewPool connects to the catalog and verifies the connection.
func NewPool(ctx context.Context, cfg config.CatalogConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "invalid catalog url", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to create catalog pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "catalog is unreachable", err)
	}
	return pool, nil
}

// EnsureSchema applies the embedded schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to apply catalog schema", err)
	}
	return nil
}

// PostgresFileRepository persists file records.
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ingest.FileRepository = (*PostgresFileRepository)(nil)

func NewPostgresFileRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool, logger: logger.With("component", "file_repository")}
}

func (r *PostgresFileRepository) Create(ctx context.Context, file ingest.File) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO files (id, storage_key, ingestion_status, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		file.ID, file.StorageKey, file.Status, file.ErrorMessage, file.CreatedAt, file.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to insert file", err)
	}
	return nil
}

func (r *PostgresFileRepository) Get(ctx context.Context, id uuid.UUID) (ingest.File, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, storage_key, ingestion_status, error_message, created_at, updated_at
		 FROM files WHERE id = $1`, id)

	var file ingest.File
	err := row.Scan(&file.ID, &file.StorageKey, &file.Status, &file.ErrorMessage, &file.CreatedAt, &file.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.File{}, false, nil
	}
	if err != nil {
		return ingest.File{}, false, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to load file", err)
	}
	return file, true, nil
}

func (r *PostgresFileRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ingest.IngestionStatus, errorMessage *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE files SET ingestion_status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		id, status, errorMessage, time.Now().UTC(),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to update file status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "file not found", nil)
	}
	return nil
}

func (r *PostgresFileRepository) List(ctx context.Context, limit, offset int) ([]ingest.File, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, storage_key, ingestion_status, error_message, created_at, updated_at
		 FROM files ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to list files", err)
	}
	defer rows.Close()

	files := []ingest.File{}
	for rows.Next() {
		var file ingest.File
		if err := rows.Scan(&file.ID, &file.StorageKey, &file.Status, &file.ErrorMessage, &file.CreatedAt, &file.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to scan file row", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to iterate file rows", err)
	}
	return files, nil
}

// Delete removes the file record. Messages referencing it keep their file_id
// set to NULL by the schema; vector cleanup is the caller's job.
func (r *PostgresFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "file not found", nil)
	}
	return nil
}

func (r *PostgresFileRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to count files", err)
	}
	return count, nil
}

// PostgresConversationRepository persists conversations.
type PostgresConversationRepository struct {
	pool *pgxpool.Pool
}

var _ chat.ConversationRepository = (*PostgresConversationRepository)(nil)

func NewPostgresConversationRepository(pool *pgxpool.Pool) *PostgresConversationRepository {
	return &PostgresConversationRepository{pool: pool}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, conv chat.Conversation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, created_at) VALUES ($1, $2)`,
		conv.ID, conv.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to insert conversation", err)
	}
	return nil
}

func (r *PostgresConversationRepository) Get(ctx context.Context, id uuid.UUID) (chat.Conversation, bool, error) {
	var conv chat.Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to load conversation", err)
	}
	return conv, true, nil
}

func (r *PostgresConversationRepository) List(ctx context.Context, limit, offset int) ([]chat.Conversation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, created_at FROM conversations ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to list conversations", err)
	}
	defer rows.Close()

	convs := []chat.Conversation{}
	for rows.Next() {
		var conv chat.Conversation
		if err := rows.Scan(&conv.ID, &conv.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to scan conversation row", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to iterate conversation rows", err)
	}
	return convs, nil
}

// Delete removes the conversation; its messages go with it via the cascade.
func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to delete conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrap(apperrors.CodeRecordNotFound, "conversation not found", nil)
	}
	return nil
}

func (r *PostgresConversationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to count conversations", err)
	}
	return count, nil
}

// PostgresMessageRepository persists messages with their file records.
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

var _ chat.MessageRepository = (*PostgresMessageRepository)(nil)

func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// GetByConversation loads the full history ascending. The file join is eager
// so the classifier never issues per-message lookups.
func (r *PostgresMessageRepository) GetByConversation(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.role, m.content, m.file_id,
		        m.retrieval_mode, m.retrieved_chunks, m.created_at,
		        f.id, f.storage_key, f.ingestion_status, f.error_message, f.created_at, f.updated_at
		 FROM messages m
		 LEFT JOIN files f ON f.id = m.file_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at ASC`, conversationID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to load messages", err)
	}
	defer rows.Close()

	messages := []chat.Message{}
	for rows.Next() {
		var (
			msg      chat.Message
			mode     *string
			fID      *uuid.UUID
			fKey     *string
			fStatus  *string
			fErr     *string
			fCreated *time.Time
			fUpdated *time.Time
		)
		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.FileID,
			&mode, &msg.RetrievedChunks, &msg.CreatedAt,
			&fID, &fKey, &fStatus, &fErr, &fCreated, &fUpdated,
		)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to scan message row", err)
		}
		if mode != nil {
			m := chat.RetrievalMode(*mode)
			msg.RetrievalMode = &m
		}
		if fID != nil {
			msg.File = &ingest.File{
				ID:           *fID,
				StorageKey:   *fKey,
				Status:       ingest.IngestionStatus(*fStatus),
				ErrorMessage: fErr,
				CreatedAt:    *fCreated,
				UpdatedAt:    *fUpdated,
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to iterate message rows", err)
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CountByConversation(ctx context.Context, conversationID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to count messages", err)
	}
	return count, nil
}

// CreateTurn inserts both halves of a turn in one transaction so a crash
// never leaves a user message without its answer.
func (r *PostgresMessageRepository) CreateTurn(ctx context.Context, userMsg, assistantMsg chat.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for _, msg := range []chat.Message{userMsg, assistantMsg} {
		_, err := tx.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, file_id, retrieval_mode, retrieved_chunks, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.FileID, msg.RetrievalMode, msg.RetrievedChunks, msg.CreatedAt,
		)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to insert message", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "failed to commit turn", err)
	}
	return nil
}
