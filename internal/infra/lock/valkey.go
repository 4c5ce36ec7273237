// Package lock provides the per-conversation advisory lock that serializes
// concurrent turns on the same conversation.
package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

const keyPrefix = "pdfchat:conversation-lock:"

// ValkeyLocker takes a SET NX lock with a TTL. A holder that crashes simply
// lets the key expire; release only deletes the key when the token still
// matches.
type ValkeyLocker struct {
	client valkey.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ chat.ConversationLocker = (*ValkeyLocker)(nil)

func NewValkeyLocker(addr string, ttl time.Duration, logger *slog.Logger) (*ValkeyLocker, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLockUnavailable, "failed to connect to valkey", err)
	}
	return &ValkeyLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "conversation_lock"),
	}, nil
}

func (l *ValkeyLocker) Lock(ctx context.Context, conversationID uuid.UUID) (func(), error) {
	key := keyPrefix + conversationID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		resp := l.client.Do(ctx, l.client.B().Set().Key(key).Value(token).Nx().Px(l.ttl).Build())
		if err := resp.Error(); err == nil {
			return func() { l.release(key, token) }, nil
		} else if !valkey.IsValkeyNil(err) {
			return nil, apperrors.Wrap(apperrors.CodeLockUnavailable, "conversation lock unavailable", err)
		}

		if time.Now().After(deadline) {
			return nil, apperrors.Wrap(apperrors.CodeConversationBusy, "conversation is busy with another turn", nil)
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *ValkeyLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := l.client.Do(ctx, l.client.B().Get().Key(key).Build()).ToString()
	if err != nil || current != token {
		return
	}
	if err := l.client.Do(ctx, l.client.B().Del().Key(key).Build()).Error(); err != nil {
		l.logger.Warn("failed to release conversation lock", "key", key, "error", err)
	}
}

// Close releases the valkey connection.
func (l *ValkeyLocker) Close() {
	l.client.Close()
}

// NoopLocker is used when no valkey address is configured; concurrent turns
// on one conversation then race with last-writer-wins ordering.
type NoopLocker struct{}

var _ chat.ConversationLocker = (*NoopLocker)(nil)

func (NoopLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}
