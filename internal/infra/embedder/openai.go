// Package embedder produces embeddings through an OpenAI-compatible
// provider, with bounded retries for transient failures.
package embedder

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	"github.com/yanqian/pdfchat/internal/infra/llm/openai"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

const maxAttempts = 3

// OpenAIEmbedder embeds batches of text. Rate limits and timeouts are
// retried with exponential backoff; any other provider error fails fast.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	baseDelay time.Duration
	logger    *slog.Logger
}

var (
	_ ingest.Embedder    = (*OpenAIEmbedder)(nil)
	_ retrieval.Embedder = (*OpenAIEmbedder)(nil)
)

func NewOpenAIEmbedder(client *openai.Client, model string, timeout time.Duration, logger *slog.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		timeout:   timeout,
		baseDelay: time.Second,
		logger:    logger.With("component", "embedder"),
	}
}

// EmbedBatch embeds texts in one provider call, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.baseDelay << (attempt - 1)
			e.logger.Warn("retrying embedding request", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.CodeEmbeddingFailure, "embedding cancelled during backoff", ctx.Err())
			}
		}

		vectors, err := e.embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, apperrors.Wrap(apperrors.CodeEmbeddingFailure, "embedding request failed", lastErr)
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbedding(ctx, openai.EmbeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.WithDetail(
			apperrors.CodeEmbeddingFailure,
			"provider returned a partial embedding batch",
			map[string]any{"requested": len(texts), "returned": len(resp.Data)},
			nil,
		)
	}

	// The provider indexes each embedding; order by index rather than
	// trusting response order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func retryable(err error) bool {
	if openai.IsRateLimit(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
