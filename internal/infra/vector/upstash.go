package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// UpstashIndex talks to the Upstash Vector REST API.
type UpstashIndex struct {
	baseURL    string
	token      string
	namespace  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Store = (*UpstashIndex)(nil)

func NewUpstashIndex(baseURL, token, namespace string, timeout time.Duration, logger *slog.Logger) *UpstashIndex {
	return &UpstashIndex{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		namespace:  namespace,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "upstash_index"),
	}
}

type upstashVector struct {
	ID       string                `json:"id"`
	Vector   []float32             `json:"vector"`
	Metadata ingest.VectorMetadata `json:"metadata"`
}

func (u *UpstashIndex) Upsert(ctx context.Context, entries []ingest.VectorEntry) error {
	payload := make([]upstashVector, len(entries))
	for i, e := range entries {
		payload[i] = upstashVector{ID: e.ID.String(), Vector: e.Vector, Metadata: e.Metadata}
	}

	if err := u.post(ctx, "/upsert", payload, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeVectorUpsertFailure, "vector upsert failed", err)
	}
	u.logger.Debug("vectors upserted", "count", len(entries))
	return nil
}

type upstashQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Filter          string    `json:"filter"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type upstashQueryResponse struct {
	Result []struct {
		ID       string                `json:"id"`
		Score    float64               `json:"score"`
		Metadata ingest.VectorMetadata `json:"metadata"`
	} `json:"result"`
}

func (u *UpstashIndex) Query(ctx context.Context, vector []float32, topK int, fileIDs []uuid.UUID) ([]retrieval.Match, error) {
	req := upstashQueryRequest{
		Vector:          vector,
		TopK:            topK,
		Filter:          fileFilter(fileIDs),
		IncludeMetadata: true,
	}

	var resp upstashQueryResponse
	if err := u.post(ctx, "/query", req, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVectorQueryFailure, "vector query failed", err)
	}

	matches := make([]retrieval.Match, len(resp.Result))
	for i, r := range resp.Result {
		matches[i] = retrieval.Match{
			FileID:    r.Metadata.FileID,
			ChunkID:   r.Metadata.ChunkID,
			ChunkText: r.Metadata.ChunkText,
			Score:     r.Score,
		}
	}
	return matches, nil
}

func (u *UpstashIndex) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	req := map[string]any{"filter": fileFilter([]uuid.UUID{fileID})}
	if err := u.post(ctx, "/delete", req, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeVectorUpsertFailure, "vector delete failed", err)
	}
	return nil
}

// fileFilter renders the metadata filter expression scoping a query to the
// given files.
func fileFilter(fileIDs []uuid.UUID) string {
	if len(fileIDs) == 1 {
		return fmt.Sprintf("file_id = '%s'", fileIDs[0])
	}
	quoted := make([]string, len(fileIDs))
	for i, id := range fileIDs {
		quoted[i] = fmt.Sprintf("'%s'", id)
	}
	return fmt.Sprintf("file_id IN (%s)", strings.Join(quoted, ", "))
}

func (u *UpstashIndex) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := u.baseURL + endpoint
	if u.namespace != "" {
		url += "/" + u.namespace
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
