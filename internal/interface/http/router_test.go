package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
	"github.com/yanqian/pdfchat/internal/infra/catalog"
	"github.com/yanqian/pdfchat/internal/infra/config"
)

type stubBlob struct{}

func (stubBlob) Fetch(context.Context, string) ([]byte, error) { return []byte("%PDF"), nil }
func (stubBlob) SignedPut(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.test/put/" + key, nil
}
func (stubBlob) SignedGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.test/get/" + key, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte) (string, error) { return "text", nil }

type stubChunker struct{}

func (stubChunker) Chunk(text string) ([]ingest.Chunk, error) {
	return []ingest.Chunk{{Index: 0, Text: text, TokenCount: 1, EndChar: len(text)}}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubIndex struct{}

func (stubIndex) Upsert(context.Context, []ingest.VectorEntry) error { return nil }
func (stubIndex) DeleteByFile(context.Context, uuid.UUID) error      { return nil }
func (stubIndex) Query(context.Context, []float32, int, []uuid.UUID) ([]retrieval.Match, error) {
	return nil, nil
}

type stubLLM struct{}

func (stubLLM) Complete(context.Context, []chat.LLMMessage) (string, error) {
	return "stub answer", nil
}
func (stubLLM) CompleteWithTools(context.Context, []chat.LLMMessage, []chat.ToolSpec) (chat.ToolOutcome, error) {
	return chat.ToolOutcome{Text: "stub answer"}, nil
}

type stubLocker struct{}

func (stubLocker) Lock(context.Context, uuid.UUID) (func(), error) { return func() {}, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) (*httptest.Server, *catalog.MemoryFileRepository) {
	t.Helper()
	logger := testLogger()

	files := catalog.NewMemoryFileRepository()
	convs := catalog.NewMemoryConversationRepository()
	msgs := catalog.NewMemoryMessageRepository(files)

	ingestSvc := ingest.NewService(files, stubBlob{}, stubExtractor{}, stubChunker{}, stubEmbedder{}, stubIndex{}, time.Hour, logger)
	retrievalSvc := retrieval.NewService(stubEmbedder{}, stubIndex{}, logger)

	assembler := chat.NewAssembler(stubBlob{}, 20, 1<<20, 1<<20, logger)
	chatSvc := chat.NewService(
		chat.Config{DefaultTopK: 5, MaxTopK: 20},
		convs, msgs, files, assembler, retrievalSvc, stubLLM{}, stubLocker{}, logger,
	)

	handler := NewHandler(ingestSvc, chatSvc, retrievalSvc, logger)
	server := NewRouter(&config.Config{HTTP: config.HTTPConfig{Address: ":0"}}, handler)

	srv := httptest.NewServer(server.Handler)
	t.Cleanup(srv.Close)
	return srv, files
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPresignEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/presign", map[string]string{"filename": "report.pdf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotEmpty(t, body["file_id"])
	require.Contains(t, body["presigned_url"], "uploads/")
	require.EqualValues(t, 3600, body["expires_in_seconds"])
}

func TestPresignRejectsBadFilename(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/presign", map[string]string{"filename": "notes.txt"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "ValidationFailure", body["error"])
}

func TestWebhookRejectsMalformedKey(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/webhook/ingest", map[string]string{"s3_bucket": "b", "s3_key": "uploads/not-a-uuid.pdf"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "InvalidKeyFormat", body["error"])
}

func TestErrorBodyIsFlat(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/webhook/ingest", map[string]string{"s3_bucket": "b", "s3_key": "pdfs/not-a-uuid.pdf"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.IsType(t, "", body["error"], "error must be the kind string, not an object")
	require.Equal(t, "InvalidKeyFormat", body["error"])
	require.NotEmpty(t, body["message"])
	require.Contains(t, body, "detail")
}

func TestWebhookIngestsAndListsFile(t *testing.T) {
	srv, _ := newTestServer(t)
	fileID := uuid.New()

	resp := postJSON(t, srv.URL+"/webhook/ingest", map[string]string{
		"s3_bucket": "b",
		"s3_key":    ingest.BuildStorageKey(fileID),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "success", body["status"])
	require.Equal(t, "completed", body["ingestion_status"])
	require.Equal(t, fileID.String(), body["file_id"])
	summary := body["summary"].(map[string]any)
	require.EqualValues(t, 1, summary["chunks_created"])

	listResp, err := http.Get(srv.URL + "/files")
	require.NoError(t, err)
	listBody := decodeBody(t, listResp)
	require.EqualValues(t, 1, listBody["total"])

	fileResp, err := http.Get(srv.URL + "/files/" + fileID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, fileResp.StatusCode)
	fileBody := decodeBody(t, fileResp)
	require.Contains(t, fileBody["presigned_download_url"], fileID.String())
}

func TestWebhookDuplicateDeliveryReportsSuccess(t *testing.T) {
	srv, _ := newTestServer(t)
	fileID := uuid.New()
	payload := map[string]string{"s3_bucket": "b", "s3_key": ingest.BuildStorageKey(fileID)}

	first := postJSON(t, srv.URL+"/webhook/ingest", payload)
	require.Equal(t, http.StatusOK, first.StatusCode)
	first.Body.Close()

	resp := postJSON(t, srv.URL+"/webhook/ingest", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "success", body["status"])
	require.Equal(t, "file already exists", body["message"])
	require.Equal(t, "completed", body["ingestion_status"])
}

func TestDeleteFileEndpoint(t *testing.T) {
	srv, files := newTestServer(t)
	fileID := uuid.New()

	resp := postJSON(t, srv.URL+"/webhook/ingest", map[string]string{
		"s3_bucket": "b",
		"s3_key":    ingest.BuildStorageKey(fileID),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/files/"+fileID.String(), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody(t, delResp)
	require.Equal(t, http.StatusOK, delResp.StatusCode)
	require.Equal(t, true, body["deleted"])

	_, found, err := files.Get(context.Background(), fileID)
	require.NoError(t, err)
	require.False(t, found)

	getResp, err := http.Get(srv.URL + "/files/" + fileID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestDeleteChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	convID := decodeBody(t, resp)["conversation_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/chats/"+convID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, delResp.StatusCode)
	delResp.Body.Close()

	getResp, err := http.Get(srv.URL + "/chats/" + convID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestDeleteChatUnknownConversationIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/chats/"+uuid.NewString(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "RecordNotFound", body["error"])
}

func TestGetFileNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/files/" + uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "RecordNotFound", body["error"])
}

func TestChatEndpointRunsATurn(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "stub answer", body["response"])
	require.Equal(t, "inline", body["retrieval_mode"])
	convID := body["conversation_id"].(string)

	chatResp, err := http.Get(srv.URL + "/chats/" + convID)
	require.NoError(t, err)
	chatBody := decodeBody(t, chatResp)
	require.Len(t, chatBody["messages"], 2)
}

func TestChatUnknownConversationIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hi", "conversation_id": uuid.NewString()})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetrieveValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/retrieve", map[string]any{"query": "x", "file_ids": []string{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetrieveNoHitsIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/retrieve", map[string]any{"query": "x", "file_ids": []string{uuid.NewString()}})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
