package chat

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
)

func newTestAssembler(blob *fakeBlobFetcher, maxMessages int, maxFileBytes, maxInlineBytes int64) *Assembler {
	return NewAssembler(blob, maxMessages, maxFileBytes, maxInlineBytes, testLogger())
}

func TestAssembleAttachesInlineFilesToFirstUserMessage(t *testing.T) {
	now := time.Now().UTC()
	file := fileRecord(ingest.StatusUploaded)
	blob := newFakeBlobFetcher()
	blob.objects[file.StorageKey] = []byte("pdf-bytes")

	msgs := []Message{
		userMsg("here is my report", file, now),
		assistantMsg("got it", now.Add(time.Second)),
		userMsg("summarize it", nil, now.Add(2*time.Second)),
	}

	asm := newTestAssembler(blob, 20, 1<<20, 1<<20)
	prompt, err := asm.Assemble(context.Background(), msgs, []uuid.UUID{file.ID})
	require.NoError(t, err)

	require.Equal(t, "system", prompt[0].Role)

	first := prompt[1]
	require.Equal(t, "user", first.Role)
	require.Len(t, first.Attachments, 1)
	require.Equal(t, fmt.Sprintf("%s.pdf", file.ID), first.Attachments[0].Filename)
	require.True(t, bytes.Equal([]byte("pdf-bytes"), first.Attachments[0].Data))

	// Only the first user message in the window carries payloads.
	for _, msg := range prompt[2:] {
		require.Empty(t, msg.Attachments)
	}
}

func TestAssembleWindowKeepsNewestMessages(t *testing.T) {
	now := time.Now().UTC()
	var msgs []Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, userMsg(fmt.Sprintf("message %d", i), nil, now.Add(time.Duration(i)*time.Second)))
	}

	asm := newTestAssembler(newFakeBlobFetcher(), 20, 1<<20, 1<<20)
	prompt, err := asm.Assemble(context.Background(), msgs, nil)
	require.NoError(t, err)

	// system prompt + the 20 newest messages
	require.Len(t, prompt, 21)
	require.Equal(t, "message 10", prompt[1].Content)
	require.Equal(t, "message 29", prompt[len(prompt)-1].Content)
}

func TestAssembleBudgetEvictsOldestFirstMention(t *testing.T) {
	now := time.Now().UTC()
	older := fileRecord(ingest.StatusUploaded)
	newer := fileRecord(ingest.StatusUploaded)

	blob := newFakeBlobFetcher()
	blob.objects[older.StorageKey] = make([]byte, 600)
	blob.objects[newer.StorageKey] = make([]byte, 600)

	msgs := []Message{
		userMsg("first file", older, now),
		userMsg("second file", newer, now.Add(time.Second)),
	}

	// Budget fits only one of the two files; the newer mention wins.
	asm := newTestAssembler(blob, 20, 1000, 1000)
	prompt, err := asm.Assemble(context.Background(), msgs, []uuid.UUID{older.ID, newer.ID})
	require.NoError(t, err)

	first := prompt[1]
	require.Len(t, first.Attachments, 1)
	require.Equal(t, fmt.Sprintf("%s.pdf", newer.ID), first.Attachments[0].Filename)

	// The evicted file's message is suffixed with a textual reference.
	require.Contains(t, first.Content, fmt.Sprintf("[Referring to file: %s.pdf]", older.ID))
}

func TestAssembleDropsFilesOverPerFileCap(t *testing.T) {
	now := time.Now().UTC()
	big := fileRecord(ingest.StatusUploaded)
	blob := newFakeBlobFetcher()
	blob.objects[big.StorageKey] = make([]byte, 2048)

	asm := newTestAssembler(blob, 20, 1024, 1<<20)
	prompt, err := asm.Assemble(context.Background(), []Message{userMsg("big file", big, now)}, []uuid.UUID{big.ID})
	require.NoError(t, err)

	require.Empty(t, prompt[1].Attachments)
	require.Contains(t, prompt[1].Content, "[Referring to file:")
}

func TestAssembleSurvivesDownloadFailure(t *testing.T) {
	now := time.Now().UTC()
	file := fileRecord(ingest.StatusUploaded)
	blob := newFakeBlobFetcher()
	blob.errKeys[file.StorageKey] = fmt.Errorf("blob offline")

	asm := newTestAssembler(blob, 20, 1<<20, 1<<20)
	prompt, err := asm.Assemble(context.Background(), []Message{userMsg("question", file, now)}, []uuid.UUID{file.ID})
	require.NoError(t, err, "a failed download degrades the turn, it does not abort it")
	require.Empty(t, prompt[1].Attachments)
}

func TestAssembleReplaysStoredEvidence(t *testing.T) {
	now := time.Now().UTC()
	mode := ModeRAG
	evidence := []RetrievedChunk{
		{ChunkText: "first passage", SimilarityScore: 0.934},
		{ChunkText: "second passage", SimilarityScore: 0.871},
	}

	assistant := assistantMsg("grounded answer", now.Add(time.Second))
	assistant.RetrievalMode = &mode
	assistant.RetrievedChunks = evidence

	msgs := []Message{
		userMsg("question", nil, now),
		assistant,
		userMsg("follow-up", nil, now.Add(2*time.Second)),
	}

	asm := newTestAssembler(newFakeBlobFetcher(), 20, 1<<20, 1<<20)
	prompt, err := asm.Assemble(context.Background(), msgs, nil)
	require.NoError(t, err)

	// system, user, assistant, evidence, user
	require.Len(t, prompt, 5)
	require.Equal(t, "system", prompt[3].Role)
	require.Equal(t, FormatEvidenceBlock(evidence), prompt[3].Content)
}

func TestAssembleSkipsEvidenceForInlineTurns(t *testing.T) {
	now := time.Now().UTC()
	mode := ModeInline
	assistant := assistantMsg("plain answer", now.Add(time.Second))
	assistant.RetrievalMode = &mode

	msgs := []Message{userMsg("question", nil, now), assistant}

	asm := newTestAssembler(newFakeBlobFetcher(), 20, 1<<20, 1<<20)
	prompt, err := asm.Assemble(context.Background(), msgs, nil)
	require.NoError(t, err)
	require.Len(t, prompt, 3)
}

func TestFormatEvidenceBlock(t *testing.T) {
	block := FormatEvidenceBlock([]RetrievedChunk{
		{ChunkText: "alpha", SimilarityScore: 0.905},
		{ChunkText: "beta", SimilarityScore: 0.5},
	})
	require.Equal(t,
		"Context used for this response:\n\n[Chunk 1] (relevance: 90.5%)\nalpha\n\n[Chunk 2] (relevance: 50.0%)\nbeta",
		block)
}
