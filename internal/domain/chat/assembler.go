package chat

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const systemPrompt = "You are a helpful assistant that answers questions about the user's uploaded PDF documents. " +
	"Ground your answers in the provided documents and retrieved context whenever possible, and say so when the documents do not contain the answer."

// Assembler turns stored messages into the prompt for the next completion.
// It enforces the inline payload budgets and replays stored retrieval
// evidence so the model sees exactly what grounded earlier answers.
type Assembler struct {
	blob           BlobFetcher
	maxMessages    int
	maxFileBytes   int64
	maxInlineBytes int64
	logger         *slog.Logger
}

func NewAssembler(blob BlobFetcher, maxMessages int, maxFileBytes, maxInlineBytes int64, logger *slog.Logger) *Assembler {
	return &Assembler{
		blob:           blob,
		maxMessages:    maxMessages,
		maxFileBytes:   maxFileBytes,
		maxInlineBytes: maxInlineBytes,
		logger:         logger.With("component", "context_assembler"),
	}
}

type inlineCandidate struct {
	fileID     uuid.UUID
	storageKey string
	order      int // position of first mention, ascending
	data       []byte
}

// Assemble builds the prompt from the full message history (the pending
// user turn included, as its last element) and the set of files classified
// for inline use. Only the newest maxMessages messages make the window, and
// inline payloads are packed newest-first-mention until the total budget
// runs out.
func (a *Assembler) Assemble(ctx context.Context, messages []Message, inlineIDs []uuid.UUID) ([]LLMMessage, error) {
	accepted := a.packInlineFiles(ctx, messages, inlineIDs)

	window := messages
	if len(window) > a.maxMessages {
		window = window[len(window)-a.maxMessages:]
	}

	prompt := []LLMMessage{{Role: "system", Content: systemPrompt}}
	attachedPayloads := false

	for _, msg := range window {
		switch msg.Role {
		case RoleUser:
			out := LLMMessage{Role: "user", Content: msg.Content}
			if !attachedPayloads {
				out.Attachments = attachmentsFor(accepted)
				attachedPayloads = true
			}
			if msg.File != nil {
				if _, ok := accepted[msg.File.ID]; !ok {
					out.Content += fmt.Sprintf(" [Referring to file: %s]", filenameOf(msg.File.StorageKey))
				}
			}
			prompt = append(prompt, out)
		case RoleAssistant:
			prompt = append(prompt, LLMMessage{Role: "assistant", Content: msg.Content})
			if msg.RetrievalMode != nil && *msg.RetrievalMode == ModeRAG && len(msg.RetrievedChunks) > 0 {
				prompt = append(prompt, LLMMessage{Role: "system", Content: FormatEvidenceBlock(msg.RetrievedChunks)})
			}
		}
	}

	return prompt, nil
}

// packInlineFiles downloads the inline candidates and packs them into the
// total budget, preferring the most recently introduced files. Files whose
// download fails or that exceed the per-file cap are dropped with a log
// line; the turn proceeds without them.
func (a *Assembler) packInlineFiles(ctx context.Context, messages []Message, inlineIDs []uuid.UUID) map[uuid.UUID]inlineCandidate {
	accepted := make(map[uuid.UUID]inlineCandidate)
	if len(inlineIDs) == 0 {
		return accepted
	}

	wanted := make(map[uuid.UUID]struct{}, len(inlineIDs))
	for _, id := range inlineIDs {
		wanted[id] = struct{}{}
	}

	var candidates []inlineCandidate
	for i, msg := range messages {
		if msg.File == nil {
			continue
		}
		if _, ok := wanted[msg.File.ID]; !ok {
			continue
		}
		delete(wanted, msg.File.ID)
		candidates = append(candidates, inlineCandidate{
			fileID:     msg.File.ID,
			storageKey: msg.File.StorageKey,
			order:      i,
		})
	}

	// Newest first mention wins budget first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].order > candidates[j].order
	})

	var total int64
	for _, cand := range candidates {
		data, err := a.blob.Fetch(ctx, cand.storageKey)
		if err != nil {
			a.logger.Warn("inline file dropped: download failed", "file_id", cand.fileID, "error", err)
			continue
		}
		size := int64(len(data))
		if size > a.maxFileBytes {
			a.logger.Warn("inline file dropped: exceeds per-file cap", "file_id", cand.fileID, "size_bytes", size)
			continue
		}
		if total+size > a.maxInlineBytes {
			a.logger.Warn("inline file dropped: total budget exhausted", "file_id", cand.fileID, "size_bytes", size)
			continue
		}
		total += size
		cand.data = data
		accepted[cand.fileID] = cand
	}

	return accepted
}

func attachmentsFor(accepted map[uuid.UUID]inlineCandidate) []FileAttachment {
	if len(accepted) == 0 {
		return nil
	}
	ordered := make([]inlineCandidate, 0, len(accepted))
	for _, cand := range accepted {
		ordered = append(ordered, cand)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	attachments := make([]FileAttachment, len(ordered))
	for i, cand := range ordered {
		attachments[i] = FileAttachment{Filename: filenameOf(cand.storageKey), Data: cand.data}
	}
	return attachments
}

func filenameOf(storageKey string) string {
	return path.Base(storageKey)
}

// FormatEvidenceBlock renders retrieval evidence as a system message. The
// exact same rendering is used for the live follow-up completion and for
// replaying stored evidence in later turns.
func FormatEvidenceBlock(chunks []RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Context used for this response:")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n\n[Chunk %d] (relevance: %.1f%%)\n%s", i+1, c.SimilarityScore*100, c.ChunkText)
	}
	return b.String()
}
