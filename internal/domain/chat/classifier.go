package chat

import (
	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
)

// Classification partitions every file referenced in a conversation by how
// it can be used this turn. InlineIDs and RAGIDs are disjoint and ordered by
// first mention.
type Classification struct {
	InlineIDs []uuid.UUID
	RAGIDs    []uuid.UUID
	NotFound  int
	Failed    int
}

// ClassifyFiles walks the messages in ascending order and buckets each
// distinct file by its ingestion status: uploaded files go inline (their
// text is not indexed yet), completed files go through retrieval, and
// failed or missing files are skipped. A file's bucket is decided at its
// first mention only, so a file whose status changed mid-conversation keeps
// whichever classification its current status dictates, not a stale one.
func ClassifyFiles(messages []Message) Classification {
	var cls Classification
	seen := make(map[uuid.UUID]struct{})

	for _, msg := range messages {
		if msg.FileID == nil {
			continue
		}
		if _, ok := seen[*msg.FileID]; ok {
			continue
		}
		seen[*msg.FileID] = struct{}{}

		if msg.File == nil {
			cls.NotFound++
			continue
		}
		switch msg.File.Status {
		case ingest.StatusUploaded:
			cls.InlineIDs = append(cls.InlineIDs, msg.File.ID)
		case ingest.StatusCompleted:
			cls.RAGIDs = append(cls.RAGIDs, msg.File.ID)
		default:
			cls.Failed++
		}
	}

	return cls
}
