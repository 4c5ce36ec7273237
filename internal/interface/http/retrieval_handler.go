package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

type retrievePayload struct {
	Query   string   `json:"query"`
	FileIDs []string `json:"file_ids"`
	TopK    *int     `json:"top_k"`
}

const defaultRetrieveTopK = 5

// Retrieve runs a direct semantic search against the given files. It exists
// for debugging and for callers that want raw passages instead of a chat
// answer.
func (h *Handler) Retrieve(c *gin.Context) {
	var payload retrievePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "request body must be JSON with a query and file_ids", err))
		return
	}

	fileIDs := make([]uuid.UUID, 0, len(payload.FileIDs))
	for _, raw := range payload.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid file id: "+raw, err))
			return
		}
		fileIDs = append(fileIDs, id)
	}

	topK := defaultRetrieveTopK
	if payload.TopK != nil {
		topK = *payload.TopK
	}

	matches, err := h.retrievalSvc.Search(c.Request.Context(), payload.Query, topK, fileIDs)
	if err != nil {
		httpErr := asHTTPError(err)
		// For this diagnostic endpoint an embedding or query fault is
		// treated as a bad request rather than an upstream failure.
		if apperrors.IsCode(err, apperrors.CodeEmbeddingFailure) || apperrors.IsCode(err, apperrors.CodeVectorQueryFailure) {
			httpErr.Status = http.StatusBadRequest
		}
		abortWithError(c, httpErr)
		return
	}
	if len(matches) == 0 {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "no_results", "no matching passages found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": matches})
}
