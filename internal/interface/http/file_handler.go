package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

type presignPayload struct {
	Filename string `json:"filename"`
}

// Presign issues a one-hour upload URL for a new PDF.
func (h *Handler) Presign(c *gin.Context) {
	var payload presignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "request body must be JSON with a filename", err))
		return
	}

	grant, err := h.ingestSvc.Presign(c.Request.Context(), payload.Filename)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id":            grant.FileID,
		"presigned_url":      grant.PresignedURL,
		"expires_in_seconds": grant.ExpiresInSeconds,
	})
}

type webhookPayload struct {
	S3Bucket string `json:"s3_bucket"`
	S3Key    string `json:"s3_key"`
}

// IngestWebhook processes an object-created notification. Content level
// failures still acknowledge with 200 so the bucket does not redeliver a
// hopeless object; only a malformed key or an infrastructure fault is an
// HTTP error.
func (h *Handler) IngestWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "request body must be JSON with an s3_key", err))
		return
	}

	report, err := h.ingestSvc.Ingest(c.Request.Context(), payload.S3Key)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	body := gin.H{
		"status":           webhookStatus(report),
		"file_id":          report.FileID,
		"ingestion_status": report.Status,
	}
	if report.Message != "" {
		body["message"] = report.Message
	}
	if report.Suggestion != "" {
		body["suggestion"] = report.Suggestion
	}
	if report.Summary != nil {
		body["summary"] = report.Summary
	}
	c.JSON(http.StatusOK, body)
}

// A redelivered notification for a known file is acknowledged as a success;
// the body still says the file already exists.
func webhookStatus(report ingest.Report) string {
	if report.AlreadyExists || report.Status == ingest.StatusCompleted {
		return "success"
	}
	return "failed"
}

// ListFiles returns a page of tracked files.
func (h *Handler) ListFiles(c *gin.Context) {
	limit, offset := pagination(c)

	files, total, err := h.ingestSvc.ListFiles(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":  files,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetFile returns one file with a fresh download URL.
func (h *Handler) GetFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid file id", err))
		return
	}

	file, url, expiresIn, err := h.ingestSvc.GetFile(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id":                         file.ID,
		"storage_key":                     file.StorageKey,
		"ingestion_status":                file.Status,
		"error_message":                   file.ErrorMessage,
		"presigned_download_url":          url,
		"download_url_expires_in_seconds": expiresIn,
		"created_at":                      file.CreatedAt,
		"updated_at":                      file.UpdatedAt,
	})
}

// DeleteFile removes a file record together with its vectors.
func (h *Handler) DeleteFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid file id", err))
		return
	}

	if err := h.ingestSvc.DeleteFile(c.Request.Context(), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id": id,
		"deleted": true,
	})
}
