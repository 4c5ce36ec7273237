package http

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	"github.com/yanqian/pdfchat/internal/domain/ingest"
	"github.com/yanqian/pdfchat/internal/domain/retrieval"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	ingestSvc    *ingest.Service
	chatSvc      *chat.Service
	retrievalSvc *retrieval.Service
	logger       *slog.Logger
}

func NewHandler(ingestSvc *ingest.Service, chatSvc *chat.Service, retrievalSvc *retrieval.Service, logger *slog.Logger) *Handler {
	return &Handler{
		ingestSvc:    ingestSvc,
		chatSvc:      chatSvc,
		retrievalSvc: retrievalSvc,
		logger:       logger.With("component", "http_handler"),
	}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil {
		limit = v
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
