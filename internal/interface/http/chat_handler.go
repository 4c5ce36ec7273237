package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

type chatPayload struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
	FileID         *string `json:"file_id"`
}

// Chat runs one conversation turn.
func (h *Handler) Chat(c *gin.Context) {
	var payload chatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "request body must be JSON with a message", err))
		return
	}

	req := chat.Request{Message: strings.TrimSpace(payload.Message)}

	if payload.ConversationID != nil {
		id, err := uuid.Parse(*payload.ConversationID)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid conversation id", err))
			return
		}
		req.ConversationID = &id
	}
	if payload.FileID != nil {
		id, err := uuid.Parse(*payload.FileID)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid file id", err))
			return
		}
		req.FileID = &id
	}

	resp, err := h.chatSvc.HandleTurn(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListChats returns a page of conversation summaries.
func (h *Handler) ListChats(c *gin.Context) {
	limit, offset := pagination(c)

	chats, total, err := h.chatSvc.ListConversations(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chats":  chats,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetChat returns one conversation with its full history.
func (h *Handler) GetChat(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid conversation id", err))
		return
	}

	conv, messages, err := h.chatSvc.GetConversation(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conv.ID,
		"created_at":      conv.CreatedAt,
		"messages":        messages,
	})
}

// DeleteChat removes a conversation and its messages.
func (h *Handler) DeleteChat(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeValidationFailure, "invalid conversation id", err))
		return
	}

	if err := h.chatSvc.DeleteConversation(c.Request.Context(), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"deleted":         true,
	})
}
