package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Detail  map[string]any
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if code := apperrors.CodeOf(err); code != "" {
		return &HTTPError{
			Status:  statusForCode(code),
			Code:    code,
			Message: errMessage(err),
			Detail:  apperrors.DetailOf(err),
			Err:     err,
		}
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "InternalError",
		Message: "something went wrong",
		Err:     err,
	}
}

// statusForCode maps domain error codes onto HTTP statuses. Upstream
// dependency failures surface as 502 so callers can tell them apart from
// bugs in this service.
func statusForCode(code string) int {
	switch code {
	case apperrors.CodeValidationFailure, apperrors.CodeInvalidKeyFormat:
		return http.StatusBadRequest
	case apperrors.CodeRecordNotFound, apperrors.CodeBlobNotFound:
		return http.StatusNotFound
	case apperrors.CodeConversationBusy:
		return http.StatusConflict
	case apperrors.CodeLLMFailure,
		apperrors.CodeEmbeddingFailure,
		apperrors.CodeVectorQueryFailure,
		apperrors.CodeVectorUpsertFailure,
		apperrors.CodeBlobUnavailable,
		apperrors.CodeBlobAccessDenied,
		apperrors.CodeCatalogUnavailable,
		apperrors.CodeLockUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
